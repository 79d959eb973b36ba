package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sbu-europe/fintalk/internal/usecase"
)

const multipartOverhead = 1 << 20

// UploadDocument accepts a multipart "file" field and indexes it.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	limit := h.documents.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeLegacyError(w, r, uploadTooLarge(limit))
			return
		}
		h.writeLegacyError(w, r, &usecase.Error{
			Code: usecase.ErrorValidation, Reason: "missing_file", Param: "file", Detail: "file is required", Err: err,
		})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.writeLegacyError(w, r, &usecase.Error{Code: usecase.ErrorDocumentLoad, Reason: "read_failed", Detail: "The uploaded file could not be read", Err: err})
		return
	}
	if int64(len(data)) > limit {
		h.writeLegacyError(w, r, uploadTooLarge(limit))
		return
	}

	out, err := h.documents.Upload(r.Context(), usecase.UploadInput{Filename: header.Filename, Data: data})
	if err != nil {
		h.writeLegacyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func uploadTooLarge(limit int64) *usecase.Error {
	return &usecase.Error{
		Code:   usecase.ErrorValidation,
		Reason: "file_too_large",
		Param:  "file",
		Detail: fmt.Sprintf("File size exceeds maximum allowed size of %.1f MB", float64(limit)/(1<<20)),
	}
}
