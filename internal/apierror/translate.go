// Package apierror maps use case failures to the public error envelopes.
// Internal error text never leaves this package; callers log it.
package apierror

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

const (
	TypeInvalidRequest     = "invalid_request_error"
	TypeAuthentication     = "authentication_error"
	TypeServiceUnavailable = "service_unavailable_error"
	TypeServer             = "server_error"
)

type mapping struct {
	status  int
	typ     string
	message string
}

var mappings = map[usecase.ErrorCode]mapping{
	usecase.ErrorValidation:         {http.StatusBadRequest, TypeInvalidRequest, "Invalid request."},
	usecase.ErrorDocumentParse:      {http.StatusBadRequest, TypeInvalidRequest, "The document could not be parsed."},
	usecase.ErrorDocumentLoad:       {http.StatusBadRequest, TypeInvalidRequest, "The document has no readable content."},
	usecase.ErrorAuthentication:     {http.StatusUnauthorized, TypeAuthentication, "Invalid or missing API key."},
	usecase.ErrorServiceUnavailable: {http.StatusServiceUnavailable, TypeServiceUnavailable, "The service is temporarily unavailable. Please try again later."},
	usecase.ErrorAgentExecution:     {http.StatusInternalServerError, TypeServer, "The agent failed to process the request."},
	usecase.ErrorStreamInterrupted:  {http.StatusInternalServerError, TypeServer, "The response stream was interrupted."},
	usecase.ErrorIndexing:           {http.StatusInternalServerError, TypeServer, "The document could not be indexed."},
}

var internalFallback = mapping{http.StatusInternalServerError, TypeServer, "An unexpected error occurred."}

func lookup(err error) (mapping, *usecase.Error) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return internalFallback, nil
	}
	m, ok := mappings[ue.Code]
	if !ok {
		return internalFallback, ue
	}
	if ue.Detail != "" {
		m.message = ue.Detail
	}
	return m, ue
}

// Translate returns the HTTP status and OpenAI error body for err.
func Translate(err error) (int, domain.ErrorResponse) {
	m, ue := lookup(err)
	body := domain.ErrorBody{Message: m.message, Type: m.typ}
	if ue != nil {
		code := strings.ToLower(string(ue.Code))
		body.Code = &code
		if ue.Param != "" {
			param := ue.Param
			body.Param = &param
		}
	}
	return m.status, domain.ErrorResponse{Error: body}
}

// StreamInterrupted is the body of the single error event sent when a
// stream fails after it has started.
func StreamInterrupted() domain.ErrorResponse {
	_, body := Translate(&usecase.Error{Code: usecase.ErrorStreamInterrupted})
	return body
}

// LegacyError is the FinTalk error envelope used by the /api/ endpoints.
type LegacyError struct {
	Error LegacyErrorBody `json:"error"`
}

type LegacyErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// TranslateLegacy returns the HTTP status and FinTalk error body for err.
func TranslateLegacy(err error) (int, LegacyError) {
	m, ue := lookup(err)
	code := string(usecase.ErrorInternal)
	if ue != nil {
		if _, known := mappings[ue.Code]; known {
			code = string(ue.Code)
		}
	}
	details := ""
	if ue != nil && ue.Param != "" {
		details = "field: " + ue.Param
	}
	return m.status, LegacyError{Error: LegacyErrorBody{Code: code, Message: m.message, Details: details}}
}
