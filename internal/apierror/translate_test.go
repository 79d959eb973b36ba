package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbu-europe/fintalk/internal/usecase"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		code   string
	}{
		{name: "validation", err: &usecase.Error{Code: usecase.ErrorValidation, Reason: "empty_messages"}, status: http.StatusBadRequest, typ: TypeInvalidRequest, code: "validation_error"},
		{name: "document parse", err: &usecase.Error{Code: usecase.ErrorDocumentParse}, status: http.StatusBadRequest, typ: TypeInvalidRequest, code: "document_parse_error"},
		{name: "document load", err: &usecase.Error{Code: usecase.ErrorDocumentLoad}, status: http.StatusBadRequest, typ: TypeInvalidRequest, code: "document_load_error"},
		{name: "authentication", err: usecase.NewAuthenticationError("invalid_api_key"), status: http.StatusUnauthorized, typ: TypeAuthentication, code: "authentication_error"},
		{name: "unavailable", err: &usecase.Error{Code: usecase.ErrorServiceUnavailable}, status: http.StatusServiceUnavailable, typ: TypeServiceUnavailable, code: "service_unavailable"},
		{name: "agent execution", err: &usecase.Error{Code: usecase.ErrorAgentExecution}, status: http.StatusInternalServerError, typ: TypeServer, code: "agent_execution_error"},
		{name: "stream interrupted", err: &usecase.Error{Code: usecase.ErrorStreamInterrupted}, status: http.StatusInternalServerError, typ: TypeServer, code: "stream_interrupted"},
		{name: "indexing", err: &usecase.Error{Code: usecase.ErrorIndexing}, status: http.StatusInternalServerError, typ: TypeServer, code: "indexing_error"},
		{name: "wrapped usecase error", err: fmt.Errorf("handler: %w", &usecase.Error{Code: usecase.ErrorServiceUnavailable}), status: http.StatusServiceUnavailable, typ: TypeServiceUnavailable, code: "service_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := Translate(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.typ, body.Error.Type)
			require.NotEmpty(t, body.Error.Message)
			require.NotNil(t, body.Error.Code)
			require.Equal(t, tc.code, *body.Error.Code)
		})
	}
}

func TestTranslate_UnknownErrorsAreOpaque(t *testing.T) {
	status, body := Translate(errors.New("pq: password authentication failed for user admin"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, TypeServer, body.Error.Type)
	require.Equal(t, "An unexpected error occurred.", body.Error.Message)
	require.Nil(t, body.Error.Code)
	require.Nil(t, body.Error.Param)
}

func TestTranslate_NeverLeaksCause(t *testing.T) {
	err := &usecase.Error{Code: usecase.ErrorAgentExecution, Reason: "agent_failed", Err: errors.New("secret arn:aws:bedrock:eu-west-1:123456789012")}
	_, body := Translate(err)
	b, mErr := json.Marshal(body)
	require.NoError(t, mErr)
	require.NotContains(t, string(b), "arn:aws")
	require.NotContains(t, string(b), "agent_failed")
}

func TestTranslate_DetailAndParam(t *testing.T) {
	status, body := Translate(&usecase.Error{Code: usecase.ErrorValidation, Param: "temperature", Detail: "temperature must be less than or equal to 2"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "temperature must be less than or equal to 2", body.Error.Message)
	require.Equal(t, "temperature", *body.Error.Param)

	b, err := json.Marshal(body)
	require.NoError(t, err)
	require.JSONEq(t, `{"error":{"message":"temperature must be less than or equal to 2","type":"invalid_request_error","param":"temperature","code":"validation_error"}}`, string(b))
}

func TestStreamInterrupted(t *testing.T) {
	body := StreamInterrupted()
	require.Equal(t, TypeServer, body.Error.Type)
	require.Equal(t, "stream_interrupted", *body.Error.Code)
}

func TestTranslateLegacy(t *testing.T) {
	status, body := TranslateLegacy(&usecase.Error{Code: usecase.ErrorValidation, Param: "message", Detail: "message is required"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, LegacyErrorBody{Code: "VALIDATION_ERROR", Message: "message is required", Details: "field: message"}, body.Error)

	status, body = TranslateLegacy(&usecase.Error{Code: usecase.ErrorServiceUnavailable})
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	require.Empty(t, body.Error.Details)

	status, body = TranslateLegacy(errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "INTERNAL_ERROR", body.Error.Code)

	status, body = TranslateLegacy(&usecase.Error{Code: "SOMETHING_NEW"})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}
