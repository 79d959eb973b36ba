package usecase

import "fmt"

type ErrorCode string

const (
	ErrorValidation         ErrorCode = "VALIDATION_ERROR"
	ErrorAuthentication     ErrorCode = "AUTHENTICATION_ERROR"
	ErrorServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorAgentExecution     ErrorCode = "AGENT_EXECUTION_ERROR"
	ErrorStreamInterrupted  ErrorCode = "STREAM_INTERRUPTED"
	ErrorDocumentParse      ErrorCode = "DOCUMENT_PARSE_ERROR"
	ErrorDocumentLoad       ErrorCode = "DOCUMENT_LOAD_ERROR"
	ErrorIndexing           ErrorCode = "INDEXING_ERROR"
	ErrorInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by every use case. Reason is a stable machine-readable
// token for logs; Detail, when set, is safe to show to API callers.
type Error struct {
	Code   ErrorCode
	Reason string
	Param  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func newValidationError(param, reason, detail string) *Error {
	return &Error{Code: ErrorValidation, Reason: reason, Param: param, Detail: detail}
}

// NewAuthenticationError is used by transport layers that reject a caller
// before any use case runs.
func NewAuthenticationError(reason string) *Error {
	return newError(ErrorAuthentication, reason, nil)
}

// InvalidBody is returned by transport layers when a request body cannot be
// decoded at all.
func InvalidBody(err error) *Error {
	return &Error{Code: ErrorValidation, Reason: "invalid_json", Detail: "Request body must be a valid JSON object", Err: err}
}
