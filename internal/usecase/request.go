package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sbu-europe/fintalk/internal/domain"
)

const (
	DefaultModel       = "amazon.nova-lite-v1:0"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// ChatCompletionRequest is the body of POST /chat/completions. Optional
// fields are pointers so that absence can be told apart from zero values.
type ChatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature *float64             `json:"temperature" validate:"omitnil,gte=0,lte=2"`
	MaxTokens   *int                 `json:"max_tokens" validate:"omitnil,gte=1,lte=4096"`
	Stream      *bool                `json:"stream"`
}

// WantsStream reports whether the caller asked for SSE. Streaming is the
// default when the field is absent.
func (r ChatCompletionRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

func (r ChatCompletionRequest) model() string {
	if m := strings.TrimSpace(r.Model); m != "" {
		return m
	}
	return DefaultModel
}

func (r ChatCompletionRequest) temperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

func (r ChatCompletionRequest) maxTokens() int {
	if r.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *r.MaxTokens
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFailure converts the first validator error into a usecase
// validation error naming the offending field.
func validationFailure(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Code: ErrorValidation, Reason: "invalid_request", Detail: "invalid request", Err: err}
	}
	fe := verrs[0]
	param := fe.Namespace()
	if i := strings.Index(param, "."); i >= 0 {
		param = param[i+1:]
	}
	return &Error{
		Code:   ErrorValidation,
		Reason: "invalid_" + fe.Tag(),
		Param:  param,
		Detail: describeFieldError(param, fe),
		Err:    err,
	}
}

func describeFieldError(param string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", param)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", param, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", param, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", param, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", param, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", param)
}
