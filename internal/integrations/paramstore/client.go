package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/sbu-europe/fintalk/internal/domain"
)

// ssmAPI is the slice of *ssm.Client that Client uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter reads one parameter value by name.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client reads FinTalk secrets (API tokens, provider keys) from SSM
// Parameter Store. SecureString values are always decrypted.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameter returns the decrypted value of a parameter.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	if name = strings.TrimSpace(name); name == "" {
		return "", errors.New("paramstore: parameter name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", classify(name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has missing value", name)
	}
	return *out.Parameter.Value, nil
}

// unavailableCodes are SSM throttling and server-side failures. Anything
// else, such as ParameterNotFound, stays a plain error.
var unavailableCodes = map[string]bool{
	"ThrottlingException":     true,
	"InternalServerError":     true,
	"ServiceUnavailable":      true,
	"RequestLimitExceeded":    true,
	"TooManyUpdates":          true,
	"InternalFailure":         true,
	"ServiceUnavailableError": true,
}

func classify(name string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && unavailableCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("paramstore: get parameter %q: %w: %w", name, domain.ErrServiceUnavailable, err)
	}
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return fmt.Errorf("paramstore: get parameter %q: %w: %w", name, domain.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("paramstore: get parameter %q: %w", name, err)
}

// TokenSource reads a secret token from a parameter. The value is either the
// bare token or a JSON object of the form {"token": "..."}.
type TokenSource struct {
	getter Getter
	name   string
}

func NewTokenSource(getter Getter, name string) (*TokenSource, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("paramstore: parameter name is required")
	}
	return &TokenSource{getter: getter, name: strings.TrimSpace(name)}, nil
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", fmt.Errorf("paramstore: parameter %q: invalid JSON: %w", s.name, err)
		}
		raw = strings.TrimSpace(payload.Token)
	}
	if raw == "" {
		return "", fmt.Errorf("paramstore: parameter %q holds an empty token", s.name)
	}
	return raw, nil
}
