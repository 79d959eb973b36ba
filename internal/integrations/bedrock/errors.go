package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/sbu-europe/fintalk/internal/domain"
)

// unavailableCodes are Bedrock error codes that mean the service cannot
// serve us right now, as opposed to a bad request or a model failure.
var unavailableCodes = map[string]bool{
	"ServiceUnavailableException": true,
	"ThrottlingException":         true,
	"ModelNotReadyException":      true,
	"InternalServerException":     true,
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"ExpiredTokenException":       true,
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("bedrock: %s: %w", op, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && unavailableCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("bedrock: %s: %w: %w", op, domain.ErrServiceUnavailable, err)
	}
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return fmt.Errorf("bedrock: %s: %w: %w", op, domain.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("bedrock: %s: %w", op, err)
}

func decodeToolInput(raw string) (map[string]any, error) {
	input := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return input, nil
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, err
	}
	return input, nil
}
