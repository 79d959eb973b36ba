// Package tools holds the actions the FinTalk agent can take on behalf of a
// caller: searching the indexed documents and blocking or enabling cards.
package tools

import (
	"fmt"
	"strings"
)

func stringArg(input map[string]any, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return s, nil
}

func objectSchema(prop, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			prop: map[string]any{"type": "string", "description": description},
		},
		"required": []string{prop},
	}
}
