package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sbu-europe/fintalk/internal/domain"
)

const (
	labelSystem  = "System Instructions:"
	labelHistory = "Conversation History:"
	labelUser    = "User:"
)

// The capture must hold at least one digit, so "[phone: ]" stays plain text.
var phonePattern = regexp.MustCompile(`\[phone:\s*([+\d\s-]*\d[+\d\s-]*)\]`)

// NormalizedQuery is a chat transcript collapsed into a single prompt for
// the agent, plus the caller's phone number when one was annotated.
type NormalizedQuery struct {
	PromptText  string
	PhoneNumber string
}

// NormalizeMessages collapses an OpenAI-style message list into one prompt.
//
// System messages form a preamble, user and assistant turns before the last
// user message form a labelled history, and the last user message is the
// active turn. A "[phone: ...]" annotation in the active turn is extracted
// and removed; only the first one counts.
func NormalizeMessages(messages []domain.ChatMessage) (NormalizedQuery, error) {
	if len(messages) == 0 {
		return NormalizedQuery{}, newValidationError("messages", "empty_messages", "messages must contain at least one message")
	}

	active := -1
	for i, m := range messages {
		if !m.Role.Valid() {
			return NormalizedQuery{}, newValidationError(
				fmt.Sprintf("messages[%d].role", i), "invalid_role",
				fmt.Sprintf("unsupported role %q: must be one of system, user, assistant", m.Role),
			)
		}
		if strings.TrimSpace(m.Content) == "" {
			return NormalizedQuery{}, newValidationError(
				fmt.Sprintf("messages[%d].content", i), "empty_content", "message content must not be empty",
			)
		}
		if m.Role == domain.RoleUser {
			active = i
		}
	}
	if active < 0 {
		return NormalizedQuery{}, newValidationError("messages", "missing_user_message", "messages must include at least one user message")
	}

	var system []string
	var history []string
	for i, m := range messages {
		switch {
		case m.Role == domain.RoleSystem:
			system = append(system, strings.TrimSpace(m.Content))
		case i < active:
			history = append(history, historyLine(m))
		}
	}

	turn, phone := extractPhone(messages[active].Content)
	if turn == "" {
		return NormalizedQuery{}, newValidationError(
			fmt.Sprintf("messages[%d].content", active), "empty_content",
			"message content must not be empty besides the phone annotation",
		)
	}

	sections := make([]string, 0, 3)
	if len(system) > 0 {
		sections = append(sections, labelSystem+"\n"+strings.Join(system, " "))
	}
	if len(history) > 0 {
		sections = append(sections, labelHistory+"\n"+strings.Join(history, "\n"))
	}
	sections = append(sections, labelUser+"\n"+turn)

	return NormalizedQuery{
		PromptText:  strings.Join(sections, "\n\n"),
		PhoneNumber: phone,
	}, nil
}

func historyLine(m domain.ChatMessage) string {
	label := "User"
	if m.Role == domain.RoleAssistant {
		label = "Assistant"
	}
	return label + ": " + strings.TrimSpace(m.Content)
}

// extractPhone returns content with the first phone annotation removed and
// the captured number, or content unchanged and "".
func extractPhone(content string) (string, string) {
	loc := phonePattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return strings.TrimSpace(content), ""
	}
	phone := strings.TrimSpace(content[loc[2]:loc[3]])
	before := strings.TrimRight(content[:loc[0]], " \t")
	after := strings.TrimLeft(content[loc[1]:], " \t")
	stripped := before
	if before != "" && after != "" && !strings.HasSuffix(before, "\n") && !strings.HasPrefix(after, "\n") {
		stripped += " "
	}
	stripped += after
	return strings.TrimSpace(stripped), phone
}

// agentPrompt is the text handed to the agent: the prompt plus, when known,
// the caller's phone number so card tools can act on it.
func agentPrompt(prompt, phone string) string {
	if phone == "" {
		return prompt
	}
	return prompt + "\n\n[User phone number: " + phone + "]"
}
