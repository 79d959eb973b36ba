package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sbu-europe/fintalk/internal/agent"
	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/repository"
)

const (
	BlockCreditCardName  = "block_credit_card"
	EnableCreditCardName = "enable_credit_card"
)

type CardStore interface {
	SetCardStatus(ctx context.Context, phone string, status domain.CardStatus) (domain.Cardholder, bool, error)
}

// EventRecorder receives an audit entry for every card status change.
type EventRecorder interface {
	Record(ctx context.Context, evt domain.CardEvent) error
}

// CardStatusTool moves a caller's card to a fixed status.
type CardStatusTool struct {
	name        string
	description string
	action      string
	target      domain.CardStatus
	pastTense   string
	store       CardStore
	events      EventRecorder
	logger      *slog.Logger
}

var _ agent.Tool = (*CardStatusTool)(nil)

type CardOption func(*CardStatusTool)

// WithEventRecorder records an audit event for each real transition.
// Recording failures are logged and never fail the tool call.
func WithEventRecorder(r EventRecorder) CardOption {
	return func(t *CardStatusTool) { t.events = r }
}

func WithCardLogger(logger *slog.Logger) CardOption {
	return func(t *CardStatusTool) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewBlockCreditCard(store CardStore, opts ...CardOption) (*CardStatusTool, error) {
	return newCardStatusTool(store, &CardStatusTool{
		name: BlockCreditCardName,
		description: "Blocks a credit card associated with the given phone number. " +
			"Use this tool when the user requests to block their credit card, " +
			"reports a lost or stolen card, or asks to deactivate their card.",
		action:    "block",
		target:    domain.CardStatusBlocked,
		pastTense: "blocked",
	}, opts)
}

func NewEnableCreditCard(store CardStore, opts ...CardOption) (*CardStatusTool, error) {
	return newCardStatusTool(store, &CardStatusTool{
		name: EnableCreditCardName,
		description: "Enables a previously blocked credit card associated with the given phone number. " +
			"Use this tool when the user requests to enable, unblock or reactivate their credit card.",
		action:    "enable",
		target:    domain.CardStatusActive,
		pastTense: "enabled",
	}, opts)
}

func newCardStatusTool(store CardStore, t *CardStatusTool, opts []CardOption) (*CardStatusTool, error) {
	if store == nil {
		return nil, fmt.Errorf("tools: %s needs a card store", t.name)
	}
	t.store = store
	t.logger = slog.Default()
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *CardStatusTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        t.name,
		Description: t.description,
		Schema:      objectSchema("phone_number", "The phone number associated with the account, e.g. +1234567890"),
	}
}

func (t *CardStatusTool) Call(ctx context.Context, input map[string]any) (string, error) {
	phone, err := stringArg(input, "phone_number")
	if err != nil {
		return "", err
	}
	phone = NormalizePhone(phone)

	holder, changed, err := t.store.SetCardStatus(ctx, phone, t.target)
	if errors.Is(err, repository.ErrCardholderNotFound) {
		t.logger.Warn("no cardholder found", "tool", t.name, "phone", phone)
		return "No cardholder found with phone number: " + phone, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s credit card: %w", t.action, err)
	}

	if !changed {
		t.logger.Info("card already in requested state", "tool", t.name, "status", t.target)
		return fmt.Sprintf("Credit card for phone number %s is already %s.\nCard ending in: %s\nUsername: %s",
			phone, t.target, holder.LastFour(), holder.Username), nil
	}

	t.record(ctx, phone, holder)
	t.logger.Info("card status changed", "tool", t.name, "status", t.target)
	return fmt.Sprintf("Successfully %s credit card for phone number %s.\nCard ending in: %s\nUsername: %s\n%s at: %s",
		t.pastTense, phone, holder.LastFour(), holder.Username,
		capitalize(t.pastTense), holder.UpdatedAt.Format(time.RFC3339)), nil
}

func (t *CardStatusTool) record(ctx context.Context, phone string, holder domain.Cardholder) {
	if t.events == nil {
		return
	}
	err := t.events.Record(ctx, domain.CardEvent{
		PhoneNumber: phone,
		Username:    holder.Username,
		Action:      t.action,
		Status:      holder.CardStatus,
		OccurredAt:  holder.UpdatedAt,
	})
	if err != nil {
		t.logger.Warn("recording card event failed", "tool", t.name, "err", err)
	}
}

// NormalizePhone prefixes a phone number with "+" when it has none.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
