package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sbu-europe/fintalk/internal/domain"
)

var ErrCardholderNotFound = errors.New("repository: cardholder not found")

const cardholderColumns = `id, username, phone_number, credit_card_number, card_status, created_at, updated_at`

// CardholderRepository stores cardholders in Postgres.
type CardholderRepository struct {
	db pgxIface
}

func NewCardholderRepository(db pgxIface) (*CardholderRepository, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &CardholderRepository{db: db}, nil
}

func scanCardholder(row pgx.Row) (domain.Cardholder, error) {
	var (
		c      domain.Cardholder
		status string
	)
	if err := row.Scan(&c.ID, &c.Username, &c.PhoneNumber, &c.CreditCardNumber, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Cardholder{}, err
	}
	c.CardStatus = domain.CardStatus(status)
	return c, nil
}

func (r *CardholderRepository) GetByPhone(ctx context.Context, phone string) (domain.Cardholder, error) {
	c, err := scanCardholder(r.db.QueryRow(ctx,
		`SELECT `+cardholderColumns+` FROM cardholders WHERE phone_number = $1`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cardholder{}, ErrCardholderNotFound
	}
	if err != nil {
		return domain.Cardholder{}, storeError("get cardholder", err)
	}
	return c, nil
}

// SetCardStatus moves the card of the cardholder with the given phone number
// to status. The row is locked for the duration of the transition. changed is
// false when the card already had that status.
func (r *CardholderRepository) SetCardStatus(ctx context.Context, phone string, status domain.CardStatus) (holder domain.Cardholder, changed bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Cardholder{}, false, storeError("begin", err)
	}

	holder, changed, err = setStatusTx(ctx, tx, phone, status)
	if err != nil {
		_ = tx.Rollback(ctx)
		return domain.Cardholder{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Cardholder{}, false, storeError("commit", err)
	}
	return holder, changed, nil
}

func setStatusTx(ctx context.Context, tx pgx.Tx, phone string, status domain.CardStatus) (domain.Cardholder, bool, error) {
	holder, err := scanCardholder(tx.QueryRow(ctx,
		`SELECT `+cardholderColumns+` FROM cardholders WHERE phone_number = $1 FOR UPDATE`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cardholder{}, false, ErrCardholderNotFound
	}
	if err != nil {
		return domain.Cardholder{}, false, storeError("lock cardholder", err)
	}
	if holder.CardStatus == status {
		return holder, false, nil
	}

	var updatedAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE cardholders SET card_status = $1, updated_at = now() WHERE id = $2 RETURNING updated_at`,
		string(status), holder.ID,
	).Scan(&updatedAt)
	if err != nil {
		return domain.Cardholder{}, false, storeError("update card status", err)
	}
	holder.CardStatus = status
	holder.UpdatedAt = updatedAt
	return holder, true, nil
}

// ReplaceAll deletes every cardholder and inserts the given ones.
func (r *CardholderRepository) ReplaceAll(ctx context.Context, holders []domain.Cardholder) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, storeError("begin", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cardholders`); err != nil {
		_ = tx.Rollback(ctx)
		return 0, storeError("clear cardholders", err)
	}
	for _, h := range holders {
		status := h.CardStatus
		if status == "" {
			status = domain.CardStatusActive
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO cardholders (username, phone_number, credit_card_number, card_status) VALUES ($1, $2, $3, $4)`,
			strings.TrimSpace(h.Username), strings.TrimSpace(h.PhoneNumber), strings.TrimSpace(h.CreditCardNumber), string(status),
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, storeError("insert cardholder "+h.Username, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storeError("commit", err)
	}
	return len(holders), nil
}

// Ping checks the database connection.
func (r *CardholderRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}
