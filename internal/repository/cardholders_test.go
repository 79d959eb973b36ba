package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sbu-europe/fintalk/internal/domain"
)

var cardholderCols = []string{"id", "username", "phone_number", "credit_card_number", "card_status", "created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func johnRow(status string) *pgxmock.Rows {
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(cardholderCols).
		AddRow(int64(1), "john_doe", "+1234567891", "4532-1234-5678-9012", status, created, created)
}

func TestGetByPhone_HappyPath(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT (.+) FROM cardholders WHERE phone_number = \$1`).
		WithArgs("+1234567891").
		WillReturnRows(johnRow("active"))

	repo, err := NewCardholderRepository(mock)
	require.NoError(t, err)
	got, err := repo.GetByPhone(context.Background(), "+1234567891")
	require.NoError(t, err)
	require.Equal(t, "john_doe", got.Username)
	require.Equal(t, domain.CardStatusActive, got.CardStatus)
	require.Equal(t, "9012", got.LastFour())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPhone_NotFound(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT (.+) FROM cardholders`).
		WithArgs("+999").
		WillReturnError(pgx.ErrNoRows)

	repo, _ := NewCardholderRepository(mock)
	_, err := repo.GetByPhone(context.Background(), "+999")
	require.ErrorIs(t, err, ErrCardholderNotFound)
}

func TestGetByPhone_ConnectionFailureIsUnavailable(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT (.+) FROM cardholders`).
		WithArgs("+1").
		WillReturnError(&pgconn.ConnectError{})

	repo, _ := NewCardholderRepository(mock)
	_, err := repo.GetByPhone(context.Background(), "+1")
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestSetCardStatus(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("transition", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM cardholders WHERE phone_number = \$1 FOR UPDATE`).
			WithArgs("+1234567891").
			WillReturnRows(johnRow("active"))
		mock.ExpectQuery(`UPDATE cardholders SET card_status = \$1`).
			WithArgs("blocked", int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updated))
		mock.ExpectCommit()

		repo, _ := NewCardholderRepository(mock)
		holder, changed, err := repo.SetCardStatus(context.Background(), "+1234567891", domain.CardStatusBlocked)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, domain.CardStatusBlocked, holder.CardStatus)
		require.Equal(t, updated, holder.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already in state", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("+1234567891").
			WillReturnRows(johnRow("blocked"))
		mock.ExpectCommit()

		repo, _ := NewCardholderRepository(mock)
		holder, changed, err := repo.SetCardStatus(context.Background(), "+1234567891", domain.CardStatusBlocked)
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, domain.CardStatusBlocked, holder.CardStatus)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found rolls back", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("+999").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		repo, _ := NewCardholderRepository(mock)
		_, _, err := repo.SetCardStatus(context.Background(), "+999", domain.CardStatusActive)
		require.ErrorIs(t, err, ErrCardholderNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update failure rolls back", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("+1234567891").
			WillReturnRows(johnRow("blocked"))
		mock.ExpectQuery(`UPDATE cardholders`).
			WithArgs("active", int64(1)).
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		repo, _ := NewCardholderRepository(mock)
		_, _, err := repo.SetCardStatus(context.Background(), "+1234567891", domain.CardStatusActive)
		require.Error(t, err)
		require.Contains(t, err.Error(), "update card status")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin().WillReturnError(&pgconn.ConnectError{})

		repo, _ := NewCardholderRepository(mock)
		_, _, err := repo.SetCardStatus(context.Background(), "+1", domain.CardStatusActive)
		require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})
}

func TestReplaceAll(t *testing.T) {
	holders := []domain.Cardholder{
		{Username: "john_doe", PhoneNumber: "+1234567891", CreditCardNumber: "4532-1234-5678-9012"},
		{Username: "jane_smith", PhoneNumber: "+1234567892", CreditCardNumber: "5425-2334-3010-9903", CardStatus: domain.CardStatusBlocked},
	}

	t.Run("happy path", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM cardholders`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec(`INSERT INTO cardholders`).
			WithArgs("john_doe", "+1234567891", "4532-1234-5678-9012", "active").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO cardholders`).
			WithArgs("jane_smith", "+1234567892", "5425-2334-3010-9903", "blocked").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		repo, _ := NewCardholderRepository(mock)
		n, err := repo.ReplaceAll(context.Background(), holders)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM cardholders`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`INSERT INTO cardholders`).
			WithArgs("john_doe", "+1234567891", "4532-1234-5678-9012", "active").
			WillReturnError(errors.New("duplicate key value"))
		mock.ExpectRollback()

		repo, _ := NewCardholderRepository(mock)
		_, err := repo.ReplaceAll(context.Background(), holders)
		require.Error(t, err)
		require.Contains(t, err.Error(), "john_doe")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewCardholderRepository_NilDB(t *testing.T) {
	_, err := NewCardholderRepository(nil)
	require.Error(t, err)
}
