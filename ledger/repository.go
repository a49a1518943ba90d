package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateTransaction signals the external transaction id was
	// already recorded: the event is a replay and must not be re-applied.
	ErrDuplicateTransaction = errors.New("ledger: duplicate external transaction id")
	// ErrRecordNotFound is returned when no ledger row exists for the id.
	ErrRecordNotFound = errors.New("ledger: record not found")
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes a new ledger row inside the active transaction. The unique
// index on external_id is the idempotency guardrail: a replay surfaces as
// ErrDuplicateTransaction, which callers treat as already-processed.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, rec TransactionRecord) error {
	if rec.ExternalID == "" {
		return fmt.Errorf("ledger: empty external transaction id")
	}

	const query = `
		INSERT INTO transaction_ledger
			(id, external_id, account_kind, account_id, amount, currency, status, failure_reason, raw_payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		rec.ID,
		rec.ExternalID,
		string(rec.AccountKind),
		rec.AccountID,
		rec.Amount,
		rec.Currency,
		string(rec.Status),
		rec.FailureReason,
		rec.RawPayload,
		rec.ReceivedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("ledger: insert record: %w", err)
	}
	return nil
}

// Complete settles the ledger row to its final status once the account-side
// write succeeded, stamping completed_at.
func (r *Repository) Complete(ctx context.Context, tx pgx.Tx, id string, status Status, completedAt time.Time) error {
	const query = `
		UPDATE transaction_ledger
		SET status = $2, completed_at = $3
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, id, string(status), completedAt)
	if err != nil {
		return fmt.Errorf("ledger: complete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DB is the read surface shared by pgxpool.Pool and pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetByExternalID fetches a ledger row by the external transaction id.
func (r *Repository) GetByExternalID(ctx context.Context, db DB, externalID string) (TransactionRecord, error) {
	const query = `
		SELECT id, external_id, account_kind, account_id, amount, currency, status, failure_reason, raw_payload, received_at, completed_at
		FROM transaction_ledger
		WHERE external_id = $1
	`
	var rec TransactionRecord
	err := db.QueryRow(ctx, query, externalID).Scan(
		&rec.ID,
		&rec.ExternalID,
		&rec.AccountKind,
		&rec.AccountID,
		&rec.Amount,
		&rec.Currency,
		&rec.Status,
		&rec.FailureReason,
		&rec.RawPayload,
		&rec.ReceivedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionRecord{}, ErrRecordNotFound
		}
		return TransactionRecord{}, fmt.Errorf("ledger: get by external id: %w", err)
	}
	return rec, nil
}
