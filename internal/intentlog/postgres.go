package intentlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_intents (
    intent_id        TEXT PRIMARY KEY,
    grid_user_id     TEXT NOT NULL,
    amount           TEXT NOT NULL,
    rail             TEXT NOT NULL,
    status           TEXT NOT NULL,
    transaction_hash TEXT NOT NULL DEFAULT '',
    prepared_at      TIMESTAMPTZ NOT NULL,
    confirmed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS payment_intents_user_idx ON payment_intents (grid_user_id, prepared_at DESC);`

const uniqueViolation = "23505"

// PostgresLog persists intent audit entries in PostgreSQL.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog constructs a Postgres-backed log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (l *PostgresLog) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create intent log schema: %w", err)
	}
	return nil
}

// RecordPrepared inserts a new entry.
func (l *PostgresLog) RecordPrepared(ctx context.Context, entry Entry) error {
	if entry.Status == "" {
		entry.Status = StatusPrepared
	}
	_, err := l.db.Exec(ctx, `INSERT INTO payment_intents
        (intent_id, grid_user_id, amount, rail, status, prepared_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.IntentID, entry.GridUserID, entry.Amount, entry.Rail, entry.Status, entry.PreparedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateIntent
		}
		return fmt.Errorf("insert intent %s: %w", entry.IntentID, err)
	}
	return nil
}

// RecordConfirmed stores the status the upstream assigned at confirmation.
// Intents prepared by another user are reported as ErrNotFound.
func (l *PostgresLog) RecordConfirmed(ctx context.Context, gridUserID, intentID, status, txHash string, at time.Time) error {
	tag, err := l.db.Exec(ctx, `UPDATE payment_intents
        SET status = $2, transaction_hash = $3, confirmed_at = $4
        WHERE intent_id = $1 AND grid_user_id = $5`, intentID, status, txHash, at, gridUserID)
	if err != nil {
		return fmt.Errorf("update intent %s: %w", intentID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one entry.
func (l *PostgresLog) Get(ctx context.Context, intentID string) (Entry, error) {
	row := l.db.QueryRow(ctx, `SELECT intent_id, grid_user_id, amount, rail, status, transaction_hash, prepared_at, confirmed_at
        FROM payment_intents WHERE intent_id = $1`, intentID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// ListByUser returns the newest entries of a user first.
func (l *PostgresLog) ListByUser(ctx context.Context, gridUserID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(ctx, `SELECT intent_id, grid_user_id, amount, rail, status, transaction_hash, prepared_at, confirmed_at
        FROM payment_intents WHERE grid_user_id = $1
        ORDER BY prepared_at DESC LIMIT $2`, gridUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.IntentID, &e.GridUserID, &e.Amount, &e.Rail, &e.Status, &e.TransactionHash, &e.PreparedAt, &e.ConfirmedAt)
	return e, err
}
