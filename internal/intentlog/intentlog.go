package intentlog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no entry exists for an intent id.
	ErrNotFound = errors.New("intent not found")

	// ErrDuplicateIntent indicates the intent was already recorded as prepared.
	ErrDuplicateIntent = errors.New("duplicate intent")
)

const (
	// StatusPrepared marks an intent the upstream prepared but nobody confirmed yet.
	StatusPrepared = "prepared"
)

// Entry is the proxy's audit record of one payment intent. The upstream owns
// the intent; the proxy only remembers who prepared and confirmed it.
type Entry struct {
	IntentID        string
	GridUserID      string
	Amount          string
	Rail            string
	Status          string
	TransactionHash string
	PreparedAt      time.Time
	ConfirmedAt     *time.Time
}

// Log is implemented by the audit log backends (Postgres, memory).
type Log interface {
	RecordPrepared(ctx context.Context, entry Entry) error
	RecordConfirmed(ctx context.Context, gridUserID, intentID, status, txHash string, at time.Time) error
	Get(ctx context.Context, intentID string) (Entry, error)
	ListByUser(ctx context.Context, gridUserID string, limit int) ([]Entry, error)
}
