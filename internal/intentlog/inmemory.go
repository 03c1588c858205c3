package intentlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

type inMemoryLog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemory creates a concurrency-safe in-memory log for development and tests.
func NewInMemory() Log {
	return &inMemoryLog{entries: make(map[string]Entry)}
}

func (l *inMemoryLog) RecordPrepared(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[entry.IntentID]; exists {
		return ErrDuplicateIntent
	}
	if entry.Status == "" {
		entry.Status = StatusPrepared
	}
	l.entries[entry.IntentID] = entry
	return nil
}

func (l *inMemoryLog) RecordConfirmed(_ context.Context, gridUserID, intentID, status, txHash string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[intentID]
	if !exists || entry.GridUserID != gridUserID {
		return ErrNotFound
	}
	entry.Status = status
	entry.TransactionHash = txHash
	entry.ConfirmedAt = &at
	l.entries[intentID] = entry
	return nil
}

func (l *inMemoryLog) Get(_ context.Context, intentID string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, exists := l.entries[intentID]
	if !exists {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (l *inMemoryLog) ListByUser(_ context.Context, gridUserID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.GridUserID == gridUserID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PreparedAt.After(out[j].PreparedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
