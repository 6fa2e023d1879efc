// Package history keeps each session's past classification results.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nlpinitiative/discrimination-classifier/classifier"
)

// Entry is one stored classification
type Entry struct {
	ID        uuid.UUID                        `json:"id"`
	SessionID string                           `json:"session_id"`
	CreatedAt time.Time                        `json:"created_at"`
	Result    *classifier.ClassificationResult `json:"result"`
}

// NewEntry stamps a result with a fresh id and the current time
func NewEntry(sessionID string, result *classifier.ClassificationResult) Entry {
	return Entry{
		ID:        uuid.New(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		Result:    result,
	}
}

// Store defines the history operations
type Store interface {
	// Append records result for a session and returns the stored entry
	Append(ctx context.Context, sessionID string, result *classifier.ClassificationResult) (Entry, error)

	// List returns up to limit entries for a session, newest first, skipping
	// the newest offset entries. A limit of zero or less returns all of them.
	List(ctx context.Context, sessionID string, limit, offset int) ([]Entry, error)

	// Count returns the number of entries for a session
	Count(ctx context.Context, sessionID string) (int, error)

	// Clear removes all entries for a session
	Clear(ctx context.Context, sessionID string) error

	// CleanupOlderThan removes entries of every session older than the given age
	CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error)

	Close() error
}
