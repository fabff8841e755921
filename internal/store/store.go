// Package store defines the persistence interface for the operation journal.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-node runs).
package store

import (
	"context"
	"errors"

	"github.com/atmx/lending-gateway/internal/model"
)

// ErrNotFound is returned when no journal entry has the requested id.
var ErrNotFound = errors.New("store: operation not found")

// DefaultListLimit caps ListOperationsByUser when the caller passes 0.
const DefaultListLimit = 50

// Store is the persistence interface. Entries are append-only: there is no
// update or delete.
type Store interface {
	// InsertOperation appends an immutable operation record.
	InsertOperation(ctx context.Context, entry *model.JournalEntry) error

	// GetOperation retrieves one record by id.
	GetOperation(ctx context.Context, id string) (*model.JournalEntry, error)

	// ListOperationsByUser returns a user's records, newest first.
	ListOperationsByUser(ctx context.Context, user string, limit int) ([]model.JournalEntry, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
