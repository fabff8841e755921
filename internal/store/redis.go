package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/lending-gateway/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Entries never change once written, so inserts populate the cache
// directly; only per-user lists are invalidated.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) InsertOperation(ctx context.Context, e *model.JournalEntry) error {
	if err := s.primary.InsertOperation(ctx, e); err != nil {
		return err
	}
	s.cacheOperation(ctx, e)
	s.rdb.Del(ctx, userOperationsKey(e.User))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetOperation(ctx context.Context, id string) (*model.JournalEntry, error) {
	data, err := s.rdb.Get(ctx, operationKey(id)).Bytes()
	if err == nil {
		var e model.JournalEntry
		if json.Unmarshal(data, &e) == nil {
			return &e, nil
		}
	}

	e, err := s.primary.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheOperation(ctx, e)
	return e, nil
}

// ListOperationsByUser caches only the default page, which is what the
// HTTP route asks for when no limit is given.
func (s *CachedStore) ListOperationsByUser(ctx context.Context, user string, limit int) ([]model.JournalEntry, error) {
	if normalizeLimit(limit) != DefaultListLimit {
		return s.primary.ListOperationsByUser(ctx, user, limit)
	}

	data, err := s.rdb.Get(ctx, userOperationsKey(user)).Bytes()
	if err == nil {
		var entries []model.JournalEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.ListOperationsByUser(ctx, user, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, userOperationsKey(user), data, s.ttl)
	}
	return entries, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheOperation(ctx context.Context, e *model.JournalEntry) {
	if data, err := json.Marshal(e); err == nil {
		s.rdb.Set(ctx, operationKey(e.ID), data, s.ttl)
	}
}

func operationKey(id string) string { return fmt.Sprintf("operation:%s", id) }
func userOperationsKey(user string) string {
	return fmt.Sprintf("operations:user:%s", strings.ToLower(user))
}
