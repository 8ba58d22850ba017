package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/theimaginaryfoundation/mood-reflect/reflection"
)

// CacheStore is the SQLite persistent cache tier. Single statements per
// operation keep the read-modify-write atomic without an explicit lock.
type CacheStore struct {
	db *sql.DB
}

func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{db: db}
}

var _ reflection.CacheStore = (*CacheStore)(nil)

const (
	getCacheStatement = `
	SELECT cache_key, reflection, created_at, expires_at
	FROM reflection_cache
	WHERE cache_key = ?
	`

	putCacheStatement = `
	INSERT INTO reflection_cache (cache_key, reflection, created_at, expires_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		reflection = excluded.reflection,
		created_at = excluded.created_at,
		expires_at = excluded.expires_at
	`

	deleteCacheStatement = `DELETE FROM reflection_cache WHERE cache_key = ?`
	clearCacheStatement  = `DELETE FROM reflection_cache`
	purgeCacheStatement  = `DELETE FROM reflection_cache WHERE expires_at <= ?`
)

func (s *CacheStore) Get(ctx context.Context, key string) (reflection.CacheEntry, bool, error) {
	var (
		entry     reflection.CacheEntry
		payload   []byte
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, getCacheStatement, key).Scan(
		&entry.Key, &payload, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reflection.CacheEntry{}, false, nil
	}
	if err != nil {
		return reflection.CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	if err := json.Unmarshal(payload, &entry.Reflection); err != nil {
		return reflection.CacheEntry{}, false, fmt.Errorf("unmarshal cached reflection: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	entry.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return entry, true, nil
}

func (s *CacheStore) Put(ctx context.Context, entry reflection.CacheEntry) error {
	payload, err := json.Marshal(entry.Reflection)
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, putCacheStatement,
		entry.Key, payload, entry.CreatedAt.UnixNano(), entry.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteCacheStatement, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *CacheStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, clearCacheStatement); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (s *CacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, purgeCacheStatement, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
