package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/theimaginaryfoundation/mood-reflect/reflection/fileutils"
)

// FileCacheStore persists the cache as one JSON map in a single file, written
// with an atomic same-directory rename. A single writer lock serializes the
// load-mutate-save cycle.
type FileCacheStore struct {
	mu   sync.Mutex
	path string
}

var _ CacheStore = (*FileCacheStore)(nil)

func NewFileCacheStore(path string) (*FileCacheStore, error) {
	if path == "" {
		return nil, errors.New("NewFileCacheStore: path is empty")
	}
	return &FileCacheStore{path: path}, nil
}

func (s *FileCacheStore) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return CacheEntry{}, false, err
	}
	entry, ok := entries[key]
	return entry, ok, nil
}

func (s *FileCacheStore) Put(ctx context.Context, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[entry.Key] = entry
	return s.save(entries)
}

func (s *FileCacheStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileCacheStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(map[string]CacheEntry{})
}

func (s *FileCacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	purged := 0
	for key, entry := range entries {
		if !entry.Valid(now) {
			delete(entries, key)
			purged++
		}
	}
	if purged == 0 {
		return 0, nil
	}
	return purged, s.save(entries)
}

func (s *FileCacheStore) load() (map[string]CacheEntry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]CacheEntry{}, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	var entries map[string]CacheEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal cache file: %w", err)
	}
	if entries == nil {
		entries = map[string]CacheEntry{}
	}
	return entries, nil
}

func (s *FileCacheStore) save(entries map[string]CacheEntry) error {
	if err := fileutils.WriteJSONFileAtomic(s.path, entries, false); err != nil {
		return fmt.Errorf("save cache file: %w", err)
	}
	return nil
}
