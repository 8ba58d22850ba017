// Package journal provides the SQLite-backed journal store and persistent
// reflection cache tier.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/theimaginaryfoundation/mood-reflect/reflection"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    mood TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_mood_created ON entries(mood, created_at);

CREATE TABLE IF NOT EXISTS reflection_cache (
    cache_key TEXT PRIMARY KEY,
    reflection TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
`

// Open opens (or creates) the journal database with WAL enabled and the
// schema applied.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("journal.Open: path is empty")
	}

	params := url.Values{}
	params.Add("_journal_mode", "WAL")
	params.Add("_synchronous", "NORMAL")

	db, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return db, nil
}

// Store reads and writes journal entries. It implements reflection.EntryStore.
type Store struct {
	db *sql.DB
}

var _ reflection.EntryStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const (
	insertEntryStatement = `
	INSERT INTO entries (id, title, content, mood, created_at)
	VALUES (?, ?, ?, ?, ?)
	`

	fetchEntriesStatement = `
	SELECT id, title, content, mood, created_at
	FROM entries
	WHERE mood = ? AND created_at >= ? AND created_at < ?
	ORDER BY created_at ASC, id ASC
	`
)

// InsertEntry stores one entry, assigning an ID and creation time when unset.
func (s *Store) InsertEntry(ctx context.Context, e reflection.JournalEntry) (reflection.JournalEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Mood == "" {
		return reflection.JournalEntry{}, errors.New("InsertEntry: mood is empty")
	}

	_, err := s.db.ExecContext(ctx, insertEntryStatement,
		e.ID, e.Title, e.Content, string(e.Mood), e.CreatedAt.UnixNano())
	if err != nil {
		return reflection.JournalEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	return e, nil
}

// FetchEntries returns the entries for one mood within [From, To), sorted
// ascending by creation time. A zero From means no lower bound; a zero To
// means now.
func (s *Store) FetchEntries(ctx context.Context, filter reflection.EntryFilter) ([]reflection.JournalEntry, error) {
	if filter.Mood == "" {
		return nil, errors.New("FetchEntries: mood is empty")
	}
	from := int64(0)
	if !filter.From.IsZero() {
		from = filter.From.UnixNano()
	}
	to := time.Now().UnixNano()
	if !filter.To.IsZero() {
		to = filter.To.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, fetchEntriesStatement, string(filter.Mood), from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	defer rows.Close()

	var entries []reflection.JournalEntry
	for rows.Next() {
		var e reflection.JournalEntry
		var mood string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &mood, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Mood = reflection.Mood(mood)
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
