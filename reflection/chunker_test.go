package reflection

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// makeEntries builds n short entries spaced one day apart, oldest first.
func makeEntries(n int, start time.Time) []JournalEntry {
	entries := make([]JournalEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, JournalEntry{
			ID:        fmt.Sprintf("e%03d", i),
			Title:     fmt.Sprintf("day %d", i),
			Content:   fmt.Sprintf("entry number %d with a little bit of text", i),
			Mood:      "anxious",
			CreatedAt: start.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	return entries
}

func TestSortEntriesAscending_TiesBreakByID(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []JournalEntry{
		{ID: "b", CreatedAt: ts},
		{ID: "a", CreatedAt: ts},
		{ID: "c", CreatedAt: ts.Add(-time.Hour)},
	}
	SortEntriesAscending(entries)
	if entries[0].ID != "c" || entries[1].ID != "a" || entries[2].ID != "b" {
		t.Fatalf("order=%s,%s,%s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestBuildChunks_SplitsOnEntryCount(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := makeEntries(12, start)
	chunks := BuildChunks(entries, DepthStandard.Policy())

	if len(chunks) != 2 {
		t.Fatalf("chunks=%d want 2", len(chunks))
	}
	if len(chunks[0].Entries) != 10 || len(chunks[1].Entries) != 2 {
		t.Fatalf("sizes=%d,%d want 10,2", len(chunks[0].Entries), len(chunks[1].Entries))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d Index=%d", i, c.Index)
		}
		if c.Total != 2 {
			t.Fatalf("chunk %d Total=%d want 2", i, c.Total)
		}
		if c.ID == "" {
			t.Fatalf("chunk %d has no ID", i)
		}
		if !c.Start.Equal(c.Entries[0].CreatedAt) || !c.End.Equal(c.Entries[len(c.Entries)-1].CreatedAt) {
			t.Fatalf("chunk %d window does not match entries", i)
		}
	}
	if !chunks[1].Start.After(chunks[0].End.Add(-time.Nanosecond)) {
		t.Fatalf("chunks out of chronological order")
	}
}

func TestBuildChunks_SplitsOnTokenBudget(t *testing.T) {
	t.Parallel()

	// Each entry estimates to 1000 tokens; the quick budget is 2000.
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []JournalEntry
	for i := 0; i < 4; i++ {
		entries = append(entries, JournalEntry{
			ID:        fmt.Sprintf("big%d", i),
			Content:   strings.Repeat("x", 3600),
			CreatedAt: start.Add(time.Duration(i) * time.Hour),
		})
	}
	chunks := BuildChunks(entries, DepthQuick.Policy())

	if len(chunks) != 2 {
		t.Fatalf("chunks=%d want 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Entries) != 2 {
			t.Fatalf("chunk %d size=%d want 2", i, len(c.Entries))
		}
		if c.EstimatedTokens != 2000 {
			t.Fatalf("chunk %d tokens=%d want 2000", i, c.EstimatedTokens)
		}
	}
}

func TestBuildChunks_OversizedEntryGetsOwnChunk(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []JournalEntry{
		{ID: "a", Content: "tiny", CreatedAt: start},
		{ID: "huge", Content: strings.Repeat("x", 40000), CreatedAt: start.Add(time.Hour)},
		{ID: "b", Content: "tiny", CreatedAt: start.Add(2 * time.Hour)},
	}
	chunks := BuildChunks(entries, DepthStandard.Policy())

	if len(chunks) != 3 {
		t.Fatalf("chunks=%d want 3", len(chunks))
	}
	if len(chunks[1].Entries) != 1 || chunks[1].Entries[0].ID != "huge" {
		t.Fatalf("oversized entry not isolated: %+v", chunks[1].Entries)
	}
}

func TestBuildChunks_EveryEntryExactlyOnce(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := makeEntries(27, start)
	chunks := BuildChunks(entries, DepthDeep.Policy())

	seen := map[string]int{}
	for _, c := range chunks {
		for _, e := range c.Entries {
			seen[e.ID]++
		}
	}
	if len(seen) != len(entries) {
		t.Fatalf("covered %d of %d entries", len(seen), len(entries))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("entry %s appears %d times", id, n)
		}
	}
}

func TestBuildChunks_Empty(t *testing.T) {
	t.Parallel()

	if chunks := BuildChunks(nil, DepthStandard.Policy()); chunks != nil {
		t.Fatalf("chunks=%v want nil", chunks)
	}
}
