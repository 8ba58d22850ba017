package reflection

import (
	"sort"

	"github.com/google/uuid"
)

// SortEntriesAscending orders entries chronologically ascending, breaking ties
// by ID so repeated runs over the same corpus are stable.
func SortEntriesAscending(entries []JournalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

// BuildChunks partitions a chronologically sorted entry list into ordered
// chunks covering every entry exactly once. A new chunk starts whenever the
// next entry would push the running token estimate over the policy's budget
// or the chunk already holds the max entry count. A chunk always receives at
// least one entry, even if that entry alone exceeds the budget.
func BuildChunks(entries []JournalEntry, policy DepthPolicy) []Chunk {
	if len(entries) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []JournalEntry
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			ID:              uuid.NewString(),
			Entries:         current,
			EstimatedTokens: currentTokens,
			Start:           current[0].CreatedAt,
			End:             current[len(current)-1].CreatedAt,
			Index:           len(chunks),
		})
		current = nil
		currentTokens = 0
	}

	for _, e := range entries {
		cost := EstimateEntryTokens(e)
		if len(current) > 0 &&
			(currentTokens+cost > policy.MaxTokensPerChunk || len(current) >= policy.MaxEntriesPerChunk) {
			flush()
		}
		current = append(current, e)
		currentTokens += cost
	}
	flush()

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}
