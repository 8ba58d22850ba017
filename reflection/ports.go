package reflection

import (
	"context"
	"time"
)

// ResponseFormat asks the text-generation service for structured JSON output
// matching a schema. A nil Schema means free-form text.
type ResponseFormat struct {
	Name   string
	Schema map[string]interface{}
}

// GenerateRequest is one call to the text-generation service.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string

	// Operation tags the call site ("chunk_summary", "reflection_aggregate")
	// for logging and quota attribution.
	Operation string

	Temperature float64
	MaxTokens   int
	Format      ResponseFormat
}

// TextGenerator is the external text-generation service. The pipeline does not
// interpret transport-level causes; any returned error is a per-call failure.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// EntryFilter selects entries for one mood within a [From, To) window.
// A zero From means no lower bound.
type EntryFilter struct {
	Mood Mood
	From time.Time
	To   time.Time
}

// EntryStore supplies journal entries already filtered to a mood and window,
// sorted ascending by creation time.
type EntryStore interface {
	FetchEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, error)
}

// Prompt is the fully assembled payload for one generation call.
type Prompt struct {
	Content      string
	SystemPrompt string
	Format       ResponseFormat
}

// ChunkPromptInput carries everything the prompt builder needs for one
// chunk-summary call. EntriesText is pre-truncated by the processor.
type ChunkPromptInput struct {
	Mood        Mood
	EntriesText string
	ChunkIndex  int // zero-based
	ChunkTotal  int
}

// AggregatePromptInput carries the ordered chunk summaries for the final
// aggregation call.
type AggregatePromptInput struct {
	Mood       Mood
	Timeframe  Timeframe
	EntryCount int
	Summaries  []string
}

// PromptBuilder assembles the literal prompt text for the two call sites.
// The pipeline treats it as opaque; callers may inject their own.
type PromptBuilder interface {
	ChunkPrompt(in ChunkPromptInput) Prompt
	AggregationPrompt(in AggregatePromptInput) Prompt
}
