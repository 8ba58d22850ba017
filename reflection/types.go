package reflection

import (
	"time"
)

// Mood is the emotional-category tag a journal entry was filed under.
type Mood string

// Timeframe names the window of entries a reflection covers. The cache key
// uses the label verbatim, so two requests for the same mood and timeframe
// share one cached reflection.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
	TimeframeAll   Timeframe = "all"
)

// Window translates the timeframe into a [from, to) range ending at now.
// TimeframeAll returns a zero from time.
func (tf Timeframe) Window(now time.Time) (from, to time.Time) {
	to = now
	switch tf {
	case TimeframeDay:
		from = now.AddDate(0, 0, -1)
	case TimeframeWeek:
		from = now.AddDate(0, 0, -7)
	case TimeframeMonth:
		from = now.AddDate(0, -1, 0)
	case TimeframeYear:
		from = now.AddDate(-1, 0, 0)
	default:
		from = time.Time{}
	}
	return from, to
}

// Depth is a named preset controlling how much of the corpus one reflection
// run is allowed to spend on the text-generation service.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// DepthPolicy is the concrete budget triple behind a Depth preset.
type DepthPolicy struct {
	MaxEntriesPerChunk int
	MaxTokensPerChunk  int
	MaxChunkCalls      int
}

// Policy maps the preset to its budgets. Unknown depths fall back to standard.
func (d Depth) Policy() DepthPolicy {
	switch d {
	case DepthQuick:
		return DepthPolicy{MaxEntriesPerChunk: 5, MaxTokensPerChunk: 2000, MaxChunkCalls: 1}
	case DepthDeep:
		return DepthPolicy{MaxEntriesPerChunk: 15, MaxTokensPerChunk: 6000, MaxChunkCalls: 5}
	default:
		return DepthPolicy{MaxEntriesPerChunk: 10, MaxTokensPerChunk: 4000, MaxChunkCalls: 3}
	}
}

// JournalEntry is one free-text entry as supplied by the journal store.
// The pipeline never mutates entries.
type JournalEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Mood      Mood      `json:"mood"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is a generation-call-sized slice of the entry corpus. Entries within
// a chunk are sorted ascending by creation time, and chunks cover the corpus
// in order.
type Chunk struct {
	ID              string         `json:"id"`
	Entries         []JournalEntry `json:"entries"`
	EstimatedTokens int            `json:"estimated_tokens"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	Index           int            `json:"index"`
	Total           int            `json:"total"`
}

// ChunkResult is the model-produced summary artifact for one chunk. Chunks
// whose service call failed produce no result.
type ChunkResult struct {
	Chunk         Chunk         `json:"chunk"`
	Summary       string        `json:"summary"`
	Themes        []string      `json:"themes,omitempty"`
	EmotionalTone string        `json:"emotional_tone,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	TokensUsed    int           `json:"tokens_used"`
}

// ProcessingMetadata records how a reflection was produced.
type ProcessingMetadata struct {
	TotalTokens       int    `json:"total_tokens"`
	ChunksProcessed   int    `json:"chunks_processed"`
	AvgTokensPerChunk int    `json:"avg_tokens_per_chunk"`
	Strategy          string `json:"strategy"`
}

// MoodReflection is the terminal artifact: a synthesized natural-language
// reflection over one mood and timeframe. Immutable once constructed.
type MoodReflection struct {
	ID                   string             `json:"id"`
	Mood                 Mood               `json:"mood"`
	Timeframe            Timeframe          `json:"timeframe"`
	Summary              string             `json:"summary"`
	KeyInsight           string             `json:"key_insight"`
	Themes               []string           `json:"themes,omitempty"`
	EmotionalProgression string             `json:"emotional_progression"`
	EntryCount           int                `json:"entry_count"`
	ProcessingTime       time.Duration      `json:"processing_time"`
	GeneratedAt          time.Time          `json:"generated_at"`
	Metadata             ProcessingMetadata `json:"metadata"`
}

// chunkResponse is the structured shape expected from a chunk-summary call.
type chunkResponse struct {
	Summary       string   `json:"summary"`
	Themes        []string `json:"themes"`
	EmotionalTone string   `json:"emotional_tone"`
}

// aggregateResponse is the structured shape expected from the aggregation call.
type aggregateResponse struct {
	Summary              string   `json:"summary"`
	KeyInsight           string   `json:"key_insight"`
	Themes               []string `json:"themes"`
	EmotionalProgression string   `json:"emotional_progression"`
}
