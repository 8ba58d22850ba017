package reflection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/mood-reflect/reflection/fileutils"
)

// StrategyLabel names the generation strategy recorded in reflection metadata.
const StrategyLabel = "chunked-sequential"

// Aggregator combines chunk-level summaries into the final reflection via a
// single generation call.
type Aggregator struct {
	gen     TextGenerator
	prompts PromptBuilder
	now     func() time.Time
}

func NewAggregator(gen TextGenerator, prompts PromptBuilder) *Aggregator {
	if prompts == nil {
		prompts = DefaultPromptBuilder{}
	}
	return &Aggregator{gen: gen, prompts: prompts, now: time.Now}
}

// Aggregate issues the aggregation call over the successful chunk results (in
// chunk order) and parses the response into a MoodReflection. Malformed or
// empty output fails with AggregationFailedError; no retry happens here.
func (a *Aggregator) Aggregate(ctx context.Context, mood Mood, timeframe Timeframe, entryCount int, results []ChunkResult) (MoodReflection, error) {
	summaries := make([]string, 0, len(results))
	totalTokens := 0
	for _, r := range results {
		summaries = append(summaries, r.Summary)
		totalTokens += r.TokensUsed
	}

	prompt := a.prompts.AggregationPrompt(AggregatePromptInput{
		Mood:       mood,
		Timeframe:  timeframe,
		EntryCount: entryCount,
		Summaries:  summaries,
	})

	out, err := a.gen.Generate(ctx, GenerateRequest{
		Prompt:       prompt.Content,
		SystemPrompt: prompt.SystemPrompt,
		Operation:    "reflection_aggregate",
		Temperature:  aggregateTemperature,
		MaxTokens:    aggregateMaxTokens,
		Format:       prompt.Format,
	})
	if err != nil {
		return MoodReflection{}, &AggregationFailedError{Err: err}
	}

	var resp aggregateResponse
	if err := fileutils.DecodeModelJSON(out, &resp); err != nil {
		return MoodReflection{}, &AggregationFailedError{Err: &InvalidResponseError{Operation: "reflection_aggregate", Err: err}}
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return MoodReflection{}, &AggregationFailedError{Err: fmt.Errorf("empty summary")}
	}

	avg := 0
	if len(results) > 0 {
		avg = totalTokens / len(results)
	}

	return MoodReflection{
		ID:                   uuid.NewString(),
		Mood:                 mood,
		Timeframe:            timeframe,
		Summary:              strings.TrimSpace(resp.Summary),
		KeyInsight:           strings.TrimSpace(resp.KeyInsight),
		Themes:               resp.Themes,
		EmotionalProgression: strings.TrimSpace(resp.EmotionalProgression),
		EntryCount:           entryCount,
		GeneratedAt:          a.now().UTC(),
		Metadata: ProcessingMetadata{
			TotalTokens:       totalTokens,
			ChunksProcessed:   len(results),
			AvgTokensPerChunk: avg,
			Strategy:          StrategyLabel,
		},
	}, nil
}
