package reflection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/mood-reflect/reflection/fileutils"
)

// maxTokensPerEntry caps how much of a single entry is sent in a chunk
// payload; longer entries are head/tail truncated.
const maxTokensPerEntry = 500

// ProgressFunc reports chunk-processing progress after each call.
type ProgressFunc func(completed, total int)

// ChunkProcessor submits chunks to the text-generation service one at a time,
// in order. Failed chunks are logged and skipped; only a batch with zero
// surviving chunks fails the run.
type ChunkProcessor struct {
	gen     TextGenerator
	prompts PromptBuilder
	logger  *zap.Logger
}

func NewChunkProcessor(gen TextGenerator, prompts PromptBuilder, logger *zap.Logger) *ChunkProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prompts == nil {
		prompts = DefaultPromptBuilder{}
	}
	return &ChunkProcessor{gen: gen, prompts: prompts, logger: logger}
}

// Process runs every chunk sequentially and returns the results of the
// successful ones. It checks ctx at each chunk boundary; cancellation stops
// further submissions and returns ctx.Err(). If all chunks fail the whole run
// fails with ChunkProcessingFailedError.
func (p *ChunkProcessor) Process(ctx context.Context, chunks []Chunk, mood Mood, onProgress ProgressFunc) ([]ChunkResult, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]ChunkResult, 0, len(chunks))
	failed := 0
	var lastErr error

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.processChunk(ctx, chunk, mood)
		if err != nil {
			failed++
			lastErr = err
			p.logger.Warn("skipping failed chunk",
				zap.Int("chunk", i+1),
				zap.Int("total", len(chunks)),
				zap.Error(err))
		} else {
			results = append(results, res)
		}

		if onProgress != nil {
			onProgress(i+1, len(chunks))
		}
	}

	if len(results) == 0 {
		return nil, &ChunkProcessingFailedError{Failed: failed, Total: len(chunks), Err: lastErr}
	}
	return results, nil
}

func (p *ChunkProcessor) processChunk(ctx context.Context, chunk Chunk, mood Mood) (ChunkResult, error) {
	prompt := p.prompts.ChunkPrompt(ChunkPromptInput{
		Mood:        mood,
		EntriesText: buildChunkEntriesText(chunk.Entries),
		ChunkIndex:  chunk.Index,
		ChunkTotal:  chunk.Total,
	})

	start := time.Now()
	out, err := p.gen.Generate(ctx, GenerateRequest{
		Prompt:       prompt.Content,
		SystemPrompt: prompt.SystemPrompt,
		Operation:    "chunk_summary",
		Temperature:  chunkTemperature,
		MaxTokens:    chunkMaxTokens,
		Format:       prompt.Format,
	})
	if err != nil {
		return ChunkResult{}, err
	}

	var resp chunkResponse
	if err := fileutils.DecodeModelJSON(out, &resp); err != nil {
		return ChunkResult{}, &InvalidResponseError{Operation: "chunk_summary", Err: err}
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return ChunkResult{}, &InvalidResponseError{Operation: "chunk_summary", Err: fmt.Errorf("empty summary")}
	}

	return ChunkResult{
		Chunk:         chunk,
		Summary:       strings.TrimSpace(resp.Summary),
		Themes:        resp.Themes,
		EmotionalTone: strings.TrimSpace(resp.EmotionalTone),
		Elapsed:       time.Since(start),
		TokensUsed:    chunk.EstimatedTokens,
	}, nil
}

// buildChunkEntriesText renders entries as one row each, head/tail truncating
// any entry over the per-entry token cap.
func buildChunkEntriesText(entries []JournalEntry) string {
	var b strings.Builder
	for _, e := range entries {
		text := e.Content
		if EstimateTokens(text) > maxTokensPerEntry {
			text = TruncateHeadTail(text, maxTokensPerEntry)
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n",
			e.CreatedAt.Format("2006-01-02"),
			fileutils.SanitizeNewlines(title),
			fileutils.SanitizeNewlines(text))
	}
	return b.String()
}
