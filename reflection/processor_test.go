package reflection

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	validChunkJSON = `{"summary":"a tense span of days","themes":["work pressure","poor sleep"],"emotional_tone":"strained"}`
	validAggJSON   = `{"summary":"the week carried a steady undercurrent of worry","key_insight":"the anxiety tracks unfinished work","themes":["work pressure","poor sleep","avoidance"],"emotional_progression":"tension built early and eased toward the end"}`
)

// fakeGenerator records every request and answers via respond, or with a
// canned valid payload per operation when respond is nil.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []GenerateRequest
	respond func(req GenerateRequest, call int) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	n := len(g.calls)
	g.mu.Unlock()

	if g.respond != nil {
		return g.respond(req, n)
	}
	if req.Operation == "chunk_summary" {
		return validChunkJSON, nil
	}
	return validAggJSON, nil
}

func (g *fakeGenerator) callsFor(operation string) []GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []GenerateRequest
	for _, c := range g.calls {
		if c.Operation == operation {
			out = append(out, c)
		}
	}
	return out
}

func testChunks(t *testing.T, n int) []Chunk {
	t.Helper()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	policy := DepthPolicy{MaxEntriesPerChunk: 1, MaxTokensPerChunk: 100000, MaxChunkCalls: n}
	chunks := BuildChunks(makeEntries(n, start), policy)
	if len(chunks) != n {
		t.Fatalf("built %d chunks, want %d", len(chunks), n)
	}
	return chunks
}

func TestProcess_AllChunksSucceed(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := NewChunkProcessor(gen, nil, nil)
	chunks := testChunks(t, 3)

	results, err := p.Process(context.Background(), chunks, "anxious", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results=%d want 3", len(results))
	}
	for i, r := range results {
		if r.Summary != "a tense span of days" {
			t.Fatalf("result %d summary=%q", i, r.Summary)
		}
		if r.EmotionalTone != "strained" {
			t.Fatalf("result %d tone=%q", i, r.EmotionalTone)
		}
		if r.TokensUsed != chunks[i].EstimatedTokens {
			t.Fatalf("result %d tokens=%d want %d", i, r.TokensUsed, chunks[i].EstimatedTokens)
		}
	}
	if got := len(gen.callsFor("chunk_summary")); got != 3 {
		t.Fatalf("chunk calls=%d want 3", got)
	}
}

func TestProcess_SkipsFailedChunkInBatch(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			if call == 2 {
				return "", errors.New("boom")
			}
			return validChunkJSON, nil
		},
	}
	p := NewChunkProcessor(gen, nil, nil)
	chunks := testChunks(t, 3)

	results, err := p.Process(context.Background(), chunks, "anxious", nil)
	if err != nil {
		t.Fatalf("Process should tolerate one failed chunk: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d want 2", len(results))
	}
	if results[0].Chunk.Index != 0 || results[1].Chunk.Index != 2 {
		t.Fatalf("kept chunks %d,%d want 0,2", results[0].Chunk.Index, results[1].Chunk.Index)
	}
}

func TestProcess_SoleChunkFailureIsFatal(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			return "", errors.New("boom")
		},
	}
	p := NewChunkProcessor(gen, nil, nil)

	_, err := p.Process(context.Background(), testChunks(t, 1), "anxious", nil)
	var cpf *ChunkProcessingFailedError
	if !errors.As(err, &cpf) {
		t.Fatalf("err=%v want ChunkProcessingFailedError", err)
	}
	if cpf.Failed != 1 || cpf.Total != 1 {
		t.Fatalf("failed=%d total=%d want 1,1", cpf.Failed, cpf.Total)
	}
	if cpf.Err == nil {
		t.Fatalf("underlying cause dropped")
	}
}

func TestProcess_AllChunksFailed(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			return "", errors.New("boom")
		},
	}
	p := NewChunkProcessor(gen, nil, nil)

	_, err := p.Process(context.Background(), testChunks(t, 3), "anxious", nil)
	var cpf *ChunkProcessingFailedError
	if !errors.As(err, &cpf) {
		t.Fatalf("err=%v want ChunkProcessingFailedError", err)
	}
	if cpf.Failed != 3 || cpf.Total != 3 {
		t.Fatalf("failed=%d total=%d", cpf.Failed, cpf.Total)
	}
	if SuggestionFor(err) != "try fewer entries or Quick mode" {
		t.Fatalf("suggestion=%q", SuggestionFor(err))
	}
}

func TestProcess_InvalidResponse(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			return "not json at all", nil
		},
	}
	p := NewChunkProcessor(gen, nil, nil)

	_, err := p.Process(context.Background(), testChunks(t, 1), "anxious", nil)
	var ir *InvalidResponseError
	if !errors.As(err, &ir) {
		t.Fatalf("err=%v want InvalidResponseError", err)
	}
	if ir.Operation != "chunk_summary" {
		t.Fatalf("operation=%q", ir.Operation)
	}
}

func TestProcess_EmptySummaryRejected(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			return `{"summary":"   ","themes":[],"emotional_tone":""}`, nil
		},
	}
	p := NewChunkProcessor(gen, nil, nil)

	_, err := p.Process(context.Background(), testChunks(t, 1), "anxious", nil)
	var ir *InvalidResponseError
	if !errors.As(err, &ir) {
		t.Fatalf("err=%v want InvalidResponseError", err)
	}
}

func TestProcess_ReportsSequentialProgress(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := NewChunkProcessor(gen, nil, nil)

	var progress [][2]int
	_, err := p.Process(context.Background(), testChunks(t, 3), "anxious", func(completed, total int) {
		progress = append(progress, [2]int{completed, total})
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(progress) != len(want) {
		t.Fatalf("progress=%v", progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress[%d]=%v want %v", i, progress[i], want[i])
		}
	}
}

func TestProcess_StopsOnCancellation(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := NewChunkProcessor(gen, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, testChunks(t, 3), "anxious", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("calls after cancel=%d", len(gen.calls))
	}
}

func TestProcess_PromptCarriesMoodAndPosition(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := NewChunkProcessor(gen, nil, nil)

	if _, err := p.Process(context.Background(), testChunks(t, 2), "grateful", nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	calls := gen.callsFor("chunk_summary")
	if len(calls) != 2 {
		t.Fatalf("calls=%d", len(calls))
	}
	if !strings.Contains(calls[0].Prompt, "mood=grateful") {
		t.Fatalf("prompt missing mood: %q", calls[0].Prompt)
	}
	if !strings.Contains(calls[0].Prompt, "chunk 1 of 2") || !strings.Contains(calls[1].Prompt, "chunk 2 of 2") {
		t.Fatalf("prompts missing chunk positions")
	}
	for _, c := range calls {
		if c.Format.Schema == nil {
			t.Fatalf("chunk call missing response schema")
		}
		if c.SystemPrompt == "" {
			t.Fatalf("chunk call missing system prompt")
		}
	}
}

func TestProcess_TruncatesOversizedEntry(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := NewChunkProcessor(gen, nil, nil)

	huge := JournalEntry{
		ID:        "huge",
		Content:   strings.Repeat("head", 1000) + strings.Repeat("tail", 1000),
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	chunks := BuildChunks([]JournalEntry{huge}, DepthStandard.Policy())

	if _, err := p.Process(context.Background(), chunks, "anxious", nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	prompt := gen.calls[0].Prompt
	if !strings.Contains(prompt, "content trimmed") {
		t.Fatalf("oversized entry not truncated")
	}
	if len(prompt) >= len(huge.Content) {
		t.Fatalf("prompt not shortened: %d", len(prompt))
	}
}

func TestProcess_NoChunks(t *testing.T) {
	t.Parallel()

	p := NewChunkProcessor(&fakeGenerator{}, nil, nil)
	results, err := p.Process(context.Background(), nil, "anxious", nil)
	if err != nil || results != nil {
		t.Fatalf("results=%v err=%v", results, err)
	}
}
