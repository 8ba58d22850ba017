package reflection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(gen TextGenerator, opts ServiceOptions) *Service {
	return NewService(gen, nil, NewCache(nil, time.Hour, nil), nil, opts)
}

func TestGenerateReflection_RejectsEmptyCorpus(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{})

	_, err := svc.GenerateReflection(context.Background(), "anxious", nil, TimeframeWeek, DepthStandard)
	var ie *InsufficientEntriesError
	if !errors.As(err, &ie) {
		t.Fatalf("err=%v want InsufficientEntriesError", err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("generator called %d times before validation", len(gen.calls))
	}
	if st := svc.Status(); st.State != StateFailed || st.Err == nil {
		t.Fatalf("status=%+v", st)
	}
}

func TestGenerateReflection_EndToEnd(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{})
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := makeEntries(12, start)

	got, err := svc.GenerateReflection(context.Background(), "anxious", entries, TimeframeWeek, DepthStandard)
	if err != nil {
		t.Fatalf("GenerateReflection: %v", err)
	}

	if n := len(gen.callsFor("chunk_summary")); n != 2 {
		t.Fatalf("chunk calls=%d want 2", n)
	}
	if n := len(gen.callsFor("reflection_aggregate")); n != 1 {
		t.Fatalf("aggregate calls=%d want 1", n)
	}
	if got.EntryCount != 12 {
		t.Fatalf("EntryCount=%d want 12", got.EntryCount)
	}
	if got.Metadata.ChunksProcessed != 2 {
		t.Fatalf("ChunksProcessed=%d want 2", got.Metadata.ChunksProcessed)
	}
	if got.Metadata.Strategy != StrategyLabel {
		t.Fatalf("Strategy=%q", got.Metadata.Strategy)
	}
	if got.ProcessingTime <= 0 {
		t.Fatalf("ProcessingTime=%v", got.ProcessingTime)
	}

	st := svc.Status()
	if st.State != StateDone || st.Progress != 1 {
		t.Fatalf("status=%+v", st)
	}
}

func TestGenerateReflection_ServesFromCache(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{})
	entries := makeEntries(12, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.GenerateReflection(ctx, "anxious", entries, TimeframeWeek, DepthStandard)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.GenerateReflection(ctx, "anxious", entries, TimeframeWeek, DepthStandard)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("cache miss: ids %q vs %q", first.ID, second.ID)
	}
	if n := len(gen.callsFor("reflection_aggregate")); n != 1 {
		t.Fatalf("aggregate calls=%d want 1", n)
	}

	// A different timeframe is a different key.
	if _, err := svc.GenerateReflection(ctx, "anxious", entries, TimeframeMonth, DepthStandard); err != nil {
		t.Fatalf("month: %v", err)
	}
	if n := len(gen.callsFor("reflection_aggregate")); n != 2 {
		t.Fatalf("aggregate calls=%d want 2", n)
	}
}

func TestRegenerateReflection_BypassesCache(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{})
	entries := makeEntries(12, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.GenerateReflection(ctx, "anxious", entries, TimeframeWeek, DepthStandard); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.RegenerateReflection(ctx, "anxious", entries, TimeframeWeek, DepthStandard); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if n := len(gen.callsFor("reflection_aggregate")); n != 2 {
		t.Fatalf("aggregate calls=%d want 2", n)
	}
}

func TestGenerateReflection_SamplesOversizedCorpus(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{SampleThreshold: 10, SampleTarget: 8})
	entries := makeEntries(20, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.GenerateReflection(context.Background(), "anxious", entries, TimeframeMonth, DepthStandard)
	if err != nil {
		t.Fatalf("GenerateReflection: %v", err)
	}
	if got.EntryCount > 8 {
		t.Fatalf("EntryCount=%d exceeds sample target 8", got.EntryCount)
	}
	if n := len(gen.callsFor("chunk_summary")); n != 1 {
		t.Fatalf("chunk calls=%d want 1", n)
	}
}

func TestGenerateReflection_HonorsDepthCallBudget(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{})
	// 30 entries chunk into 6 under quick's 5-entry chunks, but quick allows
	// exactly one chunk call.
	entries := makeEntries(30, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.GenerateReflection(context.Background(), "anxious", entries, TimeframeAll, DepthQuick)
	if err != nil {
		t.Fatalf("GenerateReflection: %v", err)
	}
	if n := len(gen.callsFor("chunk_summary")); n != 1 {
		t.Fatalf("chunk calls=%d want 1", n)
	}
	if got.Metadata.ChunksProcessed != 1 {
		t.Fatalf("ChunksProcessed=%d want 1", got.Metadata.ChunksProcessed)
	}
}

func TestGenerateReflection_ToleratesPartialChunkFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			if req.Operation == "chunk_summary" && call == 1 {
				return "", errors.New("boom")
			}
			if req.Operation == "chunk_summary" {
				return validChunkJSON, nil
			}
			return validAggJSON, nil
		},
	}
	svc := newTestService(gen, ServiceOptions{})
	entries := makeEntries(12, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.GenerateReflection(context.Background(), "anxious", entries, TimeframeWeek, DepthStandard)
	if err != nil {
		t.Fatalf("partial failure should not abort: %v", err)
	}
	if got.Metadata.ChunksProcessed != 1 {
		t.Fatalf("ChunksProcessed=%d want 1", got.Metadata.ChunksProcessed)
	}
	if got.EntryCount != 12 {
		t.Fatalf("EntryCount=%d want 12", got.EntryCount)
	}
}

func TestGenerateReflection_AllChunksFailedFailsRun(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(req GenerateRequest, call int) (string, error) {
			if req.Operation == "chunk_summary" {
				return "", errors.New("boom")
			}
			return validAggJSON, nil
		},
	}
	svc := newTestService(gen, ServiceOptions{})
	entries := makeEntries(12, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.GenerateReflection(context.Background(), "anxious", entries, TimeframeWeek, DepthStandard)
	var cpf *ChunkProcessingFailedError
	if !errors.As(err, &cpf) {
		t.Fatalf("err=%v want ChunkProcessingFailedError", err)
	}
	if n := len(gen.callsFor("reflection_aggregate")); n != 0 {
		t.Fatalf("aggregation ran after total chunk failure")
	}
	if st := svc.Status(); st.State != StateFailed {
		t.Fatalf("status=%+v", st)
	}
}

func TestGenerateReflection_CancellationPassedThrough(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	svc := newTestService(gen, ServiceOptions{})
	entries := makeEntries(12, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GenerateReflection(ctx, "anxious", entries, TimeframeWeek, DepthStandard)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestGenerateReflection_CacheWriteFailureKeepsResult(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	cache := NewCache(failingCacheStore{}, time.Hour, nil)
	svc := NewService(gen, nil, cache, nil, ServiceOptions{})
	entries := makeEntries(12, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.GenerateReflection(context.Background(), "anxious", entries, TimeframeWeek, DepthStandard)
	if err != nil {
		t.Fatalf("cache write failure must not discard the reflection: %v", err)
	}
	if got.Summary == "" {
		t.Fatalf("empty reflection returned")
	}
}

// failingCacheStore errors on every persistent operation.
type failingCacheStore struct{}

func (failingCacheStore) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	return CacheEntry{}, false, errors.New("store down")
}

func (failingCacheStore) Put(ctx context.Context, entry CacheEntry) error {
	return errors.New("store down")
}

func (failingCacheStore) Delete(ctx context.Context, key string) error {
	return errors.New("store down")
}

func (failingCacheStore) Clear(ctx context.Context) error {
	return errors.New("store down")
}

func (failingCacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, errors.New("store down")
}
