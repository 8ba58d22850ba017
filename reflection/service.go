package reflection

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// minEntries is the smallest corpus a reflection can be generated from.
const minEntries = 1

// State names where a pipeline run currently is.
type State string

const (
	StateIdle             State = "idle"
	StateCheckingCache    State = "checking_cache"
	StateSampling         State = "sampling"
	StateChunking         State = "chunking"
	StateProcessingChunks State = "processing_chunks"
	StateAggregating      State = "aggregating"
	StateCaching          State = "caching"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Status is a snapshot of the orchestrator's state machine. Progress is a
// fraction in [0,1]; during chunk processing it grows proportionally to
// chunks completed.
type Status struct {
	State    State
	Progress float64
	Err      error
}

// Service is the pipeline orchestrator and the public entry point: it
// sequences sampling, chunking, chunk processing, aggregation, and caching.
// One Service runs one pipeline at a time; collaborators are injected rather
// than reached through ambient state.
type Service struct {
	processor  *ChunkProcessor
	aggregator *Aggregator
	cache      *Cache
	logger     *zap.Logger

	sampleThreshold int
	sampleTarget    int

	mu     sync.Mutex
	status Status
}

// ServiceOptions tunes the sampler; zero values use the defaults.
type ServiceOptions struct {
	SampleThreshold int
	SampleTarget    int
}

// NewService wires the pipeline. cache may be nil to disable caching
// entirely; logger may be nil.
func NewService(gen TextGenerator, prompts PromptBuilder, cache *Cache, logger *zap.Logger, opts ServiceOptions) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SampleThreshold <= 0 {
		opts.SampleThreshold = DefaultSampleThreshold
	}
	if opts.SampleTarget <= 0 {
		opts.SampleTarget = DefaultSampleTarget
	}
	return &Service{
		processor:       NewChunkProcessor(gen, prompts, logger),
		aggregator:      NewAggregator(gen, prompts),
		cache:           cache,
		logger:          logger,
		sampleThreshold: opts.SampleThreshold,
		sampleTarget:    opts.SampleTarget,
		status:          Status{State: StateIdle},
	}
}

// Status returns the current state machine snapshot.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) setState(state State, progress float64) {
	s.mu.Lock()
	s.status = Status{State: state, Progress: progress}
	s.mu.Unlock()
}

func (s *Service) fail(err error) error {
	s.mu.Lock()
	s.status = Status{State: StateFailed, Err: err}
	s.mu.Unlock()
	return err
}

// GenerateReflection produces the reflection for (mood, timeframe, depth)
// over the supplied entries, serving from cache when a fresh entry exists.
func (s *Service) GenerateReflection(ctx context.Context, mood Mood, entries []JournalEntry, timeframe Timeframe, depth Depth) (MoodReflection, error) {
	if len(entries) < minEntries {
		err := &InsufficientEntriesError{Minimum: minEntries, Actual: len(entries)}
		return MoodReflection{}, s.fail(err)
	}

	key := CacheKey(mood, timeframe)
	s.setState(StateCheckingCache, 0)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.logger.Debug("reflection cache hit", zap.String("key", key))
			s.setState(StateDone, 1)
			return cached, nil
		}
	}

	return s.run(ctx, key, mood, entries, timeframe, depth)
}

// RegenerateReflection invalidates any cached reflection for the key first,
// then runs the normal pipeline, guaranteeing a fresh generation.
func (s *Service) RegenerateReflection(ctx context.Context, mood Mood, entries []JournalEntry, timeframe Timeframe, depth Depth) (MoodReflection, error) {
	if len(entries) < minEntries {
		err := &InsufficientEntriesError{Minimum: minEntries, Actual: len(entries)}
		return MoodReflection{}, s.fail(err)
	}

	key := CacheKey(mood, timeframe)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.setState(StateCheckingCache, 0)
	return s.run(ctx, key, mood, entries, timeframe, depth)
}

// ClearCache wipes both cache tiers.
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

func (s *Service) run(ctx context.Context, key string, mood Mood, entries []JournalEntry, timeframe Timeframe, depth Depth) (MoodReflection, error) {
	start := time.Now()
	policy := depth.Policy()

	s.setState(StateSampling, 0)
	working := append([]JournalEntry(nil), entries...)
	if len(working) > s.sampleThreshold {
		working = SampleEntries(working, s.sampleThreshold, s.sampleTarget)
		s.logger.Info("sampled oversized corpus",
			zap.Int("from", len(entries)),
			zap.Int("to", len(working)))
	}

	s.setState(StateChunking, 0)
	SortEntriesAscending(working)
	chunks := BuildChunks(working, policy)

	// The depth preset caps how many chunk calls one run may spend. An
	// over-long chunk list is thinned back through the sampler so the kept
	// entries still span the window.
	if policy.MaxChunkCalls > 0 && len(chunks) > policy.MaxChunkCalls {
		budget := policy.MaxChunkCalls * policy.MaxEntriesPerChunk
		s.logger.Info("corpus exceeds depth call budget",
			zap.Int("chunks", len(chunks)),
			zap.Int("max_calls", policy.MaxChunkCalls),
			zap.Int("entry_budget", budget))
		working = SampleEntries(working, budget, budget)
		SortEntriesAscending(working)
		chunks = BuildChunks(working, policy)
		if len(chunks) > policy.MaxChunkCalls {
			chunks = chunks[:policy.MaxChunkCalls]
			for i := range chunks {
				chunks[i].Total = len(chunks)
			}
		}
	}

	s.setState(StateProcessingChunks, 0)
	results, err := s.processor.Process(ctx, chunks, mood, func(completed, total int) {
		s.setState(StateProcessingChunks, float64(completed)/float64(total))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return MoodReflection{}, s.fail(err)
		}
		return MoodReflection{}, s.fail(wrapPipelineError(err))
	}

	s.setState(StateAggregating, 1)
	reflection, err := s.aggregator.Aggregate(ctx, mood, timeframe, len(working), results)
	if err != nil {
		return MoodReflection{}, s.fail(wrapPipelineError(err))
	}
	reflection.ProcessingTime = time.Since(start)

	s.setState(StateCaching, 1)
	if s.cache != nil {
		if err := s.cache.Put(ctx, key, reflection); err != nil {
			// A cache write failure never discards a finished reflection.
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	s.setState(StateDone, 1)
	return reflection, nil
}

// wrapPipelineError leaves typed pipeline errors alone and folds anything
// else into the ProcessingFailed catch-all.
func wrapPipelineError(err error) error {
	var s Suggester
	if errors.As(err, &s) {
		return err
	}
	return &ProcessingFailedError{Reason: "unexpected failure", Err: err}
}
