package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/mood-reflect/journal"
	"github.com/theimaginaryfoundation/mood-reflect/reflection"
	"github.com/theimaginaryfoundation/mood-reflect/reflection/fileutils"
	"github.com/theimaginaryfoundation/mood-reflect/reflection/provider"
)

// indexRecord is the one-line-per-reflection row appended to the
// reflections index when -index is set.
type indexRecord struct {
	ID          string    `json:"id"`
	Mood        string    `json:"mood"`
	Timeframe   string    `json:"timeframe"`
	Depth       string    `json:"depth"`
	EntryCount  int       `json:"entry_count"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     string    `json:"summary"`
	OutPath     string    `json:"out_path,omitempty"`
}

func main() {
	fs := flag.NewFlagSet("reflect", flag.ExitOnError)
	cfg, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: missing API key (set OPENAI_API_KEY or pass -api-key)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if s := reflection.SuggestionFor(err); s != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", s)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, apiKey string) error {
	logger := zap.NewNop()
	if cfg.Verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer logger.Sync()
	}

	mood := reflection.Mood(cfg.Mood)
	timeframe := reflection.Timeframe(cfg.Timeframe)
	depth := reflection.Depth(cfg.Depth)

	entries, err := loadEntries(ctx, cfg, mood, timeframe)
	if err != nil {
		return err
	}
	logger.Info("loaded entries",
		zap.Int("count", len(entries)),
		zap.String("mood", cfg.Mood),
		zap.String("timeframe", cfg.Timeframe))

	var store reflection.CacheStore
	if cfg.CachePath != "" {
		store, err = reflection.NewFileCacheStore(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open cache file: %w", err)
		}
	}
	cache := reflection.NewCache(store, reflection.DefaultCacheTTL, logger)

	gen, err := provider.NewOpenAIGenerator(apiKey, cfg.Model)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	svc := reflection.NewService(gen, nil, cache, logger, reflection.ServiceOptions{
		SampleThreshold: cfg.SampleThreshold,
		SampleTarget:    cfg.SampleTarget,
	})

	start := time.Now()
	var out reflection.MoodReflection
	if cfg.Regenerate {
		out, err = svc.RegenerateReflection(ctx, mood, entries, timeframe, depth)
	} else {
		out, err = svc.GenerateReflection(ctx, mood, entries, timeframe, depth)
	}
	if err != nil {
		return err
	}
	logger.Info("reflection ready",
		zap.String("id", out.ID),
		zap.Int("entry_count", out.EntryCount),
		zap.Int("chunks", out.Metadata.ChunksProcessed),
		zap.Duration("elapsed", time.Since(start)))

	if err := writeReflection(cfg, out); err != nil {
		return err
	}
	if cfg.IndexPath != "" {
		if err := appendIndexRecord(cfg, out); err != nil {
			return fmt.Errorf("append index record: %w", err)
		}
	}
	return nil
}

// loadEntries reads the corpus from either the -in JSON file or the -db
// journal database. File entries that carry a mood tag are filtered to the
// requested mood; untagged entries are assumed pre-filtered by the caller.
func loadEntries(ctx context.Context, cfg Config, mood reflection.Mood, timeframe reflection.Timeframe) ([]reflection.JournalEntry, error) {
	if cfg.InPath != "" {
		data, err := os.ReadFile(cfg.InPath)
		if err != nil {
			return nil, fmt.Errorf("read entries file: %w", err)
		}
		var all []reflection.JournalEntry
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, fmt.Errorf("parse entries file %s: %w", cfg.InPath, err)
		}
		from, to := timeframe.Window(time.Now().UTC())
		entries := make([]reflection.JournalEntry, 0, len(all))
		for _, e := range all {
			if e.Mood != "" && e.Mood != mood {
				continue
			}
			if !from.IsZero() && e.CreatedAt.Before(from) {
				continue
			}
			if e.CreatedAt.After(to) {
				continue
			}
			entries = append(entries, e)
		}
		return entries, nil
	}

	db, err := journal.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	defer db.Close()

	from, to := timeframe.Window(time.Now().UTC())
	return journal.NewStore(db).FetchEntries(ctx, reflection.EntryFilter{
		Mood: mood,
		From: from,
		To:   to,
	})
}

func writeReflection(cfg Config, out reflection.MoodReflection) error {
	var data []byte
	var err error
	if cfg.Pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}
	if cfg.OutPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := fileutils.WriteFileAtomicSameDir(cfg.OutPath, data, 0o644); err != nil {
		return fmt.Errorf("write reflection: %w", err)
	}
	return nil
}

func appendIndexRecord(cfg Config, out reflection.MoodReflection) error {
	rec := indexRecord{
		ID:          out.ID,
		Mood:        string(out.Mood),
		Timeframe:   string(out.Timeframe),
		Depth:       cfg.Depth,
		EntryCount:  out.EntryCount,
		GeneratedAt: out.GeneratedAt,
		Summary:     fileutils.Truncate(fileutils.SanitizeNewlines(out.Summary), 200),
		OutPath:     cfg.OutPath,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(cfg.IndexPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Close()
}
