package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
)

type Config struct {
	InPath string
	DBPath string

	Mood      string
	Timeframe string
	Depth     string

	OutPath   string
	IndexPath string
	CachePath string

	Model  string
	APIKey string

	Regenerate bool
	Pretty     bool
	Verbose    bool

	SampleThreshold int
	SampleTarget    int
}

func (c Config) Validate() error {
	if c.InPath == "" && c.DBPath == "" {
		return errors.New("missing -in or -db")
	}
	if c.InPath != "" && c.DBPath != "" {
		return errors.New("-in and -db are mutually exclusive")
	}
	if c.Mood == "" {
		return errors.New("missing -mood")
	}
	switch c.Timeframe {
	case "day", "week", "month", "year", "all":
	default:
		return errors.New("-timeframe must be one of day, week, month, year, all")
	}
	switch c.Depth {
	case "quick", "standard", "deep":
	default:
		return errors.New("-depth must be one of quick, standard, deep")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.SampleThreshold < 0 || c.SampleTarget < 0 {
		return errors.New("sample limits must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Timeframe: "week",
		Depth:     "standard",
		Model:     "gpt-5-mini",
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Path to a JSON file containing an array of journal entries")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to a journal SQLite database (alternative to -in)")
	fs.StringVar(&cfg.Mood, "mood", cfg.Mood, "Emotional category to reflect on (required)")
	fs.StringVar(&cfg.Timeframe, "timeframe", cfg.Timeframe, "Timeframe to cover: day, week, month, year, all")
	fs.StringVar(&cfg.Depth, "depth", cfg.Depth, "Depth preset: quick, standard, deep")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "Output path for the reflection JSON (default: stdout)")
	fs.StringVar(&cfg.IndexPath, "index", cfg.IndexPath, "Optional reflections index.jsonl to append a row to")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "Optional JSON cache file path (empty disables the persistent tier)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.BoolVar(&cfg.Regenerate, "regenerate", false, "Invalidate any cached reflection for this mood/timeframe first")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print the reflection JSON")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging to stderr")
	fs.IntVar(&cfg.SampleThreshold, "sample-threshold", 0, "Corpus size above which sampling kicks in (0 = default)")
	fs.IntVar(&cfg.SampleTarget, "sample-target", 0, "Sampled corpus size (0 = default)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.InPath != "" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	if cfg.DBPath != "" {
		cfg.DBPath = filepath.Clean(cfg.DBPath)
	}
	if cfg.OutPath != "" {
		cfg.OutPath = filepath.Clean(cfg.OutPath)
	}
	if cfg.IndexPath != "" {
		cfg.IndexPath = filepath.Clean(cfg.IndexPath)
	}
	if cfg.CachePath != "" {
		cfg.CachePath = filepath.Clean(cfg.CachePath)
	}
	return cfg, nil
}
