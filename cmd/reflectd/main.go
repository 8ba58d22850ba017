package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/mood-reflect/journal"
	"github.com/theimaginaryfoundation/mood-reflect/reflection"
	"github.com/theimaginaryfoundation/mood-reflect/reflection/provider"
)

func main() {
	configPath := flag.String("config", "reflectd.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("daemon exited", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *Config, logger *zap.Logger) error {
	db, err := journal.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open journal database: %w", err)
	}
	defer db.Close()
	logger.Info("journal database opened", zap.String("path", cfg.Storage.DatabasePath))

	apiKey := cfg.OpenAI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	gen, err := provider.NewOpenAIGenerator(apiKey, cfg.OpenAI.Model)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	ttl := time.Duration(cfg.Pipeline.CacheTTLHours) * time.Hour
	cache := reflection.NewCache(journal.NewCacheStore(db), ttl, logger)

	svc := reflection.NewService(gen, nil, cache, logger, reflection.ServiceOptions{
		SampleThreshold: cfg.Pipeline.SampleThreshold,
		SampleTarget:    cfg.Pipeline.SampleTarget,
	})

	srv := NewServer(svc, journal.NewStore(db), &cfg.Server, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
