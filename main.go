package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/nlpinitiative/discrimination-classifier/cache"
	"github.com/nlpinitiative/discrimination-classifier/classifier"
	"github.com/nlpinitiative/discrimination-classifier/config"
	"github.com/nlpinitiative/discrimination-classifier/history"
	"github.com/nlpinitiative/discrimination-classifier/hub"
	"github.com/nlpinitiative/discrimination-classifier/inference"
	"github.com/nlpinitiative/discrimination-classifier/logging"
	"github.com/nlpinitiative/discrimination-classifier/segment"
	"github.com/nlpinitiative/discrimination-classifier/server"
)

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	configPath := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := config.LoadFromFile(*configPath, cfg); err != nil {
			slog.Error("[Main] Failed to load config file", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	config.ApplyEnv(cfg)

	logging.InitLogger(cfg.Logging)
	if envErr == nil {
		slog.Info("[Main] Loaded .env file")
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("[Main] Service stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			slog.Warn("[Main] Sentry disabled", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := inference.InitRuntime(cfg.Models.RuntimeLibPath); err != nil {
		return err
	}
	defer func() {
		if err := inference.ShutdownRuntime(); err != nil {
			slog.Warn("[Main] Failed to shut down runtime", slog.String("error", err.Error()))
		}
	}()

	hubClient := hub.NewClient(hub.Options{
		BaseURL:    cfg.Models.HubURL,
		Token:      cfg.Models.HubToken,
		CacheDir:   cfg.Models.CacheDir,
		MaxRetries: cfg.Models.DownloadRetry,
	})
	loader := inference.NewLoader(hubClient, inference.LoaderOptions{
		Revision:   cfg.Models.Revision,
		ModelFiles: cfg.Models.ModelFiles,
		MaxTokens:  cfg.Models.MaxTokens,
	})

	binary, err := loadPair(ctx, loader, cfg.Models.BinaryRepo)
	if err != nil {
		return err
	}
	defer closePair(binary)

	multilabel, err := loadPair(ctx, loader, cfg.Models.MultilabelRepo)
	if err != nil {
		return err
	}
	defer closePair(multilabel)

	seg, err := segment.NewPunktSegmenter(segment.Options{StripMarkdown: cfg.Segmentation.StripMarkdown})
	if err != nil {
		return err
	}

	orchestrator, err := classifier.New(binary, multilabel, seg)
	if err != nil {
		return err
	}

	var cls classifier.Classifier = orchestrator
	if cfg.Cache.Enabled {
		resultCache, err := newCache(ctx, cfg.Cache)
		if err != nil {
			slog.Warn("[Main] Result cache disabled", slog.String("error", err.Error()))
		} else {
			defer func() { _ = resultCache.Close() }()
			ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
			// A new revision of the same repos must not reuse old results
			cls = classifier.NewCachingClassifier(orchestrator, resultCache, ttl,
				cfg.Models.Revision, binary.RepoID, multilabel.RepoID)
		}
	}

	store := newHistoryStore(ctx, cfg)
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("[Main] Failed to close history store", slog.String("error", err.Error()))
		}
	}()
	if cfg.History.CleanupHours > 0 {
		go history.RunCleanup(ctx, store, time.Duration(cfg.History.CleanupHours)*time.Hour, time.Hour)
	}

	deps := server.Deps{
		Classifier: cls,
		History:    store,
		Models:     orchestrator.Models(),
	}
	if embeddedUI {
		deps.UIFS = uiFiles
	}
	srv := server.NewServer(cfg, deps)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("[Main] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadPair(ctx context.Context, loader *inference.Loader, repoID string) (*inference.Pair, error) {
	pair, err := loader.Load(ctx, repoID, "")
	if errors.Is(err, inference.ErrInvalidCredential) {
		return nil, fmt.Errorf("%w (check HF_TOKEN)", err)
	}
	return pair, err
}

func closePair(p *inference.Pair) {
	if err := p.Close(); err != nil {
		slog.Warn("[Main] Failed to close model", slog.String("repo", p.RepoID), slog.String("error", err.Error()))
	}
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.Backend == config.CacheBackendValkey {
		return cache.NewValkeyCache(ctx, cache.ValkeyOptions{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			UseTLS:   cfg.ValkeyTLS,
			Prefix:   "dc:",
		})
	}
	return cache.NewMemoryCache(cfg.MaxEntries), nil
}

// newHistoryStore falls back to memory when PostgreSQL is unreachable
func newHistoryStore(ctx context.Context, cfg *config.Config) history.Store {
	if cfg.Database.Enabled {
		store, err := history.NewPostgresStore(ctx, cfg.Database)
		if err == nil {
			return store
		}
		slog.Warn("[Main] PostgreSQL unavailable, keeping history in memory", slog.String("error", err.Error()))
	}
	return history.NewMemoryStore(cfg.History.MaxEntries, cfg.History.MaxSessions)
}
