// Package worker parses worker command flags and launches the standalone
// import worker, optionally with the watch-folder registrar.
package worker

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/potaudit/potaudit/internal/batch"
	entrypoint "github.com/potaudit/potaudit/internal/platform/cmd"
	"github.com/potaudit/potaudit/internal/platform/config"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
	"github.com/potaudit/potaudit/internal/worker"
)

// Config holds worker command configuration.
type Config struct {
	DBPath        string        `env:"POTAUDIT_DB_PATH" envDefault:"data/potaudit.db"`
	SpoolDir      string        `env:"POTAUDIT_SPOOL_DIR" envDefault:"data/spool"`
	WatchDir      string        `env:"POTAUDIT_WATCH_DIR"`
	Consumer      string        `env:"POTAUDIT_WORKER_CONSUMER" envDefault:"import-worker"`
	PollInterval  time.Duration `env:"POTAUDIT_WORKER_POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL      time.Duration `env:"POTAUDIT_WORKER_LEASE_TTL" envDefault:"2m"`
	BatchLimit    int           `env:"POTAUDIT_WORKER_BATCH_LIMIT" envDefault:"4"`
	MaxAttempts   int           `env:"POTAUDIT_WORKER_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff  time.Duration `env:"POTAUDIT_WORKER_RETRY_BACKOFF" envDefault:"5s"`
	RetryMaxDelay time.Duration `env:"POTAUDIT_WORKER_RETRY_MAX_DELAY" envDefault:"5m"`
}

// ParseConfig loads the optional .env file, the environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if err := config.LoadDotenv(); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "spool directory for uploaded spreadsheets")
	fs.StringVar(&cfg.WatchDir, "watch-dir", cfg.WatchDir, "watch folder for spreadsheet drops (empty = disabled)")
	fs.StringVar(&cfg.Consumer, "consumer", cfg.Consumer, "import queue consumer name")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "import queue poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "import job lease duration")
	fs.IntVar(&cfg.BatchLimit, "batch-limit", cfg.BatchLimit, "max jobs leased per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "max processing attempts before a batch is marked failed")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("worker: close store: %v", err)
		}
	}()

	dir, err := spool.New(cfg.SpoolDir)
	if err != nil {
		return fmt.Errorf("open spool dir: %w", err)
	}

	w := worker.New(store, dir, worker.Config{
		Consumer:      cfg.Consumer,
		PollInterval:  cfg.PollInterval,
		LeaseTTL:      cfg.LeaseTTL,
		BatchLimit:    cfg.BatchLimit,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.Run(groupCtx)
	})
	if strings.TrimSpace(cfg.WatchDir) != "" {
		watcher, err := worker.NewWatcher(cfg.WatchDir, batch.New(store, dir))
		if err != nil {
			return fmt.Errorf("init watch folder: %w", err)
		}
		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}
	return group.Wait()
}

func openStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))
	if cleanPath == "." || cleanPath == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
