// Package server parses server command flags and launches the web runtime
// with an embedded import worker.
package server

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

	"github.com/potaudit/potaudit/internal/auth"
	"github.com/potaudit/potaudit/internal/batch"
	entrypoint "github.com/potaudit/potaudit/internal/platform/cmd"
	"github.com/potaudit/potaudit/internal/platform/config"
	"github.com/potaudit/potaudit/internal/report"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
	"github.com/potaudit/potaudit/internal/web"
	"github.com/potaudit/potaudit/internal/worker"
)

// Config holds server command configuration.
type Config struct {
	Addr         string        `env:"POTAUDIT_WEB_ADDR" envDefault:":8080"`
	DBPath       string        `env:"POTAUDIT_DB_PATH" envDefault:"data/potaudit.db"`
	SpoolDir     string        `env:"POTAUDIT_SPOOL_DIR" envDefault:"data/spool"`
	WatchDir     string        `env:"POTAUDIT_WATCH_DIR"`
	GrantSecret  string        `env:"POTAUDIT_GRANT_SECRET"`
	EmbedWorker  bool          `env:"POTAUDIT_EMBED_WORKER" envDefault:"true"`
	SessionSweep time.Duration `env:"POTAUDIT_SESSION_SWEEP" envDefault:"1h"`
	PollInterval time.Duration `env:"POTAUDIT_WORKER_POLL_INTERVAL" envDefault:"2s"`
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
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "spool directory for uploaded spreadsheets")
	fs.StringVar(&cfg.WatchDir, "watch-dir", cfg.WatchDir, "watch folder for spreadsheet drops (empty = disabled)")
	fs.BoolVar(&cfg.EmbedWorker, "embed-worker", cfg.EmbedWorker, "run the import worker inside this process")
	fs.DurationVar(&cfg.SessionSweep, "session-sweep", cfg.SessionSweep, "expired session sweep interval")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "embedded worker poll interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the web runtime and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	secret, err := config.DecodeSecret(cfg.GrantSecret)
	if err != nil {
		return fmt.Errorf("POTAUDIT_GRANT_SECRET: %w", err)
	}
	grants, err := auth.NewGrants(secret)
	if err != nil {
		return fmt.Errorf("configure grant signing: %w", err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("server: close store: %v", err)
		}
	}()

	dir, err := spool.New(cfg.SpoolDir)
	if err != nil {
		return fmt.Errorf("open spool dir: %w", err)
	}

	registrar := batch.New(store, dir)
	webServer, err := web.NewServer(cfg.Addr, web.Dependencies{
		Store:     store,
		Sessions:  store,
		Auth:      auth.New(store, store),
		Grants:    grants,
		Registrar: registrar,
		Reports:   report.NewService(store),
	})
	if err != nil {
		return fmt.Errorf("init web server: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	webServer.StartSessionCleanup(groupCtx, cfg.SessionSweep)
	group.Go(func() error {
		return webServer.ListenAndServe(groupCtx)
	})
	if cfg.EmbedWorker {
		w := worker.New(store, dir, worker.Config{PollInterval: cfg.PollInterval})
		group.Go(func() error {
			return w.Run(groupCtx)
		})
	}
	if strings.TrimSpace(cfg.WatchDir) != "" {
		watcher, err := worker.NewWatcher(cfg.WatchDir, registrar)
		if err != nil {
			return fmt.Errorf("init watch folder: %w", err)
		}
		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}
	return group.Wait()
}

// openStore opens the SQLite store, creating the parent directory when needed.
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
