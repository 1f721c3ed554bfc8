// Package mcp parses MCP command flags and serves audit tools over stdio.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/potaudit/potaudit/internal/auth"
	"github.com/potaudit/potaudit/internal/mcpserver"
	entrypoint "github.com/potaudit/potaudit/internal/platform/cmd"
	"github.com/potaudit/potaudit/internal/platform/config"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
)

// Config holds MCP command configuration. The pseudonym salt is env-only so
// it never shows up in process listings.
type Config struct {
	DBPath        string `env:"POTAUDIT_DB_PATH" envDefault:"data/potaudit.db"`
	PseudonymSalt string `env:"POTAUDIT_PSEUDONYM_SALT"`
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
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP server over stdio and blocks until the client hangs up.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	salt, err := config.DecodeSecret(cfg.PseudonymSalt)
	if err != nil {
		return fmt.Errorf("POTAUDIT_PSEUDONYM_SALT: %w", err)
	}
	pseudonyms, err := auth.NewPseudonymizer(salt)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("mcp: close store: %v", err)
		}
	}()

	server, err := mcpserver.New(store, pseudonyms)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

func openStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("db path is required")
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
