// Package admin implements the operator maintenance command: account
// management, batch inspection, and database migration from the terminal.
package admin

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/potaudit/potaudit/internal/auth"
	"github.com/potaudit/potaudit/internal/batch"
	entrypoint "github.com/potaudit/potaudit/internal/platform/cmd"
	"github.com/potaudit/potaudit/internal/platform/config"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
)

const defaultBatchListLimit = 20

// Config holds admin command configuration. Args carries the positional
// subcommand and its flags after the global flags are parsed.
type Config struct {
	DBPath   string `env:"POTAUDIT_DB_PATH" envDefault:"data/potaudit.db"`
	SpoolDir string `env:"POTAUDIT_SPOOL_DIR" envDefault:"data/spool"`
	Args     []string
}

// ParseConfig loads the optional .env file, the environment and global flags
// into a Config, leaving the subcommand arguments in Args.
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
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()
	return cfg, nil
}

// Run executes the subcommand named by cfg.Args.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(cfg.Args) < 2 {
		usage(errOut)
		return errors.New("a subcommand is required")
	}

	command := cfg.Args[0] + " " + cfg.Args[1]
	rest := cfg.Args[2:]
	switch command {
	case "user add":
		return runUserAdd(ctx, cfg, rest, out, errOut)
	case "user list":
		return runUserList(ctx, cfg, rest, out, errOut)
	case "user disable":
		return runUserDisable(ctx, cfg, rest, out, errOut)
	case "batch list":
		return runBatchList(ctx, cfg, rest, out, errOut)
	case "batch reprocess":
		return runBatchReprocess(ctx, cfg, rest, out, errOut)
	case "db migrate":
		return runDBMigrate(cfg, rest, out, errOut)
	default:
		usage(errOut)
		return fmt.Errorf("unknown subcommand %q", command)
	}
}

func runUserAdd(ctx context.Context, cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("user add", flag.ContinueOnError)
	fs.SetOutput(errOut)
	username := fs.String("username", "", "login username")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password (min 8 characters)")
	role := fs.String("role", storage.RoleAnalyst, "account role (admin|analyst)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore(store, errOut)

	user, err := auth.New(store, store).CreateUser(ctx, auth.CreateUserInput{
		Username:    *username,
		DisplayName: *name,
		Password:    *password,
		Role:        *role,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(out, "Created user %s (role=%s)\n", user.Username, user.Role)
	return nil
}

func runUserList(ctx context.Context, cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("user list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore(store, errOut)

	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	fmt.Fprintf(out, "Users: %d\n", len(users))
	for _, u := range users {
		status := "active"
		if u.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(out, "- %s role=%s status=%s name=%s\n", u.Username, u.Role, status, u.DisplayName)
	}
	return nil
}

func runUserDisable(ctx context.Context, cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("user disable", flag.ContinueOnError)
	fs.SetOutput(errOut)
	username := fs.String("username", "", "login username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("-username is required")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore(store, errOut)

	user, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if err := auth.New(store, store).DisableUser(ctx, user.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Disabled user %s\n", user.Username)
	return nil
}

func runBatchList(ctx context.Context, cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("batch list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	limit := fs.Int("limit", defaultBatchListLimit, "max batches to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("-limit must be > 0")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore(store, errOut)

	batches, err := store.ListBatches(ctx, *limit)
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}
	fmt.Fprintf(out, "Batches: %d (limit=%d)\n", len(batches), *limit)
	for _, b := range batches {
		fmt.Fprintf(out, "- %s status=%s records=%d source=%s created_at=%s\n",
			b.ID, b.Status, b.RecordCount, b.Source, b.CreatedAt.UTC().Format(time.RFC3339))
		if strings.TrimSpace(b.Error) != "" {
			fmt.Fprintf(out, "  error=%s\n", b.Error)
		}
	}
	return nil
}

func runBatchReprocess(ctx context.Context, cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("batch reprocess", flag.ContinueOnError)
	fs.SetOutput(errOut)
	batchID := fs.String("id", "", "batch ID to requeue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*batchID) == "" {
		return errors.New("-id is required")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore(store, errOut)

	dir, err := spool.New(cfg.SpoolDir)
	if err != nil {
		return fmt.Errorf("open spool dir: %w", err)
	}
	updated, err := batch.New(store, dir).Reprocess(ctx, *batchID)
	if err != nil {
		return fmt.Errorf("reprocess batch: %w", err)
	}
	fmt.Fprintf(out, "Requeued batch %s (status=%s)\n", updated.ID, updated.Status)
	return nil
}

func runDBMigrate(cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("db migrate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Opening the store applies pending migrations.
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	closeStore(store, errOut)
	fmt.Fprintf(out, "Migrations applied to %s\n", cfg.DBPath)
	return nil
}

func usage(errOut io.Writer) {
	fmt.Fprintln(errOut, "Usage: admin [flags] <command>")
	fmt.Fprintln(errOut, "Commands:")
	fmt.Fprintln(errOut, "  user add -username <login> -password <secret> [-name <display>] [-role admin|analyst]")
	fmt.Fprintln(errOut, "  user list")
	fmt.Fprintln(errOut, "  user disable -username <login>")
	fmt.Fprintln(errOut, "  batch list [-limit N]")
	fmt.Fprintln(errOut, "  batch reprocess -id <batch-id>")
	fmt.Fprintln(errOut, "  db migrate")
}

func closeStore(store *sqlite.Store, errOut io.Writer) {
	if err := store.Close(); err != nil {
		fmt.Fprintf(errOut, "Error: close store: %v\n", err)
	}
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
