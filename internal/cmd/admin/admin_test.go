package admin

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/potaudit/potaudit/internal/batch"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
)

func TestParseConfigSplitsSubcommandArgs(t *testing.T) {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-db-path", "audit.db", "user", "add", "-username", "maria"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "audit.db" {
		t.Fatalf("db path = %q, want audit.db", cfg.DBPath)
	}
	if got := strings.Join(cfg.Args, " "); got != "user add -username maria" {
		t.Fatalf("args = %q, want subcommand args preserved", got)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/potaudit.db" {
		t.Fatalf("db path = %q, want data/potaudit.db", cfg.DBPath)
	}
	if cfg.SpoolDir != "data/spool" {
		t.Fatalf("spool dir = %q, want data/spool", cfg.SpoolDir)
	}
	if len(cfg.Args) != 0 {
		t.Fatalf("args = %v, want none", cfg.Args)
	}
}

func TestRunRequiresSubcommand(t *testing.T) {
	var errOut bytes.Buffer

	err := Run(context.Background(), Config{DBPath: "audit.db"}, io.Discard, &errOut)
	if err == nil {
		t.Fatal("expected error without a subcommand")
	}
	if !strings.Contains(errOut.String(), "Usage: admin") {
		t.Fatalf("expected usage on stderr, got %q", errOut.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var errOut bytes.Buffer
	cfg := Config{DBPath: "audit.db", Args: []string{"user", "frobnicate"}}

	err := Run(context.Background(), cfg, io.Discard, &errOut)
	if err == nil || !strings.Contains(err.Error(), "unknown subcommand") {
		t.Fatalf("expected unknown subcommand error, got %v", err)
	}
	if !strings.Contains(errOut.String(), "Usage: admin") {
		t.Fatalf("expected usage on stderr, got %q", errOut.String())
	}
}

func TestRunUserAddListDisable(t *testing.T) {
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "audit.db"), SpoolDir: t.TempDir()}
	var out, errOut bytes.Buffer

	cfg.Args = []string{"user", "add", "-username", "Maria", "-name", "Maria Silva", "-password", "correct-horse", "-role", "admin"}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("user add: %v", err)
	}
	if !strings.Contains(out.String(), "Created user maria (role=admin)") {
		t.Fatalf("unexpected add output: %q", out.String())
	}

	out.Reset()
	cfg.Args = []string{"user", "list"}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("user list: %v", err)
	}
	if !strings.Contains(out.String(), "Users: 1") {
		t.Fatalf("unexpected list output: %q", out.String())
	}
	if !strings.Contains(out.String(), "- maria role=admin status=active name=Maria Silva") {
		t.Fatalf("unexpected list row: %q", out.String())
	}

	out.Reset()
	cfg.Args = []string{"user", "disable", "-username", "maria"}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("user disable: %v", err)
	}
	if !strings.Contains(out.String(), "Disabled user maria") {
		t.Fatalf("unexpected disable output: %q", out.String())
	}

	out.Reset()
	cfg.Args = []string{"user", "list"}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("user list after disable: %v", err)
	}
	if !strings.Contains(out.String(), "status=disabled") {
		t.Fatalf("expected disabled status, got %q", out.String())
	}
}

func TestRunUserAddRejectsShortPassword(t *testing.T) {
	cfg := Config{
		DBPath: filepath.Join(t.TempDir(), "audit.db"),
		Args:   []string{"user", "add", "-username", "maria", "-password", "short"},
	}

	err := Run(context.Background(), cfg, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestRunUserDisableRequiresUsername(t *testing.T) {
	cfg := Config{
		DBPath: filepath.Join(t.TempDir(), "audit.db"),
		Args:   []string{"user", "disable"},
	}

	err := Run(context.Background(), cfg, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "-username is required") {
		t.Fatalf("expected username error, got %v", err)
	}
}

func TestRunBatchListAndReprocess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	spoolDir := t.TempDir()
	cfg := Config{DBPath: dbPath, SpoolDir: spoolDir}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	dir, err := spool.New(spoolDir)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	payments := "CPF;RG;NOME;CONTA;PROJETO;STATUS;DATA PGTO;VALOR\n52998224725;12.345;Maria Silva;0001-2;Horta;PAGO;10/03/2026;150,00\n"
	created, err := batch.New(store, dir).Register(context.Background(), batch.Input{
		Name:     "Folha Março",
		Source:   "pagamentos.csv",
		Payments: strings.NewReader(payments),
	})
	if err != nil {
		t.Fatalf("register batch: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	var out, errOut bytes.Buffer
	cfg.Args = []string{"batch", "list"}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("batch list: %v", err)
	}
	if !strings.Contains(out.String(), "Batches: 1 (limit=20)") {
		t.Fatalf("unexpected list output: %q", out.String())
	}
	if !strings.Contains(out.String(), created.ID+" status=pending") {
		t.Fatalf("expected batch row, got %q", out.String())
	}

	out.Reset()
	cfg.Args = []string{"batch", "reprocess", "-id", created.ID}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("batch reprocess: %v", err)
	}
	if !strings.Contains(out.String(), "Requeued batch "+created.ID) {
		t.Fatalf("unexpected reprocess output: %q", out.String())
	}
}

func TestRunBatchReprocessRequiresID(t *testing.T) {
	cfg := Config{
		DBPath: filepath.Join(t.TempDir(), "audit.db"),
		Args:   []string{"batch", "reprocess"},
	}

	err := Run(context.Background(), cfg, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "-id is required") {
		t.Fatalf("expected id error, got %v", err)
	}
}

func TestRunDBMigrateCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pot", "audit.db")
	cfg := Config{DBPath: dbPath, Args: []string{"db", "migrate"}}
	var out bytes.Buffer

	if err := Run(context.Background(), cfg, &out, io.Discard); err != nil {
		t.Fatalf("db migrate: %v", err)
	}
	if !strings.Contains(out.String(), "Migrations applied to "+dbPath) {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}
