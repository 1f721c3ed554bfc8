package mcp

import (
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/potaudit.db" {
		t.Fatalf("db path = %q, want data/potaudit.db", cfg.DBPath)
	}
	if cfg.PseudonymSalt != "" {
		t.Fatalf("pseudonym salt = %q, want empty default", cfg.PseudonymSalt)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	t.Setenv("POTAUDIT_DB_PATH", "env/audit.db")
	t.Setenv("POTAUDIT_PSEUDONYM_SALT", "deadbeef")

	cfg, err := ParseConfig(fs, []string{"-db-path", "flag/audit.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "flag/audit.db" {
		t.Fatalf("db path = %q, want flag to win over env", cfg.DBPath)
	}
	if cfg.PseudonymSalt != "deadbeef" {
		t.Fatalf("pseudonym salt = %q, want env value", cfg.PseudonymSalt)
	}
}

func TestRunRequiresPseudonymSalt(t *testing.T) {
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "audit.db")}

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "POTAUDIT_PSEUDONYM_SALT") {
		t.Fatalf("expected pseudonym salt error, got %v", err)
	}
}
