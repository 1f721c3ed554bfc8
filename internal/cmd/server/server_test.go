package server

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DBPath != "data/potaudit.db" {
		t.Fatalf("db path = %q, want data/potaudit.db", cfg.DBPath)
	}
	if cfg.SpoolDir != "data/spool" {
		t.Fatalf("spool dir = %q, want data/spool", cfg.SpoolDir)
	}
	if !cfg.EmbedWorker {
		t.Fatal("embed worker should default to true")
	}
	if cfg.SessionSweep != time.Hour {
		t.Fatalf("session sweep = %v, want 1h", cfg.SessionSweep)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	t.Setenv("POTAUDIT_WEB_ADDR", "127.0.0.1:9000")
	t.Setenv("POTAUDIT_GRANT_SECRET", "deadbeef")

	cfg, err := ParseConfig(fs, []string{"-addr", ":7070", "-embed-worker=false", "-watch-dir", "drops"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("addr = %q, want flag to win over env", cfg.Addr)
	}
	if cfg.GrantSecret != "deadbeef" {
		t.Fatalf("grant secret = %q, want env value", cfg.GrantSecret)
	}
	if cfg.EmbedWorker {
		t.Fatal("embed worker should be disabled by flag")
	}
	if cfg.WatchDir != "drops" {
		t.Fatalf("watch dir = %q, want drops", cfg.WatchDir)
	}
}
