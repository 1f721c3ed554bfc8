package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	SpoolDir string `env:"POTAUDIT_TEST_SPOOL_DIR" envDefault:"data/spool"`
	Workers  int    `env:"POTAUDIT_TEST_WORKERS" envDefault:"2"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.SpoolDir != "data/spool" {
		t.Fatalf("expected default spool dir, got %q", cfg.SpoolDir)
	}
	if cfg.Workers != 2 {
		t.Fatalf("expected default workers 2, got %d", cfg.Workers)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("POTAUDIT_TEST_WORKERS", "8")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("expected workers 8, got %d", cfg.Workers)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("POTAUDIT_TEST_WORKERS", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := LoadDotenv(); err != nil {
		t.Fatalf("load dotenv without file: %v", err)
	}
}
