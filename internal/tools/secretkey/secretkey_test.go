package secretkey

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("secretkey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 32 {
		t.Fatalf("expected default bytes 32, got %d", cfg.Bytes)
	}
	if cfg.Name != EnvGrantSecret {
		t.Fatalf("expected default name %q, got %q", EnvGrantSecret, cfg.Name)
	}
}

func TestParseConfigOverride(t *testing.T) {
	fs := flag.NewFlagSet("secretkey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-bytes", "64", "-name", EnvPseudonymSalt})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 64 {
		t.Fatalf("expected bytes 64, got %d", cfg.Bytes)
	}
	if cfg.Name != EnvPseudonymSalt {
		t.Fatalf("expected name %q, got %q", EnvPseudonymSalt, cfg.Name)
	}
}

func TestRunRejectsShortSecrets(t *testing.T) {
	if err := Run(Config{Bytes: 16, Name: EnvGrantSecret}, &bytes.Buffer{}, bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for secrets shorter than 32 bytes")
	}
}

func TestRunWritesHex(t *testing.T) {
	buf := &bytes.Buffer{}
	seed := bytes.Repeat([]byte{0xab}, 32)
	if err := Run(Config{Bytes: 32, Name: EnvGrantSecret}, buf, bytes.NewReader(seed)); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := EnvGrantSecret + "=" + strings.Repeat("ab", 32)
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{Bytes: 32, Name: EnvGrantSecret}, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

func TestRunDefaultReader(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 32, Name: EnvGrantSecret}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	prefix := EnvGrantSecret + "="
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("expected env prefix, got %q", got)
	}
	if len(strings.TrimPrefix(got, prefix)) != 64 {
		t.Fatalf("expected 64 hex chars, got %d: %q", len(strings.TrimPrefix(got, prefix)), got)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read error") }

func TestRunReaderError(t *testing.T) {
	if err := Run(Config{Bytes: 32, Name: EnvGrantSecret}, &bytes.Buffer{}, errReader{}); err == nil {
		t.Fatal("expected error from failing reader")
	}
}
