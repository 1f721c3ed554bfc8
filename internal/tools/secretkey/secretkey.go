// Package secretkey generates random secrets for grant signing and CPF
// pseudonymization, printed as ready-to-paste environment lines.
package secretkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// Known environment variable names a generated secret can be emitted under.
const (
	EnvGrantSecret    = "POTAUDIT_GRANT_SECRET"
	EnvPseudonymSalt  = "POTAUDIT_PSEUDONYM_SALT"
	minimumSecretSize = 32
)

// Config holds secret generation configuration.
type Config struct {
	Bytes int
	Name  string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: minimumSecretSize, Name: EnvGrantSecret}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (minimum: 32)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "environment variable name to print")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the secret and writes it to out as NAME=hex.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < minimumSecretSize {
		return fmt.Errorf("bytes must be at least %d", minimumSecretSize)
	}
	if cfg.Name == "" {
		return errors.New("name is required")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", cfg.Name, hex.EncodeToString(buf))
	return err
}
