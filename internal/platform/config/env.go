// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotenvFile is the optional local override file loaded before env parsing.
const DotenvFile = ".env"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotenv loads DotenvFile into the process environment when present.
//
// Values already exported in the environment win, so deployments can override
// a checked-in development file without editing it.
func LoadDotenv() error {
	if _, err := os.Stat(DotenvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", DotenvFile, err)
	}
	if err := godotenv.Load(DotenvFile); err != nil {
		return fmt.Errorf("load %s: %w", DotenvFile, err)
	}
	return nil
}
