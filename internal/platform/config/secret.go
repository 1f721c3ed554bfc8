package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DecodeSecret decodes a hex-encoded secret from the environment into raw
// bytes. Secrets are minted by the secret-key command.
func DecodeSecret(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("secret is required (mint one with the secret-key command)")
	}
	secret, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("secret must be hex encoded: %w", err)
	}
	return secret, nil
}
