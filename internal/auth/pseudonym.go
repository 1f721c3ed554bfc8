package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// digestLength is how many hex characters of the salted hash survive into
// logs and traces.
const digestLength = 12

// Pseudonymizer turns raw CPFs into short salted digests that are safe to
// log. The digest is stable for a given salt, so one beneficiary can be
// followed across log lines without exposing the document number.
type Pseudonymizer struct {
	salt []byte
}

// NewPseudonymizer builds a Pseudonymizer over a deployment salt. The salt
// must not be empty, otherwise digests would be comparable across
// deployments.
func NewPseudonymizer(salt []byte) (*Pseudonymizer, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("pseudonym salt is empty")
	}
	return &Pseudonymizer{salt: append([]byte(nil), salt...)}, nil
}

// CPFDigest returns the short salted SHA-256 digest of a CPF. Empty CPFs
// digest to the empty string.
func (p *Pseudonymizer) CPFDigest(cpf string) string {
	if cpf == "" {
		return ""
	}
	input := make([]byte, 0, len(p.salt)+len(cpf))
	input = append(input, p.salt...)
	input = append(input, cpf...)
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])[:digestLength]
}
