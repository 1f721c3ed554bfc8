package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/platform/timeouts"
)

const (
	grantIssuer   = "potaudit"
	grantAudience = "report-download"

	// minGrantSecretLength rejects HMAC secrets below the HS256 hash size.
	minGrantSecretLength = 32
)

// Grants mints and checks short-lived signed tokens that authorize one
// report download for one batch. They let report links work outside the
// session cookie, for example when handed to a curl invocation.
type Grants struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewGrants builds a grant signer over an HMAC secret.
func NewGrants(secret []byte) (*Grants, error) {
	if len(secret) < minGrantSecretLength {
		return nil, fmt.Errorf("grant secret must be at least %d bytes", minGrantSecretLength)
	}
	return &Grants{
		secret:   append([]byte(nil), secret...),
		issuer:   grantIssuer,
		audience: grantAudience,
		ttl:      timeouts.DownloadGrant,
	}, nil
}

type grantClaims struct {
	BatchID string `json:"batch_id"`
	Kind    string `json:"report_kind"`
	jwt.RegisteredClaims
}

// Issue signs a download grant for one report kind of one batch.
func (g *Grants) Issue(batchID, kind string, now time.Time) (string, error) {
	batchID = strings.TrimSpace(batchID)
	kind = strings.TrimSpace(kind)
	if batchID == "" || kind == "" {
		return "", fmt.Errorf("grant needs a batch id and a report kind")
	}
	now = now.UTC()
	claims := grantClaims{
		BatchID: batchID,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Audience:  jwt.ClaimStrings{g.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, nil
}

// Verify checks that a grant token is live, was signed here, and covers the
// given batch and report kind.
func (g *Grants) Verify(token, batchID, kind string, now time.Time) error {
	claims := &grantClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience),
		jwt.WithTimeFunc(func() time.Time { return now.UTC() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperrors.Wrap(apperrors.CodeGrantExpired, "download grant expired", err)
		}
		return apperrors.Wrap(apperrors.CodeGrantInvalid, "download grant is not valid", err)
	}
	if claims.BatchID != strings.TrimSpace(batchID) || claims.Kind != strings.TrimSpace(kind) {
		return apperrors.New(apperrors.CodeGrantMismatch, "download grant covers a different report")
	}
	return nil
}
