package auth

import (
	"strings"
	"testing"
	"time"

	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/platform/timeouts"
)

var grantSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewGrantsRejectsShortSecret(t *testing.T) {
	if _, err := NewGrants([]byte("too-short")); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewGrants(grantSecret); err != nil {
		t.Fatalf("new grants: %v", err)
	}
}

func TestGrantRoundTrip(t *testing.T) {
	grants, err := NewGrants(grantSecret)
	if err != nil {
		t.Fatalf("new grants: %v", err)
	}

	token, err := grants.Issue("batch-1", "relatorio", authStamp)
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token %q is not a compact JWT", token)
	}

	if err := grants.Verify(token, "batch-1", "relatorio", authStamp.Add(5*time.Minute)); err != nil {
		t.Fatalf("verify live grant: %v", err)
	}
	if err := grants.Verify(token, "batch-1", "relatorio", authStamp.Add(timeouts.DownloadGrant+time.Second)); apperrors.CodeOf(err) != apperrors.CodeGrantExpired {
		t.Fatalf("stale grant error = %v, want expired", err)
	}
	if err := grants.Verify(token, "batch-2", "relatorio", authStamp); apperrors.CodeOf(err) != apperrors.CodeGrantMismatch {
		t.Fatalf("wrong batch error = %v, want mismatch", err)
	}
	if err := grants.Verify(token, "batch-1", "ajustes", authStamp); apperrors.CodeOf(err) != apperrors.CodeGrantMismatch {
		t.Fatalf("wrong kind error = %v, want mismatch", err)
	}
	if err := grants.Verify("not-a-token", "batch-1", "relatorio", authStamp); apperrors.CodeOf(err) != apperrors.CodeGrantInvalid {
		t.Fatalf("garbage token error = %v, want invalid", err)
	}
}

func TestGrantRejectsForeignSignature(t *testing.T) {
	grants, err := NewGrants(grantSecret)
	if err != nil {
		t.Fatalf("new grants: %v", err)
	}
	other, err := NewGrants([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("new grants: %v", err)
	}

	token, err := other.Issue("batch-1", "relatorio", authStamp)
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	if err := grants.Verify(token, "batch-1", "relatorio", authStamp); apperrors.CodeOf(err) != apperrors.CodeGrantInvalid {
		t.Fatalf("foreign signature error = %v, want invalid", err)
	}
}

func TestIssueRequiresScope(t *testing.T) {
	grants, err := NewGrants(grantSecret)
	if err != nil {
		t.Fatalf("new grants: %v", err)
	}
	if _, err := grants.Issue("", "relatorio", authStamp); err == nil {
		t.Fatal("expected error for empty batch id")
	}
	if _, err := grants.Issue("batch-1", " ", authStamp); err == nil {
		t.Fatal("expected error for empty report kind")
	}
}
