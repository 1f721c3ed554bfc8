package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	first := New(CodeNotFound, "batch missing")
	second := New(CodeNotFound, "different message")
	if !stderrors.Is(first, second) {
		t.Fatal("expected errors with same code to match")
	}

	other := New(CodeGrantExpired, "grant expired")
	if stderrors.Is(first, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	wrapped := Wrap(CodeUnknown, "write report", cause)
	if !stderrors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause in chain")
	}
}

func TestFromErrorFindsDomainError(t *testing.T) {
	inner := WithMetadata(CodeImportColumnMissing, "missing column", map[string]string{"Column": "cpf"})
	outer := fmt.Errorf("ingest: %w", inner)

	found, ok := FromError(outer)
	if !ok {
		t.Fatal("expected domain error in chain")
	}
	if found.Code != CodeImportColumnMissing {
		t.Fatalf("Code = %q, want %q", found.Code, CodeImportColumnMissing)
	}
	if found.Metadata["Column"] != "cpf" {
		t.Fatalf("Metadata[Column] = %q, want cpf", found.Metadata["Column"])
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{New(CodeImportFileEmpty, "empty upload"), http.StatusBadRequest},
		{New(CodeAuthCredentialsBad, "bad credentials"), http.StatusUnauthorized},
		{New(CodeGrantExpired, "expired"), http.StatusForbidden},
		{New(CodeNotFound, "missing"), http.StatusNotFound},
		{New(CodeImportJobNotPending, "already claimed"), http.StatusConflict},
		{fmt.Errorf("plain error"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
