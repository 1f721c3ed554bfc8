package requestctx

import (
	"context"
	"testing"

	"golang.org/x/text/language"
)

func TestUserIDFromContextRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-42")
	got := UserIDFromContext(ctx)
	if got != "user-42" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-42")
	}
}

func TestUserIDFromContextEmpty(t *testing.T) {
	got := UserIDFromContext(context.Background())
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestUserIDFromContextNil(t *testing.T) {
	got := UserIDFromContext(nil)
	if got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestWithUserIDNilContext(t *testing.T) {
	ctx := WithUserID(nil, "user-99")
	if ctx == nil {
		t.Fatalf("expected non-nil context")
	}
	if got := UserIDFromContext(ctx); got != "user-99" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-99")
	}
}

func TestLocaleFromContextRoundTrip(t *testing.T) {
	ctx := WithLocale(context.Background(), language.BrazilianPortuguese)
	got, ok := LocaleFromContext(ctx)
	if !ok {
		t.Fatal("expected locale to be present")
	}
	if got != language.BrazilianPortuguese {
		t.Fatalf("LocaleFromContext = %v, want %v", got, language.BrazilianPortuguese)
	}
}

func TestLocaleFromContextMissing(t *testing.T) {
	if _, ok := LocaleFromContext(context.Background()); ok {
		t.Fatal("expected no locale in fresh context")
	}
	if _, ok := LocaleFromContext(nil); ok {
		t.Fatal("expected no locale in nil context")
	}
}
