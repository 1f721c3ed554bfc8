// Package requestctx carries per-request values across handler boundaries.
package requestctx

import (
	"context"

	"golang.org/x/text/language"
)

// userIDContextKey is the context key for authenticated user identity.
type userIDContextKey struct{}

// localeContextKey is the context key for the negotiated display locale.
type localeContextKey struct{}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithLocale stores the negotiated display locale in context.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey{}, tag)
}

// LocaleFromContext returns the display locale stored in context. The second
// return reports whether a locale was negotiated for this request.
func LocaleFromContext(ctx context.Context) (language.Tag, bool) {
	if ctx == nil {
		return language.Und, false
	}
	value, ok := ctx.Value(localeContextKey{}).(language.Tag)
	return value, ok
}
