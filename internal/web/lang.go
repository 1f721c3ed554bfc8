package web

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/potaudit/potaudit/internal/platform/i18n"
	"github.com/potaudit/potaudit/internal/platform/requestctx"
	"github.com/potaudit/potaudit/internal/web/routepath"
)

// langCookieName stores the operator's language preference.
const langCookieName = "potaudit_lang"

// withLanguage negotiates the display locale for every request and stores it
// in the request context. A ?lang= selection is persisted as a cookie.
func (s *Server) withLanguage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag, persist := resolveLanguage(r)
		if persist {
			setLanguageCookie(w, tag)
		}
		ctx := requestctx.WithLocale(r.Context(), tag)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveLanguage determines the display language: explicit ?lang= choice,
// then the preference cookie, then the Accept-Language header. The bool
// reports whether the choice should be persisted.
func resolveLanguage(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return i18n.DefaultTag(), false
	}

	if value := strings.TrimSpace(r.URL.Query().Get(routepath.LangQueryKey)); value != "" {
		if tag, ok := i18n.ParseTag(value); ok {
			return tag, true
		}
	}

	if cookie, err := r.Cookie(langCookieName); err == nil {
		if tag, ok := i18n.ParseTag(cookie.Value); ok {
			return tag, false
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			return i18n.MatchTags(tags), false
		}
	}

	return i18n.DefaultTag(), false
}

func setLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     langCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// localeOf returns the negotiated locale of the request context.
func localeOf(r *http.Request) language.Tag {
	if tag, ok := requestctx.LocaleFromContext(r.Context()); ok {
		return tag
	}
	return i18n.DefaultTag()
}
