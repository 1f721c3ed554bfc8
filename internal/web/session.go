package web

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/platform/requestctx"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/web/routepath"
)

// sessionCookieName is the canonical login session cookie.
const sessionCookieName = "potaudit_session"

// userContextKey carries the resolved operator through handler boundaries.
type userContextKey struct{}

func withUser(ctx context.Context, user storage.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func userFrom(ctx context.Context) (storage.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(storage.User)
	return user, ok
}

func readSessionCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    strings.TrimSpace(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionUser resolves the operator behind the request's session cookie.
func (s *Server) sessionUser(r *http.Request) (storage.User, bool) {
	sessionID, ok := readSessionCookie(r)
	if !ok {
		return storage.User{}, false
	}
	user, err := s.auth.ResolveSession(r.Context(), sessionID)
	if err != nil {
		return storage.User{}, false
	}
	return user, true
}

// requirePage gates an HTML page behind a live session, redirecting guests
// to the login form.
func (s *Server) requirePage(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			clearSessionCookie(w, r)
			http.Redirect(w, r, routepath.Login, http.StatusSeeOther)
			return
		}
		ctx := withUser(requestctx.WithUserID(r.Context(), user.ID), user)
		next(w, r.WithContext(ctx))
	})
}

// requireAPI gates a JSON endpoint behind a live session.
func (s *Server) requireAPI(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			s.writeError(w, r, apperrors.New(apperrors.CodeAuthSessionInvalid, "session is not valid"))
			return
		}
		ctx := withUser(requestctx.WithUserID(r.Context(), user.ID), user)
		next(w, r.WithContext(ctx))
	})
}
