package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
)

var authStamp = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCreateUserNormalizesInput(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	user, err := svc.CreateUser(context.Background(), CreateUserInput{
		Username:    "  Maria.Lima ",
		DisplayName: " Maria Lima ",
		Password:    "correct-horse",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Username != "maria.lima" {
		t.Fatalf("username = %q, want maria.lima", user.Username)
	}
	if user.DisplayName != "Maria Lima" {
		t.Fatalf("display name = %q, want Maria Lima", user.DisplayName)
	}
	if user.Role != storage.RoleAnalyst {
		t.Fatalf("role = %q, want %q", user.Role, storage.RoleAnalyst)
	}
	if !user.CreatedAt.Equal(authStamp) {
		t.Fatalf("created at = %v, want %v", user.CreatedAt, authStamp)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	stored, err := store.GetUserByUsername(context.Background(), "maria.lima")
	if err != nil {
		t.Fatalf("get user by username: %v", err)
	}
	if stored.ID != user.ID {
		t.Fatalf("stored id = %q, want %q", stored.ID, user.ID)
	}
}

func TestCreateUserValidation(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "  ", Password: "long-enough"})
	if code := apperrors.CodeOf(err); code != apperrors.CodeAuthUsernameEmpty {
		t.Fatalf("blank username code = %q, want %q", code, apperrors.CodeAuthUsernameEmpty)
	}

	_, err = svc.CreateUser(context.Background(), CreateUserInput{Username: "maria", Password: "short"})
	if code := apperrors.CodeOf(err); code != apperrors.CodeAuthPasswordTooShort {
		t.Fatalf("short password code = %q, want %q", code, apperrors.CodeAuthPasswordTooShort)
	}
}

func TestLoginOpensSession(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	created, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "maria", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	session, user, err := svc.Login(context.Background(), " MARIA ", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("login user = %q, want %q", user.ID, created.ID)
	}
	if session.UserID != created.ID {
		t.Fatalf("session user = %q, want %q", session.UserID, created.ID)
	}
	if want := authStamp.Add(sessionTTL); !session.ExpiresAt.Equal(want) {
		t.Fatalf("session expires at %v, want %v", session.ExpiresAt, want)
	}

	stored, err := store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.UserID != created.ID {
		t.Fatalf("stored session user = %q, want %q", stored.UserID, created.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	user, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "maria", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "nobody", "correct-horse"); apperrors.CodeOf(err) != apperrors.CodeAuthCredentialsBad {
		t.Fatalf("unknown username error = %v, want bad credentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "maria", "wrong-horse"); apperrors.CodeOf(err) != apperrors.CodeAuthCredentialsBad {
		t.Fatalf("wrong password error = %v, want bad credentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "  ", "correct-horse"); apperrors.CodeOf(err) != apperrors.CodeAuthUsernameEmpty {
		t.Fatalf("blank username error = %v, want empty username", err)
	}

	if err := svc.DisableUser(context.Background(), user.ID); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "maria", "correct-horse"); apperrors.CodeOf(err) != apperrors.CodeAuthCredentialsBad {
		t.Fatalf("disabled account error = %v, want bad credentials", err)
	}
}

func TestResolveSessionExpiry(t *testing.T) {
	store := openAuthStore(t)
	svc, clock := newTestService(store)

	created, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "maria", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	session, _, err := svc.Login(context.Background(), "maria", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	user, err := svc.ResolveSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("resolve live session: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("resolved user = %q, want %q", user.ID, created.ID)
	}

	*clock = authStamp.Add(sessionTTL)
	if _, err := svc.ResolveSession(context.Background(), session.ID); apperrors.CodeOf(err) != apperrors.CodeAuthSessionInvalid {
		t.Fatalf("expired session error = %v, want invalid session", err)
	}
	if _, err := store.GetSession(context.Background(), session.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expired session should be deleted, got %v", err)
	}
}

func TestResolveSessionRejectsUnknownID(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	if _, err := svc.ResolveSession(context.Background(), ""); apperrors.CodeOf(err) != apperrors.CodeAuthSessionInvalid {
		t.Fatalf("blank session error = %v, want invalid session", err)
	}
	if _, err := svc.ResolveSession(context.Background(), "missing"); apperrors.CodeOf(err) != apperrors.CodeAuthSessionInvalid {
		t.Fatalf("unknown session error = %v, want invalid session", err)
	}
}

func TestLogout(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	if _, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "maria", Password: "correct-horse"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	session, _, err := svc.Login(context.Background(), "maria", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.ResolveSession(context.Background(), session.ID); apperrors.CodeOf(err) != apperrors.CodeAuthSessionInvalid {
		t.Fatalf("closed session error = %v, want invalid session", err)
	}
	if err := svc.Logout(context.Background(), "missing"); err != nil {
		t.Fatalf("logout of unknown session: %v", err)
	}
}

func TestDisableUserClosesSessions(t *testing.T) {
	store := openAuthStore(t)
	svc, _ := newTestService(store)

	created, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "maria", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	session, _, err := svc.Login(context.Background(), "maria", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.DisableUser(context.Background(), created.ID); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	stored, err := store.GetUser(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !stored.Disabled {
		t.Fatal("user should be disabled")
	}
	if _, err := store.GetSession(context.Background(), session.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("disabling should close sessions, got %v", err)
	}
}

func newTestService(store *sqlite.Store) (*Service, *time.Time) {
	clock := authStamp
	svc := New(store, store)
	svc.clock = func() time.Time { return clock }
	return svc, &clock
}

func openAuthStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "potaudit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
