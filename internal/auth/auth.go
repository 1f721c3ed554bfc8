// Package auth handles operator accounts, login sessions, pseudonymized CPF
// digests and signed report-download grants.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/platform/id"
	"github.com/potaudit/potaudit/internal/storage"
)

// sessionTTL is how long a login session stays valid.
const sessionTTL = 7 * 24 * time.Hour

// minPasswordLength keeps CLI-minted operator passwords above trivial.
const minPasswordLength = 8

// dummyHash burns a bcrypt compare when the username does not exist, so a
// login miss costs the same as a wrong password.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Service implements operator login and session resolution.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	clock    func() time.Time
	newID    func() (string, error)
}

// New builds an auth Service over the user and session stores.
func New(users storage.UserStore, sessions storage.SessionStore) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		clock:    time.Now,
		newID:    id.NewID,
	}
}

// CreateUserInput carries the fields of a new operator account.
type CreateUserInput struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
}

// CreateUser registers an operator account. Usernames are stored lowercase;
// the role defaults to analyst.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (storage.User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return storage.User{}, apperrors.New(apperrors.CodeAuthUsernameEmpty, "username is required")
	}
	if len(input.Password) < minPasswordLength {
		return storage.User{}, apperrors.WithMetadata(apperrors.CodeAuthPasswordTooShort, "password is too short",
			map[string]string{"min": fmt.Sprintf("%d", minPasswordLength)})
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = storage.RoleAnalyst
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.newID()
	if err != nil {
		return storage.User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.clock().UTC()
	user := storage.User{
		ID:           userID,
		Username:     username,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.PutUser(ctx, user); err != nil {
		return storage.User{}, fmt.Errorf("put user: %w", err)
	}
	return user, nil
}

// Login checks credentials and opens a session. Disabled accounts and
// unknown usernames fail the same way bad passwords do.
func (s *Service) Login(ctx context.Context, username, password string) (storage.Session, storage.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return storage.Session{}, storage.User{}, apperrors.New(apperrors.CodeAuthUsernameEmpty, "username is required")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return storage.Session{}, storage.User{}, badCredentials()
		}
		return storage.Session{}, storage.User{}, fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return storage.Session{}, storage.User{}, badCredentials()
	}
	if user.Disabled {
		return storage.Session{}, storage.User{}, badCredentials()
	}

	sessionID, err := s.newID()
	if err != nil {
		return storage.Session{}, storage.User{}, fmt.Errorf("generate session id: %w", err)
	}
	now := s.clock().UTC()
	session := storage.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := s.sessions.PutSession(ctx, session); err != nil {
		return storage.Session{}, storage.User{}, fmt.Errorf("put session: %w", err)
	}
	return session, user, nil
}

// ResolveSession returns the user behind a live session id. Expired sessions
// are deleted on sight.
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (storage.User, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.User{}, invalidSession()
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, invalidSession()
		}
		return storage.User{}, fmt.Errorf("look up session: %w", err)
	}
	if !session.ExpiresAt.After(s.clock().UTC()) {
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return storage.User{}, invalidSession()
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, invalidSession()
		}
		return storage.User{}, fmt.Errorf("look up session user: %w", err)
	}
	if user.Disabled {
		return storage.User{}, invalidSession()
	}
	return user, nil
}

// Logout closes a session. Closing an unknown session is a no-op.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.DeleteSession(ctx, strings.TrimSpace(sessionID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DisableUser locks an account out and closes its open sessions.
func (s *Service) DisableUser(ctx context.Context, userID string) error {
	now := s.clock().UTC()
	if err := s.users.SetUserDisabled(ctx, userID, true, now); err != nil {
		return fmt.Errorf("disable user: %w", err)
	}
	if err := s.sessions.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("close user sessions: %w", err)
	}
	return nil
}

func badCredentials() error {
	return apperrors.New(apperrors.CodeAuthCredentialsBad, "invalid username or password")
}

func invalidSession() error {
	return apperrors.New(apperrors.CodeAuthSessionInvalid, "session is not valid")
}
