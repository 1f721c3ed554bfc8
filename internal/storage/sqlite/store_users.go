package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/potaudit/potaudit/internal/storage"
)

// PutUser inserts or updates one operator account.
func (s *Store) PutUser(ctx context.Context, u storage.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	normalized, err := normalizeUser(u)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, username, display_name, password_hash, role, disabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	username = excluded.username,
	display_name = excluded.display_name,
	password_hash = excluded.password_hash,
	role = excluded.role,
	disabled = excluded.disabled,
	updated_at = excluded.updated_at
`,
		normalized.ID,
		normalized.Username,
		normalized.DisplayName,
		normalized.PasswordHash,
		normalized.Role,
		normalized.Disabled,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser returns one operator account by ID.
func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, display_name, password_hash, role, disabled, created_at, updated_at
FROM users
WHERE id = ?
`, id)
	u, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns one operator account by its login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return storage.User{}, fmt.Errorf("username is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, display_name, password_hash, role, disabled, created_at, updated_at
FROM users
WHERE username = ?
`, username)
	u, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns every operator account ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]storage.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, username, display_name, password_hash, role, disabled, created_at, updated_at
FROM users
ORDER BY username ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	users := []storage.User{}
	for rows.Next() {
		u, scanErr := scanUser(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan user: %w", scanErr)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetUserDisabled flips the disabled flag of one operator account.
func (s *Store) SetUserDisabled(ctx context.Context, id string, disabled bool, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE users
SET disabled = ?, updated_at = ?
WHERE id = ?
`, disabled, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("set user disabled: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user disabled rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type userScanner func(dest ...any) error

func scanUser(scan userScanner) (storage.User, error) {
	var u storage.User
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&u.ID,
		&u.Username,
		&u.DisplayName,
		&u.PasswordHash,
		&u.Role,
		&u.Disabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func normalizeUser(u storage.User) (storage.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.Role = strings.TrimSpace(u.Role)
	if u.ID == "" {
		return storage.User{}, fmt.Errorf("user id is required")
	}
	if u.Username == "" {
		return storage.User{}, fmt.Errorf("username is required")
	}
	if u.PasswordHash == "" {
		return storage.User{}, fmt.Errorf("password hash is required")
	}
	if u.Role == "" {
		u.Role = storage.RoleAnalyst
	}
	if u.Role != storage.RoleAdmin && u.Role != storage.RoleAnalyst {
		return storage.User{}, fmt.Errorf("unknown role %q", u.Role)
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	return u, nil
}
