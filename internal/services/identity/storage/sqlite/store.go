// Package sqlite provides SQLite-backed persistence for user accounts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/quillhub/quillhub.press/internal/platform/storage/sqlitemigrate"
	"github.com/quillhub/quillhub.press/internal/services/identity/storage"
	"github.com/quillhub/quillhub.press/internal/services/identity/storage/sqlite/migrations"
)

const userColumns = "id, email, password_hash, first_name, last_name, role, created_at, updated_at"

// Store provides SQLite-backed persistence for user records.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates an identity SQLite store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutUser inserts one user row. A duplicate email maps to ErrEmailExists.
func (s *Store) PutUser(ctx context.Context, user storage.User) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" {
		return fmt.Errorf("user email is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.CreatedAt.UTC().UnixMilli(),
		user.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isEmailUniqueViolation(err) {
			return storage.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser loads one user row by id.
func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.User{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// GetUserByEmail loads one user row by its unique email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}
	email = normalizeEmail(email)
	if email == "" {
		return storage.User{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

// ListUsers loads every user row ordered by creation time ascending.
func (s *Store) ListUsers(ctx context.Context) ([]storage.User, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []storage.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SaveUser updates one existing user row in full.
func (s *Store) SaveUser(ctx context.Context, user storage.User) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return storage.ErrNotFound
	}
	user.Email = normalizeEmail(user.Email)

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE users
		 SET email = ?, password_hash = ?, first_name = ?, last_name = ?, role = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.UpdatedAt.UTC().UnixMilli(),
		user.ID,
	)
	if err != nil {
		if isEmailUniqueViolation(err) {
			return storage.ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUser removes one user row by id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isEmailUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "users.email")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (storage.User, error) {
	user, err := scanUserRow(row)
	if err != nil {
		return storage.User{}, err
	}
	return user, nil
}

func scanUserRow(row rowScanner) (storage.User, error) {
	var user storage.User
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = unixMillisToTime(createdAt)
	user.UpdatedAt = unixMillisToTime(updatedAt)
	return user, nil
}

func unixMillisToTime(millis int64) time.Time {
	if millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}

var _ storage.UserStore = (*Store)(nil)
