// Package domain implements account registration, credential checks, and
// user administration. Password hashes never leave this layer.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/identity/storage"
)

const minPasswordLength = 8

// ErrServiceNotConfigured indicates the identity service is nil.
var ErrServiceNotConfigured = errors.New("identity service is not configured")

// ErrStoreNotConfigured indicates the user store dependency is missing.
var ErrStoreNotConfigured = errors.New("user store is not configured")

// ErrCallerRequired indicates an administrative call without an identity.
var ErrCallerRequired = errors.New("caller identity is required")

// User is the externally visible account record. It deliberately omits the
// password hash.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      requestctx.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegisterInput carries the fields for a new account. Role is not part of
// it; every registration starts as an editor.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateInput is a partial patch for an account; nil fields are left
// untouched. Role changes are restricted to administrators.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Role      *requestctx.Role
}

// Config controls password hashing and timestamps.
type Config struct {
	HashCost int
	Clock    func() time.Time
}

// Service manages user accounts on top of a UserStore.
type Service struct {
	users    storage.UserStore
	hashCost int
	clock    func() time.Time
	newID    func() (string, error)
}

// NewService builds an identity service from a user store.
func NewService(users storage.UserStore, newID func() (string, error), cfg Config) *Service {
	hashCost := cfg.HashCost
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		users:    users,
		hashCost: hashCost,
		clock:    clock,
		newID:    newID,
	}
}

// Register creates a new editor account. Duplicate emails conflict; the role
// is always editor regardless of input, promotion happens through UpdateUser.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	if err := s.checkConfigured(); err != nil {
		return User{}, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	if len(input.Password) < minPasswordLength {
		return User{}, apperrors.WithMetadata(apperrors.CodeUserPasswordInvalid,
			"password is too short",
			map[string]string{"min_length": fmt.Sprint(minPasswordLength)})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.newID()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.clock().UTC()
	record := storage.User{
		ID:           userID,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         string(requestctx.RoleEditor),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.PutUser(ctx, record); err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return User{}, apperrors.New(apperrors.CodeEmailExists, "email already registered")
		}
		return User{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "insert user", err)
	}
	return toUser(record), nil
}

// Authenticate checks a credential pair and returns the account on success.
// A missing account and a wrong password produce the same failure, so the
// response does not reveal which emails are registered.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if err := s.checkConfigured(); err != nil {
		return User{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	record, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, apperrors.New(apperrors.CodeCredentialsInvalid, "invalid credentials")
		}
		return User{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return User{}, apperrors.New(apperrors.CodeCredentialsInvalid, "invalid credentials")
	}
	return toUser(record), nil
}

// GetUser returns one account by id.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	if err := s.checkConfigured(); err != nil {
		return User{}, err
	}

	record, err := s.loadUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return toUser(record), nil
}

// ListUsers returns every account ordered by creation time.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list users", err)
	}
	users := make([]User, 0, len(records))
	for _, record := range records {
		users = append(users, toUser(record))
	}
	return users, nil
}

// UpdateUser applies a partial patch to an account. Callers may patch their
// own name; only administrators may patch other accounts or change roles.
func (s *Service) UpdateUser(ctx context.Context, userID string, patch UpdateInput, caller requestctx.Principal) (User, error) {
	if err := s.checkConfigured(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(caller.ID) == "" {
		return User{}, ErrCallerRequired
	}

	record, err := s.loadUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if !caller.IsAdmin() && record.ID != caller.ID {
		return User{}, apperrors.New(apperrors.CodePermissionDenied, "not allowed to modify this user")
	}

	if patch.FirstName != nil {
		record.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		record.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Role != nil {
		if !caller.IsAdmin() {
			return User{}, apperrors.New(apperrors.CodePermissionDenied, "role changes require an administrator")
		}
		role := *patch.Role
		if role != requestctx.RoleAdmin && role != requestctx.RoleEditor {
			return User{}, apperrors.New(apperrors.CodeUnknown, "unknown role")
		}
		record.Role = string(role)
	}
	record.UpdatedAt = s.clock().UTC()

	if err := s.users.SaveUser(ctx, record); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return User{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "save user", err)
	}
	return toUser(record), nil
}

// DeleteUser removes an account. Callers may delete themselves; only
// administrators may delete other accounts.
func (s *Service) DeleteUser(ctx context.Context, userID string, caller requestctx.Principal) error {
	if err := s.checkConfigured(); err != nil {
		return err
	}
	if strings.TrimSpace(caller.ID) == "" {
		return ErrCallerRequired
	}

	record, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && record.ID != caller.ID {
		return apperrors.New(apperrors.CodePermissionDenied, "not allowed to delete this user")
	}

	if err := s.users.DeleteUser(ctx, record.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "delete user", err)
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (storage.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.User{}, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return storage.User{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "load user", err)
	}
	return record, nil
}

func (s *Service) checkConfigured() error {
	if s == nil {
		return ErrServiceNotConfigured
	}
	if s.users == nil {
		return ErrStoreNotConfigured
	}
	if s.newID == nil {
		return errors.New("id generator is not configured")
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return apperrors.New(apperrors.CodeUserEmailInvalid, "email address is malformed")
	}
	return nil
}

func toUser(record storage.User) User {
	return User{
		ID:        record.ID,
		Email:     record.Email,
		FirstName: record.FirstName,
		LastName:  record.LastName,
		Role:      requestctx.Role(record.Role),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
