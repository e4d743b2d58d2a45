// Package storage defines persistence contracts for user accounts.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested user record is missing.
var ErrNotFound = errors.New("record not found")

// ErrEmailExists indicates an insert collided with the unique email index.
var ErrEmailExists = errors.New("email already registered")

// User stores one account row. PasswordHash is a bcrypt digest and never
// leaves the storage and domain layers.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists user account records. Email uniqueness is enforced at
// the storage level.
type UserStore interface {
	PutUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SaveUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
}
