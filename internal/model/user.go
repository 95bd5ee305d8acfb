package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash []byte) error
	Confirm(ctx context.Context, id uuid.UUID) error
}

// User represents a stored user with its password verifier.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash []byte
	Confirmed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
