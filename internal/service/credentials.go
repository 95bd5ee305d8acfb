package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/townsquare-auth/internal/model"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

// Credentials looks up users and verifies or replaces their password hashes.
type Credentials struct {
	users   model.UserStore
	cost    int
	dummy   []byte
	compare func(hash, password []byte) error
}

// NewCredentials creates a Credentials store hashing with the given bcrypt cost.
// A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewCredentials(users model.UserStore, cost int) *Credentials {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Placeholder for users without a hash; the plaintext is never accepted.
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	return &Credentials{
		users:   users,
		cost:    cost,
		dummy:   dummy,
		compare: bcrypt.CompareHashAndPassword,
	}
}

func (c *Credentials) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return c.users.GetByID(ctx, id)
}

func (c *Credentials) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return c.users.GetByUsername(ctx, username)
}

func (c *Credentials) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return c.users.GetByEmail(ctx, email)
}

// Hash validates and hashes a plaintext password.
func (c *Credentials) Hash(password string) ([]byte, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword reports whether password matches the user's stored hash.
// A user without a hash, such as the zero User passed for an unknown name,
// still pays for one bcrypt comparison and never matches.
func (c *Credentials) VerifyPassword(user model.User, password string) bool {
	if len(user.PasswordHash) == 0 {
		_ = c.compare(c.dummy, []byte(password))
		return false
	}
	return c.compare(user.PasswordHash, []byte(password)) == nil
}

// UpdatePassword replaces the user's password hash.
func (c *Credentials) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := c.Hash(password)
	if err != nil {
		return err
	}
	if err := c.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return fmt.Errorf("%w: password is required", model.ErrValidation)
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, minPasswordLength)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", model.ErrValidation, maxPasswordLength)
	}
	return nil
}
