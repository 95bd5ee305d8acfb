package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/townsquare-auth/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, username, email, password_hash, confirmed, created_at, updated_at`

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "id", query, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getOne(ctx, "username", query, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, "email", query, email)
}

func (r *UserRepository) getOne(ctx context.Context, by, query string, arg any) (model.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by %s: %w", by, err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, username, email, password_hash, confirmed, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + userColumns

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	savedUser, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Confirmed,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		if constraint, ok := constraintViolation(err); ok {
			switch constraint {
			case "users_username_key":
				return model.User{}, model.ErrUsernameTaken
			case "users_email_key":
				return model.User{}, model.ErrEmailTaken
			default:
				return model.User{}, model.ErrConflict
			}
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return savedUser, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.update(ctx, "password", query, id, passwordHash)
}

func (r *UserRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE users SET confirmed = TRUE, updated_at = NOW() WHERE id = $1`
	return r.update(ctx, "confirmation", query, id)
}

func (r *UserRepository) update(ctx context.Context, what, query string, args ...any) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Confirmed,
		&user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}
