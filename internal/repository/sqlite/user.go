package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/townsquare-auth/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, username, email, password_hash, confirmed, created_at, updated_at`

// UserRepository persists users in SQLite.
type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.getOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "username", `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) getOne(ctx context.Context, by, query string, arg any) (model.User, error) {
	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	var (
		user      model.User
		id        string
		confirmed int64
		created   int64
		updated   int64
	)
	err := r.store.db.QueryRowContext(ctx, query, arg).Scan(
		&id, &user.Username, &user.Email, &user.PasswordHash, &confirmed, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user by %s: %w", by, err)
	}

	user.ID, err = uuid.Parse(id)
	if err != nil {
		return model.User{}, fmt.Errorf("get user by %s: bad id %q: %w", by, id, err)
	}
	user.Confirmed = confirmed != 0
	user.CreatedAt = fromMillis(created)
	user.UpdatedAt = fromMillis(updated)
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.store.now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	user.CreatedAt = fromMillis(toMillis(user.CreatedAt))
	user.UpdatedAt = fromMillis(toMillis(user.UpdatedAt))

	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.Email, user.PasswordHash, boolToInt(user.Confirmed),
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			switch column {
			case "users.username":
				return model.User{}, model.ErrUsernameTaken
			case "users.email":
				return model.User{}, model.ErrEmailTaken
			default:
				return model.User{}, model.ErrConflict
			}
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	return r.update(ctx, "password",
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(r.store.now()), id.String(),
	)
}

func (r *UserRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, "confirmation",
		`UPDATE users SET confirmed = 1, updated_at = ? WHERE id = ?`,
		toMillis(r.store.now()), id.String(),
	)
}

func (r *UserRepository) update(ctx context.Context, what, query string, args ...any) error {
	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s: %w", what, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
