package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/townsquare-auth/internal/model"
)

var _ model.Ledger = (*LedgerRepository)(nil)

// LedgerRepository stores issued tokens in the token_ledger table.
type LedgerRepository struct {
	db *Connection
}

func NewLedgerRepository(db *Connection) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Record(ctx context.Context, entries ...model.LedgerEntry) error {
	const query = `
        INSERT INTO token_ledger (jti, token_type, subject_id, issued_at, expires_at, revoked_at)
        VALUES ($1, $2, $3, $4, $5, NULL)
    `
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, e := range entries {
			if _, err := tx.Exec(ctx, query, e.JTI, string(e.TokenType), e.SubjectID, e.IssuedAt, e.ExpiresAt); err != nil {
				return fmt.Errorf("insert %s: %w", e.JTI, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record ledger entries: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Revoke(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error) {
	const query = `
        UPDATE token_ledger SET revoked_at = NOW()
        WHERE jti = $1 AND subject_id = $2 AND revoked_at IS NULL
    `
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, jti, subjectID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepository) IsRevoked(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM token_ledger
            WHERE jti = $1 AND subject_id = $2 AND revoked_at IS NULL
        )
    `
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var active bool
	if err := r.db.QueryRow(ctx, query, jti, subjectID).Scan(&active); err != nil {
		return true, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return !active, nil
}

func (r *LedgerRepository) RevokeAll(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	const query = `
        UPDATE token_ledger SET revoked_at = NOW()
        WHERE subject_id = $1 AND revoked_at IS NULL
    `
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens by subject: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *LedgerRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]model.LedgerEntry, error) {
	const query = `
        SELECT jti, token_type, subject_id, issued_at, expires_at, revoked_at
        FROM token_ledger
        WHERE expires_at < $1
        ORDER BY expires_at, jti
        LIMIT $2
    `
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired tokens: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var (
			e         model.LedgerEntry
			tokenType string
		)
		if err := rows.Scan(&e.JTI, &tokenType, &e.SubjectID, &e.IssuedAt, &e.ExpiresAt, &e.RevokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.TokenType = model.TokenType(tokenType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expired tokens: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) DeleteByJTI(ctx context.Context, jtis []string) (int64, error) {
	const query = `DELETE FROM token_ledger WHERE jti = ANY($1)`
	if len(jtis) == 0 {
		return 0, nil
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, jtis)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
