package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/townsquare-auth/internal/model"
)

var _ model.Ledger = (*LedgerRepository)(nil)

// LedgerRepository stores issued tokens in SQLite.
type LedgerRepository struct {
	store *Store
}

func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

func (r *LedgerRepository) Record(ctx context.Context, entries ...model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record ledger entries: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO token_ledger (jti, token_type, subject_id, issued_at, expires_at, revoked_at)
			 VALUES (?, ?, ?, ?, ?, NULL)`,
			e.JTI, string(e.TokenType), e.SubjectID.String(), toMillis(e.IssuedAt), toMillis(e.ExpiresAt),
		)
		if err != nil {
			return fmt.Errorf("record ledger entry %s: %w", e.JTI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record ledger entries: commit: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Revoke(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error) {
	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx,
		`UPDATE token_ledger SET revoked_at = ?
		 WHERE jti = ? AND subject_id = ? AND revoked_at IS NULL`,
		toMillis(r.store.now()), jti, subjectID.String(),
	)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return n == 1, nil
}

func (r *LedgerRepository) IsRevoked(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error) {
	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	var active int64
	err := r.store.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM token_ledger
		   WHERE jti = ? AND subject_id = ? AND revoked_at IS NULL
		 )`,
		jti, subjectID.String(),
	).Scan(&active)
	if err != nil {
		return true, fmt.Errorf("check token revocation: %w", err)
	}
	return active == 0, nil
}

func (r *LedgerRepository) RevokeAll(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx,
		`UPDATE token_ledger SET revoked_at = ? WHERE subject_id = ? AND revoked_at IS NULL`,
		toMillis(r.store.now()), subjectID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens by subject: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke tokens by subject: %w", err)
	}
	return n, nil
}

func (r *LedgerRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]model.LedgerEntry, error) {
	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT jti, token_type, subject_id, issued_at, expires_at, revoked_at
		 FROM token_ledger
		 WHERE expires_at < ?
		 ORDER BY expires_at, jti
		 LIMIT ?`,
		toMillis(before), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired tokens: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var (
			e         model.LedgerEntry
			tokenType string
			subjectID string
			issuedAt  int64
			expiresAt int64
			revokedAt sql.NullInt64
		)
		if err := rows.Scan(&e.JTI, &tokenType, &subjectID, &issuedAt, &expiresAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.SubjectID, err = uuid.Parse(subjectID)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry %s: bad subject: %w", e.JTI, err)
		}
		e.TokenType = model.TokenType(tokenType)
		e.IssuedAt = fromMillis(issuedAt)
		e.ExpiresAt = fromMillis(expiresAt)
		if revokedAt.Valid {
			t := fromMillis(revokedAt.Int64)
			e.RevokedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired tokens: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) DeleteByJTI(ctx context.Context, jtis []string) (int64, error) {
	if len(jtis) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(jtis)), ",")
	args := make([]any, len(jtis))
	for i, jti := range jtis {
		args[i] = jti
	}

	ctx, cancel := r.store.withTimeout(ctx)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx,
		`DELETE FROM token_ledger WHERE jti IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries: %w", err)
	}
	return n, nil
}
