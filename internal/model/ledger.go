package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger is the durable record of every issued token and whether it has
// been revoked. A token without an entry is treated as revoked.
type Ledger interface {
	// Record inserts entries with no revocation time. All entries are
	// written atomically.
	Record(ctx context.Context, entries ...LedgerEntry) error
	// Revoke marks the active entry for jti as revoked. It reports false,
	// without error, when there is no active entry for the pair.
	Revoke(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error)
	// IsRevoked reports true when the entry is revoked or missing.
	IsRevoked(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error)
	// RevokeAll revokes every active entry of the subject.
	RevokeAll(ctx context.Context, subjectID uuid.UUID) (int64, error)
	// ListExpired returns up to limit entries that expired before the given time.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]LedgerEntry, error)
	// DeleteByJTI removes entries by their token identifiers.
	DeleteByJTI(ctx context.Context, jtis []string) (int64, error)
}

// LedgerEntry is a single issued token as seen by the ledger.
type LedgerEntry struct {
	JTI       string     `json:"jti"`
	TokenType TokenType  `json:"token_type"`
	SubjectID uuid.UUID  `json:"subject_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// NewLedgerEntry builds an active entry from decoded claims.
func NewLedgerEntry(claims Claims) LedgerEntry {
	return LedgerEntry{
		JTI:       claims.JTI,
		TokenType: claims.Type,
		SubjectID: claims.SubjectID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}
}
