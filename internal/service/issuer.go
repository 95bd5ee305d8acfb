package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// TokenTTL holds the lifetime of every token type.
type TokenTTL struct {
	Access        time.Duration
	Refresh       time.Duration
	PasswordReset time.Duration
	EmailVerify   time.Duration
}

// DefaultTokenTTL returns the stock token lifetimes.
func DefaultTokenTTL() TokenTTL {
	return TokenTTL{
		Access:        15 * time.Minute,
		Refresh:       30 * 24 * time.Hour,
		PasswordReset: 15 * time.Minute,
		EmailVerify:   24 * time.Hour,
	}
}

func (t TokenTTL) forType(tokenType model.TokenType) time.Duration {
	switch tokenType {
	case model.TokenTypeAccess:
		return t.Access
	case model.TokenTypeRefresh:
		return t.Refresh
	case model.TokenTypePasswordReset:
		return t.PasswordReset
	case model.TokenTypeEmailVerify:
		return t.EmailVerify
	default:
		return 0
	}
}

// Issuer mints tokens and records every one of them in the ledger before
// handing it out.
type Issuer struct {
	codec  model.TokenCodec
	ledger model.Ledger
	ttl    TokenTTL
	logger *logger.Logger
}

func NewIssuer(codec model.TokenCodec, ledger model.Ledger, ttl TokenTTL, logger *logger.Logger) *Issuer {
	return &Issuer{codec: codec, ledger: ledger, ttl: ttl, logger: logger}
}

// Issue creates an access/refresh pair for subjectID. Nothing is returned
// unless both tokens are in the ledger.
func (i *Issuer) Issue(ctx context.Context, subjectID uuid.UUID) (model.Session, error) {
	access, accessClaims, err := i.codec.Encode(subjectID, model.TokenTypeAccess, i.ttl.Access, nil)
	if err != nil {
		return model.Session{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, refreshClaims, err := i.codec.Encode(subjectID, model.TokenTypeRefresh, i.ttl.Refresh, nil)
	if err != nil {
		return model.Session{}, fmt.Errorf("issue refresh: %w", err)
	}

	err = i.ledger.Record(ctx, model.NewLedgerEntry(accessClaims), model.NewLedgerEntry(refreshClaims))
	if err != nil {
		i.logger.Error("Issuer: failed to record session",
			"subject_id", subjectID.String(),
			"error", err.Error())
		return model.Session{}, fmt.Errorf("record session: %w", err)
	}

	i.logger.Debug("Issuer: session issued",
		"subject_id", subjectID.String(),
		"access_jti", accessClaims.JTI,
		"refresh_jti", refreshClaims.JTI)

	return model.Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
	}, nil
}

// IssueSingle creates one ledger-recorded single-purpose token, such as a
// password reset or e-mail verification token.
func (i *Issuer) IssueSingle(ctx context.Context, subjectID uuid.UUID, tokenType model.TokenType) (string, model.Claims, error) {
	extra := map[string]string{model.ExtraPurpose: string(tokenType)}

	token, claims, err := i.codec.Encode(subjectID, tokenType, i.ttl.forType(tokenType), extra)
	if err != nil {
		return "", model.Claims{}, fmt.Errorf("issue %s: %w", tokenType, err)
	}

	if err := i.ledger.Record(ctx, model.NewLedgerEntry(claims)); err != nil {
		i.logger.Error("Issuer: failed to record token",
			"subject_id", subjectID.String(),
			"token_type", string(tokenType),
			"error", err.Error())
		return "", model.Claims{}, fmt.Errorf("record %s: %w", tokenType, err)
	}

	return token, claims, nil
}
