package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// Revocation invalidates tokens: single revokes, refresh rotation, logout
// and revoke-all.
type Revocation struct {
	codec  model.TokenCodec
	ledger model.Ledger
	issuer *Issuer
	logger *logger.Logger
}

func NewRevocation(codec model.TokenCodec, ledger model.Ledger, issuer *Issuer, logger *logger.Logger) *Revocation {
	return &Revocation{codec: codec, ledger: ledger, issuer: issuer, logger: logger}
}

// Revoke revokes the token the principal authenticated with. Revoking an
// already revoked token is not an error.
func (r *Revocation) Revoke(ctx context.Context, principal model.Principal) error {
	claims := principal.Claims
	if _, err := r.ledger.Revoke(ctx, claims.JTI, claims.SubjectID); err != nil {
		r.logger.Error("Revocation: failed to revoke token",
			"jti", claims.JTI,
			"token_type", string(claims.Type),
			"error", err.Error())
		return fmt.Errorf("revoke %s token: %w", claims.Type, err)
	}

	r.logger.Info("Revocation: token revoked",
		"subject_id", claims.SubjectID.String(),
		"token_type", string(claims.Type))
	return nil
}

// Rotate exchanges the principal's refresh token for a new session. Of two
// concurrent rotations of the same token only one gets a session; the
// other fails with ErrTokenRevoked.
func (r *Revocation) Rotate(ctx context.Context, principal model.Principal) (model.Session, error) {
	claims := principal.Claims
	if claims.Type != model.TokenTypeRefresh {
		return model.Session{}, model.ErrInvalidToken
	}

	swapped, err := r.ledger.Revoke(ctx, claims.JTI, claims.SubjectID)
	if err != nil {
		r.logger.Error("Revocation: failed to revoke refresh token",
			"jti", claims.JTI,
			"error", err.Error())
		return model.Session{}, fmt.Errorf("revoke refresh: %w", err)
	}
	if !swapped {
		r.logger.Warn("Revocation: refresh token already used",
			"subject_id", claims.SubjectID.String(),
			"jti", claims.JTI)
		return model.Session{}, model.ErrTokenRevoked
	}

	session, err := r.issuer.Issue(ctx, claims.SubjectID)
	if err != nil {
		return model.Session{}, err
	}
	return session, nil
}

// Consume marks a single-use token as spent. It fails with ErrTokenRevoked
// when the token was already spent, including by a concurrent caller.
func (r *Revocation) Consume(ctx context.Context, principal model.Principal) error {
	claims := principal.Claims
	swapped, err := r.ledger.Revoke(ctx, claims.JTI, claims.SubjectID)
	if err != nil {
		r.logger.Error("Revocation: failed to consume token",
			"jti", claims.JTI,
			"token_type", string(claims.Type),
			"error", err.Error())
		return fmt.Errorf("consume %s token: %w", claims.Type, err)
	}
	if !swapped {
		return model.ErrTokenRevoked
	}
	return nil
}

// Logout revokes the principal's refresh token and, best effort, the access
// token supplied alongside it.
func (r *Revocation) Logout(ctx context.Context, principal model.Principal, bodyAccessToken string) error {
	if err := r.Revoke(ctx, principal); err != nil {
		return err
	}
	if bodyAccessToken != "" {
		r.revokeBestEffort(ctx, principal.Claims.SubjectID, bodyAccessToken)
	}
	return nil
}

// revokeBestEffort revokes an access token of subjectID if it decodes.
// Failures are logged and never reach the caller.
func (r *Revocation) revokeBestEffort(ctx context.Context, subjectID uuid.UUID, token string) {
	claims, err := r.codec.Decode(token, false)
	if err != nil {
		r.logger.Debug("Revocation: skipping undecodable access token",
			"subject_id", subjectID.String(),
			"error", err.Error())
		return
	}
	if claims.Type != model.TokenTypeAccess || claims.SubjectID != subjectID {
		r.logger.Warn("Revocation: skipping foreign access token on logout",
			"subject_id", subjectID.String(),
			"token_type", string(claims.Type))
		return
	}

	if _, err := r.ledger.Revoke(ctx, claims.JTI, claims.SubjectID); err != nil {
		r.logger.Error("Revocation: failed to revoke access token on logout",
			"subject_id", subjectID.String(),
			"jti", claims.JTI,
			"error", err.Error())
	}
}

// RevokeAll revokes every active token of subjectID.
func (r *Revocation) RevokeAll(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	n, err := r.ledger.RevokeAll(ctx, subjectID)
	if err != nil {
		r.logger.Error("Revocation: failed to revoke all tokens",
			"subject_id", subjectID.String(),
			"error", err.Error())
		return 0, fmt.Errorf("revoke all: %w", err)
	}

	r.logger.Info("Revocation: all tokens revoked",
		"subject_id", subjectID.String(),
		"count", n)
	return n, nil
}
