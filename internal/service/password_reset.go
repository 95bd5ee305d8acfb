package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// PasswordReset runs the forgot-password flow: a single-use, ledger-recorded
// reset token is mailed to the user and exchanged for a new password.
type PasswordReset struct {
	credentials   *Credentials
	issuer        *Issuer
	authenticator *Authenticator
	revocation    *Revocation
	notifier      model.Notifier
	logger        *logger.Logger
}

func NewPasswordReset(
	credentials *Credentials,
	issuer *Issuer,
	authenticator *Authenticator,
	revocation *Revocation,
	notifier model.Notifier,
	logger *logger.Logger,
) *PasswordReset {
	return &PasswordReset{
		credentials:   credentials,
		issuer:        issuer,
		authenticator: authenticator,
		revocation:    revocation,
		notifier:      notifier,
		logger:        logger,
	}
}

// RequestReset mails a reset link when email belongs to a user. Callers
// cannot tell from the result whether it does.
func (p *PasswordReset) RequestReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := p.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			p.logger.Debug("Password reset: no user for email")
			return nil
		}
		p.logger.Error("Password reset: failed to look up user",
			"error", err.Error())
		return fmt.Errorf("find user by email: %w", err)
	}

	token, _, err := p.issuer.IssueSingle(ctx, user.ID, model.TokenTypePasswordReset)
	if err != nil {
		return err
	}

	p.notifier.SendPasswordReset(ctx, user.Email, token)

	p.logger.Info("Password reset: reset token issued",
		"user_id", user.ID.String())
	return nil
}

// ConsumeReset spends a reset token, sets the new password and revokes
// every other token of the user.
func (p *PasswordReset) ConsumeReset(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	principal, err := consumeSingleUse(ctx, p.authenticator, p.revocation, token, model.TokenTypePasswordReset)
	if err != nil {
		return err
	}

	userID := principal.User.ID
	if err := p.credentials.UpdatePassword(ctx, userID, newPassword); err != nil {
		p.logger.Error("Password reset: failed to update password",
			"user_id", userID.String(),
			"error", err.Error())
		return err
	}

	if _, err := p.revocation.RevokeAll(ctx, userID); err != nil {
		return err
	}

	p.logger.Info("Password reset: password changed",
		"user_id", userID.String())
	return nil
}

// consumeSingleUse authenticates a single-purpose token of the given type
// and marks it spent.
func consumeSingleUse(
	ctx context.Context,
	authenticator *Authenticator,
	revocation *Revocation,
	token string,
	tokenType model.TokenType,
) (model.Principal, error) {
	result, err := authenticator.Authenticate(ctx, token, tokenType)
	if err != nil {
		return model.Principal{}, err
	}
	if !result.OK() {
		return model.Principal{}, result.Err()
	}

	principal := result.Principal
	if principal.Claims.Extra[model.ExtraPurpose] != string(tokenType) {
		return model.Principal{}, model.ErrInvalidToken
	}

	if err := revocation.Consume(ctx, principal); err != nil {
		return model.Principal{}, err
	}
	return principal, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", model.ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email format", model.ErrValidation)
	}
	return email, nil
}
