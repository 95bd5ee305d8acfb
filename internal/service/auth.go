package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

const maxUsernameLength = 64

// Auth handles the account lifecycle: registration, login, e-mail
// verification and password changes.
type Auth struct {
	credentials   *Credentials
	issuer        *Issuer
	authenticator *Authenticator
	revocation    *Revocation
	notifier      model.Notifier
	userStore     model.UserStore
	logger        *logger.Logger
}

func NewAuth(
	userStore model.UserStore,
	credentials *Credentials,
	issuer *Issuer,
	authenticator *Authenticator,
	revocation *Revocation,
	notifier model.Notifier,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		credentials:   credentials,
		issuer:        issuer,
		authenticator: authenticator,
		revocation:    revocation,
		notifier:      notifier,
		userStore:     userStore,
		logger:        logger,
	}
}

// Register creates an unconfirmed user and mails a verification link.
func (a *Auth) Register(ctx context.Context, username, email, password string) (model.User, error) {
	a.logger.Debug("Auth service: starting user registration",
		"username", username)

	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, fmt.Errorf("%w: username is required", model.ErrValidation)
	}
	if len(username) > maxUsernameLength {
		return model.User{}, fmt.Errorf("%w: username must be at most %d characters", model.ErrValidation, maxUsernameLength)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return model.User{}, err
	}

	if err := a.ensureAvailable(ctx, username, email); err != nil {
		return model.User{}, err
	}

	hash, err := a.credentials.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	user, err := a.userStore.Create(ctx, model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return model.User{}, err
		}
		a.logger.Error("Auth service: failed to create user",
			"username", username,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.sendVerification(ctx, user)

	a.logger.Info("Auth service: user registered",
		"user_id", user.ID.String(),
		"username", user.Username)

	return user, nil
}

func (a *Auth) ensureAvailable(ctx context.Context, username, email string) error {
	_, err := a.userStore.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return model.ErrUsernameTaken
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("failed to get user by username: %w", err)
	}

	_, err = a.userStore.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return model.ErrEmailTaken
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("failed to get user by email: %w", err)
	}
	return nil
}

// Login checks credentials and opens a new session for confirmed users.
func (a *Auth) Login(ctx context.Context, username, password string) (model.User, model.Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return model.User{}, model.Session{}, fmt.Errorf("%w: username and password are required", model.ErrValidation)
	}

	user, err := a.credentials.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Same bcrypt work as a wrong password.
			a.credentials.VerifyPassword(model.User{}, password)
			return model.User{}, model.Session{}, model.ErrInvalidCredentials
		}
		return model.User{}, model.Session{}, fmt.Errorf("failed to get user by username: %w", err)
	}

	if !a.credentials.VerifyPassword(user, password) {
		a.logger.Info("Auth service: invalid password",
			"user_id", user.ID.String())
		return model.User{}, model.Session{}, model.ErrInvalidCredentials
	}

	if !user.Confirmed {
		return model.User{}, model.Session{}, model.ErrAccountNotVerified
	}

	session, err := a.issuer.Issue(ctx, user.ID)
	if err != nil {
		return model.User{}, model.Session{}, err
	}

	a.logger.Info("Auth service: user logged in",
		"user_id", user.ID.String())

	return user, session, nil
}

// RequestVerification re-sends the verification link to an unconfirmed
// user. The result does not reveal whether the e-mail is registered.
func (a *Auth) RequestVerification(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := a.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user by email: %w", err)
	}
	if user.Confirmed {
		return nil
	}

	token, _, err := a.issuer.IssueSingle(ctx, user.ID, model.TokenTypeEmailVerify)
	if err != nil {
		return err
	}
	a.notifier.SendVerification(ctx, user.Email, token)
	return nil
}

// ConfirmEmail spends a verification token and marks its user confirmed.
func (a *Auth) ConfirmEmail(ctx context.Context, token string) error {
	principal, err := consumeSingleUse(ctx, a.authenticator, a.revocation, token, model.TokenTypeEmailVerify)
	if err != nil {
		return err
	}

	if err := a.userStore.Confirm(ctx, principal.User.ID); err != nil {
		a.logger.Error("Auth service: failed to confirm user",
			"user_id", principal.User.ID.String(),
			"error", err.Error())
		return fmt.Errorf("failed to confirm user: %w", err)
	}

	a.logger.Info("Auth service: e-mail confirmed",
		"user_id", principal.User.ID.String())
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the old one, then revokes every token of the user.
func (a *Auth) ChangePassword(ctx context.Context, principal model.Principal, oldPassword, newPassword string) error {
	user := principal.User
	if !a.credentials.VerifyPassword(user, oldPassword) {
		return model.ErrInvalidCredentials
	}

	if err := a.credentials.UpdatePassword(ctx, user.ID, newPassword); err != nil {
		return err
	}

	if _, err := a.revocation.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	a.logger.Info("Auth service: password changed",
		"user_id", user.ID.String())
	return nil
}

func (a *Auth) sendVerification(ctx context.Context, user model.User) {
	token, _, err := a.issuer.IssueSingle(ctx, user.ID, model.TokenTypeEmailVerify)
	if err != nil {
		// The user can ask for another link.
		a.logger.Error("Auth service: failed to issue verification token",
			"user_id", user.ID.String(),
			"error", err.Error())
		return
	}
	a.notifier.SendVerification(ctx, user.Email, token)
}
