package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dtroode/townsquare-auth/internal/api/grpc/authpb"
	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// AccountService defines the account lifecycle operations.
type AccountService interface {
	Register(ctx context.Context, username, email, password string) (model.User, error)
	Login(ctx context.Context, username, password string) (model.User, model.Session, error)
	RequestVerification(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, principal model.Principal, oldPassword, newPassword string) error
}

// PasswordResetService defines the forgot-password flow.
type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ConsumeReset(ctx context.Context, token, newPassword string) error
}

// RevocationService defines token revocation and rotation.
type RevocationService interface {
	Revoke(ctx context.Context, principal model.Principal) error
	Rotate(ctx context.Context, principal model.Principal) (model.Session, error)
	Logout(ctx context.Context, principal model.Principal, bodyAccessToken string) error
}

// Auth handles gRPC endpoints of the api.Auth service.
type Auth struct {
	authpb.UnimplementedAuthServer
	accounts       AccountService
	reset          PasswordResetService
	revocation     RevocationService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(
	accounts AccountService,
	reset PasswordResetService,
	revocation RevocationService,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		accounts:       accounts,
		reset:          reset,
		revocation:     revocation,
		contextManager: contextManager,
		logger:         logger,
	}
}

var _ authpb.AuthServer = (*Auth)(nil)

// Register creates an account and mails a verification link.
func (h *Auth) Register(ctx context.Context, req *authpb.RegisterRequest) (*authpb.User, error) {
	h.logger.Debug("Auth handler: processing registration request",
		"username", req.Username)

	user, err := h.accounts.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		h.logger.Info("Auth handler: registration failed",
			"username", req.Username,
			"error", err.Error())
		return nil, handleError(err)
	}

	return toUser(user), nil
}

// Login checks credentials and returns a new session.
func (h *Auth) Login(ctx context.Context, req *authpb.LoginRequest) (*authpb.LoginResponse, error) {
	h.logger.Debug("Auth handler: processing login request",
		"username", req.Username)

	user, session, err := h.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.Info("Auth handler: login failed",
			"username", req.Username,
			"error", err.Error())
		return nil, handleError(err)
	}

	return &authpb.LoginResponse{
		User:    toUser(user),
		Session: toSession(session),
	}, nil
}

// RequestVerification re-sends the verification link.
func (h *Auth) RequestVerification(ctx context.Context, req *authpb.EmailRequest) (*emptypb.Empty, error) {
	if err := h.accounts.RequestVerification(ctx, req.Email); err != nil {
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// ConfirmEmail spends a verification token from a mailed link.
func (h *Auth) ConfirmEmail(ctx context.Context, req *authpb.TokenRequest) (*emptypb.Empty, error) {
	if err := h.accounts.ConfirmEmail(ctx, req.Token); err != nil {
		h.logger.Info("Auth handler: e-mail confirmation failed",
			"error", err.Error())
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// RequestPasswordReset mails a reset link. The answer is the same whether
// or not the address is registered.
func (h *Auth) RequestPasswordReset(ctx context.Context, req *authpb.EmailRequest) (*emptypb.Empty, error) {
	if err := h.reset.RequestReset(ctx, req.Email); err != nil {
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// ResetPassword spends a reset token and sets a new password.
func (h *Auth) ResetPassword(ctx context.Context, req *authpb.ResetPasswordRequest) (*emptypb.Empty, error) {
	if err := h.reset.ConsumeReset(ctx, req.Token, req.NewPassword); err != nil {
		h.logger.Info("Auth handler: password reset failed",
			"error", err.Error())
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// RefreshToken exchanges the bearer refresh token for a new session.
func (h *Auth) RefreshToken(ctx context.Context, _ *emptypb.Empty) (*authpb.Session, error) {
	principal, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}

	session, err := h.revocation.Rotate(ctx, principal)
	if err != nil {
		h.logger.Info("Auth handler: token refresh failed",
			"user_id", principal.User.ID.String(),
			"error", err.Error())
		return nil, handleError(err)
	}

	return toSession(session), nil
}

// RevokeRefresh revokes the bearer refresh token.
func (h *Auth) RevokeRefresh(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return h.revokeBearer(ctx)
}

// RevokeAccess revokes the bearer access token.
func (h *Auth) RevokeAccess(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return h.revokeBearer(ctx)
}

// Logout revokes the bearer refresh token and, best effort, the access
// token from the body.
func (h *Auth) Logout(ctx context.Context, req *authpb.LogoutRequest) (*emptypb.Empty, error) {
	principal, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.revocation.Logout(ctx, principal, req.AccessToken); err != nil {
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: logout completed",
		"user_id", principal.User.ID.String())
	return &emptypb.Empty{}, nil
}

// ChangePassword replaces the caller's password and ends all its sessions.
func (h *Auth) ChangePassword(ctx context.Context, req *authpb.ChangePasswordRequest) (*emptypb.Empty, error) {
	principal, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.accounts.ChangePassword(ctx, principal, req.OldPassword, req.NewPassword); err != nil {
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// GetCurrentUser returns the authenticated user.
func (h *Auth) GetCurrentUser(ctx context.Context, _ *emptypb.Empty) (*authpb.User, error) {
	principal, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	return toUser(principal.User), nil
}

func (h *Auth) revokeBearer(ctx context.Context) (*emptypb.Empty, error) {
	principal, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.revocation.Revoke(ctx, principal); err != nil {
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: token revoked",
		"user_id", principal.User.ID.String(),
		"token_type", string(principal.Claims.Type))
	return &emptypb.Empty{}, nil
}

func (h *Auth) principal(ctx context.Context) (model.Principal, error) {
	principal, ok := h.contextManager.GetPrincipalFromContext(ctx)
	if !ok {
		return model.Principal{}, status.Error(codes.Unauthenticated, model.UnauthenticatedMessage)
	}
	return principal, nil
}

func toUser(user model.User) *authpb.User {
	return &authpb.User{
		Id:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Confirmed: user.Confirmed,
	}
}

func toSession(session model.Session) *authpb.Session {
	return &authpb.Session{
		AccessToken:      session.AccessToken,
		RefreshToken:     session.RefreshToken,
		AccessExpiresAt:  timestamppb.New(session.AccessExpiresAt),
		RefreshExpiresAt: timestamppb.New(session.RefreshExpiresAt),
	}
}
