package middleware

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// Authenticator decides whether a bearer token may be used for a call.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, required model.TokenType) (model.AuthResult, error)
}

// Authenticate validates bearer tokens and injects the principal into context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, contextManager: contextManager, logger: logger}
}

// AuthFunc returns an auth.AuthFunc accepting only tokens of the required type.
// Every rejection looks the same to the caller.
func (m *Authenticate) AuthFunc(required model.TokenType) auth.AuthFunc {
	return func(ctx context.Context) (context.Context, error) {
		// A missing or non-bearer header is an empty token.
		token, _ := auth.AuthFromMD(ctx, "bearer")

		result, err := m.authenticator.Authenticate(ctx, token, required)
		if err != nil {
			m.logger.Error("Authenticate middleware: authentication unavailable",
				"required", string(required),
				"error", err.Error())
			return nil, status.Error(codes.Internal, "internal server error")
		}

		if !result.OK() {
			m.logger.Debug("Authenticate middleware: token rejected",
				"required", string(required),
				"status", result.Status.String())
			return nil, status.Error(codes.Unauthenticated, model.UnauthenticatedMessage)
		}

		return m.contextManager.SetPrincipalToContext(ctx, result.Principal), nil
	}
}
