package router

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/ratelimit"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/townsquare-auth/internal/api/grpc/authpb"
	"github.com/dtroode/townsquare-auth/internal/api/grpc/handler"
	"github.com/dtroode/townsquare-auth/internal/api/grpc/middleware"
	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

var (
	accessMethods = methodSet(
		authpb.Auth_RevokeAccess_FullMethodName,
		authpb.Auth_ChangePassword_FullMethodName,
		authpb.Auth_GetCurrentUser_FullMethodName,
	)
	refreshMethods = methodSet(
		authpb.Auth_RefreshToken_FullMethodName,
		authpb.Auth_RevokeRefresh_FullMethodName,
		authpb.Auth_Logout_FullMethodName,
	)
	rateLimitedMethods = methodSet(
		authpb.Auth_Register_FullMethodName,
		authpb.Auth_Login_FullMethodName,
		authpb.Auth_RequestVerification_FullMethodName,
		authpb.Auth_RequestPasswordReset_FullMethodName,
		authpb.Auth_ResetPassword_FullMethodName,
	)
)

func methodSet(methods ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return set
}

func matchMethods(set map[string]struct{}) selector.Matcher {
	return selector.MatchFunc(func(_ context.Context, c interceptors.CallMeta) bool {
		_, ok := set[c.FullMethod()]
		return ok
	})
}

// Router wires the Auth service, its interceptors and the health service
// into a gRPC server.
type Router struct {
	accounts       handler.AccountService
	reset          handler.PasswordResetService
	revocation     handler.RevocationService
	authenticator  middleware.Authenticator
	contextManager model.ContextManager
	limiter        ratelimit.Limiter
	health         *health.Server
	logger         *logger.Logger
}

// New creates a Router. A nil limiter disables rate limiting.
func New(
	accounts handler.AccountService,
	reset handler.PasswordResetService,
	revocation handler.RevocationService,
	authenticator middleware.Authenticator,
	contextManager model.ContextManager,
	limiter ratelimit.Limiter,
	logger *logger.Logger,
) *Router {
	return &Router{
		accounts:       accounts,
		reset:          reset,
		revocation:     revocation,
		authenticator:  authenticator,
		contextManager: contextManager,
		limiter:        limiter,
		health:         health.NewServer(),
		logger:         logger,
	}
}

// Register builds the gRPC server with all services and interceptors.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.authenticator, r.contextManager, r.logger)
	recoveryOpt := recovery.WithRecoveryHandler(r.recover)

	unary := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recoveryOpt),
		logging.HandleGRPC,
	}
	if r.limiter != nil {
		unary = append(unary, selector.UnaryServerInterceptor(
			ratelimit.UnaryServerInterceptor(r.limiter),
			matchMethods(rateLimitedMethods),
		))
	}
	unary = append(unary,
		selector.UnaryServerInterceptor(
			auth.UnaryServerInterceptor(authenticate.AuthFunc(model.TokenTypeAccess)),
			matchMethods(accessMethods),
		),
		selector.UnaryServerInterceptor(
			auth.UnaryServerInterceptor(authenticate.AuthFunc(model.TokenTypeRefresh)),
			matchMethods(refreshMethods),
		),
	)

	opts = append(opts,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(recovery.StreamServerInterceptor(recoveryOpt)),
	)
	s := grpc.NewServer(opts...)

	authpb.RegisterAuthServer(s, handler.NewAuth(r.accounts, r.reset, r.revocation, r.contextManager, r.logger))

	healthpb.RegisterHealthServer(s, r.health)
	r.health.SetServingStatus(authpb.Auth_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Shutdown reports every service as not serving.
func (r *Router) Shutdown() {
	r.health.Shutdown()
}

func (r *Router) recover(p any) error {
	r.logger.Error("gRPC handler panicked",
		"panic", fmt.Sprint(p))
	return status.Error(codes.Internal, "internal server error")
}
