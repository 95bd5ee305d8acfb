package context

import (
	"context"

	"github.com/dtroode/townsquare-auth/internal/model"
)

type principalKey struct{}

// Manager stores the authenticated principal of a call in its context.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// SetPrincipalToContext returns a copy of ctx carrying principal.
func (m *Manager) SetPrincipalToContext(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// GetPrincipalFromContext returns the principal set by the authentication
// interceptor, if any.
func (m *Manager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(model.Principal)
	return principal, ok
}

var _ model.ContextManager = (*Manager)(nil)
