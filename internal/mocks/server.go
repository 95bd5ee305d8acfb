package mocks

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// SecurityLayer is a mock of model.SecurityLayer.
type SecurityLayer struct {
	mock.Mock
}

func NewSecurityLayer(t testing.TB) *SecurityLayer {
	m := &SecurityLayer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SecurityLayer) Listen(protocol, addr string) (net.Listener, error) {
	ret := m.Called(protocol, addr)
	var l net.Listener
	if v := ret.Get(0); v != nil {
		l = v.(net.Listener)
	}
	return l, ret.Error(1)
}

// ContextManager is a mock of model.ContextManager.
type ContextManager struct {
	mock.Mock
}

func NewContextManager(t testing.TB) *ContextManager {
	m := &ContextManager{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ContextManager) SetPrincipalToContext(ctx context.Context, principal model.Principal) context.Context {
	ret := m.Called(ctx, principal)
	return ret.Get(0).(context.Context)
}

func (m *ContextManager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	ret := m.Called(ctx)
	return ret.Get(0).(model.Principal), ret.Bool(1)
}

var (
	_ model.SecurityLayer  = (*SecurityLayer)(nil)
	_ model.ContextManager = (*ContextManager)(nil)
)
