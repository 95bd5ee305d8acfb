package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// AccountService is a mock of handler.AccountService.
type AccountService struct {
	mock.Mock
}

func NewAccountService(t testing.TB) *AccountService {
	m := &AccountService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *AccountService) Register(ctx context.Context, username, email, password string) (model.User, error) {
	ret := m.Called(ctx, username, email, password)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *AccountService) Login(ctx context.Context, username, password string) (model.User, model.Session, error) {
	ret := m.Called(ctx, username, password)
	return ret.Get(0).(model.User), ret.Get(1).(model.Session), ret.Error(2)
}

func (m *AccountService) RequestVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *AccountService) ConfirmEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *AccountService) ChangePassword(ctx context.Context, principal model.Principal, oldPassword, newPassword string) error {
	return m.Called(ctx, principal, oldPassword, newPassword).Error(0)
}

// PasswordResetService is a mock of handler.PasswordResetService.
type PasswordResetService struct {
	mock.Mock
}

func NewPasswordResetService(t testing.TB) *PasswordResetService {
	m := &PasswordResetService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *PasswordResetService) ConsumeReset(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

// RevocationService is a mock of handler.RevocationService.
type RevocationService struct {
	mock.Mock
}

func NewRevocationService(t testing.TB) *RevocationService {
	m := &RevocationService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *RevocationService) Revoke(ctx context.Context, principal model.Principal) error {
	return m.Called(ctx, principal).Error(0)
}

func (m *RevocationService) Rotate(ctx context.Context, principal model.Principal) (model.Session, error) {
	ret := m.Called(ctx, principal)
	return ret.Get(0).(model.Session), ret.Error(1)
}

func (m *RevocationService) Logout(ctx context.Context, principal model.Principal, bodyAccessToken string) error {
	return m.Called(ctx, principal, bodyAccessToken).Error(0)
}
