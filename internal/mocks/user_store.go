package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// UserStore is a mock of model.UserStore.
type UserStore struct {
	mock.Mock
}

func NewUserStore(t testing.TB) *UserStore {
	m := &UserStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *UserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) GetByUsername(ctx context.Context, username string) (model.User, error) {
	ret := m.Called(ctx, username)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	ret := m.Called(ctx, user)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	ret := m.Called(ctx, id, passwordHash)
	return ret.Error(0)
}

func (m *UserStore) Confirm(ctx context.Context, id uuid.UUID) error {
	ret := m.Called(ctx, id)
	return ret.Error(0)
}

var _ model.UserStore = (*UserStore)(nil)
