package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// Notifier is a mock of model.Notifier.
type Notifier struct {
	mock.Mock
}

func NewNotifier(t testing.TB) *Notifier {
	m := &Notifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Notifier) SendPasswordReset(ctx context.Context, to string, token string) {
	m.Called(ctx, to, token)
}

func (m *Notifier) SendVerification(ctx context.Context, to string, token string) {
	m.Called(ctx, to, token)
}

var _ model.Notifier = (*Notifier)(nil)
