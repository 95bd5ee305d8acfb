package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// LedgerArchive is a mock of model.LedgerArchive.
type LedgerArchive struct {
	mock.Mock
}

func NewLedgerArchive(t testing.TB) *LedgerArchive {
	m := &LedgerArchive{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *LedgerArchive) Upload(ctx context.Context, key string, data []byte) error {
	ret := m.Called(ctx, key, data)
	return ret.Error(0)
}

func (m *LedgerArchive) Exists(ctx context.Context, key string) (bool, error) {
	ret := m.Called(ctx, key)
	return ret.Bool(0), ret.Error(1)
}

var _ model.LedgerArchive = (*LedgerArchive)(nil)
