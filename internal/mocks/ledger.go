package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// Ledger is a mock of model.Ledger.
type Ledger struct {
	mock.Mock
}

func NewLedger(t testing.TB) *Ledger {
	m := &Ledger{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Record expects one argument per entry after ctx.
func (m *Ledger) Record(ctx context.Context, entries ...model.LedgerEntry) error {
	args := make([]any, 0, len(entries)+1)
	args = append(args, ctx)
	for _, e := range entries {
		args = append(args, e)
	}
	ret := m.Called(args...)
	return ret.Error(0)
}

func (m *Ledger) Revoke(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error) {
	ret := m.Called(ctx, jti, subjectID)
	return ret.Bool(0), ret.Error(1)
}

func (m *Ledger) IsRevoked(ctx context.Context, jti string, subjectID uuid.UUID) (bool, error) {
	ret := m.Called(ctx, jti, subjectID)
	return ret.Bool(0), ret.Error(1)
}

func (m *Ledger) RevokeAll(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	ret := m.Called(ctx, subjectID)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *Ledger) ListExpired(ctx context.Context, before time.Time, limit int) ([]model.LedgerEntry, error) {
	ret := m.Called(ctx, before, limit)
	var entries []model.LedgerEntry
	if v := ret.Get(0); v != nil {
		entries = v.([]model.LedgerEntry)
	}
	return entries, ret.Error(1)
}

func (m *Ledger) DeleteByJTI(ctx context.Context, jtis []string) (int64, error) {
	ret := m.Called(ctx, jtis)
	return ret.Get(0).(int64), ret.Error(1)
}

var _ model.Ledger = (*Ledger)(nil)
