package mocks

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// TokenCodec is a mock of model.TokenCodec.
type TokenCodec struct {
	mock.Mock
}

func NewTokenCodec(t testing.TB) *TokenCodec {
	m := &TokenCodec{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TokenCodec) Encode(subjectID uuid.UUID, tokenType model.TokenType, ttl time.Duration, extra map[string]string) (string, model.Claims, error) {
	ret := m.Called(subjectID, tokenType, ttl, extra)
	return ret.String(0), ret.Get(1).(model.Claims), ret.Error(2)
}

func (m *TokenCodec) Decode(token string, allowExpired bool) (model.Claims, error) {
	ret := m.Called(token, allowExpired)
	return ret.Get(0).(model.Claims), ret.Error(1)
}

var _ model.TokenCodec = (*TokenCodec)(nil)
