package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/townsquare-auth/internal/mocks"
	"github.com/dtroode/townsquare-auth/internal/model"
	"github.com/dtroode/townsquare-auth/internal/testutil"
)

func TestIssuer_Issue(t *testing.T) {
	ctx := context.Background()
	subject := uuid.New()
	accessClaims := claimsFor(subject, model.TokenTypeAccess)
	refreshClaims := claimsFor(subject, model.TokenTypeRefresh)

	codec := mocks.NewTokenCodec(t)
	ledger := mocks.NewLedger(t)

	codec.On("Encode", subject, model.TokenTypeAccess, testTTL.Access, mock.Anything).Return("access", accessClaims, nil).Once()
	codec.On("Encode", subject, model.TokenTypeRefresh, testTTL.Refresh, mock.Anything).Return("refresh", refreshClaims, nil).Once()
	ledger.On("Record", ctx, model.NewLedgerEntry(accessClaims), model.NewLedgerEntry(refreshClaims)).Return(nil).Once()

	issuer := NewIssuer(codec, ledger, testTTL, testutil.MakeNoopLogger())

	session, err := issuer.Issue(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)
	assert.Equal(t, "refresh", session.RefreshToken)
	assert.Equal(t, accessClaims.ExpiresAt, session.AccessExpiresAt)
	assert.Equal(t, refreshClaims.ExpiresAt, session.RefreshExpiresAt)
}

func TestIssuer_Issue_RecordError(t *testing.T) {
	ctx := context.Background()
	subject := uuid.New()

	codec := mocks.NewTokenCodec(t)
	ledger := mocks.NewLedger(t)

	codec.On("Encode", subject, model.TokenTypeAccess, mock.Anything, mock.Anything).Return("access", claimsFor(subject, model.TokenTypeAccess), nil).Once()
	codec.On("Encode", subject, model.TokenTypeRefresh, mock.Anything, mock.Anything).Return("refresh", claimsFor(subject, model.TokenTypeRefresh), nil).Once()
	ledger.On("Record", ctx, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	issuer := NewIssuer(codec, ledger, testTTL, testutil.MakeNoopLogger())

	session, err := issuer.Issue(ctx, subject)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, session.AccessToken)
	assert.Empty(t, session.RefreshToken)
}

func TestIssuer_Issue_EncodeError(t *testing.T) {
	subject := uuid.New()

	codec := mocks.NewTokenCodec(t)
	ledger := mocks.NewLedger(t)

	codec.On("Encode", subject, model.TokenTypeAccess, mock.Anything, mock.Anything).Return("", model.Claims{}, assert.AnError).Once()

	issuer := NewIssuer(codec, ledger, testTTL, testutil.MakeNoopLogger())

	_, err := issuer.Issue(context.Background(), subject)
	require.ErrorIs(t, err, assert.AnError)
}

func TestIssuer_IssueSingle(t *testing.T) {
	ctx := context.Background()
	subject := uuid.New()
	claims := claimsFor(subject, model.TokenTypePasswordReset)

	codec := mocks.NewTokenCodec(t)
	ledger := mocks.NewLedger(t)

	codec.On("Encode", subject, model.TokenTypePasswordReset, testTTL.PasswordReset,
		map[string]string{model.ExtraPurpose: "password_reset"}).Return("reset", claims, nil).Once()
	ledger.On("Record", ctx, model.NewLedgerEntry(claims)).Return(nil).Once()

	issuer := NewIssuer(codec, ledger, testTTL, testutil.MakeNoopLogger())

	token, got, err := issuer.IssueSingle(ctx, subject, model.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "reset", token)
	assert.Equal(t, claims, got)
}

func TestIssuer_IssueSingle_RecordError(t *testing.T) {
	ctx := context.Background()
	subject := uuid.New()

	codec := mocks.NewTokenCodec(t)
	ledger := mocks.NewLedger(t)

	codec.On("Encode", subject, model.TokenTypeEmailVerify, testTTL.EmailVerify, mock.Anything).
		Return("verify", claimsFor(subject, model.TokenTypeEmailVerify), nil).Once()
	ledger.On("Record", ctx, mock.Anything).Return(assert.AnError).Once()

	issuer := NewIssuer(codec, ledger, testTTL, testutil.MakeNoopLogger())

	token, _, err := issuer.IssueSingle(ctx, subject, model.TokenTypeEmailVerify)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, token)
}

func TestDefaultTokenTTL(t *testing.T) {
	ttl := DefaultTokenTTL()
	assert.Equal(t, ttl.Access, ttl.forType(model.TokenTypeAccess))
	assert.Equal(t, ttl.Refresh, ttl.forType(model.TokenTypeRefresh))
	assert.Equal(t, ttl.PasswordReset, ttl.forType(model.TokenTypePasswordReset))
	assert.Equal(t, ttl.EmailVerify, ttl.forType(model.TokenTypeEmailVerify))
	assert.Zero(t, ttl.forType("other"))
}
