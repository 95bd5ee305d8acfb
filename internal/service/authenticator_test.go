package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/townsquare-auth/internal/mocks"
	"github.com/dtroode/townsquare-auth/internal/model"
	"github.com/dtroode/townsquare-auth/internal/testutil"
	"github.com/dtroode/townsquare-auth/internal/token"
)

func TestAuthenticator_Authenticate(t *testing.T) {
	user := model.User{ID: uuid.New(), Username: "alice", Confirmed: true}
	access := claimsFor(user.ID, model.TokenTypeAccess)

	tests := []struct {
		name       string
		token      string
		required   model.TokenType
		setup      func(codec *mocks.TokenCodec, ledger *mocks.Ledger, users *mocks.UserStore)
		wantStatus model.AuthStatus
		wantErr    bool
	}{
		{
			name:       "missing token",
			token:      "",
			required:   model.TokenTypeAccess,
			setup:      func(*mocks.TokenCodec, *mocks.Ledger, *mocks.UserStore) {},
			wantStatus: model.AuthUnauthenticated,
		},
		{
			name:     "malformed token",
			token:    "garbage",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, _ *mocks.Ledger, _ *mocks.UserStore) {
				codec.On("Decode", "garbage", false).Return(model.Claims{}, fmt.Errorf("%w: bad", model.ErrTokenMalformed)).Once()
			},
			wantStatus: model.AuthInvalid,
		},
		{
			name:     "bad signature",
			token:    "forged",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, _ *mocks.Ledger, _ *mocks.UserStore) {
				codec.On("Decode", "forged", false).Return(model.Claims{}, model.ErrInvalidSignature).Once()
			},
			wantStatus: model.AuthInvalid,
		},
		{
			name:     "expired token",
			token:    "old",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, _ *mocks.Ledger, _ *mocks.UserStore) {
				codec.On("Decode", "old", false).Return(model.Claims{}, model.ErrTokenExpired).Once()
			},
			wantStatus: model.AuthExpired,
		},
		{
			name:     "wrong token type",
			token:    "access",
			required: model.TokenTypeRefresh,
			setup: func(codec *mocks.TokenCodec, _ *mocks.Ledger, _ *mocks.UserStore) {
				codec.On("Decode", "access", false).Return(access, nil).Once()
			},
			wantStatus: model.AuthInvalid,
		},
		{
			name:     "revoked token",
			token:    "access",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, ledger *mocks.Ledger, _ *mocks.UserStore) {
				codec.On("Decode", "access", false).Return(access, nil).Once()
				ledger.On("IsRevoked", mock.Anything, access.JTI, user.ID).Return(true, nil).Once()
			},
			wantStatus: model.AuthRevoked,
		},
		{
			name:     "ledger unavailable",
			token:    "access",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, ledger *mocks.Ledger, _ *mocks.UserStore) {
				codec.On("Decode", "access", false).Return(access, nil).Once()
				ledger.On("IsRevoked", mock.Anything, access.JTI, user.ID).Return(true, assert.AnError).Once()
			},
			wantErr: true,
		},
		{
			name:     "subject no longer exists",
			token:    "access",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, ledger *mocks.Ledger, users *mocks.UserStore) {
				codec.On("Decode", "access", false).Return(access, nil).Once()
				ledger.On("IsRevoked", mock.Anything, access.JTI, user.ID).Return(false, nil).Once()
				users.On("GetByID", mock.Anything, user.ID).Return(model.User{}, model.ErrNotFound).Once()
			},
			wantStatus: model.AuthInvalid,
		},
		{
			name:     "user store unavailable",
			token:    "access",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, ledger *mocks.Ledger, users *mocks.UserStore) {
				codec.On("Decode", "access", false).Return(access, nil).Once()
				ledger.On("IsRevoked", mock.Anything, access.JTI, user.ID).Return(false, nil).Once()
				users.On("GetByID", mock.Anything, user.ID).Return(model.User{}, assert.AnError).Once()
			},
			wantErr: true,
		},
		{
			name:     "valid token",
			token:    "access",
			required: model.TokenTypeAccess,
			setup: func(codec *mocks.TokenCodec, ledger *mocks.Ledger, users *mocks.UserStore) {
				codec.On("Decode", "access", false).Return(access, nil).Once()
				ledger.On("IsRevoked", mock.Anything, access.JTI, user.ID).Return(false, nil).Once()
				users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
			},
			wantStatus: model.AuthOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := mocks.NewTokenCodec(t)
			ledger := mocks.NewLedger(t)
			users := mocks.NewUserStore(t)
			tt.setup(codec, ledger, users)

			a := NewAuthenticator(codec, ledger, users, testutil.MakeNoopLogger())

			result, err := a.Authenticate(context.Background(), tt.token, tt.required)
			if tt.wantErr {
				require.ErrorIs(t, err, assert.AnError)
				assert.False(t, result.OK())
				assert.Equal(t, model.AuthUndecided, result.Status)
				assert.ErrorIs(t, result.Err(), model.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantStatus == model.AuthOK {
				assert.Equal(t, user, result.Principal.User)
				assert.Equal(t, access, result.Principal.Claims)
			} else {
				assert.Equal(t, model.Principal{}, result.Principal)
			}
		})
	}
}

func TestAuthResult_Err(t *testing.T) {
	assert.NoError(t, model.AuthResult{Status: model.AuthOK}.Err())
	assert.ErrorIs(t, model.AuthResult{Status: model.AuthUnauthenticated}.Err(), model.ErrUnauthenticated)
	assert.ErrorIs(t, model.AuthResult{Status: model.AuthInvalid}.Err(), model.ErrInvalidToken)
	assert.ErrorIs(t, model.AuthResult{Status: model.AuthExpired}.Err(), model.ErrTokenExpired)
	assert.ErrorIs(t, model.AuthResult{Status: model.AuthRevoked}.Err(), model.ErrTokenRevoked)
	for _, s := range []model.AuthStatus{model.AuthUnauthenticated, model.AuthInvalid, model.AuthExpired, model.AuthRevoked} {
		assert.True(t, model.IsAuthError(model.AuthResult{Status: s}.Err()), s.String())
	}
}

func TestAuthResult_ZeroValueIsNotOK(t *testing.T) {
	var result model.AuthResult

	assert.False(t, result.OK())
	assert.Equal(t, model.AuthUndecided, result.Status)
	assert.Equal(t, "undecided", result.Status.String())
	assert.ErrorIs(t, result.Err(), model.ErrInvalidToken)
}

func TestAuthenticator_ExpiredTokenNeverAuthenticates(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	user := model.User{ID: uuid.New(), Username: "alice", Confirmed: true}

	signer := token.NewJWT("secret", token.WithClock(func() time.Time { return issuedAt }))
	signed, _, err := signer.Encode(user.ID, model.TokenTypeAccess, time.Minute, nil)
	require.NoError(t, err)

	codec := token.NewJWT("secret", token.WithClock(func() time.Time { return issuedAt.Add(time.Hour) }))

	// The codec still accepts the token when asked to ignore expiry.
	_, err = codec.Decode(signed, true)
	require.NoError(t, err)

	// Neither store may be consulted for an expired token.
	a := NewAuthenticator(codec, mocks.NewLedger(t), mocks.NewUserStore(t), testutil.MakeNoopLogger())

	result, err := a.Authenticate(context.Background(), signed, model.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, model.AuthExpired, result.Status)
	assert.False(t, result.OK())
	assert.ErrorIs(t, result.Err(), model.ErrTokenExpired)
	assert.Equal(t, model.Principal{}, result.Principal)
}
