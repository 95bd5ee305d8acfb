package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/townsquare-auth/internal/mocks"
	"github.com/dtroode/townsquare-auth/internal/model"
	"github.com/dtroode/townsquare-auth/internal/testutil"
)

type markerKey struct{}

type authenticatorMock struct {
	mock.Mock
}

func (m *authenticatorMock) Authenticate(ctx context.Context, token string, required model.TokenType) (model.AuthResult, error) {
	ret := m.Called(ctx, token, required)
	return ret.Get(0).(model.AuthResult), ret.Error(1)
}

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	principal := model.Principal{
		User:   model.User{ID: uuid.New()},
		Claims: model.Claims{JTI: uuid.NewString(), Type: model.TokenTypeAccess},
	}

	tests := []struct {
		name      string
		header    string
		wantToken string
		result    model.AuthResult
		authErr   error
		wantCode  codes.Code
		expectCtx bool
	}{
		{
			name:      "missing authorization header",
			wantToken: "",
			result:    model.AuthResult{Status: model.AuthUnauthenticated},
			wantCode:  codes.Unauthenticated,
		},
		{
			name:      "non-bearer scheme",
			header:    "Basic dXNlcjpwYXNz",
			wantToken: "",
			result:    model.AuthResult{Status: model.AuthUnauthenticated},
			wantCode:  codes.Unauthenticated,
		},
		{
			name:      "expired token",
			header:    "Bearer old",
			wantToken: "old",
			result:    model.AuthResult{Status: model.AuthExpired},
			wantCode:  codes.Unauthenticated,
		},
		{
			name:      "revoked token",
			header:    "Bearer gone",
			wantToken: "gone",
			result:    model.AuthResult{Status: model.AuthRevoked},
			wantCode:  codes.Unauthenticated,
		},
		{
			name:      "ledger unavailable",
			header:    "Bearer token",
			wantToken: "token",
			result:    model.AuthResult{Status: model.AuthRevoked},
			authErr:   assert.AnError,
			wantCode:  codes.Internal,
		},
		{
			name:      "valid token",
			header:    "bearer token",
			wantToken: "token",
			result:    model.AuthResult{Status: model.AuthOK, Principal: principal},
			wantCode:  codes.OK,
			expectCtx: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cm := mocks.NewContextManager(t)
			authn := &authenticatorMock{}
			authn.Test(t)

			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.header))
			}

			authn.On("Authenticate", ctx, tt.wantToken, model.TokenTypeAccess).Return(tt.result, tt.authErr).Once()
			withPrincipal := context.WithValue(ctx, markerKey{}, "marker")
			if tt.expectCtx {
				cm.On("SetPrincipalToContext", ctx, principal).Return(withPrincipal).Once()
			}

			m := NewAuthenticate(authn, cm, testutil.MakeNoopLogger())
			newCtx, err := m.AuthFunc(model.TokenTypeAccess)(ctx)

			authn.AssertExpectations(t)
			if tt.wantCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, status.Code(err))
				assert.Nil(t, newCtx)
				if tt.wantCode == codes.Unauthenticated {
					assert.Equal(t, model.UnauthenticatedMessage, status.Convert(err).Message())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, withPrincipal, newCtx)
		})
	}
}
