package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/townsquare-auth/internal/mocks"
	"github.com/dtroode/townsquare-auth/internal/model"
	"github.com/dtroode/townsquare-auth/internal/testutil"
)

type resetDeps struct {
	codec    *mocks.TokenCodec
	ledger   *mocks.Ledger
	users    *mocks.UserStore
	notifier *mocks.Notifier
}

func newPasswordReset(t *testing.T) (*PasswordReset, resetDeps) {
	t.Helper()
	d := resetDeps{
		codec:    mocks.NewTokenCodec(t),
		ledger:   mocks.NewLedger(t),
		users:    mocks.NewUserStore(t),
		notifier: mocks.NewNotifier(t),
	}
	log := testutil.MakeNoopLogger()
	issuer := NewIssuer(d.codec, d.ledger, testTTL, log)
	return NewPasswordReset(
		NewCredentials(d.users, bcrypt.MinCost),
		issuer,
		NewAuthenticator(d.codec, d.ledger, d.users, log),
		NewRevocation(d.codec, d.ledger, issuer, log),
		d.notifier,
		log,
	), d
}

func TestPasswordReset_RequestReset(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@example.com"}
	claims := claimsFor(user.ID, model.TokenTypePasswordReset)

	p, d := newPasswordReset(t)
	d.users.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	d.codec.On("Encode", user.ID, model.TokenTypePasswordReset, testTTL.PasswordReset, mock.Anything).Return("reset", claims, nil).Once()
	d.ledger.On("Record", ctx, model.NewLedgerEntry(claims)).Return(nil).Once()
	d.notifier.On("SendPasswordReset", ctx, user.Email, "reset").Once()

	require.NoError(t, p.RequestReset(ctx, " a@example.com "))
}

func TestPasswordReset_RequestReset_UnknownEmail(t *testing.T) {
	ctx := context.Background()

	p, d := newPasswordReset(t)
	d.users.On("GetByEmail", ctx, "ghost@example.com").Return(model.User{}, model.ErrNotFound).Once()

	require.NoError(t, p.RequestReset(ctx, "ghost@example.com"))
}

func TestPasswordReset_RequestReset_LedgerFailureMailsNothing(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@example.com"}

	p, d := newPasswordReset(t)
	d.users.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	d.codec.On("Encode", user.ID, model.TokenTypePasswordReset, mock.Anything, mock.Anything).
		Return("reset", claimsFor(user.ID, model.TokenTypePasswordReset), nil).Once()
	d.ledger.On("Record", ctx, mock.Anything).Return(assert.AnError).Once()

	require.ErrorIs(t, p.RequestReset(ctx, user.Email), assert.AnError)
}

func TestPasswordReset_RequestReset_StoreError(t *testing.T) {
	ctx := context.Background()

	p, d := newPasswordReset(t)
	d.users.On("GetByEmail", ctx, "a@example.com").Return(model.User{}, assert.AnError).Once()

	require.ErrorIs(t, p.RequestReset(ctx, "a@example.com"), assert.AnError)
}

func TestPasswordReset_RequestReset_Validation(t *testing.T) {
	p, _ := newPasswordReset(t)

	require.ErrorIs(t, p.RequestReset(context.Background(), ""), model.ErrValidation)
	require.ErrorIs(t, p.RequestReset(context.Background(), "Bob <bob@example.com>"), model.ErrValidation)
}

func TestPasswordReset_ConsumeReset(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@example.com"}
	principal := principalFor(user, model.TokenTypePasswordReset)
	claims := principal.Claims

	p, d := newPasswordReset(t)
	d.codec.On("Decode", "reset", false).Return(claims, nil).Once()
	d.ledger.On("IsRevoked", mock.Anything, claims.JTI, user.ID).Return(false, nil).Once()
	d.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
	d.ledger.On("Revoke", ctx, claims.JTI, user.ID).Return(true, nil).Once()
	d.users.On("UpdatePasswordHash", ctx, user.ID, mock.MatchedBy(func(hash []byte) bool {
		return bcrypt.CompareHashAndPassword(hash, []byte("new password")) == nil
	})).Return(nil).Once()
	d.ledger.On("RevokeAll", ctx, user.ID).Return(int64(2), nil).Once()

	require.NoError(t, p.ConsumeReset(ctx, "reset", "new password"))
}

func TestPasswordReset_ConsumeReset_LostRace(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New()}
	claims := principalFor(user, model.TokenTypePasswordReset).Claims

	p, d := newPasswordReset(t)
	d.codec.On("Decode", "reset", false).Return(claims, nil).Once()
	d.ledger.On("IsRevoked", mock.Anything, claims.JTI, user.ID).Return(false, nil).Once()
	d.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
	d.ledger.On("Revoke", ctx, claims.JTI, user.ID).Return(false, nil).Once()

	require.ErrorIs(t, p.ConsumeReset(ctx, "reset", "new password"), model.ErrTokenRevoked)
}

func TestPasswordReset_ConsumeReset_MissingPurpose(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New()}
	claims := claimsFor(user.ID, model.TokenTypePasswordReset)

	p, d := newPasswordReset(t)
	d.codec.On("Decode", "reset", false).Return(claims, nil).Once()
	d.ledger.On("IsRevoked", mock.Anything, claims.JTI, user.ID).Return(false, nil).Once()
	d.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()

	require.ErrorIs(t, p.ConsumeReset(ctx, "reset", "new password"), model.ErrInvalidToken)
}

func TestPasswordReset_ConsumeReset_Expired(t *testing.T) {
	p, d := newPasswordReset(t)
	d.codec.On("Decode", "reset", false).Return(model.Claims{}, model.ErrTokenExpired).Once()

	require.ErrorIs(t, p.ConsumeReset(context.Background(), "reset", "new password"), model.ErrTokenExpired)
}

func TestPasswordReset_ConsumeReset_RevokeAllError(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New()}
	claims := principalFor(user, model.TokenTypePasswordReset).Claims

	p, d := newPasswordReset(t)
	d.codec.On("Decode", "reset", false).Return(claims, nil).Once()
	d.ledger.On("IsRevoked", mock.Anything, claims.JTI, user.ID).Return(false, nil).Once()
	d.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
	d.ledger.On("Revoke", ctx, claims.JTI, user.ID).Return(true, nil).Once()
	d.users.On("UpdatePasswordHash", ctx, user.ID, mock.Anything).Return(nil).Once()
	d.ledger.On("RevokeAll", ctx, user.ID).Return(int64(0), assert.AnError).Once()

	require.ErrorIs(t, p.ConsumeReset(ctx, "reset", "new password"), assert.AnError)
}
