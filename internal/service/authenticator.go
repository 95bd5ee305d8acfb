package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

const tracerName = "github.com/dtroode/townsquare-auth/internal/service"

// Authenticator decides whether a presented token may be used.
type Authenticator struct {
	codec  model.TokenCodec
	ledger model.Ledger
	users  model.UserStore
	tracer trace.Tracer
	logger *logger.Logger
}

func NewAuthenticator(codec model.TokenCodec, ledger model.Ledger, users model.UserStore, logger *logger.Logger) *Authenticator {
	return &Authenticator{
		codec:  codec,
		ledger: ledger,
		users:  users,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Authenticate checks presence, signature, expiry, token type, ledger state
// and the subject's existence, in that order. The returned error is set only
// when a store could not be consulted; it is never folded into a status.
func (a *Authenticator) Authenticate(ctx context.Context, token string, required model.TokenType) (model.AuthResult, error) {
	ctx, span := a.tracer.Start(ctx, "Authenticator.Authenticate",
		trace.WithAttributes(attribute.String("auth.required_type", string(required))))
	defer span.End()

	result, err := a.authenticate(ctx, token, required)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication backend failure")
		return model.AuthResult{Status: model.AuthUndecided}, err
	}
	span.SetAttributes(attribute.String("auth.status", result.Status.String()))
	return result, nil
}

func (a *Authenticator) authenticate(ctx context.Context, token string, required model.TokenType) (model.AuthResult, error) {
	if token == "" {
		return model.AuthResult{Status: model.AuthUnauthenticated}, nil
	}

	claims, err := a.codec.Decode(token, false)
	if err != nil {
		if errors.Is(err, model.ErrTokenExpired) {
			return model.AuthResult{Status: model.AuthExpired}, nil
		}
		a.logger.Debug("Authenticator: rejected token",
			"error", err.Error())
		return model.AuthResult{Status: model.AuthInvalid}, nil
	}

	if claims.Type != required {
		a.logger.Debug("Authenticator: wrong token type",
			"required", string(required),
			"got", string(claims.Type))
		return model.AuthResult{Status: model.AuthInvalid}, nil
	}

	revoked, err := a.ledger.IsRevoked(ctx, claims.JTI, claims.SubjectID)
	if err != nil {
		a.logger.Error("Authenticator: failed to check ledger",
			"jti", claims.JTI,
			"error", err.Error())
		return model.AuthResult{Status: model.AuthUndecided}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return model.AuthResult{Status: model.AuthRevoked}, nil
	}

	user, err := a.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.AuthResult{Status: model.AuthInvalid}, nil
		}
		a.logger.Error("Authenticator: failed to load subject",
			"subject_id", claims.SubjectID.String(),
			"error", err.Error())
		return model.AuthResult{Status: model.AuthUndecided}, fmt.Errorf("load subject: %w", err)
	}

	return model.AuthResult{
		Status:    model.AuthOK,
		Principal: model.Principal{User: user, Claims: claims},
	}, nil
}
