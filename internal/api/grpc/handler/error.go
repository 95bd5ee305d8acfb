package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/townsquare-auth/internal/model"
)

func handleError(err error) error {
	switch {
	case model.IsAuthError(err):
		return status.Error(codes.Unauthenticated, model.UnauthenticatedMessage)
	case errors.Is(err, model.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, model.ErrInvalidCredentials.Error())
	case errors.Is(err, model.ErrAccountNotVerified):
		return status.Error(codes.PermissionDenied, model.ErrAccountNotVerified.Error())
	case errors.Is(err, model.ErrUsernameTaken):
		return status.Error(codes.AlreadyExists, "username already taken")
	case errors.Is(err, model.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, "email already exists")
	case errors.Is(err, model.ErrConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, model.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
