package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/townsquare-auth/internal/model"
)

var testTTL = TokenTTL{
	Access:        time.Minute,
	Refresh:       time.Hour,
	PasswordReset: time.Minute,
	EmailVerify:   time.Hour,
}

func claimsFor(subject uuid.UUID, tokenType model.TokenType) model.Claims {
	now := time.Now().UTC().Truncate(time.Second)
	return model.Claims{
		SubjectID: subject,
		JTI:       uuid.NewString(),
		Type:      tokenType,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	}
}

func principalFor(user model.User, tokenType model.TokenType) model.Principal {
	claims := claimsFor(user.ID, tokenType)
	if tokenType == model.TokenTypePasswordReset || tokenType == model.TokenTypeEmailVerify {
		claims.Extra = map[string]string{model.ExtraPurpose: string(tokenType)}
	}
	return model.Principal{User: user, Claims: claims}
}
