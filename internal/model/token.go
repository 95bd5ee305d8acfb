package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenType discriminates what a signed token may be used for.
type TokenType string

const (
	// TokenTypeAccess authorizes API calls.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is exchanged for a new access/refresh pair.
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypePasswordReset allows a single password change.
	TokenTypePasswordReset TokenType = "password_reset"
	// TokenTypeEmailVerify confirms ownership of an e-mail address.
	TokenTypeEmailVerify TokenType = "email_verify"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypePasswordReset, TokenTypeEmailVerify:
		return true
	default:
		return false
	}
}

// ExtraPurpose is the extra claim marking single-purpose tokens.
const ExtraPurpose = "purpose"

// TokenCodec encodes and decodes self-contained signed tokens.
// It knows nothing about revocation.
type TokenCodec interface {
	Encode(subjectID uuid.UUID, tokenType TokenType, ttl time.Duration, extra map[string]string) (string, Claims, error)
	Decode(token string, allowExpired bool) (Claims, error)
}

// Claims is the decoded content of a signed token.
type Claims struct {
	SubjectID uuid.UUID
	JTI       string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]string
}

// Session is an access/refresh pair handed to a client.
type Session struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Principal is the authenticated caller of a request together with the
// token it authenticated with.
type Principal struct {
	User   User
	Claims Claims
}
