package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// Claims represents JWT claims with token type and optional extra claims.
type Claims struct {
	jwt.RegisteredClaims
	TokenType model.TokenType   `json:"type"`
	Extra     map[string]string `json:"ext,omitempty"`
}

// JWT implements TokenCodec backed by symmetric HMAC.
type JWT struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

// Option configures a JWT codec.
type Option func(*JWT)

// WithIssuer sets the iss claim written and required on decode.
func WithIssuer(issuer string) Option {
	return func(j *JWT) { j.issuer = issuer }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) { j.now = now }
}

var _ model.TokenCodec = (*JWT)(nil)

// NewJWT creates a new JWT codec with the provided secret key.
func NewJWT(secretKey string, opts ...Option) *JWT {
	j := &JWT{secretKey: []byte(secretKey), now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Encode signs a new token with a fresh jti.
func (j *JWT) Encode(subjectID uuid.UUID, tokenType model.TokenType, ttl time.Duration, extra map[string]string) (string, model.Claims, error) {
	if !tokenType.Valid() {
		return "", model.Claims{}, fmt.Errorf("unknown token type %q", tokenType)
	}
	if ttl <= 0 {
		return "", model.Claims{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	// JWT dates have second precision; truncate so encoded and returned
	// claims agree.
	now := j.now().UTC().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
		Extra:     extra,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", model.Claims{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, toModel(subjectID, claims), nil
}

// Decode verifies the signature and, unless allowExpired is set, the expiry
// of a token, and returns its claims.
func (j *JWT) Decode(tokenString string, allowExpired bool) (model.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return model.Claims{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return model.Claims{}, model.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return model.Claims{}, fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenInvalidClaims):
			return model.Claims{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
		default:
			return model.Claims{}, fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
		}
	}

	// WithoutClaimsValidation also skips the iss check.
	if allowExpired && j.issuer != "" && claims.Issuer != j.issuer {
		return model.Claims{}, fmt.Errorf("%w: issuer %q", model.ErrInvalidSignature, claims.Issuer)
	}

	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: bad subject", model.ErrTokenMalformed)
	}
	if claims.ID == "" {
		return model.Claims{}, fmt.Errorf("%w: missing jti", model.ErrTokenMalformed)
	}
	if !claims.TokenType.Valid() {
		return model.Claims{}, fmt.Errorf("%w: unknown type %q", model.ErrTokenMalformed, claims.TokenType)
	}
	if claims.ExpiresAt == nil {
		return model.Claims{}, fmt.Errorf("%w: missing exp", model.ErrTokenMalformed)
	}

	return toModel(subjectID, *claims), nil
}

func toModel(subjectID uuid.UUID, c Claims) model.Claims {
	out := model.Claims{
		SubjectID: subjectID,
		JTI:       c.ID,
		Type:      c.TokenType,
		Extra:     c.Extra,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return out
}
