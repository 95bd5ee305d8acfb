package model

// AuthStatus is the outcome of authenticating a token.
type AuthStatus int

const (
	// AuthUndecided is the zero value: no decision was reached, for example
	// because a store could not be consulted. It never grants access.
	AuthUndecided AuthStatus = iota
	// AuthUnauthenticated means no token was supplied.
	AuthUnauthenticated
	// AuthInvalid covers bad signatures, malformed tokens, wrong token types
	// and subjects that no longer exist.
	AuthInvalid
	// AuthExpired means the token is past its expiry.
	AuthExpired
	// AuthRevoked means the ledger rejects the token.
	AuthRevoked
	// AuthOK means the token is valid and its subject is live.
	AuthOK
)

func (s AuthStatus) String() string {
	switch s {
	case AuthUndecided:
		return "undecided"
	case AuthOK:
		return "ok"
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthInvalid:
		return "invalid"
	case AuthExpired:
		return "expired"
	case AuthRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// AuthResult is what the authenticator decided about a token. Principal is
// only set when Status is AuthOK.
type AuthResult struct {
	Status    AuthStatus
	Principal Principal
}

// OK reports whether authentication succeeded.
func (r AuthResult) OK() bool {
	return r.Status == AuthOK
}

// Err maps the status to its sentinel error, nil for AuthOK.
func (r AuthResult) Err() error {
	switch r.Status {
	case AuthOK:
		return nil
	case AuthUnauthenticated:
		return ErrUnauthenticated
	case AuthExpired:
		return ErrTokenExpired
	case AuthRevoked:
		return ErrTokenRevoked
	default:
		return ErrInvalidToken
	}
}
