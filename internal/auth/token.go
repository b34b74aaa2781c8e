package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token scopes. Email-verification tokens carry no scope at all, which is
// what distinguishes them from the session lineages.
const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"
)

// Claims is the signed payload of every token the service mints.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds a claims set for subject with the given scope and lifetime,
// stamped with the current time. The random jti keeps two tokens minted in the
// same second distinct, which refresh rotation depends on.
func NewClaims(subject, scope string, ttl time.Duration) Claims {
	now := time.Now().UTC()
	return Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
}

// EncodeToken signs claims with secret using the named HMAC algorithm
// (HS256/HS384/HS512) and returns the compact serialization.
func EncodeToken(claims Claims, secret []byte, algorithm string) (string, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	return jwt.NewWithClaims(method, claims).SignedString(secret)
}

// DecodeToken verifies the signature and registered claims of token and
// returns its claims. Every failure mode, malformed input, a bad signature,
// or expiry, comes back as ErrTokenInvalid so callers cannot probe which
// check rejected the token. No claim is inspected before verification.
func DecodeToken(token string, secret []byte, algorithm string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{algorithm}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
