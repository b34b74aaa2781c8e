package auth

import (
	"errors"
	"time"
)

// ErrTokenInvalid covers every token decode failure: malformed input, bad
// signature, and expiry. Callers never learn which one it was.
var ErrTokenInvalid = errors.New("invalid or expired token")

// ErrAccountExists is returned by Signup when the email is already taken.
var ErrAccountExists = errors.New("account already exists")

type Reason string

const (
	ReasonInvalidScope             Reason = "invalid_scope"
	ReasonNoSubject                Reason = "no_subject"
	ReasonNotFound                 Reason = "not_found"
	ReasonRevoked                  Reason = "revoked"
	ReasonUnconfirmed              Reason = "unconfirmed"
	ReasonBadPassword              Reason = "bad_password"
	ReasonInvalidCredentials       Reason = "invalid_credentials"
	ReasonInvalidVerificationToken Reason = "invalid_verification_token"
)

// AuthError is the failure type for every session-authority operation.
// Handlers map it to a transport status; the core never does.
type AuthError struct {
	Reason Reason
}

func (e *AuthError) Error() string {
	return "authentication failed: " + string(e.Reason)
}

func authErr(reason Reason) *AuthError {
	return &AuthError{Reason: reason}
}

// AuthReason extracts the reason from err if it is an AuthError.
func AuthReason(err error) (Reason, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return "", false
}

// ErrLoginLocked reports a username lockout after repeated failures.
type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}
