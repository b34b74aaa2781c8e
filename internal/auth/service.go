package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	defaultAccessTTL     = 60 * time.Minute
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultEmailTokenTTL = 7 * 24 * time.Hour
)

// UserStore is the persistence contract the session authority depends on.
// *Repository implements it against Postgres.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, input NewUser) (*User, error)
	UpdateRefreshToken(ctx context.Context, userID string, token *string) error
	MarkConfirmed(ctx context.Context, email string) error
}

// ConfirmationMailer delivers the confirmation email carrying a verification
// token. Delivery runs fire-and-forget; failures never reach signup callers.
type ConfirmationMailer interface {
	SendConfirmation(to, username, confirmURL string) error
}

// LockoutStore tracks failed login attempts per username. *Repository
// implements it; leaving it unset disables lockout entirely (tests).
type LockoutStore interface {
	GetLoginAttempt(ctx context.Context, username string) (LoginAttempt, error)
	RegisterFailedAttempt(ctx context.Context, username string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, username string) error
}

// Service issues and validates session tokens and runs the account lifecycle
// flows. It holds configuration only; all state lives in the UserStore.
type Service struct {
	store         UserStore
	mailer        ConfirmationMailer
	lockout       LockoutStore
	secret        []byte
	algorithm     string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	emailTokenTTL time.Duration
	maxAttempts   int
	lockDuration  time.Duration
	baseURL       string
}

func NewService(store UserStore, mailer ConfirmationMailer, secret, baseURL string) *Service {
	return &Service{
		store:         store,
		mailer:        mailer,
		secret:        []byte(secret),
		algorithm:     "HS256",
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		emailTokenTTL: defaultEmailTokenTTL,
		baseURL:       baseURL,
	}
}

// WithLockout enables username lockout after maxAttempts consecutive
// failures.
func (s *Service) WithLockout(store LockoutStore, maxAttempts int, lockDuration time.Duration) {
	s.lockout = store
	s.maxAttempts = maxAttempts
	s.lockDuration = lockDuration
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	if s.lockDuration <= 0 {
		s.lockDuration = 15 * time.Minute
	}
}

func (s *Service) WithTokenConfig(algorithm string, accessTTL, refreshTTL time.Duration) {
	if algorithm != "" {
		s.algorithm = algorithm
	}
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
}

// CreateAccessToken mints a short-lived access token for userID.
func (s *Service) CreateAccessToken(userID string) (string, error) {
	return EncodeToken(NewClaims(userID, ScopeAccess, s.accessTTL), s.secret, s.algorithm)
}

// CreateRefreshToken mints a long-lived refresh token for userID.
func (s *Service) CreateRefreshToken(userID string) (string, error) {
	return EncodeToken(NewClaims(userID, ScopeRefresh, s.refreshTTL), s.secret, s.algorithm)
}

// IssueSession mints an access/refresh pair and stores the refresh token as
// the account's only live one. Whatever was stored before is gone, which is
// the whole single-session rotation invariant.
func (s *Service) IssueSession(ctx context.Context, userID string) (TokenPair, error) {
	access, err := s.CreateAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.CreateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("mint refresh token: %w", err)
	}
	if err := s.store.UpdateRefreshToken(ctx, userID, &refresh); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Authenticate resolves a bearer token to its account. It never mutates
// stored state, so it is safe on every request.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*User, error) {
	claims, err := DecodeToken(bearer, s.secret, s.algorithm)
	if err != nil {
		return nil, authErr(ReasonInvalidCredentials)
	}
	if claims.Scope != ScopeAccess {
		return nil, authErr(ReasonInvalidScope)
	}
	if claims.Subject == "" {
		return nil, authErr(ReasonNoSubject)
	}

	user, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authErr(ReasonNotFound)
	}
	return user, nil
}

// RefreshSession validates presented against the account's stored refresh
// token and rotates the pair. A mismatch means the token was already rotated
// away (or stolen and replayed), so the stored one is revoked before the
// failure is reported: a failed refresh always leaves the session at least as
// revoked as it found it.
func (s *Service) RefreshSession(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := DecodeToken(presented, s.secret, s.algorithm)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.Scope != ScopeRefresh {
		return TokenPair{}, authErr(ReasonInvalidScope)
	}

	user, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	if user == nil {
		return TokenPair{}, authErr(ReasonNotFound)
	}

	if user.RefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		if err := s.store.UpdateRefreshToken(ctx, user.ID, nil); err != nil {
			return TokenPair{}, err
		}
		return TokenPair{}, authErr(ReasonRevoked)
	}

	return s.IssueSession(ctx, user.ID)
}

// CreateEmailToken mints a verification token whose subject is the email
// address. No scope claim: that absence is what marks it as a
// verification-only token.
func (s *Service) CreateEmailToken(email string) (string, error) {
	return EncodeToken(NewClaims(email, "", s.emailTokenTTL), s.secret, s.algorithm)
}

// ResolveEmailToken returns the email address a verification token was minted
// for.
func (s *Service) ResolveEmailToken(token string) (string, error) {
	claims, err := DecodeToken(token, s.secret, s.algorithm)
	if err != nil {
		return "", authErr(ReasonInvalidVerificationToken)
	}
	return claims.Subject, nil
}

// Signup creates an unconfirmed account and kicks off the confirmation email.
// The duplicate pre-check is best-effort; the users.email unique constraint is
// what actually guarantees uniqueness, and the repository maps its violation
// to ErrAccountExists.
func (s *Service) Signup(ctx context.Context, username, email string, phone *string, password string) (*User, error) {
	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.Create(ctx, NewUser{
		Username:     username,
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	s.sendConfirmation(user.Email, user.Username)
	return user, nil
}

// Login verifies credentials for a username or email and issues a session.
// Credential failures count toward the lockout threshold; an unconfirmed
// account does not.
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (TokenPair, error) {
	now := time.Now().UTC()
	if s.lockout != nil {
		attempt, err := s.lockout.GetLoginAttempt(ctx, usernameOrEmail)
		if err != nil {
			return TokenPair{}, err
		}
		if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
			return TokenPair{}, ErrLoginLocked{Until: *attempt.LockedUntil}
		}
	}

	user, err := s.store.GetByUsername(ctx, usernameOrEmail)
	if err != nil {
		return TokenPair{}, err
	}
	if user == nil {
		if user, err = s.store.GetByEmail(ctx, usernameOrEmail); err != nil {
			return TokenPair{}, err
		}
	}
	if user == nil {
		return s.failLogin(ctx, usernameOrEmail, now, ReasonNotFound)
	}
	if !user.Confirmed {
		return TokenPair{}, authErr(ReasonUnconfirmed)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return s.failLogin(ctx, usernameOrEmail, now, ReasonBadPassword)
	}

	if s.lockout != nil {
		if err := s.lockout.ResetLoginAttempt(ctx, usernameOrEmail); err != nil {
			return TokenPair{}, err
		}
	}

	return s.IssueSession(ctx, user.ID)
}

func (s *Service) failLogin(ctx context.Context, username string, now time.Time, reason Reason) (TokenPair, error) {
	if s.lockout != nil {
		lockedUntil, err := s.lockout.RegisterFailedAttempt(ctx, username, s.maxAttempts, s.lockDuration, now)
		if err != nil {
			return TokenPair{}, err
		}
		if lockedUntil != nil {
			return TokenPair{}, ErrLoginLocked{Until: *lockedUntil}
		}
	}
	return TokenPair{}, authErr(reason)
}

// ConfirmEmail marks the account behind a verification token as confirmed.
// Confirming twice is a no-op reported as alreadyConfirmed=true.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	email, err := s.ResolveEmailToken(token)
	if err != nil {
		return false, err
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, authErr(ReasonInvalidVerificationToken)
	}
	if user.Confirmed {
		return true, nil
	}

	return false, s.store.MarkConfirmed(ctx, email)
}

// ResendConfirmation re-sends the confirmation email with a fresh token.
func (s *Service) ResendConfirmation(ctx context.Context, email string) (alreadyConfirmed bool, err error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, authErr(ReasonNotFound)
	}
	if user.Confirmed {
		return true, nil
	}

	s.sendConfirmation(user.Email, user.Username)
	return false, nil
}

// sendConfirmation mints a fresh email token and delivers it in the
// background. Errors are reported to Sentry only; signup and resend must not
// block or fail on mail delivery.
func (s *Service) sendConfirmation(email, username string) {
	if s.mailer == nil {
		return
	}

	token, err := s.CreateEmailToken(email)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("mint email token: %w", err))
		return
	}
	confirmURL := fmt.Sprintf("%s/auth/confirm/%s", s.baseURL, token)

	go func() {
		if err := s.mailer.SendConfirmation(email, username, confirmURL); err != nil {
			sentry.CaptureException(fmt.Errorf("send confirmation email: %w", err))
		}
	}()
}
