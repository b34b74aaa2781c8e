package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	passwordvalidator "github.com/wagslane/go-password-validator"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	maxJSONBodyBytes       = 1 << 20
	passwordMinEntropyBits = 50
	maxPasswordLengthBytes = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signupRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Password    string  `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resendRequest struct {
	Email string `json:"email"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Username = strings.TrimSpace(strings.ToLower(body.Username))
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if !usernameRegex.MatchString(body.Username) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return
	}
	if !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if len(body.Password) > maxPasswordLengthBytes {
		writeError(w, http.StatusBadRequest, "password is too long")
		return
	}
	if err := passwordvalidator.Validate(body.Password, passwordMinEntropyBits); err != nil {
		writeError(w, http.StatusBadRequest, "password is too weak")
		return
	}

	user, err := h.service.Signup(r.Context(), body.Username, body.Email, body.PhoneNumber, body.Password)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			writeError(w, http.StatusConflict, "account already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"detail": "account created, check your email for confirmation",
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Username = strings.TrimSpace(strings.ToLower(body.Username))
	body.Password = strings.TrimSpace(body.Password)
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	var lockedErr ErrLoginLocked
	if errors.As(err, &lockedErr) {
		retryAfter := int(time.Until(lockedErr.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "login temporarily locked")
		return
	}

	if reason, ok := AuthReason(err); ok {
		switch reason {
		case ReasonUnconfirmed:
			writeError(w, http.StatusUnauthorized, "email not confirmed")
		default:
			// not_found and bad_password share a body so responses cannot
			// be used to enumerate accounts.
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		}
		return
	}

	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, "failed to login")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.service.RefreshSession(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		if _, ok := AuthReason(err); ok {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	already, err := h.service.ConfirmEmail(r.Context(), token)
	if err != nil {
		if reason, ok := AuthReason(err); ok && reason == ReasonInvalidVerificationToken {
			writeError(w, http.StatusBadRequest, "verification error")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to confirm email")
		return
	}

	if already {
		writeJSON(w, http.StatusOK, map[string]string{"message": "email is already confirmed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "email confirmed"})
}

func (h *Handler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var body resendRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}

	already, err := h.service.ResendConfirmation(r.Context(), body.Email)
	if err != nil {
		if reason, ok := AuthReason(err); ok && reason == ReasonNotFound {
			// Same body as the happy path: resend must not leak which
			// addresses have accounts.
			writeJSON(w, http.StatusOK, map[string]string{"message": "check your email for confirmation"})
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to resend confirmation")
		return
	}

	if already {
		writeJSON(w, http.StatusOK, map[string]string{"message": "email is already confirmed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "check your email for confirmation"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
