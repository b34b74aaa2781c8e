package contact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"contacts-api/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

// Store is what the handler needs from persistence; *Repository implements it.
type Store interface {
	List(ctx context.Context, userID string, filter Filter) ([]Contact, error)
	Get(ctx context.Context, userID, id string) (*Contact, error)
	Create(ctx context.Context, userID string, input ContactInput, birthday time.Time) (Contact, error)
	Update(ctx context.Context, userID, id string, input ContactInput, birthday time.Time) (Contact, error)
	Delete(ctx context.Context, userID, id string) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	filter := Filter{
		Name:         strings.TrimSpace(r.URL.Query().Get("name")),
		Surname:      strings.TrimSpace(r.URL.Query().Get("surname")),
		EmailAddress: strings.TrimSpace(r.URL.Query().Get("email_address")),
	}

	contacts, err := h.store.List(r.Context(), user.ID, filter)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	input, birthday, ok := parseInput(w, r)
	if !ok {
		return
	}

	c, err := h.store.Create(r.Context(), user.ID, input, birthday)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create contact")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"contact": c, "detail": "contact created"})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	id, ok := contactID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get contact")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	id, ok := contactID(w, r)
	if !ok {
		return
	}

	input, birthday, ok := parseInput(w, r)
	if !ok {
		return
	}

	c, err := h.store.Update(r.Context(), user.ID, id, input, birthday)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update contact")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"contact": c, "detail": "contact updated"})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	id, ok := contactID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete contact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Birthdays lists the user's contacts with a birthday in the next {days}
// days, inclusive of today.
func (h *Handler) Birthdays(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	days, err := strconv.Atoi(r.PathValue("days"))
	if err != nil || days < 0 || days > 366 {
		writeError(w, http.StatusBadRequest, "days must be between 0 and 366")
		return
	}

	contacts, err := h.store.List(r.Context(), user.ID, Filter{})
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"contacts": Upcoming(time.Now().UTC(), days, contacts)})
}

func contactID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return "", false
	}
	return id, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (ContactInput, time.Time, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input ContactInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return ContactInput{}, time.Time{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Surname = strings.TrimSpace(input.Surname)
	input.EmailAddress = strings.TrimSpace(input.EmailAddress)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)

	if input.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return ContactInput{}, time.Time{}, false
	}
	if !utf8.ValidString(input.Name) || len(input.Name) > 100 {
		writeError(w, http.StatusBadRequest, "name is invalid")
		return ContactInput{}, time.Time{}, false
	}
	if !utf8.ValidString(input.Surname) || len(input.Surname) > 100 {
		writeError(w, http.StatusBadRequest, "surname is invalid")
		return ContactInput{}, time.Time{}, false
	}
	if len(input.EmailAddress) > 254 {
		writeError(w, http.StatusBadRequest, "email_address is invalid")
		return ContactInput{}, time.Time{}, false
	}
	if len(input.PhoneNumber) > 32 {
		writeError(w, http.StatusBadRequest, "phone_number is invalid")
		return ContactInput{}, time.Time{}, false
	}
	if input.AdditionalData != nil && len(*input.AdditionalData) > 1000 {
		writeError(w, http.StatusBadRequest, "additional_data is too long")
		return ContactInput{}, time.Time{}, false
	}

	birthday, err := time.Parse("2006-01-02", strings.TrimSpace(input.Birthday))
	if err != nil {
		writeError(w, http.StatusBadRequest, "birthday must be formatted as YYYY-MM-DD")
		return ContactInput{}, time.Time{}, false
	}

	return input, birthday, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
