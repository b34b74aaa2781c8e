package contact

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contacts-api/internal/auth"
)

type fakeContactStore struct {
	contacts   map[string]Contact
	lastFilter Filter
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{contacts: make(map[string]Contact)}
}

func (s *fakeContactStore) List(_ context.Context, userID string, filter Filter) ([]Contact, error) {
	s.lastFilter = filter
	out := make([]Contact, 0)
	for _, c := range s.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeContactStore) Get(_ context.Context, userID, id string) (*Contact, error) {
	if c, ok := s.contacts[id]; ok && c.UserID == userID {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeContactStore) Create(_ context.Context, userID string, input ContactInput, birthday time.Time) (Contact, error) {
	c := Contact{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           input.Name,
		Surname:        input.Surname,
		EmailAddress:   input.EmailAddress,
		PhoneNumber:    input.PhoneNumber,
		Birthday:       birthday,
		AdditionalData: input.AdditionalData,
	}
	s.contacts[c.ID] = c
	return c, nil
}

func (s *fakeContactStore) Update(_ context.Context, userID, id string, input ContactInput, birthday time.Time) (Contact, error) {
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return Contact{}, sql.ErrNoRows
	}
	c.Name = input.Name
	c.Surname = input.Surname
	c.EmailAddress = input.EmailAddress
	c.PhoneNumber = input.PhoneNumber
	c.Birthday = birthday
	c.AdditionalData = input.AdditionalData
	s.contacts[id] = c
	return c, nil
}

func (s *fakeContactStore) Delete(_ context.Context, userID, id string) error {
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.contacts, id)
	return nil
}

var testUser = &auth.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Confirmed: true}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(auth.WithUser(req.Context(), testUser))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateContact(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	handler := NewHandler(store)

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/contacts",
		`{"name":"Bob","surname":"Jones","email_address":"bob@example.com","phone_number":"123","birthday":"1990-06-15"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	created, ok := body["contact"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Bob", created["name"])
	assert.NotContains(t, created, "user_id")
	assert.Len(t, store.contacts, 1)
}

func TestCreateContactValidation(t *testing.T) {
	t.Parallel()
	handler := NewHandler(newFakeContactStore())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", `{"birthday":"1990-06-15"}`, "name is required"},
		{"bad birthday", `{"name":"Bob","birthday":"15.06.1990"}`, "birthday must be formatted as YYYY-MM-DD"},
		{"missing birthday", `{"name":"Bob"}`, "birthday must be formatted as YYYY-MM-DD"},
		{"oversized name", `{"name":"` + strings.Repeat("a", 101) + `","birthday":"1990-06-15"}`, "name is invalid"},
		{"unknown field", `{"name":"Bob","birthday":"1990-06-15","nickname":"bobby"}`, "invalid json body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			handler.Create(rec, authedRequest(http.MethodPost, "/contacts", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeBody(t, rec)["error"])
		})
	}
}

func TestListContactsForwardsFilter(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	handler := NewHandler(store)

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet, "/contacts?name=Bob&surname=Jones&email_address=bob@example.com", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Filter{Name: "Bob", Surname: "Jones", EmailAddress: "bob@example.com"}, store.lastFilter)
}

func TestListContactsScopedToOwner(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	store.contacts["mine"] = Contact{ID: "mine", UserID: testUser.ID, Name: "Mine"}
	store.contacts["theirs"] = Contact{ID: "theirs", UserID: "user-2", Name: "Theirs"}
	handler := NewHandler(store)

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet, "/contacts", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	listed, ok := decodeBody(t, rec)["contacts"].([]any)
	require.True(t, ok)
	require.Len(t, listed, 1)
	assert.Equal(t, "Mine", listed[0].(map[string]any)["name"])
}

func TestGetContact(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	id := uuid.NewString()
	store.contacts[id] = Contact{ID: id, UserID: testUser.ID, Name: "Bob"}
	handler := NewHandler(store)

	req := authedRequest(http.MethodGet, "/contacts/"+id, "")
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", decodeBody(t, rec)["name"])
}

func TestGetContactNotOwned(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	id := uuid.NewString()
	store.contacts[id] = Contact{ID: id, UserID: "user-2", Name: "Theirs"}
	handler := NewHandler(store)

	req := authedRequest(http.MethodGet, "/contacts/"+id, "")
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetContactInvalidID(t *testing.T) {
	t.Parallel()
	handler := NewHandler(newFakeContactStore())

	req := authedRequest(http.MethodGet, "/contacts/not-a-uuid", "")
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid contact id", decodeBody(t, rec)["error"])
}

func TestUpdateContact(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	id := uuid.NewString()
	store.contacts[id] = Contact{ID: id, UserID: testUser.ID, Name: "Bob"}
	handler := NewHandler(store)

	req := authedRequest(http.MethodPut, "/contacts/"+id, `{"name":"Robert","birthday":"1990-06-15"}`)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Robert", store.contacts[id].Name)
}

func TestDeleteContact(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	id := uuid.NewString()
	store.contacts[id] = Contact{ID: id, UserID: testUser.ID, Name: "Bob"}
	handler := NewHandler(store)

	req := authedRequest(http.MethodDelete, "/contacts/"+id, "")
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.contacts)

	rec = httptest.NewRecorder()
	handler.Delete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBirthdaysDaysValidation(t *testing.T) {
	t.Parallel()
	handler := NewHandler(newFakeContactStore())

	for _, days := range []string{"-1", "367", "abc", ""} {
		req := authedRequest(http.MethodGet, "/contacts/birthdays/"+days, "")
		req.SetPathValue("days", days)
		rec := httptest.NewRecorder()
		handler.Birthdays(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days %q", days)
	}
}

func TestBirthdaysFiltersWindow(t *testing.T) {
	t.Parallel()
	store := newFakeContactStore()
	now := time.Now().UTC()
	store.contacts["soon"] = Contact{
		ID: "soon", UserID: testUser.ID, Name: "Soon",
		Birthday: time.Date(1990, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 2),
	}
	store.contacts["far"] = Contact{
		ID: "far", UserID: testUser.ID, Name: "Far",
		Birthday: time.Date(1990, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 60),
	}
	handler := NewHandler(store)

	req := authedRequest(http.MethodGet, "/contacts/birthdays/7", "")
	req.SetPathValue("days", "7")
	rec := httptest.NewRecorder()
	handler.Birthdays(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	listed, ok := decodeBody(t, rec)["contacts"].([]any)
	require.True(t, ok)
	require.Len(t, listed, 1)
	assert.Equal(t, "Soon", listed[0].(map[string]any)["name"])
}
