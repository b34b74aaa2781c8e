package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contacts-api/internal/auth"
)

type fakeAvatarStore struct {
	userID    string
	avatarURL string
	err       error
}

func (s *fakeAvatarStore) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	s.userID = userID
	s.avatarURL = avatarURL
	return s.err
}

type fakeUploader struct {
	secureURL string
	err       error
	source    string
	publicID  string
}

func (u *fakeUploader) UploadImage(_ context.Context, imageSource, publicID string) (string, error) {
	u.source = imageSource
	u.publicID = publicID
	return u.secureURL, u.err
}

var testUser = &auth.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Confirmed: true}

func authed(req *http.Request) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), testUser))
}

func avatarRequest(t *testing.T, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="avatar.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return authed(req)
}

func TestMeReturnsAccountWithoutSecrets(t *testing.T) {
	t.Parallel()
	handler := NewHandler(&fakeAvatarStore{}, &fakeUploader{})

	rec := httptest.NewRecorder()
	handler.Me(rec, authed(httptest.NewRequest(http.MethodGet, "/users/me", nil)))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "refresh_token")
}

func TestUpdateAvatar(t *testing.T) {
	t.Parallel()
	store := &fakeAvatarStore{}
	uploader := &fakeUploader{secureURL: "https://res.cloudinary.com/demo/image/upload/v1/ContactsApp/alice.png"}
	handler := NewHandler(store, uploader)

	rec := httptest.NewRecorder()
	handler.UpdateAvatar(rec, avatarRequest(t, []byte{0x89, 'P', 'N', 'G'}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ContactsApp/alice", uploader.publicID)
	assert.Equal(t, "user-1", store.userID)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/c_fill,h_250,w_250/v1/ContactsApp/alice.png", store.avatarURL)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, store.avatarURL, body["avatar_url"])
}

func TestUpdateAvatarMissingFile(t *testing.T) {
	t.Parallel()
	handler := NewHandler(&fakeAvatarStore{}, &fakeUploader{})

	req := authed(httptest.NewRequest(http.MethodPost, "/users/me/avatar", nil))
	rec := httptest.NewRecorder()
	handler.UpdateAvatar(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAvatarUploadFailure(t *testing.T) {
	t.Parallel()
	store := &fakeAvatarStore{}
	handler := NewHandler(store, &fakeUploader{err: errors.New("cloudinary down")})

	rec := httptest.NewRecorder()
	handler.UpdateAvatar(rec, avatarRequest(t, []byte{0x89, 'P', 'N', 'G'}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, store.avatarURL)
}

func TestUpdateAvatarNoUploaderConfigured(t *testing.T) {
	t.Parallel()
	handler := NewHandler(&fakeAvatarStore{}, nil)

	rec := httptest.NewRecorder()
	handler.UpdateAvatar(rec, avatarRequest(t, []byte{0x89, 'P', 'N', 'G'}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
