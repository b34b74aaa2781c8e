package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"contacts-api/internal/auth"
	"contacts-api/internal/media"
)

// AvatarStore persists the uploaded avatar URL on the account row.
type AvatarStore interface {
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
}

type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource, publicID string) (string, error)
}

type Handler struct {
	store    AvatarStore
	uploader ImageUploader
}

func NewHandler(store AvatarStore, uploader ImageUploader) *Handler {
	return &Handler{store: store, uploader: uploader}
}

// Me returns the authenticated account. Secrets never serialize: the model's
// JSON tags drop the password hash and refresh token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.CurrentUser(r.Context()))
}

// UpdateAvatar uploads the posted image to Cloudinary under a per-user public
// ID and stores the 250x250 fill-cropped delivery URL on the account.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusInternalServerError, "image uploader is not configured")
		return
	}

	user := auth.CurrentUser(r.Context())

	imageSource, err := media.ReadImageDataURI(r, "file")
	if err != nil {
		switch {
		case errors.Is(err, media.ErrFileRequired),
			errors.Is(err, media.ErrFileEmpty),
			errors.Is(err, media.ErrFileTooLarge),
			errors.Is(err, media.ErrNotAnImage):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to read file")
		}
		return
	}

	secureURL, err := h.uploader.UploadImage(r.Context(), imageSource, "ContactsApp/"+user.Username)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload avatar")
		return
	}

	avatarURL := media.AvatarURL(secureURL)
	if err := h.store.UpdateAvatar(r.Context(), user.ID, avatarURL); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update avatar")
		return
	}

	updated := *user
	updated.AvatarURL = &avatarURL
	writeJSON(w, http.StatusOK, &updated)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
