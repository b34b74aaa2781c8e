// Package maintenance exposes the cron-triggered cleanup endpoint.
package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"contacts-api/internal/auth"
	"contacts-api/internal/observability"
)

// CleanupStore is the slice of the auth repository the cleanup job needs.
type CleanupStore interface {
	CleanupStaleAuthData(ctx context.Context, loginAttemptRetention, unconfirmedRetention time.Duration, batchSize int) (auth.CleanupResult, error)
}

type CleanupHandler struct {
	store                 CleanupStore
	logger                *observability.Logger
	cronSecret            string
	loginAttemptRetention time.Duration
	unconfirmedRetention  time.Duration
	batchSize             int
}

func NewCleanupHandler(
	store CleanupStore,
	logger *observability.Logger,
	cronSecret string,
	loginAttemptRetention time.Duration,
	unconfirmedRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		store:                 store,
		logger:                logger,
		cronSecret:            strings.TrimSpace(cronSecret),
		loginAttemptRetention: loginAttemptRetention,
		unconfirmedRetention:  unconfirmedRetention,
		batchSize:             batchSize,
	}
}

// Handle runs a bounded cleanup pass. Without a configured cron secret the
// endpoint pretends not to exist.
func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.store.CleanupStaleAuthData(r.Context(), h.loginAttemptRetention, h.unconfirmedRetention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_login_attempts":    result.DeletedLoginAttempts,
		"deleted_ip_limits":         result.DeletedIPLimits,
		"deleted_unconfirmed_users": result.DeletedUnconfirmedUsers,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
