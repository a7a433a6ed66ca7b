package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sambatesdesign/ChimpLink/internal/platform/metrics"
	"github.com/sambatesdesign/ChimpLink/internal/sync"
)

// ProfileSyncAPI is the profile-sync surface the GBX ingress drives.
type ProfileSyncAPI interface {
	SyncProfile(ctx context.Context, payload map[string]any, raw json.RawMessage) sync.Result
}

// ProfileHandler receives GBX profile pushes. The route carries no HMAC
// secret of its own; it is mounted behind the operator basic-auth middleware
// in main.
type ProfileHandler struct {
	profiles ProfileSyncAPI
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewProfileHandler(profiles ProfileSyncAPI, logger *slog.Logger, m *metrics.Metrics) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger, metrics: m}
}

func (h *ProfileHandler) Register(r chi.Router) {
	r.Post("/gbx-profile-sync", h.handleProfileSync)
}

// handleProfileSync runs one profile push. Like the webhook routes, a parsed
// body is always acknowledged with 200; the sync outcome is reported in the
// response body and the audit log.
func (h *ProfileHandler) handleProfileSync(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("malformed profile payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	h.metrics.IncEventReceived("gbx", "gbx_profile_sync")

	result := h.profiles.SyncProfile(r.Context(), payload, body)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(result.Status)})
}
