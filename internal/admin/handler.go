// Package admin exposes the operator surface: the audit log, the identity
// cache snapshot, and log replay. Callers are expected to mount it behind
// basic-auth middleware.
package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/sambatesdesign/ChimpLink/internal/audit"
	"github.com/sambatesdesign/ChimpLink/internal/identity"
)

// Replayer re-runs a stored event through the normal dispatch path.
type Replayer interface {
	DispatchMemberful(ctx context.Context, raw []byte) error
}

type Handler struct {
	log    *audit.Log
	cache  *identity.Cache
	replay Replayer
	logger *slog.Logger
}

func NewHandler(log *audit.Log, cache *identity.Cache, replay Replayer, logger *slog.Logger) *Handler {
	return &Handler{log: log, cache: cache, replay: replay, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/logs", h.handleLogs)
	r.Get("/cache", h.handleCache)
	r.Post("/replay-log", h.handleReplay)
}

// handleLogs returns the audit log newest first.
func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.log.Entries(r.Context())
	if err != nil {
		h.logger.Error("reading audit log failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read logs"})
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCache(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.cache.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("reading identity cache failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read cache"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleReplay feeds a stored payload back through the dispatcher, bypassing
// signature verification since the operator is already authenticated. The
// body is either a raw event payload or `{"id": "<entry id>"}` referencing a
// logged entry whose payload is replayed instead.
func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	var probe struct {
		ID    string `json:"id"`
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing payload or event"})
		return
	}

	payload := body
	if probe.Event == "" && probe.ID != "" {
		entry, ok, err := h.log.Find(r.Context(), probe.ID)
		if err != nil {
			h.logger.Error("reading audit log failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read logs"})
			return
		}
		if !ok || len(entry.Payload) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no replayable entry with that id"})
			return
		}
		payload = entry.Payload
		probe.Event = entry.Event
	}
	if probe.Event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing payload or event"})
		return
	}

	h.logger.Info("replaying stored event", "event", probe.Event)
	if err := h.replay.DispatchMemberful(r.Context(), payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replayed", "event": probe.Event})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
