package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sambatesdesign/ChimpLink/internal/stripe"
)

const maxBodyBytes = 1 << 20

// Handler is the public webhook ingress. Authenticity is enforced at this
// boundary; once a delivery is verified and parsed it is always acknowledged
// with 200 so senders do not retry events we have chosen to drop.
type Handler struct {
	memberful       *Dispatcher
	stripeDisp      *StripeDispatcher
	memberfulSecret string
	stripeSecret    string
	logger          *slog.Logger
}

func NewHandler(memberful *Dispatcher, stripeDisp *StripeDispatcher, memberfulSecret, stripeSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		memberful:       memberful,
		stripeDisp:      stripeDisp,
		memberfulSecret: memberfulSecret,
		stripeSecret:    stripeSecret,
		logger:          logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/memberful-webhook", h.handleMemberful)
	r.Post("/stripe-webhook", h.handleStripe)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleMemberful(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	sig := r.Header.Get("X-Memberful-Webhook-Signature")
	if err := VerifyMemberfulSignature(sig, body, h.memberfulSecret); err != nil {
		h.logger.Warn("rejected membership webhook", "error", err)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}
	if err := h.memberful.DispatchMemberful(r.Context(), body); err != nil {
		h.logger.Warn("malformed membership webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if err := stripe.VerifySignature(sig, body, h.stripeSecret); err != nil {
		h.logger.Warn("rejected payment webhook", "error", err)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}
	if err := h.stripeDisp.Dispatch(r.Context(), body); err != nil {
		h.logger.Warn("malformed payment webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
