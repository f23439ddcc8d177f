package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/infra/logging"
	"ecocash-activation/internal/infra/metrics"
	"ecocash-activation/internal/usecase"
)

const maxWebhookBody = 1 << 20

// WebhookHandler binds the dispatcher to the provider's HTTP contract.
type WebhookHandler struct {
	uc  usecase.DispatcherUseCase
	log *zerolog.Logger
}

func NewWebhookHandler(uc usecase.DispatcherUseCase, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "WebhookHandler").Logger()
	return &WebhookHandler{uc: uc, log: &l}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handshake(w, r)
	case http.MethodPost:
		h.delivery(w, r)
	default:
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// hubParam accepts hub_x, hub.x and hubx.
func hubParam(r *http.Request, name string) string {
	q := r.URL.Query()
	for _, k := range []string{"hub_" + name, "hub." + name, "hub" + name} {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func (h *WebhookHandler) handshake(w http.ResponseWriter, r *http.Request) {
	challenge, ok := h.uc.Handshake(hubParam(r, "mode"), hubParam(r, "verify_token"), hubParam(r, "challenge"))
	if !ok {
		metrics.IncWebhookDelivery("handshake_denied")
		l := logging.With(r.Context(), h.log)
		l.Warn().Msg("webhook verification rejected")
		writeText(w, http.StatusForbidden, "Invalid verification token")
		return
	}
	metrics.IncWebhookDelivery("handshake_ok")
	writeText(w, http.StatusOK, challenge)
}

func (h *WebhookHandler) delivery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := logging.WithDeliveryID(r.Context(), ulid.Make().String())
	l := logging.With(ctx, h.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookDelivery("bad_json")
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !json.Valid(body) {
		metrics.IncWebhookDelivery("bad_json")
		l.Warn().Int("bytes", len(body)).Msg("undecodable webhook payload")
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	// A mistyped field is skipped; encoding/json still fills in the rest.
	var payload usecase.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			metrics.IncWebhookDelivery("bad_json")
			l.Warn().Err(err).Int("bytes", len(body)).Msg("undecodable webhook payload")
			writeText(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		l.Warn().Err(err).Msg("webhook payload has an unexpected shape, processing what decoded")
	}
	l.Debug().Int("bytes", len(body)).Msg("webhook delivery received")

	rep := h.uc.HandleDelivery(ctx, &payload)
	for _, m := range rep.Messages {
		reason := m.Reason
		if reason == "" {
			reason = "none"
		}
		metrics.IncWebhookMessage(string(m.Outcome), reason)
		if m.Outcome == usecase.OutcomeIssued {
			metrics.IncCodeIssued("payment")
		}
	}
	for i := 0; i < rep.Skipped; i++ {
		metrics.IncWebhookMessage("skipped", "non_text")
	}
	metrics.IncWebhookDelivery("ok")
	metrics.ObserveWebhookDelivery(time.Since(start))

	l.Info().Int("messages", len(rep.Messages)).Int("skipped", rep.Skipped).Msg("webhook delivery processed")
	writeText(w, http.StatusOK, "EVENT_RECEIVED")
}
