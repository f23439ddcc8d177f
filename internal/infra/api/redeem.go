package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/infra/logging"
	"ecocash-activation/internal/infra/metrics"
	red "ecocash-activation/internal/infra/redis"
	"ecocash-activation/internal/usecase"
)

// Limiter throttles redemption attempts per client.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var _ Limiter = (*red.RateLimiter)(nil)

// flexString accepts a JSON string or number; clients send user ids both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// objects, arrays and booleans are not identifiers
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}

type redeemSuccess struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	PremiumUntil    string `json:"premium_until"`
	DurationMinutes int    `json:"duration_minutes"`
}

// redeemRoute describes one of the two redemption dialects.
type redeemRoute struct {
	endpoint    string
	identityKey string
	codeKey     string
	missingMsg  string
	invalidMsg  string
}

var (
	verifyRoute = redeemRoute{
		endpoint:    "verify",
		identityKey: "user_id",
		codeKey:     "unlock_key",
		missingMsg:  "user_id and unlock_key required",
		invalidMsg:  "Invalid or expired unlock key",
	}
	redeemCodeRoute = redeemRoute{
		endpoint:    "redeem",
		identityKey: "device_id",
		codeKey:     "code",
		missingMsg:  "Code and device_id required",
		invalidMsg:  "Invalid or expired activation code",
	}
)

type RedeemHandler struct {
	uc      usecase.RedeemerUseCase
	limiter Limiter
	log     *zerolog.Logger
}

// NewRedeemHandler builds the /verify and /redeem handlers. limiter may be nil.
func NewRedeemHandler(uc usecase.RedeemerUseCase, limiter Limiter, logger *zerolog.Logger) *RedeemHandler {
	l := logger.With().Str("component", "RedeemHandler").Logger()
	return &RedeemHandler{uc: uc, limiter: limiter, log: &l}
}

func (h *RedeemHandler) Verify() http.HandlerFunc { return h.handle(verifyRoute) }
func (h *RedeemHandler) Redeem() http.HandlerFunc { return h.handle(redeemCodeRoute) }

func (h *RedeemHandler) handle(rt redeemRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := logging.With(ctx, h.log)

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if h.limiter != nil {
			ok, err := h.limiter.Allow(ctx, red.RedeemKey(rt.endpoint, clientIP(r)))
			switch {
			case err != nil:
				l.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			case !ok:
				metrics.IncRedemption(rt.endpoint, "rate_limited")
				writeError(w, http.StatusTooManyRequests, "Too many attempts")
				return
			}
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		var in map[string]flexString
		if err := json.Unmarshal(body, &in); err != nil {
			metrics.IncRedemption(rt.endpoint, "bad_request")
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		identity := strings.TrimSpace(string(in[rt.identityKey]))
		code := strings.TrimSpace(string(in[rt.codeKey]))
		if identity == "" || code == "" {
			metrics.IncRedemption(rt.endpoint, "bad_request")
			writeError(w, http.StatusBadRequest, rt.missingMsg)
			return
		}

		res, err := h.uc.Redeem(ctx, code, identity)
		switch {
		case errors.Is(err, domain.ErrInvalidOrExpired):
			metrics.IncRedemption(rt.endpoint, "invalid")
			writeError(w, http.StatusOK, rt.invalidMsg)
			return
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncRedemption(rt.endpoint, "bad_request")
			writeError(w, http.StatusBadRequest, rt.missingMsg)
			return
		case err != nil:
			metrics.IncRedemption(rt.endpoint, "error")
			l.Error().Err(err).Str("endpoint", rt.endpoint).Msg("redemption failed")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		metrics.IncRedemption(rt.endpoint, "ok")
		writeJSON(w, http.StatusOK, redeemSuccess{
			Success:         true,
			Message:         "Premium features unlocked!",
			PremiumUntil:    res.PremiumUntil.UTC().Format(time.RFC3339),
			DurationMinutes: res.DurationMinutes,
		})
	}
}
