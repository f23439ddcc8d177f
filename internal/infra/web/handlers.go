package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/infra/metrics"
	"ecocash-activation/internal/usecase"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil || s.apiKey == "" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req loginRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.APIKey == "" {
		req.APIKey = bearerToken(r)
	}
	if req.APIKey == "" || !s.keyMatches(req.APIKey) {
		s.log.Warn().Msg("admin login rejected")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.Clear(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// statsHandler returns the dashboard counters.
func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := statsUC.CodeStats(r.Context())
		if err != nil {
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

type codeView struct {
	Value           string     `json:"value"`
	Status          string     `json:"status"`
	Subject         *string    `json:"subject,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	UsedBy          *string    `json:"used_by,omitempty"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	LinkedPaymentID *string    `json:"linked_payment_id,omitempty"`
}

func toCodeView(c *model.Code, now time.Time) codeView {
	return codeView{
		Value:           c.Value,
		Status:          string(c.Status(now)),
		Subject:         c.Subject,
		CreatedAt:       c.CreatedAt,
		ExpiresAt:       c.ExpiresAt,
		UsedBy:          c.UsedBy,
		UsedAt:          c.UsedAt,
		LinkedPaymentID: c.LinkedPaymentID,
	}
}

func codesListHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		status := model.CodeStatus(q.Get("status"))
		if status == "all" {
			status = ""
		}

		codes, err := statsUC.RecentCodes(r.Context(), status, limit)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to list codes", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		items := make([]codeView, 0, len(codes))
		for _, c := range codes {
			items = append(items, toCodeView(c, now))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

type codesCreateRequest struct {
	Count int `json:"count"`
}

// codesCreateHandler mints subject-less unlock keys. The batch is atomic, so a
// 500 means no key was stored.
func codesCreateHandler(issuerUC usecase.IssuerUseCase, ttl time.Duration, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := codesCreateRequest{Count: 1}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}

		codes, err := issuerUC.IssueBatch(r.Context(), req.Count, ttl)
		for range codes {
			metrics.IncCodeIssued("unlock_key")
		}
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, "count must be between 1 and 100", http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Int("requested", req.Count).Msg("unlock key batch failed")
			http.Error(w, "Failed to generate codes", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		items := make([]codeView, 0, len(codes))
		for _, c := range codes {
			items = append(items, toCodeView(c, now))
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": items})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
