package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/infra/metrics"
	"ecocash-activation/internal/usecase"
)

// Server is the admin JSON API: code counters, recent codes and unlock-key minting.
type Server struct {
	statsUC   usecase.StatsUseCase
	issuerUC  usecase.IssuerUseCase
	unlockTTL time.Duration
	apiKey    string
	auth      *AuthManager // optional; nil disables sessions
	log       *zerolog.Logger
}

func NewServer(
	statsUC usecase.StatsUseCase,
	issuerUC usecase.IssuerUseCase,
	unlockTTL time.Duration,
	apiKey string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		statsUC:   statsUC,
		issuerUC:  issuerUC,
		unlockTTL: unlockTTL,
		apiKey:    apiKey,
		auth:      auth,
		log:       &l,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/admin/login", s.loginHandler)
	r.Post("/admin/logout", s.logoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/v1/stats", statsHandler(s.statsUC))
		r.Get("/api/v1/codes", codesListHandler(s.statsUC))
		r.Post("/api/v1/codes", codesCreateHandler(s.issuerUC, s.unlockTTL, s.log))
	})
}

// authMiddleware accepts the static API key as a bearer token, or a session
// token minted by /admin/login (bearer or cookie).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			metrics.IncAdminRequest(route, "disabled")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if tok := bearerToken(r); tok != "" && s.keyMatches(tok) {
			metrics.IncAdminRequest(route, "authorized")
			next.ServeHTTP(w, r)
			return
		}
		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				metrics.IncAdminRequest(route, "authorized")
				next.ServeHTTP(w, r)
				return
			}
		}

		metrics.IncAdminRequest(route, "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) keyMatches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.apiKey)) == 1
}
