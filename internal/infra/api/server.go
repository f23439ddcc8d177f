package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/usecase"
)

// RouteRegistrar mounts an extra route group (the admin API) on the router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Deps struct {
	Dispatcher     usecase.DispatcherUseCase
	Redeemer       usecase.RedeemerUseCase
	Limiter        Limiter // optional
	Admin          RouteRegistrar
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

// NewRouter wires every public route of the service.
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(
		TraceID(d.Logger),
		RequestLog(d.Logger),
		Recover(d.Logger),
		Timeout(d.RequestTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/webhook", NewWebhookHandler(d.Dispatcher, d.Logger))

	redeem := NewRedeemHandler(d.Redeemer, d.Limiter, d.Logger)
	r.Group(func(r chi.Router) {
		r.Use(CORS())
		r.Handle("/verify", redeem.Verify())
		r.Handle("/redeem", redeem.Redeem())
	})

	if d.Admin != nil {
		d.Admin.RegisterRoutes(r)
	}
	return r
}

type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(port int, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
