// Package httptransport assembles the public HTTP surface: the middleware
// chain, the per-module handlers, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provena/internal/platform/metrics"
	"provena/internal/platform/middleware"
	"provena/internal/platform/ratelimit"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs wired in from main.
type Deps struct {
	Logger    *slog.Logger
	Validator middleware.TokenValidator
	Metrics   *metrics.Metrics
	// Limiter, when set, throttles callers per account (per address for
	// unauthenticated requests).
	Limiter *ratelimit.Limiter

	// Public handlers are mounted before authentication (token issuance).
	Public []Registrar
	// Authed handlers sit behind the full middleware chain.
	Authed []Registrar

	RequestTimeout time.Duration
}

// NewRouter builds the chi router. Operational endpoints (health, metrics)
// bypass authentication; everything else requires a caller token.
func NewRouter(deps Deps) http.Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	r.Use(middleware.Timeout(deps.RequestTimeout))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(public chi.Router) {
		if deps.Limiter != nil {
			public.Use(ratelimit.Middleware(deps.Limiter, deps.Logger))
		}
		for _, h := range deps.Public {
			h.Register(public)
		}
	})

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.ContentTypeJSON)
		authed.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		if deps.Limiter != nil {
			authed.Use(ratelimit.Middleware(deps.Limiter, deps.Logger))
		}
		for _, h := range deps.Authed {
			h.Register(authed)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
