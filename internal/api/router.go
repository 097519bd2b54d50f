// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/aln-orchestrator/internal/auth"
	"github.com/tomtom215/aln-orchestrator/internal/middleware"
)

// RouterConfig carries the routing knobs from the application config.
type RouterConfig struct {
	// CORSOrigins is the allowed origin list; "*" allows all. Empty
	// blocks cross-origin browser access (native scanners are unaffected).
	CORSOrigins []string

	// ScanRatePerMinute limits the public scan endpoints per client IP.
	ScanRatePerMinute int

	// AuthRatePerMinute limits /api/admin/auth per client IP, on top of
	// the handler's own login throttle.
	AuthRatePerMinute int

	// MetricsEnabled mounts GET /metrics.
	MetricsEnabled bool
}

// Router assembles the HTTP surface.
type Router struct {
	handler   *Handler
	auth      *auth.Middleware
	handshake http.Handler
	cfg       RouterConfig
}

// NewRouter creates the router. handshake serves GET /ws.
func NewRouter(handler *Handler, authMW *auth.Middleware, handshake http.Handler, cfg RouterConfig) *Router {
	if cfg.ScanRatePerMinute <= 0 {
		cfg.ScanRatePerMinute = 300
	}
	if cfg.AuthRatePerMinute <= 0 {
		cfg.AuthRatePerMinute = 10
	}
	return &Router{
		handler:   handler,
		auth:      authMW,
		handshake: handshake,
		cfg:       cfg,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler shape.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup builds the route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global stack: request IDs for log correlation, real client IPs
	// behind the venue's reverse proxy, panic recovery, CORS preflight.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// Public scanner endpoints. No auth: player scanners are provisioned
	// devices on a closed network, and a scan must never fail because a
	// token expired mid-game.
	r.Route("/api/scan", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.ScanRatePerMinute, time.Minute))
		r.Use(chiMiddleware(middleware.SecurityHeaders))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Post("/", rt.handler.Scan)
		r.Post("/batch", rt.handler.ScanBatch)
	})

	// Read endpoints for scanners and dashboards.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.ScanRatePerMinute, time.Minute))
		r.Use(chiMiddleware(middleware.SecurityHeaders))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Get("/api/tokens", rt.handler.Tokens)
		r.Get("/api/state", rt.handler.State)
		r.Get("/api/session", rt.handler.SessionCurrent)
	})

	// Admin auth exchange: tight IP rate limit plus the handler's own
	// login throttle.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.AuthRatePerMinute, time.Minute))
		r.Use(chiMiddleware(middleware.SecurityHeaders))
		r.Post("/api/admin/auth", rt.handler.AdminAuth)
	})

	// Admin operations behind JWT.
	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware(middleware.SecurityHeaders))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(rt.auth.Authenticate))
		r.Post("/api/session", rt.handler.SessionCreate)
		r.Put("/api/session/{id}", rt.handler.SessionUpdate)
		r.Post("/api/admin/backup", rt.handler.AdminBackup)
		r.Get("/api/admin/sessions", rt.handler.AdminSessions)
	})

	r.Get("/health", rt.handler.Health)

	if rt.handshake != nil {
		r.Get("/ws", rt.handshake.ServeHTTP)
	}

	if rt.cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r
}
