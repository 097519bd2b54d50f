// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/auth"
	"github.com/tomtom215/aln-orchestrator/internal/batch"
	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/projector"
	"github.com/tomtom215/aln-orchestrator/internal/session"
	"github.com/tomtom215/aln-orchestrator/internal/store"
	"github.com/tomtom215/aln-orchestrator/internal/tokens"
)

// Handler carries the domain services the HTTP endpoints call into.
type Handler struct {
	engine    *engine.Engine
	batch     *batch.Handler
	manager   *session.Manager
	projector *projector.Projector
	catalog   *tokens.Catalog
	store     *store.Store

	jwt      *auth.JWTManager
	verifier *auth.PasswordVerifier
	limiter  *auth.LoginLimiter

	version   string
	startTime time.Time
}

// HandlerDeps bundles the constructor arguments.
type HandlerDeps struct {
	Engine    *engine.Engine
	Batch     *batch.Handler
	Manager   *session.Manager
	Projector *projector.Projector
	Catalog   *tokens.Catalog
	Store     *store.Store

	JWT      *auth.JWTManager
	Verifier *auth.PasswordVerifier
	Limiter  *auth.LoginLimiter

	Version string
}

// NewHandler creates the endpoint handler set.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		engine:    deps.Engine,
		batch:     deps.Batch,
		manager:   deps.Manager,
		projector: deps.Projector,
		catalog:   deps.Catalog,
		store:     deps.Store,
		jwt:       deps.JWT,
		verifier:  deps.Verifier,
		limiter:   deps.Limiter,
		version:   deps.Version,
		startTime: time.Now(),
	}
}
