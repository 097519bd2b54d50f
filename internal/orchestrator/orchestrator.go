// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package orchestrator wires the domain services, event handlers, and
// supervision tree together behind an explicit startup state machine:
//
//	UNINITIALIZED → SERVICES_READY → HANDLERS_READY → LISTENING
//
// Out-of-order calls are programming errors and come back as errors, not
// panics. Shutdown unwinds everything — supervisor tree, broadcast
// registrations, event bus — and returns to UNINITIALIZED, so a full
// init/start/shutdown cycle leaves no listeners behind.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/admin"
	"github.com/tomtom215/aln-orchestrator/internal/api"
	"github.com/tomtom215/aln-orchestrator/internal/auth"
	"github.com/tomtom215/aln-orchestrator/internal/batch"
	"github.com/tomtom215/aln-orchestrator/internal/broadcast"
	"github.com/tomtom215/aln-orchestrator/internal/config"
	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/projector"
	"github.com/tomtom215/aln-orchestrator/internal/session"
	"github.com/tomtom215/aln-orchestrator/internal/store"
	"github.com/tomtom215/aln-orchestrator/internal/supervisor"
	"github.com/tomtom215/aln-orchestrator/internal/supervisor/services"
	"github.com/tomtom215/aln-orchestrator/internal/tokens"
	"github.com/tomtom215/aln-orchestrator/internal/video"
	"github.com/tomtom215/aln-orchestrator/internal/websocket"
)

// State is the startup state machine position.
type State int

const (
	StateUninitialized State = iota
	StateServicesReady
	StateHandlersReady
	StateListening
)

// String returns the state name for logs and errors.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateServicesReady:
		return "SERVICES_READY"
	case StateHandlersReady:
		return "HANDLERS_READY"
	case StateListening:
		return "LISTENING"
	default:
		return "UNKNOWN"
	}
}

// ErrWrongState is wrapped by every out-of-order lifecycle call.
var ErrWrongState = errors.New("orchestrator: wrong lifecycle state")

// Orchestrator owns the full application lifecycle.
type Orchestrator struct {
	cfg     *config.Config
	version string
	logger  zerolog.Logger

	state State

	// Domain services, built by InitServices.
	store     *store.Store
	catalog   *tokens.Catalog
	bus       *events.Bus
	manager   *session.Manager
	player    *video.Client
	queue     *video.Queue
	engine    *engine.Engine
	batch     *batch.Handler
	projector *projector.Projector

	// Event handlers and transports, built by InitHandlers.
	hub         *websocket.Hub
	handshake   *websocket.Handshake
	coordinator *broadcast.Coordinator
	httpServer  *http.Server

	// Runtime, set by Start.
	cancel context.CancelFunc
	treeCh <-chan error
}

// New creates an orchestrator in UNINITIALIZED.
func New(cfg *config.Config, version string) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		version: version,
		logger:  logging.WithComponent("orchestrator"),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// ListenerCount reports the number of registered broadcast handlers.
// Zero before InitHandlers and after Shutdown.
func (o *Orchestrator) ListenerCount() int {
	if o.coordinator == nil {
		return 0
	}
	return o.coordinator.HandlerCount()
}

// InitServices builds the domain layer: persistence, token catalog,
// event bus, session manager (with crash recovery from disk), VLC
// client, video queue, scan engine, batch intake, and state projector.
func (o *Orchestrator) InitServices(ctx context.Context) error {
	if o.state != StateUninitialized {
		return fmt.Errorf("%w: InitServices in %s", ErrWrongState, o.state)
	}

	st, err := store.New(o.cfg.Persistence.DataDir)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	catalog, err := tokens.LoadFromFile(o.cfg.Tokens.File)
	if err != nil {
		return fmt.Errorf("load token catalog: %w", err)
	}

	bus := events.NewBus(events.Config{Logger: events.NewDefaultWatermillLogger()})
	manager := session.NewManager(st, bus)

	// Crash recovery: a live session left on disk by an unclean exit
	// resumes with its claims and group progress rebuilt from the log.
	if err := manager.LoadCurrent(ctx); err != nil {
		bus.Close()
		return fmt.Errorf("restore session: %w", err)
	}

	player := video.NewClient(o.cfg.VLC)
	queue := video.NewQueue(player, bus, manager)
	eng := engine.New(catalog, manager, queue)
	batcher := batch.NewHandler(eng, bus, o.cfg.OfflineQueue.CacheSize, o.cfg.BatchCacheTTL())
	proj := projector.New(manager, queue)

	o.store = st
	o.catalog = catalog
	o.bus = bus
	o.manager = manager
	o.player = player
	o.queue = queue
	o.engine = eng
	o.batch = batcher
	o.projector = proj
	o.state = StateServicesReady

	o.logger.Info().
		Int("tokens", catalog.Len()).
		Str("data_dir", o.cfg.Persistence.DataDir).
		Msg("Services initialized")
	return nil
}

// InitHandlers builds the delivery layer: WebSocket hub and dispatch,
// admin command handler, broadcast coordinator registrations, auth, and
// the HTTP server. Errors unless InitServices has run.
func (o *Orchestrator) InitHandlers(ctx context.Context) error {
	if o.state != StateServicesReady {
		return fmt.Errorf("%w: InitHandlers in %s", ErrWrongState, o.state)
	}

	jwtManager, err := auth.NewJWTManager(o.cfg.Admin.JWTSecret, o.cfg.Admin.TokenTTL)
	if err != nil {
		return fmt.Errorf("init jwt: %w", err)
	}
	verifier, err := auth.NewPasswordVerifier(o.cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("init admin password: %w", err)
	}

	hub := websocket.NewHub(o.manager, o.projector)
	commands := admin.NewHandler(o.manager, o.engine, o.queue, o.catalog, o.batch)
	websocket.NewRouter(hub, o.engine, commands, o.manager)
	handshake := websocket.NewHandshake(hub, jwtManager, o.manager, o.cfg.Session.MaxDevices, o.cfg.CORS.Origins)

	coordinator := broadcast.NewCoordinator(o.bus, hub)
	if err := coordinator.RegisterDefaults(); err != nil {
		return fmt.Errorf("register broadcast handlers: %w", err)
	}

	apiHandler := api.NewHandler(api.HandlerDeps{
		Engine:    o.engine,
		Batch:     o.batch,
		Manager:   o.manager,
		Projector: o.projector,
		Catalog:   o.catalog,
		Store:     o.store,
		JWT:       jwtManager,
		Verifier:  verifier,
		Limiter:   auth.NewLoginLimiter(o.cfg.RateLimit.AuthPerMinute),
		Version:   o.version,
	})
	router := api.NewRouter(apiHandler, auth.NewMiddleware(jwtManager), handshake, api.RouterConfig{
		CORSOrigins:       o.cfg.CORS.Origins,
		ScanRatePerMinute: o.cfg.RateLimit.RequestsPerMinute,
		AuthRatePerMinute: o.cfg.RateLimit.AuthPerMinute,
		MetricsEnabled:    o.cfg.Metrics.Enabled,
	})

	o.hub = hub
	o.handshake = handshake
	o.coordinator = coordinator
	o.httpServer = &http.Server{
		Addr:         net.JoinHostPort(o.cfg.Server.Host, strconv.Itoa(o.cfg.Server.Port)),
		Handler:      router.Setup(),
		ReadTimeout:  o.cfg.Server.ReadTimeout,
		WriteTimeout: o.cfg.Server.WriteTimeout,
	}
	o.state = StateHandlersReady

	o.logger.Info().
		Int("listeners", coordinator.HandlerCount()).
		Msg("Handlers initialized")
	return nil
}

// Start runs the supervision tree and begins listening. Errors unless
// InitHandlers has run.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.state != StateHandlersReady {
		return fmt.Errorf("%w: Start in %s", ErrWrongState, o.state)
	}

	runCtx, cancel := context.WithCancel(ctx)

	if err := o.coordinator.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start broadcast coordinator: %w", err)
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{
		ShutdownTimeout: o.cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewWebSocketHubService(o.hub))
	tree.AddMessagingService(websocket.NewMonitor(o.manager))
	tree.AddDomainService(video.NewService(o.queue, o.cfg.VLC.PollInterval))
	tree.AddDomainService(session.NewWatchdog(o.manager, o.cfg.SessionTimeout()))
	tree.AddAPIService(services.NewHTTPServerService(o.httpServer, o.cfg.Server.ShutdownTimeout))

	o.cancel = cancel
	o.treeCh = tree.ServeBackground(runCtx)
	o.state = StateListening

	o.logger.Info().
		Str("addr", o.httpServer.Addr).
		Str("version", o.version).
		Msg("Orchestrator listening")
	return nil
}

// Wait blocks until the supervision tree stops and returns its terminal
// error. Only meaningful while LISTENING.
func (o *Orchestrator) Wait() error {
	if o.treeCh == nil {
		return fmt.Errorf("%w: Wait in %s", ErrWrongState, o.state)
	}
	return <-o.treeCh
}

// Shutdown stops the tree, unregisters broadcast handlers, persists the
// live session, closes the bus, and resets to UNINITIALIZED. ctx bounds
// how long to wait for the tree to drain.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.state != StateListening {
		return fmt.Errorf("%w: Shutdown in %s", ErrWrongState, o.state)
	}

	o.cancel()
	select {
	case err := <-o.treeCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Warn().Err(err).Msg("Supervision tree exited with error")
		}
	case <-ctx.Done():
		o.logger.Warn().Msg("Supervision tree did not drain before deadline")
	}

	o.coordinator.Cleanup()

	if err := o.manager.Persist(); err != nil {
		o.logger.Error().Err(err).Msg("Failed to persist session on shutdown")
	}
	o.bus.Close()

	o.store = nil
	o.catalog = nil
	o.bus = nil
	o.manager = nil
	o.player = nil
	o.queue = nil
	o.engine = nil
	o.batch = nil
	o.projector = nil
	o.hub = nil
	o.handshake = nil
	o.coordinator = nil
	o.httpServer = nil
	o.cancel = nil
	o.treeCh = nil
	o.state = StateUninitialized

	o.logger.Info().Msg("Orchestrator stopped")
	return nil
}

// Run is the composed lifecycle used by the binary: init both layers,
// start, then block until ctx is canceled (signal) or the tree fails,
// and shut down either way.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.InitServices(ctx); err != nil {
		return err
	}
	if err := o.InitHandlers(ctx); err != nil {
		return err
	}
	if err := o.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-o.treeCh:
		// Tree died on its own; capture and skip the drain wait.
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
		ch := make(chan error, 1)
		ch <- err
		o.treeCh = ch
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace(o.cfg))
	defer cancel()
	if err := o.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func shutdownGrace(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout + 5*time.Second
	}
	return 15 * time.Second
}
