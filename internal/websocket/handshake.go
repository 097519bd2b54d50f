// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/aln-orchestrator/internal/auth"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/metrics"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// DeviceRegistrar is the registration slice of the session manager used
// at handshake time.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, conn *models.DeviceConnection) (*models.DeviceConnection, bool, error)
	ConnectedDeviceCount() int
}

// Handshake authenticates and upgrades WebSocket connections. All
// rejections happen at the HTTP level, before upgrade, so unauthenticated
// sockets never see an application event.
type Handshake struct {
	hub        *Hub
	jwt        *auth.JWTManager
	registrar  DeviceRegistrar
	maxDevices int
	upgrader   websocket.Upgrader
}

// NewHandshake builds the /ws handler. allowedOrigins follows the CORS
// configuration: empty allows only same-origin browsers, "*" allows all
// (native scanners send no Origin header and always pass).
func NewHandshake(hub *Hub, jwt *auth.JWTManager, registrar DeviceRegistrar, maxDevices int, allowedOrigins []string) *Handshake {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &Handshake{
		hub:        hub,
		jwt:        jwt,
		registrar:  registrar,
		maxDevices: maxDevices,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				return allowed[origin]
			},
		},
	}
}

// ServeHTTP handles GET /ws. The handshake presents
// {token, deviceId, deviceType, version} as query parameters, with the
// Authorization header honored as a token fallback.
func (h *Handshake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	token := q.Get("token")
	if token == "" {
		if t, err := auth.ExtractToken(r); err == nil {
			token = t
		}
	}
	if token == "" {
		metrics.WSHandshakeRejections.WithLabelValues("auth").Inc()
		rejectHandshake(w, http.StatusUnauthorized, models.CodeAuthRequired, "handshake requires a token")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		code := models.CodeInvalidToken
		if errors.Is(err, auth.ErrTokenExpired) {
			code = models.CodeTokenExpired
		}
		metrics.WSHandshakeRejections.WithLabelValues("auth").Inc()
		rejectHandshake(w, http.StatusUnauthorized, code, "handshake token rejected")
		return
	}

	deviceID := q.Get("deviceId")
	if deviceID == "" {
		deviceID = claims.DeviceID
	}
	if !models.ValidDeviceID(deviceID) {
		metrics.WSHandshakeRejections.WithLabelValues("validation").Inc()
		rejectHandshake(w, http.StatusBadRequest, models.CodeValidationError, "deviceId must be 1-100 characters")
		return
	}

	deviceType := models.DeviceType(q.Get("deviceType"))
	if deviceType != models.DeviceTypeGM && deviceType != models.DeviceTypeAdmin {
		metrics.WSHandshakeRejections.WithLabelValues("validation").Inc()
		rejectHandshake(w, http.StatusBadRequest, models.CodeValidationError, "deviceType must be gm or admin")
		return
	}

	if h.maxDevices > 0 && h.registrar.ConnectedDeviceCount() >= h.maxDevices {
		metrics.WSHandshakeRejections.WithLabelValues("capacity").Inc()
		rejectHandshake(w, http.StatusServiceUnavailable, models.CodeInternalError, "device limit reached")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	remote := r.RemoteAddr
	if host, _, splitErr := net.SplitHostPort(remote); splitErr == nil {
		remote = host
	}

	client := newClient(h.hub, conn, deviceID, deviceType, q.Get("version"), remote, false)

	_, isNew, err := h.registrar.RegisterDevice(r.Context(), &models.DeviceConnection{
		ID:        deviceID,
		Type:      deviceType,
		Name:      q.Get("name"),
		Version:   q.Get("version"),
		IPAddress: remote,
		SocketID:  client.SocketID(),
	})
	if err != nil {
		logging.Error().Err(err).Str("device_id", deviceID).Msg("device registration failed")
		_ = conn.Close()
		return
	}
	client.reconnection = !isNew

	client.Start()
	h.hub.Register <- client
}

func rejectHandshake(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.ErrorBody{Error: code, Message: message}); err != nil {
		logging.Debug().Err(err).Msg("failed to write handshake rejection")
	}
}
