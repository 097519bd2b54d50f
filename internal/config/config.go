// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package config loads and validates orchestrator configuration from
// struct defaults, an optional YAML file, and ALN_* environment variables,
// in that order of precedence (env highest).
package config

import "time"

// Config is the root configuration for the orchestrator.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	VLC          VLCConfig          `koanf:"vlc"`
	Admin        AdminConfig        `koanf:"admin"`
	Session      SessionConfig      `koanf:"session"`
	OfflineQueue OfflineQueueConfig `koanf:"offlineQueue"`
	Persistence  PersistenceConfig  `koanf:"persistence"`
	Tokens       TokensConfig       `koanf:"tokens"`
	CORS         CORSConfig         `koanf:"cors"`
	RateLimit    RateLimitConfig    `koanf:"ratelimit"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port. Scanners discover the orchestrator on
	// this port; the default matches the published scanner firmware.
	Port int `koanf:"port"`

	// Host is the listen address. Empty binds all interfaces.
	Host string `koanf:"host"`

	// ReadTimeout/WriteTimeout bound slow clients. WriteTimeout must leave
	// room for WebSocket upgrades, which bypass it after hijack.
	ReadTimeout  time.Duration `koanf:"readTimeout"`
	WriteTimeout time.Duration `koanf:"writeTimeout"`

	// ShutdownTimeout is the grace period for in-flight requests on shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdownTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json (production) or console (development).
	Format string `koanf:"format"`

	// Caller includes file:line in log output.
	Caller bool `koanf:"caller"`
}

// VLCConfig holds the VLC HTTP interface settings.
//
// VLC must be started with its HTTP interface enabled
// (--extraintf http --http-password <password>).
type VLCConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`

	// Timeout bounds every VLC command. Commands that exceed it mark the
	// current video item as errored and advance the queue.
	Timeout time.Duration `koanf:"timeout"`

	// PollInterval is how often playback status is reconciled while a
	// video is active.
	PollInterval time.Duration `koanf:"pollInterval"`
}

// AdminConfig holds admin authentication settings.
type AdminConfig struct {
	// Password is the shared GM/admin password. A bcrypt hash ($2a$...) is
	// used as-is; a plain value is hashed at load time so it never sits in
	// memory unhashed. Empty locks all admin operations until configured.
	Password string `koanf:"password"`

	// JWTSecret signs bearer tokens (HMAC-SHA256). When empty a random
	// secret is generated at boot, which invalidates tokens across restarts.
	JWTSecret string `koanf:"jwtSecret"`

	// TokenTTL is the bearer token lifetime.
	TokenTTL time.Duration `koanf:"tokenTTL"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	// TimeoutMs auto-ends sessions still active this long after start.
	// Milliseconds to match the published configuration surface.
	TimeoutMs int64 `koanf:"timeoutMs"`

	// MaxDevices caps concurrently connected WebSocket devices.
	MaxDevices int `koanf:"maxDevices"`
}

// OfflineQueueConfig holds offline batch intake settings.
type OfflineQueueConfig struct {
	// MaxBatchAge is the idempotency cache TTL in milliseconds. Replays of
	// a batchId inside this window return the cached result.
	MaxBatchAge int64 `koanf:"maxBatchAge"`

	// CacheSize is the number of most recent batch results retained.
	CacheSize int `koanf:"cacheSize"`
}

// PersistenceConfig holds on-disk state settings.
type PersistenceConfig struct {
	// DataDir is the root of the persisted state tree
	// (sessions/, gameState/, backups/).
	DataDir string `koanf:"dataDir"`
}

// TokensConfig holds token catalog settings.
type TokensConfig struct {
	// File is the path to the token catalog JSON. Loading it is required;
	// the orchestrator has no built-in tokens.
	File string `koanf:"file"`
}

// CORSConfig holds cross-origin settings for scanner PWAs.
type CORSConfig struct {
	// Origins lists allowed scanner origins. Empty allows none beyond
	// same-origin; "*" allows all (development only).
	Origins []string `koanf:"origins"`
}

// RateLimitConfig holds HTTP rate limiting settings.
type RateLimitConfig struct {
	// RequestsPerMinute limits scan intake per client IP.
	RequestsPerMinute int `koanf:"requestsPerMinute"`

	// AuthPerMinute limits admin login attempts per client IP.
	AuthPerMinute int `koanf:"authPerMinute"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes GET /metrics.
	Enabled bool `koanf:"enabled"`
}

// SessionTimeout returns the session auto-end timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMs) * time.Millisecond
}

// BatchCacheTTL returns the offline batch idempotency window as a duration.
func (c *Config) BatchCacheTTL() time.Duration {
	return time.Duration(c.OfflineQueue.MaxBatchAge) * time.Millisecond
}
