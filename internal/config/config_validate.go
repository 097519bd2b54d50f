// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateVLC(); err != nil {
		return err
	}

	if err := c.validateAdmin(); err != nil {
		return err
	}

	if err := c.validateSession(); err != nil {
		return err
	}

	if err := c.validateOfflineQueue(); err != nil {
		return err
	}

	if err := c.validatePersistence(); err != nil {
		return err
	}

	if err := c.validateRateLimit(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("ALN_PORT must be between 1 and 65535")
	}
	return nil
}

// VLC bound constants
const (
	minVLCTimeout   = time.Second
	maxVLCTimeout   = time.Minute
	minPollInterval = 100 * time.Millisecond
	maxPollInterval = 30 * time.Second
)

// validateVLC validates the VLC HTTP interface configuration
func (c *Config) validateVLC() error {
	if err := c.validateVLCPort(); err != nil {
		return err
	}
	if err := c.validateVLCTimeout(); err != nil {
		return err
	}
	return c.validateVLCPollInterval()
}

// validateVLCPort validates the VLC HTTP interface port
func (c *Config) validateVLCPort() error {
	if c.VLC.Port < 1 || c.VLC.Port > 65535 {
		return fmt.Errorf("ALN_VLC_PORT must be between 1 and 65535")
	}
	return nil
}

// validateVLCTimeout validates the VLC request timeout
func (c *Config) validateVLCTimeout() error {
	if c.VLC.Timeout < minVLCTimeout || c.VLC.Timeout > maxVLCTimeout {
		return fmt.Errorf("ALN_VLC_TIMEOUT must be between %v and %v", minVLCTimeout, maxVLCTimeout)
	}
	return nil
}

// validateVLCPollInterval validates the playback polling interval
func (c *Config) validateVLCPollInterval() error {
	if c.VLC.PollInterval < minPollInterval || c.VLC.PollInterval > maxPollInterval {
		return fmt.Errorf("ALN_VLC_POLL_INTERVAL must be between %v and %v", minPollInterval, maxPollInterval)
	}
	return nil
}

// Admin token bound constants
const (
	minTokenTTL  = time.Minute
	maxTokenTTL  = 7 * 24 * time.Hour
	minJWTSecret = 32
)

// validateAdmin validates admin authentication configuration.
// An empty password is allowed and locks the admin surface; an empty
// JWT secret is allowed and replaced with a random one at startup.
func (c *Config) validateAdmin() error {
	if err := c.validateAdminPassword(); err != nil {
		return err
	}
	if err := c.validateAdminJWTSecret(); err != nil {
		return err
	}
	return c.validateAdminTokenTTL()
}

// validateAdminPassword rejects placeholder passwords
func (c *Config) validateAdminPassword() error {
	if c.Admin.Password == "" {
		return nil
	}
	if containsPlaceholder(c.Admin.Password) {
		return fmt.Errorf("ALN_ADMIN_PASSWORD contains a placeholder value - set a real password")
	}
	return nil
}

// validateAdminJWTSecret validates the JWT signing secret when set
func (c *Config) validateAdminJWTSecret() error {
	if c.Admin.JWTSecret == "" {
		return nil
	}
	if len(c.Admin.JWTSecret) < minJWTSecret {
		return fmt.Errorf("ALN_ADMIN_JWT_SECRET must be at least %d characters", minJWTSecret)
	}
	if containsPlaceholder(c.Admin.JWTSecret) {
		return fmt.Errorf("ALN_ADMIN_JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateAdminTokenTTL validates the admin token lifetime
func (c *Config) validateAdminTokenTTL() error {
	if c.Admin.TokenTTL < minTokenTTL || c.Admin.TokenTTL > maxTokenTTL {
		return fmt.Errorf("ALN_ADMIN_TOKEN_TTL must be between %v and %v", minTokenTTL, maxTokenTTL)
	}
	return nil
}

// ShouldWarnAboutAdminAuth returns true if the admin surface is locked
// because no password is configured. Logged at startup rather than
// failing validation so scan-only deployments still boot.
func (c *Config) ShouldWarnAboutAdminAuth() bool {
	return c.Admin.Password == ""
}

// Session bound constants
const (
	minSessionTimeoutMs = 60_000 // 1 minute
	maxSessionDevices   = 1000
)

// validateSession validates session lifecycle configuration
func (c *Config) validateSession() error {
	if err := c.validateSessionTimeout(); err != nil {
		return err
	}
	return c.validateSessionMaxDevices()
}

// validateSessionTimeout validates the idle session timeout
func (c *Config) validateSessionTimeout() error {
	if c.Session.TimeoutMs < minSessionTimeoutMs {
		return fmt.Errorf("ALN_SESSION_TIMEOUT_MS must be at least 60000 (1 minute)")
	}
	return nil
}

// validateSessionMaxDevices validates the device ceiling per session
func (c *Config) validateSessionMaxDevices() error {
	if c.Session.MaxDevices < 1 || c.Session.MaxDevices > maxSessionDevices {
		return fmt.Errorf("ALN_SESSION_MAX_DEVICES must be between 1 and %d", maxSessionDevices)
	}
	return nil
}

// Offline queue bound constants. The batch dedup cache must outlive the
// longest plausible connectivity gap, so both floors are hard.
const (
	minBatchAgeMs     = 3_600_000 // 1 hour
	minBatchCacheSize = 100
)

// validateOfflineQueue validates offline batch handling configuration
func (c *Config) validateOfflineQueue() error {
	if err := c.validateBatchAge(); err != nil {
		return err
	}
	return c.validateBatchCacheSize()
}

// validateBatchAge validates the processed-batch retention window
func (c *Config) validateBatchAge() error {
	if c.OfflineQueue.MaxBatchAge < minBatchAgeMs {
		return fmt.Errorf("ALN_OFFLINE_MAX_BATCH_AGE must be at least 3600000 (1 hour)")
	}
	return nil
}

// validateBatchCacheSize validates the processed-batch cache capacity
func (c *Config) validateBatchCacheSize() error {
	if c.OfflineQueue.CacheSize < minBatchCacheSize {
		return fmt.Errorf("ALN_OFFLINE_CACHE_SIZE must be at least %d", minBatchCacheSize)
	}
	return nil
}

// validatePersistence validates persistence configuration
func (c *Config) validatePersistence() error {
	if c.Persistence.DataDir == "" {
		return fmt.Errorf("ALN_DATA_DIR must not be empty")
	}
	if c.Tokens.File == "" {
		return fmt.Errorf("ALN_TOKENS_FILE must not be empty")
	}
	return nil
}

// Rate limit bound constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	maxAuthRateLimit     = 1000
)

// validateRateLimit validates rate limiting configuration bounds
func (c *Config) validateRateLimit() error {
	if err := c.validateRateLimitRequests(); err != nil {
		return err
	}
	return c.validateAuthRateLimit()
}

// validateRateLimitRequests validates the general rate limit
func (c *Config) validateRateLimitRequests() error {
	if c.RateLimit.RequestsPerMinute < minRateLimitRequests || c.RateLimit.RequestsPerMinute > maxRateLimitRequests {
		return fmt.Errorf("ALN_RATE_LIMIT_RPM must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	return nil
}

// validateAuthRateLimit validates the auth endpoint rate limit
func (c *Config) validateAuthRateLimit() error {
	if c.RateLimit.AuthPerMinute < minRateLimitRequests || c.RateLimit.AuthPerMinute > maxAuthRateLimit {
		return fmt.Errorf("ALN_RATE_LIMIT_AUTH_RPM must be between %d and %d", minRateLimitRequests, maxAuthRateLimit)
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if err := c.validateLogLevel(); err != nil {
		return err
	}
	return c.validateLogFormat()
}

// validateLogLevel validates the log level configuration
func (c *Config) validateLogLevel() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("ALN_LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	return nil
}

// validateLogFormat validates the log format configuration
func (c *Config) validateLogFormat() error {
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("ALN_LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the operator forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
