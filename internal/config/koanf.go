// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/aln-orchestrator/config.yaml",
	"/etc/aln-orchestrator/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "ALN_CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied.
// These are layered first, then overridden by file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
		VLC: VLCConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			Password:     "",
			Timeout:      5 * time.Second,
			PollInterval: 1 * time.Second,
		},
		Admin: AdminConfig{
			Password:  "",
			JWTSecret: "",
			TokenTTL:  24 * time.Hour,
		},
		Session: SessionConfig{
			TimeoutMs:  14_400_000, // 4 hours
			MaxDevices: 15,
		},
		OfflineQueue: OfflineQueueConfig{
			MaxBatchAge: 3_600_000, // 1 hour
			CacheSize:   100,
		},
		Persistence: PersistenceConfig{
			DataDir: "./data",
		},
		Tokens: TokensConfig{
			File: "./data/tokens.json",
		},
		CORS: CORSConfig{
			Origins: []string{},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 300,
			AuthPerMinute:     10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Struct defaults
//  2. Optional YAML config file
//  3. ALN_* environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// A bare top-level "port" in the file is accepted as server.port;
	// deployed scanner kits ship configs in that shorthand.
	if port := k.Get("port"); port != nil {
		if err := k.Set("server.port", port); err != nil {
			return nil, fmt.Errorf("failed to map port shorthand: %w", err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"cors.origins",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars arrive as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps ALN_* environment variable names to config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// noise never pollutes the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"aln_port":             "server.port",
		"aln_host":             "server.host",
		"aln_shutdown_timeout": "server.shutdownTimeout",

		"aln_log_level":  "logging.level",
		"aln_log_format": "logging.format",
		"aln_log_caller": "logging.caller",

		"aln_vlc_host":          "vlc.host",
		"aln_vlc_port":          "vlc.port",
		"aln_vlc_password":      "vlc.password",
		"aln_vlc_timeout":       "vlc.timeout",
		"aln_vlc_poll_interval": "vlc.pollInterval",

		"aln_admin_password":   "admin.password",
		"aln_admin_jwt_secret": "admin.jwtSecret",
		"aln_admin_token_ttl":  "admin.tokenTTL",

		"aln_session_timeout_ms":  "session.timeoutMs",
		"aln_session_max_devices": "session.maxDevices",

		"aln_offline_max_batch_age": "offlineQueue.maxBatchAge",
		"aln_offline_cache_size":    "offlineQueue.cacheSize",

		"aln_data_dir":    "persistence.dataDir",
		"aln_tokens_file": "tokens.file",

		"aln_cors_origins": "cors.origins",

		"aln_rate_limit_rpm":      "ratelimit.requestsPerMinute",
		"aln_rate_limit_auth_rpm": "ratelimit.authPerMinute",

		"aln_metrics_enabled": "metrics.enabled",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
