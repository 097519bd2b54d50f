// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package video

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/aln-orchestrator/internal/config"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
)

const (
	defaultVLCTimeout = 5 * time.Second

	// breakerWindow resets the failure counts; breakerCooldown is how
	// long the breaker stays open before probing again.
	breakerWindow   = 60 * time.Second
	breakerCooldown = 30 * time.Second
)

// Status is VLC's playback state as seen by one request.
type Status struct {
	// State is VLC's own vocabulary: playing, paused, stopped.
	State    string
	Filename string

	// Position and Duration in seconds. Duration is 0 until VLC has
	// probed the media.
	Position int
	Duration int
}

// Client drives VLC over its HTTP interface. Every call is bounded by the
// configured timeout and routed through a circuit breaker, so a crashed
// or hung VLC degrades to fast failures instead of stalling scans.
type Client struct {
	statusURL string
	password  string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[*Status]
	logger    zerolog.Logger

	mu      sync.RWMutex
	healthy bool
}

// NewClient creates a VLC client from config. VLC must run with its HTTP
// interface enabled (--extraintf http --http-password <pw>).
func NewClient(cfg config.VLCConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVLCTimeout
	}

	c := &Client{
		statusURL: fmt.Sprintf("http://%s:%d/requests/status.json", cfg.Host, cfg.Port),
		password:  cfg.Password,
		http:      &http.Client{Timeout: timeout},
		logger:    logging.WithComponent("vlc"),
	}

	settings := gobreaker.Settings{
		Name:     "vlc",
		Interval: breakerWindow,
		Timeout:  breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("VLC circuit breaker state changed")
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker[*Status](settings)

	return c
}

// Play starts playback of filename, replacing whatever VLC is doing. The
// returned status may not yet carry a duration; the poll loop fills it in.
func (c *Client) Play(ctx context.Context, filename string) (*Status, error) {
	return c.command(ctx, url.Values{
		"command": {"in_play"},
		"input":   {filename},
	})
}

// Stop halts playback and clears VLC's input.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.command(ctx, url.Values{"command": {"pl_stop"}})
	return err
}

// Pause forces playback into pause; a no-op when already paused.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.command(ctx, url.Values{"command": {"pl_forcepause"}})
	return err
}

// Resume forces paused playback to continue.
func (c *Client) Resume(ctx context.Context) error {
	_, err := c.command(ctx, url.Values{"command": {"pl_forceresume"}})
	return err
}

// Status reads the current playback state without issuing a command.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	return c.command(ctx, nil)
}

// Health reports the cached reachability from the most recent request.
func (c *Client) Health() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// BreakerState exposes the circuit breaker state for metrics.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) command(ctx context.Context, params url.Values) (*Status, error) {
	return c.breaker.Execute(func() (*Status, error) {
		return c.request(ctx, params)
	})
}

// vlcStatus is the subset of VLC's status.json this client reads.
type vlcStatus struct {
	State       string `json:"state"`
	Time        int    `json:"time"`
	Length      int    `json:"length"`
	Information struct {
		Category struct {
			Meta struct {
				Filename string `json:"filename"`
			} `json:"meta"`
		} `json:"category"`
	} `json:"information"`
}

func (c *Client) request(ctx context.Context, params url.Values) (*Status, error) {
	target := c.statusURL
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create VLC request: %w", err)
	}
	// VLC's HTTP interface authenticates with an empty username.
	req.SetBasicAuth("", c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		c.setHealthy(false)
		return nil, fmt.Errorf("VLC request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.setHealthy(false)
		return nil, fmt.Errorf("VLC rejected the configured password")
	}
	if resp.StatusCode >= 400 {
		c.setHealthy(false)
		return nil, fmt.Errorf("VLC returned status %d", resp.StatusCode)
	}

	var raw vlcStatus
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.setHealthy(false)
		return nil, fmt.Errorf("failed to decode VLC status: %w", err)
	}

	c.setHealthy(true)
	return &Status{
		State:    raw.State,
		Filename: raw.Information.Category.Meta.Filename,
		Position: raw.Time,
		Duration: raw.Length,
	}, nil
}

func (c *Client) setHealthy(healthy bool) {
	c.mu.Lock()
	c.healthy = healthy
	c.mu.Unlock()
}
