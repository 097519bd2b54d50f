// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package tokens loads and serves the token catalog.
//
// The catalog is a JSON file mapping token id to memory metadata. It loads
// once at startup and is immutable afterwards, so readers need no locking.
// A missing or unparseable catalog is fatal: the orchestrator has no
// default tokens.
package tokens

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// Catalog is the immutable token database.
type Catalog struct {
	tokens map[string]*models.Token
	ids    []string
	groups map[string][]string
}

// LoadFromFile reads the catalog from a JSON file on disk.
func LoadFromFile(filename string) (*Catalog, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: filename is trusted input from configuration
	if err != nil {
		return nil, fmt.Errorf("open token catalog: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Str("filename", filename).Msg("Error closing token catalog file")
		}
	}()

	catalog, err := LoadFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("load token catalog %s: %w", filename, err)
	}
	return catalog, nil
}

// LoadFromReader parses a catalog from JSON. The expected shape is a map of
// token id to token metadata; the map key is authoritative for the id.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog data: %w", err)
	}

	var raw map[string]*models.Token
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog JSON: %w", err)
	}

	return New(raw)
}

// New builds a catalog from an id-to-token map. Every id must satisfy the
// token id pattern; a single bad entry rejects the whole catalog.
func New(raw map[string]*models.Token) (*Catalog, error) {
	c := &Catalog{
		tokens: make(map[string]*models.Token, len(raw)),
		ids:    make([]string, 0, len(raw)),
		groups: make(map[string][]string),
	}

	for id, token := range raw {
		if token == nil {
			return nil, fmt.Errorf("token %q: null entry", id)
		}
		if !models.ValidTokenID(id) {
			return nil, fmt.Errorf("token %q: invalid id", id)
		}
		token.ID = id
		c.tokens[id] = token
		c.ids = append(c.ids, id)

		if info, ok := models.ParseGroup(token.Group); ok {
			c.groups[info.Name] = append(c.groups[info.Name], id)
		}
	}

	sort.Strings(c.ids)
	for name := range c.groups {
		sort.Strings(c.groups[name])
	}

	c.warnGroupSizes()
	return c, nil
}

// warnGroupSizes flags groups whose declared multiplier disagrees with the
// member count. The game still runs; completion just never triggers (or
// triggers early), which designers want surfaced at startup.
func (c *Catalog) warnGroupSizes() {
	for name, members := range c.groups {
		declared := 0
		for _, id := range members {
			if info, ok := models.ParseGroup(c.tokens[id].Group); ok {
				declared = info.Size
				break
			}
		}
		if declared != 0 && declared != len(members) {
			logging.Warn().
				Str("group", name).
				Int("declared", declared).
				Int("members", len(members)).
				Msg("Token group size does not match member count")
		}
	}
}

// Get returns the token for id, or false when the id is not in the catalog.
func (c *Catalog) Get(id string) (*models.Token, bool) {
	token, ok := c.tokens[id]
	return token, ok
}

// All returns every token ordered by id. The slice is fresh on each call;
// the tokens it points at are shared and must not be mutated.
func (c *Catalog) All() []*models.Token {
	out := make([]*models.Token, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.tokens[id])
	}
	return out
}

// IDs returns the sorted token ids.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len returns the number of tokens in the catalog.
func (c *Catalog) Len() int {
	return len(c.tokens)
}

// GroupMembers returns the sorted token ids belonging to the named group,
// where name is the parsed group name without the (xN) marker. Nil when no
// such group exists.
func (c *Catalog) GroupMembers(name string) []string {
	members, ok := c.groups[name]
	if !ok {
		return nil
	}
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// GroupNames returns the sorted names of every multi-token group.
func (c *Catalog) GroupNames() []string {
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
