// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import (
	"regexp"
	"strconv"
	"strings"
)

// MemoryType classifies a token's narrative category and determines its
// score multiplier.
type MemoryType string

// Memory types. UNKNOWN is assigned to scans of token ids that are not in
// the catalog; it carries no multiplier.
const (
	MemoryTypePersonal  MemoryType = "Personal"
	MemoryTypeBusiness  MemoryType = "Business"
	MemoryTypeTechnical MemoryType = "Technical"
	MemoryTypeUnknown   MemoryType = "UNKNOWN"
)

// Token is an immutable catalog entry. Tokens are loaded once at startup
// and shared read-only; nothing mutates a Token after load.
//
// Key Fields:
//   - ID: primary key, pattern ^[A-Za-z_0-9]+$, 1-100 chars
//   - ValueRating: 1-5, or 0 when the catalog leaves the token unrated
//   - Group: "<group-name> (xN)" where N is the group size, or empty
//   - MediaAssets: optional filenames played or shown on scan
type Token struct {
	ID          string       `json:"id"`
	MemoryType  MemoryType   `json:"memoryType"`
	ValueRating int          `json:"valueRating"`
	Group       string       `json:"group,omitempty"`
	MediaAssets *MediaAssets `json:"mediaAssets,omitempty"`
}

// MediaAssets holds the optional media filenames attached to a token.
type MediaAssets struct {
	Image           string `json:"image,omitempty"`
	Audio           string `json:"audio,omitempty"`
	Video           string `json:"video,omitempty"`
	ProcessingImage string `json:"processingImage,omitempty"`
}

// basePoints maps a value rating to its base score.
var basePoints = map[int]int{
	1: 100,
	2: 500,
	3: 1000,
	4: 5000,
	5: 10000,
}

// typeMultiplier maps a memory type to its score multiplier.
var typeMultiplier = map[MemoryType]int{
	MemoryTypePersonal:  1,
	MemoryTypeBusiness:  3,
	MemoryTypeTechnical: 5,
}

// Value returns the token's score: basePoints[rating] x multiplier[type].
// Unrated tokens and unknown memory types score 0.
func (t Token) Value() int {
	return basePoints[t.ValueRating] * typeMultiplier[t.MemoryType]
}

// HasVideo reports whether scanning this token should queue a video.
func (t Token) HasVideo() bool {
	return t.MediaAssets != nil && t.MediaAssets.Video != ""
}

// VideoFilename returns the video asset filename, or empty.
func (t Token) VideoFilename() string {
	if t.MediaAssets == nil {
		return ""
	}
	return t.MediaAssets.Video
}

var (
	tokenIDPattern = regexp.MustCompile(`^[A-Za-z_0-9]{1,100}$`)
	teamIDPattern  = regexp.MustCompile(`^[0-9]{3}$`)
	groupPattern   = regexp.MustCompile(`^(.+?)\s*\(x(\d+)\)$`)
)

// ValidTokenID reports whether id matches ^[A-Za-z_0-9]+$ at 1-100 chars.
func ValidTokenID(id string) bool {
	return tokenIDPattern.MatchString(id)
}

// ValidTeamID reports whether id is exactly three digits.
func ValidTeamID(id string) bool {
	return teamIDPattern.MatchString(id)
}

// ValidDeviceID reports whether id is 1-100 characters.
func ValidDeviceID(id string) bool {
	return len(id) >= 1 && len(id) <= 100
}

// GroupInfo is a parsed token group annotation.
type GroupInfo struct {
	// Name is the group name with the size suffix stripped.
	Name string

	// Size is the N from "(xN)": the number of distinct member tokens a
	// team must collect, and the completion bonus multiplier.
	Size int
}

// ParseGroup extracts the name and size from a "<group-name> (xN)" group
// string. Returns ok=false for empty or malformed groups; such tokens
// never participate in completion bonuses.
func ParseGroup(group string) (GroupInfo, bool) {
	group = strings.TrimSpace(group)
	if group == "" {
		return GroupInfo{}, false
	}

	m := groupPattern.FindStringSubmatch(group)
	if m == nil {
		return GroupInfo{}, false
	}

	size, err := strconv.Atoi(m[2])
	if err != nil || size < 1 {
		return GroupInfo{}, false
	}

	return GroupInfo{Name: strings.TrimSpace(m[1]), Size: size}, true
}
