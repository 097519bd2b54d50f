// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType identifies the class of device behind a scan or socket.
type DeviceType string

// Device types. Scanner hardware submits as player; GM stations and the
// admin panel connect over WebSocket as gm or admin.
const (
	DeviceTypeGM     DeviceType = "gm"
	DeviceTypePlayer DeviceType = "player"
	DeviceTypeAdmin  DeviceType = "admin"
)

// ScanMode selects the scoring behavior of a scan.
type ScanMode string

// Scan modes. Detective mode claims the token for the narrative but
// yields 0 points and no group progress.
const (
	ModeBlackmarket ScanMode = "blackmarket"
	ModeDetective   ScanMode = "detective"
)

// TransactionStatus is the outcome of a processed scan.
type TransactionStatus string

// Transaction statuses.
const (
	TxAccepted  TransactionStatus = "accepted"
	TxDuplicate TransactionStatus = "duplicate"
	TxError     TransactionStatus = "error"
	TxUnknown   TransactionStatus = "unknown"
)

// Transaction is one scan event, appended to the session's transaction
// log. Token fields are denormalized at scan time so the log stays
// meaningful if the catalog changes between games.
//
// Duplicates are recorded too: a duplicate transaction carries 0 points
// and OriginalTransactionID pointing at the transaction that claimed the
// token first.
type Transaction struct {
	ID         string            `json:"id"`
	TokenID    string            `json:"tokenId"`
	TeamID     string            `json:"teamId,omitempty"`
	DeviceID   string            `json:"deviceId"`
	DeviceType DeviceType        `json:"deviceType"`
	Mode       ScanMode          `json:"mode"`
	Status     TransactionStatus `json:"status"`
	Points     int               `json:"points"`
	Timestamp  time.Time         `json:"timestamp"`

	// Denormalized from the token at scan time. Empty for unknown tokens.
	MemoryType  MemoryType `json:"memoryType,omitempty"`
	ValueRating int        `json:"valueRating,omitempty"`
	Group       string     `json:"group,omitempty"`

	IsUnknown bool `json:"isUnknown"`

	// OriginalTransactionID references the first accepted claim when
	// Status is duplicate.
	OriginalTransactionID string `json:"originalTransactionId,omitempty"`
}

// NewTransaction creates a transaction with a fresh id and a UTC
// timestamp. Offline batches override Timestamp with the submitted one.
func NewTransaction(tokenID, teamID, deviceID string, deviceType DeviceType, mode ScanMode) *Transaction {
	if mode == "" {
		mode = ModeBlackmarket
	}
	return &Transaction{
		ID:         uuid.NewString(),
		TokenID:    tokenID,
		TeamID:     teamID,
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Mode:       mode,
		Timestamp:  time.Now().UTC(),
	}
}

// Scoring reports whether this transaction contributes to team scores:
// accepted, not detective, and bound to a team.
func (t *Transaction) Scoring() bool {
	return t.Status == TxAccepted && t.Mode != ModeDetective && t.TeamID != ""
}
