// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import (
	"encoding/json"
	"time"
)

// Error codes shared by HTTP bodies, WebSocket error events, and command
// acks. Clients switch on these, never on message text.
const (
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeTokenNotFound        = "TOKEN_NOT_FOUND"
	CodeDuplicateTransaction = "DUPLICATE_TRANSACTION"
	CodeVLCError             = "VLC_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeConcurrentSession    = "CONCURRENT_SESSION"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeUnknownAction        = "UNKNOWN_ACTION"
)

// ErrorBody is the HTTP error payload: {error, message, details?}.
type ErrorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ErrorEvent is the WebSocket error payload: {code, message, details?}.
type ErrorEvent struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ScanResponse is the advisory body returned by POST /api/scan and the
// transaction:result WebSocket event. Player scanners make UX decisions
// from their local catalog; this body only hints (fire-and-forget
// contract). VideoQueued tells the scanner whether a video screen makes
// sense.
type ScanResponse struct {
	Status        TransactionStatus `json:"status"`
	TransactionID string            `json:"transactionId,omitempty"`
	TokenID       string            `json:"tokenId"`
	TeamID        string            `json:"teamId,omitempty"`
	Points        int               `json:"points"`
	MemoryType    MemoryType        `json:"memoryType,omitempty"`
	MediaAssets   *MediaAssets      `json:"mediaAssets,omitempty"`
	VideoQueued   bool              `json:"videoQueued"`

	// OriginalTransactionID is set on duplicates.
	OriginalTransactionID string `json:"originalTransactionId,omitempty"`

	Message string `json:"message,omitempty"`
}

// ScanResponseFor builds the advisory response for a processed
// transaction.
func ScanResponseFor(tx *Transaction, token *Token, videoQueued bool) ScanResponse {
	resp := ScanResponse{
		Status:                tx.Status,
		TransactionID:         tx.ID,
		TokenID:               tx.TokenID,
		TeamID:                tx.TeamID,
		Points:                tx.Points,
		MemoryType:            tx.MemoryType,
		VideoQueued:           videoQueued,
		OriginalTransactionID: tx.OriginalTransactionID,
	}
	if token != nil {
		resp.MediaAssets = token.MediaAssets
	}
	return resp
}

// BatchItemResult is the per-item outcome inside a batch response.
type BatchItemResult struct {
	Index         int               `json:"index"`
	TransactionID string            `json:"transactionId,omitempty"`
	Status        TransactionStatus `json:"status"`
	Error         string            `json:"error,omitempty"`
}

// BatchResult is the response to POST /api/scan/batch. Replays of a known
// batchId return the cached result with AlreadyProcessed true.
type BatchResult struct {
	BatchID          string            `json:"batchId"`
	Results          []BatchItemResult `json:"results"`
	AlreadyProcessed bool              `json:"alreadyProcessed"`
}

// BatchAck is sent to device:<deviceId> after a batch is processed.
type BatchAck struct {
	BatchID   string    `json:"batchId"`
	DeviceID  string    `json:"deviceId"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Command is a GM admin command carried over the gm:command event.
type Command struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandAck answers a Command, sent only to the issuing socket.
type CommandAck struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Result  any    `json:"result,omitempty"`
}
