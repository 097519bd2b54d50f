// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password verification failures.
var (
	ErrPasswordMismatch = errors.New("auth: password mismatch")
	ErrNoPassword       = errors.New("auth: no admin password configured")
)

// PasswordVerifier holds the admin password as a bcrypt hash. A plain
// value from the environment is hashed at construction so the cleartext
// never outlives startup.
type PasswordVerifier struct {
	hash []byte
}

// NewPasswordVerifier accepts either a bcrypt hash ($2a$/$2b$/$2y$
// prefix) or a plain password. Empty configures a locked verifier: every
// Verify fails with ErrNoPassword.
func NewPasswordVerifier(configured string) (*PasswordVerifier, error) {
	if configured == "" {
		return &PasswordVerifier{}, nil
	}

	if isBcryptHash(configured) {
		// Round-trip sanity check so a truncated hash fails at boot, not
		// at first login.
		if _, err := bcrypt.Cost([]byte(configured)); err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash in admin password: %w", err)
		}
		return &PasswordVerifier{hash: []byte(configured)}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(configured), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &PasswordVerifier{hash: hash}, nil
}

// Configured reports whether a password is set at all.
func (v *PasswordVerifier) Configured() bool {
	return len(v.hash) > 0
}

// Verify compares password against the stored hash.
func (v *PasswordVerifier) Verify(password string) error {
	if !v.Configured() {
		return ErrNoPassword
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}
