// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

type contextKey string

// ClaimsContextKey is the context key carrying validated *Claims.
const ClaimsContextKey contextKey = "claims"

// Middleware enforces bearer authentication on admin HTTP routes.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates authentication middleware around a JWT manager.
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Authenticate rejects requests without a valid bearer token. The error
// body discriminates AUTH_REQUIRED (no token), TOKEN_EXPIRED, and
// INVALID_TOKEN so clients know whether to re-authenticate or re-login.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, models.CodeAuthRequired, "authentication required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			code := models.CodeInvalidToken
			message := "invalid token"
			if errors.Is(err, ErrTokenExpired) {
				code = models.CodeTokenExpired
				message = "token expired"
			}
			logging.Debug().Err(err).Msg("Token validation failed")
			writeAuthError(w, http.StatusUnauthorized, code, message)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole composes Authenticate with a role check. Admin passes every
// check.
func (m *Middleware) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusForbidden, models.CodeUnauthorized, "missing claims")
			return
		}
		if claims.Role != role && claims.Role != RoleAdmin {
			writeAuthError(w, http.StatusForbidden, models.CodeUnauthorized, "insufficient permissions")
			return
		}
		next(w, r)
	})
}

// ClaimsFromContext returns the validated claims placed by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}

// ExtractToken pulls the bearer token from the Authorization header,
// with a cookie fallback for browser GM stations.
func ExtractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		cookie, err := r.Cookie("token")
		if err != nil {
			return "", errors.New("missing token")
		}
		return cookie.Value, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := models.ErrorBody{Error: code, Message: message}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write auth error")
	}
}
