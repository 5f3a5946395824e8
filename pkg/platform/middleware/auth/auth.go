// Package auth guards routes with bearer-token authentication. Voter routes
// carry the voter ID in the token subject; admin routes additionally require
// the admin role claim.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"agora/pkg/requestcontext"
)

// Claims are the claims the voting engine expects from its token issuer.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator parses and verifies HMAC-signed tokens.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireVoter authenticates the request and places the voter ID into the
// context for the handlers and the eligibility gate.
func RequireVoter(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireRole(validator, logger, "")
}

// RequireAdmin authenticates the request and rejects tokens without the admin
// role claim.
func RequireAdmin(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireRole(validator, logger, "admin")
}

func requireRole(validator *Validator, logger *slog.Logger, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if role != "" && claims.Role != role {
				writeJSONError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			ctx := requestcontext.WithVoterID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}
