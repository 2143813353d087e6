// Package middleware holds the HTTP pipeline stages that run before a
// handler. Each stage is a func(http.Handler) http.Handler; a stage that
// rejects the request writes the error and does not call next.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/akinalp/maelink/handlers"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/services"
)

// TokenHeader carries the bearer token issued by reg/login.
const TokenHeader = "token"

// AuthMiddleware resolves the token header to an account.
type AuthMiddleware struct {
	auth services.AuthService
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(auth services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Require rejects requests without a live token with 401 and otherwise puts
// the account into the context under handlers.UserContextKey.
//
// Banned accounts pass; write endpoints refuse them in the service layer so
// banned users keep read access.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(TokenHeader))
		if token == "" {
			pkg.Error(w, pkg.ErrNotAuthenticated)
			return
		}

		user, err := m.auth.ResolveToken(r.Context(), token)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		// Secrets stay out of the request context.
		user.Password = nil
		user.SystemKey = nil

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
