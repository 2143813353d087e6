package main

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/middleware"
	"github.com/akinalp/maelink/services"
)

// initRoutes binds the HTTP API. Role checks happen in the services, so the
// only middleware is token resolution.
func initRoutes(mux *http.ServeMux, h *Handlers, authService services.AuthService) {
	authMiddleware := middleware.NewAuthMiddleware(authService)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMiddleware.Require(handler)
	}

	mux.HandleFunc("GET /api/health", h.Health.Check)

	// Feed: reading is public, writing needs a token.
	mux.HandleFunc("GET /api/feed", h.Feed.List)
	mux.Handle("POST /api/feed", auth(h.Feed.Create))
	mux.Handle("DELETE /api/post", auth(h.Feed.DeletePost))

	// Moderation
	mux.Handle("POST /api/ban", auth(h.Moderation.Ban))
	mux.Handle("POST /api/unban", auth(h.Moderation.Unban))
	mux.Handle("POST /api/permissions", auth(h.Moderation.SetPermissions))
	mux.Handle("GET /api/actionlogs", auth(h.ActionLog.List))

	// Account
	mux.Handle("GET /api/me", auth(h.Account.Me))
	mux.Handle("DELETE /api/account", auth(h.Account.Delete))
}

// withCORS applies the API's cross-origin contract: any configured origin,
// the four methods the API uses and the token header.
func withCORS(next http.Handler, cfg config.CORSConfig) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", middleware.TokenHeader},
	}).Handler(next)
}
