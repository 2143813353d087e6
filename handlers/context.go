// Package handlers is the HTTP API. Handlers are thin: decode the request,
// call one service method, write the result with pkg.JSON or pkg.Error.
// Authorization lives in the services, not here.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/akinalp/maelink/models"
)

type contextKey string

// UserContextKey carries the authenticated *models.User placed in the
// request context by middleware.AuthMiddleware.
const UserContextKey contextKey = "user"

func userFrom(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// queryInt reads an optional non-negative integer parameter. ok is false
// when the value is present but malformed.
func queryInt(r *http.Request, key string) (v int, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// queryTime reads an optional timestamp given as unix milliseconds or
// RFC 3339.
func queryTime(r *http.Request, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, true
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}
