package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	srv   *httptest.Server
	repos *Repositories
	svcs  *Services
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{InstanceName: "test"},
		Auth: config.AuthConfig{
			BcryptCost:      4,
			ReservedName:    "system",
			AccountLifetime: 72 * time.Hour,
			DeletionGrace:   7 * 24 * time.Hour,
			CommandTimeout:  5 * time.Second,
		},
		Sweep: config.SweepConfig{
			LifecycleInterval: time.Hour,
			NudgeInterval:     time.Hour,
			PassTimeout:       5 * time.Second,
		},
		RateLimit: config.RateLimitConfig{
			LoginMaxAttempts:  5,
			LoginWindow:       time.Minute,
			MessagesPerSecond: 10,
			Burst:             20,
			PostsPerWindow:    5,
			PostWindow:        5 * time.Second,
			PostCooldown:      15 * time.Second,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := testConfig()

	db, err := database.New(filepath.Join(t.TempDir(), "api.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := initRepositories(db.Conn)
	hub := ws.NewHub()
	svcs, limiters, owned := initServices(db.Conn, repos, hub, cfg)
	t.Cleanup(owned.Close)
	t.Cleanup(limiters.Login.Stop)

	h := initHandlers(svcs, limiters, hub, cfg)
	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth)

	srv := httptest.NewServer(withCORS(mux, cfg.CORS))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, repos: repos, svcs: svcs}
}

func (a *testAPI) register(t *testing.T, name string, role models.Role) string {
	t.Helper()
	ctx := context.Background()
	code := "CODE-" + name
	require.NoError(t, a.repos.Invite.Create(ctx, &models.InviteCode{Value: code}))
	u, err := a.svcs.Auth.Register(ctx, name, "password", code, "")
	require.NoError(t, err)
	if role != models.RoleUser {
		require.NoError(t, a.repos.User.UpdateRole(ctx, u.ID, role))
	}
	return u.TokenValue()
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("token", token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAPIBannedUserKeepsReadAccess(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register(t, "alice", models.RoleUser)
	mod := api.register(t, "modbob", models.RoleMod)

	status, _ := api.do(t, http.MethodPost, "/api/feed", alice, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, status)

	status, body := api.do(t, http.MethodPost, "/api/feed", "", map[string]string{"content": "anon"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body["reason"])

	status, _ = api.do(t, http.MethodPost, "/api/ban", mod, map[string]any{"user": "alice", "days": 1, "reason": "spam"})
	require.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodPost, "/api/feed", alice, map[string]string{"content": "again"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "banned", body["reason"])

	status, body = api.do(t, http.MethodGet, "/api/feed", alice, nil)
	require.Equal(t, http.StatusOK, status)
	posts, ok := body["posts"].([]any)
	require.True(t, ok)
	assert.Len(t, posts, 1)

	status, body = api.do(t, http.MethodGet, "/api/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["name"])
}

func TestAPIModerationFlow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register(t, "alice", models.RoleUser)
	admin := api.register(t, "adminee", models.RoleAdmin)

	status, body := api.do(t, http.MethodPost, "/api/permissions", admin, map[string]string{"user": "alice", "role": "sysadmin"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "insufficientPermissions", body["reason"])

	status, _ = api.do(t, http.MethodPost, "/api/permissions", admin, map[string]string{"user": "alice", "role": "mod"})
	require.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodGet, "/api/actionlogs?action=set_role", alice, nil)
	require.Equal(t, http.StatusOK, status, "alice is a mod now")
	logs, ok := body["logs"].([]any)
	require.True(t, ok)
	require.Len(t, logs, 1)
	entry := logs[0].(map[string]any)
	assert.Equal(t, "adminee", entry["actor"])
	assert.Equal(t, "alice", entry["target"])

	status, body = api.do(t, http.MethodDelete, "/api/account", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["deletion_scheduled_at"])

	status, body = api.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAPICORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/feed", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://client.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "token")

	resp, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Less(t, resp.StatusCode, 300)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
