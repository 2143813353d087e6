// Package main is the maelink server: the HTTP feed/moderation API and the
// realtime WebSocket endpoint, run as two listeners over one SQLite store.
//
// Wire-up order:
//  1. Config
//  2. Database (embedded migrations)
//  3. Repositories
//  4. Session registry (ws.Hub)
//  5. Services, rate limiters, system account, invite pool
//  6. Handlers and routes
//  7. Lifecycle sweeper
//  8. Both servers, then graceful shutdown
//
// There are no globals: everything is built here and passed down.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] maelink server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (instance=%s, http=%d, ws=%d)",
		cfg.Server.InstanceName, cfg.Server.HTTPPort, cfg.Server.WSPort)

	// ─── 2. Database ───
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("[main] failed to create database directory: %v", err)
		}
	}
	db, err := database.New(cfg.Database.Path, database.Migrations())
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repositories ───
	repos := initRepositories(db.Conn)

	// ─── 4. Session registry ───
	hub := ws.NewHub()

	// ─── 5. Services ───
	svcs, limiters, owned := initServices(db.Conn, repos, hub, cfg)
	defer owned.Close()
	defer limiters.Login.Stop()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if cfg.Auth.SystemAccountName != "" {
		if err := svcs.Auth.EnsureSystemAccount(startupCtx, cfg.Auth.SystemAccountName, cfg.Auth.SystemAccountKey); err != nil {
			log.Fatalf("[main] %v", err)
		}
	}
	if err := svcs.Invite.Replenish(startupCtx); err != nil {
		log.Printf("[main] initial invite replenish failed: %v", err)
	}
	cancelStartup()

	// ─── 6. Handlers & routes ───
	h := initHandlers(svcs, limiters, hub, cfg)

	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth)

	apiServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr(),
		Handler:      withCORS(mux, cfg.CORS),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Hijacked connections manage their own deadlines in the pumps.
	wsServer := &http.Server{
		Addr:              cfg.Server.WSAddr(),
		Handler:           h.WS,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── 7. Lifecycle sweeper ───
	svcs.Sweeper.Start()

	// ─── 8. Serve & graceful shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serve := func(name string, srv *http.Server) {
		log.Printf("[main] %s listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] %s server error: %v", name, err)
		}
	}
	go serve("api", apiServer)
	go serve("realtime", wsServer)

	<-done
	log.Println("[main] shutting down...")

	// Sweeper first so no pass runs against a closing store, then sessions,
	// then the listeners.
	svcs.Sweeper.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsServer.Shutdown(ctx); err != nil {
		log.Printf("[main] realtime forced shutdown: %v", err)
	}
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("[main] api forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
