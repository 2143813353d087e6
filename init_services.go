package main

import (
	"database/sql"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/pkg/cache"
	"github.com/akinalp/maelink/pkg/credential"
	"github.com/akinalp/maelink/pkg/ratelimit"
	"github.com/akinalp/maelink/services"
	"github.com/akinalp/maelink/ws"
)

// Services groups the service layer.
type Services struct {
	Audit      services.AuditRecorder
	Invite     services.InviteService
	Auth       services.AuthService
	Feed       services.FeedService
	Moderation services.ModerationService
	ActionLog  services.ActionLogService
	Sweeper    services.LifecycleSweeper
}

// RateLimiters groups the limiters that own cleanup goroutines or state
// shared across layers.
type RateLimiters struct {
	Login *ratelimit.LoginRateLimiter
	Post  *ratelimit.PostRateLimiter
	IPs   *ratelimit.IPResolver
}

// closers owns background resources main releases on shutdown.
type closers struct {
	names *cache.TTLCache[int64, string]
}

func (c *closers) Close() {
	c.names.Close()
}

// initServices builds the services. Order matters only where one service
// takes another: invites before auth, audit before everything that records.
func initServices(db *sql.DB, repos *Repositories, hub ws.EventPublisher, cfg *config.Config) (*Services, *RateLimiters, *closers) {
	limiters := &RateLimiters{
		Login: ratelimit.NewLoginRateLimiter(cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow),
		Post:  ratelimit.NewPostRateLimiter(cfg.RateLimit.PostsPerWindow, cfg.RateLimit.PostWindow, cfg.RateLimit.PostCooldown),
		IPs:   ratelimit.NewIPResolver(cfg.RateLimit.TrustedProxies),
	}
	names := services.NewNameCache()

	audit := services.NewAuditRecorder(repos.ActionLog)
	invite := services.NewInviteService(repos.Invite, cfg.Invite)
	hasher := credential.NewHasher(cfg.Auth.BcryptCost)

	svcs := &Services{
		Audit:      audit,
		Invite:     invite,
		Auth:       services.NewAuthService(db, repos.User, invite, hasher, audit, cfg.Auth),
		Feed:       services.NewFeedService(repos.Post, hub, limiters.Post, audit),
		Moderation: services.NewModerationService(repos.User, hub, audit, names, cfg.Auth),
		ActionLog:  services.NewActionLogService(repos.ActionLog, repos.User, names),
		Sweeper:    services.NewLifecycleSweeper(repos.User, hub, audit, invite, limiters.Post, names, cfg.Sweep),
	}
	return svcs, limiters, &closers{names: names}
}
