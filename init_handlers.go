package main

import (
	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/handlers"
	"github.com/akinalp/maelink/ws"
)

// Handlers groups the HTTP handlers and the realtime endpoint.
type Handlers struct {
	Feed       *handlers.FeedHandler
	Moderation *handlers.ModerationHandler
	Account    *handlers.AccountHandler
	ActionLog  *handlers.ActionLogHandler
	Health     *handlers.HealthHandler
	WS         *ws.Handler
}

func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config) *Handlers {
	dispatcher := ws.NewDispatcher(hub, svcs.Auth, limiters.Login, cfg.Auth.CommandTimeout)

	return &Handlers{
		Feed:       handlers.NewFeedHandler(svcs.Feed),
		Moderation: handlers.NewModerationHandler(svcs.Moderation),
		Account:    handlers.NewAccountHandler(svcs.Moderation),
		ActionLog:  handlers.NewActionLogHandler(svcs.ActionLog),
		Health:     handlers.NewHealthHandler(hub),
		WS: ws.NewHandler(hub, dispatcher, cfg.Server.InstanceName, limiters.IPs,
			cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst),
	}
}
