// Package config loads the server configuration from environment variables.
// A .env file in the working directory is loaded first when present.
//
// Every concern gets its own struct so that constructors take only the
// section they need (services.NewLifecycleSweeper takes SweepConfig, and so on).
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every configuration value of the server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Sweep     SweepConfig
	Invite    InviteConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// ServerConfig holds the two listeners: the HTTP API and the realtime
// WebSocket endpoint run on separate ports.
type ServerConfig struct {
	Host         string
	HTTPPort     int
	WSPort       int
	InstanceName string // sent to every connection in the welcome frame
}

// DatabaseConfig, SQLite settings.
type DatabaseConfig struct {
	Path string // e.g. ./data/maelink.db
}

// AuthConfig groups credential and account-lifecycle settings.
type AuthConfig struct {
	BcryptCost   int
	ReservedName string // registration with this name is refused

	// AccountLifetime is stamped into expires_at at registration.
	// Zero disables expiry.
	AccountLifetime time.Duration

	// DeletionGrace is the delay between a deletion request and the sweep
	// that sanitizes the account.
	DeletionGrace time.Duration

	// SystemAccountName/SystemAccountKey provision a system account at
	// startup. Both empty = no provisioning.
	SystemAccountName string
	SystemAccountKey  string

	CommandTimeout time.Duration // per protocol command store deadline
}

// SweepConfig, background reconciler intervals.
type SweepConfig struct {
	LifecycleInterval time.Duration // expiry + deletion passes
	NudgeInterval     time.Duration // auth_required reminders
	PassTimeout       time.Duration
}

// InviteConfig controls invite-code replenishment. PoolSize 0 disables it.
type InviteConfig struct {
	PoolSize int
	TTL      time.Duration
}

// RateLimitConfig, brute-force and flood guards.
type RateLimitConfig struct {
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	MessagesPerSecond float64
	Burst             int
	PostsPerWindow    int
	PostWindow        time.Duration
	PostCooldown      time.Duration

	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP headers
	// name the client. Empty trusts none.
	TrustedProxies []netip.Prefix
}

// CORSConfig, allowed origins for the HTTP API.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load builds a Config from the environment.
//
// Parsing errors are returned instead of silently falling back so a typo in
// a deployment does not run the server with surprising values.
func Load() (*Config, error) {
	// Missing .env is fine; production uses real environment variables.
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			HTTPPort:     p.int("HTTP_PORT", 6060),
			WSPort:       p.int("WS_PORT", 8080),
			InstanceName: getEnv("INSTANCE_NAME", "maelink"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/maelink.db"),
		},
		Auth: AuthConfig{
			BcryptCost:        p.int("BCRYPT_COST", 12),
			ReservedName:      getEnv("RESERVED_NAME", "system"),
			AccountLifetime:   time.Duration(p.int("ACCOUNT_LIFETIME_HOURS", 72)) * time.Hour,
			DeletionGrace:     time.Duration(p.int("DELETION_GRACE_DAYS", 7)) * 24 * time.Hour,
			SystemAccountName: getEnv("SYSTEM_ACCOUNT_NAME", ""),
			SystemAccountKey:  getEnv("SYSTEM_ACCOUNT_KEY", ""),
			CommandTimeout:    p.duration("COMMAND_TIMEOUT", 10*time.Second),
		},
		Sweep: SweepConfig{
			LifecycleInterval: p.duration("SWEEP_INTERVAL", 5*time.Minute),
			NudgeInterval:     p.duration("NUDGE_INTERVAL", 30*time.Second),
			PassTimeout:       p.duration("SWEEP_TIMEOUT", 30*time.Second),
		},
		Invite: InviteConfig{
			PoolSize: p.int("INVITE_POOL_SIZE", 0),
			TTL:      time.Duration(p.int("INVITE_TTL_DAYS", 7)) * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:  p.int("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:       p.duration("LOGIN_WINDOW", 2*time.Minute),
			MessagesPerSecond: p.float("WS_MESSAGES_PER_SECOND", 10),
			Burst:             p.int("WS_BURST", 20),
			PostsPerWindow:    p.int("POSTS_PER_WINDOW", 5),
			PostWindow:        p.duration("POST_WINDOW", 5*time.Second),
			PostCooldown:      p.duration("POST_COOLDOWN", 15*time.Second),
			TrustedProxies:    p.prefixes("TRUSTED_PROXIES"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if (cfg.Auth.SystemAccountName == "") != (cfg.Auth.SystemAccountKey == "") {
		return nil, fmt.Errorf("SYSTEM_ACCOUNT_NAME and SYSTEM_ACCOUNT_KEY must be set together")
	}
	if cfg.Sweep.LifecycleInterval <= 0 || cfg.Sweep.NudgeInterval <= 0 {
		return nil, fmt.Errorf("sweep intervals must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the API listen address (e.g. "0.0.0.0:6060").
func (c *ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// WSAddr returns the realtime listen address.
func (c *ServerConfig) WSAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.WSPort)
}

// parser keeps the first parse error so Load can read every key in one
// composite literal.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

// duration accepts Go duration strings ("5m", "30s").
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

// prefixes reads a comma separated list of CIDR prefixes or bare addresses.
func (p *parser) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range splitList(getEnv(key, "")) {
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			if p.err == nil {
				p.err = fmt.Errorf("invalid %s entry %q: %w", key, raw, err)
			}
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

// getEnv reads an environment variable, returning fallback when unset.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
