package ratelimit

import (
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLoginRateLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewLoginRateLimiter(3, time.Minute)
	defer rl.Stop()
	rl.now = clock.now

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.1.1.1"))
	}
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "keys are independent")
	assert.Equal(t, 61, rl.RetryAfterSeconds("1.1.1.1"))

	clock.advance(time.Minute + time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "window elapsed")

	rl.Allow("1.1.1.1")
	rl.Allow("1.1.1.1")
	rl.Reset("1.1.1.1")
	assert.True(t, rl.Allow("1.1.1.1"))

	rl.Stop() // second Stop is a no-op
}

func TestPostRateLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewPostRateLimiter(2, 5*time.Second, 15*time.Second)
	rl.now = clock.now

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1), "third post inside the window starts a cooldown")
	assert.True(t, rl.Allow(2))
	assert.Equal(t, 16, rl.CooldownSeconds(1))

	clock.advance(10 * time.Second)
	assert.False(t, rl.Allow(1), "still cooling down")

	clock.advance(6 * time.Second)
	assert.True(t, rl.Allow(1))

	clock.advance(time.Minute)
	rl.Sweep()
	assert.Empty(t, rl.buckets)
}

func TestPostRateLimiterDisabled(t *testing.T) {
	var nilLimiter *PostRateLimiter
	assert.True(t, nilLimiter.Allow(1))
	assert.Zero(t, nilLimiter.CooldownSeconds(1))
	nilLimiter.Sweep()

	off := NewPostRateLimiter(0, time.Second, time.Second)
	for i := 0; i < 10; i++ {
		assert.True(t, off.Allow(1))
	}
}

func TestClientIP(t *testing.T) {
	behindProxy := NewIPResolver([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})

	tests := []struct {
		name     string
		resolver *IPResolver
		remote   string
		xff      string
		realIP   string
		want     string
	}{
		{"direct peer", nil, "10.1.2.3:5555", "", "", "10.1.2.3"},
		{"untrusted peer ignores headers", NewIPResolver(nil), "203.0.113.9:5555", "1.2.3.4", "5.6.7.8", "203.0.113.9"},
		{"spoofed header from outside", behindProxy, "203.0.113.9:5555", "1.2.3.4", "", "203.0.113.9"},
		{"trusted proxy", behindProxy, "10.0.0.2:443", "198.51.100.4", "", "198.51.100.4"},
		{"right-most untrusted hop", behindProxy, "10.0.0.2:443", "6.6.6.6, 198.51.100.4, 10.0.0.9", "", "198.51.100.4"},
		{"real ip fallback", behindProxy, "10.0.0.2:443", "", "198.51.100.5", "198.51.100.5"},
		{"proxy without headers", behindProxy, "10.0.0.2:443", "", "", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.resolver.ClientIP(r))
		})
	}
}
