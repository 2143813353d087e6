package ratelimit

import (
	"sync"
	"time"
)

type postBucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time
}

// PostRateLimiter throttles feed posts per user. Exceeding maxPosts inside
// window starts a cooldown during which every post is refused.
type PostRateLimiter struct {
	mu       sync.Mutex
	buckets  map[int64]*postBucket
	maxPosts int
	window   time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// NewPostRateLimiter, constructor. Buckets are evicted lazily on access and
// by Sweep.
func NewPostRateLimiter(maxPosts int, window, cooldown time.Duration) *PostRateLimiter {
	return &PostRateLimiter{
		buckets:  make(map[int64]*postBucket),
		maxPosts: maxPosts,
		window:   window,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow records a post attempt by userID.
func (rl *PostRateLimiter) Allow(userID int64) bool {
	if rl == nil || rl.maxPosts <= 0 {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[userID]
	if !ok {
		rl.buckets[userID] = &postBucket{count: 1, windowStart: now}
		return true
	}

	if !b.cooldownUntil.IsZero() {
		if now.Before(b.cooldownUntil) {
			return false
		}
		*b = postBucket{count: 1, windowStart: now}
		return true
	}

	if now.Sub(b.windowStart) > rl.window {
		b.count = 1
		b.windowStart = now
		return true
	}

	b.count++
	if b.count > rl.maxPosts {
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}
	return true
}

// CooldownSeconds is the remaining penalty for userID, 0 when none.
func (rl *PostRateLimiter) CooldownSeconds(userID int64) int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[userID]
	if !ok || b.cooldownUntil.IsZero() {
		return 0
	}
	remaining := b.cooldownUntil.Sub(rl.now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Sweep drops buckets whose window and cooldown have both passed. The
// lifecycle sweeper calls it on its nudge tick.
func (rl *PostRateLimiter) Sweep() {
	if rl == nil {
		return
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window && (b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)) {
			delete(rl.buckets, id)
		}
	}
}
