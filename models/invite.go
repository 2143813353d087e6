package models

import "time"

// InviteCode is a single-use registration code. Registration deletes it.
type InviteCode struct {
	ID        int64
	Value     string
	ExpiresAt *time.Time // nil = never expires
	CreatedAt time.Time
}

// Usable reports whether the code can still be redeemed at now.
func (c *InviteCode) Usable(now time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
