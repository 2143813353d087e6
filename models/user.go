// Package models defines the domain records persisted by the repository
// layer and the request/response shapes exchanged with clients.
package models

import (
	"strings"
	"time"
)

// Name limits enforced at registration.
const (
	MinNameLength = 4
	MaxNameLength = 16
)

// Role is a user's privilege level. Roles are totally ordered:
// user < mod < admin < sysadmin.
type Role string

const (
	RoleUser     Role = "user"
	RoleMod      Role = "mod"
	RoleAdmin    Role = "admin"
	RoleSysadmin Role = "sysadmin"
)

var roleRank = map[Role]int{
	RoleUser:     0,
	RoleMod:      1,
	RoleAdmin:    2,
	RoleSysadmin: 3,
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := roleRank[r]
	return r, ok
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank is r's position in the order; unknown roles rank below user.
func (r Role) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether r is min or above.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= min.Rank()
}

// User is an account. Accounts are never removed from the store; deletion
// sanitizes the row in place (see the Deleted* fields).
type User struct {
	ID          int64   `json:"-"`
	UUID        string  `json:"uuid"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Password    *string `json:"-"` // bcrypt hash; nil once deleted
	Token       *string `json:"-"`
	Avatar      *string `json:"avatar"`
	Role        Role    `json:"role"`

	Banned      bool       `json:"-"`
	BannedUntil *time.Time `json:"-"` // nil with Banned = permanent
	BanReason   *string    `json:"-"`

	DeletionScheduledAt *time.Time `json:"-"`
	DeletedAt           *time.Time `json:"-"`
	DeletionInitiatedBy *int64     `json:"-"`
	ExpiresAt           *time.Time `json:"-"`

	SystemAccount bool    `json:"-"`
	SystemKey     *string `json:"-"` // bcrypt hash of the system key

	RegisteredAt time.Time `json:"-"`
}

// IsBanned reports whether a ban is in force at now. A ban whose end date
// has passed no longer counts.
func (u *User) IsBanned(now time.Time) bool {
	if !u.Banned {
		return false
	}
	return u.BannedUntil == nil || u.BannedUntil.After(now)
}

// IsDeleted reports whether the account has been sanitized.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// TokenValue returns the bearer token or "".
func (u *User) TokenValue() string {
	if u.Token == nil {
		return ""
	}
	return *u.Token
}

// AvatarValue returns the avatar URL or "".
func (u *User) AvatarValue() string {
	if u.Avatar == nil {
		return ""
	}
	return *u.Avatar
}

// Me is the body of GET /api/me.
type Me struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	UUID        string `json:"uuid"`
	Avatar      string `json:"avatar"`
}

// MeFromUser projects u onto the /api/me shape.
func MeFromUser(u *User) Me {
	return Me{
		Name:        u.Name,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		UUID:        u.UUID,
		Avatar:      u.AvatarValue(),
	}
}

// TargetRef names the subject of a moderation request by name or UUID.
// "user" and "name" are aliases.
type TargetRef struct {
	User string `json:"user"`
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Lookup returns which identifier was given and its value. ok is false when
// none was.
func (t TargetRef) Lookup() (byUUID bool, value string, ok bool) {
	if v := strings.TrimSpace(t.UUID); v != "" {
		return true, v, true
	}
	if v := strings.TrimSpace(t.User); v != "" {
		return false, v, true
	}
	if v := strings.TrimSpace(t.Name); v != "" {
		return false, v, true
	}
	return false, "", false
}

// PermissionsRequest is the body of POST /api/permissions.
type PermissionsRequest struct {
	TargetRef
	Role string `json:"role"`
}

// AccountDeletionResponse is the body of DELETE /api/account.
// DeletionScheduledAt (unix ms) is absent for an instant deletion.
type AccountDeletionResponse struct {
	Success             bool   `json:"success"`
	DeletionScheduledAt *int64 `json:"deletion_scheduled_at,omitempty"`
}
