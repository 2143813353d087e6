package models

import "time"

// Action names a privileged mutation recorded in the action log.
type Action string

const (
	ActionBan              Action = "ban"
	ActionUnban            Action = "unban"
	ActionSetRole          Action = "set_role"
	ActionDeletePost       Action = "delete_post"
	ActionInstantDelete    Action = "instant_delete"
	ActionScheduleDeletion Action = "schedule_deletion"
	ActionAppliedDeletion  Action = "applied_deletion"
	ActionSystemLogin      Action = "system_login"
)

// ActionLogEntry is one append-only audit record. A nil ActorID means the
// system performed the action.
type ActionLogEntry struct {
	ID           int64
	ActorID      *int64
	TargetUserID *int64
	Action       Action
	Details      string
	CreatedAt    time.Time
}

// Action log page bounds.
const (
	DefaultActionLogLimit = 50
	MaxActionLogLimit     = 500
)

// ActionLogFilter narrows GET /api/actionlogs. Zero fields do not filter.
type ActionLogFilter struct {
	Action      Action
	ActorID     *int64
	SystemActor bool // actor_id IS NULL; ignored when ActorID is set
	TargetID    *int64
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// ActionLogQuery is GET /api/actionlogs as the client sends it: actor and
// target by name ("system" selects entries without an actor), page 1-based.
type ActionLogQuery struct {
	Action string
	Actor  string
	Target string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Page   int
}

// ActionLogView is the wire shape of an entry with ids resolved to names.
type ActionLogView struct {
	ID        int64  `json:"id"`
	Action    Action `json:"action"`
	Actor     string `json:"actor"`
	Target    string `json:"target,omitempty"`
	Details   string `json:"details"`
	Timestamp int64  `json:"timestamp"`
}

// ActionLogResponse is the body of GET /api/actionlogs.
type ActionLogResponse struct {
	Logs []ActionLogView `json:"logs"`
}
