package services

import (
	"context"
	"log"
	"time"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/repository"
)

// AuditRecorder appends action log entries. Recording is advisory: a store
// failure is logged and swallowed so it never undoes or blocks the action
// being recorded.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, targetID *int64, action models.Action, details string)
}

type auditRecorder struct {
	logs repository.ActionLogRepository
	now  func() time.Time
}

// NewAuditRecorder, constructor.
func NewAuditRecorder(logs repository.ActionLogRepository) AuditRecorder {
	return &auditRecorder{logs: logs, now: time.Now}
}

func (a *auditRecorder) Record(ctx context.Context, actorID, targetID *int64, action models.Action, details string) {
	entry := &models.ActionLogEntry{
		ActorID:      actorID,
		TargetUserID: targetID,
		Action:       action,
		Details:      details,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.logs.Create(ctx, entry); err != nil {
		log.Printf("[audit] failed to record %s (actor=%v target=%v): %v",
			action, derefID(actorID), derefID(targetID), err)
	}
}

func derefID(id *int64) any {
	if id == nil {
		return "system"
	}
	return *id
}

func idPtr(id int64) *int64 {
	return &id
}
