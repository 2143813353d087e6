package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/pkg/cache"
	"github.com/akinalp/maelink/pkg/credential"
	"github.com/akinalp/maelink/repository"
	"github.com/akinalp/maelink/ws"
)

// ModerationService runs the privileged account mutations of the HTTP API.
// Each successful mutation writes one action log entry, and any live
// session the mutation invalidates is closed after the store commits.
type ModerationService interface {
	Ban(ctx context.Context, actor *models.User, req *models.BanRequest) error
	Unban(ctx context.Context, actor *models.User, target models.TargetRef) error
	SetRole(ctx context.Context, actor *models.User, req *models.PermissionsRequest) error

	// RequestDeletion deletes or schedules deletion of an account. An empty
	// target (or the actor themself) schedules self-deletion after the
	// grace period. Moderators targeting another account either sanitize
	// it immediately (instant) or schedule it. Returns the scheduled time,
	// nil for an instant deletion.
	RequestDeletion(ctx context.Context, actor *models.User, target models.TargetRef, instant bool) (*time.Time, error)
}

type moderationService struct {
	users repository.UserRepository
	hub   ws.EventPublisher
	audit AuditRecorder
	names *cache.TTLCache[int64, string]
	grace time.Duration
	now   func() time.Time
}

// NewModerationService, constructor. names is the action log name cache;
// instant deletions evict the account from it.
func NewModerationService(
	users repository.UserRepository,
	hub ws.EventPublisher,
	audit AuditRecorder,
	names *cache.TTLCache[int64, string],
	cfg config.AuthConfig,
) ModerationService {
	return &moderationService{
		users: users,
		hub:   hub,
		audit: audit,
		names: names,
		grace: cfg.DeletionGrace,
		now:   time.Now,
	}
}

func (s *moderationService) Ban(ctx context.Context, actor *models.User, req *models.BanRequest) error {
	target, err := s.resolveTarget(ctx, req.TargetRef)
	if err != nil {
		return err
	}
	if err := canBan(actor, target); err != nil {
		return err
	}

	now := s.now().UTC()
	until, err := req.EndsAt(now)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrInvalidRequest, err)
	}

	if err := s.users.SetBan(ctx, target.ID, until, req.Reason); err != nil {
		return s.mapTargetErr(err)
	}

	details := "permanent"
	if until != nil {
		details = "until " + until.Format(time.RFC3339)
	}
	if req.Reason != "" {
		details += ": " + req.Reason
	}
	s.audit.Record(ctx, idPtr(actor.ID), idPtr(target.ID), models.ActionBan, details)

	event := &ws.Event{Cmd: ws.CmdBanned, Reason: req.Reason}
	if until != nil {
		ms := until.UnixMilli()
		event.Until = &ms
	}
	closed := s.hub.CloseUserSessions(target.ID, event)
	log.Printf("[moderation] %s banned %s (%s), closed %d sessions", actor.Name, target.Name, details, closed)
	return nil
}

func (s *moderationService) Unban(ctx context.Context, actor *models.User, ref models.TargetRef) error {
	target, err := s.resolveTarget(ctx, ref)
	if err != nil {
		return err
	}
	if err := canBan(actor, target); err != nil {
		return err
	}

	if err := s.users.ClearBan(ctx, target.ID); err != nil {
		return s.mapTargetErr(err)
	}
	s.audit.Record(ctx, idPtr(actor.ID), idPtr(target.ID), models.ActionUnban, "")
	return nil
}

func (s *moderationService) SetRole(ctx context.Context, actor *models.User, req *models.PermissionsRequest) error {
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return pkg.ErrInvalidRole
	}
	target, err := s.resolveTarget(ctx, req.TargetRef)
	if err != nil {
		return err
	}
	if err := canSetRole(actor, target, role); err != nil {
		return err
	}

	if err := s.users.UpdateRole(ctx, target.ID, role); err != nil {
		return s.mapTargetErr(err)
	}
	s.audit.Record(ctx, idPtr(actor.ID), idPtr(target.ID), models.ActionSetRole,
		fmt.Sprintf("%s -> %s", target.Role, role))
	return nil
}

func (s *moderationService) RequestDeletion(ctx context.Context, actor *models.User, ref models.TargetRef, instant bool) (*time.Time, error) {
	target := actor
	if _, _, ok := ref.Lookup(); ok {
		resolved, err := s.resolveTarget(ctx, ref)
		if err != nil {
			return nil, err
		}
		target = resolved
	}

	now := s.now().UTC()
	at := now.Add(s.grace)

	// Self-service: always scheduled, cancelled by the next password login.
	if target.ID == actor.ID {
		if err := s.users.ScheduleDeletion(ctx, actor.ID, at, actor.ID); err != nil {
			return nil, s.mapTargetErr(err)
		}
		log.Printf("[moderation] %s scheduled own deletion for %s", actor.Name, at.Format(time.RFC3339))
		return &at, nil
	}

	if err := canDeleteAccount(actor, target); err != nil {
		return nil, err
	}

	if !instant {
		if err := s.users.ScheduleDeletion(ctx, target.ID, at, actor.ID); err != nil {
			return nil, s.mapTargetErr(err)
		}
		s.audit.Record(ctx, idPtr(actor.ID), idPtr(target.ID), models.ActionScheduleDeletion,
			fmt.Sprintf("%s scheduled for %s", target.Name, at.Format(time.RFC3339)))
		return &at, nil
	}

	changed, err := s.users.Sanitize(ctx, target.ID, sanitizationOf(target, now, idPtr(actor.ID)), false)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, pkg.ErrAlreadyDeleted
	}
	forgetName(s.names, target.ID)
	s.audit.Record(ctx, idPtr(actor.ID), idPtr(target.ID), models.ActionInstantDelete,
		fmt.Sprintf("%s deleted by %s", target.Name, actor.Name))
	s.hub.CloseUserSessions(target.ID, &ws.Event{Cmd: ws.CmdAccountDeleted})
	return nil, nil
}

// resolveTarget loads the account a request names. Deleted accounts are
// not valid targets.
func (s *moderationService) resolveTarget(ctx context.Context, ref models.TargetRef) (*models.User, error) {
	byUUID, value, ok := ref.Lookup()
	if !ok {
		return nil, pkg.ErrInvalidRequest
	}

	var (
		user *models.User
		err  error
	)
	if byUUID {
		user, err = s.users.GetByUUID(ctx, value)
	} else {
		user, err = s.users.GetByName(ctx, value)
	}
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, pkg.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() {
		return nil, pkg.ErrAlreadyDeleted
	}
	return user, nil
}

// mapTargetErr: the guarded updates affect no row once the account has
// been deleted in the meantime.
func (s *moderationService) mapTargetErr(err error) error {
	if errors.Is(err, pkg.ErrNotFound) {
		return pkg.ErrAlreadyDeleted
	}
	return err
}

// forgetName drops a sanitized account from the name cache so action logs
// show the anonymized name right away.
func forgetName(names *cache.TTLCache[int64, string], id int64) {
	if names != nil {
		names.Delete(id)
	}
}

// sanitizationOf builds the anonymized replacement values for u. The same
// account always maps to the same name.
func sanitizationOf(u *models.User, at time.Time, initiatedBy *int64) repository.Sanitization {
	anon := credential.AnonymousName(u.UUID)
	return repository.Sanitization{
		Name:        anon,
		DisplayName: anon,
		At:          at,
		InitiatedBy: initiatedBy,
	}
}
