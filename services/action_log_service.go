package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/pkg/cache"
	"github.com/akinalp/maelink/repository"
)

// SystemActorName labels entries written by the server itself.
const SystemActorName = "system"

// ActionLogService serves the moderation audit trail.
type ActionLogService interface {
	List(ctx context.Context, actor *models.User, q models.ActionLogQuery) (*models.ActionLogResponse, error)
}

type actionLogService struct {
	logs  repository.ActionLogRepository
	users repository.UserRepository
	names *cache.TTLCache[int64, string]
}

// NewActionLogService, constructor. names memoizes id → name resolution and
// is shared with the services that sanitize accounts, which evict from it.
func NewActionLogService(
	logs repository.ActionLogRepository,
	users repository.UserRepository,
	names *cache.TTLCache[int64, string],
) ActionLogService {
	return &actionLogService{logs: logs, users: users, names: names}
}

func (s *actionLogService) List(ctx context.Context, actor *models.User, q models.ActionLogQuery) (*models.ActionLogResponse, error) {
	if err := canReadActionLogs(actor); err != nil {
		return nil, err
	}

	filter := models.ActionLogFilter{
		Action: models.Action(strings.TrimSpace(q.Action)),
		Since:  q.Since,
		Until:  q.Until,
		Limit:  q.Limit,
	}
	if filter.Limit <= 0 {
		filter.Limit = models.DefaultActionLogLimit
	}
	if filter.Limit > models.MaxActionLogLimit {
		filter.Limit = models.MaxActionLogLimit
	}
	if q.Page > 1 {
		filter.Offset = (q.Page - 1) * filter.Limit
	}

	empty := &models.ActionLogResponse{Logs: []models.ActionLogView{}}

	if name := strings.TrimSpace(q.Actor); name != "" {
		if strings.EqualFold(name, SystemActorName) {
			filter.SystemActor = true
		} else {
			id, found, err := s.idOf(ctx, name)
			if err != nil {
				return nil, err
			}
			if !found {
				return empty, nil
			}
			filter.ActorID = &id
		}
	}
	if name := strings.TrimSpace(q.Target); name != "" {
		id, found, err := s.idOf(ctx, name)
		if err != nil {
			return nil, err
		}
		if !found {
			return empty, nil
		}
		filter.TargetID = &id
	}

	entries, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	names, err := s.resolveNames(ctx, entries)
	if err != nil {
		return nil, err
	}

	resp := &models.ActionLogResponse{Logs: make([]models.ActionLogView, 0, len(entries))}
	for _, e := range entries {
		view := models.ActionLogView{
			ID:        e.ID,
			Action:    e.Action,
			Actor:     SystemActorName,
			Details:   e.Details,
			Timestamp: e.CreatedAt.UnixMilli(),
		}
		if e.ActorID != nil {
			view.Actor = names[*e.ActorID]
		}
		if e.TargetUserID != nil {
			view.Target = names[*e.TargetUserID]
		}
		resp.Logs = append(resp.Logs, view)
	}
	return resp, nil
}

func (s *actionLogService) idOf(ctx context.Context, name string) (int64, bool, error) {
	u, err := s.users.GetByName(ctx, name)
	if errors.Is(err, pkg.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return u.ID, true, nil
}

// resolveNames looks up every actor and target of entries, hitting the
// store only for ids missing from the cache.
func (s *actionLogService) resolveNames(ctx context.Context, entries []models.ActionLogEntry) (map[int64]string, error) {
	names := make(map[int64]string)
	var missing []int64

	want := func(id *int64) {
		if id == nil {
			return
		}
		if _, seen := names[*id]; seen {
			return
		}
		if name, ok := s.names.Get(*id); ok {
			names[*id] = name
			return
		}
		names[*id] = ""
		missing = append(missing, *id)
	}
	for i := range entries {
		want(entries[i].ActorID)
		want(entries[i].TargetUserID)
	}
	if len(missing) == 0 {
		return names, nil
	}

	found, err := s.users.NamesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		name, ok := found[id]
		if !ok {
			name = "unknown"
		}
		names[id] = name
		s.names.Set(id, name)
	}
	return names, nil
}

// nameCacheTTL bounds how long a resolved name is reused.
const nameCacheTTL = 5 * time.Minute

// NewNameCache builds the cache NewActionLogService expects.
func NewNameCache() *cache.TTLCache[int64, string] {
	return cache.New[int64, string](nameCacheTTL, time.Minute)
}
