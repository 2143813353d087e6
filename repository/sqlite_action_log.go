package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
)

type sqliteActionLogRepo struct {
	db database.TxQuerier
}

// NewSQLiteActionLogRepo, constructor.
func NewSQLiteActionLogRepo(db database.TxQuerier) ActionLogRepository {
	return &sqliteActionLogRepo{db: db}
}

func (r *sqliteActionLogRepo) Create(ctx context.Context, entry *models.ActionLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO action_logs (actor_id, target_user_id, action, details, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		nullInt64(entry.ActorID), nullInt64(entry.TargetUserID),
		string(entry.Action), entry.Details, toMillis(entry.CreatedAt),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create action log entry: %w", err)
	}
	return nil
}

func (r *sqliteActionLogRepo) List(ctx context.Context, filter models.ActionLogFilter) ([]models.ActionLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.ActorID != nil {
		conds = append(conds, "actor_id = ?")
		args = append(args, *filter.ActorID)
	} else if filter.SystemActor {
		conds = append(conds, "actor_id IS NULL")
	}
	if filter.TargetID != nil {
		conds = append(conds, "target_user_id = ?")
		args = append(args, *filter.TargetID)
	}
	if filter.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, toMillis(*filter.Since))
	}
	if filter.Until != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, toMillis(*filter.Until))
	}

	query := `SELECT id, actor_id, target_user_id, action, details, created_at FROM action_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list action logs: %w", err)
	}
	defer rows.Close()

	var entries []models.ActionLogEntry
	for rows.Next() {
		var (
			e             models.ActionLogEntry
			actor, target sql.NullInt64
			action        string
			created       int64
		)
		if err := rows.Scan(&e.ID, &actor, &target, &action, &e.Details, &created); err != nil {
			return nil, fmt.Errorf("failed to scan action log entry: %w", err)
		}
		e.ActorID = fromNullInt64(actor)
		e.TargetUserID = fromNullInt64(target)
		e.Action = models.Action(action)
		e.CreatedAt = fromMillis(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action logs: %w", err)
	}
	return entries, nil
}
