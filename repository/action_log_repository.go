package repository

import (
	"context"

	"github.com/akinalp/maelink/models"
)

// ActionLogRepository is append-only: there is no update or delete.
type ActionLogRepository interface {
	Create(ctx context.Context, entry *models.ActionLogEntry) error
	// List returns entries matching filter, newest first.
	List(ctx context.Context, filter models.ActionLogFilter) ([]models.ActionLogEntry, error)
}
