package repository

import (
	"context"
	"time"

	"github.com/akinalp/maelink/models"
)

// InviteRepository persists single-use registration codes.
type InviteRepository interface {
	Create(ctx context.Context, code *models.InviteCode) error
	// GetUsable returns the code when it exists and has not expired at now.
	GetUsable(ctx context.Context, value string, now time.Time) (*models.InviteCode, error)
	// Consume deletes the code by id. Reports false when another
	// registration already consumed it.
	Consume(ctx context.Context, id int64) (bool, error)
	// CountUsable counts unexpired codes.
	CountUsable(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context, limit int) ([]models.InviteCode, error)
	// DeleteExpired removes codes whose expiry passed. Returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
