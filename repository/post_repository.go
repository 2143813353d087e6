package repository

import (
	"context"

	"github.com/akinalp/maelink/models"
)

// PostRepository persists feed posts.
type PostRepository interface {
	// Create inserts post and fills ID. CreatedAt must be set.
	Create(ctx context.Context, post *models.Post) error
	// GetByID joins the author's current name into Author.
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	// ListRecent returns up to limit posts, newest first.
	ListRecent(ctx context.Context, limit int) ([]models.Post, error)
	Delete(ctx context.Context, id int64) error
}
