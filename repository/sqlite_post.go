package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
)

type sqlitePostRepo struct {
	db database.TxQuerier
}

// NewSQLitePostRepo, constructor.
func NewSQLitePostRepo(db database.TxQuerier) PostRepository {
	return &sqlitePostRepo{db: db}
}

func (r *sqlitePostRepo) Create(ctx context.Context, post *models.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (user_id, content, created_at) VALUES (?, ?, ?) RETURNING id`,
		post.UserID, post.Content, toMillis(post.CreatedAt),
	).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *sqlitePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT p.id, p.user_id, u.name, p.content, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = ?`

	var (
		post    models.Post
		created int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID, &post.UserID, &post.Author, &post.Content, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	post.CreatedAt = fromMillis(created)
	return &post, nil
}

func (r *sqlitePostRepo) ListRecent(ctx context.Context, limit int) ([]models.Post, error) {
	query := `
		SELECT p.id, p.user_id, u.name, p.content, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var (
			post    models.Post
			created int64
		)
		if err := rows.Scan(&post.ID, &post.UserID, &post.Author, &post.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		post.CreatedAt = fromMillis(created)
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

func (r *sqlitePostRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrPostNotFound
	}
	return nil
}
