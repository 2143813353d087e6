package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/pkg/ratelimit"
	"github.com/akinalp/maelink/repository"
	"github.com/akinalp/maelink/ws"
)

// FeedService creates, lists and deletes posts.
type FeedService interface {
	// Create stores a post by author and pushes new_post to every other
	// authenticated session.
	Create(ctx context.Context, author *models.User, content string) (*models.Post, error)
	// List returns up to limit posts, newest first. limit <= 0 uses the
	// default page size; larger values are capped.
	List(ctx context.Context, limit int) ([]models.FeedPost, error)
	// Delete removes a post. Allowed for its author and for mod+.
	Delete(ctx context.Context, actor *models.User, postID int64) error
}

type feedService struct {
	posts   repository.PostRepository
	hub     ws.EventPublisher
	limiter *ratelimit.PostRateLimiter
	audit   AuditRecorder
	now     func() time.Time
}

// NewFeedService, constructor. limiter may be nil.
func NewFeedService(
	posts repository.PostRepository,
	hub ws.EventPublisher,
	limiter *ratelimit.PostRateLimiter,
	audit AuditRecorder,
) FeedService {
	return &feedService{
		posts:   posts,
		hub:     hub,
		limiter: limiter,
		audit:   audit,
		now:     time.Now,
	}
}

func (s *feedService) Create(ctx context.Context, author *models.User, content string) (*models.Post, error) {
	now := s.now()
	if author.IsBanned(now) {
		return nil, pkg.ErrBanned
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkg.ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > models.MaxPostLength {
		return nil, pkg.ErrContentTooLong
	}

	if !s.limiter.Allow(author.ID) {
		return nil, pkg.ErrRateLimited
	}

	post := &models.Post{
		UserID:    author.ID,
		Author:    author.Name,
		Content:   content,
		CreatedAt: now.UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	// Committed; notify. Delivery is best effort per recipient.
	wire := post.Wire()
	s.hub.BroadcastToAuthenticatedExcept(author.ID, ws.Event{Cmd: ws.CmdNewPost, Post: &wire})
	return post, nil
}

func (s *feedService) List(ctx context.Context, limit int) ([]models.FeedPost, error) {
	if limit <= 0 {
		limit = models.DefaultFeedLimit
	}
	if limit > models.MaxFeedLimit {
		limit = models.MaxFeedLimit
	}

	posts, err := s.posts.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	feed := make([]models.FeedPost, 0, len(posts))
	for i := range posts {
		feed = append(feed, posts[i].Wire())
	}
	return feed, nil
}

func (s *feedService) Delete(ctx context.Context, actor *models.User, postID int64) error {
	if postID <= 0 {
		return pkg.ErrInvalidRequest
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return pkg.ErrPostNotFound
		}
		return err
	}

	if err := canDeletePost(actor, post); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}

	s.audit.Record(ctx, idPtr(actor.ID), idPtr(post.UserID), models.ActionDeletePost,
		fmt.Sprintf("post %d by %s: %q", post.ID, post.Author, post.Content))
	return nil
}
