package models

import (
	"strings"
	"time"
)

// MaxPostLength is counted in runes after trimming.
const MaxPostLength = 256

// Feed page bounds for GET /api/feed.
const (
	DefaultFeedLimit = 100
	MaxFeedLimit     = 500
)

// Post is a feed entry. Author is filled by joins and is not a column.
type Post struct {
	ID        int64
	UserID    int64
	Author    string
	Content   string
	CreatedAt time.Time
}

// FeedPost is the wire shape of a post, shared by GET /api/feed and the
// new_post event.
type FeedPost struct {
	ID        int64  `json:"id"`
	User      string `json:"user"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Wire converts p to its wire shape.
func (p *Post) Wire() FeedPost {
	return FeedPost{
		ID:        p.ID,
		User:      p.Author,
		Content:   p.Content,
		Timestamp: p.CreatedAt.UnixMilli(),
	}
}

// CreatePostRequest is the body of POST /api/feed. Older clients send the
// text as "p" or "text".
type CreatePostRequest struct {
	Content string `json:"content"`
	P       string `json:"p"`
	Text    string `json:"text"`
}

// Body returns the first non-blank alias, trimmed.
func (r *CreatePostRequest) Body() string {
	for _, v := range []string{r.Content, r.P, r.Text} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// FeedResponse is the body of GET /api/feed.
type FeedResponse struct {
	Posts []FeedPost `json:"posts"`
}
