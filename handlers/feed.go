package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/services"
)

// FeedHandler serves the post endpoints.
type FeedHandler struct {
	feed services.FeedService
}

// NewFeedHandler, constructor.
func NewFeedHandler(feed services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// Create godoc
// POST /api/feed
// Body {content} ("p" and "text" are accepted aliases).
func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	var req models.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.Error(w, pkg.ErrBadJSON)
		return
	}

	if _, err := h.feed.Create(r.Context(), user, req.Body()); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.OK(w)
}

// List godoc
// GET /api/feed?limit=
// Public; banned accounts can still read.
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		pkg.Error(w, pkg.ErrInvalidRequest)
		return
	}

	posts, err := h.feed.List(r.Context(), limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, models.FeedResponse{Posts: posts})
}

// DeletePost godoc
// DELETE /api/post?id=
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		pkg.Error(w, pkg.ErrInvalidRequest)
		return
	}

	if err := h.feed.Delete(r.Context(), user, id); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.OK(w)
}
