package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	services.FeedService
	created   []string
	lastLimit int
	err       error
}

func (f *stubFeed) Create(_ context.Context, author *models.User, content string) (*models.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, content)
	return &models.Post{ID: 1, UserID: author.ID, Content: content}, nil
}

func (f *stubFeed) List(_ context.Context, limit int) ([]models.FeedPost, error) {
	f.lastLimit = limit
	return []models.FeedPost{{ID: 1, User: "alice", Content: "hi"}}, nil
}

type stubModeration struct {
	services.ModerationService
	scheduled *time.Time
	target    models.TargetRef
	instant   bool
}

func (m *stubModeration) RequestDeletion(_ context.Context, _ *models.User, target models.TargetRef, instant bool) (*time.Time, error) {
	m.target, m.instant = target, instant
	return m.scheduled, nil
}

type stubCounter struct{}

func (stubCounter) Count() (int, int) { return 3, 1 }

func withUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, u))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) pkg.ErrorBody {
	t.Helper()
	var body pkg.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFeedCreate(t *testing.T) {
	feed := &stubFeed{}
	h := NewFeedHandler(feed)
	alice := &models.User{ID: 1, Name: "alice"}

	rec := httptest.NewRecorder()
	h.Create(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/feed", strings.NewReader(`{"p":"legacy body"}`)), alice))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"legacy body"}, feed.created)

	rec = httptest.NewRecorder()
	h.Create(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/feed", strings.NewReader(`{not json`)), alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "badJSON", decodeError(t, rec).Reason)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/feed", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	feed.err = pkg.ErrBanned
	rec = httptest.NewRecorder()
	h.Create(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/feed", strings.NewReader(`{"content":"x"}`)), alice))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "banned", decodeError(t, rec).Reason)
}

func TestFeedList(t *testing.T) {
	feed := &stubFeed{}
	h := NewFeedHandler(feed)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/feed?limit=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, feed.lastLimit)

	var body models.FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Posts, 1)
	assert.Equal(t, "alice", body.Posts[0].User)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/feed?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePostRejectsBadID(t *testing.T) {
	h := NewFeedHandler(&stubFeed{})
	rec := httptest.NewRecorder()
	h.DeletePost(rec, withUser(httptest.NewRequest(http.MethodDelete, "/api/post?id=abc", nil), &models.User{ID: 1}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountDelete(t *testing.T) {
	at := time.UnixMilli(1_800_000_000_000)
	mod := &stubModeration{scheduled: &at}
	h := NewAccountHandler(mod)
	alice := &models.User{ID: 1, Name: "alice"}

	rec := httptest.NewRecorder()
	h.Delete(rec, withUser(httptest.NewRequest(http.MethodDelete, "/api/account", nil), alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"deletion_scheduled_at":1800000000000}`, rec.Body.String())

	mod.scheduled = nil
	rec = httptest.NewRecorder()
	h.Delete(rec, withUser(httptest.NewRequest(http.MethodDelete, "/api/account?uuid=u-1&instant=true", nil), alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, "u-1", mod.target.UUID)
	assert.True(t, mod.instant)
}

func TestMe(t *testing.T) {
	avatar := "https://img.example/a.png"
	h := NewAccountHandler(&stubModeration{})

	rec := httptest.NewRecorder()
	h.Me(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/me", nil),
		&models.User{ID: 1, UUID: "u-1", Name: "alice", DisplayName: "Alice", Role: models.RoleMod, Avatar: &avatar}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"alice","display_name":"Alice","role":"mod","uuid":"u-1","avatar":"https://img.example/a.png"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(stubCounter{}).Check(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":3,"authenticated":1}`, rec.Body.String())
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?n=5&bad=x&neg=-2&ms=1700000000000&iso=2026-01-02T03:04:05Z&junk=yesterday&yes=true", nil)

	v, ok := queryInt(r, "n")
	assert.True(t, ok)
	assert.Equal(t, 5, v)
	_, ok = queryInt(r, "bad")
	assert.False(t, ok)
	_, ok = queryInt(r, "neg")
	assert.False(t, ok)
	v, ok = queryInt(r, "absent")
	assert.True(t, ok)
	assert.Zero(t, v)

	ts, ok := queryTime(r, "ms")
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), ts.UnixMilli())
	ts, ok = queryTime(r, "iso")
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())
	_, ok = queryTime(r, "junk")
	assert.False(t, ok)

	assert.True(t, queryBool(r, "yes"))
	assert.False(t, queryBool(r, "absent"))
}

func TestActionLogListRejectsBadQuery(t *testing.T) {
	h := NewActionLogHandler(nil)
	rec := httptest.NewRecorder()
	h.List(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/actionlogs?since=soon", nil), &models.User{ID: 1}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "badRequest", decodeError(t, rec).Reason)
}
