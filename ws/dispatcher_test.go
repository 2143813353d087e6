package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/pkg/ratelimit"
)

// fakeAuth is a scripted Authenticator keyed by credentials.
type fakeAuth struct {
	users     map[string]*models.User // by name
	passwords map[string]string
	tokens    map[string]*models.User
	previous  string
	err       error // forced failure for every call when set
	calls     int
}

func newFakeAuth() *fakeAuth {
	alice := testUser(1, "alice", "tok-alice")
	return &fakeAuth{
		users:     map[string]*models.User{"alice": alice},
		passwords: map[string]string{"alice": "secret"},
		tokens:    map[string]*models.User{"tok-alice": alice},
	}
}

func (f *fakeAuth) Register(_ context.Context, name, _, code, _ string) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if code != "XYZ1" {
		return nil, pkg.ErrBadCode
	}
	return testUser(2, name, "tok-new"), nil
}

func (f *fakeAuth) LoginPassword(_ context.Context, name, password string) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[name]
	if !ok {
		return nil, pkg.ErrUserNotFound
	}
	if f.passwords[name] != password {
		return nil, pkg.ErrBadPassword
	}
	return u, nil
}

func (f *fakeAuth) LoginToken(_ context.Context, token string) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.tokens[token]
	if !ok {
		return nil, pkg.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAuth) LoginSystemKey(_ context.Context, name, key string) (*models.User, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	if key != "sys-key" {
		return nil, "", pkg.ErrBadKey
	}
	u := testUser(9, name, "tok-rotated")
	u.Role = models.RoleSysadmin
	return u, f.previous, nil
}

func (f *fakeAuth) SetAvatar(_ context.Context, _ int64, url string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return url, nil
}

func newTestDispatcher(auth Authenticator, limiter *ratelimit.LoginRateLimiter) (*Hub, *Dispatcher) {
	h := NewHub()
	return h, NewDispatcher(h, auth, limiter, time.Second)
}

// roundTrip dispatches raw on c and returns the frames it produced.
func roundTrip(t *testing.T, d *Dispatcher, c *Client, raw string) []map[string]any {
	t.Helper()
	d.Dispatch(c, []byte(raw))
	frames, _ := drain(t, c)
	return frames
}

func TestDispatch_MalformedKeepsConnectionOpen(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{nope`)
	require.Len(t, frames, 1)
	assert.Equal(t, true, frames[0]["error"])
	assert.EqualValues(t, 400, frames[0]["code"])
	assert.Equal(t, "badJSON", frames[0]["reason"])

	frames = roundTrip(t, d, c, `{"cmd":"fly"}`)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 404, frames[0]["code"])
	assert.Equal(t, "notFound", frames[0]["reason"])

	_, ok := h.Session(c)
	assert.True(t, ok)
}

func TestDispatch_ValidationRunsBeforeAuthenticator(t *testing.T) {
	auth := newFakeAuth()
	h, d := newTestDispatcher(auth, nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"reg","user":"abc","pswd":"p","code":"XYZ1"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "usernameTooShort", frames[0]["reason"])

	frames = roundTrip(t, d, c, `{"cmd":"reg","user":"abcdefghijklmnopq","pswd":"p","code":"XYZ1"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "usernameTooLong", frames[0]["reason"])

	assert.Zero(t, auth.calls)
}

func TestDispatch_ClientInfo(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"client_info","client":"web"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, false, frames[0]["error"])
	assert.Equal(t, "clientInfoUpdated", frames[0]["reason"])

	s, _ := h.Session(c)
	assert.Equal(t, "web", s.ClientName)
	assert.Equal(t, "unknown", s.ClientVersion)

	frames = roundTrip(t, d, c, `{"cmd":"client_info"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "badRequest", frames[0]["reason"])
}

func TestDispatch_RegisterBindsSession(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"reg","user":"carol","pswd":"p","code":"XYZ1"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "reg", frames[0]["cmd"])
	assert.Equal(t, false, frames[0]["error"])
	assert.EqualValues(t, 200, frames[0]["code"])
	assert.Equal(t, "carol", frames[0]["user"])
	assert.Equal(t, "tok-new", frames[0]["token"])
	assert.NotContains(t, frames[0], "role")

	s, _ := h.Session(c)
	assert.True(t, s.Authenticated())

	other := newTestClient(h, "ip2")
	frames = roundTrip(t, d, other, `{"cmd":"reg","user":"dave1","pswd":"p","code":"used"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "badCode", frames[0]["reason"])
}

func TestDispatch_LoginPasswordIncludesRole(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"login_pswd","user":"alice","pswd":"secret"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "login_pswd", frames[0]["cmd"])
	assert.Equal(t, "user", frames[0]["role"])
	assert.Equal(t, "tok-alice", frames[0]["token"])
	assert.Equal(t, "alice-uuid", frames[0]["uuid"])
}

func TestDispatch_ProvideTokenIsSilentOnSuccess(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"provide_token","token":"tok-alice"}`)
	assert.Empty(t, frames)
	s, _ := h.Session(c)
	assert.Equal(t, "alice", s.Name)

	anon := newTestClient(h, "ip2")
	frames = roundTrip(t, d, anon, `{"cmd":"provide_token","token":"nope"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "userNotFound", frames[0]["reason"])
}

func TestDispatch_BannedLoginLeavesSessionAnonymous(t *testing.T) {
	auth := newFakeAuth()
	auth.err = pkg.ErrBanned
	h, d := newTestDispatcher(auth, nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"login_token","token":"tok-alice"}`)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 403, frames[0]["code"])
	assert.Equal(t, "banned", frames[0]["reason"])

	s, _ := h.Session(c)
	assert.False(t, s.Authenticated())
}

func TestDispatch_SystemKeyRotationRevokesOldSessions(t *testing.T) {
	auth := newFakeAuth()
	auth.previous = "tok-old"
	h, d := newTestDispatcher(auth, nil)

	stale := newTestClient(h, "ip1")
	h.Bind(stale, testUser(9, "bot1", "tok-old"))
	c := newTestClient(h, "ip2")

	frames := roundTrip(t, d, c, `{"cmd":"login_syskey","user":"bot1","key":"sys-key"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "tok-rotated", frames[0]["token"])
	assert.Equal(t, "sysadmin", frames[0]["role"])

	frames, closed := drain(t, stale)
	assert.True(t, closed)
	require.Len(t, frames, 1)
	assert.Equal(t, "session_revoked", frames[0]["cmd"])

	_, ok := h.Session(c)
	assert.True(t, ok, "the rotating connection survives")
}

func TestDispatch_SetAvatarRequiresAuthentication(t *testing.T) {
	auth := newFakeAuth()
	h, d := newTestDispatcher(auth, nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"set_avatar","url":"https://x.io/a.png"}`)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 401, frames[0]["code"])
	assert.Equal(t, "Unauthorized", frames[0]["reason"])
	assert.Zero(t, auth.calls)

	h.Bind(c, testUser(1, "alice", "tok-alice"))
	frames = roundTrip(t, d, c, `{"cmd":"set_avatar","url":"https://x.io/a.png"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "https://x.io/a.png", frames[0]["avatar"])

	s, _ := h.Session(c)
	assert.Equal(t, "https://x.io/a.png", s.Avatar)
}

func TestDispatch_StoreFailureIsServerError(t *testing.T) {
	auth := newFakeAuth()
	auth.err = assert.AnError
	h, d := newTestDispatcher(auth, nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"reg","user":"carol","pswd":"p","code":"XYZ1"}`)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 500, frames[0]["code"])
	assert.Equal(t, "serverError", frames[0]["reason"])
}

func TestDispatch_Ping(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := newTestClient(h, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"ping"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "pong", frames[0]["cmd"])
}

func TestDispatch_LoginRateLimit(t *testing.T) {
	limiter := ratelimit.NewLoginRateLimiter(2, time.Minute)
	defer limiter.Stop()

	h, d := newTestDispatcher(newFakeAuth(), limiter)
	c := newTestClient(h, "9.9.9.9")

	for i := 0; i < 2; i++ {
		frames := roundTrip(t, d, c, `{"cmd":"login_pswd","user":"alice","pswd":"wrong"}`)
		require.Len(t, frames, 1)
		assert.Equal(t, "badPswd", frames[0]["reason"])
	}

	frames := roundTrip(t, d, c, `{"cmd":"login_pswd","user":"alice","pswd":"secret"}`)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 429, frames[0]["code"])
	assert.Equal(t, "tooManyAttempts", frames[0]["reason"])
	assert.InDelta(t, 60, frames[0]["retry_after"], 1)
	assert.Equal(t, "Too many login attempts, try again in 1 minute(s)", frames[0]["message"])
}

func TestDispatch_FloodGuard(t *testing.T) {
	h, d := newTestDispatcher(newFakeAuth(), nil)
	c := NewClient(h, nil, "ip", rate.NewLimiter(rate.Every(time.Hour), 1))
	h.Open(c, "ip")

	frames := roundTrip(t, d, c, `{"cmd":"ping"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "pong", frames[0]["cmd"])

	frames = roundTrip(t, d, c, `{"cmd":"ping"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "rateLimited", frames[0]["reason"])
}
