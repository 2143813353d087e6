package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg/credential"
	"github.com/akinalp/maelink/pkg/ratelimit"
	"github.com/akinalp/maelink/repository"
	"github.com/akinalp/maelink/ws"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse"

// published is one call into the recording publisher.
type published struct {
	kind   string // broadcast, anonymous, close_user, close_token
	userID int64
	token  string
	event  ws.Event
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *recordingPublisher) record(c published) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
}

func (p *recordingPublisher) BroadcastToAuthenticatedExcept(excludeUserID int64, event ws.Event) int {
	p.record(published{kind: "broadcast", userID: excludeUserID, event: event})
	return 1
}

func (p *recordingPublisher) SendToAnonymous(event ws.Event) int {
	p.record(published{kind: "anonymous", event: event})
	return 1
}

func (p *recordingPublisher) CloseUserSessions(userID int64, farewell *ws.Event) int {
	c := published{kind: "close_user", userID: userID}
	if farewell != nil {
		c.event = *farewell
	}
	p.record(c)
	return 1
}

func (p *recordingPublisher) CloseTokenSessions(token string, farewell *ws.Event) int {
	c := published{kind: "close_token", token: token}
	if farewell != nil {
		c.event = *farewell
	}
	p.record(c)
	return 1
}

func (p *recordingPublisher) of(kind string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []published
	for _, c := range p.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type testEnv struct {
	db      *database.DB
	users   repository.UserRepository
	posts   repository.PostRepository
	invites repository.InviteRepository
	logs    repository.ActionLogRepository
	pub     *recordingPublisher

	inviteSvc *inviteService
	auth      *authService
	feed      *feedService
	mod       *moderationService
	actionLog *actionLogService
	sweeper   *lifecycleSweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:      db,
		users:   repository.NewSQLiteUserRepo(db.Conn),
		posts:   repository.NewSQLitePostRepo(db.Conn),
		invites: repository.NewSQLiteInviteRepo(db.Conn),
		logs:    repository.NewSQLiteActionLogRepo(db.Conn),
		pub:     &recordingPublisher{},
	}

	authCfg := config.AuthConfig{
		ReservedName:    "system",
		AccountLifetime: 72 * time.Hour,
		DeletionGrace:   7 * 24 * time.Hour,
	}
	audit := NewAuditRecorder(env.logs)
	names := NewNameCache()
	t.Cleanup(names.Close)

	env.inviteSvc = NewInviteService(env.invites, config.InviteConfig{}).(*inviteService)
	env.auth = NewAuthService(db.Conn, env.users, env.inviteSvc, credential.NewHasher(bcrypt.MinCost), audit, authCfg).(*authService)
	env.feed = NewFeedService(env.posts, env.pub, ratelimit.NewPostRateLimiter(3, time.Minute, time.Minute), audit).(*feedService)
	env.mod = NewModerationService(env.users, env.pub, audit, names, authCfg).(*moderationService)
	env.actionLog = NewActionLogService(env.logs, env.users, names).(*actionLogService)
	env.sweeper = NewLifecycleSweeper(env.users, env.pub, audit, env.inviteSvc, nil, names, config.SweepConfig{
		LifecycleInterval: time.Hour,
		NudgeInterval:     time.Hour,
		PassTimeout:       5 * time.Second,
	}).(*lifecycleSweeper)
	return env
}

func (e *testEnv) seedCode(t *testing.T, value string) {
	t.Helper()
	require.NoError(t, e.invites.Create(context.Background(), &models.InviteCode{Value: value}))
}

// register creates name with a fresh code and returns the stored account.
func (e *testEnv) register(t *testing.T, name string) *models.User {
	t.Helper()
	code := "CODE-" + name
	e.seedCode(t, code)
	u, err := e.auth.Register(context.Background(), name, testPassword, code, "")
	require.NoError(t, err)
	return u
}

func (e *testEnv) registerAs(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := e.register(t, name)
	require.NoError(t, e.users.UpdateRole(context.Background(), u.ID, role))
	u.Role = role
	return u
}

func (e *testEnv) countLogs(t *testing.T, action models.Action, targetID int64) int {
	t.Helper()
	var n int
	err := e.db.Conn.QueryRow(`SELECT COUNT(*) FROM action_logs WHERE action = ? AND target_user_id = ?`,
		string(action), targetID).Scan(&n)
	require.NoError(t, err)
	return n
}

// at pins every service clock to now.
func (e *testEnv) at(now time.Time) {
	clock := func() time.Time { return now }
	e.auth.now = clock
	e.feed.now = clock
	e.mod.now = clock
	e.inviteSvc.now = clock
	e.sweeper.now = clock
}
