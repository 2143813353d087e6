package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg/cache"
	"github.com/akinalp/maelink/pkg/ratelimit"
	"github.com/akinalp/maelink/repository"
	"github.com/akinalp/maelink/ws"
)

// NudgeMessage is sent to connections that have not authenticated yet.
const NudgeMessage = "Please log in or register to continue."

// LifecycleSweeper reconciles persisted account state with live sessions.
//
// The lifecycle tick runs, in order:
//   - expiry: revoke tokens whose expires_at passed and close their sessions
//   - bans: close any session still bound to a banned account
//   - deletion: sanitize accounts whose deletion date passed
//   - invite housekeeping: drop expired codes, refill the pool
//
// The nudge tick reminds anonymous sessions to authenticate and prunes the
// post limiter. Every pass recovers and logs its own failures; one failing
// pass never stops the others or the loops.
type LifecycleSweeper interface {
	Start()
	Stop()
}

type lifecycleSweeper struct {
	users       repository.UserRepository
	hub         ws.EventPublisher
	audit       AuditRecorder
	invites     InviteService
	postLimiter *ratelimit.PostRateLimiter
	names       *cache.TTLCache[int64, string]
	cfg         config.SweepConfig
	now         func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewLifecycleSweeper, constructor. postLimiter and names may be nil.
func NewLifecycleSweeper(
	users repository.UserRepository,
	hub ws.EventPublisher,
	audit AuditRecorder,
	invites InviteService,
	postLimiter *ratelimit.PostRateLimiter,
	names *cache.TTLCache[int64, string],
	cfg config.SweepConfig,
) LifecycleSweeper {
	return &lifecycleSweeper{
		users:       users,
		hub:         hub,
		audit:       audit,
		invites:     invites,
		postLimiter: postLimiter,
		names:       names,
		cfg:         cfg,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Start launches both loops. main calls it once after wiring.
func (s *lifecycleSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("[sweep] starting (lifecycle=%s, nudge=%s)", s.cfg.LifecycleInterval, s.cfg.NudgeInterval)

	s.wg.Add(2)
	go s.loop(s.cfg.LifecycleInterval, s.lifecycleTick)
	go s.loop(s.cfg.NudgeInterval, s.nudgeTick)
}

// Stop ends both loops and waits for a running pass to finish.
func (s *lifecycleSweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopCh)
		s.mu.Unlock()
	})
	s.wg.Wait()
	log.Println("[sweep] stopped")
}

func (s *lifecycleSweeper) loop(interval time.Duration, tick func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick()
		case <-s.stopCh:
			return
		}
	}
}

func (s *lifecycleSweeper) lifecycleTick() {
	s.runPass("expiry", s.expiryPass)
	s.runPass("bans", s.banPass)
	s.runPass("deletion", s.deletionPass)
	s.runPass("invites", s.invitePass)
}

func (s *lifecycleSweeper) nudgeTick() {
	s.runPass("nudge", s.nudgePass)
}

// runPass isolates one pass: its own deadline, its error logged, a panic
// recovered.
func (s *lifecycleSweeper) runPass(name string, pass func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[sweep] %s pass panicked: %v", name, r)
		}
	}()

	ctx := context.Background()
	if s.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PassTimeout)
		defer cancel()
	}

	if err := pass(ctx); err != nil {
		log.Printf("[sweep] %s pass failed: %v", name, err)
	}
}

// expiryPass revokes every token past its expires_at and closes the
// sessions bound to it. The account itself stays; a password login issues
// a new token.
func (s *lifecycleSweeper) expiryPass(ctx context.Context) error {
	expired, err := s.users.ListExpired(ctx, s.now().UTC())
	if err != nil {
		return err
	}

	for i := range expired {
		u := &expired[i]
		token := u.TokenValue()
		if token == "" {
			continue
		}

		if _, err := s.users.ExpireToken(ctx, u.ID, token); err != nil {
			log.Printf("[sweep] failed to expire token of %s: %v", u.Name, err)
			continue
		}
		// Close even when the token was replaced concurrently: the old one
		// is dead either way.
		if n := s.hub.CloseTokenSessions(token, &ws.Event{Cmd: ws.CmdSessionExpired}); n > 0 {
			log.Printf("[sweep] %s expired, closed %d sessions", u.Name, n)
		}
	}
	return nil
}

// banPass evicts sessions that bound to a banned account after the ban
// closed the account's sessions, such as a token login already in flight.
func (s *lifecycleSweeper) banPass(ctx context.Context) error {
	now := s.now().UTC()
	banned, err := s.users.ListBanned(ctx, now)
	if err != nil {
		return err
	}

	for i := range banned {
		u := &banned[i]
		event := &ws.Event{Cmd: ws.CmdBanned}
		if u.BanReason != nil {
			event.Reason = *u.BanReason
		}
		if u.BannedUntil != nil {
			ms := u.BannedUntil.UnixMilli()
			event.Until = &ms
		}
		if n := s.hub.CloseUserSessions(u.ID, event); n > 0 {
			log.Printf("[sweep] %s is banned, closed %d sessions", u.Name, n)
		}
	}
	return nil
}

// deletionPass applies due deletions. The sanitize update re-checks the
// schedule, so a login that cancelled it after the listing wins.
func (s *lifecycleSweeper) deletionPass(ctx context.Context) error {
	now := s.now().UTC()
	due, err := s.users.ListDeletionDue(ctx, now)
	if err != nil {
		return err
	}

	for i := range due {
		u := &due[i]

		changed, err := s.users.Sanitize(ctx, u.ID, sanitizationOf(u, now, nil), true)
		if err != nil {
			log.Printf("[sweep] failed to delete %s: %v", u.Name, err)
			continue
		}
		if !changed {
			continue
		}
		forgetName(s.names, u.ID)

		s.audit.Record(ctx, nil, idPtr(u.ID), models.ActionAppliedDeletion, s.deletionDetails(ctx, u))
		s.hub.CloseUserSessions(u.ID, &ws.Event{Cmd: ws.CmdAccountDeleted})
		log.Printf("[sweep] deleted account %s", u.Name)
	}
	return nil
}

func (s *lifecycleSweeper) deletionDetails(ctx context.Context, u *models.User) string {
	by := u.DeletionInitiatedBy
	switch {
	case by == nil:
		return fmt.Sprintf("scheduled deletion of %s applied", u.Name)
	case *by == u.ID:
		return fmt.Sprintf("self-requested deletion of %s applied", u.Name)
	}

	initiator := fmt.Sprintf("user %d", *by)
	if names, err := s.users.NamesByIDs(ctx, []int64{*by}); err == nil {
		if name, ok := names[*by]; ok {
			initiator = name
		}
	}
	return fmt.Sprintf("deletion of %s requested by %s applied", u.Name, initiator)
}

func (s *lifecycleSweeper) invitePass(ctx context.Context) error {
	purged, err := s.invites.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("[sweep] purged %d expired invite codes", purged)
	}
	return s.invites.Replenish(ctx)
}

func (s *lifecycleSweeper) nudgePass(context.Context) error {
	s.hub.SendToAnonymous(ws.Event{Cmd: ws.CmdAuthRequired, Message: NudgeMessage})
	s.postLimiter.Sweep()
	return nil
}
