package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/pkg/ratelimit"
)

// Authenticator is the slice of the auth service the protocol needs. It is
// declared here rather than imported from services to keep ws free of a
// dependency on services (services already imports ws for EventPublisher).
type Authenticator interface {
	// Register consumes code and creates the account, returning it with a
	// fresh token.
	Register(ctx context.Context, name, password, code, displayName string) (*models.User, error)
	LoginPassword(ctx context.Context, name, password string) (*models.User, error)
	// LoginToken serves both login_token and provide_token.
	LoginToken(ctx context.Context, token string) (*models.User, error)
	// LoginSystemKey rotates the token and also returns the previous one so
	// sessions still holding it can be revoked.
	LoginSystemKey(ctx context.Context, name, key string) (user *models.User, previousToken string, err error)
	SetAvatar(ctx context.Context, userID int64, url string) (string, error)
}

// Dispatcher runs protocol commands for a connection. It is stateless apart
// from its collaborators, so one instance serves every Client.
type Dispatcher struct {
	hub          *Hub
	auth         Authenticator
	loginLimiter *ratelimit.LoginRateLimiter
	timeout      time.Duration
}

// NewDispatcher, constructor. loginLimiter may be nil; timeout <= 0 means
// no per-command deadline.
func NewDispatcher(hub *Hub, auth Authenticator, loginLimiter *ratelimit.LoginRateLimiter, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		hub:          hub,
		auth:         auth,
		loginLimiter: loginLimiter,
		timeout:      timeout,
	}
}

// Dispatch handles one inbound frame from c. Send failures are ignored: a
// client that went away simply misses its reply.
func (d *Dispatcher) Dispatch(c *Client, raw []byte) {
	if !c.allow() {
		d.reply(c, ErrorResponse(pkg.ErrRateLimited))
		return
	}

	cmd, err := ParseCommand(raw)
	if err != nil {
		d.reply(c, ErrorResponse(err))
		return
	}
	if err := cmd.Validate(); err != nil {
		d.reply(c, ErrorResponse(err))
		return
	}

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var resp *Response
	switch v := cmd.(type) {
	case *ClientInfo:
		resp = d.clientInfo(c, v)
	case *Reg:
		resp = d.register(ctx, c, v)
	case *LoginPswd:
		resp = d.loginPassword(ctx, c, v)
	case *LoginToken:
		resp = d.loginToken(ctx, c, v.Token, true)
	case *ProvideToken:
		resp = d.loginToken(ctx, c, v.Token, false)
	case *LoginSyskey:
		resp = d.loginSystemKey(ctx, c, v)
	case *SetAvatar:
		resp = d.setAvatar(ctx, c, v)
	case Ping:
		resp = &Response{Cmd: CmdPong, Code: http.StatusOK}
	}

	if resp != nil {
		d.reply(c, *resp)
	}
}

func (d *Dispatcher) reply(c *Client, resp Response) {
	d.hub.Send(c, resp)
}

// fail converts err into a reply, logging only unexpected failures.
func (d *Dispatcher) fail(cmd string, err error) *Response {
	resp := ErrorResponse(err)
	if resp.Code == http.StatusInternalServerError {
		log.Printf("[ws] %s failed: %v", cmd, err)
	}
	return &resp
}

func (d *Dispatcher) clientInfo(c *Client, v *ClientInfo) *Response {
	version := v.Version
	if version == "" {
		version = "unknown"
	}
	d.hub.SetClientInfo(c, v.Client, version, v.Token)
	return &Response{Code: http.StatusOK, Reason: "clientInfoUpdated"}
}

func (d *Dispatcher) register(ctx context.Context, c *Client, v *Reg) *Response {
	user, err := d.auth.Register(ctx, v.User, v.Pswd, v.Code, v.DisplayName)
	if err != nil {
		return d.fail(CmdReg, err)
	}
	d.hub.Bind(c, user)
	resp := loginResponse(CmdReg, user, false)
	return &resp
}

func (d *Dispatcher) allowLogin(c *Client) bool {
	return d.loginLimiter == nil || d.loginLimiter.Allow(c.remoteAddr)
}

// throttled answers a login attempt refused by the limiter.
func (d *Dispatcher) throttled(c *Client) *Response {
	resp := ErrorResponse(pkg.ErrTooManyAttempts)
	resp.RetryAfter = d.loginLimiter.RetryAfterSeconds(c.remoteAddr)
	resp.Message = "Too many login attempts, try again in " + ratelimit.FormatRetryMessage(resp.RetryAfter)
	return &resp
}

func (d *Dispatcher) loginSucceeded(c *Client) {
	if d.loginLimiter != nil {
		d.loginLimiter.Reset(c.remoteAddr)
	}
}

func (d *Dispatcher) loginPassword(ctx context.Context, c *Client, v *LoginPswd) *Response {
	if !d.allowLogin(c) {
		return d.throttled(c)
	}
	user, err := d.auth.LoginPassword(ctx, v.User, v.Pswd)
	if err != nil {
		return d.fail(CmdLoginPswd, err)
	}
	d.loginSucceeded(c)
	d.hub.Bind(c, user)
	resp := loginResponse(CmdLoginPswd, user, true)
	return &resp
}

// loginToken binds on success. provide_token (reply=false) answers only
// failures.
func (d *Dispatcher) loginToken(ctx context.Context, c *Client, token string, reply bool) *Response {
	cmd := CmdLoginToken
	if !reply {
		cmd = CmdProvideToken
	}

	user, err := d.auth.LoginToken(ctx, token)
	if err != nil {
		return d.fail(cmd, err)
	}
	d.hub.Bind(c, user)
	if !reply {
		return nil
	}
	resp := loginResponse(cmd, user, true)
	return &resp
}

func (d *Dispatcher) loginSystemKey(ctx context.Context, c *Client, v *LoginSyskey) *Response {
	if !d.allowLogin(c) {
		return d.throttled(c)
	}
	user, previous, err := d.auth.LoginSystemKey(ctx, v.User, v.Key)
	if err != nil {
		return d.fail(CmdLoginSyskey, err)
	}
	d.loginSucceeded(c)

	// Bind first so this connection already holds the new token and is not
	// caught by the revocation below.
	d.hub.Bind(c, user)
	if previous != "" && previous != user.TokenValue() {
		d.hub.CloseTokenSessions(previous, &Event{Cmd: CmdSessionRevoked, Reason: "tokenRotated"})
	}

	resp := loginResponse(CmdLoginSyskey, user, true)
	return &resp
}

func (d *Dispatcher) setAvatar(ctx context.Context, c *Client, v *SetAvatar) *Response {
	session, ok := d.hub.Session(c)
	if !ok || !session.Authenticated() {
		return d.fail(CmdSetAvatar, pkg.ErrNotAuthenticated)
	}

	avatar, err := d.auth.SetAvatar(ctx, session.UserID, v.URL)
	if err != nil {
		return d.fail(CmdSetAvatar, err)
	}
	d.hub.SetAvatar(c, avatar)
	return &Response{Cmd: CmdSetAvatar, Code: http.StatusOK, Avatar: avatar}
}
