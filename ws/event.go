// Package ws is the realtime side of the server: the session registry
// (Hub), one Client per WebSocket connection, and the Dispatcher that runs
// protocol commands against an Authenticator.
//
// Flow of a connection:
//  1. Handler upgrades the request, Hub.Open registers an anonymous session
//     and a welcome event is queued.
//  2. Client.ReadPump reads frames one at a time and hands each to the
//     Dispatcher, so one connection's commands run in arrival order.
//  3. Replies and pushed events go through the Client's send queue, drained
//     by Client.WritePump.
//  4. Hub.Close (disconnect, ban, deletion, expiry) removes the session and
//     closes the queue; WritePump then closes the socket.
package ws

import (
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
)

// Pushed event names.
const (
	CmdWelcome        = "welcome"
	CmdNewPost        = "new_post"
	CmdAuthRequired   = "auth_required"
	CmdAccountDeleted = "account_deleted"
	CmdSessionExpired = "session_expired"
	CmdSessionRevoked = "session_revoked"
	CmdBanned         = "banned"
	CmdPong           = "pong"
)

// Event is a server-initiated frame.
type Event struct {
	Cmd          string           `json:"cmd"`
	InstanceName string           `json:"instance_name,omitempty"`
	Post         *models.FeedPost `json:"post,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Until        *int64           `json:"until,omitempty"` // unix ms, banned events only
	Message      string           `json:"message,omitempty"`
}

// Response answers one inbound command.
type Response struct {
	Cmd     string      `json:"cmd,omitempty"`
	Error   bool        `json:"error"`
	Code    int         `json:"code"`
	Reason  string      `json:"reason,omitempty"`
	User    string      `json:"user,omitempty"`
	Display string      `json:"display,omitempty"`
	Token   string      `json:"token,omitempty"`
	UUID    string      `json:"uuid,omitempty"`
	Role    models.Role `json:"role,omitempty"`
	Avatar  string      `json:"avatar,omitempty"`

	// Set on tooManyAttempts only.
	RetryAfter int    `json:"retry_after,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorResponse renders err as {error:true, code, reason}.
func ErrorResponse(err error) Response {
	return Response{Error: true, Code: pkg.StatusOf(err), Reason: pkg.ReasonOf(err)}
}

func loginResponse(cmd string, u *models.User, withRole bool) Response {
	resp := Response{
		Cmd:     cmd,
		Code:    200,
		User:    u.Name,
		Display: u.DisplayName,
		Token:   u.TokenValue(),
		UUID:    u.UUID,
	}
	if withRole {
		resp.Role = u.Role
	}
	return resp
}
