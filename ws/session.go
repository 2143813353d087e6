package ws

import (
	"time"

	"github.com/akinalp/maelink/models"
)

// Session is the registry's view of one connection. The zero user fields
// mean the connection is anonymous.
type Session struct {
	UserID      int64
	Name        string
	DisplayName string
	UUID        string
	Token       string
	Role        models.Role
	Avatar      string

	ClientName    string
	ClientVersion string
	ClientToken   string // token hint sent with client_info

	RemoteAddr  string
	ConnectedAt time.Time
}

// Authenticated reports whether the session is bound to an account.
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

func (s *Session) bind(u *models.User) {
	s.UserID = u.ID
	s.Name = u.Name
	s.DisplayName = u.DisplayName
	s.UUID = u.UUID
	s.Token = u.TokenValue()
	s.Role = u.Role
	s.Avatar = u.AvatarValue()
}
