package ws

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
)

// Inbound command names.
const (
	CmdClientInfo   = "client_info"
	CmdReg          = "reg"
	CmdLoginPswd    = "login_pswd"
	CmdLoginToken   = "login_token"
	CmdProvideToken = "provide_token"
	CmdLoginSyskey  = "login_syskey"
	CmdSetAvatar    = "set_avatar"
	CmdPing         = "ping"
)

// MaxAvatarURLLength bounds set_avatar urls.
const MaxAvatarURLLength = 512

// Command is one of the closed set of inbound variants below. Validate
// checks required fields and static limits; store-dependent checks happen in
// the Authenticator.
type Command interface {
	Name() string
	Validate() error
}

// ClientInfo records which client software is connected.
type ClientInfo struct {
	Client  string `json:"client"`
	Version string `json:"version"`
	Token   string `json:"token"`
}

// Reg registers an account with an invite code.
type Reg struct {
	User        string `json:"user"`
	Pswd        string `json:"pswd"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// LoginPswd authenticates with name and password.
type LoginPswd struct {
	User string `json:"user"`
	Pswd string `json:"pswd"`
}

// LoginToken authenticates with a bearer token and answers with the
// account details.
type LoginToken struct {
	Token string `json:"token"`
}

// ProvideToken binds the session to a bearer token without a success reply.
type ProvideToken struct {
	Token string `json:"token"`
}

// LoginSyskey authenticates a system account with its key.
type LoginSyskey struct {
	User string `json:"user"`
	Key  string `json:"key"`
}

// SetAvatar changes the bound user's avatar URL.
type SetAvatar struct {
	URL string `json:"url"`
}

// Ping is a keepalive.
type Ping struct{}

func (ClientInfo) Name() string   { return CmdClientInfo }
func (Reg) Name() string          { return CmdReg }
func (LoginPswd) Name() string    { return CmdLoginPswd }
func (LoginToken) Name() string   { return CmdLoginToken }
func (ProvideToken) Name() string { return CmdProvideToken }
func (LoginSyskey) Name() string  { return CmdLoginSyskey }
func (SetAvatar) Name() string    { return CmdSetAvatar }
func (Ping) Name() string         { return CmdPing }

func (c ClientInfo) Validate() error {
	if strings.TrimSpace(c.Client) == "" {
		return pkg.ErrInvalidRequest
	}
	return nil
}

func (c Reg) Validate() error {
	if c.User == "" || c.Pswd == "" || c.Code == "" {
		return pkg.ErrInvalidRequest
	}
	n := utf8.RuneCountInString(c.User)
	if n > models.MaxNameLength {
		return pkg.ErrUsernameTooLong
	}
	if n < models.MinNameLength {
		return pkg.ErrUsernameTooShort
	}
	return nil
}

func (c LoginPswd) Validate() error {
	if c.User == "" || c.Pswd == "" {
		return pkg.ErrInvalidRequest
	}
	return nil
}

func (c LoginToken) Validate() error {
	if c.Token == "" {
		return pkg.ErrInvalidRequest
	}
	return nil
}

func (c ProvideToken) Validate() error {
	if c.Token == "" {
		return pkg.ErrInvalidRequest
	}
	return nil
}

func (c LoginSyskey) Validate() error {
	if c.User == "" || c.Key == "" {
		return pkg.ErrInvalidRequest
	}
	return nil
}

func (c SetAvatar) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return pkg.ErrInvalidRequest
	}
	return nil
}

func (Ping) Validate() error { return nil }

// ParseCommand decodes a frame into its variant. Frames that are not JSON
// objects, or whose fields have the wrong types, fail with pkg.ErrBadJSON;
// an unknown cmd fails with pkg.ErrUnknownCommand.
func ParseCommand(raw []byte) (Command, error) {
	var envelope struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, pkg.ErrBadJSON
	}

	var cmd Command
	switch envelope.Cmd {
	case CmdClientInfo:
		cmd = &ClientInfo{}
	case CmdReg:
		cmd = &Reg{}
	case CmdLoginPswd:
		cmd = &LoginPswd{}
	case CmdLoginToken:
		cmd = &LoginToken{}
	case CmdProvideToken:
		cmd = &ProvideToken{}
	case CmdLoginSyskey:
		cmd = &LoginSyskey{}
	case CmdSetAvatar:
		cmd = &SetAvatar{}
	case CmdPing:
		return Ping{}, nil
	default:
		return nil, pkg.ErrUnknownCommand
	}

	if err := json.Unmarshal(raw, cmd); err != nil {
		return nil, pkg.ErrBadJSON
	}
	return cmd, nil
}
