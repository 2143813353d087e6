package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/akinalp/maelink/models"
)

// EventPublisher is what the service layer needs from the registry: push
// events and force disconnects. Services depend on this interface, not on
// *Hub, and tests substitute a recorder.
type EventPublisher interface {
	// BroadcastToAuthenticatedExcept queues event for every bound session
	// whose user is not excludeUserID. Returns the number of recipients.
	BroadcastToAuthenticatedExcept(excludeUserID int64, event Event) int
	// SendToAnonymous queues event for every unbound session.
	SendToAnonymous(event Event) int
	// CloseUserSessions closes every session bound to userID, queueing
	// farewell first when non-nil.
	CloseUserSessions(userID int64, farewell *Event) int
	// CloseTokenSessions closes every session bound to token.
	CloseTokenSessions(token string, farewell *Event) int
}

// Hub is the session registry: one Session per open connection, guarded by
// a single RWMutex.
//
// A client's send channel is only written while holding at least the read
// lock and after checking membership, and it is only closed under the write
// lock right after removal. That pairing is what makes a send on a closed
// channel impossible.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Client]*Session
	now      func() time.Time
}

// NewHub, constructor.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Client]*Session),
		now:      time.Now,
	}
}

// Open registers c as an anonymous session.
func (h *Hub) Open(c *Client, remoteAddr string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[c] = &Session{RemoteAddr: remoteAddr, ConnectedAt: h.now()}
}

// Close removes c and closes its send queue. Safe to call repeatedly and
// from any goroutine.
func (h *Hub) Close(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeLocked(c)
}

func (h *Hub) closeLocked(c *Client) bool {
	if _, ok := h.sessions[c]; !ok {
		return false
	}
	delete(h.sessions, c)
	close(c.send)
	return true
}

// Bind attaches u to c's session. Returns false when c has already been
// closed; the login result is then discarded.
func (h *Hub) Bind(c *Client, u *models.User) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[c]
	if !ok {
		return false
	}
	s.bind(u)
	return true
}

// SetClientInfo records the client software on c's session.
func (h *Hub) SetClientInfo(c *Client, name, version, tokenHint string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[c]
	if !ok {
		return false
	}
	s.ClientName = name
	s.ClientVersion = version
	s.ClientToken = tokenHint
	return true
}

// SetAvatar updates the cached avatar of c's session.
func (h *Hub) SetAvatar(c *Client, url string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[c]
	if !ok {
		return false
	}
	s.Avatar = url
	return true
}

// Session returns a copy of c's session.
func (h *Hub) Session(c *Client) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[c]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Count returns the number of open and of authenticated sessions.
func (h *Hub) Count() (total, authenticated int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		if s.Authenticated() {
			authenticated++
		}
	}
	return len(h.sessions), authenticated
}

// Send queues v (marshalled to JSON) for c. It never blocks: a full queue
// means the client stopped reading and the connection is dropped. Failures
// are reported, never raised.
func (h *Hub) Send(c *Client, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] failed to marshal frame: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.sessions[c]; !ok {
		return false
	}
	return h.enqueueLocked(c, data)
}

// enqueueLocked needs at least the read lock and a registered c.
func (h *Hub) enqueueLocked(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("[ws] send queue full, dropping connection %s", c.remoteAddr)
		go h.Close(c)
		return false
	}
}

func (h *Hub) broadcast(event Event, match func(*Session) bool) int {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Cmd, err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c, s := range h.sessions {
		if match(s) && h.enqueueLocked(c, data) {
			sent++
		}
	}
	return sent
}

func (h *Hub) BroadcastToAuthenticatedExcept(excludeUserID int64, event Event) int {
	return h.broadcast(event, func(s *Session) bool {
		return s.Authenticated() && s.UserID != excludeUserID
	})
}

func (h *Hub) SendToAnonymous(event Event) int {
	return h.broadcast(event, func(s *Session) bool {
		return !s.Authenticated()
	})
}

func (h *Hub) closeMatching(farewell *Event, match func(*Session) bool) int {
	var data []byte
	if farewell != nil {
		var err error
		if data, err = json.Marshal(farewell); err != nil {
			log.Printf("[ws] failed to marshal %s event: %v", farewell.Cmd, err)
			data = nil
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for c, s := range h.sessions {
		if !match(s) {
			continue
		}
		if data != nil {
			// Buffered frames are still drained by WritePump after close.
			select {
			case c.send <- data:
			default:
			}
		}
		if h.closeLocked(c) {
			closed++
		}
	}
	return closed
}

func (h *Hub) CloseUserSessions(userID int64, farewell *Event) int {
	if userID == 0 {
		return 0
	}
	return h.closeMatching(farewell, func(s *Session) bool { return s.UserID == userID })
}

func (h *Hub) CloseTokenSessions(token string, farewell *Event) int {
	if token == "" {
		return 0
	}
	return h.closeMatching(farewell, func(s *Session) bool { return s.Token == token })
}

// Shutdown closes every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.sessions {
		h.closeLocked(c)
	}
	log.Println("[ws] hub shut down, all connections closed")
}
