package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/akinalp/maelink/pkg/ratelimit"
)

// upgrader accepts any origin: clients are native apps and third-party
// web frontends.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler accepts WebSocket connections on any path. Connections start
// anonymous; authentication happens through protocol commands.
type Handler struct {
	hub          *Hub
	dispatcher   *Dispatcher
	instanceName string
	ips          *ratelimit.IPResolver
	perSecond    float64
	burst        int
}

// NewHandler, constructor. ips decides which address the login limiter
// keys on and may be nil. perSecond <= 0 disables the flood guard.
func NewHandler(hub *Hub, dispatcher *Dispatcher, instanceName string, ips *ratelimit.IPResolver, perSecond float64, burst int) *Handler {
	return &Handler{
		hub:          hub,
		dispatcher:   dispatcher,
		instanceName: instanceName,
		ips:          ips,
		perSecond:    perSecond,
		burst:        burst,
	}
}

// ServeHTTP upgrades the request, registers the session, greets the client
// and runs the pumps. It blocks until the connection ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusNotImplemented)
		return
	}

	ip := h.ips.ClientIP(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for %s: %v", ip, err)
		return
	}

	var limiter *rate.Limiter
	if h.perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.perSecond), h.burst)
	}

	client := NewClient(h.hub, conn, ip, limiter)
	h.hub.Open(client, ip)
	h.hub.Send(client, Event{Cmd: CmdWelcome, InstanceName: h.instanceName})

	go client.WritePump()
	client.ReadPump(h.dispatcher)
}
