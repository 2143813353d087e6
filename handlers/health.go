package handlers

import (
	"net/http"

	"github.com/akinalp/maelink/pkg"
)

// SessionCounter is satisfied by *ws.Hub.
type SessionCounter interface {
	Count() (total, authenticated int)
}

// HealthHandler reports liveness and the number of open connections.
type HealthHandler struct {
	sessions SessionCounter
}

// NewHealthHandler, constructor.
func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

type healthResponse struct {
	Status        string `json:"status"`
	Sessions      int    `json:"sessions"`
	Authenticated int    `json:"authenticated"`
}

// Check godoc
// GET /api/health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	total, authed := h.sessions.Count()
	pkg.JSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: total, Authenticated: authed})
}
