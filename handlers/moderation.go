package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/services"
)

// ModerationHandler serves ban, unban and role assignment. The role rules
// are enforced by ModerationService.
type ModerationHandler struct {
	moderation services.ModerationService
}

// NewModerationHandler, constructor.
func NewModerationHandler(moderation services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// Ban godoc
// POST /api/ban
// Body {user|name|uuid, until?|days?, reason?}. Without until or days the
// ban is permanent.
func (h *ModerationHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	var req models.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.Error(w, pkg.ErrBadJSON)
		return
	}

	if err := h.moderation.Ban(r.Context(), actor, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.OK(w)
}

// Unban godoc
// POST /api/unban
func (h *ModerationHandler) Unban(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	var req models.TargetRef
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.Error(w, pkg.ErrBadJSON)
		return
	}

	if err := h.moderation.Unban(r.Context(), actor, req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.OK(w)
}

// SetPermissions godoc
// POST /api/permissions
// Body {user|name|uuid, role}.
func (h *ModerationHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	var req models.PermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.Error(w, pkg.ErrBadJSON)
		return
	}

	if err := h.moderation.SetRole(r.Context(), actor, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.OK(w)
}
