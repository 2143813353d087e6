package handlers

import (
	"net/http"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/services"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	moderation services.ModerationService
}

// NewAccountHandler, constructor.
func NewAccountHandler(moderation services.ModerationService) *AccountHandler {
	return &AccountHandler{moderation: moderation}
}

// Me godoc
// GET /api/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}
	pkg.JSON(w, http.StatusOK, models.MeFromUser(user))
}

// Delete godoc
// DELETE /api/account?user=&uuid=&instant=
//
// Without a target the caller's own account is scheduled for deletion.
// Moderators may name another account; instant=true sanitizes it now.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	q := r.URL.Query()
	target := models.TargetRef{
		User: q.Get("user"),
		Name: q.Get("name"),
		UUID: q.Get("uuid"),
	}

	scheduled, err := h.moderation.RequestDeletion(r.Context(), actor, target, queryBool(r, "instant"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	resp := models.AccountDeletionResponse{Success: true}
	if scheduled != nil {
		ms := scheduled.UnixMilli()
		resp.DeletionScheduledAt = &ms
	}
	pkg.JSON(w, http.StatusOK, resp)
}
