package handlers

import (
	"net/http"

	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/services"
)

// ActionLogHandler serves the audit trail to moderators.
type ActionLogHandler struct {
	logs services.ActionLogService
}

// NewActionLogHandler, constructor.
func NewActionLogHandler(logs services.ActionLogService) *ActionLogHandler {
	return &ActionLogHandler{logs: logs}
}

// List godoc
// GET /api/actionlogs?action=&actor=&target=&since=&until=&limit=&page=
func (h *ActionLogHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.Error(w, pkg.ErrNotAuthenticated)
		return
	}

	q := r.URL.Query()
	query := models.ActionLogQuery{
		Action: q.Get("action"),
		Actor:  q.Get("actor"),
		Target: q.Get("target"),
	}

	var valid [4]bool
	query.Since, valid[0] = queryTime(r, "since")
	query.Until, valid[1] = queryTime(r, "until")
	query.Limit, valid[2] = queryInt(r, "limit")
	query.Page, valid[3] = queryInt(r, "page")
	for _, v := range valid {
		if !v {
			pkg.Error(w, pkg.ErrInvalidRequest)
			return
		}
	}

	resp, err := h.logs.List(r.Context(), actor, query)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, resp)
}
