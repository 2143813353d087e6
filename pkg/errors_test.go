package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureUnwrapsToClass(t *testing.T) {
	assert.ErrorIs(t, ErrBanned, ErrForbidden)
	assert.ErrorIs(t, ErrUserExists, ErrAlreadyExists)
	assert.ErrorIs(t, ErrBadCode, ErrBadRequest)

	wrapped := fmt.Errorf("registering: %w", ErrBadCode)
	assert.ErrorIs(t, wrapped, ErrBadCode)
	assert.Equal(t, "badCode", ReasonOf(wrapped))
}

func TestStatusAndReason(t *testing.T) {
	tests := []struct {
		err    error
		status int
		reason string
	}{
		{ErrBadJSON, 400, "badJSON"},
		{ErrUnknownCommand, 404, "notFound"},
		{ErrNotAuthenticated, 401, "Unauthorized"},
		{ErrBanned, 403, "banned"},
		{ErrUserExists, 409, "userExists"},
		{ErrRateLimited, 429, "rateLimited"},
		{ErrServer, 500, "serverError"},
		{ErrNotFound, 404, "notFound"},
		{fmt.Errorf("%w: details", ErrBadRequest), 400, "badRequest"},
		{errors.New("disk on fire"), 500, "serverError"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusOf(tt.err))
			assert.Equal(t, tt.reason, ReasonOf(tt.err))
		})
	}
}

func TestErrorWritesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, ErrInsufficientPermissions)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorBody{Error: true, Code: 403, Reason: "insufficientPermissions"}, body)
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
