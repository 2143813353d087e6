// Package pkg holds utilities shared by every layer: domain errors and the
// JSON response writers.
//
// Errors come in two levels. The class sentinels (ErrNotFound, ErrBanned's
// ErrForbidden, ...) decide the status code. A *Failure carries the
// machine-readable reason string clients see on the wire ("badCode",
// "userExists") and unwraps to its class, so both of these hold:
//
//	errors.Is(err, pkg.ErrBanned)
//	errors.Is(err, pkg.ErrForbidden)
package pkg

import (
	"errors"
	"net/http"
)

// Error classes. Handlers and the protocol dispatcher map them to status
// codes through StatusOf.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
)

// Failure is a client-facing rejection with a stable reason string.
type Failure struct {
	Kind   error
	Reason string
}

// Fail builds a Failure of the given class.
func Fail(kind error, reason string) *Failure {
	return &Failure{Kind: kind, Reason: reason}
}

func (f *Failure) Error() string { return f.Reason }

func (f *Failure) Unwrap() error { return f.Kind }

// Protocol and API rejections.
var (
	ErrBadJSON          = Fail(ErrBadRequest, "badJSON")
	ErrUnknownCommand   = Fail(ErrNotFound, "notFound")
	ErrInvalidRequest   = Fail(ErrBadRequest, "badRequest")
	ErrNotAuthenticated = Fail(ErrUnauthorized, "Unauthorized")

	ErrUsernameTooLong  = Fail(ErrBadRequest, "usernameTooLong")
	ErrUsernameTooShort = Fail(ErrBadRequest, "usernameTooShort")
	ErrReservedName     = Fail(ErrBadRequest, "reservedName")
	ErrBadCode          = Fail(ErrBadRequest, "badCode")
	ErrUserExists       = Fail(ErrAlreadyExists, "userExists")

	ErrUserNotFound        = Fail(ErrNotFound, "userNotFound")
	ErrSystemAccountUseKey = Fail(ErrForbidden, "systemAccountUseKey")
	ErrBanned              = Fail(ErrForbidden, "banned")
	ErrBadPassword         = Fail(ErrBadRequest, "badPswd")

	ErrNotSystemAccount = Fail(ErrNotFound, "userNotFoundOrNotSystem")
	ErrNoSystemKey      = Fail(ErrForbidden, "noSystemKey")
	ErrBadKey           = Fail(ErrBadRequest, "badKey")

	ErrURLTooLong = Fail(ErrBadRequest, "urlTooLong")
	ErrInvalidURL = Fail(ErrBadRequest, "invalidUrl")

	ErrContentEmpty   = Fail(ErrBadRequest, "emptyContent")
	ErrContentTooLong = Fail(ErrBadRequest, "contentTooLong")
	ErrPostNotFound   = Fail(ErrNotFound, "postNotFound")

	ErrInsufficientPermissions = Fail(ErrForbidden, "insufficientPermissions")
	ErrInvalidRole             = Fail(ErrBadRequest, "invalidRole")
	ErrSelfTarget              = Fail(ErrBadRequest, "cannotTargetSelf")
	ErrAlreadyDeleted          = Fail(ErrNotFound, "userDeleted")

	ErrRateLimited     = Fail(ErrTooManyRequests, "rateLimited")
	ErrTooManyAttempts = Fail(ErrTooManyRequests, "tooManyAttempts")

	ErrServer = Fail(ErrInternal, "serverError")
)

// StatusOf maps an error to its HTTP-like status code. Unclassified errors
// are server errors.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ReasonOf returns the wire reason for err. A Failure anywhere in the chain
// wins; bare classes get a generic reason; anything else is "serverError".
func ReasonOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "notFound"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyExists):
		return "alreadyExists"
	case errors.Is(err, ErrBadRequest):
		return "badRequest"
	case errors.Is(err, ErrTooManyRequests):
		return "rateLimited"
	default:
		return ErrServer.Reason
	}
}
