package protocol

import "errors"

// Wire error codes carried in the "error" field of a failure response.
const (
	CodeDuplicateUsername  = "duplicateUsername"
	CodeInvalidCredentials = "invalidCredentials"
	CodeAlreadyOnline      = "alreadyOnline"
	CodeNotFound           = "notFound"
	CodeUnauthenticated    = "unauthenticated"
	CodePermissionDenied   = "permissionDenied"
)

// Sentinel errors for the wire taxonomy. Handlers return these and the
// dispatch layer translates them into failure responses via CodeForError.
var (
	ErrDuplicateUsername  = errors.New("duplicate username")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyOnline      = errors.New("already online")
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrPermissionDenied   = errors.New("permission denied")
)

// CodeForError maps a handler error onto its wire code. Unrecognized errors
// map to the empty string; callers treat that as an internal failure and
// drop the message rather than invent a code.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		return CodeDuplicateUsername
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrAlreadyOnline):
		return CodeAlreadyOnline
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	default:
		return ""
	}
}
