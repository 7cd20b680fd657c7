package listenbrainz

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an error response from the ListenBrainz API.
//
// ListenBrainz answers failed requests with a JSON body of the form
// {"code": 400, "error": "..."}. When the body cannot be decoded, Code
// carries the HTTP status and Message the status text.
type Error struct {
	Code    int    // HTTP status code reported by the server
	Message string // Error message from ListenBrainz
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("listenbrainz: error %d: %s", e.Code, e.Message)
}

// Is checks if the target error is a ListenBrainz error with the same code.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Temporary returns true if the server indicated a transient condition:
// rate limiting (429) or any 5xx status.
//
// The client never retries on its own; callers decide what to do.
func (e *Error) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Unauthorized returns true if the token was rejected.
func (e *Error) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized
}

// Predefined errors for common cases.
var (
	// ErrNoToken is returned when an operation requires a user token
	// but none has been configured.
	ErrNoToken = errors.New("listenbrainz: user token required")

	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = errors.New("listenbrainz: invalid configuration")

	// ErrInvalidListen is returned when a listen lacks required metadata.
	ErrInvalidListen = errors.New("listenbrainz: invalid listen")
)

// IsTemporary reports whether err wraps a temporary *Error.
func IsTemporary(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return false
}
