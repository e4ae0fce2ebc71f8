package api

import (
	"errors"
	nethttp "net/http"

	"github.com/telegram-files/tfsync/internal/http"
)

// ErrNotAccepted is returned when the backend rejects a download-control
// request (start, start multiple, cancel, pause).
var ErrNotAccepted = errors.New("request not accepted")

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *http.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend, e.g. an unknown
// chat or account.
func IsNotFound(err error) bool {
	return StatusCode(err) == nethttp.StatusNotFound
}
