package transport

import (
	"errors"
	"fmt"
)

var errSessionClosed = errors.New("session closed")

// Error is returned for network failures and non-2xx responses.
type Error struct {
	Method string
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by a transport error, or 0.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
