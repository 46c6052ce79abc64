// Package apperr classifies lookup failures so callers can tell expected
// outcomes (not found, CAPTCHA exhausted) apart from faults.
package apperr

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindCaptchaExhausted
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindCaptchaExhausted:
		return "captcha_exhausted"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified failure. Err keeps the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	// eris already prefixes the cause with Msg.
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err under kind. The cause is wrapped with eris so the
// stack of the failure site survives into logs.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: eris.Wrap(err, msg)}
}

func NotFound(msg string) error         { return New(KindNotFound, msg) }
func Invalid(msg string) error          { return New(KindInvalid, msg) }
func CaptchaExhausted(msg string) error { return New(KindCaptchaExhausted, msg) }

func Upstream(err error, msg string) error {
	if err == nil {
		return New(KindUpstream, msg)
	}
	return Wrap(err, KindUpstream, msg)
}

// KindOf reports the kind of the outermost classified error in the chain,
// or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalid, KindCaptchaExhausted:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message of a classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// Ensure returns err unchanged when it is already classified and wraps it
// under kind otherwise.
func Ensure(err error, kind Kind, msg string) error {
	var e *Error
	if err == nil || errors.As(err, &e) {
		return err
	}
	return Wrap(err, kind, msg)
}
