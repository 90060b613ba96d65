package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can react without parsing messages.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindAccessDenied     ErrorKind = "access_denied"
	KindRateLimited      ErrorKind = "rate_limited"
	KindTransient        ErrorKind = "transient"
	KindProtocolError    ErrorKind = "protocol_error"
	KindEmptyAlbum       ErrorKind = "empty_album"
	KindSourceUnreadable ErrorKind = "source_unreadable"
	KindUnclassified     ErrorKind = "unclassified"
)

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAccessDenied     = &Error{Kind: KindAccessDenied}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrProtocol         = &Error{Kind: KindProtocolError}
	ErrEmptyAlbum       = &Error{Kind: KindEmptyAlbum}
	ErrSourceUnreadable = &Error{Kind: KindSourceUnreadable}
	ErrUnclassified     = &Error{Kind: KindUnclassified}
)

// Error is a classified failure carrying a human message and an optional
// remediation hint.
//
// Error values travel through the call chain unchanged so the HTTP layer can
// translate the originating kind into a status code:
//
//	if errors.Is(err, model.ErrAccessDenied) {
//	    // switch proxy
//	}
type Error struct {
	// Kind is the machine-readable classification.
	Kind ErrorKind

	// Message is a human readable description.
	Message string

	// Hint suggests what the caller can do about it. Empty when nothing helps.
	Hint string

	// Status is the remote HTTP status that produced the error, 0 if none.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithHint returns a copy of e carrying the given hint.
func (e *Error) WithHint(hint string) *Error {
	cp := *e
	cp.Hint = hint
	return &cp
}

// Wrap returns a copy of e with err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain.
// Unknown errors are KindUnclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnclassified
}

// AsError returns the first *Error in err's chain, or wraps err as an
// unclassified error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnclassified, Message: "internal error", Err: err}
}

// IsTerminal reports whether the kind rules out any point in retrying the
// same resource, which makes sibling downloads pointless too.
func (k ErrorKind) IsTerminal() bool {
	return k == KindAccessDenied || k == KindNotFound
}
