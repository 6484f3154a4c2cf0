package wire

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the top-level handler can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindMalformed
	KindUnauthorized
	KindNotFound
	KindUnsupportedMethod
	KindUnsupportedVersion
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUnsupportedMethod:
		return "unsupported_method"
	case KindUnsupportedVersion:
		return "unsupported_version"
	default:
		return "internal"
	}
}

// Error is a failure tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a tagged error.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the Kind carried by err, or KindInternal when untagged.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindInternal
}

var (
	// ErrUndecodable means the peer sent bytes that are not valid UTF-8.
	ErrUndecodable = errors.New("request is not valid utf-8")
	// ErrIncomplete means the peer went away before the request was complete.
	ErrIncomplete = errors.New("connection closed before request was complete")
)
