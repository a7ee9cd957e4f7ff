package frontend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a parse failure.
type ErrorKind uint8

const (
	ErrMissingFile ErrorKind = iota + 1
	ErrUnreadable
	ErrCrashed
	ErrMalformedOutput
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMissingFile:
		return "missing file"
	case ErrUnreadable:
		return "unreadable file"
	case ErrCrashed:
		return "front end failure"
	case ErrMalformedOutput:
		return "malformed front-end output"
	}
	return "unknown"
}

// Error is a per-file parse failure: no usable translation unit exists.
type Error struct {
	Kind ErrorKind
	File string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.File, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnavailable marks a front end that cannot run at all. It is a startup
// error, reported before any file is processed.
var ErrUnavailable = errors.New("frontend: front end unavailable")

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
