// Package frontend wraps an external compiler front end. Given a header, the
// include paths and a language mode it produces a TranslationUnit plus the
// diagnostics the front end reported, in the order it reported them.
//
// A front end instance is not safe for concurrent use; the driver parses one
// file at a time.
package frontend

import (
	"context"
	"errors"
	"fmt"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
)

// Language selects the dialect the front end parses headers as.
type Language string

const (
	LanguageC   Language = "c"
	LanguageCXX Language = "c++"
)

// ParseLanguage validates a language flag value.
func ParseLanguage(s string) (Language, error) {
	switch s {
	case "c", "C":
		return LanguageC, nil
	case "c++", "C++", "cxx", "cpp":
		return LanguageCXX, nil
	default:
		return "", fmt.Errorf("invalid language: %q (expected: c|c++)", s)
	}
}

// Request describes one parse.
type Request struct {
	File               string
	IncludePaths       []string
	SystemIncludePaths []string
	Language           Language
	// Flags are passed to the front end verbatim, after the generated ones.
	Flags []string
}

// Frontend parses headers into translation units.
type Frontend interface {
	// Parse returns a translation unit and its diagnostics, or an *Error when
	// no usable unit could be produced.
	Parse(ctx context.Context, req Request) (*TranslationUnit, error)
	// Version identifies the front end build; it is part of cache keys.
	Version() string
}

var (
	// ErrClosed is returned by Take after Close.
	ErrClosed = errors.New("frontend: translation unit closed")
	// ErrConsumed is returned when a unit's declarations are taken twice.
	ErrConsumed = errors.New("frontend: translation unit already consumed")
)

// TranslationUnit is the scoped handle to a parsed file. The driver owns it
// for the duration of one file and must Close it on every path.
type TranslationUnit struct {
	path        string
	unit        *cdecl.Unit
	diagnostics []diag.Diagnostic
	release     func()
	taken       bool
	closed      bool
}

// NewTranslationUnit wraps a parsed unit. release, when non-nil, runs once
// on Close.
func NewTranslationUnit(path string, unit *cdecl.Unit, ds []diag.Diagnostic, release func()) *TranslationUnit {
	if unit == nil {
		unit = &cdecl.Unit{Path: path}
	}
	return &TranslationUnit{
		path:        path,
		unit:        unit,
		diagnostics: ds,
		release:     release,
	}
}

// Path is the file the unit was parsed from.
func (tu *TranslationUnit) Path() string {
	return tu.path
}

// Diagnostics returns a copy of the front-end diagnostics in production order.
func (tu *TranslationUnit) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(tu.diagnostics))
	copy(out, tu.diagnostics)
	return out
}

// HasErrors reports whether any diagnostic is Error or Fatal.
func (tu *TranslationUnit) HasErrors() bool {
	for _, d := range tu.diagnostics {
		if d.Severity.IsHard() {
			return true
		}
	}
	return false
}

// Take hands the declarations to the emitter. A unit is processed at most once.
func (tu *TranslationUnit) Take() (*cdecl.Unit, error) {
	if tu.closed {
		return nil, ErrClosed
	}
	if tu.taken {
		return nil, ErrConsumed
	}
	tu.taken = true
	return tu.unit, nil
}

// Peek returns the declarations without consuming them; the cache uses it to
// store successful parses.
func (tu *TranslationUnit) Peek() *cdecl.Unit {
	if tu.closed {
		return nil
	}
	return tu.unit
}

// Close releases the unit. It is safe to call more than once.
func (tu *TranslationUnit) Close() error {
	if tu == nil || tu.closed {
		return nil
	}
	tu.closed = true
	tu.unit = nil
	if tu.release != nil {
		tu.release()
	}
	return nil
}
