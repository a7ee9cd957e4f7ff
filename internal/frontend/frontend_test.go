package frontend

import (
	"errors"
	"testing"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
)

func TestTranslationUnitTakeOnce(t *testing.T) {
	released := 0
	tu := NewTranslationUnit("a.h", &cdecl.Unit{Path: "a.h"}, nil, func() { released++ })

	if _, err := tu.Take(); err != nil {
		t.Fatalf("first Take: %v", err)
	}
	if _, err := tu.Take(); !errors.Is(err, ErrConsumed) {
		t.Fatalf("second Take: expected ErrConsumed, got %v", err)
	}
	_ = tu.Close()
	_ = tu.Close()
	if released != 1 {
		t.Fatalf("release ran %d times, want 1", released)
	}
	if _, err := tu.Take(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Take after Close: expected ErrClosed, got %v", err)
	}
}

func TestTranslationUnitDiagnosticsAreCopies(t *testing.T) {
	ds := []diag.Diagnostic{
		diag.New(diag.OriginFrontEnd, diag.SevWarning, diag.FrontEndNative, "w"),
		diag.New(diag.OriginFrontEnd, diag.SevFatal, diag.FrontEndNative, "f"),
	}
	tu := NewTranslationUnit("a.h", nil, ds, nil)
	got := tu.Diagnostics()
	got[0].Message = "mutated"
	if tu.Diagnostics()[0].Message != "w" {
		t.Fatal("diagnostics must not be mutable through the returned slice")
	}
	if !tu.HasErrors() {
		t.Fatal("fatal diagnostic must count as error")
	}
}

func TestSeverityOf(t *testing.T) {
	cases := map[string]diag.Severity{
		"note":        diag.SevNote,
		"remark":      diag.SevNote,
		"warning":     diag.SevWarning,
		"error":       diag.SevError,
		"fatal error": diag.SevFatal,
		"Fatal":       diag.SevFatal,
		"weird":       diag.SevError,
	}
	for native, want := range cases {
		if got := SeverityOf(native); got != want {
			t.Errorf("SeverityOf(%q) = %v, want %v", native, got, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	var err error = &Error{Kind: ErrUnreadable, File: "a.h", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	fe, ok := AsError(err)
	if !ok || fe.Kind != ErrUnreadable {
		t.Fatalf("AsError = %v, %v", fe, ok)
	}
	if got, want := err.Error(), "a.h: unreadable file: permission denied"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
