package clang

import (
	"strings"
	"testing"

	"cbind/internal/diag"
)

const sampleStderr = `In file included from /work/include/openxr.h:12:
/work/include/openxr_platform_defines.h:1:9: warning: #pragma once in main file [-Wpragma-once-outside-header]
#pragma once
        ^
/work/include/openxr.h:40:5: error: unknown type name 'XrFlags64'
/work/include/openxr.h:40:5: note: did you mean 'XrFlags32'?
clang: warning: argument unused during compilation: '-g' [-Wunused-command-line-argument]
/work/include/openxr.h:90:1: fatal error: too many errors emitted, stopping now [-ferror-limit=]
1 warning and 2 errors generated.
`

func TestParseDiagnosticsOrderAndFields(t *testing.T) {
	ds, crashed, err := parseDiagnostics(strings.NewReader(sampleStderr))
	if err != nil {
		t.Fatal(err)
	}
	if crashed {
		t.Fatal("unexpected crash")
	}
	want := []struct {
		sev    diag.Severity
		line   uint32
		msg    string
		option string
	}{
		{diag.SevWarning, 1, "#pragma once in main file", "-Wpragma-once-outside-header"},
		{diag.SevError, 40, "unknown type name 'XrFlags64'", ""},
		{diag.SevNote, 40, "did you mean 'XrFlags32'?", ""},
		{diag.SevWarning, 0, "argument unused during compilation: '-g'", "-Wunused-command-line-argument"},
		{diag.SevFatal, 90, "too many errors emitted, stopping now [-ferror-limit=]", ""},
	}
	if len(ds) != len(want) {
		t.Fatalf("got %d diagnostics, want %d: %v", len(ds), len(want), ds)
	}
	for i, w := range want {
		d := ds[i]
		if d.Severity != w.sev || d.Location.Line != w.line || d.Message != w.msg || d.Option != w.option {
			t.Errorf("diag %d = %+v, want %+v", i, d, w)
		}
		if d.Origin != diag.OriginFrontEnd {
			t.Errorf("diag %d origin = %v", i, d.Origin)
		}
	}
	if ds[3].Code != diag.FrontEndDriver {
		t.Errorf("driver diagnostic code = %v", ds[3].Code)
	}
	if ds[0].Location.File != "/work/include/openxr_platform_defines.h" || ds[0].Location.Col != 9 {
		t.Errorf("location = %v", ds[0].Location)
	}
}

func TestParseDiagnosticsCrashBanner(t *testing.T) {
	in := "PLEASE submit a bug report to https://github.com/llvm/llvm-project/issues/ and include the crash backtrace.\nStack dump:\n0. Program arguments: clang\n"
	ds, crashed, err := parseDiagnostics(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if !crashed {
		t.Fatal("crash banner not detected")
	}
	if len(ds) != 0 {
		t.Fatalf("unexpected diagnostics: %v", ds)
	}
}
