package diag

import (
	"fmt"
	"strings"
)

// Location points at a position inside a header. The zero value means
// "no location".
type Location struct {
	File string
	Line uint32
	Col  uint32
}

// IsZero reports whether the location carries no position.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Col == 0
}

func (l Location) String() string {
	switch {
	case l.File == "":
		return ""
	case l.Line == 0:
		return l.File
	case l.Col == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Diagnostic is a value record; callers receive copies, never shared state.
type Diagnostic struct {
	Severity Severity
	Origin   Origin
	Code     Code
	Message  string
	Location Location
	// Option is the native flag that enabled the diagnostic, e.g. -Wpragma-once-outside-header.
	Option string
}

// New builds a diagnostic without location.
func New(origin Origin, sev Severity, code Code, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Origin:   origin,
		Code:     code,
		Message:  msg,
	}
}

// At returns a copy of d located at loc.
func (d Diagnostic) At(loc Location) Diagnostic {
	d.Location = loc
	return d
}

// String renders the diagnostic the way the transcript prints it:
// <file>:<line>:<col>: <severity>: <message> [<option>]
func (d Diagnostic) String() string {
	var sb strings.Builder
	if loc := d.Location.String(); loc != "" {
		sb.WriteString(loc)
		sb.WriteString(": ")
	}
	sb.WriteString(d.Severity.String())
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	if d.Option != "" {
		sb.WriteString(" [")
		sb.WriteString(d.Option)
		sb.WriteString("]")
	}
	if d.Origin == OriginEmitter && d.Code != UnknownCode {
		sb.WriteString(" (")
		sb.WriteString(d.Code.ID())
		sb.WriteString(")")
	}
	return sb.String()
}
