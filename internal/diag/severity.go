package diag

import "fmt"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevNote is informational and never affects the exit status.
	SevNote Severity = iota
	// SevWarning is recorded and counted while the status is non-negative.
	SevWarning
	SevError
	SevFatal
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	case SevFatal:
		return "fatal"
	}
	return "unknown"
}

// IsHard reports whether the severity is Error or Fatal.
func (s Severity) IsHard() bool {
	return s >= SevError
}

// ParseSeverity converts the String form back to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "note":
		return SevNote, nil
	case "warning":
		return SevWarning, nil
	case "error":
		return SevError, nil
	case "fatal":
		return SevFatal, nil
	default:
		return SevNote, fmt.Errorf("invalid severity: %q (expected: note|warning|error|fatal)", s)
	}
}

// Origin identifies the pipeline stage that produced a diagnostic.
type Origin uint8

const (
	OriginFrontEnd Origin = iota + 1
	OriginEmitter
)

func (o Origin) String() string {
	switch o {
	case OriginFrontEnd:
		return "frontend"
	case OriginEmitter:
		return "emitter"
	}
	return "unknown"
}
