package diagfmt

import (
	"path/filepath"
)

// PathMode specifies how header paths are displayed.
type PathMode uint8

const (
	// PathModeAsGiven prints paths exactly as the driver received them.
	PathModeAsGiven PathMode = iota
	// PathModeRelative prints paths relative to BaseDir when possible.
	PathModeRelative
	PathModeBasename
)

// ParsePathMode converts a flag value.
func ParsePathMode(s string) (PathMode, bool) {
	switch s {
	case "", "given", "absolute":
		return PathModeAsGiven, true
	case "relative":
		return PathModeRelative, true
	case "basename":
		return PathModeBasename, true
	}
	return PathModeAsGiven, false
}

// TranscriptOpts configures the human-readable transcript.
type TranscriptOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
}

// JSONOpts configures the machine-readable report.
type JSONOpts struct {
	PathMode PathMode
	BaseDir  string
	Max      int // обрезка вывода, не Aggregator
	RunID    string
}

func displayPath(path string, mode PathMode, base string) string {
	switch mode {
	case PathModeRelative:
		if base == "" {
			return path
		}
		if rel, err := filepath.Rel(base, path); err == nil {
			return rel
		}
	case PathModeBasename:
		return filepath.Base(path)
	}
	return path
}
