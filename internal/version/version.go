package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

// Build information for the cbind CLI.
// These variables can be overridden at build time via -ldflags.
var (
	// Number is the plain semantic version.
	Number = "0.3.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders Number with each component coloured; fatih/color drops the
// escapes when output is not a terminal.
func Colored() string {
	core, suffix, _ := strings.Cut(Number, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return Number
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// Details is the `cbind version` body. frontend is the front end's own
// version line and may be empty when it could not be queried.
func Details(frontend string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cbind %s\n", Colored())
	if GitCommit != "" {
		fmt.Fprintf(&sb, "commit:   %s\n", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&sb, "built:    %s\n", BuildDate)
	}
	fmt.Fprintf(&sb, "go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if frontend != "" {
		fmt.Fprintf(&sb, "frontend: %s\n", frontend)
	}
	return sb.String()
}
