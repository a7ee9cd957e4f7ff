package frontend

import (
	"strings"

	"cbind/internal/diag"
)

// SeverityOf maps a front end's native severity label onto the canonical
// four-level severity. Unknown labels are treated as errors so they cannot
// silently let a broken file through.
func SeverityOf(native string) diag.Severity {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "note", "remark", "ignored":
		return diag.SevNote
	case "warning":
		return diag.SevWarning
	case "error":
		return diag.SevError
	case "fatal", "fatal error":
		return diag.SevFatal
	default:
		return diag.SevError
	}
}
