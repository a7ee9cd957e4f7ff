package diag

// ExitStatus computes the process outcome from the global ordered diagnostic
// sequence and the driver's had-skip flag. It is pure: the same inputs always
// yield the same status.
//
//	0      clean
//	N > 0  succeeded with N emitter warnings
//	< 0    at least one hard failure; magnitude beyond the sign is not meaningful
func ExitStatus(ds []Diagnostic, hadSkip bool) int {
	return Fold(0, hadSkip, ds)
}

// Fold continues a status computation over more diagnostics. For any split
// ExitStatus(a++b, skip) == Fold(ExitStatus(a, skip), skip, b).
func Fold(status int, hadSkip bool, ds []Diagnostic) int {
	if hadSkip && status >= 0 {
		status = -1
	}
	for _, d := range ds {
		if d.Origin != OriginEmitter {
			continue
		}
		switch d.Severity {
		case SevWarning:
			if status >= 0 {
				status++
			}
		case SevError, SevFatal:
			if status >= 0 {
				status = -1
			} else {
				status--
			}
		}
	}
	return status
}
