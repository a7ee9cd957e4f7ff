// Package capability negotiates optional native API capabilities
// (OpenXR extensions): enumerate what the runtime offers with the two-call
// count-then-fill pattern, then pick a subset by exact name.
package capability

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"
)

// EnumerateFunc is one native enumeration call. With capacity 0 and a nil
// buffer it reports the count; otherwise it fills up to capacity entries and
// reports how many it wrote.
type EnumerateFunc func(capacity uint32, count *uint32, buf []string) error

// ErrCountChanged is returned when the fill call reports more entries than
// the count call did.
var ErrCountChanged = errors.New("capability: count changed between calls")

// Enumerate runs the count call, allocates, then runs the fill call.
func Enumerate(fn EnumerateFunc) ([]string, error) {
	var n uint32
	if err := fn(0, &n, nil); err != nil {
		return nil, fmt.Errorf("capability: count: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	size, err := safecast.Conv[int](n)
	if err != nil {
		return nil, fmt.Errorf("capability: count %d: %w", n, err)
	}
	buf := make([]string, size)
	got := n
	if err := fn(n, &got, buf); err != nil {
		return nil, fmt.Errorf("capability: fill: %w", err)
	}
	if got > n {
		return nil, fmt.Errorf("%w: %d then %d", ErrCountChanged, n, got)
	}
	return buf[:got], nil
}

// MissingError lists required capabilities the runtime does not offer.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return "capability: required capability not available: " + strings.Join(e.Names, ", ")
}

// Select returns the names to enable, in request order: every required name
// (failing with *MissingError when one is absent) followed by the optional
// names the runtime offers. Matching is exact and case-sensitive.
func Select(available, required, optional []string) ([]string, error) {
	var missing []string
	enable := make([]string, 0, len(required)+len(optional))
	add := func(name string) {
		if !slices.Contains(enable, name) {
			enable = append(enable, name)
		}
	}
	for _, name := range required {
		if !slices.Contains(available, name) {
			missing = append(missing, name)
			continue
		}
		add(name)
	}
	if len(missing) > 0 {
		return nil, &MissingError{Names: missing}
	}
	for _, name := range optional {
		if slices.Contains(available, name) {
			add(name)
		}
	}
	return enable, nil
}
