//go:build !darwin && !freebsd && !linux && !windows

package loader

func open(string) (uintptr, error) {
	return 0, ErrUnsupportedPlatform
}

func closeLib(uintptr) error {
	return nil
}
