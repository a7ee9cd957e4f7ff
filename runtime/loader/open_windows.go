//go:build windows

package loader

import "syscall"

func open(path string) (uintptr, error) {
	h, err := syscall.LoadLibrary(path)
	return uintptr(h), err
}

func closeLib(h uintptr) error {
	return syscall.FreeLibrary(syscall.Handle(h))
}
