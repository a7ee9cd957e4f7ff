//go:build darwin || freebsd || linux

package loader

import "github.com/ebitengine/purego"

func open(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func closeLib(h uintptr) error {
	return purego.Dlclose(h)
}
