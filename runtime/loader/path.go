// Package loader locates and opens the native library generated bindings
// call into. Libraries live under an install directory by convention:
//
//	<install>/native/<arch>/release/bin/<name>.dll       (windows)
//	<install>/native/<arch>/release/lib/lib<name>.so     (linux, freebsd)
//	<install>/native/<arch>/release/lib/lib<name>.dylib  (darwin)
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrUnsupportedPlatform is returned for an OS or architecture without a
// native build.
var ErrUnsupportedPlatform = errors.New("loader: unsupported platform")

var archDirs = map[string]map[string]string{
	"windows": {"386": "Win32", "amd64": "x64", "arm64": "ARM64"},
	"linux":   {"386": "x86", "amd64": "x64", "arm64": "arm64"},
	"freebsd": {"amd64": "x64", "arm64": "arm64"},
	"darwin":  {"amd64": "x64", "arm64": "arm64"},
}

// Path returns where the library called name is installed for goos/goarch.
func Path(installDir, name, goos, goarch string) (string, error) {
	arches, ok := archDirs[goos]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	arch, ok := arches[goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	sub, file := "lib", "lib"+name+".so"
	switch goos {
	case "windows":
		sub, file = "bin", name+".dll"
	case "darwin":
		file = "lib" + name + ".dylib"
	}
	return filepath.Join(installDir, "native", arch, "release", sub, file), nil
}

// HostPath is Path for the running platform.
func HostPath(installDir, name string) (string, error) {
	return Path(installDir, name, runtime.GOOS, runtime.GOARCH)
}

// Library is an opened native library.
type Library struct {
	Path   string
	Handle uintptr
}

// Open resolves the host path under installDir and loads the library.
func Open(installDir, name string) (*Library, error) {
	p, err := HostPath(installDir, name)
	if err != nil {
		return nil, err
	}
	h, err := open(p)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", p, err)
	}
	return &Library{Path: p, Handle: h}, nil
}

// Close unloads the library; the handle must not be used afterwards.
func (l *Library) Close() error {
	if l == nil || l.Handle == 0 {
		return nil
	}
	err := closeLib(l.Handle)
	l.Handle = 0
	return err
}
