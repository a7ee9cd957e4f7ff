package frontend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Environment makes the front end's runtime discoverable. The directories are
// injected by deployment tooling; nothing here probes package caches.
//
// Prepare must run before the first parse. It is one-time and idempotent:
// later calls return the first result. The process environment is never
// modified; the augmented variables are handed to child processes instead.
type Environment struct {
	// Executable is the front-end program, a bare name or a path.
	Executable string
	// RuntimeDirs are appended to PATH and to the library search variable.
	RuntimeDirs []string
	// Base is the starting environment; nil means os.Environ().
	Base []string
	// GOOS selects the library search variable; empty means runtime.GOOS.
	GOOS string

	once     sync.Once
	env      []string
	resolved string
	err      error
}

// Prepare computes the child environment and resolves the executable.
func (e *Environment) Prepare() error {
	e.once.Do(func() {
		e.env, e.resolved, e.err = e.prepare()
	})
	return e.err
}

// Prepared reports whether Prepare has run successfully.
func (e *Environment) Prepared() bool {
	return e.env != nil && e.err == nil
}

// Env returns the child-process environment. Prepare must have succeeded.
func (e *Environment) Env() []string {
	out := make([]string, len(e.env))
	copy(out, e.env)
	return out
}

// Path returns the resolved executable path.
func (e *Environment) Path() string {
	return e.resolved
}

func (e *Environment) prepare() ([]string, string, error) {
	goos := e.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	base := e.Base
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+2)
	env = append(env, base...)

	dirs := make([]string, 0, len(e.RuntimeDirs))
	for _, dir := range e.RuntimeDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, "", fmt.Errorf("%w: runtime dir %q: %w", ErrUnavailable, dir, err)
		}
		dirs = append(dirs, abs)
	}

	env = appendSearchPath(env, "PATH", dirs)
	if libVar := librarySearchVar(goos); libVar != "PATH" {
		env = appendSearchPath(env, libVar, dirs)
	}

	name := e.Executable
	if name == "" {
		name = "clang"
	}
	resolved, err := lookPath(name, lookupEnv(env, "PATH"), goos)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return env, resolved, nil
}

// librarySearchVar is the variable the dynamic loader consults on goos.
func librarySearchVar(goos string) string {
	switch goos {
	case "windows":
		return "PATH"
	case "darwin", "ios":
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

func appendSearchPath(env []string, key string, dirs []string) []string {
	if len(dirs) == 0 {
		return env
	}
	extra := strings.Join(dirs, string(os.PathListSeparator))
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			cur := strings.TrimPrefix(kv, prefix)
			if cur == "" {
				env[i] = prefix + extra
			} else {
				env[i] = prefix + cur + string(os.PathListSeparator) + extra
			}
			return env
		}
	}
	return append(env, prefix+extra)
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return strings.TrimPrefix(env[i], prefix)
		}
	}
	return ""
}

var errNotFound = errors.New("executable file not found")

// lookPath searches pathList like exec.LookPath, but over the augmented PATH
// instead of the process one.
func lookPath(name, pathList, goos string) (string, error) {
	candidates := []string{name}
	if goos == "windows" && filepath.Ext(name) == "" {
		candidates = append(candidates, name+".exe")
	}
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		for _, c := range candidates {
			if isExecutable(c) {
				return c, nil
			}
		}
		return "", fmt.Errorf("%s: %w", name, errNotFound)
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			if isExecutable(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w in PATH", name, errNotFound)
}

func isExecutable(path string) bool {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return st.Mode()&0o111 != 0
}
