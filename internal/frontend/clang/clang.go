// Package clang runs the clang driver as the front end. The AST comes from
// -ast-dump=json on stdout and diagnostics from stderr, so no libclang
// binding is linked into the generator.
package clang

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
	"cbind/internal/frontend"
)

// Frontend parses headers with an external clang.
type Frontend struct {
	env *frontend.Environment

	versionOnce sync.Once
	version     string
}

var _ frontend.Frontend = (*Frontend)(nil)

// New returns a front end using env. env.Prepare is called lazily on the
// first parse if the caller has not done so.
func New(env *frontend.Environment) *Frontend {
	return &Frontend{env: env}
}

// Args returns the command line used for req, without the executable.
func Args(req frontend.Request) []string {
	lang := req.Language
	if lang == "" {
		lang = frontend.LanguageCXX
	}
	args := []string{
		"-fsyntax-only",
		"-Xclang", "-ast-dump=json",
		"-fno-color-diagnostics",
		"-fno-caret-diagnostics",
		"-fdiagnostics-show-option",
		"-x", string(lang),
	}
	for _, dir := range req.IncludePaths {
		args = append(args, "-I"+dir)
	}
	for _, dir := range req.SystemIncludePaths {
		args = append(args, "-isystem", dir)
	}
	args = append(args, req.Flags...)
	return append(args, req.File)
}

// Version returns the first line of `clang --version`, or "" when it cannot
// be determined.
func (f *Frontend) Version() string {
	f.versionOnce.Do(func() {
		if err := f.env.Prepare(); err != nil {
			return
		}
		cmd := exec.Command(f.env.Path(), "--version")
		cmd.Env = f.env.Env()
		out, err := cmd.Output()
		if err != nil {
			return
		}
		line, _, _ := strings.Cut(string(out), "\n")
		f.version = strings.TrimSpace(line)
	})
	return f.version
}

// Parse runs clang on req.File.
func (f *Frontend) Parse(ctx context.Context, req frontend.Request) (*frontend.TranslationUnit, error) {
	if err := checkReadable(req.File); err != nil {
		return nil, err
	}
	if err := f.env.Prepare(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, f.env.Path(), Args(req)...)
	cmd.Env = f.env.Env()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &frontend.Error{Kind: frontend.ErrCrashed, File: req.File, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &frontend.Error{Kind: frontend.ErrCrashed, File: req.File, Err: err}
	}

	conv := newConverter(req.File, roots(req))
	if abs, err := filepath.Abs(req.File); err == nil {
		conv.noteFile(abs)
	}
	decodeErr := decodeTopLevel(bufio.NewReaderSize(stdout, 1<<16), conv.visit)
	// clang blocks on a full pipe if decoding stopped early
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	ds, crashed, scanErr := parseDiagnostics(&stderr)
	if scanErr != nil {
		return nil, &frontend.Error{Kind: frontend.ErrMalformedOutput, File: req.File, Err: scanErr}
	}
	if reason := crashReason(waitErr, crashed); reason != nil {
		return nil, &frontend.Error{Kind: frontend.ErrCrashed, File: req.File, Err: reason}
	}

	if decodeErr != nil {
		if errors.Is(decodeErr, errEmptyAST) && hasHard(ds) {
			// nothing to emit; the driver skips the file on its errors
			return frontend.NewTranslationUnit(req.File, &cdecl.Unit{Path: req.File}, ds, nil), nil
		}
		if errors.Is(decodeErr, errEmptyAST) {
			decodeErr = errors.New("no AST and no error diagnostics")
		}
		return nil, &frontend.Error{Kind: frontend.ErrMalformedOutput, File: req.File, Err: decodeErr}
	}
	return frontend.NewTranslationUnit(req.File, conv.finish(), ds, nil), nil
}

func checkReadable(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &frontend.Error{Kind: frontend.ErrMissingFile, File: path, Err: os.ErrNotExist}
		}
		return &frontend.Error{Kind: frontend.ErrUnreadable, File: path, Err: err}
	}
	if st.IsDir() {
		return &frontend.Error{Kind: frontend.ErrUnreadable, File: path, Err: errors.New("is a directory")}
	}
	fh, err := os.Open(path)
	if err != nil {
		return &frontend.Error{Kind: frontend.ErrUnreadable, File: path, Err: err}
	}
	return fh.Close()
}

// roots are the directories whose declarations belong to the binding: the
// header's own directory and the user include paths. System headers stay out.
func roots(req frontend.Request) []string {
	var out []string
	add := func(dir string) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return
		}
		out = append(out, filepath.Clean(abs))
	}
	add(filepath.Dir(req.File))
	for _, dir := range req.IncludePaths {
		add(dir)
	}
	return out
}

// crashReason distinguishes a crash from clang's ordinary exit 1 on errors.
func crashReason(waitErr error, banner bool) error {
	if banner {
		return errors.New("front end crashed")
	}
	if waitErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return waitErr
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return fmt.Errorf("terminated by signal %v", ws.Signal())
	}
	if code := exitErr.ExitCode(); code > 1 || code < 0 {
		return fmt.Errorf("exit status %d", code)
	}
	return nil
}

func hasHard(ds []diag.Diagnostic) bool {
	for _, d := range ds {
		if d.Severity.IsHard() {
			return true
		}
	}
	return false
}
