package diagfmt

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"cbind/internal/diag"
)

const indent = "    "

// Transcript prints the per-run listing: processing start, indented
// front-end diagnostics, skip notices and the final emitter summary.
// Lines go out in call order; the driver calls it sequentially.
type Transcript struct {
	mu   sync.Mutex
	w    io.Writer
	opts TranscriptOpts

	alert *color.Color
	sev   map[diag.Severity]*color.Color
}

func NewTranscript(w io.Writer, opts TranscriptOpts) *Transcript {
	t := &Transcript{
		w:     w,
		opts:  opts,
		alert: color.New(color.FgRed, color.Bold),
		sev: map[diag.Severity]*color.Color{
			diag.SevNote:    color.New(color.FgCyan),
			diag.SevWarning: color.New(color.FgYellow),
			diag.SevError:   color.New(color.FgRed),
			diag.SevFatal:   color.New(color.FgRed, color.Bold),
		},
	}
	// fatih/color смотрит на глобальный NoColor; здесь решает флаг
	for _, c := range t.colors() {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

func (t *Transcript) colors() []*color.Color {
	out := []*color.Color{t.alert}
	for _, c := range t.sev {
		out = append(out, c)
	}
	return out
}

func (t *Transcript) path(p string) string {
	return displayPath(p, t.opts.PathMode, t.opts.BaseDir)
}

// ParseFailed reports a front-end failure that produced no unit.
func (t *Transcript) ParseFailed(file string, err error) {
	t.line(t.alert.Sprintf("Error: Parsing failed for '%s' due to '%v'.", t.path(file), err))
}

// FileDiagnostics lists a file's front-end diagnostics in the order given.
// Nothing is printed for an empty list.
func (t *Transcript) FileDiagnostics(file string, ds []diag.Diagnostic) {
	if len(ds) == 0 {
		return
	}
	t.line(fmt.Sprintf("Diagnostics for '%s':", t.path(file)))
	t.list(ds)
}

// Skipping is followed by an empty line, separating the next file's output.
func (t *Transcript) Skipping(file string) {
	t.line(t.alert.Sprintf("Skipping '%s' due to one or more errors listed above.", t.path(file)))
	t.line("")
}

func (t *Transcript) Processing(file string) {
	t.line(fmt.Sprintf("Processing '%s'", t.path(file)))
}

// Summary lists every emitter diagnostic of the run. Nothing is printed for
// an empty list.
func (t *Transcript) Summary(ds []diag.Diagnostic) {
	if len(ds) == 0 {
		return
	}
	t.line("Diagnostics for binding generation:")
	t.list(ds)
}

func (t *Transcript) list(ds []diag.Diagnostic) {
	for _, d := range ds {
		text := d.String()
		if c, ok := t.sev[d.Severity]; ok {
			text = c.Sprint(text)
		}
		t.line(indent + text)
	}
}

func (t *Transcript) line(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// ошибки записи транскрипта не меняют статус запуска
	_, _ = io.WriteString(t.w, s+"\n")
}
