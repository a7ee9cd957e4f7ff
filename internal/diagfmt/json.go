package diagfmt

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"cbind/internal/diag"
)

// LocationJSON представляет местоположение в заголовке
type LocationJSON struct {
	File string `json:"file"`
	Line uint32 `json:"line,omitempty"`
	Col  uint32 `json:"col,omitempty"`
}

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	Severity string        `json:"severity"`
	Origin   string        `json:"origin"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Option   string        `json:"option,omitempty"`
	Location *LocationJSON `json:"location,omitempty"`
}

// FileJSON is one input header and what happened to it.
type FileJSON struct {
	Path        string           `json:"path"`
	State       string           `json:"state"`
	Reason      string           `json:"reason,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
}

// ReportJSON представляет корневую структуру JSON вывода
type ReportJSON struct {
	RunID       string           `json:"run_id"`
	Files       []FileJSON       `json:"files"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	HadSkip     bool             `json:"had_skip"`
	Status      int              `json:"status"`
	Written     []string         `json:"written,omitempty"`
}

// RunSummary is the driver outcome the report is built from.
type RunSummary struct {
	Files       []diag.FileRecord
	Diagnostics []diag.Diagnostic
	HadSkip     bool
	Status      int
	Written     []string
}

func makeDiagnostic(d diag.Diagnostic, opts JSONOpts) DiagnosticJSON {
	out := DiagnosticJSON{
		Severity: d.Severity.String(),
		Origin:   d.Origin.String(),
		Code:     d.Code.ID(),
		Message:  d.Message,
		Option:   d.Option,
	}
	if !d.Location.IsZero() {
		out.Location = &LocationJSON{
			File: displayPath(d.Location.File, opts.PathMode, opts.BaseDir),
			Line: d.Location.Line,
			Col:  d.Location.Col,
		}
	}
	return out
}

func makeList(ds []diag.Diagnostic, opts JSONOpts) []DiagnosticJSON {
	n := len(ds)
	if opts.Max > 0 && opts.Max < n {
		n = opts.Max
	}
	out := make([]DiagnosticJSON, 0, n)
	for _, d := range ds[:n] {
		out = append(out, makeDiagnostic(d, opts))
	}
	return out
}

// BuildReport формирует структуру JSON-вывода без сериализации.
// A fresh run id is generated unless opts.RunID is set.
func BuildReport(sum RunSummary, opts JSONOpts) ReportJSON {
	id := opts.RunID
	if id == "" {
		id = uuid.NewString()
	}
	files := make([]FileJSON, 0, len(sum.Files))
	for _, rec := range sum.Files {
		state := "emitted"
		if rec.Skipped {
			state = "skipped"
		}
		ds := make([]diag.Diagnostic, 0, len(rec.FrontEnd)+len(rec.Emitter))
		ds = append(ds, rec.FrontEnd...)
		ds = append(ds, rec.Emitter...)
		files = append(files, FileJSON{
			Path:        displayPath(rec.Path, opts.PathMode, opts.BaseDir),
			State:       state,
			Reason:      rec.Reason,
			Diagnostics: makeList(ds, opts),
		})
	}
	all := makeList(sum.Diagnostics, opts)
	return ReportJSON{
		RunID:       id,
		Files:       files,
		Diagnostics: all,
		Count:       len(all),
		HadSkip:     sum.HadSkip,
		Status:      sum.Status,
		Written:     sum.Written,
	}
}

// JSON writes the indented report to w.
func JSON(w io.Writer, sum RunSummary, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildReport(sum, opts))
}
