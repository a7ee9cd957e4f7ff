// Package driver runs one generation: it prepares the front end once, parses
// each header in input order, decides whether the header is skipped, hands
// clean units to the emitter and computes the exit status after the last
// header.
//
// Per header the driver moves through ParsePending, Parsed and then either
// Skipped or Emitted. A skip is sticky for the run: it floors the final status
// to at most -1 no matter how clean later headers are.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"cbind/internal/cache"
	"cbind/internal/config"
	"cbind/internal/diag"
	"cbind/internal/diagfmt"
	"cbind/internal/emit"
	"cbind/internal/frontend"
	"cbind/internal/observ"
	"cbind/internal/trace"
)

// State is where a header is in the per-file state machine.
type State uint8

const (
	StateParsePending State = iota
	StateParsed
	StateSkipped
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StateParsePending:
		return "pending"
	case StateParsed:
		return "parsed"
	case StateSkipped:
		return "skipped"
	case StateEmitted:
		return "emitted"
	}
	return "unknown"
}

// Preparer performs the one-time front-end environment setup.
// *frontend.Environment implements it.
type Preparer interface {
	Prepare() error
}

// Options describes one run. Frontend is required; everything else has a
// usable zero value.
type Options struct {
	Files []string
	// Request is the template for every parse; File is filled per header.
	Request    frontend.Request
	Frontend   frontend.Frontend
	Env        Preparer
	Generation config.Generation
	// OutputDir overrides Generation.Output when set.
	OutputDir string
	DryRun    bool

	Cache      *cache.Cache
	Transcript *diagfmt.Transcript
	Progress   ProgressSink
	Timer      *observ.Timer
	Logger     *slog.Logger
}

// FileResult is the outcome for one header.
type FileResult struct {
	Path        string
	State       State
	Diagnostics []diag.Diagnostic // front end then emitter
	Cached      bool
	Err         error // parse failure, if any
}

// Result is the outcome of a run.
type Result struct {
	Files       []FileResult
	Records     []diag.FileRecord
	Diagnostics []diag.Diagnostic
	HadSkip     bool
	Status      int
	Units       []emit.Unit
	Written     []string
}

// Summary converts r for the JSON report.
func (r *Result) Summary() diagfmt.RunSummary {
	return diagfmt.RunSummary{
		Files:       r.Records,
		Diagnostics: r.Diagnostics,
		HadSkip:     r.HadSkip,
		Status:      r.Status,
		Written:     r.Written,
	}
}

var (
	// ErrNoFrontend is returned when Options.Frontend is nil.
	ErrNoFrontend = errors.New("driver: no front end configured")
	// ErrNoInput is returned when there is nothing to parse.
	ErrNoInput = errors.New("driver: no input headers")
)

type run struct {
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
	span   *trace.Span
	agg    *diag.Aggregator
	gen    *emit.Generator
	sink   ProgressSink
}

// Run executes the pipeline. A front end that cannot run at all is a startup
// error returned before any header is touched; per-header failures never
// abort the run. The returned error is non-nil only for startup errors,
// cancellation and output write failures; the exit status is in Result.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Frontend == nil {
		return nil, ErrNoFrontend
	}
	if len(opts.Files) == 0 {
		return nil, ErrNoInput
	}
	r := &run{
		opts:   opts,
		log:    opts.Logger,
		tracer: trace.FromContext(ctx),
		agg:    diag.NewAggregator(),
		gen:    emit.New(opts.Generation),
		sink:   opts.Progress,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.sink == nil {
		r.sink = nopSink{}
	}

	if opts.Env != nil {
		idx := opts.Timer.Begin("prepare")
		err := opts.Env.Prepare()
		opts.Timer.End(idx, "")
		if err != nil {
			return nil, fmt.Errorf("front-end setup: %w", err)
		}
	}

	r.span = trace.Begin(r.tracer, trace.ScopeDriver, "run", trace.ParentSpan(ctx))
	defer r.span.End("")

	for _, f := range opts.Files {
		r.sink.OnEvent(Event{File: f, Stage: StageParse, Status: StatusQueued})
	}

	res := &Result{Files: make([]FileResult, 0, len(opts.Files))}
	for _, f := range opts.Files {
		if err := ctx.Err(); err != nil {
			return r.finish(res), err
		}
		fr, err := r.file(ctx, f)
		if err != nil {
			return r.finish(res), err
		}
		res.Files = append(res.Files, fr)
	}

	if opts.Transcript != nil {
		opts.Transcript.Summary(diag.FilterOrigin(r.agg.Diagnostics(), diag.OriginEmitter))
	}

	emitIdx := opts.Timer.Begin("layout")
	units, err := r.gen.Units()
	opts.Timer.End(emitIdx, strconv.Itoa(len(units))+" units")
	if err != nil {
		return r.finish(res), fmt.Errorf("layout: %w", err)
	}
	res.Units = units

	if !opts.DryRun {
		if err := r.write(ctx, res); err != nil {
			return r.finish(res), err
		}
	}
	return r.finish(res), nil
}

func (r *run) finish(res *Result) *Result {
	res.Records = r.agg.Files()
	res.Diagnostics = r.agg.Diagnostics()
	res.HadSkip = r.agg.HadSkip()
	res.Status = r.agg.Status()
	r.span.WithExtra("status", strconv.Itoa(res.Status))
	return res
}

// file handles one header. The translation unit is closed on every path.
func (r *run) file(ctx context.Context, path string) (FileResult, error) {
	fr := FileResult{Path: path, State: StateParsePending}
	r.agg.Begin(path)
	span := trace.Begin(r.tracer, trace.ScopeFile, "file", r.span.ID())
	defer func() { span.End(fr.State.String()) }()

	start := time.Now()
	r.sink.OnEvent(Event{File: path, Stage: StageParse, Status: StatusWorking})

	idx := r.opts.Timer.Begin("parse " + filepath.Base(path))
	tu, cached, err := r.parse(ctx, path)
	r.opts.Timer.End(idx, cachedNote(cached))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return fr, err
		}
		if errors.Is(err, frontend.ErrUnavailable) {
			return fr, fmt.Errorf("front-end setup: %w", err)
		}
		fr.Err = err
		if r.opts.Transcript != nil {
			r.opts.Transcript.ParseFailed(path, failureReason(err))
		}
		r.skip(&fr, "parse failed: "+failureReason(err).Error(), start)
		return fr, nil
	}
	defer func() {
		// Close never fails for an in-memory unit
		_ = tu.Close()
	}()

	fr.State = StateParsed
	fr.Cached = cached
	ds := tu.Diagnostics()
	r.agg.AddFrontEnd(ds)
	fr.Diagnostics = append(fr.Diagnostics, ds...)
	if r.opts.Transcript != nil {
		r.opts.Transcript.FileDiagnostics(path, ds)
	}

	if tu.HasErrors() {
		r.skip(&fr, strconv.Itoa(countHard(ds))+" front-end errors", start)
		return fr, nil
	}

	if r.opts.Transcript != nil {
		r.opts.Transcript.Processing(path)
	}
	r.sink.OnEvent(Event{File: path, Stage: StageEmit, Status: StatusWorking})
	unit, err := tu.Take()
	if err != nil {
		return fr, fmt.Errorf("%s: %w", path, err)
	}
	emitIdx := r.opts.Timer.Begin("emit " + filepath.Base(path))
	eds := r.gen.Generate(unit)
	r.opts.Timer.End(emitIdx, strconv.Itoa(len(unit.Decls))+" decls")

	r.agg.AddEmitter(eds)
	fr.Diagnostics = append(fr.Diagnostics, eds...)
	fr.State = StateEmitted
	r.log.Debug("emitted", "file", path, "decls", len(unit.Decls), "diagnostics", len(eds))
	r.sink.OnEvent(Event{File: path, Stage: StageEmit, Status: StatusDone, Elapsed: time.Since(start)})
	return fr, nil
}

// skip records the skip in the transcript, the aggregator, the trace and the
// progress stream. The trace entry is separate from the diagnostic sequence.
func (r *run) skip(fr *FileResult, reason string, start time.Time) {
	fr.State = StateSkipped
	if r.opts.Transcript != nil {
		r.opts.Transcript.Skipping(fr.Path)
	}
	r.agg.MarkSkip(reason)
	trace.Point(r.tracer, trace.ScopeFile, "skip", fr.Path, r.span.ID(), map[string]string{"reason": reason})
	r.log.Info("skipped header", "file", fr.Path, "reason", reason)
	r.sink.OnEvent(Event{File: fr.Path, Stage: StageParse, Status: StatusSkipped, Err: fr.Err, Elapsed: time.Since(start)})
}

// parse consults the cache before running the front end. Cache failures are
// logged and otherwise ignored.
func (r *run) parse(ctx context.Context, path string) (*frontend.TranslationUnit, bool, error) {
	req := r.opts.Request
	req.File = path

	var key cache.Digest
	version := ""
	if r.opts.Cache != nil {
		version = r.opts.Frontend.Version()
		key = cache.Key(version, req)
		tu, ok, err := r.opts.Cache.Get(key, version)
		switch {
		case err != nil:
			r.log.Warn("cache read failed", "file", path, "err", err)
		case ok:
			r.log.Debug("cache hit", "file", path)
			return tu, true, nil
		default:
			r.log.Debug("cache miss", "file", path)
		}
	}

	span := trace.Begin(r.tracer, trace.ScopeFile, "parse", r.span.ID())
	tu, err := r.opts.Frontend.Parse(ctx, req)
	if err != nil {
		span.End("failed")
		return nil, false, err
	}
	span.WithExtra("diagnostics", strconv.Itoa(len(tu.Diagnostics()))).End("")

	if r.opts.Cache != nil {
		if err := r.opts.Cache.Put(key, version, tu); err != nil {
			r.log.Warn("cache write failed", "file", path, "err", err)
		}
	}
	return tu, false, nil
}

func (r *run) write(ctx context.Context, res *Result) error {
	dir := r.opts.OutputDir
	if dir == "" {
		dir = r.opts.Generation.Output
	}
	r.sink.OnEvent(Event{Stage: StageWrite, Status: StatusWorking})
	span := trace.Begin(r.tracer, trace.ScopePhase, "write", r.span.ID())
	idx := r.opts.Timer.Begin("write")

	written, err := emit.Write(ctx, dir, res.Units)
	r.opts.Timer.End(idx, strconv.Itoa(len(written))+" files")
	if err != nil {
		span.End("failed")
		r.sink.OnEvent(Event{Stage: StageWrite, Status: StatusError, Err: err})
		return fmt.Errorf("write output: %w", err)
	}
	span.WithExtra("files", strconv.Itoa(len(written))).End("")
	for _, p := range written {
		r.log.Debug("wrote", "path", p)
	}
	res.Written = written
	r.sink.OnEvent(Event{Stage: StageWrite, Status: StatusDone})
	return nil
}

// failureReason is what the transcript prints after "due to".
func failureReason(err error) error {
	if fe, ok := frontend.AsError(err); ok {
		if fe.Err == nil {
			return errors.New(fe.Kind.String())
		}
		return fmt.Errorf("%s: %w", fe.Kind, fe.Err)
	}
	return err
}

func countHard(ds []diag.Diagnostic) int {
	n := 0
	for _, d := range ds {
		if d.Severity.IsHard() {
			n++
		}
	}
	return n
}

func cachedNote(cached bool) string {
	if cached {
		return "cached"
	}
	return ""
}
