package diag

// FileRecord groups the diagnostics reported while one input file was handled.
type FileRecord struct {
	Path     string
	FrontEnd []Diagnostic
	Emitter  []Diagnostic
	Skipped  bool
	Reason   string
}

// Aggregator concatenates every file's front-end and emitter diagnostics in
// driver-processing order and tracks the had-skip flag. Status is computed
// once, after all files, by calling Status.
type Aggregator struct {
	all     Bag
	files   []*FileRecord
	current *FileRecord
	hadSkip bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Begin opens the record for the next input file.
func (a *Aggregator) Begin(path string) {
	rec := &FileRecord{Path: path}
	a.files = append(a.files, rec)
	a.current = rec
}

// AddFrontEnd records the front-end diagnostics of the current file in the
// order the front end produced them.
func (a *Aggregator) AddFrontEnd(ds []Diagnostic) {
	rec := a.ensure()
	rec.FrontEnd = append(rec.FrontEnd, ds...)
	a.all.AddAll(ds)
}

// AddEmitter records emitter diagnostics for the current file.
func (a *Aggregator) AddEmitter(ds []Diagnostic) {
	rec := a.ensure()
	rec.Emitter = append(rec.Emitter, ds...)
	a.all.AddAll(ds)
}

// Report implements Reporter by routing on the diagnostic origin.
func (a *Aggregator) Report(d Diagnostic) {
	if d.Origin == OriginEmitter {
		a.AddEmitter([]Diagnostic{d})
		return
	}
	a.AddFrontEnd([]Diagnostic{d})
}

// MarkSkip flags the current file as skipped. The flag is sticky for the run.
func (a *Aggregator) MarkSkip(reason string) {
	rec := a.ensure()
	rec.Skipped = true
	rec.Reason = reason
	a.hadSkip = true
}

func (a *Aggregator) HadSkip() bool {
	return a.hadSkip
}

// Diagnostics returns the global ordered sequence.
func (a *Aggregator) Diagnostics() []Diagnostic {
	return a.all.Items()
}

// Files returns the per-file records in processing order.
func (a *Aggregator) Files() []FileRecord {
	out := make([]FileRecord, len(a.files))
	for i, rec := range a.files {
		out[i] = *rec
	}
	return out
}

// Status computes the exit status over everything recorded so far.
func (a *Aggregator) Status() int {
	return ExitStatus(a.all.items, a.hadSkip)
}

func (a *Aggregator) ensure() *FileRecord {
	if a.current == nil {
		a.Begin("")
	}
	return a.current
}
