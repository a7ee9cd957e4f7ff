package diag

// Bag is an append-only, ordered collection of diagnostics.
type Bag struct {
	items []Diagnostic
}

func NewBag(capacity int) *Bag {
	if capacity < 0 {
		capacity = 0
	}
	return &Bag{items: make([]Diagnostic, 0, capacity)}
}

// Add appends d, keeping insertion order.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// AddAll appends ds in order.
func (b *Bag) AddAll(ds []Diagnostic) {
	b.items = append(b.items, ds...)
}

// HasErrors возвращает true, если есть хотя бы одна диагностика Error или Fatal.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity.IsHard() {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics with exactly the given severity.
func (b *Bag) Count(sev Severity) int {
	n := 0
	for i := range b.items {
		if b.items[i].Severity == sev {
			n++
		}
	}
	return n
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns a copy of the diagnostics in insertion order.
func (b *Bag) Items() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// FromOrigin returns the diagnostics produced by origin, order preserved.
func (b *Bag) FromOrigin(origin Origin) []Diagnostic {
	return FilterOrigin(b.items, origin)
}

// FilterOrigin keeps the diagnostics of ds that were produced by origin.
func FilterOrigin(ds []Diagnostic, origin Origin) []Diagnostic {
	out := make([]Diagnostic, 0, len(ds))
	for _, d := range ds {
		if d.Origin == origin {
			out = append(out, d)
		}
	}
	return out
}
