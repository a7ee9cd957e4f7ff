package emit

import (
	"fmt"
	"go/format"
	"strings"

	"cbind/internal/cdecl"
	"cbind/internal/config"
	"cbind/internal/diag"
)

// Binding is one rendered declaration.
type Binding struct {
	// Name is the Go identifier; for functions the container field name.
	Name  string
	CName string
	Kind  cdecl.DeclKind
	Loc   diag.Location
	// Source is gofmt-formatted Go. For functions it is the container
	// field including its doc comment.
	Source string
	// Register is the purego registration statement (functions only).
	Register   string
	UsesUnsafe bool

	opaque bool
	consts []string
}

// Generator accumulates bindings across the translation units of a run.
type Generator struct {
	cfg    config.Generation
	layout *layout

	bindings []*Binding
	types    map[string]*Binding
	funcs    map[string]*Binding
	consts   map[string]*Binding
	reserved map[string]bool

	bag *diag.Bag
}

// New returns a generator for cfg.
func New(cfg config.Generation) *Generator {
	if cfg.CallingConvention == "" {
		cfg.CallingConvention = "cdecl"
	}
	g := &Generator{
		cfg:      cfg,
		layout:   newLayout(),
		types:    make(map[string]*Binding),
		funcs:    make(map[string]*Binding),
		consts:   make(map[string]*Binding),
		reserved: make(map[string]bool),
	}
	for _, name := range []string{cfg.MethodContainer, loaderName(cfg.MethodContainer), "LibraryName"} {
		g.reserved[name] = true
	}
	return g
}

func loaderName(container string) string {
	return "Load" + container
}

// Config returns the generation settings.
func (g *Generator) Config() config.Generation {
	return g.cfg
}

// Generate emits bindings for every declaration of unit and returns the
// emitter diagnostics it produced, in declaration order.
func (g *Generator) Generate(unit *cdecl.Unit) []diag.Diagnostic {
	g.bag = diag.NewBag(8)
	defer func() { g.bag = nil }()
	if unit == nil {
		return nil
	}
	g.learn(unit)
	for i := range unit.Decls {
		d := &unit.Decls[i]
		switch d.Kind {
		case cdecl.KindRecord:
			g.record(d)
		case cdecl.KindEnum:
			g.enum(d)
		case cdecl.KindTypedef:
			g.typedef(d)
		case cdecl.KindFunction:
			g.function(d)
		default:
			g.warn(diag.EmitUnsupportedDecl, d.Loc, "%s '%s' has no binding; skipped", nativeKind(d), d.Name)
		}
	}
	return g.bag.Items()
}

// Bindings returns the rendered declarations in encounter order.
func (g *Generator) Bindings() []Binding {
	out := make([]Binding, 0, len(g.bindings))
	for _, b := range g.bindings {
		out = append(out, *b)
	}
	return out
}

// learn records sizes of everything unit declares before emission, so unions
// can reference records declared after them.
func (g *Generator) learn(unit *cdecl.Unit) {
	for i := range unit.Decls {
		d := &unit.Decls[i]
		if d.Name == "" {
			continue
		}
		switch d.Kind {
		case cdecl.KindRecord:
			if prev, ok := g.layout.records[d.Name]; !ok || !prev.Complete {
				g.layout.records[d.Name] = d
			}
		case cdecl.KindEnum:
			g.layout.enums[d.Name] = d
		case cdecl.KindTypedef:
			if d.Underlying != nil && !sameTag(d) {
				g.layout.typedefs[d.Name] = d.Underlying
			}
		}
	}
}

func nativeKind(d *cdecl.Decl) string {
	if d.Native != "" {
		return d.Native
	}
	return d.Kind.String()
}

func (g *Generator) report(sev diag.Severity, code diag.Code, loc diag.Location, format string, args ...any) {
	d := diag.New(diag.OriginEmitter, sev, code, fmt.Sprintf(format, args...)).At(loc)
	g.bag.Add(d)
}

func (g *Generator) warn(code diag.Code, loc diag.Location, format string, args ...any) {
	g.report(diag.SevWarning, code, loc, format, args...)
}

func (g *Generator) fail(code diag.Code, loc diag.Location, format string, args ...any) {
	g.report(diag.SevError, code, loc, format, args...)
}

func (g *Generator) note(code diag.Code, loc diag.Location, format string, args ...any) {
	g.report(diag.SevNote, code, loc, format, args...)
}

// addType registers a type binding. Redeclarations with identical text are
// dropped; an opaque binding is upgraded in place by a complete one.
func (g *Generator) addType(b *Binding) {
	if g.reserved[b.Name] {
		g.fail(diag.EmitDuplicateBinding, b.Loc, "'%s' collides with a generated identifier", b.Name)
		return
	}
	if prev, ok := g.types[b.Name]; ok {
		switch {
		case prev.Source == b.Source:
		case prev.opaque && !b.opaque:
			prev.Source, prev.UsesUnsafe, prev.opaque, prev.Loc = b.Source, b.UsesUnsafe, false, b.Loc
		case b.opaque:
		default:
			g.fail(diag.EmitDuplicateBinding, b.Loc, "'%s' is already bound to a different declaration at %s", b.Name, prev.Loc)
		}
		return
	}
	if prev, ok := g.consts[b.Name]; ok {
		g.fail(diag.EmitDuplicateBinding, b.Loc, "'%s' is already bound as a constant at %s", b.Name, prev.Loc)
		return
	}
	for _, c := range b.consts {
		if g.reserved[c] || g.types[c] != nil {
			g.fail(diag.EmitDuplicateBinding, b.Loc, "enumerator '%s' collides with another binding", c)
			return
		}
		if prev, ok := g.consts[c]; ok && prev.Name != b.Name {
			g.fail(diag.EmitDuplicateBinding, b.Loc, "enumerator '%s' is already bound at %s", c, prev.Loc)
			return
		}
	}
	for _, c := range b.consts {
		g.consts[c] = b
	}
	g.types[b.Name] = b
	g.bindings = append(g.bindings, b)
}

func (g *Generator) addFunc(b *Binding) {
	if prev, ok := g.funcs[b.Name]; ok {
		if prev.Source != b.Source || prev.CName != b.CName {
			g.fail(diag.EmitDuplicateBinding, b.Loc, "function '%s' is already bound to '%s' at %s", b.Name, prev.CName, prev.Loc)
		}
		return
	}
	g.funcs[b.Name] = b
	g.bindings = append(g.bindings, b)
}

// formatDecl gofmts a declaration list.
func (g *Generator) formatDecl(loc diag.Location, name, src string) (string, bool) {
	out, err := format.Source([]byte(src))
	if err != nil {
		g.fail(diag.EmitFormat, loc, "binding for '%s' is not valid Go: %v", name, err)
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}
