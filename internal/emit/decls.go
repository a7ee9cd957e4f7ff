package emit

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
)

func (g *Generator) record(d *cdecl.Decl) {
	kind := "struct"
	if d.Union {
		kind = "union"
	}
	if d.Anonymous || d.Name == "" {
		g.warn(diag.EmitAnonymousDecl, d.Loc, "anonymous %s has no name to bind; skipped", kind)
		return
	}
	name := ident(d.Name)
	if !d.Complete {
		g.opaque(d, name, fmt.Sprintf("// %s is an opaque C %s.\ntype %s struct{}\n", name, kind, name))
		return
	}
	for _, f := range d.Fields {
		if f.BitWidth != 0 {
			g.warn(diag.EmitBitField, f.Loc, "%s '%s' has bit-field '%s'; skipped", kind, d.Name, f.Name)
			return
		}
	}
	if d.Union {
		g.union(d, name)
		return
	}

	var (
		m     typeMapper
		sb    strings.Builder
		taken = make(map[string]bool, len(d.Fields))
	)
	fmt.Fprintf(&sb, "type %s struct {\n", name)
	for _, f := range d.Fields {
		gt, err := m.goType(f.Type, posField)
		if err != nil {
			g.warn(diag.EmitUnmappableType, f.Loc, "field '%s.%s': %v", d.Name, f.Name, err)
			return
		}
		fname := exportedField(f.Name)
		if taken[fname] {
			renamed := fname + "_"
			for taken[renamed] {
				renamed += "_"
			}
			g.note(diag.EmitFieldRenamed, f.Loc, "field '%s.%s' bound as %s", d.Name, f.Name, renamed)
			fname = renamed
		}
		taken[fname] = true
		fmt.Fprintf(&sb, "\t%s %s // %s\n", fname, gt, f.Type)
	}
	sb.WriteString("}\n")
	src, ok := g.formatDecl(d.Loc, d.Name, sb.String())
	if !ok {
		return
	}
	g.addType(&Binding{Name: name, CName: d.Name, Kind: cdecl.KindRecord, Loc: d.Loc, Source: src, UsesUnsafe: m.usesUnsafe})
}

func (g *Generator) opaque(d *cdecl.Decl, name, src string) {
	src, ok := g.formatDecl(d.Loc, d.Name, src)
	if !ok {
		return
	}
	g.addType(&Binding{Name: name, CName: d.Name, Kind: cdecl.KindRecord, Loc: d.Loc, Source: src, opaque: true})
}

// union emits a raw buffer with the union's size and alignment; Go has no
// overlapping fields.
func (g *Generator) union(d *cdecl.Decl, name string) {
	size, align, ok := g.layout.recordSize(d, 0)
	if !ok {
		g.warn(diag.EmitOpaqueRecord, d.Loc, "size of union '%s' is unknown; emitted as opaque struct", d.Name)
		g.opaque(d, name, fmt.Sprintf("// %s is an opaque C union.\ntype %s struct{}\n", name, name))
		return
	}
	g.warn(diag.EmitUnionAsBuffer, d.Loc, "union '%s' emitted as a %d-byte buffer", d.Name, size)

	var sb strings.Builder
	fmt.Fprintf(&sb, "// %s is a C union of:\n//\n", name)
	for _, f := range d.Fields {
		fmt.Fprintf(&sb, "//\t%s %s\n", f.Name, f.Type)
	}
	fmt.Fprintf(&sb, "type %s struct {\n", name)
	if a := alignType(align); a != "" {
		fmt.Fprintf(&sb, "\t_ [0]%s\n", a)
	}
	fmt.Fprintf(&sb, "\tRaw [%d]byte\n}\n", size)
	src, ok := g.formatDecl(d.Loc, d.Name, sb.String())
	if !ok {
		return
	}
	g.addType(&Binding{Name: name, CName: d.Name, Kind: cdecl.KindRecord, Loc: d.Loc, Source: src})
}

func alignType(align uint64) string {
	switch align {
	case 2:
		return "uint16"
	case 4:
		return "uint32"
	case 8:
		return "uint64"
	}
	return ""
}

func (g *Generator) enum(d *cdecl.Decl) {
	if d.Anonymous || d.Name == "" {
		g.warn(diag.EmitAnonymousDecl, d.Loc, "anonymous enum has no name to bind; skipped")
		return
	}
	name := ident(d.Name)
	underlying := enumUnderlying(d.Enumerators)
	if d.Fixed != nil {
		var m typeMapper
		gt, err := m.goType(d.Fixed, posTypedef)
		if err != nil {
			g.warn(diag.EmitUnmappableType, d.Loc, "underlying type of enum '%s': %v", d.Name, err)
			return
		}
		underlying = gt
	}

	var (
		sb     strings.Builder
		consts []string
	)
	fmt.Fprintf(&sb, "type %s %s\n", name, underlying)
	if len(d.Enumerators) > 0 {
		sb.WriteString("\nconst (\n")
		for _, e := range d.Enumerators {
			if e.Value == "" {
				g.warn(diag.EmitUnsupportedDecl, d.Loc, "enumerator '%s' has no constant value; skipped", e.Name)
				continue
			}
			cname := ident(e.Name)
			consts = append(consts, cname)
			fmt.Fprintf(&sb, "\t%s %s = %s\n", cname, name, e.Value)
		}
		sb.WriteString(")\n")
	}
	src, ok := g.formatDecl(d.Loc, d.Name, sb.String())
	if !ok {
		return
	}
	g.addType(&Binding{Name: name, CName: d.Name, Kind: cdecl.KindEnum, Loc: d.Loc, Source: src, consts: consts})
}

var (
	minInt32  = big.NewInt(math.MinInt32)
	maxInt32  = big.NewInt(math.MaxInt32)
	maxUint32 = new(big.Int).SetUint64(math.MaxUint32)
	minInt64  = big.NewInt(math.MinInt64)
	maxInt64  = big.NewInt(math.MaxInt64)
)

// enumUnderlying picks the narrowest of int32, uint32, int64, uint64 that
// holds every value.
func enumUnderlying(es []cdecl.Enumerator) string {
	fitsInt32, fitsUint32, fitsInt64 := true, true, true
	for _, e := range es {
		v, ok := new(big.Int).SetString(e.Value, 10)
		if !ok {
			continue
		}
		if v.Cmp(minInt32) < 0 || v.Cmp(maxInt32) > 0 {
			fitsInt32 = false
		}
		if v.Sign() < 0 || v.Cmp(maxUint32) > 0 {
			fitsUint32 = false
		}
		if v.Cmp(minInt64) < 0 || v.Cmp(maxInt64) > 0 {
			fitsInt64 = false
		}
	}
	switch {
	case fitsInt32:
		return "int32"
	case fitsUint32:
		return "uint32"
	case fitsInt64:
		return "int64"
	}
	return "uint64"
}

// sameTag reports typedef struct Foo Foo; and friends, which Go needs only once.
func sameTag(d *cdecl.Decl) bool {
	u := d.Underlying
	return u != nil && (u.Kind == cdecl.TypeRecord || u.Kind == cdecl.TypeEnum) && u.Name == d.Name
}

func (g *Generator) typedef(d *cdecl.Decl) {
	if d.Underlying == nil {
		g.warn(diag.EmitUnmappableType, d.Loc, "typedef '%s' has no underlying type", d.Name)
		return
	}
	if sameTag(d) {
		return
	}
	if _, ok := wellKnown[d.Name]; ok {
		return
	}
	if d.Underlying.Anonymous {
		g.warn(diag.EmitAnonymousDecl, d.Loc, "typedef '%s' names an anonymous type that was not bound; skipped", d.Name)
		return
	}
	name := ident(d.Name)
	u := d.Underlying

	var (
		m   typeMapper
		src string
	)
	switch {
	case u.Kind == cdecl.TypeFunc || (u.Kind == cdecl.TypePointer && u.Elem != nil && u.Elem.Kind == cdecl.TypeFunc):
		src = fmt.Sprintf("// %s is the C function pointer type %s.\ntype %s uintptr\n", name, u, name)
	default:
		gt, err := m.goType(u, posTypedef)
		if err != nil {
			g.warn(diag.EmitUnmappableType, d.Loc, "typedef '%s': %v", d.Name, err)
			return
		}
		if u.Kind == cdecl.TypeRecord || u.Kind == cdecl.TypeEnum {
			src = fmt.Sprintf("type %s = %s\n", name, gt)
		} else {
			src = fmt.Sprintf("type %s %s // %s\n", name, gt, u)
		}
	}
	out, ok := g.formatDecl(d.Loc, d.Name, src)
	if !ok {
		return
	}
	g.addType(&Binding{Name: name, CName: d.Name, Kind: cdecl.KindTypedef, Loc: d.Loc, Source: out, UsesUnsafe: m.usesUnsafe})
}

func (g *Generator) function(d *cdecl.Decl) {
	if d.Inline {
		g.warn(diag.EmitInlineDefinition, d.Loc, "function '%s' is defined inline and not exported; skipped", d.Name)
		return
	}
	if d.Variadic {
		g.warn(diag.EmitVariadic, d.Loc, "variadic function '%s' cannot be bound; skipped", d.Name)
		return
	}
	name := ident(stripPrefix(d.Name, g.cfg.MethodPrefix))

	var (
		m      typeMapper
		params = make([]string, 0, len(d.Params))
	)
	for i, p := range d.Params {
		gt, err := m.goType(p.Type, posParam)
		if err != nil {
			g.warn(diag.EmitUnmappableType, d.Loc, "parameter %d of '%s': %v", i, d.Name, err)
			return
		}
		params = append(params, paramName(p.Name, i)+" "+gt)
	}
	result, err := m.goType(d.Result, posResult)
	if err != nil {
		g.warn(diag.EmitUnmappableType, d.Loc, "result of '%s': %v", d.Name, err)
		return
	}
	sig := "func(" + strings.Join(params, ", ") + ")"
	if result != "" {
		sig += " " + result
	}

	// поле форматируем внутри временной структуры, затем вынимаем строки
	field := fmt.Sprintf("\t// %s calls %s (%s).\n\t%s %s\n", name, d.Name, g.cfg.CallingConvention, name, sig)
	src, ok := g.formatDecl(d.Loc, d.Name, "var _ struct {\n"+field+"}\n")
	if !ok {
		return
	}
	src = strings.TrimSuffix(strings.TrimPrefix(src, "var _ struct {\n"), "\n}")
	g.addFunc(&Binding{
		Name:       name,
		CName:      d.Name,
		Kind:       cdecl.KindFunction,
		Loc:        d.Loc,
		Source:     src,
		Register:   fmt.Sprintf("purego.RegisterLibFunc(&%s.%s, handle, %q)", g.cfg.MethodContainer, name, d.Name),
		UsesUnsafe: m.usesUnsafe,
	})
}
