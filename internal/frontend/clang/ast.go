package clang

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
)

// node mirrors the subset of clang's -ast-dump=json output cbind reads.
type node struct {
	ID                  string    `json:"id"`
	Kind                string    `json:"kind"`
	Name                string    `json:"name"`
	Loc                 *jsonLoc  `json:"loc"`
	Range               *jsonSpan `json:"range"`
	IsImplicit          bool      `json:"isImplicit"`
	Type                *jsonType `json:"type"`
	TagUsed             string    `json:"tagUsed"`
	CompleteDefinition  bool      `json:"completeDefinition"`
	Variadic            bool      `json:"variadic"`
	Inline              bool      `json:"inline"`
	StorageClass        string    `json:"storageClass"`
	IsBitfield          bool      `json:"isBitfield"`
	Value               any       `json:"value"`
	Opcode              string    `json:"opcode"`
	FixedUnderlyingType *jsonType `json:"fixedUnderlyingType"`
	OwnedTagDecl        *declRef  `json:"ownedTagDecl"`
	Decl                *declRef  `json:"decl"`
	ReferencedDecl      *declRef  `json:"referencedDecl"`
	Inner               []*node   `json:"inner"`

	at diag.Location
}

type jsonType struct {
	QualType          string `json:"qualType"`
	DesugaredQualType string `json:"desugaredQualType"`
}

type declRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type jsonBareLoc struct {
	File string `json:"file"`
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
}

type jsonLoc struct {
	jsonBareLoc
	SpellingLoc  *jsonBareLoc `json:"spellingLoc"`
	ExpansionLoc *jsonBareLoc `json:"expansionLoc"`
}

type jsonSpan struct {
	Begin jsonLoc `json:"begin"`
	End   jsonLoc `json:"end"`
}

// locTracker undoes clang's delta encoding: "file" and "line" are only
// written when they differ from the previously written location, in
// document order.
type locTracker struct {
	file string
	line uint32
}

func (lt *locTracker) bare(l *jsonBareLoc) diag.Location {
	if l == nil {
		return diag.Location{}
	}
	if l.File != "" {
		lt.file = l.File
	}
	if l.Line != 0 {
		lt.line = l.Line
	}
	if l.Col == 0 && l.File == "" && l.Line == 0 {
		return diag.Location{}
	}
	return diag.Location{File: lt.file, Line: lt.line, Col: l.Col}
}

// loc consumes a location object and returns the expansion location, which is
// where a declaration produced by a macro appears.
func (lt *locTracker) loc(l *jsonLoc) diag.Location {
	if l == nil {
		return diag.Location{}
	}
	if l.SpellingLoc != nil || l.ExpansionLoc != nil {
		lt.bare(l.SpellingLoc)
		return lt.bare(l.ExpansionLoc)
	}
	return lt.bare(&l.jsonBareLoc)
}

// annotate walks n in document order resolving every node's location.
func (lt *locTracker) annotate(n *node) {
	if n == nil {
		return
	}
	n.at = lt.loc(n.Loc)
	if n.Range != nil {
		begin := lt.loc(&n.Range.Begin)
		lt.loc(&n.Range.End)
		if n.at.IsZero() {
			n.at = begin
		}
	}
	for _, c := range n.Inner {
		lt.annotate(c)
	}
}

// decodeTopLevel streams the translation unit's inner array, calling visit
// for every top-level node with locations resolved.
func decodeTopLevel(r io.Reader, visit func(*node)) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyAST
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	var lt locTracker
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		if key != "inner" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
			continue
		}
		if tok, err := dec.Token(); err != nil {
			return err
		} else if d, ok := tok.(json.Delim); !ok || d != '[' {
			return fmt.Errorf("expected inner array, got %v", tok)
		}
		for dec.More() {
			n := &node{}
			if err := dec.Decode(n); err != nil {
				return err
			}
			lt.annotate(n)
			visit(n)
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

var errEmptyAST = errors.New("empty AST output")

// converter turns clang nodes into cdecl declarations, keeping only those
// located under one of roots.
type converter struct {
	roots []string
	unit  *cdecl.Unit
	seen  map[string]bool
	// anon maps a clang node id to the index of an anonymous top-level decl.
	anon map[string]int
	// dropped holds indices of decls folded into a typedef name.
	dropped map[int]bool
}

func newConverter(path string, roots []string) *converter {
	return &converter{
		roots:   roots,
		unit:    &cdecl.Unit{Path: path},
		seen:    make(map[string]bool),
		anon:    make(map[string]int),
		dropped: make(map[int]bool),
	}
}

func (c *converter) keep(loc diag.Location) bool {
	if loc.File == "" {
		return false
	}
	abs, err := filepath.Abs(loc.File)
	if err != nil {
		return false
	}
	abs = filepath.Clean(abs)
	for _, root := range c.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (c *converter) noteFile(file string) {
	if file == "" || c.seen[file] {
		return
	}
	c.seen[file] = true
	c.unit.Files = append(c.unit.Files, file)
}

func (c *converter) visit(n *node) {
	if n.IsImplicit {
		return
	}
	if n.Kind == "LinkageSpecDecl" {
		for _, child := range n.Inner {
			c.visit(child)
		}
		return
	}
	if !c.keep(n.at) {
		return
	}
	c.noteFile(n.at.File)
	switch n.Kind {
	case "RecordDecl", "CXXRecordDecl":
		c.record(n)
	case "EnumDecl":
		c.add(c.enum(n), n)
	case "FunctionDecl":
		c.add(c.function(n), n)
	case "TypedefDecl", "TypeAliasDecl":
		c.typedef(n)
	default:
		c.add(cdecl.Decl{Kind: cdecl.KindOther, Name: n.Name, Loc: n.at, Native: n.Kind}, n)
	}
}

func (c *converter) add(d cdecl.Decl, n *node) {
	if d.Anonymous && n != nil && n.ID != "" {
		c.anon[n.ID] = len(c.unit.Decls)
	}
	c.unit.Decls = append(c.unit.Decls, d)
}

// finish drops folded declarations and returns the unit.
func (c *converter) finish() *cdecl.Unit {
	if len(c.dropped) == 0 {
		return c.unit
	}
	kept := c.unit.Decls[:0]
	for i, d := range c.unit.Decls {
		if !c.dropped[i] {
			kept = append(kept, d)
		}
	}
	c.unit.Decls = kept
	return c.unit
}

func (c *converter) record(n *node) {
	d := cdecl.Decl{
		Kind:      cdecl.KindRecord,
		Name:      n.Name,
		Loc:       n.at,
		Native:    n.Kind,
		Union:     n.TagUsed == "union",
		Complete:  n.CompleteDefinition,
		Anonymous: n.Name == "",
	}
	d.Fields = c.fields(n, &d)
	c.add(d, n)
}

// fields converts FieldDecl children in order. Nested named tags are hoisted
// to the top level as C scopes them; nested anonymous records become
// synthetic records named after their parent and field.
func (c *converter) fields(n *node, parent *cdecl.Decl) []cdecl.Field {
	var (
		out     []cdecl.Field
		pending *cdecl.Decl
		anonSeq int
	)
	for _, child := range n.Inner {
		if child.IsImplicit && child.Kind != "FieldDecl" {
			continue
		}
		switch child.Kind {
		case "RecordDecl", "CXXRecordDecl":
			nested := cdecl.Decl{
				Kind:     cdecl.KindRecord,
				Name:     child.Name,
				Loc:      child.at,
				Native:   child.Kind,
				Union:    child.TagUsed == "union",
				Complete: child.CompleteDefinition,
			}
			nested.Fields = c.fields(child, &nested)
			if child.Name == "" {
				pending = &nested
				continue
			}
			c.unit.Decls = append(c.unit.Decls, nested)
		case "EnumDecl":
			e := c.enum(child)
			if e.Anonymous {
				continue
			}
			c.unit.Decls = append(c.unit.Decls, e)
		case "FieldDecl":
			f := cdecl.Field{Name: child.Name, Loc: child.at}
			if child.Type != nil {
				t, err := ParseQualType(child.Type.QualType)
				if err != nil {
					t = &cdecl.Type{Kind: cdecl.TypeBuiltin, Name: child.Type.QualType}
				}
				f.Type = t
			}
			if child.IsBitfield {
				f.BitWidth = bitWidth(child)
			}
			if pending != nil && f.Type != nil && bindAnonymous(f.Type) != nil {
				suffix := f.Name
				if suffix == "" {
					suffix = fmt.Sprintf("anon%d", anonSeq)
					anonSeq++
				}
				owner := parent.Name
				if owner == "" {
					owner = "Anon"
				}
				pending.Name = owner + "_" + suffix
				ref := bindAnonymous(f.Type)
				ref.Name = pending.Name
				ref.Anonymous = false
				c.unit.Decls = append(c.unit.Decls, *pending)
				pending = nil
				if f.Name == "" {
					f.Name = suffix
				}
			}
			out = append(out, f)
		}
	}
	return out
}

// bindAnonymous returns the anonymous record reference inside t, if any.
func bindAnonymous(t *cdecl.Type) *cdecl.Type {
	for t != nil {
		if t.Anonymous && (t.Kind == cdecl.TypeRecord || t.Kind == cdecl.TypeEnum) {
			return t
		}
		t = t.Elem
	}
	return nil
}

func bitWidth(n *node) int {
	for _, child := range n.Inner {
		if v, ok := evalValue(child, nil); ok && v.IsInt64() {
			return int(v.Int64())
		}
	}
	return -1
}

func (c *converter) enum(n *node) cdecl.Decl {
	d := cdecl.Decl{
		Kind:      cdecl.KindEnum,
		Name:      n.Name,
		Loc:       n.at,
		Native:    n.Kind,
		Anonymous: n.Name == "",
		Complete:  true,
	}
	if n.FixedUnderlyingType != nil {
		if t, err := ParseQualType(n.FixedUnderlyingType.QualType); err == nil {
			d.Fixed = t
		}
	}
	known := make(map[string]*big.Int)
	prev := big.NewInt(-1)
	for _, child := range n.Inner {
		if child.Kind != "EnumConstantDecl" {
			continue
		}
		var val *big.Int
		for _, expr := range child.Inner {
			if v, ok := evalValue(expr, known); ok {
				val = v
				break
			}
		}
		if val == nil && len(child.Inner) == 0 && prev != nil {
			val = new(big.Int).Add(prev, big.NewInt(1))
		}
		e := cdecl.Enumerator{Name: child.Name}
		if val != nil {
			e.Value = val.String()
			known[child.Name] = val
		}
		// после невычисленного значения неявные остаются без значения
		prev = val
		d.Enumerators = append(d.Enumerators, e)
	}
	return d
}

// evalValue evaluates the constant expressions clang leaves in enumerator
// initialisers. C++ mode wraps them in ConstantExpr carrying the value; C mode
// needs the small evaluator below.
func evalValue(n *node, known map[string]*big.Int) (*big.Int, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Kind {
	case "ConstantExpr", "IntegerLiteral", "CharacterLiteral":
		if v, ok := literalValue(n.Value); ok {
			return v, true
		}
		if len(n.Inner) == 1 {
			return evalValue(n.Inner[0], known)
		}
	case "ParenExpr", "ImplicitCastExpr", "CStyleCastExpr", "CXXFunctionalCastExpr", "CXXStaticCastExpr":
		if len(n.Inner) == 1 {
			return evalValue(n.Inner[0], known)
		}
	case "DeclRefExpr":
		if n.ReferencedDecl != nil && known != nil {
			if v, ok := known[n.ReferencedDecl.Name]; ok {
				return new(big.Int).Set(v), true
			}
		}
	case "UnaryOperator":
		if len(n.Inner) != 1 {
			return nil, false
		}
		v, ok := evalValue(n.Inner[0], known)
		if !ok {
			return nil, false
		}
		switch n.Opcode {
		case "-":
			return v.Neg(v), true
		case "+":
			return v, true
		case "~":
			return v.Not(v), true
		}
	case "BinaryOperator":
		if len(n.Inner) != 2 {
			return nil, false
		}
		a, ok := evalValue(n.Inner[0], known)
		if !ok {
			return nil, false
		}
		b, ok := evalValue(n.Inner[1], known)
		if !ok {
			return nil, false
		}
		return binaryOp(n.Opcode, a, b)
	}
	return nil, false
}

func binaryOp(op string, a, b *big.Int) (*big.Int, bool) {
	r := new(big.Int)
	switch op {
	case "+":
		return r.Add(a, b), true
	case "-":
		return r.Sub(a, b), true
	case "*":
		return r.Mul(a, b), true
	case "/":
		if b.Sign() == 0 {
			return nil, false
		}
		return r.Quo(a, b), true
	case "%":
		if b.Sign() == 0 {
			return nil, false
		}
		return r.Rem(a, b), true
	case "|":
		return r.Or(a, b), true
	case "&":
		return r.And(a, b), true
	case "^":
		return r.Xor(a, b), true
	case "<<":
		if !b.IsUint64() || b.Uint64() > 128 {
			return nil, false
		}
		return r.Lsh(a, uint(b.Uint64())), true
	case ">>":
		if !b.IsUint64() || b.Uint64() > 128 {
			return nil, false
		}
		return r.Rsh(a, uint(b.Uint64())), true
	}
	return nil, false
}

func literalValue(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case string:
		r, ok := new(big.Int).SetString(x, 0)
		return r, ok
	case float64:
		r, _ := big.NewFloat(x).Int(nil)
		return r, true
	}
	return nil, false
}

func (c *converter) function(n *node) cdecl.Decl {
	d := cdecl.Decl{
		Kind:     cdecl.KindFunction,
		Name:     n.Name,
		Loc:      n.at,
		Native:   n.Kind,
		Variadic: n.Variadic,
		Inline:   n.Inline || n.StorageClass == "static",
	}
	if n.Type != nil {
		if t, err := ParseQualType(n.Type.QualType); err == nil && t.Kind == cdecl.TypeFunc {
			d.Result = t.Result
			d.Variadic = d.Variadic || t.Variadic
			for _, p := range t.Params {
				d.Params = append(d.Params, cdecl.Param{Type: p})
			}
		}
	}
	i := 0
	for _, child := range n.Inner {
		switch child.Kind {
		case "ParmVarDecl":
			var pt *cdecl.Type
			if child.Type != nil {
				pt, _ = ParseQualType(child.Type.QualType)
			}
			if i < len(d.Params) {
				d.Params[i].Name = child.Name
				if pt != nil {
					d.Params[i].Type = pt
				}
			} else if pt != nil {
				d.Params = append(d.Params, cdecl.Param{Name: child.Name, Type: pt})
			}
			i++
		case "CompoundStmt":
			d.Inline = true
		}
	}
	if d.Result == nil {
		d.Result = cdecl.Builtin("void")
	}
	return d
}

// typedef records a typedef, or names the anonymous tag it introduces
// (typedef struct { ... } Foo;).
func (c *converter) typedef(n *node) {
	if ref := ownedTag(n); ref != nil {
		if idx, ok := c.anon[ref.ID]; ok && !c.dropped[idx] {
			d := &c.unit.Decls[idx]
			if d.Anonymous {
				d.Name = n.Name
				d.Anonymous = false
				delete(c.anon, ref.ID)
				return
			}
		}
	}
	d := cdecl.Decl{Kind: cdecl.KindTypedef, Name: n.Name, Loc: n.at, Native: n.Kind}
	if n.Type != nil {
		t, err := ParseQualType(n.Type.QualType)
		if err != nil {
			t = &cdecl.Type{Kind: cdecl.TypeBuiltin, Name: n.Type.QualType}
		}
		if t.Anonymous {
			t.Name = n.Name
			t.Anonymous = false
		}
		d.Underlying = t
	}
	c.add(d, n)
}

func ownedTag(n *node) *declRef {
	for _, child := range n.Inner {
		if child.OwnedTagDecl != nil {
			return child.OwnedTagDecl
		}
		if child.Decl != nil && isTagKind(child.Decl.Kind) {
			return child.Decl
		}
		if ref := ownedTag(child); ref != nil {
			return ref
		}
	}
	return nil
}

func isTagKind(kind string) bool {
	switch kind {
	case "RecordDecl", "CXXRecordDecl", "EnumDecl":
		return true
	}
	return false
}
