// Package cdecl is the front-end independent model of a parsed header: the
// declarations a translation unit contributes and the C types they use.
// Values are plain data so units can be cached and compared.
package cdecl

import (
	"strconv"
	"strings"

	"cbind/internal/diag"
)

// DeclKind classifies a top-level declaration.
type DeclKind uint8

const (
	KindRecord DeclKind = iota + 1
	KindEnum
	KindFunction
	KindTypedef
	// KindOther covers declarations the front end saw but cdecl does not model
	// (variables, namespaces, templates).
	KindOther
)

func (k DeclKind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	case KindFunction:
		return "function"
	case KindTypedef:
		return "typedef"
	case KindOther:
		return "other"
	}
	return "unknown"
}

// Unit is what one translation unit contributes to the bindings.
type Unit struct {
	Path  string
	Decls []Decl
	// Files lists every file the kept declarations came from, first-seen order.
	Files []string
}

// Decl is a top-level declaration.
type Decl struct {
	Kind DeclKind
	Name string
	Loc  diag.Location
	// Native is the front end's node kind, e.g. "VarDecl", kept for diagnostics.
	Native string

	// Records
	Union     bool
	Complete  bool
	Anonymous bool
	Fields    []Field

	// Enums
	Enumerators []Enumerator
	Fixed       *Type

	// Functions
	Params   []Param
	Result   *Type
	Variadic bool
	Inline   bool

	// Typedefs
	Underlying *Type
}

// Field is a record member in declaration order.
type Field struct {
	Name     string
	Type     *Type
	BitWidth int
	Loc      diag.Location
}

// Enumerator keeps the value as written by the front end, in decimal.
type Enumerator struct {
	Name  string
	Value string
}

// Param is a function parameter; Name may be empty.
type Param struct {
	Name string
	Type *Type
}

// TypeKind classifies a C type.
type TypeKind uint8

const (
	TypeBuiltin TypeKind = iota + 1
	// TypeNamed refers to a typedef name.
	TypeNamed
	TypePointer
	TypeArray
	TypeFunc
	TypeRecord
	TypeEnum
)

// Type is a C type tree. Elem is the pointee/element, Result and Params
// describe function types.
type Type struct {
	Kind      TypeKind
	Name      string
	Const     bool
	Union     bool
	Anonymous bool
	Elem      *Type
	// Len is the array length; -1 for T[].
	Len      int
	Params   []*Type
	Result   *Type
	Variadic bool
}

// Builtin returns a builtin type such as "unsigned int".
func Builtin(name string) *Type {
	return &Type{Kind: TypeBuiltin, Name: name}
}

// Named returns a reference to a typedef name.
func Named(name string) *Type {
	return &Type{Kind: TypeNamed, Name: name}
}

// PointerTo returns elem *.
func PointerTo(elem *Type) *Type {
	return &Type{Kind: TypePointer, Elem: elem}
}

// ArrayOf returns elem[n].
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Kind: TypeArray, Elem: elem, Len: n}
}

// IsVoid reports whether t is the builtin void.
func (t *Type) IsVoid() bool {
	return t != nil && t.Kind == TypeBuiltin && t.Name == "void"
}

// String renders t back into C spelling; used for native type name comments.
func (t *Type) String() string {
	if t == nil {
		return ""
	}
	return render(t, "")
}

func render(t *Type, inner string) string {
	if t == nil {
		return inner
	}
	switch t.Kind {
	case TypePointer:
		s := "*"
		if t.Const {
			s = "*const"
		}
		switch {
		case inner == "":
		case strings.HasPrefix(inner, "[") || strings.HasPrefix(inner, "("):
			s += inner
		default:
			s += " " + inner
		}
		if t.Elem != nil && (t.Elem.Kind == TypeArray || t.Elem.Kind == TypeFunc) {
			s = "(" + s + ")"
		}
		return render(t.Elem, s)
	case TypeArray:
		n := ""
		if t.Len >= 0 {
			n = strconv.Itoa(t.Len)
		}
		return render(t.Elem, inner+"["+n+"]")
	case TypeFunc:
		params := make([]string, 0, len(t.Params)+1)
		for _, p := range t.Params {
			params = append(params, p.String())
		}
		if t.Variadic {
			params = append(params, "...")
		}
		if len(params) == 0 {
			params = append(params, "void")
		}
		return render(t.Result, inner+"("+strings.Join(params, ", ")+")")
	}
	base := t.Name
	switch t.Kind {
	case TypeRecord:
		tag := "struct "
		if t.Union {
			tag = "union "
		}
		base = tag + t.Name
	case TypeEnum:
		base = "enum " + t.Name
	}
	if t.Const {
		base = "const " + base
	}
	if inner == "" {
		return base
	}
	return base + " " + inner
}
