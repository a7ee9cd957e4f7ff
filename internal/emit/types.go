package emit

import (
	"errors"
	"fmt"
	"strconv"

	"cbind/internal/cdecl"
)

// builtins maps C builtin spellings (as canonicalised by the front end) to Go.
// long is 64-bit: generated code targets LP64 platforms.
var builtins = map[string]string{
	"char":               "byte",
	"signed char":        "int8",
	"unsigned char":      "uint8",
	"short":              "int16",
	"unsigned short":     "uint16",
	"int":                "int32",
	"unsigned int":       "uint32",
	"long":               "int64",
	"unsigned long":      "uint64",
	"long long":          "int64",
	"unsigned long long": "uint64",
	"float":              "float32",
	"double":             "float64",
	"bool":               "bool",
	"wchar_t":            "int32",
	"char8_t":            "uint8",
	"char16_t":           "uint16",
	"char32_t":           "uint32",
}

// wellKnown maps standard typedef names so headers can use them without the
// system headers being part of the binding.
var wellKnown = map[string]string{
	"int8_t":    "int8",
	"int16_t":   "int16",
	"int32_t":   "int32",
	"int64_t":   "int64",
	"uint8_t":   "uint8",
	"uint16_t":  "uint16",
	"uint32_t":  "uint32",
	"uint64_t":  "uint64",
	"intptr_t":  "int",
	"uintptr_t": "uintptr",
	"size_t":    "uintptr",
	"ssize_t":   "int",
	"ptrdiff_t": "int",
	"wchar_t":   "int32",
}

type position uint8

const (
	posField position = iota
	posParam
	posResult
	posTypedef
)

var errUnmappable = errors.New("unmappable type")

// typeMapper renders cdecl types as Go types and records the imports they need.
type typeMapper struct {
	usesUnsafe bool
}

func (m *typeMapper) goType(t *cdecl.Type, pos position) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: missing type", errUnmappable)
	}
	switch t.Kind {
	case cdecl.TypeBuiltin:
		if t.IsVoid() {
			if pos == posResult {
				return "", nil
			}
			return "", fmt.Errorf("%w: void", errUnmappable)
		}
		if s, ok := builtins[t.Name]; ok {
			return s, nil
		}
		return "", fmt.Errorf("%w: %s", errUnmappable, t.Name)
	case cdecl.TypeNamed:
		if s, ok := wellKnown[t.Name]; ok {
			return s, nil
		}
		if !isGoName(t.Name) {
			return "", fmt.Errorf("%w: %s", errUnmappable, t.Name)
		}
		return ident(t.Name), nil
	case cdecl.TypeRecord, cdecl.TypeEnum:
		if t.Anonymous || t.Name == "" {
			return "", fmt.Errorf("%w: anonymous %s", errUnmappable, t)
		}
		if !isGoName(t.Name) {
			return "", fmt.Errorf("%w: %s", errUnmappable, t)
		}
		return ident(t.Name), nil
	case cdecl.TypePointer:
		elem := t.Elem
		if elem.IsVoid() {
			m.usesUnsafe = true
			return "unsafe.Pointer", nil
		}
		if elem != nil && elem.Kind == cdecl.TypeFunc {
			return "uintptr", nil
		}
		inner, err := m.goType(elem, posField)
		if err != nil {
			return "", err
		}
		return "*" + inner, nil
	case cdecl.TypeArray:
		if pos == posParam {
			// массив в параметре - это указатель
			return m.goType(cdecl.PointerTo(t.Elem), pos)
		}
		inner, err := m.goType(t.Elem, posField)
		if err != nil {
			return "", err
		}
		n := t.Len
		if n < 0 {
			n = 0
		}
		return "[" + strconv.Itoa(n) + "]" + inner, nil
	case cdecl.TypeFunc:
		return "uintptr", nil
	}
	return "", fmt.Errorf("%w: %s", errUnmappable, t)
}

// isGoName rejects C++ qualified names and anything else that would not be a
// plain identifier once escaped.
func isGoName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
