package emit

import (
	"fortio.org/safecast"

	"cbind/internal/cdecl"
)

// layout computes C sizes and alignments for the LP64 data model. It only
// knows declarations the generator has seen; anything else has unknown size.
type layout struct {
	records  map[string]*cdecl.Decl
	typedefs map[string]*cdecl.Type
	enums    map[string]*cdecl.Decl
}

func newLayout() *layout {
	return &layout{
		records:  make(map[string]*cdecl.Decl),
		typedefs: make(map[string]*cdecl.Type),
		enums:    make(map[string]*cdecl.Decl),
	}
}

var builtinSizes = map[string]uint64{
	"char": 1, "signed char": 1, "unsigned char": 1, "bool": 1, "char8_t": 1,
	"short": 2, "unsigned short": 2, "char16_t": 2,
	"int": 4, "unsigned int": 4, "float": 4, "wchar_t": 4, "char32_t": 4,
	"long": 8, "unsigned long": 8, "long long": 8, "unsigned long long": 8, "double": 8,
}

var wellKnownSizes = map[string]uint64{
	"int8_t": 1, "uint8_t": 1,
	"int16_t": 2, "uint16_t": 2,
	"int32_t": 4, "uint32_t": 4,
	"int64_t": 8, "uint64_t": 8,
	"intptr_t": 8, "uintptr_t": 8, "size_t": 8, "ssize_t": 8, "ptrdiff_t": 8,
}

const pointerSize = 8

// sizeOf returns size and alignment of t; ok is false when unknown.
func (l *layout) sizeOf(t *cdecl.Type) (size, align uint64, ok bool) {
	return l.sizeOfDepth(t, 0)
}

func (l *layout) sizeOfDepth(t *cdecl.Type, depth int) (size, align uint64, ok bool) {
	if t == nil || depth > 64 {
		return 0, 0, false
	}
	switch t.Kind {
	case cdecl.TypeBuiltin:
		s, ok := builtinSizes[t.Name]
		return s, s, ok
	case cdecl.TypePointer, cdecl.TypeFunc:
		return pointerSize, pointerSize, true
	case cdecl.TypeArray:
		n, err := safecast.Conv[uint64](t.Len)
		if err != nil {
			return 0, 0, false
		}
		es, ea, ok := l.sizeOfDepth(t.Elem, depth+1)
		if !ok {
			return 0, 0, false
		}
		return es * n, ea, true
	case cdecl.TypeNamed:
		if s, ok := wellKnownSizes[t.Name]; ok {
			return s, s, true
		}
		if u, ok := l.typedefs[t.Name]; ok {
			return l.sizeOfDepth(u, depth+1)
		}
		if d, ok := l.records[t.Name]; ok {
			return l.recordSize(d, depth+1)
		}
		if d, ok := l.enums[t.Name]; ok {
			return l.enumSize(d, depth+1)
		}
	case cdecl.TypeRecord:
		if d, ok := l.records[t.Name]; ok {
			return l.recordSize(d, depth+1)
		}
	case cdecl.TypeEnum:
		if d, ok := l.enums[t.Name]; ok {
			return l.enumSize(d, depth+1)
		}
		return 4, 4, true
	}
	return 0, 0, false
}

func (l *layout) enumSize(d *cdecl.Decl, depth int) (uint64, uint64, bool) {
	if d.Fixed != nil {
		return l.sizeOfDepth(d.Fixed, depth)
	}
	if kind := enumUnderlying(d.Enumerators); kind == "int64" || kind == "uint64" {
		return 8, 8, true
	}
	return 4, 4, true
}

func (l *layout) recordSize(d *cdecl.Decl, depth int) (uint64, uint64, bool) {
	if !d.Complete {
		return 0, 0, false
	}
	var size, align uint64 = 0, 1
	for _, f := range d.Fields {
		if f.BitWidth != 0 {
			return 0, 0, false
		}
		fs, fa, ok := l.sizeOfDepth(f.Type, depth)
		if !ok || fa == 0 {
			return 0, 0, false
		}
		align = max(align, fa)
		if d.Union {
			size = max(size, fs)
			continue
		}
		size = alignUp(size, fa) + fs
	}
	return alignUp(size, align), align, true
}

func alignUp(n, a uint64) uint64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
