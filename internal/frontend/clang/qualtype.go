package clang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"cbind/internal/cdecl"
)

// anonTagRe matches clang's spelling of unnamed tags, e.g.
// "struct (unnamed struct at a.h:3:5)" or "Outer::(anonymous union at a.h:9:3)".
var anonTagRe = regexp.MustCompile(`(?:[A-Za-z_][A-Za-z0-9_]*::)*\((?:unnamed|anonymous)(?: (struct|union|enum|class))? at [^)]*\)`)

const anonPlaceholder = "@anon"

type qtoken struct {
	text string
	// anonKind is set for the placeholder token: struct, union, enum or class.
	anonKind string
}

// ParseQualType turns a clang qualType spelling into a cdecl.Type.
func ParseQualType(s string) (*cdecl.Type, error) {
	toks, err := tokenizeQualType(s)
	if err != nil {
		return nil, err
	}
	p := &qparser{toks: toks, src: s}
	t := p.typeName()
	if p.err == nil && p.pos != len(p.toks) {
		p.fail("unexpected %q", p.toks[p.pos].text)
	}
	if p.err != nil {
		return nil, p.err
	}
	return t, nil
}

func tokenizeQualType(s string) ([]qtoken, error) {
	var kinds []string
	s = anonTagRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := anonTagRe.FindStringSubmatch(m)
		kinds = append(kinds, sub[1])
		return " " + anonPlaceholder + " "
	})

	var toks []qtoken
	anon := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.HasPrefix(s[i:], anonPlaceholder):
			toks = append(toks, qtoken{text: anonPlaceholder, anonKind: kinds[anon]})
			anon++
			i += len(anonPlaceholder)
		case strings.HasPrefix(s[i:], "..."):
			toks = append(toks, qtoken{text: "..."})
			i += 3
		case strings.HasPrefix(s[i:], "&&"):
			toks = append(toks, qtoken{text: "&&"})
			i += 2
		case strings.ContainsRune("*&^[](),", rune(c)):
			toks = append(toks, qtoken{text: string(c)})
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && (isIdentPart(s[j]) || (s[j] == ':' && j+1 < len(s) && s[j+1] == ':')) {
				if s[j] == ':' {
					j++
				}
				j++
			}
			toks = append(toks, qtoken{text: s[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, qtoken{text: s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("qualtype %q: unexpected character %q", s, c)
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

type qparser struct {
	toks []qtoken
	pos  int
	src  string
	err  error
}

func (p *qparser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("qualtype %q: %s", p.src, fmt.Sprintf(format, args...))
	}
}

func (p *qparser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos].text
}

func (p *qparser) peekAt(off int) string {
	if p.pos+off >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos+off].text
}

func (p *qparser) next() qtoken {
	if p.pos >= len(p.toks) {
		p.fail("unexpected end")
		return qtoken{}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *qparser) expect(text string) {
	if got := p.next(); got.text != text && p.err == nil {
		p.fail("expected %q, got %q", text, got.text)
	}
}

var builtinWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true, "__int128": true, "_Complex": true,
	"wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
	"_Float16": true, "__fp16": true, "__bf16": true,
}

var ignoredWords = map[string]bool{
	"volatile": true, "restrict": true, "__restrict": true, "__restrict__": true,
	"_Nonnull": true, "_Nullable": true, "_Null_unspecified": true,
	"__unaligned": true, "_Atomic": true, "__ptr32": true, "__ptr64": true,
}

// typeName parses specifiers followed by an abstract declarator.
func (p *qparser) typeName() *cdecl.Type {
	base := p.specifiers()
	if p.err != nil {
		return nil
	}
	return p.abstract(base)
}

func (p *qparser) specifiers() *cdecl.Type {
	var (
		words    []string
		isConst  bool
		tagKind  string
		typeName string
		anon     *qtoken
	)
loop:
	for p.err == nil {
		tok := p.peek()
		switch {
		case tok == "const":
			isConst = true
			p.next()
		case ignoredWords[tok]:
			p.next()
		case tok == "__attribute__" || tok == "__declspec":
			p.next()
			p.skipBalanced()
		case tok == "struct" || tok == "union" || tok == "enum" || tok == "class":
			tagKind = tok
			p.next()
		case builtinWords[tok] && typeName == "" && anon == nil:
			words = append(words, tok)
			p.next()
		case tok == anonPlaceholder && typeName == "" && anon == nil && len(words) == 0:
			t := p.next()
			anon = &t
		case tok != "" && isIdentStart(tok[0]) && typeName == "" && anon == nil && len(words) == 0:
			typeName = tok
			p.next()
		default:
			break loop
		}
	}
	if p.err != nil {
		return nil
	}

	var t *cdecl.Type
	switch {
	case anon != nil:
		kind := anon.anonKind
		if kind == "" {
			kind = tagKind
		}
		t = &cdecl.Type{Kind: cdecl.TypeRecord, Anonymous: true, Union: kind == "union"}
		if kind == "enum" {
			t.Kind = cdecl.TypeEnum
		}
	case tagKind != "":
		if typeName == "" {
			p.fail("missing tag name after %s", tagKind)
			return nil
		}
		t = &cdecl.Type{Kind: cdecl.TypeRecord, Name: typeName, Union: tagKind == "union"}
		if tagKind == "enum" {
			t.Kind = cdecl.TypeEnum
		}
	case typeName != "":
		t = cdecl.Named(typeName)
	case len(words) > 0:
		t = cdecl.Builtin(canonicalBuiltin(words))
	default:
		p.fail("missing type specifier")
		return nil
	}
	t.Const = isConst
	return t
}

func (p *qparser) skipBalanced() {
	if p.peek() != "(" {
		return
	}
	depth := 0
	for p.err == nil {
		switch p.next().text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// canonicalBuiltin normalises specifier word soup ("long unsigned int") into
// one spelling ("unsigned long").
func canonicalBuiltin(words []string) string {
	var (
		unsigned, signed bool
		longs, shorts    int
		core             string
		complexT         bool
	)
	for _, w := range words {
		switch w {
		case "unsigned":
			unsigned = true
		case "signed":
			signed = true
		case "long":
			longs++
		case "short":
			shorts++
		case "int":
			if core == "" {
				core = "int"
			}
		case "_Complex":
			complexT = true
		default:
			core = w
		}
	}
	if core == "bool" || core == "_Bool" {
		return "bool"
	}
	var name string
	switch {
	case core == "char":
		name = "char"
		if unsigned {
			name = "unsigned char"
		} else if signed {
			name = "signed char"
		}
	case core == "double" && longs > 0:
		name = "long double"
	case core == "int" || core == "":
		switch {
		case shorts > 0:
			name = "short"
		case longs >= 2:
			name = "long long"
		case longs == 1:
			name = "long"
		default:
			name = "int"
		}
		if unsigned {
			name = "unsigned " + name
		}
	case core == "__int128" && unsigned:
		name = "unsigned __int128"
	default:
		name = core
	}
	if complexT {
		name = "_Complex " + name
	}
	return name
}

type suffix struct {
	array  bool
	length int
	fn     *cdecl.Type
}

// abstract parses an abstract declarator applied to base; declarators bind
// inside-out the way C spells them.
func (p *qparser) abstract(base *cdecl.Type) *cdecl.Type {
	for p.err == nil && (p.peek() == "*" || p.peek() == "&" || p.peek() == "&&" || p.peek() == "^") {
		p.next()
		base = cdecl.PointerTo(base)
		for p.peek() == "const" || ignoredWords[p.peek()] {
			if p.next().text == "const" {
				base.Const = true
			}
		}
	}
	if p.err != nil {
		return nil
	}
	if p.peek() == "(" && isGroupStart(p.peekAt(1)) {
		p.next()
		start := p.pos
		end := p.matchParen(start)
		if p.err != nil {
			return nil
		}
		inner := p.toks[start:end]
		p.pos = end + 1
		base = p.suffixes(base)
		sub := &qparser{toks: inner, src: p.src}
		t := sub.abstract(base)
		if sub.err == nil && sub.pos != len(sub.toks) {
			sub.fail("unexpected %q in declarator", sub.toks[sub.pos].text)
		}
		if sub.err != nil {
			p.err = sub.err
			return nil
		}
		return t
	}
	return p.suffixes(base)
}

func isGroupStart(tok string) bool {
	return tok == "*" || tok == "&" || tok == "&&" || tok == "^" || tok == "("
}

// matchParen returns the index of the ')' closing the group opened right
// before start.
func (p *qparser) matchParen(start int) int {
	depth := 1
	for i := start; i < len(p.toks); i++ {
		switch p.toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	p.fail("unbalanced parentheses")
	return len(p.toks)
}

func (p *qparser) suffixes(base *cdecl.Type) *cdecl.Type {
	var list []suffix
loop:
	for p.err == nil {
		switch p.peek() {
		case "[":
			p.next()
			n := -1
			if p.peek() != "]" {
				n = p.arrayLen(p.next().text)
			}
			p.expect("]")
			list = append(list, suffix{array: true, length: n})
		case "(":
			p.next()
			list = append(list, suffix{fn: p.params()})
		default:
			break loop
		}
	}
	if p.err != nil {
		return nil
	}
	for i := len(list) - 1; i >= 0; i-- {
		s := list[i]
		if s.array {
			base = cdecl.ArrayOf(base, s.length)
			continue
		}
		fn := s.fn
		fn.Result = base
		base = fn
	}
	// qualifiers trailing a function type (C++ "const", "noexcept") carry no ABI meaning
	for p.peek() == "noexcept" || (base != nil && base.Kind == cdecl.TypeFunc && p.peek() == "const") {
		p.next()
	}
	return base
}

func (p *qparser) arrayLen(text string) int {
	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		p.fail("bad array length %q", text)
		return -1
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		p.fail("array length %q: %v", text, err)
		return -1
	}
	return n
}

// params parses a parameter list after '(' up to and including ')'.
func (p *qparser) params() *cdecl.Type {
	fn := &cdecl.Type{Kind: cdecl.TypeFunc}
	if p.peek() == ")" {
		p.next()
		return fn
	}
	for p.err == nil {
		if p.peek() == "..." {
			p.next()
			fn.Variadic = true
		} else {
			pt := p.typeName()
			if p.err != nil {
				return fn
			}
			fn.Params = append(fn.Params, pt)
		}
		if p.peek() == "," {
			p.next()
			continue
		}
		p.expect(")")
		break
	}
	if len(fn.Params) == 1 && fn.Params[0].IsVoid() && !fn.Params[0].Const {
		fn.Params = nil
	}
	return fn
}
