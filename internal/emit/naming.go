package emit

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ident makes a C name usable as a Go identifier.
func ident(name string) string {
	if token.IsKeyword(name) {
		return name + "_"
	}
	return name
}

// exportedField turns a C member name into an exported Go field name.
func exportedField(name string) string {
	trimmed := strings.TrimLeft(name, "_")
	if trimmed == "" {
		return "X" + name
	}
	if r := rune(trimmed[0]); unicode.IsDigit(r) {
		return "X" + trimmed
	}
	// Caser хранит состояние, поэтому свой на каждый вызов.
	// NoLower: "createInfo" -> "CreateInfo", не "Createinfo".
	return cases.Title(language.Und, cases.NoLower).String(trimmed)
}

// paramName escapes keywords and names unnamed parameters p<i>.
func paramName(name string, i int) string {
	if name == "" || name == "_" {
		return "p" + strconv.Itoa(i)
	}
	return ident(name)
}

// stripPrefix removes prefix when name starts with it and something remains.
func stripPrefix(name, prefix string) string {
	if prefix == "" || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return name
	}
	rest := name[len(prefix):]
	if !token.IsIdentifier(rest) {
		return name
	}
	return rest
}

// snake converts an identifier to snake_case for file names:
// XrInstanceCreateInfo -> xr_instance_create_info, PFN_xrVoidFunction ->
// pfn_xr_void_function.
func snake(name string) string {
	rs := []rune(name)
	var sb strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) && i > 0 {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	s := sb.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if s == "" {
		s = "x"
	}
	return s
}

var buildSuffixes = map[string]bool{
	"test": true,
	// GOOS
	"aix": true, "android": true, "darwin": true, "dragonfly": true, "freebsd": true,
	"hurd": true, "illumos": true, "ios": true, "js": true, "linux": true, "nacl": true,
	"netbsd": true, "openbsd": true, "plan9": true, "solaris": true, "wasip1": true,
	"windows": true, "zos": true,
	// GOARCH
	"386": true, "amd64": true, "amd64p32": true, "arm": true, "armbe": true, "arm64": true,
	"arm64be": true, "loong64": true, "mips": true, "mipsle": true, "mips64": true,
	"mips64le": true, "mips64p32": true, "mips64p32le": true, "ppc": true, "ppc64": true,
	"ppc64le": true, "riscv": true, "riscv64": true, "s390": true, "s390x": true,
	"sparc": true, "sparc64": true, "wasm": true,
}

// fileNames assigns deterministic file names to groups. A stem the go tool
// would read as a build constraint, or one already taken, gets "_gen".
type fileNames struct {
	used map[string]bool
}

func newFileNames() *fileNames {
	return &fileNames{used: make(map[string]bool)}
}

func (f *fileNames) assign(stem string) string {
	if i := strings.LastIndexByte(stem, '_'); i >= 0 && buildSuffixes[stem[i+1:]] {
		stem += "_gen"
	}
	name := stem
	for n := 2; f.used[name]; n++ {
		if n == 2 {
			name = stem + "_gen"
		} else {
			name = stem + "_gen" + strconv.Itoa(n-1)
		}
	}
	f.used[name] = true
	return name + ".go"
}
