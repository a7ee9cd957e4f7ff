package emit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cbind/internal/cdecl"
	"cbind/internal/config"
	"cbind/internal/diag"
)

func testConfig(multi bool) config.Generation {
	return config.Generation{
		Library:           "openxr_loader",
		Package:           "openxr",
		Output:            "gen",
		MethodContainer:   "XR",
		MethodPrefix:      "xr",
		MultiFile:         multi,
		CallingConvention: "cdecl",
	}
}

func at(line uint32) diag.Location {
	return diag.Location{File: "/work/include/openxr.h", Line: line, Col: 1}
}

func constOf(t *cdecl.Type) *cdecl.Type {
	t.Const = true
	return t
}

func sampleUnit() *cdecl.Unit {
	return &cdecl.Unit{
		Path: "/work/include/openxr.h",
		Decls: []cdecl.Decl{
			{Kind: cdecl.KindRecord, Name: "XrInstance_T", Loc: at(1)},
			{Kind: cdecl.KindTypedef, Name: "XrInstance", Loc: at(1), Underlying: cdecl.PointerTo(&cdecl.Type{Kind: cdecl.TypeRecord, Name: "XrInstance_T"})},
			{Kind: cdecl.KindTypedef, Name: "XrFlags64", Loc: at(2), Underlying: cdecl.Named("uint64_t")},
			{Kind: cdecl.KindEnum, Name: "XrResult", Loc: at(3), Complete: true, Enumerators: []cdecl.Enumerator{
				{Name: "XR_SUCCESS", Value: "0"},
				{Name: "XR_ERROR_VALIDATION_FAILURE", Value: "-1"},
				{Name: "XR_RESULT_MAX_ENUM", Value: "2147483647"},
			}},
			{Kind: cdecl.KindRecord, Name: "XrVector2f", Loc: at(10), Complete: true, Fields: []cdecl.Field{
				{Name: "x", Type: cdecl.Builtin("float")},
				{Name: "y", Type: cdecl.Builtin("float")},
			}},
			{Kind: cdecl.KindRecord, Name: "XrInstanceCreateInfo", Loc: at(20), Complete: true, Fields: []cdecl.Field{
				{Name: "type", Type: cdecl.Named("XrStructureType")},
				{Name: "next", Type: cdecl.PointerTo(constOf(cdecl.Builtin("void")))},
				{Name: "applicationName", Type: cdecl.ArrayOf(cdecl.Builtin("char"), 128)},
				{Name: "extensionNames", Type: cdecl.PointerTo(constOf(cdecl.PointerTo(constOf(cdecl.Builtin("char")))))},
				{Name: "origin", Type: cdecl.Named("XrVector2f")},
			}},
			{Kind: cdecl.KindFunction, Name: "xrCreateInstance", Loc: at(30), Result: cdecl.Named("XrResult"), Params: []cdecl.Param{
				{Name: "createInfo", Type: cdecl.PointerTo(constOf(cdecl.Named("XrInstanceCreateInfo")))},
				{Name: "instance", Type: cdecl.PointerTo(cdecl.Named("XrInstance"))},
			}},
			{Kind: cdecl.KindFunction, Name: "glClear", Loc: at(31), Result: cdecl.Builtin("void"), Params: []cdecl.Param{
				{Name: "mask", Type: cdecl.Builtin("unsigned int")},
			}},
		},
	}
}

func generate(t *testing.T, cfg config.Generation, unit *cdecl.Unit) (*Generator, []diag.Diagnostic) {
	t.Helper()
	g := New(cfg)
	return g, g.Generate(unit)
}

func bindingByCName(t *testing.T, g *Generator, cname string) Binding {
	t.Helper()
	for _, b := range g.Bindings() {
		if b.CName == cname {
			return b
		}
	}
	t.Fatalf("no binding for %s", cname)
	return Binding{}
}

// lineWith returns the whitespace-normalised line of src containing needle.
func lineWith(src, needle string) string {
	for _, line := range strings.Split(src, "\n") {
		if strings.Contains(line, needle) {
			return strings.Join(strings.Fields(line), " ")
		}
	}
	return ""
}

func TestPrefixStripping(t *testing.T) {
	g, ds := generate(t, testConfig(true), sampleUnit())
	if len(ds) != 0 {
		t.Fatalf("unexpected diagnostics: %v", ds)
	}
	create := bindingByCName(t, g, "xrCreateInstance")
	if create.Name != "CreateInstance" {
		t.Errorf("xrCreateInstance bound as %q, want CreateInstance", create.Name)
	}
	if create.Register != `purego.RegisterLibFunc(&XR.CreateInstance, handle, "xrCreateInstance")` {
		t.Errorf("register = %s", create.Register)
	}
	want := "\t// CreateInstance calls xrCreateInstance (cdecl).\n\tCreateInstance func(createInfo *XrInstanceCreateInfo, instance *XrInstance) XrResult"
	if create.Source != want {
		t.Errorf("source =\n%q\nwant\n%q", create.Source, want)
	}

	gl := bindingByCName(t, g, "glClear")
	if gl.Name != "glClear" {
		t.Errorf("glClear bound as %q, want it unchanged", gl.Name)
	}
}

func TestStripPrefixEdgeCases(t *testing.T) {
	tests := []struct{ name, prefix, want string }{
		{"xrCreateInstance", "xr", "CreateInstance"},
		{"glClear", "xr", "glClear"},
		{"xr", "xr", "xr"},
		{"xr2D", "xr", "xr2D"},
		{"xrFoo", "", "xrFoo"},
	}
	for _, tt := range tests {
		if got := stripPrefix(tt.name, tt.prefix); got != tt.want {
			t.Errorf("stripPrefix(%q, %q) = %q, want %q", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestRecordRendering(t *testing.T) {
	g, _ := generate(t, testConfig(true), sampleUnit())
	vec := bindingByCName(t, g, "XrVector2f")
	want := "type XrVector2f struct {\n\tX float32 // float\n\tY float32 // float\n}"
	if vec.Source != want {
		t.Errorf("XrVector2f =\n%s\nwant\n%s", vec.Source, want)
	}

	info := bindingByCName(t, g, "XrInstanceCreateInfo")
	for needle, want := range map[string]string{
		"Type ":           "Type XrStructureType // XrStructureType",
		"Next ":           "Next unsafe.Pointer // const void *",
		"ApplicationName": "ApplicationName [128]byte // char [128]",
		"ExtensionNames":  "ExtensionNames **byte // const char *const *",
		"Origin":          "Origin XrVector2f // XrVector2f",
	} {
		if got := lineWith(info.Source, needle); got != want {
			t.Errorf("field line %q = %q, want %q", needle, got, want)
		}
	}
	if !info.UsesUnsafe {
		t.Error("void pointer field should require unsafe")
	}

	opaque := bindingByCName(t, g, "XrInstance_T")
	if !strings.Contains(opaque.Source, "type XrInstance_T struct{}") {
		t.Errorf("opaque = %s", opaque.Source)
	}
	handle := bindingByCName(t, g, "XrInstance")
	if got := lineWith(handle.Source, "type XrInstance"); got != "type XrInstance *XrInstance_T // struct XrInstance_T *" {
		t.Errorf("handle typedef = %q", got)
	}
	flags := bindingByCName(t, g, "XrFlags64")
	if got := lineWith(flags.Source, "type"); got != "type XrFlags64 uint64 // uint64_t" {
		t.Errorf("flags typedef = %q", got)
	}
}

func TestEnumValuesVerbatim(t *testing.T) {
	g, _ := generate(t, testConfig(true), sampleUnit())
	enum := bindingByCName(t, g, "XrResult")
	if !strings.HasPrefix(enum.Source, "type XrResult int32\n") {
		t.Fatalf("enum = %s", enum.Source)
	}
	for _, want := range []string{
		"XR_SUCCESS XrResult = 0",
		"XR_ERROR_VALIDATION_FAILURE XrResult = -1",
		"XR_RESULT_MAX_ENUM XrResult = 2147483647",
	} {
		name := strings.Fields(want)[0]
		if got := lineWith(enum.Source, name); got != want {
			t.Errorf("enumerator line = %q, want %q", got, want)
		}
	}
}

func TestEnumUnderlying(t *testing.T) {
	tests := []struct {
		values []string
		want   string
	}{
		{[]string{"0", "-1", "2147483647"}, "int32"},
		{[]string{"0", "4294967295"}, "uint32"},
		{[]string{"-1", "4294967296"}, "int64"},
		{[]string{"18446744073709551615"}, "uint64"},
	}
	for _, tt := range tests {
		var es []cdecl.Enumerator
		for _, v := range tt.values {
			es = append(es, cdecl.Enumerator{Name: "E", Value: v})
		}
		if got := enumUnderlying(es); got != tt.want {
			t.Errorf("enumUnderlying(%v) = %s, want %s", tt.values, got, tt.want)
		}
	}
}

func TestIdempotentOutput(t *testing.T) {
	for _, multi := range []bool{true, false} {
		g1, _ := generate(t, testConfig(multi), sampleUnit())
		g2, _ := generate(t, testConfig(multi), sampleUnit())
		u1, err := g1.Units()
		if err != nil {
			t.Fatal(err)
		}
		u2, err := g2.Units()
		if err != nil {
			t.Fatal(err)
		}
		if len(u1) != len(u2) {
			t.Fatalf("multi=%v: unit count %d vs %d", multi, len(u1), len(u2))
		}
		for i := range u1 {
			if u1[i].Name != u2[i].Name || !bytes.Equal(u1[i].Content, u2[i].Content) {
				t.Fatalf("multi=%v: unit %d differs", multi, i)
			}
		}
	}
}

func TestLayoutInvariance(t *testing.T) {
	multi, _ := generate(t, testConfig(true), sampleUnit())
	single, _ := generate(t, testConfig(false), sampleUnit())

	mb, sb := multi.Bindings(), single.Bindings()
	if len(mb) != len(sb) {
		t.Fatalf("binding count differs: %d vs %d", len(mb), len(sb))
	}
	for i := range mb {
		if mb[i].Source != sb[i].Source || mb[i].Name != sb[i].Name {
			t.Fatalf("binding %d differs between layouts", i)
		}
	}

	mu, err := multi.Units()
	if err != nil {
		t.Fatal(err)
	}
	su, err := single.Units()
	if err != nil {
		t.Fatal(err)
	}
	if len(su) != 1 || su[0].Name != "openxr.go" {
		t.Fatalf("single-file units = %v", unitNames(su))
	}
	wantNames := "xr.go,xr_instance_t.go,xr_instance.go,xr_flags64.go,xr_result.go,xr_vector2f.go,xr_instance_create_info.go"
	if got := strings.Join(unitNames(mu), ","); got != strings.Join(sortedLike(wantNames, mu), ",") {
		t.Fatalf("multi-file units = %s", got)
	}
	all := string(su[0].Content)
	for _, b := range mb {
		if !strings.Contains(all, b.Source) {
			t.Errorf("single file lacks binding %s", b.Name)
		}
		found := false
		for _, u := range mu {
			if strings.Contains(string(u.Content), b.Source) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("multi-file output lacks binding %s", b.Name)
		}
	}
}

func unitNames(us []Unit) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.Name
	}
	return out
}

// sortedLike checks set equality and returns the names in us order.
func sortedLike(want string, us []Unit) []string {
	set := make(map[string]bool)
	for _, n := range strings.Split(want, ",") {
		set[n] = true
	}
	var out []string
	for _, u := range us {
		if set[u.Name] {
			out = append(out, u.Name)
			delete(set, u.Name)
		}
	}
	for n := range set {
		out = append(out, "missing:"+n)
	}
	return out
}

func TestContainerFile(t *testing.T) {
	g, _ := generate(t, testConfig(true), sampleUnit())
	units, err := g.Units()
	if err != nil {
		t.Fatal(err)
	}
	var container string
	for _, u := range units {
		if u.Name == "xr.go" {
			container = string(u.Content)
		}
	}
	for _, want := range []string{
		"// Code generated by cbind. DO NOT EDIT.",
		"package openxr",
		`import "github.com/ebitengine/purego"`,
		`const LibraryName = "openxr_loader"`,
		"var XR struct {",
		"func LoadXR(handle uintptr) {",
		`purego.RegisterLibFunc(&XR.glClear, handle, "glClear")`,
	} {
		if !strings.Contains(container, want) {
			t.Errorf("container lacks %q:\n%s", want, container)
		}
	}
}

func TestUnsupportedConstructs(t *testing.T) {
	unit := &cdecl.Unit{Decls: []cdecl.Decl{
		{Kind: cdecl.KindRecord, Name: "XrUnion", Union: true, Complete: true, Loc: at(1), Fields: []cdecl.Field{
			{Name: "i", Type: cdecl.Builtin("int")},
			{Name: "d", Type: cdecl.Builtin("double")},
		}},
		{Kind: cdecl.KindFunction, Name: "xrLog", Variadic: true, Result: cdecl.Builtin("void"), Loc: at(2)},
		{Kind: cdecl.KindFunction, Name: "xrHelper", Inline: true, Result: cdecl.Builtin("int"), Loc: at(3)},
		{Kind: cdecl.KindRecord, Name: "Bits", Complete: true, Loc: at(4), Fields: []cdecl.Field{{Name: "b", Type: cdecl.Builtin("unsigned int"), BitWidth: 3}}},
		{Kind: cdecl.KindRecord, Anonymous: true, Complete: true, Loc: at(5)},
		{Kind: cdecl.KindOther, Name: "g", Native: "VarDecl", Loc: at(6)},
		{Kind: cdecl.KindRecord, Name: "Wide", Complete: true, Loc: at(7), Fields: []cdecl.Field{{Name: "v", Type: cdecl.Builtin("long double")}}},
	}}
	g, ds := generate(t, testConfig(true), unit)
	wantCodes := []diag.Code{
		diag.EmitUnionAsBuffer,
		diag.EmitVariadic,
		diag.EmitInlineDefinition,
		diag.EmitBitField,
		diag.EmitAnonymousDecl,
		diag.EmitUnsupportedDecl,
		diag.EmitUnmappableType,
	}
	if len(ds) != len(wantCodes) {
		t.Fatalf("diagnostics = %v", ds)
	}
	for i, code := range wantCodes {
		if ds[i].Code != code || ds[i].Origin != diag.OriginEmitter {
			t.Errorf("diag %d = %v, want code %v", i, ds[i], code)
		}
	}
	for _, d := range ds {
		if d.Severity != diag.SevWarning {
			t.Errorf("%v should be a warning", d)
		}
	}
	if got := diag.ExitStatus(ds, false); got != 7 {
		t.Errorf("status = %d, want 7", got)
	}

	u := bindingByCName(t, g, "XrUnion")
	if got := lineWith(u.Source, "Raw"); got != "Raw [8]byte" {
		t.Errorf("union buffer = %q", got)
	}
	if got := lineWith(u.Source, "[0]"); got != "_ [0]uint64" {
		t.Errorf("union alignment = %q", got)
	}
	if len(g.Bindings()) != 1 {
		t.Errorf("only the union should be bound, got %d bindings", len(g.Bindings()))
	}
}

func TestUnmappablePrototypeIsWarning(t *testing.T) {
	unit := &cdecl.Unit{Decls: []cdecl.Decl{
		{Kind: cdecl.KindFunction, Name: "xrLerp", Result: cdecl.Builtin("float"), Loc: at(1),
			Params: []cdecl.Param{{Name: "v", Type: cdecl.Builtin("long double")}}},
		{Kind: cdecl.KindFunction, Name: "xrDestroy", Result: cdecl.Builtin("void"), Loc: at(2)},
	}}
	g, ds := generate(t, testConfig(true), unit)
	if len(ds) != 1 || ds[0].Code != diag.EmitUnmappableType || ds[0].Severity != diag.SevWarning {
		t.Fatalf("diagnostics = %v", ds)
	}
	if got := diag.ExitStatus(ds, false); got != 1 {
		t.Fatalf("status = %d, want 1", got)
	}
	if len(g.Bindings()) != 1 || g.Bindings()[0].CName != "xrDestroy" {
		t.Fatalf("bindings = %+v", g.Bindings())
	}
}

func TestWarningsCountTowardStatus(t *testing.T) {
	unit := &cdecl.Unit{Decls: []cdecl.Decl{
		{Kind: cdecl.KindFunction, Name: "xrLogA", Variadic: true, Result: cdecl.Builtin("void")},
		{Kind: cdecl.KindFunction, Name: "xrLogB", Variadic: true, Result: cdecl.Builtin("void")},
	}}
	_, ds := generate(t, testConfig(true), unit)
	if got := diag.ExitStatus(ds, false); got != 2 {
		t.Fatalf("status = %d, want 2", got)
	}
}

func TestDuplicatesAcrossUnits(t *testing.T) {
	g := New(testConfig(true))
	if ds := g.Generate(sampleUnit()); len(ds) != 0 {
		t.Fatal(ds)
	}
	// the same header seen again through another translation unit
	if ds := g.Generate(sampleUnit()); len(ds) != 0 {
		t.Fatalf("identical redeclarations must not be reported: %v", ds)
	}
	conflicting := &cdecl.Unit{Decls: []cdecl.Decl{
		{Kind: cdecl.KindRecord, Name: "XrVector2f", Complete: true, Fields: []cdecl.Field{{Name: "x", Type: cdecl.Builtin("double")}}},
		{Kind: cdecl.KindFunction, Name: "CreateInstance", Result: cdecl.Builtin("void")},
	}}
	ds := g.Generate(conflicting)
	if len(ds) != 2 || ds[0].Code != diag.EmitDuplicateBinding || ds[1].Code != diag.EmitDuplicateBinding {
		t.Fatalf("diagnostics = %v", ds)
	}
}

func TestOpaqueUpgradedByDefinition(t *testing.T) {
	g := New(testConfig(true))
	g.Generate(&cdecl.Unit{Decls: []cdecl.Decl{
		{Kind: cdecl.KindRecord, Name: "Later"},
		{Kind: cdecl.KindRecord, Name: "Later", Complete: true, Fields: []cdecl.Field{{Name: "n", Type: cdecl.Builtin("int")}}},
		{Kind: cdecl.KindRecord, Name: "Later"},
	}})
	bs := g.Bindings()
	if len(bs) != 1 || !strings.Contains(bs[0].Source, "N int32 // int") {
		t.Fatalf("bindings = %+v", bs)
	}
}

func TestParameterNames(t *testing.T) {
	unit := &cdecl.Unit{Decls: []cdecl.Decl{
		{Kind: cdecl.KindFunction, Name: "xrRange", Result: cdecl.Builtin("void"), Params: []cdecl.Param{
			{Name: "type", Type: cdecl.Builtin("int")},
			{Type: cdecl.PointerTo(cdecl.Builtin("void"))},
			{Name: "buf", Type: cdecl.ArrayOf(cdecl.Builtin("char"), 4)},
		}},
	}}
	g, ds := generate(t, testConfig(true), unit)
	if len(ds) != 0 {
		t.Fatal(ds)
	}
	b := bindingByCName(t, g, "xrRange")
	if got := lineWith(b.Source, "Range func"); got != "Range func(type_ int32, p1 unsafe.Pointer, buf *byte)" {
		t.Fatalf("signature = %q", got)
	}
}

func TestFileNames(t *testing.T) {
	tests := map[string]string{
		"XrInstanceCreateInfo": "xr_instance_create_info",
		"XrVector2f":           "xr_vector2f",
		"PFN_xrVoidFunction":   "pfn_xr_void_function",
		"XR":                   "xr",
		"HTTPServer":           "http_server",
		"XrAndroid_Linux":      "xr_android_linux",
	}
	for in, want := range tests {
		if got := snake(in); got != want {
			t.Errorf("snake(%q) = %q, want %q", in, got, want)
		}
	}

	names := newFileNames()
	for _, tt := range []struct{ stem, want string }{
		{"xr_vector2f", "xr_vector2f.go"},
		{"xr_vector2f", "xr_vector2f_gen.go"},
		{"xr_vector2f", "xr_vector2f_gen2.go"},
		{"xr_android_linux", "xr_android_linux_gen.go"},
		{"xr_loader_test", "xr_loader_test_gen.go"},
		{"xr_amd64", "xr_amd64_gen.go"},
	} {
		if got := names.assign(tt.stem); got != tt.want {
			t.Errorf("assign(%q) = %q, want %q", tt.stem, got, tt.want)
		}
	}
}

func TestWrite(t *testing.T) {
	g, _ := generate(t, testConfig(true), sampleUnit())
	units, err := g.Units()
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "gen")
	paths, err := Write(context.Background(), dir, units)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != len(units) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, units[i].Content) {
			t.Errorf("%s content mismatch", p)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(units) {
		t.Errorf("stray files left in %s: %d entries", dir, len(entries))
	}
}

func TestExportedFieldConcurrent(t *testing.T) {
	cases := map[string]string{
		"createInfo": "CreateInfo",
		"_next":      "Next",
		"2d":         "X2d",
		"__":         "X__",
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in, want := range cases {
				if got := exportedField(in); got != want {
					t.Errorf("exportedField(%q) = %q, want %q", in, got, want)
				}
			}
		}()
	}
	wg.Wait()
}
