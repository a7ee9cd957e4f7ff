package cache

import (
	"os"
	"path/filepath"
	"testing"

	"cbind/internal/cdecl"
	"cbind/internal/diag"
	"cbind/internal/frontend"
)

func writeHeader(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "xr.h")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func sampleTU(path string, ds ...diag.Diagnostic) *frontend.TranslationUnit {
	unit := &cdecl.Unit{
		Path:  path,
		Files: []string{path},
		Decls: []cdecl.Decl{
			{Kind: cdecl.KindFunction, Name: "xrCreateInstance", Result: cdecl.Named("XrResult"), Params: []cdecl.Param{
				{Name: "info", Type: cdecl.PointerTo(cdecl.Named("XrInstanceCreateInfo"))},
			}},
			{Kind: cdecl.KindEnum, Name: "XrResult", Enumerators: []cdecl.Enumerator{{Name: "XR_SUCCESS", Value: "0"}}},
		},
	}
	return frontend.NewTranslationUnit(path, unit, ds, nil)
}

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "int xrCreateInstance(void);\n")
	c, err := Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	req := frontend.Request{File: header, Language: frontend.LanguageCXX}
	key := Key("clang version 18.1.3", req)
	warn := diag.New(diag.OriginFrontEnd, diag.SevWarning, diag.FrontEndNative, "unused macro").At(diag.Location{File: header, Line: 1, Col: 1})

	if err := c.Put(key, "clang version 18.1.3", sampleTU(header, warn)); err != nil {
		t.Fatal(err)
	}
	tu, ok, err := c.Get(key, "clang version 18.1.3")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	defer tu.Close()
	ds := tu.Diagnostics()
	if len(ds) != 1 || ds[0] != warn {
		t.Fatalf("diagnostics = %v", ds)
	}
	unit, err := tu.Take()
	if err != nil {
		t.Fatal(err)
	}
	if len(unit.Decls) != 2 || unit.Decls[0].Params[0].Type.String() != "XrInstanceCreateInfo *" {
		t.Fatalf("unit = %+v", unit)
	}
}

func TestInvalidation(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "a\n")
	c, err := Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	req := frontend.Request{File: header}
	key := Key("v1", req)
	if err := c.Put(key, "v1", sampleTU(header)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key, "v2"); ok {
		t.Fatal("entry from another front-end version must miss")
	}
	writeHeader(t, dir, "b\n")
	if _, ok, _ := c.Get(key, "v1"); ok {
		t.Fatal("entry for a changed header must miss")
	}
}

func TestErroredUnitsAreNotCached(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "x\n")
	c, err := Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := Key("v1", frontend.Request{File: header})
	bad := diag.New(diag.OriginFrontEnd, diag.SevError, diag.FrontEndNative, "unknown type name")
	if err := c.Put(key, "v1", sampleTU(header, bad)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key, "v1"); ok {
		t.Fatal("unit with errors was cached")
	}
}

func TestKeyDependsOnRequest(t *testing.T) {
	base := frontend.Request{File: "/work/xr.h", IncludePaths: []string{"/work"}}
	other := base
	other.IncludePaths = nil
	other.Flags = []string{"/work"}
	if Key("v", base) == Key("v", other) {
		t.Fatal("moving a value between include paths and flags must change the key")
	}
	if Key("v", base) != Key("v", base) {
		t.Fatal("key is not deterministic")
	}
}

func TestDropAll(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "x\n")
	c, err := Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := Key("v1", frontend.Request{File: header})
	if err := c.Put(key, "v1", sampleTU(header)); err != nil {
		t.Fatal(err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key, "v1"); ok {
		t.Fatal("entry survived DropAll")
	}
}
