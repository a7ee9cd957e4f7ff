package clang

import (
	"math/big"
	"strings"
	"testing"

	"cbind/internal/cdecl"
)

// astFixture is trimmed clang -ast-dump=json output; file and line are delta
// encoded like the real thing.
const astFixture = `{"id":"0x1","kind":"TranslationUnitDecl","loc":{},"range":{"begin":{},"end":{}},"inner":[
{"id":"0x2","kind":"TypedefDecl","loc":{},"range":{"begin":{},"end":{}},"isImplicit":true,"name":"__int128_t","type":{"qualType":"__int128"}},
{"id":"0x10","kind":"RecordDecl","loc":{"offset":10,"file":"/usr/include/sys/thing.h","line":3,"col":8,"tokLen":5},"range":{"begin":{"offset":3,"col":1,"tokLen":6},"end":{"offset":40,"line":5,"col":1,"tokLen":1}},"name":"thing","tagUsed":"struct","completeDefinition":true},
{"id":"0x20","kind":"EnumDecl","loc":{"offset":5,"file":"/work/include/xr.h","line":2,"col":6,"tokLen":8},"range":{"begin":{"offset":0,"col":1,"tokLen":4},"end":{"offset":120,"line":7,"col":1,"tokLen":1}},"name":"XrResult","inner":[
 {"id":"0x21","kind":"EnumConstantDecl","loc":{"offset":20,"line":3,"col":5,"tokLen":10},"range":{"begin":{"offset":20,"col":5,"tokLen":10},"end":{"offset":33,"col":18,"tokLen":1}},"name":"XR_SUCCESS","type":{"qualType":"int"},"inner":[
  {"id":"0x22","kind":"ConstantExpr","range":{"begin":{"offset":33,"col":18,"tokLen":1},"end":{"offset":33,"col":18,"tokLen":1}},"type":{"qualType":"int"},"valueCategory":"prvalue","value":"0","inner":[
   {"id":"0x23","kind":"IntegerLiteral","range":{"begin":{"offset":33,"col":18,"tokLen":1},"end":{"offset":33,"col":18,"tokLen":1}},"type":{"qualType":"int"},"valueCategory":"prvalue","value":"0"}]}]},
 {"id":"0x24","kind":"EnumConstantDecl","loc":{"offset":40,"line":4,"col":5,"tokLen":18},"range":{"begin":{"offset":40,"col":5,"tokLen":18},"end":{"offset":40,"col":5,"tokLen":18}},"name":"XR_TIMEOUT_EXPIRED","type":{"qualType":"int"}},
 {"id":"0x25","kind":"EnumConstantDecl","loc":{"offset":60,"line":5,"col":5,"tokLen":27},"range":{"begin":{"offset":60,"col":5,"tokLen":27},"end":{"offset":91,"col":36,"tokLen":1}},"name":"XR_ERROR_VALIDATION_FAILURE","type":{"qualType":"int"},"inner":[
  {"id":"0x26","kind":"ConstantExpr","range":{"begin":{"offset":90,"col":35,"tokLen":1},"end":{"offset":91,"col":36,"tokLen":1}},"type":{"qualType":"int"},"valueCategory":"prvalue","value":"-1"}]},
 {"id":"0x27","kind":"EnumConstantDecl","loc":{"offset":95,"line":6,"col":5,"tokLen":18},"range":{"begin":{"offset":95,"col":5,"tokLen":18},"end":{"offset":116,"col":26,"tokLen":10}},"name":"XR_RESULT_MAX_ENUM","type":{"qualType":"int"},"inner":[
  {"id":"0x28","kind":"ConstantExpr","range":{"begin":{"offset":116,"col":26,"tokLen":10},"end":{"offset":116,"col":26,"tokLen":10}},"type":{"qualType":"int"},"valueCategory":"prvalue","value":"2147483647"}]}]},
{"id":"0x30","kind":"RecordDecl","loc":{"offset":130,"line":9,"col":9,"tokLen":6},"range":{"begin":{"offset":130,"col":9,"tokLen":6},"end":{"offset":170,"line":12,"col":1,"tokLen":1}},"tagUsed":"struct","completeDefinition":true,"inner":[
 {"id":"0x31","kind":"FieldDecl","loc":{"offset":145,"line":10,"col":11,"tokLen":1},"range":{"begin":{"offset":139,"col":5,"tokLen":5},"end":{"offset":145,"col":11,"tokLen":1}},"name":"x","type":{"qualType":"float"}},
 {"id":"0x32","kind":"FieldDecl","loc":{"offset":157,"line":11,"col":11,"tokLen":1},"range":{"begin":{"offset":151,"col":5,"tokLen":5},"end":{"offset":157,"col":11,"tokLen":1}},"name":"y","type":{"qualType":"float"}}]},
{"id":"0x40","kind":"TypedefDecl","loc":{"offset":172,"col":3,"tokLen":10},"range":{"begin":{"offset":122,"line":9,"col":1,"tokLen":7},"end":{"offset":172,"line":12,"col":3,"tokLen":10}},"name":"XrVector2f","type":{"desugaredQualType":"XrVector2f","qualType":"struct (unnamed struct at /work/include/xr.h:9:9)"},"inner":[
 {"id":"0x41","kind":"ElaboratedType","type":{"qualType":"struct (unnamed struct at /work/include/xr.h:9:9)"},"ownedTagDecl":{"id":"0x30","kind":"RecordDecl","name":""},"inner":[
  {"id":"0x42","kind":"RecordType","type":{"qualType":"XrVector2f"},"decl":{"id":"0x30","kind":"RecordDecl","name":""}}]}]},
{"id":"0x50","kind":"LinkageSpecDecl","loc":{"offset":190,"line":14,"col":8,"tokLen":3},"range":{"begin":{"offset":183,"col":1,"tokLen":6},"end":{"offset":300,"line":17,"col":1,"tokLen":1}},"language":"C","hasBraces":true,"inner":[
 {"id":"0x51","kind":"FunctionDecl","loc":{"offset":210,"line":15,"col":10,"tokLen":16},"range":{"begin":{"offset":201,"col":1,"tokLen":8},"end":{"offset":260,"col":60,"tokLen":1}},"name":"xrCreateInstance","mangledName":"xrCreateInstance","type":{"qualType":"XrResult (const XrVector2f *, int)"},"inner":[
  {"id":"0x52","kind":"ParmVarDecl","loc":{"offset":245,"col":45,"tokLen":10},"range":{"begin":{"offset":227,"col":27,"tokLen":5},"end":{"offset":245,"col":45,"tokLen":10}},"name":"createInfo","type":{"qualType":"const XrVector2f *"}},
  {"id":"0x53","kind":"ParmVarDecl","loc":{"offset":262,"col":62,"tokLen":5},"range":{"begin":{"offset":258,"col":58,"tokLen":3},"end":{"offset":262,"col":62,"tokLen":5}},"type":{"qualType":"int"}}]}]},
{"id":"0x60","kind":"FunctionDecl","loc":{"offset":900,"file":"/usr/include/stdio.h","line":300,"col":12,"tokLen":6},"range":{"begin":{"offset":889,"col":1,"tokLen":6},"end":{"offset":940,"col":52,"tokLen":1}},"name":"printf","type":{"qualType":"int (const char *, ...)"},"variadic":true},
{"id":"0x70","kind":"VarDecl","loc":{"offset":320,"file":"/work/include/xr.h","line":19,"col":12,"tokLen":1},"range":{"begin":{"offset":309,"col":1,"tokLen":6},"end":{"offset":320,"col":12,"tokLen":1}},"name":"g","type":{"qualType":"int"},"storageClass":"extern"},
{"id":"0x80","kind":"FunctionDecl","loc":{"spellingLoc":{"offset":12,"file":"/work/include/macros.h","line":2,"col":1,"tokLen":4},"expansionLoc":{"offset":340,"file":"/work/include/xr.h","line":21,"col":1,"tokLen":9}},"range":{"begin":{"spellingLoc":{"offset":12,"file":"/work/include/macros.h","line":2,"col":1,"tokLen":4},"expansionLoc":{"offset":340,"file":"/work/include/xr.h","line":21,"col":1,"tokLen":9}},"end":{"offset":360,"col":21,"tokLen":1}},"name":"xrHelper","type":{"qualType":"void (void)"},"inline":true}
]}`

func convertFixture(t *testing.T, src string) *cdecl.Unit {
	t.Helper()
	conv := newConverter("/work/include/xr.h", []string{"/work/include"})
	if err := decodeTopLevel(strings.NewReader(src), conv.visit); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return conv.finish()
}

func TestConvertFixture(t *testing.T) {
	unit := convertFixture(t, astFixture)

	var names []string
	for _, d := range unit.Decls {
		names = append(names, d.Kind.String()+":"+d.Name)
	}
	want := []string{"enum:XrResult", "record:XrVector2f", "function:xrCreateInstance", "other:g", "function:xrHelper"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("decls = %v, want %v", names, want)
	}

	enum := unit.Decls[0]
	var values []string
	for _, e := range enum.Enumerators {
		values = append(values, e.Name+"="+e.Value)
	}
	wantValues := "XR_SUCCESS=0,XR_TIMEOUT_EXPIRED=1,XR_ERROR_VALIDATION_FAILURE=-1,XR_RESULT_MAX_ENUM=2147483647"
	if strings.Join(values, ",") != wantValues {
		t.Errorf("enumerators = %v", values)
	}
	if enum.Loc.File != "/work/include/xr.h" || enum.Loc.Line != 2 {
		t.Errorf("enum loc = %v", enum.Loc)
	}

	rec := unit.Decls[1]
	if rec.Anonymous || !rec.Complete || len(rec.Fields) != 2 || rec.Fields[1].Name != "y" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Loc.Line != 9 {
		t.Errorf("record loc = %v", rec.Loc)
	}

	fn := unit.Decls[2]
	if fn.Loc.File != "/work/include/xr.h" || fn.Loc.Line != 15 {
		t.Errorf("function loc = %v", fn.Loc)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "createInfo" || fn.Params[1].Name != "" {
		t.Errorf("params = %+v", fn.Params)
	}
	if fn.Result.Name != "XrResult" || fn.Params[0].Type.String() != "const XrVector2f *" {
		t.Errorf("signature = %s (%s)", fn.Result, fn.Params[0].Type)
	}

	helper := unit.Decls[4]
	if helper.Loc.File != "/work/include/xr.h" || helper.Loc.Line != 21 || !helper.Inline {
		t.Errorf("macro-expanded function = %+v", helper)
	}

	if len(unit.Files) != 1 || unit.Files[0] != "/work/include/xr.h" {
		t.Errorf("files = %v", unit.Files)
	}
}

func TestConvertNestedAnonymousRecord(t *testing.T) {
	src := `{"kind":"TranslationUnitDecl","inner":[
{"id":"0x1","kind":"RecordDecl","loc":{"file":"/work/include/x.h","line":1,"col":8},"name":"Outer","tagUsed":"struct","completeDefinition":true,"inner":[
 {"id":"0x2","kind":"RecordDecl","loc":{"line":2,"col":5},"tagUsed":"union","completeDefinition":true,"inner":[
  {"id":"0x3","kind":"FieldDecl","loc":{"line":2,"col":17},"name":"i","type":{"qualType":"int"}},
  {"id":"0x4","kind":"FieldDecl","loc":{"line":2,"col":26},"name":"f","type":{"qualType":"float"}}]},
 {"id":"0x5","kind":"FieldDecl","loc":{"line":2,"col":30},"name":"u","type":{"qualType":"union Outer::(anonymous union at /work/include/x.h:2:5)"}},
 {"id":"0x6","kind":"FieldDecl","loc":{"line":3,"col":12},"name":"bits","type":{"qualType":"unsigned int"},"isBitfield":true,"inner":[
  {"id":"0x7","kind":"ConstantExpr","value":"3","type":{"qualType":"int"}}]}]}
]}`
	unit := convertFixture(t, src)
	if len(unit.Decls) != 2 {
		t.Fatalf("decls = %+v", unit.Decls)
	}
	nested, outer := unit.Decls[0], unit.Decls[1]
	if nested.Name != "Outer_u" || !nested.Union || len(nested.Fields) != 2 {
		t.Errorf("nested = %+v", nested)
	}
	if outer.Name != "Outer" || len(outer.Fields) != 2 {
		t.Fatalf("outer = %+v", outer)
	}
	if ft := outer.Fields[0].Type; ft.Name != "Outer_u" || ft.Anonymous {
		t.Errorf("field type = %+v", ft)
	}
	if outer.Fields[1].BitWidth != 3 {
		t.Errorf("bit width = %d", outer.Fields[1].BitWidth)
	}
}

func TestEvalValueCMode(t *testing.T) {
	lit := func(v string) *node { return &node{Kind: "IntegerLiteral", Value: v} }
	shift := &node{Kind: "BinaryOperator", Opcode: "<<", Inner: []*node{lit("1"), lit("4")}}
	v, ok := evalValue(shift, nil)
	if !ok || v.String() != "16" {
		t.Fatalf("1<<4 = %v, %v", v, ok)
	}

	neg := &node{Kind: "UnaryOperator", Opcode: "-", Inner: []*node{{Kind: "ParenExpr", Inner: []*node{lit("0x7FFFFFFF")}}}}
	v, ok = evalValue(neg, nil)
	if !ok || v.String() != "-2147483647" {
		t.Fatalf("-(0x7FFFFFFF) = %v, %v", v, ok)
	}

	ref := &node{Kind: "BinaryOperator", Opcode: "|", Inner: []*node{
		{Kind: "ImplicitCastExpr", Inner: []*node{{Kind: "DeclRefExpr", ReferencedDecl: &declRef{Name: "A"}}}},
		lit("2"),
	}}
	v, ok = evalValue(ref, map[string]*big.Int{"A": big.NewInt(5)})
	if !ok || v.String() != "7" {
		t.Fatalf("A|2 = %v, %v", v, ok)
	}

	if _, ok := evalValue(&node{Kind: "CallExpr"}, nil); ok {
		t.Fatal("CallExpr must not evaluate")
	}
}

func TestEnumImplicitAfterUnevaluatedValue(t *testing.T) {
	conv := newConverter("/work/include/xr.h", []string{"/work/include"})
	konst := func(name string, init ...*node) *node {
		return &node{Kind: "EnumConstantDecl", Name: name, Inner: init}
	}
	n := &node{Kind: "EnumDecl", Name: "E", Inner: []*node{
		konst("A", &node{Kind: "UnaryExprOrTypeTraitExpr"}),
		konst("B"),
		konst("C", &node{Kind: "IntegerLiteral", Value: "5"}),
		konst("D"),
	}}
	d := conv.enum(n)
	got := make([]string, 0, len(d.Enumerators))
	for _, e := range d.Enumerators {
		got = append(got, e.Name+"="+e.Value)
	}
	want := "A= B= C=5 D=6"
	if strings.Join(got, " ") != want {
		t.Fatalf("enumerators = %q, want %q", strings.Join(got, " "), want)
	}
}
