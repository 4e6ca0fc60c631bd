package compiler

import (
	"testing"

	"github.com/me/dxwdl/pkg/wdl"
)

func TestSimplifyLiftsScatterCollection(t *testing.T) {
	ns, err := wdl.ParseDocument(`
workflow w {
  Array[Int] nums
  scatter (k in range(length(nums))) {
    call T { input: i = k }
  }
}
`)
	if err != nil {
		t.Fatal(err)
	}
	c := testCompiler(Options{}, nil)
	wf, err := c.simplifyWorkflow(ns.Workflow, nil)
	if err != nil {
		t.Fatalf("simplifyWorkflow: %v", err)
	}
	if len(wf.Elements) != 3 {
		t.Fatalf("elements = %d, want 3", len(wf.Elements))
	}
	decl, ok := wf.Elements[1].(*wdl.Decl)
	if !ok {
		t.Fatalf("element 1 is %T, want generated decl", wf.Elements[1])
	}
	if !wdl.IsGeneratedName(decl.Name) {
		t.Errorf("lifted decl name = %q, not generated", decl.Name)
	}
	if decl.Type.String() != "Array[Int]" {
		t.Errorf("lifted decl type = %s, want Array[Int]", decl.Type)
	}
	if decl.Expr.Text != "range(length(nums))" {
		t.Errorf("lifted decl expr = %q", decl.Expr.Text)
	}
	sc := wf.Elements[2].(*wdl.Scatter)
	if sc.Collection.Text != decl.Name {
		t.Errorf("collection = %q, want %q", sc.Collection.Text, decl.Name)
	}
}

func TestSimplifyLeavesBareCollections(t *testing.T) {
	ns, err := wdl.ParseDocument(`
workflow w {
  Array[Int] nums
  scatter (k in nums) {
    call T { input: i = k }
  }
}
`)
	if err != nil {
		t.Fatal(err)
	}
	c := testCompiler(Options{}, nil)
	wf, err := c.simplifyWorkflow(ns.Workflow, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(wf.Elements) != 2 {
		t.Errorf("elements = %d, want 2 (no lifting)", len(wf.Elements))
	}
}

func TestSimplifyLiftsComplexCallArg(t *testing.T) {
	ns, err := wdl.ParseDocument(`
workflow w {
  Int x
  call T { input: i = x + 1 }
}
`)
	if err != nil {
		t.Fatal(err)
	}
	c := testCompiler(Options{}, nil)
	wf, err := c.simplifyWorkflow(ns.Workflow, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(wf.Elements) != 3 {
		t.Fatalf("elements = %d, want 3", len(wf.Elements))
	}
	decl := wf.Elements[1].(*wdl.Decl)
	if decl.Type.String() != "Int" || decl.Expr.Text != "x + 1" {
		t.Errorf("lifted decl = %s %s = %s", decl.Type, decl.Name, decl.Expr.Text)
	}
	call := wf.Elements[2].(*wdl.Call)
	if call.Inputs[0].Expr.Text != decl.Name {
		t.Errorf("call arg = %q, want %q", call.Inputs[0].Expr.Text, decl.Name)
	}
}

func TestInferExprType(t *testing.T) {
	types := map[string]wdl.Type{
		"nums":       wdl.Array{Item: wdl.TypeInt},
		"Add.result": wdl.TypeInt,
	}
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"nums", "Array[Int]", true},
		{"Add.result", "Int", true},
		{"range(length(nums))", "Array[Int]", true},
		{"3 + 4", "Int", true},
		{`"a" + "b"`, "String", true},
		{"frobnicate(nums)", "", false},
	}
	for _, c := range cases {
		typ, ok := inferExprType(wdl.Expr{Text: c.in}, types)
		if ok != c.ok {
			t.Errorf("inferExprType(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && typ.String() != c.want {
			t.Errorf("inferExprType(%q) = %s, want %s", c.in, typ, c.want)
		}
	}
}
