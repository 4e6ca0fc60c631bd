package compiler

import (
	"reflect"
	"testing"

	"github.com/me/dxwdl/pkg/wdl"
)

func envWith(t *testing.T, bindings map[string]wdl.Type, order []string) *CallEnv {
	t.Helper()
	env := NewCallEnv()
	for _, name := range order {
		cv := NewCVar(name, bindings[name])
		if err := env.Bind(name, LinkedVar{Var: cv, Arg: SArgLink{Stage: "s", Var: cv}}); err != nil {
			t.Fatal(err)
		}
	}
	return env
}

func TestClosureOfPlainAndChain(t *testing.T) {
	env := envWith(t, map[string]wdl.Type{
		"ai":         wdl.TypeInt,
		"Add.result": wdl.TypeInt,
	}, []string{"ai", "Add.result"})

	closure := closureOf(env, expr("Add.result + ai"))
	if got := closure.Names(); !reflect.DeepEqual(got, []string{"ai", "Add.result"}) {
		t.Errorf("closure names = %v", got)
	}
}

func TestClosureTrailSearch(t *testing.T) {
	env := envWith(t, map[string]wdl.Type{
		"A.b": wdl.Pair{Left: wdl.TypeInt, Right: wdl.TypeInt},
	}, []string{"A.b"})

	// A.b.left resolves to the A.b binding by prefix stripping.
	closure := closureOf(env, expr("A.b.left + 1"))
	if got := closure.Names(); !reflect.DeepEqual(got, []string{"A.b"}) {
		t.Errorf("closure names = %v, want [A.b]", got)
	}
}

func TestClosureSkipsLocals(t *testing.T) {
	env := envWith(t, map[string]wdl.Type{"nums": wdl.Array{Item: wdl.TypeInt}}, []string{"nums"})

	// k and Inc.result are defined inside the block; only nums is free.
	closure := closureOf(env, expr("nums[k]"), expr("Inc.result + 1"))
	if got := closure.Names(); !reflect.DeepEqual(got, []string{"nums"}) {
		t.Errorf("closure names = %v, want [nums]", got)
	}
}

func TestClosureDeduplicates(t *testing.T) {
	env := envWith(t, map[string]wdl.Type{"x": wdl.TypeInt}, []string{"x"})
	closure := closureOf(env, expr("x + x"), expr("x * 2"))
	if closure.Len() != 1 {
		t.Errorf("closure size = %d, want 1", closure.Len())
	}
}

func TestClosureVarsSanitize(t *testing.T) {
	env := envWith(t, map[string]wdl.Type{"Add.result": wdl.TypeInt}, []string{"Add.result"})
	vars := closureVars(closureOf(env, expr("Add.result")))
	if len(vars) != 1 || vars[0].Name != "Add.result" || vars[0].DXVarName != "Add_result" {
		t.Errorf("closure vars = %+v", vars)
	}
}

func TestCallEnvTrailLookup(t *testing.T) {
	env := envWith(t, map[string]wdl.Type{"A.B": wdl.TypeInt}, []string{"A.B"})
	key, _, ok := env.TrailLookup("A.B.C.D")
	if !ok || key != "A.B" {
		t.Errorf("TrailLookup = %q, %v", key, ok)
	}
	if _, _, ok := env.TrailLookup("Z.y"); ok {
		t.Error("TrailLookup found an unbound name")
	}
}

func TestCallEnvBindRejectsDuplicates(t *testing.T) {
	env := NewCallEnv()
	cv := NewCVar("x", wdl.TypeInt)
	if err := env.Bind("x", LinkedVar{Var: cv, Arg: SArgEmpty{}}); err != nil {
		t.Fatal(err)
	}
	if err := env.Bind("x", LinkedVar{Var: cv, Arg: SArgEmpty{}}); err == nil {
		t.Error("duplicate Bind succeeded")
	}
}
