package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/me/dxwdl/pkg/wdl"
)

const intTask = `
task %s {
  Int a
  Int b
  command <<<
    echo $((~{a} %s ~{b}))
  >>>
  output {
    Int result = read_int(stdout())
  }
}
`

const unaryTask = `
task %s {
  Int i
  command <<<
    echo ~{i}
  >>>
  output {
    Int result = read_int(stdout())
  }
}
`

func compile(t *testing.T, src string, opts Options) *Namespace {
	t.Helper()
	ns, err := wdl.ParseDocument(src)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	out, err := testCompiler(opts, nil).Compile(context.Background(), ns)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	verifyNamespace(t, out)
	return out
}

func compileErr(t *testing.T, src string, opts Options) error {
	t.Helper()
	ns, err := wdl.ParseDocument(src)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	_, err = testCompiler(opts, nil).Compile(context.Background(), ns)
	if err == nil {
		t.Fatal("Compile succeeded, want error")
	}
	return err
}

// verifyNamespace asserts the structural invariants every compilation
// must satisfy: link validity, input arity, name sanitation and
// fragment legality.
func verifyNamespace(t *testing.T, ns *Namespace) {
	t.Helper()
	for name, applet := range ns.Applets {
		if err := wdl.CheckSource(applet.Source); err != nil {
			t.Errorf("applet %s: fragment does not parse: %v", name, err)
		}
		for _, group := range [][]CVar{applet.Inputs, applet.Outputs} {
			seen := map[string]bool{}
			for _, v := range group {
				if strings.ContainsRune(v.DXVarName, '.') {
					t.Errorf("applet %s: dx name %q contains a dot", name, v.DXVarName)
				}
				if seen[v.DXVarName] {
					t.Errorf("applet %s: duplicate dx name %q", name, v.DXVarName)
				}
				seen[v.DXVarName] = true
			}
		}
	}
	if ns.Workflow == nil {
		return
	}
	earlier := map[string]*Stage{}
	for _, stage := range ns.Workflow.Stages {
		applet, ok := ns.Applets[stage.AppletName]
		if !ok {
			t.Errorf("stage %s: applet %q missing", stage.Name, stage.AppletName)
			continue
		}
		if len(stage.Inputs) != len(applet.Inputs) {
			t.Errorf("stage %s: %d inputs, applet has %d", stage.Name, len(stage.Inputs), len(applet.Inputs))
		}
		for _, arg := range stage.Inputs {
			link, ok := arg.(SArgLink)
			if !ok {
				continue
			}
			src, ok := earlier[link.Stage]
			if !ok {
				t.Errorf("stage %s: link to %q, which is not an earlier stage", stage.Name, link.Stage)
				continue
			}
			found := false
			for _, out := range src.Outputs {
				if out.Name == link.Var.Name {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("stage %s: link to %s.%s, which is not an output", stage.Name, link.Stage, link.Var.Name)
			}
		}
		earlier[stage.Name] = stage
	}
}

func stageNames(wf *Workflow) []string {
	names := make([]string, len(wf.Stages))
	for i, s := range wf.Stages {
		names[i] = s.Name
	}
	return names
}

const callChainSource = `
task Add {
  Int a
  Int b
  command <<<
    echo $((~{a} + ~{b}))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

task Mul {
  Int a
  Int b
  command <<<
    echo $((~{a} * ~{b}))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

workflow math {
  Int ai
  call Add { input: a = ai, b = 3 }
  Int xtmp = Add.result + 10
  call Mul { input: a = xtmp, b = 2 }
}
`

func TestSimpleCallChain(t *testing.T) {
	ns := compile(t, callChainSource, Options{})
	wf := ns.Workflow

	want := []string{"common", "Add", "eval1", "Mul"}
	if got := stageNames(wf); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", got, want)
	}

	// eval1 imports Add.result by link.
	eval1 := wf.Stage("eval1")
	applet := ns.Applets["eval1"]
	if len(applet.Inputs) != 1 || applet.Inputs[0].Name != "Add.result" || applet.Inputs[0].DXVarName != "Add_result" {
		t.Errorf("eval1 inputs = %+v", applet.Inputs)
	}
	link, ok := eval1.Inputs[0].(SArgLink)
	if !ok || link.Stage != "Add" || link.Var.Name != "result" {
		t.Errorf("eval1 input arg = %v", eval1.Inputs[0])
	}
	if len(applet.Outputs) != 1 || applet.Outputs[0].Name != "xtmp" {
		t.Errorf("eval1 outputs = %+v", applet.Outputs)
	}

	// Mul reads xtmp from eval1 and a constant 2.
	mul := wf.Stage("Mul")
	if link, ok := mul.Inputs[0].(SArgLink); !ok || link.Stage != "eval1" || link.Var.Name != "xtmp" {
		t.Errorf("Mul input a = %v", mul.Inputs[0])
	}
	if c, ok := mul.Inputs[1].(SArgConst); !ok || c.Value.SourceString() != "2" {
		t.Errorf("Mul input b = %v", mul.Inputs[1])
	}
}

const scatterSource = `
task Inc {
  Int i
  command <<<
    echo $((~{i} + 1))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

task Twice {
  Int i
  command <<<
    echo $((~{i} * 2))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

task Mod7 {
  Int i
  command <<<
    echo $((~{i} % 7))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

workflow w {
  Array[Int] nums
  scatter (k in range(length(nums))) {
    call Inc { input: i = nums[k] }
    call Twice { input: i = Inc.result }
    call Mod7 { input: i = Twice.result }
  }
}
`

func TestScatterLiftsOutputs(t *testing.T) {
	ns := compile(t, scatterSource, Options{})
	wf := ns.Workflow

	want := []string{"common", "scatter1"}
	if got := stageNames(wf); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", got, want)
	}

	applet := ns.Applets["scatter1"]
	outs := map[string]string{}
	for _, o := range applet.Outputs {
		outs[o.Name] = o.Type.String()
	}
	for _, name := range []string{"Inc.result", "Twice.result", "Mod7.result"} {
		if outs[name] != "Array[Int]" {
			t.Errorf("output %s = %q, want Array[Int]", name, outs[name])
		}
	}
	if len(applet.Outputs) != 3 {
		t.Errorf("outputs = %+v, want exactly the three lifted call outputs", applet.Outputs)
	}

	// length/range are computed inside the applet, so the only stage
	// input is the nums array.
	if len(applet.Inputs) != 1 || applet.Inputs[0].Name != "nums" {
		t.Errorf("inputs = %+v", applet.Inputs)
	}
	if !strings.Contains(applet.Source, "range(length(nums))") {
		t.Errorf("collection not evaluated inside fragment:\n%s", applet.Source)
	}

	kind, ok := applet.Kind.(KindScatter)
	if !ok {
		t.Fatalf("kind = %T, want KindScatter", applet.Kind)
	}
	wantCalls := map[string]string{"Inc": "Inc", "Twice": "Twice", "Mod7": "Mod7"}
	for alias, task := range wantCalls {
		if kind.Calls[alias] != task {
			t.Errorf("callDict[%s] = %q, want %q", alias, kind.Calls[alias], task)
		}
	}
}

const condSource = `
task Add {
  Int a
  Int b
  command <<<
    echo $((~{a} + ~{b}))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

workflow w {
  Array[Int] numbers
  if (length(numbers) > 0) {
    Int f0 = 2
    Int f1 = 3
    call Add as a1 { input: a = f0, b = f1 }
    call Add as a2 { input: a = a1.result, b = f1 }
  }
}
`

func TestConditionalLiftsToOptional(t *testing.T) {
	ns := compile(t, condSource, Options{})
	wf := ns.Workflow

	want := []string{"common", "if1"}
	if got := stageNames(wf); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", got, want)
	}

	applet := ns.Applets["if1"]
	outs := map[string]string{}
	for _, o := range applet.Outputs {
		outs[o.Name] = o.Type.String()
	}
	if outs["a1.result"] != "Int?" || outs["a2.result"] != "Int?" {
		t.Errorf("outputs = %v, want a1.result and a2.result as Int?", outs)
	}

	kind, ok := applet.Kind.(KindIf)
	if !ok {
		t.Fatalf("kind = %T, want KindIf", applet.Kind)
	}
	if kind.Calls["a1"] != "Add" || kind.Calls["a2"] != "Add" {
		t.Errorf("callDict = %v", kind.Calls)
	}

	// The condition and absorbed declarations live inside the fragment.
	if !strings.Contains(applet.Source, "length(numbers) > 0") {
		t.Errorf("condition missing from fragment:\n%s", applet.Source)
	}
}

func TestConditionalNeverDoubleOptional(t *testing.T) {
	src := `
task Pick {
  Int i
  command <<<
    true
  >>>
  output {
    Int? chosen = i
  }
}

workflow w {
  Int x
  Boolean go
  if (go) {
    call Pick { input: i = x }
  }
}
`
	ns := compile(t, src, Options{})
	applet := ns.Applets["if1"]
	for _, o := range applet.Outputs {
		if strings.Contains(o.Type.String(), "??") {
			t.Errorf("double optional %s: %s", o.Name, o.Type)
		}
		if o.Name == "Pick.chosen" && o.Type.String() != "Int?" {
			t.Errorf("Pick.chosen = %s, want Int?", o.Type)
		}
	}
}

const missingInputSource = `
task Add {
  Int a
  Int b
  command <<<
    echo $((~{a} + ~{b}))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

workflow w {
  Int ai
  call Add { input: a = ai }
}
`

func TestLockedMissingRequiredInputFatal(t *testing.T) {
	err := compileErr(t, missingInputSource, Options{Locked: true})
	if code, _ := CodeOf(err); code != ErrMissingCallInput {
		t.Errorf("error = %v, want %v", err, ErrMissingCallInput)
	}
}

func TestUnlockedMissingRequiredInputBecomesEmpty(t *testing.T) {
	ns := compile(t, missingInputSource, Options{})
	add := ns.Workflow.Stage("Add")
	if _, ok := add.Inputs[1].(SArgEmpty); !ok {
		t.Errorf("missing input arg = %v, want empty", add.Inputs[1])
	}
}

func TestUnlockedMissingInputInScatterAddsExtra(t *testing.T) {
	src := `
task Inc {
  Int i
  command <<<
    echo $((~{i} + 1))
  >>>
  output {
    Int result = read_int(stdout())
  }
}

workflow w {
  Array[Int] nums
  scatter (k in nums) {
    call Inc
  }
}
`
	ns := compile(t, src, Options{})
	applet := ns.Applets["scatter1"]
	var extra *CVar
	for i := range applet.Inputs {
		if applet.Inputs[i].Name == "Inc_i" {
			extra = &applet.Inputs[i]
		}
	}
	if extra == nil {
		t.Fatalf("no Inc_i extra input; inputs = %+v", applet.Inputs)
	}
	if extra.OriginalFQN != "Inc.i" {
		t.Errorf("OriginalFQN = %q, want Inc.i", extra.OriginalFQN)
	}
	// The fragment call is wired to the propagated input.
	if !strings.Contains(applet.Source, "i = Inc_i") {
		t.Errorf("fragment call not wired to extra:\n%s", applet.Source)
	}

	if _, err := wdl.ParseDocument(src); err != nil {
		t.Fatal(err)
	}
	lockedErr := compileErr(t, src, Options{Locked: true})
	if code, _ := CodeOf(lockedErr); code != ErrMissingCallInput {
		t.Errorf("locked error = %v, want %v", lockedErr, ErrMissingCallInput)
	}
}

func TestLockedWorkflowInputsAndOutputs(t *testing.T) {
	src := callChainSource[:strings.LastIndex(callChainSource, "}")] + `
  output {
    Mul.result
  }
}
`
	ns := compile(t, src, Options{Locked: true})
	wf := ns.Workflow
	if !wf.Locked {
		t.Fatal("workflow not locked")
	}

	// No common stage: inputs are workflow-level.
	want := []string{"Add", "eval1", "Mul", "outputs"}
	if got := stageNames(wf); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	if len(wf.Inputs) != 1 || wf.Inputs[0].Var.Name != "ai" {
		t.Fatalf("workflow inputs = %+v", wf.Inputs)
	}
	add := wf.Stage("Add")
	if in, ok := add.Inputs[0].(SArgWorkflowInput); !ok || in.Var.Name != "ai" {
		t.Errorf("Add input a = %v, want workflow input ai", add.Inputs[0])
	}

	outStage := wf.Stage("outputs")
	if outStage.ID != LastStageID {
		t.Errorf("output stage id = %q, want %q", outStage.ID, LastStageID)
	}
	if outStage.AppletName != "math_outputs" {
		t.Errorf("output applet = %q", outStage.AppletName)
	}
	if len(outStage.Outputs) != 1 || outStage.Outputs[0].Name != "Mul_result" {
		t.Errorf("output stage outputs = %+v", outStage.Outputs)
	}
	if len(wf.Outputs) != 1 {
		t.Errorf("workflow outputs = %+v", wf.Outputs)
	}
}

func TestReorgStage(t *testing.T) {
	src := callChainSource[:strings.LastIndex(callChainSource, "}")] + `
  output {
    Mul.result
  }
}
`
	ns := compile(t, src, Options{Reorg: true})
	wf := ns.Workflow
	last := wf.Stages[len(wf.Stages)-1]
	if last.Name != ReorgStageName {
		t.Fatalf("last stage = %q, want %q", last.Name, ReorgStageName)
	}
	applet := ns.Applets[last.AppletName]
	if _, ok := applet.Kind.(KindWorkflowOutputReorg); !ok {
		t.Errorf("reorg kind = %T", applet.Kind)
	}
	if len(applet.Outputs) != 0 {
		t.Errorf("reorg outputs = %+v, want none", applet.Outputs)
	}
	if len(last.Inputs) != len(wf.Outputs) {
		t.Errorf("reorg inputs = %d, want %d", len(last.Inputs), len(wf.Outputs))
	}
}

func TestUndefinedSymbolFatal(t *testing.T) {
	src := `
task Inc {
  Int i
  command <<<
    true
  >>>
  output {
    Int result = 0
  }
}

workflow w {
  call Inc { input: i = nope }
}
`
	err := compileErr(t, src, Options{})
	if code, _ := CodeOf(err); code != ErrUndefinedSymbol {
		t.Errorf("error = %v, want %v", err, ErrUndefinedSymbol)
	}
}

func TestIllegalCallAlias(t *testing.T) {
	src := `
task Inc {
  Int i
  command <<<
    true
  >>>
  output {
    Int result = 0
  }
}

workflow w {
  Int x
  call Inc as scatterling { input: i = x }
}
`
	err := compileErr(t, src, Options{})
	if code, _ := CodeOf(err); code != ErrIllegalCallName {
		t.Errorf("error = %v, want %v", err, ErrIllegalCallName)
	}
}

func TestUnresolvedCallTarget(t *testing.T) {
	src := `
workflow w {
  Int x
  call Nowhere { input: i = x }
}
`
	err := compileErr(t, src, Options{})
	if code, _ := CodeOf(err); code != ErrUnresolvedCall {
		t.Errorf("error = %v, want %v", err, ErrUnresolvedCall)
	}
}

func TestSelfCallIsACycle(t *testing.T) {
	src := `
workflow w {
  Int x
  call w { input: i = x }
}
`
	err := compileErr(t, src, Options{})
	if code, _ := CodeOf(err); code != ErrCycle {
		t.Errorf("error = %v, want %v", err, ErrCycle)
	}
}

func TestLockedNonConstDefaultFatal(t *testing.T) {
	src := `
task Inc {
  Int i
  command <<<
    true
  >>>
  output {
    Int result = 0
  }
}

workflow w {
  Int x = length(range(3)) + y
  call Inc { input: i = x }
}
`
	err := compileErr(t, src, Options{Locked: true})
	if code, _ := CodeOf(err); code != ErrNonConstDefault {
		t.Errorf("error = %v, want %v", err, ErrNonConstDefault)
	}
}

func TestNonConstOutputExpressionFatal(t *testing.T) {
	src := `
task Inc {
  Int i
  command <<<
    true
  >>>
  output {
    Int result = 0
  }
}

workflow w {
  Int x
  call Inc { input: i = x }
  output {
    Inc.result + 1
  }
}
`
	err := compileErr(t, src, Options{})
	if code, _ := CodeOf(err); code != ErrUnsupported {
		t.Errorf("error = %v, want %v", err, ErrUnsupported)
	}
}

func TestTasksOnlyNamespace(t *testing.T) {
	src := `
task Solo {
  Int i
  command <<<
    echo ~{i}
  >>>
  output {
    Int r = 0
  }
}
`
	ns := compile(t, src, Options{})
	if ns.Workflow != nil {
		t.Error("workflow present in tasks-only namespace")
	}
	if _, ok := ns.Applets["Solo"]; !ok {
		t.Error("Solo applet missing")
	}
}

func TestDeterminism(t *testing.T) {
	for _, src := range []string{callChainSource, scatterSource, condSource} {
		ns, err := wdl.ParseDocument(src)
		if err != nil {
			t.Fatal(err)
		}
		c := testCompiler(Options{}, nil)
		first, err := c.Compile(context.Background(), ns)
		if err != nil {
			t.Fatal(err)
		}
		second, err := c.Compile(context.Background(), ns)
		if err != nil {
			t.Fatal(err)
		}
		a, err := json.Marshal(first)
		if err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(second)
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Error("two compilations of the same input differ")
		}
	}
}

func TestNoPartialNamespaceOnError(t *testing.T) {
	ns, err := wdl.ParseDocument(missingInputSource)
	if err != nil {
		t.Fatal(err)
	}
	out, err := testCompiler(Options{Locked: true}, nil).Compile(context.Background(), ns)
	if err == nil {
		t.Fatal("expected error")
	}
	if out != nil {
		t.Error("partial namespace returned alongside an error")
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Errorf("error chain lacks *compiler.Error: %v", err)
	}
}
