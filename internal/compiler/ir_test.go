package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/me/dxwdl/pkg/wdl"
)

func TestSanitizeVarName(t *testing.T) {
	cases := map[string]string{
		"x":         "x",
		"Add.result": "Add_result",
		"A.B.C":     "A_B_C",
	}
	for in, want := range cases {
		if got := SanitizeVarName(in); got != want {
			t.Errorf("SanitizeVarName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckCallName(t *testing.T) {
	for _, name := range []string{"Add", "a1", "my_step", "Inc"} {
		if err := CheckCallName(name); err != nil {
			t.Errorf("CheckCallName(%q): %v", name, err)
		}
	}
	for _, name := range []string{"eval2", "scatter1", "common", "reorg", "outputs", "a___b", LastStageID} {
		if err := CheckCallName(name); err == nil {
			t.Errorf("CheckCallName(%q): accepted reserved name", name)
		}
	}
}

func TestNewAppletRejectsSanitizationCollision(t *testing.T) {
	inputs := []CVar{NewCVar("A.x", wdl.TypeInt), NewCVar("A_x", wdl.TypeInt)}
	_, err := NewApplet("a", inputs, nil, InstanceDefault{}, DockerNone{}, KindEval{}, "workflow a {\n  Int x = 0\n}\n")
	if err == nil {
		t.Fatal("collision accepted")
	}
	if !strings.Contains(err.Error(), "collide") {
		t.Errorf("error = %v", err)
	}
}

func TestNewAppletRejectsBadFragment(t *testing.T) {
	_, err := NewApplet("a", nil, nil, InstanceDefault{}, DockerNone{}, KindEval{}, "workflow a {")
	if err == nil {
		t.Fatal("unparseable fragment accepted")
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Code != ErrBadFragment {
		t.Errorf("error = %v, want %v", err, ErrBadFragment)
	}
	// The offending fragment is surfaced for debugging.
	if !strings.Contains(ce.Msg, "workflow a {") {
		t.Errorf("fragment not included in error: %v", ce.Msg)
	}
}

func TestBlockCalls(t *testing.T) {
	dict := map[string]string{"a1": "Add"}
	for _, k := range []AppletKind{KindScatter{Calls: dict}, KindScatterCollect{Calls: dict}, KindIf{Calls: dict}} {
		calls, ok := BlockCalls(k)
		if !ok || calls["a1"] != "Add" {
			t.Errorf("BlockCalls(%T) = %v, %v", k, calls, ok)
		}
	}
	if _, ok := BlockCalls(KindTask{}); ok {
		t.Error("BlockCalls(KindTask) = true")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := errf(ErrUndefinedSymbol, wdl.Pos{Line: 3, Col: 7}, "no such name %q", "x")
	want := `3:7: UNDEFINED_SYMBOL: no such name "x"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noPos := errf(ErrCycle, wdl.Pos{}, "cycle")
	if got := noPos.Error(); got != "CYCLE: cycle" {
		t.Errorf("Error() = %q", got)
	}
}
