package eval

import (
	"testing"

	"github.com/me/dxwdl/pkg/wdl"
)

func expr(text string) wdl.Expr { return wdl.Expr{Text: text} }

func TestTryConstLiterals(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3", "3"},
		{"1 + 2", "3"},
		{`"2 GB"`, `"2 GB"`},
		{`"a" + "b"`, `"ab"`},
		{"true", "true"},
		{"2 < 3", "true"},
		{"[1, 2, 3]", "[1, 2, 3]"},
		{"2.5", "2.5"},
		{"floor(2.9)", "2"},
		{`sub("a.b", "\\.", "_")`, `"a_b"`},
		{"if 2 > 1 then 10 else 20", "10"},
	}
	for _, c := range cases {
		v, ok := TryConst(expr(c.in))
		if !ok {
			t.Errorf("TryConst(%q): not constant", c.in)
			continue
		}
		if got := v.SourceString(); got != c.want {
			t.Errorf("TryConst(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestTryConstRejectsFreeVariables(t *testing.T) {
	for _, in := range []string{"a", "a + 1", "Add.result", "nums[k]", "length(numbers) > 0"} {
		if _, ok := TryConst(expr(in)); ok {
			t.Errorf("TryConst(%q): folded, want non-constant", in)
		}
	}
}

func TestTryConstRejectsEffectfulBuiltins(t *testing.T) {
	for _, in := range []string{`size(input_file)`, `read_lines("f.txt")`, `stdout()`} {
		if _, ok := TryConst(expr(in)); ok {
			t.Errorf("TryConst(%q): folded, want non-constant", in)
		}
	}
}

func TestTryConstEmpty(t *testing.T) {
	if _, ok := TryConst(wdl.Expr{}); ok {
		t.Error("TryConst of empty expression succeeded")
	}
}

func TestIsConst(t *testing.T) {
	if !IsConst(expr("41 + 1")) {
		t.Error("IsConst(41 + 1) = false")
	}
	if IsConst(expr("x + 1")) {
		t.Error("IsConst(x + 1) = true")
	}
}
