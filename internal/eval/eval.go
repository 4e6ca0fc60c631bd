// Package eval folds environment-free WDL expressions to constants
// using a JavaScript runtime (goja). The VM is constructed with no
// workflow environment: only pure standard-library functions are
// defined, so any reference to a variable or an effectful builtin
// (size, read_lines, stdout, ...) fails evaluation. That failure is the
// signal the compiler uses to classify an expression as non-constant.
package eval

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strings"

	"github.com/dop251/goja"

	"github.com/me/dxwdl/pkg/wdl"
)

// TryConst attempts to evaluate expr with no environment. It returns
// the constant value and true on success, or a zero value and false
// when the expression depends on anything outside itself.
func TryConst(expr wdl.Expr) (wdl.Value, bool) {
	if expr.Empty() {
		return wdl.Value{}, false
	}
	vm := goja.New()
	if err := installPureStdlib(vm); err != nil {
		return wdl.Value{}, false
	}
	res, err := vm.RunString(translate(expr.Text))
	if err != nil {
		return wdl.Value{}, false
	}
	exported := res.Export()
	if exported == nil {
		return wdl.Value{}, false
	}
	v, err := wdl.ValueFromAny(exported)
	if err != nil {
		return wdl.Value{}, false
	}
	return v, true
}

// IsConst reports whether expr folds to a constant.
func IsConst(expr wdl.Expr) bool {
	_, ok := TryConst(expr)
	return ok
}

var ifThenElseRe = regexp.MustCompile(`\bif\b(.+)\bthen\b(.+)\belse\b(.+)`)

// translate rewrites the few WDL surface forms that are not JavaScript.
// Everything else (arithmetic, comparison, string concatenation with +,
// array literals, indexing) is shared syntax.
func translate(text string) string {
	if m := ifThenElseRe.FindStringSubmatch(text); m != nil {
		return "(" + m[1] + ") ? (" + translate(m[2]) + ") : (" + translate(m[3]) + ")"
	}
	return text
}

// installPureStdlib defines the WDL standard-library functions that are
// pure and therefore legal in constant expressions. Effectful functions
// are deliberately absent.
func installPureStdlib(vm *goja.Runtime) error {
	funcs := map[string]any{
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"round": math.Round,
		"length": func(v []any) int {
			return len(v)
		},
		"range": func(n int64) []int64 {
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(i)
			}
			return out
		},
		"basename": func(args ...string) string {
			if len(args) == 0 {
				return ""
			}
			b := path.Base(args[0])
			if len(args) > 1 {
				b = strings.TrimSuffix(b, args[1])
			}
			return b
		},
		"sub": func(input, pattern, replace string) (string, error) {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return "", fmt.Errorf("sub: %w", err)
			}
			return re.ReplaceAllString(input, replace), nil
		},
		"select_first": func(v []any) (any, error) {
			for _, e := range v {
				if e != nil {
					return e, nil
				}
			}
			return nil, fmt.Errorf("select_first: no defined value")
		},
	}
	for name, fn := range funcs {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}
