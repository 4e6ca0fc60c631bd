package compiler

import (
	"fmt"
	"strings"

	"github.com/me/dxwdl/pkg/wdl"
)

// simplifyWorkflow is the front-end lifting pass run before block
// partitioning. It rewrites the workflow so the block compilers' input
// preconditions hold:
//
//   - a scatter over a complex collection is rewritten to a generated
//     declaration followed by a scatter over that variable, and
//   - a top-level call argument that is neither a constant nor a
//     variable reference is lifted into a generated declaration.
//
// A generated collection declaration is absorbed into the following
// scatter block by the partitioner, so it creates no extra stage.
// Generated call-argument declarations precede a call, so the
// partitioner emits them (with any declarations just before them) as
// a declaration run evaluated by its own eval stage. The input AST is
// not mutated; rewritten nodes are fresh copies.
func (c *Compiler) simplifyWorkflow(wf *wdl.Workflow, applets map[string]*Applet) (*wdl.Workflow, error) {
	types := topLevelTypes(wf, applets)
	genCount := 0
	gen := func() string {
		genCount++
		return fmt.Sprintf("%sv%d", wdl.GeneratedPrefix, genCount)
	}

	var elems []wdl.Element
	for _, el := range wf.Elements {
		switch v := el.(type) {
		case *wdl.Scatter:
			if _, ok := isBareIdent(v.Collection); ok {
				elems = append(elems, v)
				continue
			}
			t, ok := inferExprType(v.Collection, types)
			if !ok {
				return nil, errf(ErrUnsupported, v.Pos,
					"cannot determine the type of scatter collection %q; lift it into a declaration", v.Collection.Text)
			}
			name := gen()
			decl := &wdl.Decl{Name: name, Type: t, Expr: &wdl.Expr{Text: v.Collection.Text, Pos: v.Collection.Pos}, Pos: v.Pos}
			types[name] = t
			cp := *v
			cp.Collection = wdl.Expr{Text: name, Pos: v.Collection.Pos}
			elems = append(elems, decl, &cp)

		case *wdl.Call:
			lifted, decls := c.liftCallArgs(v, types, gen)
			for _, d := range decls {
				elems = append(elems, d)
			}
			elems = append(elems, lifted)

		default:
			elems = append(elems, el)
		}
	}

	cp := *wf
	cp.Elements = elems
	return &cp, nil
}

// liftCallArgs lifts complex arguments of a top-level call into
// generated declarations, when their type can be determined. Arguments
// left in place fail later in call lowering, per the call-input rules.
func (c *Compiler) liftCallArgs(call *wdl.Call, types map[string]wdl.Type, gen func() string) (*wdl.Call, []*wdl.Decl) {
	var decls []*wdl.Decl
	cp := &wdl.Call{Task: call.Task, Alias: call.Alias, Pos: call.Pos}
	for _, in := range call.Inputs {
		_, bareI := isBareIdent(in.Expr)
		_, bareC := isBareChain(in.Expr)
		_, isConst := tryConstEval(in.Expr)
		if bareI || bareC || isConst {
			cp.Inputs = append(cp.Inputs, in)
			continue
		}
		t, ok := inferExprType(in.Expr, types)
		if !ok {
			cp.Inputs = append(cp.Inputs, in)
			continue
		}
		name := gen()
		decls = append(decls, &wdl.Decl{Name: name, Type: t, Expr: &wdl.Expr{Text: in.Expr.Text, Pos: in.Expr.Pos}, Pos: call.Pos})
		types[name] = t
		cp.Inputs = append(cp.Inputs, wdl.CallInput{Name: in.Name, Expr: wdl.Expr{Text: name, Pos: in.Expr.Pos}})
	}
	return cp, decls
}

// topLevelTypes builds the name-to-type map visible at workflow level:
// top declarations, call outputs under <callName>.<output>, and block
// outputs with lifted types.
func topLevelTypes(wf *wdl.Workflow, applets map[string]*Applet) map[string]wdl.Type {
	types := make(map[string]wdl.Type)
	var walk func(elems []wdl.Element, lift func(wdl.Type) wdl.Type)
	walk = func(elems []wdl.Element, lift func(wdl.Type) wdl.Type) {
		for _, el := range elems {
			switch v := el.(type) {
			case *wdl.Decl:
				types[v.Name] = lift(v.Type)
			case *wdl.Call:
				applet, ok := applets[v.Task]
				if !ok {
					continue
				}
				for _, o := range applet.Outputs {
					types[v.Name()+"."+o.Name] = lift(o.Type)
				}
			case *wdl.Scatter:
				walk(v.Body, func(t wdl.Type) wdl.Type { return lift(wdl.MakeArray(t)) })
			case *wdl.If:
				walk(v.Body, func(t wdl.Type) wdl.Type { return lift(wdl.MakeOptional(t)) })
			}
		}
	}
	walk(wf.Elements, func(t wdl.Type) wdl.Type { return t })
	return types
}

// stdlib return types used for inference of lifted expressions.
var stdlibReturns = map[string]wdl.Type{
	"range":      wdl.Array{Item: wdl.TypeInt},
	"read_lines": wdl.Array{Item: wdl.TypeString},
	"length":     wdl.TypeInt,
	"floor":      wdl.TypeInt,
	"ceil":       wdl.TypeInt,
	"round":      wdl.TypeInt,
	"size":       wdl.TypeFloat,
	"sub":        wdl.TypeString,
	"basename":   wdl.TypeString,
	"defined":    wdl.TypeBoolean,
}

// inferExprType determines an expression's type from its outermost
// form: a constant, a variable reference, or a standard-library call
// with a known return type; other shapes go to inferCompositeType.
// What neither recognizes is not inferable, and the caller decides
// whether that is fatal.
func inferExprType(expr wdl.Expr, types map[string]wdl.Type) (wdl.Type, bool) {
	if ident, ok := isBareIdent(expr); ok {
		t, found := types[ident]
		return t, found
	}
	if fqn, ok := isBareChain(expr); ok {
		for name := fqn; name != ""; {
			if t, found := types[name]; found {
				return t, true
			}
			i := strings.LastIndexByte(name, '.')
			if i < 0 {
				break
			}
			name = name[:i]
		}
		return nil, false
	}
	if v, ok := tryConstEval(expr); ok {
		return v.T, true
	}
	text := strings.TrimSpace(expr.Text)
	if i := strings.IndexByte(text, '('); i > 0 && strings.HasSuffix(text, ")") {
		if t, ok := stdlibReturns[strings.TrimSpace(text[:i])]; ok {
			return t, true
		}
	}
	return inferCompositeType(text, types)
}

// inferCompositeType handles the remaining shapes: indexing into an
// array, comparisons (Boolean), and arithmetic whose type follows its
// first resolvable operand.
func inferCompositeType(text string, types map[string]wdl.Type) (wdl.Type, bool) {
	// name[...] indexes an array.
	if i := strings.IndexByte(text, '['); i > 0 && strings.HasSuffix(text, "]") {
		if t, ok := inferExprType(wdl.Expr{Text: text[:i]}, types); ok {
			if arr, isArr := t.(wdl.Array); isArr {
				return arr.Item, true
			}
		}
	}

	toks := wdl.ScanExpr(text)
	depth := 0
	hasString := false
	hasArith := false
	for i, tok := range toks {
		switch tok.Kind {
		case wdl.ExprPunct:
			switch tok.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			case "<", ">", "!", "&", "|":
				if depth == 0 {
					return wdl.TypeBoolean, true
				}
			case "=":
				if depth == 0 && i+1 < len(toks) && toks[i+1].Text == "=" {
					return wdl.TypeBoolean, true
				}
			case "+", "-", "*", "/", "%":
				if depth == 0 {
					hasArith = true
				}
			}
		case wdl.ExprString:
			hasString = true
		}
	}
	if !hasArith {
		return nil, false
	}

	// Arithmetic follows its first resolvable operand.
	for _, ch := range scanChains(text) {
		if ch.isCall {
			continue
		}
		for name := ch.text(); name != ""; {
			if t, ok := types[name]; ok {
				return t, true
			}
			j := strings.LastIndexByte(name, '.')
			if j < 0 {
				break
			}
			name = name[:j]
		}
	}
	if hasString {
		return wdl.TypeString, true
	}
	return nil, false
}
