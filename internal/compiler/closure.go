package compiler

import "github.com/me/dxwdl/pkg/wdl"

// closureOf computes the free variables of a set of expressions with
// respect to the enclosing environment: the bindings that must be
// imported into a block's synthetic applet.
//
// Plain identifiers resolve by exact lookup. Member-access chains
// resolve by trail search (prefix stripping), which unifies call-output
// access (A.B where A is a call and B an output field) with struct
// navigation. A name with no hit at any prefix is locally defined
// inside the block and is not part of the closure.
func closureOf(env *CallEnv, exprs ...wdl.Expr) *CallEnv {
	closure := NewCallEnv()
	for _, expr := range exprs {
		if expr.Empty() {
			continue
		}
		chains, idents := referencedNames(expr)
		for _, name := range idents {
			lv, ok := env.Lookup(name)
			if !ok {
				continue
			}
			if _, bound := closure.Lookup(name); bound {
				continue
			}
			closure.Bind(name, lv)
		}
		for _, fqn := range chains {
			key, lv, ok := env.TrailLookup(fqn)
			if !ok {
				continue
			}
			if _, bound := closure.Lookup(key); bound {
				continue
			}
			closure.Bind(key, lv)
		}
	}
	return closure
}

// closureVars materializes the closure as input CVars: the source name
// is the fully qualified name, the platform name its sanitized form,
// the type taken from the binding.
func closureVars(closure *CallEnv) []CVar {
	vars := make([]CVar, 0, closure.Len())
	for _, name := range closure.Names() {
		lv, _ := closure.Lookup(name)
		vars = append(vars, NewCVar(name, lv.Var.Type))
	}
	return vars
}

// closureArgs returns the stage arguments of the closure, positionally
// aligned with closureVars.
func closureArgs(closure *CallEnv) []SArg {
	args := make([]SArg, 0, closure.Len())
	for _, name := range closure.Names() {
		lv, _ := closure.Lookup(name)
		args = append(args, lv.Arg)
	}
	return args
}
