package compiler

import (
	"strings"

	"github.com/me/dxwdl/internal/eval"
	"github.com/me/dxwdl/pkg/wdl"
)

// identChain is a maximal run of identifiers joined by dots in an
// expression's token stream, with byte offsets into the expression
// text. isCall marks a plain identifier immediately followed by an
// opening parenthesis (a function application, not a variable).
type identChain struct {
	parts  []string
	start  int
	end    int
	isCall bool
}

func (c identChain) text() string { return strings.Join(c.parts, ".") }

// exprKeywords are identifier tokens that are part of the expression
// grammar, never variable references.
var exprKeywords = map[string]bool{
	"true": true, "false": true,
	"if": true, "then": true, "else": true,
	"in": true,
}

// scanChains groups the identifier tokens of an expression into dotted
// chains. String literal contents are single tokens and never
// contribute identifiers.
func scanChains(text string) []identChain {
	toks := wdl.ScanExpr(text)
	var chains []identChain
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != wdl.ExprIdent || exprKeywords[t.Text] {
			continue
		}
		ch := identChain{parts: []string{t.Text}, start: t.Start, end: t.End}
		for i+2 < len(toks) &&
			toks[i+1].Kind == wdl.ExprPunct && toks[i+1].Text == "." &&
			toks[i+1].Start == toks[i].End &&
			toks[i+2].Kind == wdl.ExprIdent &&
			toks[i+2].Start == toks[i+1].End {
			ch.parts = append(ch.parts, toks[i+2].Text)
			ch.end = toks[i+2].End
			i += 2
		}
		if len(ch.parts) == 1 && i+1 < len(toks) && toks[i+1].Kind == wdl.ExprPunct && toks[i+1].Text == "(" {
			ch.isCall = true
		}
		chains = append(chains, ch)
	}
	return chains
}

// referencedNames enumerates the free names of an expression: dotted
// member-access chains and plain identifiers, each deduplicated in
// order of first appearance. Function applications are excluded.
func referencedNames(expr wdl.Expr) (chains []string, idents []string) {
	seen := make(map[string]bool)
	for _, ch := range scanChains(expr.Text) {
		if ch.isCall {
			continue
		}
		name := ch.text()
		if seen[name] {
			continue
		}
		seen[name] = true
		if len(ch.parts) > 1 {
			chains = append(chains, name)
		} else {
			idents = append(idents, name)
		}
	}
	return chains, idents
}

// renameFreeVars rewrites each occurrence of any v.Name among vars to
// the corresponding DXVarName. Substitution is token-level: identifier
// boundaries are respected and string literals are left alone. A
// dotted chain is matched by its longest prefix among vars, so with a
// variable named A.b the chain A.b.c rewrites to A_b.c.
func renameFreeVars(expr wdl.Expr, vars []CVar) wdl.Expr {
	byName := make(map[string]string, len(vars))
	for _, v := range vars {
		byName[v.Name] = v.DXVarName
	}
	text := expr.Text
	var b strings.Builder
	last := 0
	for _, ch := range scanChains(text) {
		if ch.isCall {
			continue
		}
		// Longest matching prefix of the chain.
		for n := len(ch.parts); n > 0; n-- {
			prefix := strings.Join(ch.parts[:n], ".")
			repl, ok := byName[prefix]
			if !ok {
				continue
			}
			// The prefix ends where its n-th identifier ends.
			prefixEnd := ch.start + prefixSpan(text[ch.start:ch.end], n)
			b.WriteString(text[last:ch.start])
			b.WriteString(repl)
			last = prefixEnd
			break
		}
	}
	b.WriteString(text[last:])
	return wdl.Expr{Text: b.String(), Pos: expr.Pos}
}

// prefixSpan returns the byte length of the first n identifiers (and
// their joining dots) of a chain's source text.
func prefixSpan(chainText string, n int) int {
	count := 0
	for i := 0; i < len(chainText); i++ {
		if chainText[i] == '.' {
			count++
			if count == n {
				return i
			}
		}
	}
	return len(chainText)
}

// tryConstEval folds an environment-free expression to a constant.
func tryConstEval(expr wdl.Expr) (wdl.Value, bool) {
	return eval.TryConst(expr)
}

// isBareIdent reports whether the expression is a single plain
// identifier, returning it.
func isBareIdent(expr wdl.Expr) (string, bool) {
	chains := scanChains(expr.Text)
	if len(chains) != 1 || len(chains[0].parts) != 1 || chains[0].isCall {
		return "", false
	}
	ch := chains[0]
	if strings.TrimSpace(expr.Text) != ch.text() {
		return "", false
	}
	return ch.text(), true
}

// isBareChain reports whether the expression is a single member-access
// chain, returning its dotted form.
func isBareChain(expr wdl.Expr) (string, bool) {
	chains := scanChains(expr.Text)
	if len(chains) != 1 || len(chains[0].parts) < 2 || chains[0].isCall {
		return "", false
	}
	ch := chains[0]
	if strings.TrimSpace(expr.Text) != strings.Join(ch.parts, ".") {
		return "", false
	}
	return ch.text(), true
}
