package compiler

import (
	"strings"

	"github.com/me/dxwdl/pkg/wdl"
)

// compileEval synthesizes an expression-evaluation applet for a run of
// declarations. The closure of the declarations' expressions becomes
// the applet inputs; the declarations themselves are the outputs.
func (w *workflowCompiler) compileEval(decls []*wdl.Decl, stageName string) (*Stage, *Applet, error) {
	var exprs []wdl.Expr
	for _, d := range decls {
		if d.Expr != nil {
			exprs = append(exprs, *d.Expr)
		}
	}
	closure := closureOf(w.env, exprs...)
	inputs := closureVars(closure)

	outputs := make([]CVar, 0, len(decls))
	for _, d := range decls {
		outputs = append(outputs, NewCVar(d.Name, d.Type))
	}

	source := evalFragment(stageName, inputs, decls)
	applet, err := NewApplet(stageName, inputs, outputs, InstanceDefault{}, DockerNone{}, KindEval{}, source)
	if err != nil {
		return nil, nil, err
	}

	stage := &Stage{
		Name:       stageName,
		ID:         w.nextStageID(),
		AppletName: applet.Name,
		Inputs:     closureArgs(closure),
		Outputs:    outputs,
	}
	return stage, applet, nil
}

// evalFragment builds the embedded source for an eval applet: a
// workflow holding the renamed input declarations followed by the
// original declarations with their expressions rewritten to refer to
// the sanitized input names. An empty declaration list still yields a
// valid workflow via a dummy declaration.
func evalFragment(name string, inputs []CVar, decls []*wdl.Decl) string {
	var b strings.Builder
	b.WriteString("workflow " + name + " {\n")
	for _, in := range inputs {
		b.WriteString("  " + in.Type.String() + " " + in.DXVarName + "\n")
	}
	if len(decls) == 0 {
		b.WriteString("  Int " + wdl.GeneratedPrefix + "dummy = 0\n")
	}
	for _, d := range decls {
		if d.Expr == nil {
			b.WriteString("  " + d.Type.String() + " " + d.Name + "\n")
			continue
		}
		renamed := renameFreeVars(*d.Expr, inputs)
		b.WriteString("  " + d.Type.String() + " " + d.Name + " = " + renamed.Text + "\n")
	}
	b.WriteString("}\n")
	return b.String()
}
