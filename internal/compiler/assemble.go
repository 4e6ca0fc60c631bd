package compiler

import (
	"fmt"
	"strings"

	"github.com/me/dxwdl/pkg/wdl"
)

// workflowCompiler holds the state of one workflow compilation. Its
// counters are local to the compilation, so concurrent compilations of
// independent workflows produce identical, reproducible namespaces.
type workflowCompiler struct {
	c       *Compiler
	wf      *wdl.Workflow
	locked  bool
	env     *CallEnv
	applets map[string]*Applet

	evalCount    int
	scatterCount int
	ifCount      int
	stageCount   int
}

func (w *workflowCompiler) nextStageID() string {
	id := fmt.Sprintf("stage-%d", w.stageCount)
	w.stageCount++
	return id
}

func (w *workflowCompiler) addApplet(a *Applet) error {
	if _, ok := w.applets[a.Name]; ok {
		return errf(ErrIllegalCallName, wdl.Pos{}, "applet name %q is not unique", a.Name)
	}
	w.applets[a.Name] = a
	return nil
}

// compileWorkflow lowers a workflow to its IR. The applet map is shared
// with the driver: synthetic applets are added to it as stages are
// emitted.
func (c *Compiler) compileWorkflow(wf *wdl.Workflow, locked bool, applets map[string]*Applet) (*Workflow, error) {
	w := &workflowCompiler{
		c:       c,
		wf:      wf,
		locked:  locked,
		env:     NewCallEnv(),
		applets: applets,
	}

	wfInputs, body, err := w.splitWorkflowInputs()
	if err != nil {
		return nil, err
	}
	blocks := partitionBody(body)

	out := &Workflow{Name: wf.Name, Locked: locked}

	if locked {
		for _, in := range wfInputs {
			lv := LinkedVar{Var: in, Arg: SArgWorkflowInput{Var: in}}
			out.Inputs = append(out.Inputs, lv)
			if err := w.env.Bind(in.Name, lv); err != nil {
				return nil, errf(ErrUnsupported, wf.Pos, "workflow input %s: %v", in.Name, err)
			}
		}
	} else {
		common, commonApplet, err := w.commonStage(wfInputs)
		if err != nil {
			return nil, err
		}
		if err := w.addApplet(commonApplet); err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, common)
		for i, in := range wfInputs {
			lv := LinkedVar{Var: in, Arg: SArgLink{Stage: common.Name, Var: in}}
			out.Inputs = append(out.Inputs, LinkedVar{Var: in, Arg: common.Inputs[i]})
			if err := w.env.Bind(in.Name, lv); err != nil {
				return nil, errf(ErrUnsupported, wf.Pos, "workflow input %s: %v", in.Name, err)
			}
		}
	}

	backbone, err := w.buildBackbone(blocks)
	if err != nil {
		return nil, err
	}
	out.Stages = append(out.Stages, backbone...)

	if wf.HasOutputSection {
		stage, applet, outLinks, err := w.outputStage()
		if err != nil {
			return nil, err
		}
		if err := w.addApplet(applet); err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, stage)
		out.Outputs = outLinks

		if c.opts.Reorg {
			reorg, reorgApplet, err := w.reorgStage(outLinks)
			if err != nil {
				return nil, err
			}
			if err := w.addApplet(reorgApplet); err != nil {
				return nil, err
			}
			out.Stages = append(out.Stages, reorg)
		}
	}

	return out, nil
}

// splitWorkflowInputs separates the workflow-level inputs from the
// executable body. Unbound top-level declarations are inputs wherever
// they appear; a leading declaration with a constant initializer is an
// input with a default. In a locked workflow a leading non-constant
// initializer is fatal, since locked inputs form the only external
// surface and their defaults must be materializable.
func (w *workflowCompiler) splitWorkflowInputs() ([]CVar, []wdl.Element, error) {
	var inputs []CVar
	var body []wdl.Element
	leading := true
	for _, el := range w.wf.Elements {
		d, ok := el.(*wdl.Decl)
		if !ok {
			leading = false
			body = append(body, el)
			continue
		}
		switch {
		case d.Expr == nil:
			inputs = append(inputs, NewCVar(d.Name, d.Type))
		case leading:
			v, isConst := tryConstEval(*d.Expr)
			if isConst {
				cv := NewCVar(d.Name, d.Type)
				cv.Attrs.Default = &v
				inputs = append(inputs, cv)
			} else if w.locked {
				return nil, nil, errf(ErrNonConstDefault, d.Pos,
					"workflow input %q has a non-constant default %q", d.Name, d.Expr.Text)
			} else {
				body = append(body, d)
			}
		default:
			body = append(body, d)
		}
	}
	return inputs, body, nil
}

// buildBackbone folds the ordered block list into stages, threading the
// environment: every output of a new stage becomes addressable by later
// blocks. Call outputs are keyed <stageName>.<outputName>, matching
// source-level addressing; all other blocks bind output names as-is.
func (w *workflowCompiler) buildBackbone(blocks []Block) ([]*Stage, error) {
	var stages []*Stage
	for _, blk := range blocks {
		var stage *Stage
		var applet *Applet
		var err error
		keyPrefix := ""

		switch b := blk.(type) {
		case DeclRun:
			w.evalCount++
			stage, applet, err = w.compileEval(b.Decls, fmt.Sprintf("eval%d", w.evalCount))
		case CallBlock:
			stage, err = w.compileCall(b.Call)
			if stage != nil {
				keyPrefix = stage.Name + "."
			}
		case ScatterBlock:
			w.scatterCount++
			stage, applet, err = w.compileScatter(b, fmt.Sprintf("scatter%d", w.scatterCount))
		case IfBlock:
			w.ifCount++
			stage, applet, err = w.compileIf(b, fmt.Sprintf("if%d", w.ifCount))
		}
		if err != nil {
			return nil, err
		}
		if applet != nil {
			if err := w.addApplet(applet); err != nil {
				return nil, err
			}
		}

		for _, out := range stage.Outputs {
			key := keyPrefix + out.Name
			lv := LinkedVar{Var: out, Arg: SArgLink{Stage: stage.Name, Var: out}}
			if err := w.env.Bind(key, lv); err != nil {
				return nil, errf(ErrUnsupported, w.wf.Pos, "stage %s: %v", stage.Name, err)
			}
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// commonStage synthesizes the inputs stage of an unlocked workflow:
// an eval applet whose inputs and outputs are the workflow inputs, so
// later stages can address them by link.
func (w *workflowCompiler) commonStage(inputs []CVar) (*Stage, *Applet, error) {
	var decls []*wdl.Decl
	for _, in := range inputs {
		d := &wdl.Decl{Name: in.DXVarName, Type: in.Type}
		if in.Attrs.Default != nil {
			d.Expr = &wdl.Expr{Text: in.Attrs.Default.SourceString()}
		}
		decls = append(decls, d)
	}
	ns := &wdl.Namespace{Workflow: &wdl.Workflow{Name: CommonStageName, Elements: declElements(decls)}}
	if len(decls) == 0 {
		ns.Workflow.Elements = []wdl.Element{&wdl.Decl{Name: wdl.GeneratedPrefix + "dummy", Type: wdl.TypeInt, Expr: &wdl.Expr{Text: "0"}}}
	}

	applet, err := NewApplet(CommonStageName, inputs, inputs, InstanceDefault{}, DockerNone{}, KindEval{}, wdl.PrintDocument(ns))
	if err != nil {
		return nil, nil, err
	}

	args := make([]SArg, 0, len(inputs))
	for _, in := range inputs {
		if in.Attrs.Default != nil {
			args = append(args, SArgConst{Value: *in.Attrs.Default})
		} else {
			args = append(args, SArgEmpty{})
		}
	}
	stage := &Stage{
		Name:       CommonStageName,
		ID:         w.nextStageID(),
		AppletName: applet.Name,
		Inputs:     args,
		Outputs:    inputs,
	}
	return stage, applet, nil
}

// outputStage synthesizes the terminal output-section stage. Every
// output expression must be a constant or resolve through the
// environment; the exported names are the sanitized source forms with
// dots removed. The stage carries the fixed last-stage id.
func (w *workflowCompiler) outputStage() (*Stage, *Applet, []LinkedVar, error) {
	var inputs []CVar
	var args []SArg
	for _, o := range w.wf.Outputs {
		text := strings.TrimSpace(o.Expr.Text)
		if ident, ok := isBareIdent(o.Expr); ok {
			lv, found := w.env.Lookup(ident)
			if !found {
				return nil, nil, nil, errf(ErrUndefinedSymbol, o.Pos, "workflow output references undefined %q", ident)
			}
			inputs = append(inputs, CVar{Name: text, DXVarName: SanitizeVarName(text), Type: lv.Var.Type})
			args = append(args, lv.Arg)
			continue
		}
		if fqn, ok := isBareChain(o.Expr); ok {
			_, lv, found := w.env.TrailLookup(fqn)
			if !found {
				return nil, nil, nil, errf(ErrUndefinedSymbol, o.Pos, "workflow output references undefined %q", fqn)
			}
			inputs = append(inputs, CVar{Name: text, DXVarName: SanitizeVarName(text), Type: lv.Var.Type})
			args = append(args, lv.Arg)
			continue
		}
		if v, ok := tryConstEval(o.Expr); ok {
			inputs = append(inputs, CVar{Name: text, DXVarName: SanitizeVarName(text), Type: v.T})
			args = append(args, SArgConst{Value: v})
			continue
		}
		return nil, nil, nil, errf(ErrUnsupported, o.Pos,
			"workflow output %q is not a constant or a variable reference", text)
	}

	outputs := make([]CVar, len(inputs))
	for i, in := range inputs {
		outputs[i] = NewCVar(in.DXVarName, in.Type)
	}

	var decls []*wdl.Decl
	for _, in := range inputs {
		decls = append(decls, &wdl.Decl{Name: in.DXVarName, Type: in.Type})
	}
	appletName := w.wf.Name + "_" + OutputAppletSuffix
	ns := &wdl.Namespace{Workflow: &wdl.Workflow{Name: appletName, Elements: declElements(decls)}}
	if len(decls) == 0 {
		ns.Workflow.Elements = []wdl.Element{&wdl.Decl{Name: wdl.GeneratedPrefix + "dummy", Type: wdl.TypeInt, Expr: &wdl.Expr{Text: "0"}}}
	}

	applet, err := NewApplet(appletName, inputs, outputs, InstanceDefault{}, DockerNone{}, KindEval{}, wdl.PrintDocument(ns))
	if err != nil {
		return nil, nil, nil, err
	}

	stage := &Stage{
		Name:       OutputStageName,
		ID:         LastStageID,
		AppletName: applet.Name,
		Inputs:     args,
		Outputs:    outputs,
	}

	links := make([]LinkedVar, len(outputs))
	for i, out := range outputs {
		links[i] = LinkedVar{Var: out, Arg: SArgLink{Stage: stage.Name, Var: out}}
	}
	return stage, applet, links, nil
}

// reorgStage appends the reorganization stage: its inputs are every
// workflow output, its outputs are empty. At execution time it moves
// non-final files into an archive subdirectory; the compiler only
// emits the stage.
func (w *workflowCompiler) reorgStage(wfOutputs []LinkedVar) (*Stage, *Applet, error) {
	var inputs []CVar
	var args []SArg
	var decls []*wdl.Decl
	for _, lv := range wfOutputs {
		inputs = append(inputs, lv.Var)
		args = append(args, lv.Arg)
		decls = append(decls, &wdl.Decl{Name: lv.Var.DXVarName, Type: lv.Var.Type})
	}

	appletName := w.wf.Name + "_" + ReorgStageName
	ns := &wdl.Namespace{Workflow: &wdl.Workflow{Name: appletName, Elements: declElements(decls)}}
	if len(decls) == 0 {
		ns.Workflow.Elements = []wdl.Element{&wdl.Decl{Name: wdl.GeneratedPrefix + "dummy", Type: wdl.TypeInt, Expr: &wdl.Expr{Text: "0"}}}
	}

	applet, err := NewApplet(appletName, inputs, nil, InstanceDefault{}, DockerNone{}, KindWorkflowOutputReorg{}, wdl.PrintDocument(ns))
	if err != nil {
		return nil, nil, err
	}

	stage := &Stage{
		Name:       ReorgStageName,
		ID:         w.nextStageID(),
		AppletName: applet.Name,
		Inputs:     args,
	}
	return stage, applet, nil
}

func declElements(decls []*wdl.Decl) []wdl.Element {
	elems := make([]wdl.Element, len(decls))
	for i, d := range decls {
		elems[i] = d
	}
	return elems
}
