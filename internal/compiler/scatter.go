package compiler

import (
	"github.com/me/dxwdl/pkg/wdl"
)

// blockMode selects between the two lifting disciplines: a scatter
// lifts T to Array[T]; a conditional lifts T to T? (never producing a
// double optional).
type blockMode int

const (
	modeScatter blockMode = iota
	modeIf
)

func (m blockMode) lift(t wdl.Type) wdl.Type {
	if m == modeScatter {
		return wdl.MakeArray(t)
	}
	return wdl.MakeOptional(t)
}

// compileScatter lowers a scatter block (optionally with absorbed
// preceding declarations) to a stage/applet pair. The collection
// expression must be a bare variable; the front end lifts complex
// collections into generated declarations beforehand.
func (w *workflowCompiler) compileScatter(blk ScatterBlock, stageName string) (*Stage, *Applet, error) {
	sc := blk.Scatter
	if _, ok := isBareIdent(sc.Collection); !ok {
		return nil, nil, errf(ErrUnsupported, sc.Pos,
			"scatter collection %q is not a variable; it must be lifted into a declaration", sc.Collection.Text)
	}
	return w.compileBlock(stageName, modeScatter, blk.PreDecls, sc.Collection, sc.Var, sc.Body, sc, sc.Pos)
}

// compileIf lowers a conditional block to a stage/applet pair.
func (w *workflowCompiler) compileIf(blk IfBlock, stageName string) (*Stage, *Applet, error) {
	c := blk.Cond
	return w.compileBlock(stageName, modeIf, blk.PreDecls, c.Cond, "", c.Body, c, c.Pos)
}

// compileBlock is the shared lowering of scatter and conditional
// blocks: closure computation, input synthesis, unlocked-input
// propagation, output lifting and fragment generation.
func (w *workflowCompiler) compileBlock(stageName string, mode blockMode, pre []*wdl.Decl, header wdl.Expr, scatterVar string, body []wdl.Element, blockNode wdl.Element, pos wdl.Pos) (*Stage, *Applet, error) {
	innerDecls, calls, err := splitBlockBody(body)
	if err != nil {
		return nil, nil, err
	}

	// Resolve every called task up front.
	targets := make(map[string]*Applet, len(calls))
	callDict := make(map[string]string, len(calls))
	for _, call := range calls {
		if err := CheckCallName(call.Name()); err != nil {
			return nil, nil, errf(ErrIllegalCallName, call.Pos, "%v", err)
		}
		applet, ok := w.applets[call.Task]
		if !ok {
			if w.wf != nil && call.Task == w.wf.Name {
				return nil, nil, errf(ErrUnsupported, call.Pos, "call %s: calling a workflow is not supported", call.Name())
			}
			return nil, nil, errf(ErrUnresolvedCall, call.Pos, "call %s: no task named %q", call.Name(), call.Task)
		}
		targets[call.Task] = applet
		callDict[call.Name()] = call.Task
	}

	// Closure across preceding declarations, the controlling
	// expression, body declarations and call arguments.
	exprs := []wdl.Expr{header}
	for _, d := range pre {
		if d.Expr != nil {
			exprs = append(exprs, *d.Expr)
		}
	}
	for _, d := range innerDecls {
		if d.Expr != nil {
			exprs = append(exprs, *d.Expr)
		}
	}
	for _, call := range calls {
		for _, in := range call.Inputs {
			exprs = append(exprs, in.Expr)
		}
	}
	closure := closureOf(w.env, exprs...)
	inputs := closureVars(closure)
	args := closureArgs(closure)

	// Unsatisfied call inputs: fatal in a locked workflow when the
	// input is required; exposed as extra applet inputs named
	// <callName>_<inputName> in an unlocked one.
	usedNames := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		usedNames[in.Name] = true
	}
	extraMappings := make(map[*wdl.Call][]wdl.CallInput)
	for _, call := range calls {
		applet := targets[call.Task]
		for _, formal := range applet.Inputs {
			if _, ok := call.Input(formal.Name); ok {
				continue
			}
			if formal.Attrs.Default != nil {
				continue
			}
			required := !wdl.IsOptional(formal.Type)
			if w.locked {
				if required {
					return nil, nil, errf(ErrMissingCallInput, call.Pos,
						"call %s: required input %q is not supplied", call.Name(), formal.Name)
				}
				continue
			}
			if required {
				w.c.logger.Warn("required call input not supplied; it becomes a workflow-level input",
					"workflow", w.wf.Name, "call", call.Name(), "input", formal.Name)
			}
			extraName := call.Name() + "_" + formal.Name
			if usedNames[extraName] {
				continue
			}
			usedNames[extraName] = true
			extra := NewCVar(extraName, formal.Type)
			extra.OriginalFQN = call.Name() + "." + formal.Name
			inputs = append(inputs, extra)
			args = append(args, SArgEmpty{})
			extraMappings[call] = append(extraMappings[call],
				wdl.CallInput{Name: formal.Name, Expr: wdl.Expr{Text: extraName}})
		}
	}

	// Outputs: preceding declarations unchanged, call outputs and
	// exported body declarations with lifted types.
	var outputs []CVar
	for _, d := range pre {
		if wdl.IsGeneratedName(d.Name) && !w.referencedOutsideBlock(blockNode, d.Name) {
			continue
		}
		outputs = append(outputs, NewCVar(d.Name, d.Type))
	}
	for _, call := range calls {
		for _, o := range targets[call.Task].Outputs {
			outputs = append(outputs, NewCVar(call.Name()+"."+o.Name, mode.lift(o.Type)))
		}
	}
	for _, d := range innerDecls {
		if wdl.IsGeneratedName(d.Name) && !w.referencedOutsideBlock(blockNode, d.Name) {
			continue
		}
		outputs = append(outputs, NewCVar(d.Name, mode.lift(d.Type)))
	}

	var kind AppletKind
	switch mode {
	case modeScatter:
		kind = KindScatter{Calls: callDict}
		for _, o := range outputs {
			if !wdl.IsNativeDX(o.Type) {
				kind = KindScatterCollect{Calls: callDict}
				break
			}
		}
	case modeIf:
		kind = KindIf{Calls: callDict}
	}

	closureOnly := closureVars(closure)
	source := w.blockFragment(stageName, mode, inputs, closureOnly, pre, header, scatterVar, innerDecls, calls, targets, extraMappings)

	applet, err := NewApplet(stageName, inputs, outputs, InstanceDefault{}, DockerNone{}, kind, source)
	if err != nil {
		return nil, nil, err
	}

	stage := &Stage{
		Name:       stageName,
		ID:         w.nextStageID(),
		AppletName: applet.Name,
		Inputs:     args,
		Outputs:    outputs,
	}
	return stage, applet, nil
}

// splitBlockBody separates a block body into its leading declarations
// and trailing calls. Declarations after a call, and nested blocks,
// are unsupported.
func splitBlockBody(body []wdl.Element) ([]*wdl.Decl, []*wdl.Call, error) {
	var decls []*wdl.Decl
	var calls []*wdl.Call
	for _, el := range body {
		switch v := el.(type) {
		case *wdl.Decl:
			if len(calls) > 0 {
				return nil, nil, errf(ErrUnsupported, v.Pos,
					"declaration %q appears after a call in the block body", v.Name)
			}
			decls = append(decls, v)
		case *wdl.Call:
			calls = append(calls, v)
		default:
			return nil, nil, errf(ErrUnsupported, el.Position(), "nested blocks are not supported")
		}
	}
	return decls, calls, nil
}

// referencedOutsideBlock reports whether name is referenced by any
// expression of the workflow outside the given block node. Generated
// declarations with no outside references stay local to the block.
func (w *workflowCompiler) referencedOutsideBlock(skip wdl.Element, name string) bool {
	var exprs []wdl.Expr
	var walk func(elems []wdl.Element)
	walk = func(elems []wdl.Element) {
		for _, el := range elems {
			if el == skip {
				continue
			}
			switch v := el.(type) {
			case *wdl.Decl:
				if v.Expr != nil {
					exprs = append(exprs, *v.Expr)
				}
			case *wdl.Call:
				for _, in := range v.Inputs {
					exprs = append(exprs, in.Expr)
				}
			case *wdl.Scatter:
				exprs = append(exprs, v.Collection)
				walk(v.Body)
			case *wdl.If:
				exprs = append(exprs, v.Cond)
				walk(v.Body)
			}
		}
	}
	walk(w.wf.Elements)
	for _, o := range w.wf.Outputs {
		exprs = append(exprs, o.Expr)
	}

	for _, expr := range exprs {
		chains, idents := referencedNames(expr)
		for _, id := range idents {
			if id == name {
				return true
			}
		}
		for _, ch := range chains {
			if ch == name || len(ch) > len(name) && ch[:len(name)] == name && ch[len(name)] == '.' {
				return true
			}
		}
	}
	return false
}

// blockFragment builds the embedded source of a scatter or conditional
// applet: stub tasks for every callee, renamed input declarations,
// renamed preceding declarations and the transformed block.
func (w *workflowCompiler) blockFragment(stageName string, mode blockMode, inputs, renameVars []CVar, pre []*wdl.Decl, header wdl.Expr, scatterVar string, innerDecls []*wdl.Decl, calls []*wdl.Call, targets map[string]*Applet, extraMappings map[*wdl.Call][]wdl.CallInput) string {
	frag := &wdl.Namespace{}

	seen := make(map[string]bool, len(targets))
	for _, call := range calls {
		if seen[call.Task] {
			continue
		}
		seen[call.Task] = true
		frag.Tasks = append(frag.Tasks, stubTask(targets[call.Task]))
	}

	var elems []wdl.Element
	for _, in := range inputs {
		elems = append(elems, &wdl.Decl{Name: in.DXVarName, Type: in.Type})
	}
	for _, d := range pre {
		elems = append(elems, renameDecl(d, renameVars))
	}

	var body []wdl.Element
	for _, d := range innerDecls {
		body = append(body, renameDecl(d, renameVars))
	}
	for _, call := range calls {
		cp := &wdl.Call{Task: call.Task, Alias: call.Alias}
		for _, in := range call.Inputs {
			cp.Inputs = append(cp.Inputs, wdl.CallInput{Name: in.Name, Expr: renameFreeVars(in.Expr, renameVars)})
		}
		cp.Inputs = append(cp.Inputs, extraMappings[call]...)
		body = append(body, cp)
	}

	if mode == modeScatter {
		elems = append(elems, &wdl.Scatter{
			Var:        scatterVar,
			Collection: renameFreeVars(header, renameVars),
			Body:       body,
		})
	} else {
		elems = append(elems, &wdl.If{
			Cond: renameFreeVars(header, renameVars),
			Body: body,
		})
	}

	frag.Workflow = &wdl.Workflow{Name: stageName, Elements: elems}
	return wdl.PrintDocument(frag)
}

// stubTask reduces a callee to its interface: input and output
// declarations without command or runtime, so the fragment references
// the callee without re-including its body.
func stubTask(applet *Applet) *wdl.Task {
	t := &wdl.Task{Name: applet.Name}
	for _, in := range applet.Inputs {
		t.Decls = append(t.Decls, &wdl.Decl{Name: in.Name, Type: in.Type})
	}
	for _, out := range applet.Outputs {
		t.Outputs = append(t.Outputs, &wdl.Decl{Name: out.Name, Type: out.Type})
	}
	return t
}

// renameDecl copies a declaration with its expression rewritten to the
// sanitized closure names.
func renameDecl(d *wdl.Decl, vars []CVar) *wdl.Decl {
	cp := &wdl.Decl{Name: d.Name, Type: d.Type, Pos: d.Pos}
	if d.Expr != nil {
		renamed := renameFreeVars(*d.Expr, vars)
		cp.Expr = &renamed
	}
	return cp
}
