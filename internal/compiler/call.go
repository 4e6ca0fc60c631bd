package compiler

import (
	"github.com/me/dxwdl/pkg/wdl"
)

// compileCall lowers a top-level call to a stage bound to the callee's
// applet. The stage name is the call alias when present, otherwise the
// task name; reserved vocabulary is rejected.
func (w *workflowCompiler) compileCall(call *wdl.Call) (*Stage, error) {
	name := call.Name()
	if err := CheckCallName(name); err != nil {
		return nil, errf(ErrIllegalCallName, call.Pos, "%v", err)
	}

	applet, ok := w.applets[call.Task]
	if !ok {
		if w.wf != nil && call.Task == w.wf.Name {
			return nil, errf(ErrUnsupported, call.Pos, "call %s: calling a workflow is not supported", name)
		}
		return nil, errf(ErrUnresolvedCall, call.Pos, "call %s: no task named %q", name, call.Task)
	}

	inputs := make([]SArg, 0, len(applet.Inputs))
	for _, formal := range applet.Inputs {
		arg, err := w.callArg(call, formal)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, arg)
	}

	outputs := make([]CVar, len(applet.Outputs))
	copy(outputs, applet.Outputs)

	return &Stage{
		Name:       name,
		ID:         w.nextStageID(),
		AppletName: applet.Name,
		Inputs:     inputs,
		Outputs:    outputs,
	}, nil
}

// callArg satisfies one formal input of a call from its input mappings
// and the environment.
func (w *workflowCompiler) callArg(call *wdl.Call, formal CVar) (SArg, error) {
	expr, ok := call.Input(formal.Name)
	if !ok {
		if wdl.IsOptional(formal.Type) || formal.Attrs.Default != nil {
			return SArgEmpty{}, nil
		}
		if w.locked {
			return nil, errf(ErrMissingCallInput, call.Pos,
				"call %s: required input %q is not supplied", call.Name(), formal.Name)
		}
		w.c.logger.Warn("required call input not supplied; it becomes a workflow-level input",
			"workflow", w.wf.Name, "call", call.Name(), "input", formal.Name)
		return SArgEmpty{}, nil
	}

	if ident, ok := isBareIdent(expr); ok {
		lv, found := w.env.Lookup(ident)
		if !found {
			return nil, errf(ErrUndefinedSymbol, expr.Pos,
				"call %s: input %q references undefined %q", call.Name(), formal.Name, ident)
		}
		return lv.Arg, nil
	}

	if fqn, ok := isBareChain(expr); ok {
		_, lv, found := w.env.TrailLookup(fqn)
		if !found {
			return nil, errf(ErrUndefinedSymbol, expr.Pos,
				"call %s: input %q references undefined %q", call.Name(), formal.Name, fqn)
		}
		return lv.Arg, nil
	}

	if v, ok := tryConstEval(expr); ok {
		return SArgConst{Value: v}, nil
	}

	return nil, errf(ErrUnsupported, expr.Pos,
		"call %s: input %q is a non-constant expression; it must be lifted into a declaration", call.Name(), formal.Name)
}
