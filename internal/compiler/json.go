package compiler

import (
	"encoding/json"
	"sort"

	"github.com/me/dxwdl/pkg/wdl"
)

// JSON serialization of the IR for submission tooling. Applets are
// emitted sorted by name so output is deterministic.

func (n *Namespace) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(n.Applets))
	for name := range n.Applets {
		names = append(names, name)
	}
	sort.Strings(names)
	applets := make([]*Applet, 0, len(names))
	for _, name := range names {
		applets = append(applets, n.Applets[name])
	}
	return json.Marshal(struct {
		Workflow *Workflow `json:"workflow,omitempty"`
		Applets  []*Applet `json:"applets"`
	}{Workflow: n.Workflow, Applets: applets})
}

func (a *Applet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string `json:"name"`
		Inputs   []any  `json:"inputs"`
		Outputs  []any  `json:"outputs"`
		Instance string `json:"instanceType"`
		Docker   any    `json:"docker"`
		Kind     any    `json:"kind"`
		Source   string `json:"source"`
	}{
		Name:     a.Name,
		Inputs:   cvarsJSON(a.Inputs),
		Outputs:  cvarsJSON(a.Outputs),
		Instance: a.Instance.String(),
		Docker:   dockerJSON(a.Docker),
		Kind:     kindJSON(a.Kind),
		Source:   a.Source,
	})
}

func (s *Stage) MarshalJSON() ([]byte, error) {
	inputs := make([]any, len(s.Inputs))
	for i, arg := range s.Inputs {
		inputs[i] = sargJSON(arg)
	}
	return json.Marshal(struct {
		Name    string `json:"name"`
		ID      string `json:"id"`
		Applet  string `json:"applet"`
		Inputs  []any  `json:"inputs"`
		Outputs []any  `json:"outputs"`
	}{Name: s.Name, ID: s.ID, Applet: s.AppletName, Inputs: inputs, Outputs: cvarsJSON(s.Outputs)})
}

func (w *Workflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string   `json:"name"`
		Locked  bool     `json:"locked"`
		Inputs  []any    `json:"inputs"`
		Outputs []any    `json:"outputs"`
		Stages  []*Stage `json:"stages"`
	}{Name: w.Name, Locked: w.Locked, Inputs: linkedJSON(w.Inputs), Outputs: linkedJSON(w.Outputs), Stages: w.Stages})
}

func cvarsJSON(vars []CVar) []any {
	out := make([]any, len(vars))
	for i, v := range vars {
		out[i] = cvarJSON(v)
	}
	return out
}

func cvarJSON(v CVar) any {
	m := map[string]any{
		"name":   v.Name,
		"dxName": v.DXVarName,
		"type":   v.Type.String(),
	}
	if v.Attrs.Default != nil {
		m["default"] = valueJSON(*v.Attrs.Default)
	}
	if v.OriginalFQN != "" {
		m["originalFqn"] = v.OriginalFQN
	}
	return m
}

func linkedJSON(lvs []LinkedVar) []any {
	out := make([]any, len(lvs))
	for i, lv := range lvs {
		out[i] = map[string]any{"var": cvarJSON(lv.Var), "arg": sargJSON(lv.Arg)}
	}
	return out
}

func sargJSON(arg SArg) any {
	switch v := arg.(type) {
	case SArgEmpty:
		return map[string]any{"kind": "empty"}
	case SArgConst:
		return map[string]any{"kind": "const", "value": valueJSON(v.Value)}
	case SArgLink:
		return map[string]any{"kind": "link", "stage": v.Stage, "var": v.Var.Name}
	case SArgWorkflowInput:
		return map[string]any{"kind": "workflow_input", "var": v.Var.Name}
	default:
		return map[string]any{"kind": "unknown"}
	}
}

func valueJSON(v wdl.Value) any {
	switch raw := v.Raw.(type) {
	case []wdl.Value:
		items := make([]any, len(raw))
		for i, item := range raw {
			items[i] = valueJSON(item)
		}
		return items
	default:
		return raw
	}
}

func dockerJSON(d DockerImage) any {
	switch v := d.(type) {
	case DockerNone:
		return map[string]any{"kind": "none"}
	case DockerNetwork:
		return map[string]any{"kind": "network", "image": v.Image}
	case DockerAsset:
		return map[string]any{"kind": "asset", "recordId": v.RecordID}
	default:
		return map[string]any{"kind": "unknown"}
	}
}

func kindJSON(k AppletKind) any {
	m := map[string]any{"kind": k.KindName()}
	if v, ok := k.(KindNative); ok {
		m["id"] = v.ID
	}
	if calls, ok := BlockCalls(k); ok {
		m["calls"] = calls
	}
	return m
}
