// Package compiler lowers a parsed, type-checked WDL namespace into a
// platform-executable staged workflow graph: a set of applets (leaf
// computations) and a linear pipeline of stages wiring them together.
package compiler

import (
	"fmt"
	"strings"

	"github.com/me/dxwdl/pkg/wdl"
)

// DeclAttrs carries declaration attributes attached to a variable,
// currently only an optional default literal.
type DeclAttrs struct {
	Default *wdl.Value
}

// CVar is a typed compile-time variable. Name is the source-visible
// identifier; DXVarName is the sanitized form used at the platform
// boundary, where dots are illegal.
type CVar struct {
	Name        string
	DXVarName   string
	Type        wdl.Type
	Attrs       DeclAttrs
	OriginalFQN string
}

// NewCVar builds a CVar with the sanitized platform name derived from
// the source name.
func NewCVar(name string, t wdl.Type) CVar {
	return CVar{Name: name, DXVarName: SanitizeVarName(name), Type: t}
}

// SanitizeVarName rewrites a fully qualified source name to its
// platform form: dots become underscores.
func SanitizeVarName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// SArg is a stage argument: how one stage input is satisfied.
type SArg interface {
	sarg()
	String() string
}

// SArgEmpty supplies no value; the platform provides one at runtime.
type SArgEmpty struct{}

func (SArgEmpty) sarg()          {}
func (SArgEmpty) String() string { return "empty" }

// SArgConst supplies a compile-time constant.
type SArgConst struct {
	Value wdl.Value
}

func (SArgConst) sarg()            {}
func (a SArgConst) String() string { return "const(" + a.Value.SourceString() + ")" }

// SArgLink reads Var.Name from the outputs of the named stage.
type SArgLink struct {
	Stage string
	Var   CVar
}

func (SArgLink) sarg()            {}
func (a SArgLink) String() string { return "link(" + a.Stage + "." + a.Var.Name + ")" }

// SArgWorkflowInput is supplied as a workflow-level input.
type SArgWorkflowInput struct {
	Var CVar
}

func (SArgWorkflowInput) sarg()            {}
func (a SArgWorkflowInput) String() string { return "wfinput(" + a.Var.Name + ")" }

// LinkedVar pairs a variable's declared shape with how it is satisfied
// in the current scope.
type LinkedVar struct {
	Var CVar
	Arg SArg
}

// CallEnv is the symbol table threaded through workflow assembly: a
// mapping from fully qualified source name to LinkedVar. Insertion
// order is preserved for deterministic iteration; uniqueness is
// required.
type CallEnv struct {
	keys []string
	m    map[string]LinkedVar
}

// NewCallEnv creates an empty environment.
func NewCallEnv() *CallEnv {
	return &CallEnv{m: make(map[string]LinkedVar)}
}

// Bind inserts a binding. Rebinding an existing name is an error.
func (e *CallEnv) Bind(name string, lv LinkedVar) error {
	if _, ok := e.m[name]; ok {
		return fmt.Errorf("duplicate binding for %q", name)
	}
	e.keys = append(e.keys, name)
	e.m[name] = lv
	return nil
}

// Lookup finds a binding by exact name.
func (e *CallEnv) Lookup(name string) (LinkedVar, bool) {
	lv, ok := e.m[name]
	return lv, ok
}

// TrailLookup resolves a dotted name by prefix stripping: the full name
// is tried first, then one trailing component is removed at a time. It
// returns the matched key along with the binding.
func (e *CallEnv) TrailLookup(fqn string) (string, LinkedVar, bool) {
	for name := fqn; name != ""; {
		if lv, ok := e.m[name]; ok {
			return name, lv, true
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return "", LinkedVar{}, false
}

// Names returns the bound names in insertion order.
func (e *CallEnv) Names() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Len returns the number of bindings.
func (e *CallEnv) Len() int { return len(e.keys) }

// InstanceType is the execution instance decision for an applet.
type InstanceType interface {
	instanceType()
	String() string
}

// InstanceDefault defers to the platform default.
type InstanceDefault struct{}

func (InstanceDefault) instanceType()  {}
func (InstanceDefault) String() string { return "default" }

// InstanceRuntime marks the decision as deferred to job-start time.
type InstanceRuntime struct{}

func (InstanceRuntime) instanceType()  {}
func (InstanceRuntime) String() string { return "runtime" }

// InstanceConcrete names a specific instance type.
type InstanceConcrete struct {
	Name string
}

func (InstanceConcrete) instanceType()    {}
func (i InstanceConcrete) String() string { return i.Name }

// DockerImage is the container image decision for an applet.
type DockerImage interface {
	dockerImage()
	String() string
}

// DockerNone runs without a container.
type DockerNone struct{}

func (DockerNone) dockerImage()   {}
func (DockerNone) String() string { return "none" }

// DockerNetwork pulls the image over the network at job start.
type DockerNetwork struct {
	Image string
}

func (DockerNetwork) dockerImage()     {}
func (d DockerNetwork) String() string { return "network(" + d.Image + ")" }

// DockerAsset uses a platform record resolved at compile time.
type DockerAsset struct {
	RecordID string
}

func (DockerAsset) dockerImage()     {}
func (d DockerAsset) String() string { return "asset(" + d.RecordID + ")" }

// AppletKind classifies an applet for the runtime. Scatter,
// ScatterCollect and If carry a call dictionary mapping each call's
// alias to its underlying task name.
type AppletKind interface {
	appletKind()
	KindName() string
}

type KindTask struct{}

func (KindTask) appletKind()      {}
func (KindTask) KindName() string { return "task" }

type KindNative struct {
	ID string
}

func (KindNative) appletKind()      {}
func (KindNative) KindName() string { return "native" }

type KindEval struct{}

func (KindEval) appletKind()      {}
func (KindEval) KindName() string { return "eval" }

type KindScatter struct {
	Calls map[string]string
}

func (KindScatter) appletKind()      {}
func (KindScatter) KindName() string { return "scatter" }

type KindScatterCollect struct {
	Calls map[string]string
}

func (KindScatterCollect) appletKind()      {}
func (KindScatterCollect) KindName() string { return "scatter_collect" }

type KindIf struct {
	Calls map[string]string
}

func (KindIf) appletKind()      {}
func (KindIf) KindName() string { return "if" }

type KindWorkflowOutputReorg struct{}

func (KindWorkflowOutputReorg) appletKind()      {}
func (KindWorkflowOutputReorg) KindName() string { return "workflow_output_reorg" }

// BlockCalls extracts the call dictionary of a scatter, scatter-collect
// or conditional kind.
func BlockCalls(k AppletKind) (map[string]string, bool) {
	switch v := k.(type) {
	case KindScatter:
		return v.Calls, true
	case KindScatterCollect:
		return v.Calls, true
	case KindIf:
		return v.Calls, true
	}
	return nil, false
}

// Applet is a leaf IR executable. Source is a self-contained WDL
// fragment (stub callees plus the inner body) that the runtime
// re-parses; NewApplet verifies it.
type Applet struct {
	Name     string
	Inputs   []CVar
	Outputs  []CVar
	Instance InstanceType
	Docker   DockerImage
	Kind     AppletKind
	Source   string
}

// NewApplet constructs an applet, enforcing interface sanitation (no
// dots in platform names, no post-sanitization collisions) and fragment
// legality.
func NewApplet(name string, inputs, outputs []CVar, instance InstanceType, docker DockerImage, kind AppletKind, source string) (*Applet, error) {
	for _, group := range [][]CVar{inputs, outputs} {
		seen := make(map[string]string, len(group))
		for _, v := range group {
			if strings.ContainsRune(v.DXVarName, '.') {
				return nil, fmt.Errorf("applet %s: platform name %q contains a dot", name, v.DXVarName)
			}
			if prev, ok := seen[v.DXVarName]; ok && prev != v.Name {
				return nil, fmt.Errorf("applet %s: %q and %q collide after sanitization (%s)", name, prev, v.Name, v.DXVarName)
			}
			seen[v.DXVarName] = v.Name
		}
	}
	if err := wdl.CheckSource(source); err != nil {
		return nil, &Error{
			Code: ErrBadFragment,
			Msg:  fmt.Sprintf("applet %s: generated fragment does not parse: %v\n%s", name, err, source),
		}
	}
	return &Applet{
		Name:     name,
		Inputs:   inputs,
		Outputs:  outputs,
		Instance: instance,
		Docker:   docker,
		Kind:     kind,
		Source:   source,
	}, nil
}

// Input returns the input CVar with the given source name.
func (a *Applet) Input(name string) (CVar, bool) {
	for _, v := range a.Inputs {
		if v.Name == name {
			return v, true
		}
	}
	return CVar{}, false
}

// Stage is a node of the workflow backbone bound to an applet. Inputs
// are positionally aligned with the applet's inputs; Outputs are a copy
// of the applet's outputs.
type Stage struct {
	Name       string
	ID         string
	AppletName string
	Inputs     []SArg
	Outputs    []CVar
}

// Workflow is the IR backbone.
type Workflow struct {
	Name    string
	Inputs  []LinkedVar
	Outputs []LinkedVar
	Stages  []*Stage
	Locked  bool
}

// Stage returns the stage with the given name, or nil.
func (w *Workflow) Stage(name string) *Stage {
	for _, s := range w.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Namespace is the compilation result: an optional workflow plus all
// applets by name. Applets reference each other only by name; the
// structure is acyclic and fully owned by the caller.
type Namespace struct {
	Workflow *Workflow
	Applets  map[string]*Applet
}

// Reserved names and tokens honored in generated identifiers.
const (
	// CommonStageName is the synthetic inputs stage of an unlocked
	// workflow.
	CommonStageName = "common"
	// OutputStageName is the terminal output-section stage; its applet
	// name carries the OutputAppletSuffix.
	OutputStageName    = "outputs"
	OutputAppletSuffix = "outputs"
	// ReorgStageName is the reorganization stage.
	ReorgStageName = "reorg"
	// LastStageID is the fixed id of the output-section stage.
	LastStageID = "stage-last"
	// ReservedSubstring may not occur in user call names.
	ReservedSubstring = "___"
)

// ReservedCallPrefixes are applet-name prefixes user call aliases must
// not use.
var ReservedCallPrefixes = []string{"eval", "scatter", "if_", CommonStageName, ReorgStageName, OutputStageName}

// CheckCallName validates a user-visible stage name against the
// reserved vocabulary.
func CheckCallName(name string) error {
	if name == LastStageID {
		return fmt.Errorf("call name %q equals the reserved last-stage marker", name)
	}
	if strings.Contains(name, ReservedSubstring) {
		return fmt.Errorf("call name %q contains the reserved substring %q", name, ReservedSubstring)
	}
	for _, p := range ReservedCallPrefixes {
		if strings.HasPrefix(name, p) {
			return fmt.Errorf("call name %q uses the reserved prefix %q", name, p)
		}
	}
	return nil
}
