package wdl

import (
	"fmt"
	"strings"
)

// Pos is a position in a source document, 1-based.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Expr is an expression held as source text. The compiler treats
// expressions as opaque except for identifier scanning (ScanExpr) and
// constant folding, which the evaluator performs on the text form.
type Expr struct {
	Text string
	Pos  Pos
}

// Empty reports whether the expression is absent.
func (e Expr) Empty() bool { return strings.TrimSpace(e.Text) == "" }

func (e Expr) String() string { return e.Text }

// Element is a node of a workflow (or block) body: *Decl, *Call,
// *Scatter or *If.
type Element interface {
	Position() Pos
	element()
}

// Decl is a typed declaration, optionally with an initializer.
type Decl struct {
	Name string
	Type Type
	Expr *Expr
	Pos  Pos
}

func (d *Decl) Position() Pos { return d.Pos }
func (d *Decl) element()      {}

// CallInput is one `name = expr` entry of a call's input mapping.
type CallInput struct {
	Name string
	Expr Expr
}

// Call invokes a task, optionally under an alias.
type Call struct {
	Task   string
	Alias  string
	Inputs []CallInput
	Pos    Pos
}

func (c *Call) Position() Pos { return c.Pos }
func (c *Call) element()      {}

// Name is the name the call is addressed by: the alias when present,
// the task name otherwise.
func (c *Call) Name() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Task
}

// Input returns the input mapping for the given formal name.
func (c *Call) Input(name string) (Expr, bool) {
	for _, in := range c.Inputs {
		if in.Name == name {
			return in.Expr, true
		}
	}
	return Expr{}, false
}

// Scatter maps its body over a collection, binding Var to each item.
type Scatter struct {
	Var        string
	Collection Expr
	Body       []Element
	Pos        Pos
}

func (s *Scatter) Position() Pos { return s.Pos }
func (s *Scatter) element()      {}

// If guards its body with a condition.
type If struct {
	Cond Expr
	Body []Element
	Pos  Pos
}

func (i *If) Position() Pos { return i.Pos }
func (i *If) element()      {}

// RuntimeAttr is one entry of a task's runtime section. Order is the
// source order; printing preserves it.
type RuntimeAttr struct {
	Key  string
	Expr Expr
}

// MetaAttr is one entry of a task's meta section.
type MetaAttr struct {
	Key   string
	Value string
}

// Task is a leaf callable.
type Task struct {
	Name    string
	Decls   []*Decl
	Command string
	Runtime []RuntimeAttr
	Outputs []*Decl
	Meta    []MetaAttr
	Pos     Pos
}

// RuntimeAttr returns the runtime attribute for key, if present.
func (t *Task) RuntimeAttr(key string) (Expr, bool) {
	for _, ra := range t.Runtime {
		if ra.Key == key {
			return ra.Expr, true
		}
	}
	return Expr{}, false
}

// SetRuntimeAttr replaces (or appends) a runtime attribute, returning a
// modified copy. The receiver is not mutated.
func (t *Task) SetRuntimeAttr(key, exprText string) *Task {
	cp := *t
	cp.Runtime = make([]RuntimeAttr, len(t.Runtime))
	copy(cp.Runtime, t.Runtime)
	for i, ra := range cp.Runtime {
		if ra.Key == key {
			cp.Runtime[i].Expr = Expr{Text: exprText, Pos: ra.Expr.Pos}
			return &cp
		}
	}
	cp.Runtime = append(cp.Runtime, RuntimeAttr{Key: key, Expr: Expr{Text: exprText}})
	return &cp
}

// MetaValue returns the meta entry for key, if present.
func (t *Task) MetaValue(key string) (string, bool) {
	for _, ma := range t.Meta {
		if ma.Key == key {
			return ma.Value, true
		}
	}
	return "", false
}

// WorkflowOutput is one entry of a workflow's output section. Each
// output is an expression, usually a member access such as Add.result.
type WorkflowOutput struct {
	Expr Expr
	Pos  Pos
}

// Workflow is a directed composition of elements with an optional
// output section.
type Workflow struct {
	Name             string
	Elements         []Element
	Outputs          []WorkflowOutput
	HasOutputSection bool
	Pos              Pos
}

// Calls returns every call in the workflow body, in source order,
// descending into scatter and if blocks.
func (w *Workflow) Calls() []*Call {
	var out []*Call
	var walk func(elems []Element)
	walk = func(elems []Element) {
		for _, el := range elems {
			switch v := el.(type) {
			case *Call:
				out = append(out, v)
			case *Scatter:
				walk(v.Body)
			case *If:
				walk(v.Body)
			}
		}
	}
	walk(w.Elements)
	return out
}

// Namespace is a parsed document: tasks plus an optional workflow.
type Namespace struct {
	Tasks    []*Task
	Workflow *Workflow
}

// Task returns the task with the given name, or nil.
func (ns *Namespace) Task(name string) *Task {
	for _, t := range ns.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// GeneratedPrefix marks compiler-generated variable names. The front
// end uses it when lifting complex expressions into declarations.
const GeneratedPrefix = "gen_"

// IsGeneratedName reports whether name was introduced by the compiler
// rather than written by the user.
func IsGeneratedName(name string) bool {
	return strings.HasPrefix(name, GeneratedPrefix)
}
