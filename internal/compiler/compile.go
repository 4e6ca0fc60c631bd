package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/me/dxwdl/internal/dx"
	"github.com/me/dxwdl/pkg/wdl"
)

// Options control a compilation.
type Options struct {
	// Locked makes the primary workflow's inputs and outputs its only
	// externally addressable surface.
	Locked bool
	// Reorg appends a reorganization stage that archives non-final
	// outputs at execution time.
	Reorg bool
}

// Compiler lowers WDL namespaces. It is safe for concurrent use: all
// per-compilation state lives in the compilation itself.
type Compiler struct {
	logger   *slog.Logger
	resolver dx.Resolver
	opts     Options
}

// New creates a Compiler.
func New(logger *slog.Logger, resolver dx.Resolver, opts Options) *Compiler {
	return &Compiler{
		logger:   logger.With("component", "compiler"),
		resolver: resolver,
		opts:     opts,
	}
}

// Compile lowers a namespace to its IR. The pass is synchronous and
// deterministic; on error no partial namespace is returned.
func (c *Compiler) Compile(ctx context.Context, ns *wdl.Namespace) (*Namespace, error) {
	order, err := sortCallables(ns)
	if err != nil {
		return nil, err
	}

	applets := make(map[string]*Applet, len(ns.Tasks))
	for _, name := range order {
		task := ns.Task(name)
		if task == nil {
			continue // the workflow, compiled below
		}
		applet, err := c.compileTask(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		if _, ok := applets[applet.Name]; ok {
			return nil, errf(ErrIllegalCallName, task.Pos, "duplicate task name %q", name)
		}
		applets[applet.Name] = applet
		c.logger.Debug("compiled task", "task", name, "instance", applet.Instance.String(), "kind", applet.Kind.KindName())
	}

	out := &Namespace{Applets: applets}
	if ns.Workflow != nil {
		wf, err := c.simplifyWorkflow(ns.Workflow, applets)
		if err != nil {
			return nil, err
		}
		irwf, err := c.compileWorkflow(wf, c.opts.Locked, applets)
		if err != nil {
			return nil, err
		}
		out.Workflow = irwf
		c.logger.Info("compiled workflow", "workflow", irwf.Name, "stages", len(irwf.Stages), "applets", len(applets), "locked", irwf.Locked)
	}
	return out, nil
}

// sortCallables orders the namespace's callables dependency-first:
// tasks (which have no dependencies) before the workflow that calls
// them. Kahn's algorithm; a cycle is fatal.
func sortCallables(ns *wdl.Namespace) ([]string, error) {
	nodes := make([]string, 0, len(ns.Tasks)+1)
	for _, t := range ns.Tasks {
		nodes = append(nodes, t.Name)
	}
	if ns.Workflow != nil {
		nodes = append(nodes, ns.Workflow.Name)
	}

	// deps[A] = callables A calls; forward edges run callee -> caller.
	deps := make(map[string][]string)
	inDegree := make(map[string]int, len(nodes))
	forward := make(map[string][]string)
	for _, n := range nodes {
		inDegree[n] = 0
	}
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n] = true
	}
	if wf := ns.Workflow; wf != nil {
		seen := make(map[string]bool)
		for _, call := range wf.Calls() {
			if seen[call.Task] || !known[call.Task] {
				// Unknown targets are reported by call lowering.
				continue
			}
			seen[call.Task] = true
			deps[wf.Name] = append(deps[wf.Name], call.Task)
			forward[call.Task] = append(forward[call.Task], wf.Name)
			inDegree[wf.Name]++
		}
	}

	ready := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range forward[n] {
			inDegree[m]--
			if inDegree[m] == 0 {
				ready = append(ready, m)
			}
		}
		sort.Strings(ready)
	}
	if len(order) != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if inDegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, errf(ErrCycle, wdl.Pos{}, "callable dependency cycle involving %v", stuck)
	}
	return order, nil
}
