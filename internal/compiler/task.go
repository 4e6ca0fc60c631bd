package compiler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/me/dxwdl/internal/dx"
	"github.com/me/dxwdl/pkg/wdl"
)

// compileTask lowers a task to an applet. Task declarations become
// applet inputs when they are unassigned, assigned to a constant (the
// constant becomes the default), or optionally typed; the rest stay
// internal. Outputs are the task's output declarations verbatim.
func (c *Compiler) compileTask(ctx context.Context, task *wdl.Task) (*Applet, error) {
	var inputs []CVar
	for _, d := range task.Decls {
		switch {
		case d.Expr == nil:
			inputs = append(inputs, NewCVar(d.Name, d.Type))
		default:
			if v, ok := tryConstEval(*d.Expr); ok {
				cv := NewCVar(d.Name, d.Type)
				cv.Attrs.Default = &v
				inputs = append(inputs, cv)
			} else if wdl.IsOptional(d.Type) {
				inputs = append(inputs, NewCVar(d.Name, d.Type))
			}
		}
	}

	outputs := make([]CVar, 0, len(task.Outputs))
	for _, d := range task.Outputs {
		outputs = append(outputs, NewCVar(d.Name, d.Type))
	}

	instance := c.taskInstanceType(task)

	docker, task, err := c.taskDocker(ctx, task)
	if err != nil {
		return nil, err
	}

	kind, err := taskKind(task)
	if err != nil {
		return nil, err
	}

	return NewApplet(task.Name, inputs, outputs, instance, docker, kind, wdl.PrintTask(task))
}

// taskInstanceType evaluates the memory, disks, cpu and
// dx_instance_type runtime attributes against an empty environment.
// The result is concrete only when all four fold to constants (absence
// included); a single failure defers the decision to job-start time,
// even when an explicit instance name is itself constant.
func (c *Compiler) taskInstanceType(task *wdl.Task) InstanceType {
	var explicit string
	if expr, ok := task.RuntimeAttr("dx_instance_type"); ok {
		v, ok := tryConstEval(expr)
		if !ok {
			return InstanceRuntime{}
		}
		name, ok := v.Raw.(string)
		if !ok {
			return InstanceRuntime{}
		}
		explicit = name
	}

	var memMiB, diskGiB int64
	var cpus int

	if expr, ok := task.RuntimeAttr("memory"); ok {
		v, ok := tryConstEval(expr)
		if !ok {
			return InstanceRuntime{}
		}
		switch raw := v.Raw.(type) {
		case string:
			mib, err := dx.ParseMemory(raw)
			if err != nil {
				return InstanceRuntime{}
			}
			memMiB = mib
		case int64:
			memMiB = raw / (1 << 20)
		default:
			return InstanceRuntime{}
		}
	}

	if expr, ok := task.RuntimeAttr("disks"); ok {
		v, ok := tryConstEval(expr)
		if !ok {
			return InstanceRuntime{}
		}
		gib, err := parseDisks(v)
		if err != nil {
			return InstanceRuntime{}
		}
		diskGiB = gib
	}

	if expr, ok := task.RuntimeAttr("cpu"); ok {
		v, ok := tryConstEval(expr)
		if !ok {
			return InstanceRuntime{}
		}
		switch raw := v.Raw.(type) {
		case int64:
			cpus = int(raw)
		case float64:
			cpus = int(raw)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return InstanceRuntime{}
			}
			cpus = n
		default:
			return InstanceRuntime{}
		}
	}

	if explicit != "" {
		return InstanceConcrete{Name: explicit}
	}

	name, err := dx.ChooseInstanceType(memMiB, diskGiB, cpus)
	if err != nil {
		c.logger.Warn("no instance type satisfies task constraints, deferring to runtime",
			"task", task.Name, "error", err)
		return InstanceRuntime{}
	}
	return InstanceConcrete{Name: name}
}

// parseDisks extracts the gibibyte count from a disks runtime value,
// e.g. "local-disk 40 SSD" or a bare integer.
func parseDisks(v wdl.Value) (int64, error) {
	switch raw := v.Raw.(type) {
	case int64:
		return raw, nil
	case string:
		for _, field := range strings.Fields(raw) {
			if n, err := strconv.ParseInt(field, 10, 64); err == nil {
				return n, nil
			}
		}
		return 0, fmt.Errorf("no size in disks value %q", raw)
	default:
		return 0, fmt.Errorf("unsupported disks value %s", v)
	}
}

// taskDocker resolves the docker runtime attribute. Platform URLs are
// resolved to record ids at compile time, and the attribute in the
// embedded fragment is rewritten to the record id so execution does not
// repeat the lookup.
func (c *Compiler) taskDocker(ctx context.Context, task *wdl.Task) (DockerImage, *wdl.Task, error) {
	expr, ok := task.RuntimeAttr("docker")
	if !ok {
		return DockerNone{}, task, nil
	}
	v, ok := tryConstEval(expr)
	if !ok {
		return DockerNetwork{Image: expr.Text}, task, nil
	}
	image, ok := v.Raw.(string)
	if !ok {
		return nil, nil, errf(ErrUnsupported, expr.Pos, "task %s: docker attribute is not a string: %s", task.Name, v)
	}
	switch {
	case strings.HasPrefix(image, "record-"):
		return DockerAsset{RecordID: image}, task, nil
	case dx.IsPlatformURL(image):
		recordID, err := c.resolver.ResolveURL(ctx, image)
		if err != nil {
			return nil, nil, fmt.Errorf("task %s: resolve docker image %s: %w", task.Name, image, err)
		}
		rewritten := task.SetRuntimeAttr("docker", strconv.Quote(recordID))
		return DockerAsset{RecordID: recordID}, rewritten, nil
	default:
		return DockerNetwork{Image: image}, task, nil
	}
}

// taskKind distinguishes native applet wrappers (meta type = "native",
// id = applet id) from ordinary tasks.
func taskKind(task *wdl.Task) (AppletKind, error) {
	typ, ok := task.MetaValue("type")
	if !ok || typ != "native" {
		return KindTask{}, nil
	}
	id, ok := task.MetaValue("id")
	if !ok || id == "" {
		return nil, errf(ErrUnsupported, task.Pos, "task %s: native task without an id", task.Name)
	}
	return KindNative{ID: id}, nil
}
