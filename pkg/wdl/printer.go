package wdl

import (
	"fmt"
	"strconv"
	"strings"
)

// PrintDocument renders a namespace as WDL source. The output parses
// back to an equivalent namespace; generated applet fragments rely on
// this round trip.
func PrintDocument(ns *Namespace) string {
	var b strings.Builder
	for i, task := range ns.Tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		printTask(&b, task)
	}
	if ns.Workflow != nil {
		if len(ns.Tasks) > 0 {
			b.WriteString("\n")
		}
		printWorkflow(&b, ns.Workflow)
	}
	return b.String()
}

// PrintTask renders a single task.
func PrintTask(t *Task) string {
	var b strings.Builder
	printTask(&b, t)
	return b.String()
}

// PrintWorkflow renders a single workflow.
func PrintWorkflow(w *Workflow) string {
	var b strings.Builder
	printWorkflow(&b, w)
	return b.String()
}

func printTask(b *strings.Builder, t *Task) {
	fmt.Fprintf(b, "task %s {\n", t.Name)
	for _, d := range t.Decls {
		printDecl(b, d, 1)
	}
	if cmd := strings.TrimSpace(t.Command); cmd != "" {
		b.WriteString("  command <<<\n")
		b.WriteString(cmd)
		b.WriteString("\n  >>>\n")
	}
	if len(t.Runtime) > 0 {
		b.WriteString("  runtime {\n")
		for _, ra := range t.Runtime {
			fmt.Fprintf(b, "    %s: %s\n", ra.Key, ra.Expr.Text)
		}
		b.WriteString("  }\n")
	}
	if len(t.Outputs) > 0 {
		b.WriteString("  output {\n")
		for _, d := range t.Outputs {
			printDecl(b, d, 2)
		}
		b.WriteString("  }\n")
	}
	if len(t.Meta) > 0 {
		b.WriteString("  meta {\n")
		for _, ma := range t.Meta {
			fmt.Fprintf(b, "    %s: %s\n", ma.Key, strconv.Quote(ma.Value))
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n")
}

func printWorkflow(b *strings.Builder, w *Workflow) {
	fmt.Fprintf(b, "workflow %s {\n", w.Name)
	printElements(b, w.Elements, 1)
	if w.HasOutputSection {
		b.WriteString("  output {\n")
		for _, o := range w.Outputs {
			fmt.Fprintf(b, "    %s\n", o.Expr.Text)
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n")
}

func printElements(b *strings.Builder, elems []Element, depth int) {
	for _, el := range elems {
		switch v := el.(type) {
		case *Decl:
			printDecl(b, v, depth)
		case *Call:
			printCall(b, v, depth)
		case *Scatter:
			ind := indent(depth)
			fmt.Fprintf(b, "%sscatter (%s in %s) {\n", ind, v.Var, v.Collection.Text)
			printElements(b, v.Body, depth+1)
			fmt.Fprintf(b, "%s}\n", ind)
		case *If:
			ind := indent(depth)
			fmt.Fprintf(b, "%sif (%s) {\n", ind, v.Cond.Text)
			printElements(b, v.Body, depth+1)
			fmt.Fprintf(b, "%s}\n", ind)
		}
	}
}

func printDecl(b *strings.Builder, d *Decl, depth int) {
	if d.Expr != nil {
		fmt.Fprintf(b, "%s%s %s = %s\n", indent(depth), d.Type, d.Name, d.Expr.Text)
	} else {
		fmt.Fprintf(b, "%s%s %s\n", indent(depth), d.Type, d.Name)
	}
}

func printCall(b *strings.Builder, c *Call, depth int) {
	ind := indent(depth)
	head := ind + "call " + c.Task
	if c.Alias != "" {
		head += " as " + c.Alias
	}
	if len(c.Inputs) == 0 {
		b.WriteString(head + "\n")
		return
	}
	parts := make([]string, len(c.Inputs))
	for i, in := range c.Inputs {
		parts[i] = in.Name + " = " + in.Expr.Text
	}
	fmt.Fprintf(b, "%s { input: %s }\n", head, strings.Join(parts, ", "))
}

func indent(depth int) string { return strings.Repeat("  ", depth) }
