// Package workflow is a task-graph DSL: named tasks wired by references to
// not-yet-computed results, with conditionals and loops, compiled into an
// inspectable graph and executed by an engine.
package workflow

import (
	"fmt"
	"strings"
)

// NodeKind discriminates the node types of a workflow graph.
type NodeKind string

const (
	NodeTask   NodeKind = "task"
	NodeIf     NodeKind = "if"
	NodeFor    NodeKind = "for"
	NodeReturn NodeKind = "return"
)

// Node is one element of a workflow graph. Only the fields matching Kind are
// set; the engine and graph rendering read them directly.
type Node struct {
	ID   string
	Kind NodeKind

	// Task fields.
	Name  string
	Fn    TaskFunc `json:"-"`
	Args  []any
	Retry *RetryPolicy

	// If fields.
	Cond *Condition
	Then []*Node
	Else []*Node

	// For fields. Over is a slice literal or a *Reference to one; Item is
	// the loop variable bound per iteration.
	Over any
	Item *Reference
	Body []*Node

	// Return field: a literal or a *Reference.
	Value any
}

// Workflow is an immutable task graph produced by a Builder.
type Workflow struct {
	name  string
	nodes []*Node
}

// Name returns the workflow name used for registration.
func (w *Workflow) Name() string { return w.name }

// Graph exposes the node structure for inspection.
func (w *Workflow) Graph() *Graph { return &Graph{wf: w} }

// Graph is a read-only view of a workflow's structure.
type Graph struct {
	wf *Workflow
}

// Nodes returns the top-level nodes in definition order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.wf.nodes...)
}

// TaskNames returns every task name in the graph, in definition order,
// including tasks nested in branches and loops.
func (g *Graph) TaskNames() []string {
	var names []string
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.Kind == NodeTask {
				names = append(names, n.Name)
			}
			walk(n.Then)
			walk(n.Else)
			walk(n.Body)
		}
	}
	walk(g.wf.nodes)
	return names
}

// Tree renders the nested task/branch/loop structure as an indented listing.
func (g *Graph) Tree() string {
	var b strings.Builder
	fmt.Fprintf(&b, "workflow %s\n", g.wf.name)
	renderNodes(&b, g.wf.nodes, 1)
	return b.String()
}

func renderNodes(b *strings.Builder, nodes []*Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch n.Kind {
		case NodeTask:
			fmt.Fprintf(b, "%stask %s(%s)\n", indent, n.Name, renderArgs(n.Args))
		case NodeIf:
			fmt.Fprintf(b, "%sif %s\n", indent, n.Cond.Description())
			renderNodes(b, n.Then, depth+1)
			if len(n.Else) > 0 {
				fmt.Fprintf(b, "%selse\n", indent)
				renderNodes(b, n.Else, depth+1)
			}
		case NodeFor:
			fmt.Fprintf(b, "%sfor %s in %s\n", indent, n.Item.name, renderValue(n.Over))
			renderNodes(b, n.Body, depth+1)
		case NodeReturn:
			fmt.Fprintf(b, "%sreturn %s\n", indent, renderValue(n.Value))
		}
	}
}

func renderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = renderValue(a)
	}
	return strings.Join(parts, ", ")
}

func renderValue(v any) string {
	if r, ok := v.(*Reference); ok {
		return r.String()
	}
	return fmt.Sprintf("%v", v)
}
