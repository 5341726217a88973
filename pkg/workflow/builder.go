package workflow

import (
	"errors"
	"fmt"
)

// Builder constructs a workflow graph:
//
//	b := workflow.NewBuilder("calibrate")
//	amp := b.Task("measure", measureFn, b.Input("qubit"))
//	b.If(workflow.Gt(amp, 0.5), func(b *workflow.Builder) {
//	    b.Task("recalibrate", recalibrateFn, amp)
//	})
//	wf, err := b.Build()
//
// Errors are accumulated during construction and reported by Build, so call
// chains stay free of error handling.
type Builder struct {
	wf    *Workflow
	nodes *[]*Node
	root  *Builder

	nextID int
	errs   []error

	// loops tracks the loop names in scope for item references.
	loops map[string]bool
}

// NewBuilder starts a workflow with the given name.
func NewBuilder(name string) *Builder {
	wf := &Workflow{name: name}
	b := &Builder{wf: wf, nodes: &wf.nodes, loops: map[string]bool{}}
	b.root = b
	if name == "" {
		b.addErr(errors.New("workflow: name must not be empty"))
	}
	return b
}

func (b *Builder) addErr(err error) {
	b.root.errs = append(b.root.errs, err)
}

func (b *Builder) nodeID() string {
	b.root.nextID++
	return fmt.Sprintf("n%d", b.root.nextID)
}

// child creates a builder appending into a nested block. Loop scopes nest.
func (b *Builder) child(nodes *[]*Node) *Builder {
	loops := make(map[string]bool, len(b.loops))
	for k := range b.loops {
		loops[k] = true
	}
	return &Builder{wf: b.wf, nodes: nodes, root: b.root, loops: loops}
}

// Input references a key of the input map passed to Engine.Run.
func (b *Builder) Input(name string) *Reference {
	if name == "" {
		b.addErr(errors.New("workflow: input name must not be empty"))
	}
	return &Reference{wf: b.wf, kind: refInput, name: name}
}

// Task appends a task node and returns a reference to its future output.
// Args may be literals or references to earlier outputs, inputs or loop
// items.
func (b *Builder) Task(name string, fn TaskFunc, args ...any) *Reference {
	if name == "" {
		b.addErr(errors.New("workflow: task name must not be empty"))
	}
	if fn == nil {
		b.addErr(fmt.Errorf("workflow: task %q has nil function", name))
	}

	id := b.nodeID()
	var cfg taskConfig
	cleanArgs := make([]any, 0, len(args))
	for _, a := range args {
		if opt, ok := a.(TaskOption); ok {
			opt(&cfg)
			continue
		}
		b.checkRef(a, fmt.Sprintf("task %q", name))
		cleanArgs = append(cleanArgs, a)
	}

	*b.nodes = append(*b.nodes, &Node{
		ID:    id,
		Kind:  NodeTask,
		Name:  name,
		Fn:    fn,
		Args:  cleanArgs,
		Retry: cfg.retry,
	})
	return &Reference{wf: b.wf, node: id, kind: refTask, name: name}
}

// If appends a conditional. The then branch is built by body; Else on the
// returned branch adds the alternative.
func (b *Builder) If(cond *Condition, body func(b *Builder)) *IfBranch {
	if cond == nil {
		b.addErr(errors.New("workflow: nil condition"))
		cond = &Condition{desc: "<nil>", eval: func(Resolver) (bool, error) { return false, nil }}
	}
	n := &Node{ID: b.nodeID(), Kind: NodeIf, Cond: cond}
	*b.nodes = append(*b.nodes, n)
	if body != nil {
		body(b.child(&n.Then))
	}
	return &IfBranch{b: b, node: n}
}

// IfBranch allows chaining an else branch onto an If.
type IfBranch struct {
	b    *Builder
	node *Node
}

// Else adds the branch taken when the condition is false.
func (ib *IfBranch) Else(body func(b *Builder)) {
	if len(ib.node.Else) > 0 {
		ib.b.addErr(errors.New("workflow: duplicate else branch"))
		return
	}
	if body != nil {
		body(ib.b.child(&ib.node.Else))
	}
}

// For appends a loop over a slice literal or a reference resolving to one.
// body receives a reference to the current item; task references made inside
// the body resolve to the output of the latest iteration.
func (b *Builder) For(name string, over any, body func(b *Builder, item *Reference)) {
	if name == "" {
		b.addErr(errors.New("workflow: loop name must not be empty"))
	}
	if b.loops[name] {
		b.addErr(fmt.Errorf("workflow: loop name %q shadows an enclosing loop", name))
	}
	b.checkRef(over, fmt.Sprintf("loop %q", name))

	item := &Reference{wf: b.wf, kind: refLoopItem, name: name}
	n := &Node{ID: b.nodeID(), Kind: NodeFor, Over: over, Item: item}
	*b.nodes = append(*b.nodes, n)
	if body != nil {
		cb := b.child(&n.Body)
		cb.loops[name] = true
		body(cb, item)
	}
}

// Return appends a node that ends the run with the given value or resolved
// reference as the workflow output.
func (b *Builder) Return(v any) {
	b.checkRef(v, "return")
	*b.nodes = append(*b.nodes, &Node{ID: b.nodeID(), Kind: NodeReturn, Value: v})
}

// checkRef validates that a reference used as a value belongs to this
// workflow and, for loop items, that an enclosing loop defines it.
func (b *Builder) checkRef(v any, site string) {
	r, ok := v.(*Reference)
	if !ok {
		return
	}
	if r.wf != b.wf {
		b.addErr(fmt.Errorf("workflow: %s uses reference %s from another workflow", site, r))
		return
	}
	if r.kind == refLoopItem && !b.loops[r.name] {
		b.addErr(fmt.Errorf("workflow: %s uses %s outside its loop", site, r))
	}
}

// Build finalizes the graph, reporting every construction error at once.
func (b *Builder) Build() (*Workflow, error) {
	if b != b.root {
		return nil, errors.New("workflow: Build must be called on the top-level builder")
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("workflow %q: %w", b.wf.name, errors.Join(b.errs...))
	}
	if len(b.wf.nodes) == 0 {
		return nil, fmt.Errorf("workflow %q has no nodes", b.wf.name)
	}
	return b.wf, nil
}

// MustBuild is Build for static graphs known to be well-formed.
func (b *Builder) MustBuild() *Workflow {
	wf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return wf
}
