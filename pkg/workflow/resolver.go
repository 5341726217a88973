package workflow

import "fmt"

// Resolver supplies the values references resolve against during execution:
// task outputs by node ID, workflow inputs by name, and loop items by loop
// name. A lookup returns false when no value has been produced yet.
type Resolver interface {
	TaskOutput(nodeID string) (any, bool)
	Input(name string) (any, bool)
	LoopItem(name string) (any, bool)
}

// Resolve looks the reference up and applies its field/index path. A
// reference to a task that never ran resolves to ErrUnresolvedReference.
func (r *Reference) Resolve(res Resolver) (any, error) {
	var root any
	var ok bool
	switch r.kind {
	case refInput:
		root, ok = res.Input(r.name)
		if !ok {
			return nil, fmt.Errorf("workflow: %s: no such input: %w", r, ErrUnresolvedReference)
		}
	case refLoopItem:
		root, ok = res.LoopItem(r.name)
		if !ok {
			return nil, fmt.Errorf("workflow: %s used outside its loop: %w", r, ErrUnresolvedReference)
		}
	default:
		root, ok = res.TaskOutput(r.node)
		if !ok {
			return nil, fmt.Errorf("workflow: %s: task %q never ran: %w", r, r.name, ErrUnresolvedReference)
		}
	}
	return r.descend(root)
}

// ResolveValue passes literals through and resolves references.
func ResolveValue(v any, res Resolver) (any, error) {
	if r, ok := v.(*Reference); ok {
		return r.Resolve(res)
	}
	return v, nil
}
