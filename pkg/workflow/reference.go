package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrUnresolvedReference is returned when a reference is used whose producing
// task never ran, for example a task defined only inside a branch that was
// not taken.
var ErrUnresolvedReference = errors.New("unresolved reference")

// Reference is a placeholder for a value that exists only at execution time:
// a task output, a workflow input, or a loop item. References can be passed
// as task arguments, used in conditions, looped over and returned.
type Reference struct {
	wf   *Workflow
	node string // producing node ID; "" for inputs and loop items
	kind refKind
	name string // task name, input key, or loop name

	path []accessor
}

type refKind int

const (
	refTask refKind = iota
	refInput
	refLoopItem
)

type accessor struct {
	field string
	index int
	isIdx bool
}

// Field narrows the reference to a struct field or map key of the resolved
// value.
func (r *Reference) Field(name string) *Reference {
	return r.extend(accessor{field: name})
}

// Index narrows the reference to an element of the resolved slice or array.
func (r *Reference) Index(i int) *Reference {
	return r.extend(accessor{index: i, isIdx: true})
}

func (r *Reference) extend(a accessor) *Reference {
	nr := *r
	nr.path = append(append([]accessor(nil), r.path...), a)
	return &nr
}

// LoopName returns the loop a loop-item reference belongs to, or "" for
// other reference kinds.
func (r *Reference) LoopName() string {
	if r.kind == refLoopItem {
		return r.name
	}
	return ""
}

// String names the reference the way graph renderings and errors show it.
func (r *Reference) String() string {
	var b strings.Builder
	switch r.kind {
	case refInput:
		fmt.Fprintf(&b, "input[%s]", r.name)
	case refLoopItem:
		fmt.Fprintf(&b, "item[%s]", r.name)
	default:
		fmt.Fprintf(&b, "result[%s]", r.name)
	}
	for _, a := range r.path {
		if a.isIdx {
			fmt.Fprintf(&b, "[%d]", a.index)
		} else {
			fmt.Fprintf(&b, ".%s", a.field)
		}
	}
	return b.String()
}

// descend applies the accessor path to a resolved root value.
func (r *Reference) descend(root any) (any, error) {
	v := root
	for _, a := range r.path {
		next, err := access(v, a)
		if err != nil {
			return nil, fmt.Errorf("workflow: resolving %s: %w", r.String(), err)
		}
		v = next
	}
	return v, nil
}

func access(v any, a accessor) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot access %s of nil", a.label())
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot access %s of nil", a.label())
		}
		rv = rv.Elem()
	}

	if a.isIdx {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			if a.index < 0 || a.index >= rv.Len() {
				return nil, fmt.Errorf("index %d out of range (len %d)", a.index, rv.Len())
			}
			return rv.Index(a.index).Interface(), nil
		default:
			return nil, fmt.Errorf("cannot index a %s", rv.Kind())
		}
	}

	switch rv.Kind() {
	case reflect.Map:
		mv := rv.MapIndex(reflect.ValueOf(a.field))
		if !mv.IsValid() {
			return nil, fmt.Errorf("no key %q", a.field)
		}
		return mv.Interface(), nil
	case reflect.Struct:
		fv := rv.FieldByName(a.field)
		if !fv.IsValid() {
			return nil, fmt.Errorf("no field %q on %s", a.field, rv.Type())
		}
		return fv.Interface(), nil
	default:
		return nil, fmt.Errorf("cannot access field %q of a %s", a.field, rv.Kind())
	}
}

func (a accessor) label() string {
	if a.isIdx {
		return fmt.Sprintf("index %d", a.index)
	}
	return fmt.Sprintf("field %q", a.field)
}
