package workflow

import (
	"fmt"
	"reflect"
)

// Condition guards an If node. It carries a description for graph rendering
// and an evaluation function run against resolved values.
type Condition struct {
	desc string
	eval func(res Resolver) (bool, error)
}

// Description is the text shown in graph renderings.
func (c *Condition) Description() string { return c.desc }

// Eval resolves the condition's references and evaluates it.
func (c *Condition) Eval(res Resolver) (bool, error) {
	return c.eval(res)
}

// Eq is true when the referenced value equals v.
func Eq(ref *Reference, v any) *Condition {
	return &Condition{
		desc: fmt.Sprintf("%s == %v", ref, v),
		eval: func(res Resolver) (bool, error) {
			rv, err := ref.Resolve(res)
			if err != nil {
				return false, err
			}
			return reflect.DeepEqual(rv, v), nil
		},
	}
}

// Gt is true when the referenced numeric value is greater than v.
func Gt(ref *Reference, v float64) *Condition {
	return numericCond(ref, v, ">", func(a, b float64) bool { return a > b })
}

// Lt is true when the referenced numeric value is less than v.
func Lt(ref *Reference, v float64) *Condition {
	return numericCond(ref, v, "<", func(a, b float64) bool { return a < b })
}

func numericCond(ref *Reference, v float64, op string, cmp func(a, b float64) bool) *Condition {
	return &Condition{
		desc: fmt.Sprintf("%s %s %v", ref, op, v),
		eval: func(res Resolver) (bool, error) {
			rv, err := ref.Resolve(res)
			if err != nil {
				return false, err
			}
			f, err := toFloat(rv)
			if err != nil {
				return false, fmt.Errorf("workflow: condition on %s: %w", ref, err)
			}
			return cmp(f, v), nil
		},
	}
}

// Truthy is true when the referenced value is a true bool, a non-zero
// number, or a non-empty string, slice or map.
func Truthy(ref *Reference) *Condition {
	return &Condition{
		desc: ref.String(),
		eval: func(res Resolver) (bool, error) {
			rv, err := ref.Resolve(res)
			if err != nil {
				return false, err
			}
			return truthy(rv), nil
		},
	}
}

// CondFunc builds a condition from an arbitrary predicate over the resolved
// value. desc is used in graph renderings.
func CondFunc(desc string, ref *Reference, fn func(v any) (bool, error)) *Condition {
	return &Condition{
		desc: desc,
		eval: func(res Resolver) (bool, error) {
			rv, err := ref.Resolve(res)
			if err != nil {
				return false, err
			}
			return fn(rv)
		},
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", v)
	}
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, err := toFloat(v); err == nil {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
