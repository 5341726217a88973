// Package result holds the data produced by running a compiled experiment:
// acquired readout results keyed by handle and the return values of
// near-time callbacks.
package result

import (
	"fmt"
	"sort"
)

// AcquiredResult is the data acquired under one handle. Data is stored
// flattened in row-major order over the sweep axes, outermost axis first.
type AcquiredResult struct {
	Handle string

	// AxisNames are the sweep parameter UIDs, outermost first.
	AxisNames []string

	// Axes holds the swept values per axis, parallel to AxisNames.
	Axes [][]float64

	// Data is the flattened result array; its length is the product of the
	// axis lengths (1 for a sweep-free acquisition).
	Data []float64
}

// Shape returns the length of each axis.
func (r *AcquiredResult) Shape() []int {
	shape := make([]int, len(r.Axes))
	for i, ax := range r.Axes {
		shape[i] = len(ax)
	}
	return shape
}

// At returns the data point at the given per-axis indices.
func (r *AcquiredResult) At(indices ...int) (float64, error) {
	if len(indices) != len(r.Axes) {
		return 0, fmt.Errorf("result: handle %q has %d axes, got %d indices", r.Handle, len(r.Axes), len(indices))
	}
	flat := 0
	for i, idx := range indices {
		n := len(r.Axes[i])
		if idx < 0 || idx >= n {
			return 0, fmt.Errorf("result: handle %q index %d out of range on axis %q", r.Handle, idx, r.AxisNames[i])
		}
		flat = flat*n + idx
	}
	if flat >= len(r.Data) {
		return 0, fmt.Errorf("result: handle %q has incomplete data", r.Handle)
	}
	return r.Data[flat], nil
}

// Results is the container returned by Session.Run.
type Results struct {
	acquired map[string]*AcquiredResult
	neartime map[string][]any
}

// New creates an empty Results container.
func New() *Results {
	return &Results{
		acquired: make(map[string]*AcquiredResult),
		neartime: make(map[string][]any),
	}
}

// Handles lists the acquisition handles with data, sorted.
func (r *Results) Handles() []string {
	out := make([]string, 0, len(r.acquired))
	for h := range r.acquired {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Acquired returns the result for a handle.
func (r *Results) Acquired(handle string) (*AcquiredResult, error) {
	res, ok := r.acquired[handle]
	if !ok {
		return nil, fmt.Errorf("result: no data for handle %q", handle)
	}
	return res, nil
}

// Put stores (or replaces) the result for a handle.
func (r *Results) Put(res *AcquiredResult) {
	r.acquired[res.Handle] = res
}

// AppendNeartime records one near-time callback return value under the
// callback's name, in invocation order.
func (r *Results) AppendNeartime(name string, v any) {
	r.neartime[name] = append(r.neartime[name], v)
}

// Neartime returns the recorded return values of a callback in invocation
// order.
func (r *Results) Neartime(name string) []any {
	return r.neartime[name]
}

// NeartimeNames lists the callback names with recorded values, sorted.
func (r *Results) NeartimeNames() []string {
	out := make([]string, 0, len(r.neartime))
	for n := range r.neartime {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
