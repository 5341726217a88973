package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, args ...any) (any, error) { return nil, nil }

func TestBuilderProducesGraph(t *testing.T) {
	t.Parallel()

	b := NewBuilder("calibrate")
	amp := b.Task("measure", noop, b.Input("qubit"))
	b.If(Gt(amp, 0.5), func(b *Builder) {
		b.Task("recalibrate", noop, amp)
	}).Else(func(b *Builder) {
		b.Task("accept", noop)
	})
	b.Return(amp)

	wf, err := b.Build()
	require.NoError(t, err)

	g := wf.Graph()
	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, NodeTask, nodes[0].Kind)
	assert.Equal(t, NodeIf, nodes[1].Kind)
	assert.Equal(t, NodeReturn, nodes[2].Kind)

	assert.Equal(t, []string{"measure", "recalibrate", "accept"}, g.TaskNames())
}

func TestTreeRendering(t *testing.T) {
	t.Parallel()

	b := NewBuilder("tune-up")
	amp := b.Task("measure", noop, b.Input("qubit"))
	b.If(Gt(amp, 0.5), func(b *Builder) {
		b.Task("recalibrate", noop, amp)
	})
	b.For("q", b.Input("qubits"), func(b *Builder, q *Reference) {
		b.Task("tune", noop, q)
	})
	b.Return(amp)

	wf := b.MustBuild()
	tree := wf.Graph().Tree()

	assert.Contains(t, tree, "workflow tune-up")
	assert.Contains(t, tree, "task measure(input[qubit])")
	assert.Contains(t, tree, "if result[measure] > 0.5")
	assert.Contains(t, tree, "  task recalibrate(result[measure])")
	assert.Contains(t, tree, "for q in input[qubits]")
	assert.Contains(t, tree, "  task tune(item[q])")
	assert.Contains(t, tree, "return result[measure]")
}

func TestBuildReportsAllErrors(t *testing.T) {
	t.Parallel()

	other := NewBuilder("other")
	foreign := other.Task("x", noop)

	b := NewBuilder("")
	b.Task("", nil, foreign)

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must not be empty")
	assert.Contains(t, err.Error(), "task name must not be empty")
	assert.Contains(t, err.Error(), "nil function")
	assert.Contains(t, err.Error(), "another workflow")
}

func TestEmptyWorkflowRejected(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder("empty").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no nodes")
}

func TestLoopItemOutsideLoopRejected(t *testing.T) {
	t.Parallel()

	b := NewBuilder("leaky")
	var leaked *Reference
	b.For("q", []any{1.0, 2.0}, func(b *Builder, q *Reference) {
		b.Task("inner", noop, q)
		leaked = q
	})
	b.Task("outer", noop, leaked)

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside its loop")
}

type mapResolver struct {
	outputs map[string]any
	inputs  map[string]any
	items   map[string]any
}

func (m mapResolver) TaskOutput(id string) (any, bool) { v, ok := m.outputs[id]; return v, ok }
func (m mapResolver) Input(name string) (any, bool)    { v, ok := m.inputs[name]; return v, ok }
func (m mapResolver) LoopItem(name string) (any, bool) { v, ok := m.items[name]; return v, ok }

func TestReferenceFieldAndIndex(t *testing.T) {
	t.Parallel()

	b := NewBuilder("refs")
	out := b.Task("produce", noop)
	b.Return(out)
	wf := b.MustBuild()

	id := wf.Graph().Nodes()[0].ID
	res := mapResolver{outputs: map[string]any{
		id: map[string]any{"values": []float64{0.1, 0.2, 0.3}},
	}}

	v, err := out.Field("values").Index(1).Resolve(res)
	require.NoError(t, err)
	assert.Equal(t, 0.2, v)

	assert.Equal(t, "result[produce].values[1]", out.Field("values").Index(1).String())

	// Field and Index do not mutate the base reference.
	assert.Equal(t, "result[produce]", out.String())
}

func TestReferenceStructField(t *testing.T) {
	t.Parallel()

	type point struct{ X, Y float64 }

	b := NewBuilder("refs")
	out := b.Task("produce", noop)
	b.Return(out)
	wf := b.MustBuild()

	id := wf.Graph().Nodes()[0].ID
	res := mapResolver{outputs: map[string]any{id: point{X: 1.5, Y: -2}}}

	v, err := out.Field("Y").Resolve(res)
	require.NoError(t, err)
	assert.Equal(t, -2.0, v)

	_, err = out.Field("Z").Resolve(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no field "Z"`)
}

func TestUnresolvedReferenceError(t *testing.T) {
	t.Parallel()

	b := NewBuilder("refs")
	out := b.Task("never-ran", noop)
	b.Return(out)
	_ = b.MustBuild()

	_, err := out.Resolve(mapResolver{outputs: map[string]any{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedReference)
	assert.Contains(t, err.Error(), "never-ran")
}

func TestConditions(t *testing.T) {
	t.Parallel()

	b := NewBuilder("conds")
	out := b.Task("measure", noop)
	b.Return(out)
	wf := b.MustBuild()
	id := wf.Graph().Nodes()[0].ID

	res := mapResolver{outputs: map[string]any{id: 0.75}}

	cases := []struct {
		cond *Condition
		want bool
	}{
		{Gt(out, 0.5), true},
		{Gt(out, 0.8), false},
		{Lt(out, 0.8), true},
		{Eq(out, 0.75), true},
		{Eq(out, 0.5), false},
		{Truthy(out), true},
	}
	for _, tc := range cases {
		got, err := tc.cond.Eval(res)
		require.NoError(t, err, tc.cond.Description())
		assert.Equal(t, tc.want, got, tc.cond.Description())
	}

	assert.Equal(t, "result[measure] > 0.5", Gt(out, 0.5).Description())
}

func TestTruthyValues(t *testing.T) {
	t.Parallel()

	assert.False(t, truthy(nil))
	assert.False(t, truthy(false))
	assert.False(t, truthy(0.0))
	assert.False(t, truthy(""))
	assert.False(t, truthy([]any{}))
	assert.True(t, truthy(true))
	assert.True(t, truthy(1))
	assert.True(t, truthy("x"))
	assert.True(t, truthy([]any{1}))
}

func TestTypedAdapters(t *testing.T) {
	t.Parallel()

	double := Typed(func(ctx context.Context, x float64) (float64, error) {
		return 2 * x, nil
	})
	out, err := double(context.Background(), 21.0)
	require.NoError(t, err)
	assert.Equal(t, 42.0, out)

	_, err = double(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has type string")

	_, err = double(context.Background(), 1.0, 2.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 1 argument")

	addN := Typed2(func(ctx context.Context, s string, n int) (string, error) {
		for i := 0; i < n; i++ {
			s += "!"
		}
		return s, nil
	})
	// float64 arguments convert to int when exact.
	out, err = addN(context.Background(), "hi", 2.0)
	require.NoError(t, err)
	assert.Equal(t, "hi!!", out)
}
