package parameter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearEndpointsInclusive(t *testing.T) {
	t.Parallel()

	s, err := Linear("amp", 0, 1, 11)
	require.NoError(t, err)
	require.Equal(t, 11, s.Len())
	assert.InDelta(t, 0.0, s.At(0), 1e-12)
	assert.InDelta(t, 0.5, s.At(5), 1e-12)
	assert.InDelta(t, 1.0, s.At(10), 1e-12)
}

func TestLinearSinglePoint(t *testing.T) {
	t.Parallel()

	s, err := Linear("f", 5e9, 6e9, 1)
	require.NoError(t, err)
	require.Equal(t, []float64{5e9}, s.Values)
}

func TestLinearValidation(t *testing.T) {
	t.Parallel()

	_, err := Linear("", 0, 1, 2)
	require.Error(t, err)

	_, err = Linear("amp", 0, 1, 0)
	require.Error(t, err)
}

func TestValuesCopiesInput(t *testing.T) {
	t.Parallel()

	src := []float64{1, 2, 3}
	s, err := Values("v", src...)
	require.NoError(t, err)

	src[0] = 99
	assert.Equal(t, 1.0, s.At(0))
}

func TestValuesValidation(t *testing.T) {
	t.Parallel()

	_, err := Values("v")
	require.Error(t, err)
}
