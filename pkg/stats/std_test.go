package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeanVar(t *testing.T) {
	mean, variance := MeanVar([]int{2, 4, 4, 4, 5, 5, 7, 9})
	require.Equal(t, 5.0, mean)
	require.Equal(t, 4.0, variance)
	require.Equal(t, 2.0, StdDev([]float32{2, 4, 4, 4, 5, 5, 7, 9}))

	mean, variance = MeanVar([]float64{})
	require.Equal(t, 0.0, mean)
	require.Equal(t, 0.0, variance)
	require.Equal(t, 0.0, StdDev([]float64{3}))
}
