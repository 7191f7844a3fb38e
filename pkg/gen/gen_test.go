package gen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeleteFirst(t *testing.T) {
	a := []int{1, 2, 3}
	b := DeleteFirst(a, -1)
	require.Equal(t, a, b)

	a = []int{1, 2, 3}
	b = DeleteFirst(a, 2)
	require.Equal(t, []int{1, 3}, b)

	a = []int{1}
	b = DeleteFirst(a, 1)
	require.Equal(t, []int{}, b)
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0, Clamp(-5, 0, 10))
	require.Equal(t, 10, Clamp(50, 0, 10))
	require.Equal(t, 7, Clamp(7, 0, 10))
	require.Equal(t, float32(1), Clamp(float32(1.5), 0, 1))
}

func TestCopySlice(t *testing.T) {
	a := []int{4, 5}
	b := CopySlice(a)
	b[0] = 9
	require.Equal(t, 4, a[0])
	require.NotNil(t, CopySlice[int](nil))
}
