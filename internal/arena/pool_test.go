package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_Allocate(t *testing.T) {
	const n = 3 << poolChunkShift
	p := NewPool[int]()
	for i := 0; i < n; i++ {
		v := p.Allocate()
		require.Equal(t, 0, *v)
		*v = i
	}
	require.Equal(t, n, p.Allocated())
	for i := 0; i < n; i++ {
		require.Equal(t, i, *p.View(i), "indices are stable across chunk growth")
	}
}

func TestPool_Reset(t *testing.T) {
	p := NewPool[int]()
	*p.Allocate() = 7
	p.Reset()
	require.Equal(t, 0, p.Allocated())
	require.Equal(t, 0, *p.Allocate(), "reset zeroes recycled chunks")
}
