package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArena_Alloc(t *testing.T) {
	a := New(nil)

	b := a.Alloc(3)
	require.Equal(t, 8, len(b), "allocations round up to worst alignment")
	require.Equal(t, 8, a.BytesAllocated())

	for _, x := range b {
		require.Equal(t, byte(0), x)
	}

	// Distinct allocations must not alias.
	c := a.Alloc(8)
	b[0] = 0xaa
	require.Equal(t, byte(0), c[0])
}

func TestArena_AllocCrossesRegions(t *testing.T) {
	a := New(nil)
	total := 0
	for total < 3*regionSize {
		b := a.Alloc(1000)
		require.NotNil(t, b)
		total += len(b)
	}
	require.Equal(t, total, a.BytesAllocated())
}

func TestArena_Oversized(t *testing.T) {
	a := New(nil)
	small := a.Alloc(16)
	big := a.Alloc(regionSize + 1)
	require.GreaterOrEqual(t, len(big), regionSize+1)

	// The current region keeps bumping after an oversized allocation.
	small2 := a.Alloc(16)
	small[0] = 1
	small2[0] = 2
	require.Equal(t, byte(1), small[0])
}

func TestArena_ResetReturnsRegionsToPool(t *testing.T) {
	p := NewRegionPool()
	a := New(p)
	b := a.Alloc(128)
	b[0] = 0xff
	a.Reset()
	require.Equal(t, 0, a.BytesAllocated())

	// The recycled region comes back zeroed.
	b2 := New(p).Alloc(128)
	require.Equal(t, byte(0), b2[0])
}

func TestArena_Limit(t *testing.T) {
	a := New(nil)
	a.SetLimit(64)
	require.False(t, a.Exhausted())
	a.Alloc(128)
	require.True(t, a.Exhausted())
}
