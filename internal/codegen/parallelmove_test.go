package codegen

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
	"github.com/Dreams-N/platform-art-sub001/internal/regalloc"
)

// recordingEmitter captures the serialized schedule and simulates it over a
// location -> value map.
type recordingEmitter struct {
	values map[location.Location]int
}

func (e *recordingEmitter) EmitMove(src, dst location.Location, _ hir.Type) {
	e.values[dst] = e.values[src]
}

func (e *recordingEmitter) ScratchLocation(typ hir.Type) location.Location {
	switch {
	case typ == hir.Double:
		return location.MakeFpuRegisterPair(30, 31)
	case typ.IsFloatingPoint():
		return location.MakeFpuRegister(31)
	case typ.Is64Bit():
		return location.MakeFpuRegisterPair(30, 31)
	}
	return location.MakeRegister(12)
}

func TestParallelMoveSimple(t *testing.T) {
	em := &recordingEmitter{values: map[location.Location]int{
		location.MakeRegister(0): 100,
		location.MakeRegister(1): 101,
	}}
	err := ResolveParallelMoves(em, []regalloc.MoveOp{
		{Src: location.MakeRegister(0), Dst: location.MakeRegister(2), Type: hir.Int},
		{Src: location.MakeRegister(1), Dst: location.MakeRegister(3), Type: hir.Int},
	})
	require.NoError(t, err)
	require.Equal(t, 100, em.values[location.MakeRegister(2)])
	require.Equal(t, 101, em.values[location.MakeRegister(3)])
}

func TestParallelMoveSwapCycle(t *testing.T) {
	r0, r1 := location.MakeRegister(0), location.MakeRegister(1)
	em := &recordingEmitter{values: map[location.Location]int{r0: 100, r1: 101}}
	err := ResolveParallelMoves(em, []regalloc.MoveOp{
		{Src: r0, Dst: r1, Type: hir.Int},
		{Src: r1, Dst: r0, Type: hir.Int},
	})
	require.NoError(t, err)
	require.Equal(t, 100, em.values[r1])
	require.Equal(t, 101, em.values[r0])
}

func TestParallelMoveChainIntoCycle(t *testing.T) {
	regs := []location.Location{
		location.MakeRegister(0), location.MakeRegister(1),
		location.MakeRegister(2), location.MakeRegister(3),
	}
	em := &recordingEmitter{values: map[location.Location]int{}}
	for i, r := range regs {
		em.values[r] = 100 + i
	}
	// r0 -> r1 -> r2 -> r0 cycle plus a chain r2 -> r3.
	err := ResolveParallelMoves(em, []regalloc.MoveOp{
		{Src: regs[0], Dst: regs[1], Type: hir.Int},
		{Src: regs[1], Dst: regs[2], Type: hir.Int},
		{Src: regs[2], Dst: regs[0], Type: hir.Int},
		{Src: regs[2], Dst: regs[3], Type: hir.Int},
	})
	require.NoError(t, err)
	require.Equal(t, 100, em.values[regs[1]])
	require.Equal(t, 101, em.values[regs[2]])
	require.Equal(t, 102, em.values[regs[0]])
	require.Equal(t, 102, em.values[regs[3]])
}

// TestParallelMoveRandomPermutations checks the permutation property: the
// serialized schedule must produce the state the simultaneous semantics
// defines, for random move sets including cycles.
func TestParallelMoveRandomPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5eed))
	for round := 0; round < 200; round++ {
		n := 2 + rng.Intn(8)
		var locs []location.Location
		for r := 0; r < n; r++ {
			locs = append(locs, location.MakeRegister(r))
		}
		before := map[location.Location]int{}
		for i, l := range locs {
			before[l] = 1000 + i
		}

		// Destinations are distinct (a permutation subset); sources are free
		// to repeat, which yields chains, forks, and cycles.
		perm := rng.Perm(n)
		var moves []regalloc.MoveOp
		want := map[location.Location]int{}
		for l, v := range before {
			want[l] = v
		}
		for i := 0; i < n; i++ {
			if rng.Intn(3) == 0 {
				continue
			}
			src := locs[rng.Intn(n)]
			dst := locs[perm[i]]
			moves = append(moves, regalloc.MoveOp{Src: src, Dst: dst, Type: hir.Int})
			want[dst] = before[src]
		}

		em := &recordingEmitter{values: map[location.Location]int{}}
		for l, v := range before {
			em.values[l] = v
		}
		require.NoError(t, ResolveParallelMoves(em, moves), "round %d moves %v", round, moves)
		for _, l := range locs {
			require.Equal(t, want[l], em.values[l], "round %d location %v", round, l)
		}
	}
}

func TestParallelMovePairOverlap(t *testing.T) {
	pair := location.MakeRegisterPair(0, 1)
	r0 := location.MakeRegister(0)
	require.True(t, overlaps(pair, r0))
	require.True(t, overlaps(r0, pair))
	require.False(t, overlaps(location.MakeRegister(2), pair))
	require.True(t, overlaps(location.MakeDoubleStackSlot(4), location.MakeStackSlot(8)))
	require.False(t, overlaps(location.MakeStackSlot(4), location.MakeStackSlot(12)))
	require.False(t, overlaps(location.MakeFpuRegister(0), location.MakeRegister(0)))
}
