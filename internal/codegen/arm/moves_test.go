package arm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	cg, err := New(testContext())
	require.NoError(t, err)
	return cg
}

func emittedWords(t *testing.T, cg *Generator) int {
	t.Helper()
	code, err := cg.masm.Finalize()
	require.NoError(t, err)
	require.Zero(t, len(code)%4)
	return len(code) / 4
}

func TestScratchLocationByType(t *testing.T) {
	cg := testGenerator(t)
	require.Equal(t, location.MakeRegister(int(asmarm.IP)),
		cg.ScratchLocation(hir.Int))
	require.Equal(t, location.MakeRegister(int(asmarm.IP)),
		cg.ScratchLocation(hir.Reference))
	require.Equal(t, location.MakeFpuRegister(30), cg.ScratchLocation(hir.Float))
	require.Equal(t, location.MakeFpuRegisterPair(30, 31),
		cg.ScratchLocation(hir.Long))
	require.Equal(t, location.MakeFpuRegisterPair(30, 31),
		cg.ScratchLocation(hir.Double))
}

func TestEmitMoveRegisterToRegister(t *testing.T) {
	cg := testGenerator(t)
	cg.EmitMove(location.MakeRegister(1), location.MakeRegister(4), hir.Int)
	require.Equal(t, 1, emittedWords(t, cg))
	require.NoError(t, cg.err)
}

func TestEmitMovePairSwapUsesScratch(t *testing.T) {
	cg := testGenerator(t)
	cg.EmitMove(location.MakeRegisterPair(4, 5),
		location.MakeRegisterPair(5, 4), hir.Long)
	// Full swap routes one word through IP.
	require.Equal(t, 3, emittedWords(t, cg))
}

func TestEmitMovePairHalfOverlap(t *testing.T) {
	cg := testGenerator(t)
	// dst.lo aliases src.hi: the high word must move first.
	cg.EmitMove(location.MakeRegisterPair(4, 5),
		location.MakeRegisterPair(5, 6), hir.Long)
	require.Equal(t, 2, emittedWords(t, cg))
	require.NoError(t, cg.err)
}

func TestEmitMoveStackToStackUsesFpuTransit(t *testing.T) {
	cg := testGenerator(t)
	cg.EmitMove(location.MakeStackSlot(8), location.MakeStackSlot(16), hir.Int)
	// vldr s28 + vstr s28, never a core scratch.
	require.Equal(t, 2, emittedWords(t, cg))
}

func TestEmitMoveDoubleStackToStack(t *testing.T) {
	cg := testGenerator(t)
	cg.EmitMove(location.MakeDoubleStackSlot(8),
		location.MakeDoubleStackSlot(24), hir.Double)
	require.Equal(t, 2, emittedWords(t, cg)) // vldr d14 + vstr d14
}

func TestEmitMoveConstantToStack(t *testing.T) {
	cg := testGenerator(t)
	cg.EmitMove(location.MakeConstantInt(7), location.MakeStackSlot(12), hir.Int)
	require.Equal(t, 2, emittedWords(t, cg)) // mov ip + str ip
}

func TestEmitMoveQuickParameterSplit(t *testing.T) {
	cg := testGenerator(t)
	// Low half already in r3, high half on the stack.
	cg.EmitMove(location.MakeQuickParameter(3, 4),
		location.MakeRegisterPair(4, 5), hir.Long)
	require.Equal(t, 2, emittedWords(t, cg))
	require.NoError(t, cg.err)
}

func TestEmitMoveUnsupportedShapeFails(t *testing.T) {
	cg := testGenerator(t)
	cg.EmitMove(location.MakeFpuRegister(2), location.MakeRegisterPair(0, 1), hir.Long)
	require.Error(t, cg.err)
}
