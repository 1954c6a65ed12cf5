package arm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

func TestCallingConventionIntArguments(t *testing.T) {
	var c callingConvention
	require.Equal(t, location.MakeRegister(int(asmarm.R1)), c.Next(hir.Int))
	require.Equal(t, location.MakeRegister(int(asmarm.R2)), c.Next(hir.Int))
	require.Equal(t, location.MakeRegister(int(asmarm.R3)), c.Next(hir.Int))
	// The fourth word overflows past the method slot at [sp, #0].
	require.Equal(t, location.MakeStackSlot(4), c.Next(hir.Int))
	require.Equal(t, 1, c.StackWords())
}

func TestCallingConventionLongPair(t *testing.T) {
	var c callingConvention
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R1), int(asmarm.R2)),
		c.Next(hir.Long))
	require.Equal(t, location.MakeRegister(int(asmarm.R3)), c.Next(hir.Int))
	require.Zero(t, c.StackWords())
}

func TestCallingConventionLongStraddle(t *testing.T) {
	var c callingConvention
	c.Next(hir.Int) // r1
	c.Next(hir.Int) // r2
	// Only r3 remains: the low half takes it, the high half goes to the
	// first stack word.
	require.Equal(t,
		location.MakeQuickParameter(int(asmarm.R3), 4),
		c.Next(hir.Long))
	require.Equal(t, location.MakeStackSlot(8), c.Next(hir.Int))
	require.Equal(t, 2, c.StackWords())
}

func TestCallingConventionFloatsUseCoreRegisters(t *testing.T) {
	var c callingConvention
	require.Equal(t, location.MakeRegister(int(asmarm.R1)), c.Next(hir.Float))
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R2), int(asmarm.R3)),
		c.Next(hir.Double))
}

func TestCallingConventionDoubleOnStack(t *testing.T) {
	var c callingConvention
	c.Next(hir.Long) // r1, r2
	c.Next(hir.Int)  // r3
	require.Equal(t, location.MakeDoubleStackSlot(4), c.Next(hir.Double))
	require.Equal(t, 2, c.StackWords())
}

func TestReturnLocation(t *testing.T) {
	require.Equal(t, location.NoLocation, returnLocation(hir.Void))
	require.Equal(t, location.MakeRegister(int(asmarm.R0)), returnLocation(hir.Int))
	require.Equal(t, location.MakeRegister(int(asmarm.R0)), returnLocation(hir.Float))
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1)),
		returnLocation(hir.Long))
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1)),
		returnLocation(hir.Double))
}

func TestRuntimeCallingConventionAlignsPairs(t *testing.T) {
	var c runtimeCallingConvention
	require.Equal(t, location.MakeRegister(int(asmarm.R0)), c.Next(hir.Int))
	// The pair skips r1 for even alignment.
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R2), int(asmarm.R3)),
		c.Next(hir.Long))
}

func TestRuntimeCallingConventionReturn(t *testing.T) {
	var c runtimeCallingConvention
	require.Equal(t, location.NoLocation, c.ReturnLocation(hir.Void))
	require.Equal(t, location.MakeRegister(int(asmarm.R0)), c.ReturnLocation(hir.Int))
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1)),
		c.ReturnLocation(hir.Long))
}

func TestJNICallingConventionRegisters(t *testing.T) {
	var c jniCallingConvention
	require.Equal(t, location.MakeRegister(int(asmarm.R0)), c.Next(hir.Reference))
	require.Equal(t, location.MakeRegister(int(asmarm.R1)), c.Next(hir.Int))
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R2), int(asmarm.R3)),
		c.Next(hir.Long))
	require.Equal(t, location.MakeStackSlot(0), c.Next(hir.Int))
}

func TestJNICallingConventionStackAlignment(t *testing.T) {
	var c jniCallingConvention
	c.Next(hir.Reference) // r0
	c.Next(hir.Long)      // the pair rounds up to r2/r3
	c.Next(hir.Int)       // stack word 0
	// Doubles on the stack are 8-byte aligned, leaving a padding word.
	require.Equal(t, location.MakeDoubleStackSlot(8), c.Next(hir.Double))
	require.Equal(t, location.MakeStackSlot(16), c.Next(hir.Int))
}

func TestJNICallingConventionNoRegisterAfterStack(t *testing.T) {
	var c jniCallingConvention
	c.Next(hir.Int) // r0
	c.Next(hir.Long)
	c.Next(hir.Double) // overflows to the stack
	// Later words stay on the stack even though r1 was never used.
	require.Equal(t, location.StackSlot, c.Next(hir.Int).Kind())
}

func TestJNICallingConventionReturn(t *testing.T) {
	var c jniCallingConvention
	require.Equal(t, location.NoLocation, c.ReturnLocation(hir.Void))
	// softfp: floating-point results come back in core registers.
	require.Equal(t, location.MakeRegister(int(asmarm.R0)), c.ReturnLocation(hir.Float))
	require.Equal(t,
		location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1)),
		c.ReturnLocation(hir.Double))
}

func TestRuntimeCallSummariesUseConvention(t *testing.T) {
	g, b := straightLine()
	p0 := g.NewInstr(b, hir.OpParameter, hir.Double, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Double, 0)
	rem := g.NewInstr(b, hir.OpRem, hir.Double, 2, p0, p1)
	g.NewInstr(b, hir.OpReturn, hir.Void, 3, rem)

	compile(t, testContext(), g)

	// fmod goes through the runtime convention, not ad-hoc registers.
	var c runtimeCallingConvention
	s := g.InstrAt(rem).Locations
	require.Equal(t, c.Next(hir.Double), s.In(0))
	require.Equal(t, c.Next(hir.Double), s.In(1))
	require.Equal(t, c.ReturnLocation(hir.Double), s.Out())
}
