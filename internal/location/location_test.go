package location

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocation_Structural(t *testing.T) {
	require.Equal(t, MakeRegister(3), MakeRegister(3))
	require.NotEqual(t, MakeRegister(3), MakeFpuRegister(3))
	require.NotEqual(t, MakeRegister(3), MakeRegister(4))
	require.False(t, NoLocation.IsValid())
	require.True(t, MakeStackSlot(8).IsValid())
}

func TestLocation_Pairs(t *testing.T) {
	p := MakeRegisterPair(0, 1)
	require.Equal(t, 0, p.PairLow())
	require.Equal(t, 1, p.PairHigh())
	require.True(t, p.Requires64Bits())

	d := MakeFpuRegisterPair(16, 17)
	require.Equal(t, 16, d.PairLow())
	require.Equal(t, 17, d.PairHigh())
	require.True(t, d.IsRegisterKind())
	require.False(t, d.HasStackComponent())
}

func TestLocation_Constants(t *testing.T) {
	require.Equal(t, int32(-7), MakeConstantInt(-7).ConstantInt32())
	require.Equal(t, int64(1)<<40, MakeConstantLong(1<<40).ConstantInt64())
	require.True(t, MakeConstantLong(0).Requires64Bits())
	require.True(t, MakeConstantFloat(1.5).IsConstant())
	require.False(t, MakeConstantFloat(1.5).Requires64Bits())
	require.True(t, MakeConstantDouble(1.5).IsConstant())
}

func TestLocation_QuickParameter(t *testing.T) {
	q := MakeQuickParameter(3, 4)
	require.Equal(t, 3, q.QuickParameterRegister())
	require.Equal(t, int32(4), q.QuickParameterStackOffset())
	require.True(t, q.HasStackComponent())
	require.True(t, q.Requires64Bits())
}

func TestLocation_Stack(t *testing.T) {
	s := MakeStackSlot(12)
	require.Equal(t, int32(12), s.StackOffset())
	require.False(t, s.Requires64Bits())
	require.True(t, MakeDoubleStackSlot(16).Requires64Bits())
}

func TestSummary(t *testing.T) {
	s := NewSummary(2, CallOnSlowPath)
	require.False(t, s.AllConcrete(), "summary slots start invalid")

	s.SetIn(0, MakeUnallocated(RequiresRegister))
	s.SetIn(1, MakeConstantInt(3))
	s.SetOut(MakeUnallocated(Any))
	require.False(t, s.AllConcrete())

	s.SetIn(0, MakeRegister(1))
	s.SetOut(MakeRegister(0))
	i := s.AddTemp(MakeRegister(12))
	require.Equal(t, 0, i)
	require.True(t, s.AllConcrete())
	require.True(t, s.CanCall())
	require.False(t, s.WillCall())
}

func TestSummary_OutputOverlap(t *testing.T) {
	s := NewSummary(0, NoCall)
	s.SetOutOverlapping(MakeUnallocated(RequiresRegister))
	require.True(t, s.OutputOverlapsFirst())
}
