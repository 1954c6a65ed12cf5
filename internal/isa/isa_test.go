package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstructionSet(t *testing.T) {
	tests := []struct {
		set     InstructionSet
		name    string
		ptrSize int
		is64    bool
	}{
		{Arm, "arm", 4, false},
		{Arm64, "arm64", 8, true},
		{X86, "x86", 4, false},
		{X86_64, "x86_64", 8, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.name, tc.set.String())
			require.Equal(t, tc.ptrSize, tc.set.PointerSize())
			require.Equal(t, tc.is64, tc.set.Is64Bit())
		})
	}
}

func TestDescribe(t *testing.T) {
	d, ok := Describe(Arm)
	require.True(t, ok)
	require.Equal(t, 16, d.NumCoreRegisters)
	require.Equal(t, 8, d.StackAlignment)
	require.True(t, d.RequiresEvenPairBase)

	_, ok = Describe(None)
	require.False(t, ok)
}
