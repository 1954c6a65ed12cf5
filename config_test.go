package art

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/isa"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig(isa.Arm)
	require.Equal(t, isa.Arm, cfg.ISA)
	require.Equal(t, FilterSpeed, cfg.Filter)
	require.Equal(t, 3, cfg.InlineDepthLimit)
	require.Equal(t, 32, cfg.InlineMaxCodeUnits)
	require.Equal(t, uint32(10000), cfg.HugeMethodThreshold)
	require.Equal(t, uint32(600), cfg.LargeMethodThreshold)
	require.Equal(t, uint32(60), cfg.SmallMethodThreshold)
	require.Equal(t, uint32(20), cfg.TinyMethodThreshold)
	require.False(t, cfg.PIC)
}

func TestCompilerFilterCompilesMethod(t *testing.T) {
	for _, f := range []CompilerFilter{FilterVerifyNone, FilterInterpretOnly, FilterVerifyAtRuntime} {
		require.False(t, f.CompilesMethod(), f.String())
	}
	for _, f := range []CompilerFilter{FilterSpace, FilterBalanced, FilterSpeed, FilterEverything, FilterTime} {
		require.True(t, f.CompilesMethod(), f.String())
	}
}

func TestMethodSizeBuckets(t *testing.T) {
	cfg := NewConfig(isa.Arm)

	require.True(t, cfg.IsTinyMethod(20))
	require.False(t, cfg.IsTinyMethod(21))

	require.True(t, cfg.IsSmallMethod(60))
	require.False(t, cfg.IsSmallMethod(20), "tiny is not small")
	require.False(t, cfg.IsSmallMethod(61))

	require.True(t, cfg.IsLargeMethod(601))
	require.False(t, cfg.IsLargeMethod(600))

	require.True(t, cfg.IsHugeMethod(10001))
	require.False(t, cfg.IsHugeMethod(10000))
}
