package art

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
)

// addMethod builds return p0 + p1 over ints.
func addMethod() *hir.Graph {
	g := hir.NewGraph()
	b := g.NewBlock()
	e := g.NewBlock()
	g.SetEntry(b.ID)
	g.SetExit(e.ID)
	g.AddEdge(b.ID, e.ID)
	p0 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	add := g.NewInstr(b, hir.OpAdd, hir.Int, 0, p0, p1)
	g.NewInstr(b, hir.OpReturn, hir.Void, 1, add)
	g.CodeUnits = 4
	return g
}

func TestCompile(t *testing.T) {
	cfg := NewConfig(isa.Arm)
	cfg.Features.HasDivideInstruction = true

	cm, err := Compile(context.Background(), cfg, addMethod())
	require.NoError(t, err)
	require.NotEmpty(t, cm.Code)
	require.Equal(t, isa.Arm, cm.InstructionSet)
	require.NotEmpty(t, cm.CFI)
}

func TestCompileFilterRefusals(t *testing.T) {
	tests := []struct {
		name      string
		filter    CompilerFilter
		codeUnits uint32
		refused   bool
	}{
		{"verify-none", FilterVerifyNone, 4, true},
		{"interpret-only", FilterInterpretOnly, 4, true},
		{"verify-at-runtime", FilterVerifyAtRuntime, 4, true},
		{"space", FilterSpace, 4, false},
		{"speed", FilterSpeed, 4, false},
		{"speed huge", FilterSpeed, 20000, true},
		{"everything huge", FilterEverything, 20000, false},
		{"time huge", FilterTime, 20000, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig(isa.Arm)
			cfg.Filter = tc.filter
			g := addMethod()
			g.CodeUnits = tc.codeUnits

			cm, err := Compile(context.Background(), cfg, g)
			if tc.refused {
				require.ErrorIs(t, err, ErrNotCompiled)
				require.Nil(t, cm)
			} else {
				require.NoError(t, err)
				require.NotEmpty(t, cm.Code)
			}
		})
	}
}

func TestCompileUnsupportedISA(t *testing.T) {
	for _, is := range []isa.InstructionSet{isa.Arm64, isa.X86, isa.X86_64} {
		t.Run(is.String(), func(t *testing.T) {
			_, err := Compile(context.Background(), NewConfig(is), addMethod())
			require.ErrorIs(t, err, ErrUnsupportedISA)
		})
	}
}

func TestCompileShapeError(t *testing.T) {
	// long-to-float has no arm lowering.
	g := hir.NewGraph()
	b := g.NewBlock()
	e := g.NewBlock()
	g.SetEntry(b.ID)
	g.SetExit(e.ID)
	g.AddEdge(b.ID, e.ID)
	p := g.NewInstr(b, hir.OpParameter, hir.Long, 0)
	conv := g.NewInstr(b, hir.OpTypeConversion, hir.Float, 0, p)
	g.NewInstr(b, hir.OpReturn, hir.Void, 1, conv)
	g.CodeUnits = 3

	_, err := Compile(context.Background(), NewConfig(isa.Arm), g)
	require.ErrorIs(t, err, ErrShape)
}
