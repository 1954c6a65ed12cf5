package arm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

func TestLiveRegisterSpillSet(t *testing.T) {
	s := location.NewSummary(0, location.CallOnSlowPath)
	s.LiveCoreRegisters = 1<<0 | 1<<2 | 1<<5 // r5 is callee-save
	s.LiveFpuRegisters = 1<<1 | 1<<4 | 1<<16 // s16 is callee-save

	set := liveRegisters(s)
	require.True(t, set.core.Contains(asmarm.R0))
	require.True(t, set.core.Contains(asmarm.R2))
	require.False(t, set.core.Contains(asmarm.R5),
		"callee-saves survive the call on their own")
	// s1..s4 round out to the d0-d2 store range.
	require.Equal(t, asmarm.DReg(0), set.dFirst)
	require.Equal(t, 3, set.dCount)
	// 2 core + 6 fpu words, even: no padding register.
	require.False(t, set.core.Contains(asmarm.IP))

	s.LiveFpuRegisters = 0
	s.LiveCoreRegisters = 1 << 0
	set = liveRegisters(s)
	require.True(t, set.core.Contains(asmarm.IP),
		"an odd save area is padded to keep sp 8-byte aligned")
}

func TestSaveAndRestoreLiveRegisters(t *testing.T) {
	cg := testGenerator(t)
	s := location.NewSummary(0, location.CallOnSlowPath)
	s.LiveCoreRegisters = 1 << 1 // r1
	s.LiveFpuRegisters = 1 << 3  // s3 lives in d1
	set := liveRegisters(s)
	cg.saveLiveRegisters(set)
	cg.restoreLiveRegisters(set)
	got, err := cg.masm.Finalize()
	require.NoError(t, err)

	exp := asmarm.NewAssembler()
	exp.Push(asmarm.ListOf(asmarm.R1, asmarm.IP), asmarm.AL)
	exp.Vpush(1, 1, asmarm.AL)
	exp.Vpop(1, 1, asmarm.AL)
	exp.Pop(asmarm.ListOf(asmarm.R1, asmarm.IP), asmarm.AL)
	want, err := exp.Finalize()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCompileSuspendCheckSavesLiveRegisters(t *testing.T) {
	// The parameter is compared every iteration and returned after the
	// loop, so it is live across the suspend check.
	g := hir.NewGraph()
	entry := g.NewBlock()
	header := g.NewBlock()
	body := g.NewBlock()
	retb := g.NewBlock()
	exit := g.NewBlock()
	g.SetEntry(entry.ID)
	g.SetExit(exit.ID)
	g.AddEdge(entry.ID, header.ID)
	g.AddEdge(header.ID, body.ID)
	g.AddEdge(header.ID, retb.ID)
	g.AddEdge(body.ID, header.ID)
	g.AddEdge(retb.ID, exit.ID)

	p := g.NewInstr(entry, hir.OpParameter, hir.Int, 0)
	zero := g.NewInstr(entry, hir.OpIntConstant, hir.Int, 0)
	g.NewInstr(entry, hir.OpGoto, hir.Void, 0)
	sc := g.NewInstr(header, hir.OpSuspendCheck, hir.Void, 1)
	cond := g.NewInstr(header, hir.OpGreaterThan, hir.Bool, 1, p, zero)
	g.NewInstr(header, hir.OpIf, hir.Void, 1, cond)
	g.NewInstr(body, hir.OpGoto, hir.Void, 2)
	g.NewInstr(retb, hir.OpReturn, hir.Void, 3, p)

	cm := compile(t, testContext(), g)

	s := g.InstrAt(sc).Locations
	require.NotZero(t, s.LiveCoreRegisters&callerSaveCores,
		"the loop value must be live in a caller-save register")

	set := liveRegisters(s)
	save := asmarm.NewAssembler()
	save.Push(set.core, asmarm.AL)
	saveWords, err := save.Finalize()
	require.NoError(t, err)
	require.True(t, bytes.Contains(cm.Code, saveWords),
		"the suspend slow path must spill the live caller-save registers")

	restore := asmarm.NewAssembler()
	restore.Pop(set.core, asmarm.AL)
	restoreWords, err := restore.Finalize()
	require.NoError(t, err)
	require.True(t, bytes.Contains(cm.Code, restoreWords),
		"the suspend slow path must reload them before rejoining")
}
