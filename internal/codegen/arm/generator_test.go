package arm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	"github.com/Dreams-N/platform-art-sub001/internal/entrypoints"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

func testContext() *codegen.Context {
	return &codegen.Context{
		ISA:         isa.Arm,
		Features:    isa.Features{HasDivideInstruction: true},
		Entrypoints: *entrypoints.DefaultTable(0x200, 4),
		Thread:      entrypoints.DefaultThreadLayout(),
	}
}

func compile(t *testing.T, ctx *codegen.Context, g *hir.Graph) *codegen.CompiledMethod {
	t.Helper()
	cg, err := New(ctx)
	require.NoError(t, err)
	cm, err := cg.Compile(g)
	require.NoError(t, err)
	require.NotEmpty(t, cm.Code)
	require.Zero(t, cm.FrameSizeInBytes%8, "frame must be 8-byte aligned")
	require.NotZero(t, cm.CoreSpillMask&(1<<14), "lr is always preserved")
	return cm
}

// straightLine builds entry -> exit with instructions going into entry.
func straightLine() (*hir.Graph, *hir.Block) {
	g := hir.NewGraph()
	b := g.NewBlock()
	e := g.NewBlock()
	g.SetEntry(b.ID)
	g.SetExit(e.ID)
	g.AddEdge(b.ID, e.ID)
	return g, b
}

func TestCompileIntAdd(t *testing.T) {
	g, b := straightLine()
	p0 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	add := g.NewInstr(b, hir.OpAdd, hir.Int, 0, p0, p1)
	g.NewInstr(b, hir.OpReturn, hir.Void, 1, add)

	cm := compile(t, testContext(), g)
	require.Equal(t, isa.Arm, cm.InstructionSet)
	// No calls, no safepoints.
	require.Empty(t, cm.MappingTable)
	require.Empty(t, cm.Patches)
	require.NotEmpty(t, cm.CFI)
}

func TestCompileLongArithmetic(t *testing.T) {
	g, b := straightLine()
	p0 := g.NewInstr(b, hir.OpParameter, hir.Long, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Long, 0)
	add := g.NewInstr(b, hir.OpAdd, hir.Long, 0, p0, p1)
	neg := g.NewInstr(b, hir.OpNeg, hir.Long, 1, add)
	g.NewInstr(b, hir.OpReturn, hir.Void, 2, neg)

	compile(t, testContext(), g)
}

func TestCompileConstantFolding(t *testing.T) {
	g, b := straightLine()
	p := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	c := g.NewInstr(b, hir.OpIntConstant, hir.Int, 0)
	g.InstrAt(c).IntValue = 17
	add := g.NewInstr(b, hir.OpAdd, hir.Int, 0, p, c)
	g.NewInstr(b, hir.OpReturn, hir.Void, 1, add)

	compile(t, testContext(), g)
	// The constant folded into the add operand instead of taking a register.
	require.Equal(t, location.ConstantInt,
		g.InstrAt(add).Locations.In(1).Kind())
}

func TestCompileVirtualInvokeRecordsSafepoint(t *testing.T) {
	g, b := straightLine()
	recv := g.NewInstr(b, hir.OpParameter, hir.Reference, 0)
	arg := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	call := g.NewInstr(b, hir.OpInvokeVirtual, hir.Int, 6, recv, arg)
	g.InstrAt(call).Index = 3
	g.NewInstr(b, hir.OpReturn, hir.Void, 8, call)

	cm := compile(t, testContext(), g)
	require.Len(t, cm.MappingTable, 1)
	require.Equal(t, uint32(6), cm.MappingTable[0].DexPC)
	require.NotEmpty(t, cm.GCMap)
}

func TestCompileReferenceLiveAcrossCall(t *testing.T) {
	g, b := straightLine()
	recv := g.NewInstr(b, hir.OpParameter, hir.Reference, 0)
	call := g.NewInstr(b, hir.OpInvokeVirtual, hir.Void, 4, recv)
	g.InstrAt(call).Index = 1
	g.NewInstr(b, hir.OpReturn, hir.Void, 8, recv)

	compile(t, testContext(), g)
	// The receiver survives the call, so the safepoint must know where it is.
	s := g.InstrAt(call).Locations
	require.True(t, s.RegisterMask != 0 || s.StackMask != 0)
}

func TestCompileBoundsCheckSlowPath(t *testing.T) {
	g, b := straightLine()
	arr := g.NewInstr(b, hir.OpParameter, hir.Reference, 0)
	idx := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	length := g.NewInstr(b, hir.OpArrayLength, hir.Int, 4, arr)
	g.NewInstr(b, hir.OpBoundsCheck, hir.Void, 5, idx, length)
	get := g.NewInstr(b, hir.OpArrayGet, hir.Int, 6, arr, idx)
	g.NewInstr(b, hir.OpReturn, hir.Void, 7, get)

	cm := compile(t, testContext(), g)
	// The out-of-line throw records its safepoint.
	var found bool
	for _, pm := range cm.MappingTable {
		if pm.DexPC == 5 {
			found = true
		}
	}
	require.True(t, found, "bounds-check slow path must map its pc")
}

func TestCompileStaticFieldWithClassInitialization(t *testing.T) {
	g, b := straightLine()
	method := g.NewInstr(b, hir.OpCurrentMethod, hir.Reference, 0)
	cls := g.NewInstr(b, hir.OpLoadClass, hir.Reference, 2, method)
	g.InstrAt(cls).Index = 7
	g.InstrAt(cls).NeedsInitialization = true
	g.InstrAt(cls).MayBeNull = true
	val := g.NewInstr(b, hir.OpStaticFieldGet, hir.Int, 3, cls)
	g.InstrAt(val).FieldOffset = 16
	g.NewInstr(b, hir.OpReturn, hir.Void, 4, val)

	cm := compile(t, testContext(), g)
	// Non-PIC resolves the boot-image class through a linker patch.
	require.Len(t, cm.Patches, 1)
	require.Equal(t, codegen.PatchType, cm.Patches[0].Kind)
	require.Equal(t, uint32(7), cm.Patches[0].TargetIndex)
}

func TestCompileLoadClassPICUsesDexCache(t *testing.T) {
	g, b := straightLine()
	method := g.NewInstr(b, hir.OpCurrentMethod, hir.Reference, 0)
	cls := g.NewInstr(b, hir.OpLoadClass, hir.Reference, 2, method)
	g.InstrAt(cls).Index = 7
	g.InstrAt(cls).MayBeNull = true
	g.NewInstr(b, hir.OpReturn, hir.Void, 4, cls)

	ctx := testContext()
	ctx.Options.PIC = true
	cm := compile(t, ctx, g)
	require.Empty(t, cm.Patches)
	// The resolution slow path records a safepoint.
	require.NotEmpty(t, cm.MappingTable)
}

func TestCompileLoopWithSuspendCheck(t *testing.T) {
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
	g.NewInstr(header, hir.OpSuspendCheck, hir.Void, 1)
	cond := g.NewInstr(header, hir.OpGreaterThan, hir.Bool, 1, p, zero)
	g.NewInstr(header, hir.OpIf, hir.Void, 1, cond)
	g.NewInstr(body, hir.OpGoto, hir.Void, 2)
	g.NewInstr(retb, hir.OpReturnVoid, hir.Void, 3)

	cm := compile(t, testContext(), g)
	// The back edge polls the thread flags; its slow path maps the pc.
	var found bool
	for _, pm := range cm.MappingTable {
		if pm.DexPC == 1 {
			found = true
		}
	}
	require.True(t, found, "suspend-check slow path must map its pc")
	// The compare fused into the branch.
	require.True(t, g.InstrAt(cond).EmittedAtUseSite)
}

func TestCompileDivisionWithoutHardwareDivide(t *testing.T) {
	g, b := straightLine()
	p0 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	div := g.NewInstr(b, hir.OpDiv, hir.Int, 2, p0, p1)
	g.NewInstr(b, hir.OpReturn, hir.Void, 3, div)

	ctx := testContext()
	ctx.Features.HasDivideInstruction = false
	cm := compile(t, ctx, g)
	// The runtime helper call is a safepoint.
	require.NotEmpty(t, cm.MappingTable)
}

func TestCompileLongToFloatHasNoLowering(t *testing.T) {
	g, b := straightLine()
	p := g.NewInstr(b, hir.OpParameter, hir.Long, 0)
	conv := g.NewInstr(b, hir.OpTypeConversion, hir.Float, 1, p)
	g.InstrAt(conv).InputType = hir.Long
	g.NewInstr(b, hir.OpReturn, hir.Void, 2, conv)

	cg, err := New(testContext())
	require.NoError(t, err)
	_, err = cg.Compile(g)
	require.ErrorIs(t, err, codegen.ErrShape)
}

func TestNewRejectsOtherISAs(t *testing.T) {
	ctx := testContext()
	ctx.ISA = isa.Arm64
	_, err := New(ctx)
	require.ErrorIs(t, err, codegen.ErrUnsupportedISA)
}

func TestAllocConfigFollowsDescriptor(t *testing.T) {
	d, ok := isa.Describe(isa.Arm)
	require.True(t, ok)
	cfg := allocConfig(d, 4)
	require.Equal(t, d.NumCoreRegisters, cfg.NumCoreRegisters)
	require.Equal(t, d.NumFpuRegisters, cfg.NumFpuRegisters)
	require.Equal(t, int32(4), cfg.SpillSlotBase)
}

func TestGeneratorReusesArenaRegions(t *testing.T) {
	// Back-to-back compilations each get a fresh arena but share the
	// region pool; the artifact must survive the arena's reset.
	g, b := straightLine()
	p0 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	add := g.NewInstr(b, hir.OpAdd, hir.Int, 0, p0, p1)
	g.NewInstr(b, hir.OpReturn, hir.Void, 1, add)
	first := compile(t, testContext(), g)
	code := append([]byte(nil), first.Code...)

	g2, b2 := straightLine()
	q0 := g2.NewInstr(b2, hir.OpParameter, hir.Int, 0)
	q1 := g2.NewInstr(b2, hir.OpParameter, hir.Int, 0)
	add2 := g2.NewInstr(b2, hir.OpAdd, hir.Int, 0, q0, q1)
	g2.NewInstr(b2, hir.OpReturn, hir.Void, 1, add2)
	second := compile(t, testContext(), g2)

	require.Equal(t, code, first.Code, "first artifact must not alias recycled storage")
	require.Equal(t, first.Code, second.Code)
}
