package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

func testConfig() Config {
	return Config{
		NumCoreRegisters: 8,
		NumFpuRegisters:  8,
		BlockedCore:      []int{6, 7}, // pretend scratch + sp
		CalleeSaveCore:   0x30,        // r4, r5
		CalleeSaveFpu:    0xf0,
	}
}

func requireRegisterSummary(n int) *location.Summary {
	s := location.NewSummary(n, location.NoCall)
	for i := 0; i < n; i++ {
		s.SetIn(i, location.MakeUnallocated(location.RequiresRegister))
	}
	s.SetOut(location.MakeUnallocated(location.RequiresRegister))
	return s
}

// straightLine builds entry -> exit with the given instructions in entry.
func straightLine(t *testing.T) (*hir.Graph, *hir.Block) {
	t.Helper()
	g := hir.NewGraph()
	b := g.NewBlock()
	e := g.NewBlock()
	g.SetEntry(b.ID)
	g.SetExit(e.ID)
	g.AddEdge(b.ID, e.ID)
	return g, b
}

func TestAllocateSimpleAdd(t *testing.T) {
	g, b := straightLine(t)
	p0 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	p1 := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	add := g.NewInstr(b, hir.OpAdd, hir.Int, 0, p0, p1)
	ret := g.NewInstr(b, hir.OpReturn, hir.Void, 0, add)
	require.NoError(t, g.BuildDominatorTree())

	for _, id := range []hir.ID{p0, p1} {
		s := location.NewSummary(0, location.NoCall)
		s.SetOut(location.MakeUnallocated(location.Any))
		g.InstrAt(id).Locations = s
	}
	g.InstrAt(add).Locations = requireRegisterSummary(2)
	rs := location.NewSummary(1, location.NoCall)
	rs.SetIn(0, location.MakeRegister(0)) // ABI return register
	g.InstrAt(ret).Locations = rs

	res, err := NewAllocator(g, testConfig()).Run()
	require.NoError(t, err)

	as := g.InstrAt(add).Locations
	require.True(t, as.AllConcrete())
	require.Equal(t, location.CoreRegister, as.Out().Kind())
	require.Equal(t, location.CoreRegister, as.In(0).Kind())
	require.Zero(t, res.SpillSlots)

	// The fixed return register demand is satisfied either by assignment or
	// by a feeding move.
	out := as.Out()
	if out.Register() != 0 {
		moves := res.InstrMoves[ret]
		require.Len(t, moves, 1)
		require.Equal(t, out, moves[0].Src)
		require.Equal(t, location.MakeRegister(0), moves[0].Dst)
	}
}

func TestNoTwoLiveValuesShareARegister(t *testing.T) {
	g, b := straightLine(t)
	var vals []hir.ID
	for i := 0; i < 12; i++ {
		p := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
		s := location.NewSummary(0, location.NoCall)
		s.SetOut(location.MakeUnallocated(location.RequiresRegister))
		g.InstrAt(p).Locations = s
		vals = append(vals, p)
	}
	// One consumer keeps them all live to the same point.
	sum := g.NewInstr(b, hir.OpAdd, hir.Int, 0, vals...)
	g.InstrAt(sum).Locations = requireRegisterSummary(len(vals))
	require.NoError(t, g.BuildDominatorTree())

	a := NewAllocator(g, testConfig())
	res, err := a.Run()
	require.NoError(t, err)
	require.Greater(t, res.SpillSlots, int32(0), "12 live values cannot fit 6 registers")

	// Pairwise check over every covered position.
	ivs := a.Liveness().Intervals()
	var sibs []*Interval
	for _, iv := range ivs {
		if iv == nil {
			continue
		}
		for s := iv.Parent(); s != nil; s = s.next {
			sibs = append(sibs, s)
		}
	}
	for i := 0; i < len(sibs); i++ {
		for j := i + 1; j < len(sibs); j++ {
			x, y := sibs[i], sibs[j]
			if x.Value == y.Value || x.IsFloatingPoint() != y.IsFloatingPoint() {
				continue
			}
			at := x.IntersectsAt(y)
			if at == noPosition {
				continue
			}
			xl, xh, xok := regOf(x.Assigned)
			yl, yh, yok := regOf(y.Assigned)
			if xok && yok {
				require.NotEqual(t, xl, yl, "values v%d and v%d share r%d at %d", x.Value, y.Value, xl, at)
				if xh >= 0 {
					require.NotEqual(t, xh, yl)
				}
				if yh >= 0 {
					require.NotEqual(t, xl, yh)
				}
			}
		}
	}
}

func TestPairAllocationIsEvenAligned(t *testing.T) {
	g, b := straightLine(t)
	p := g.NewInstr(b, hir.OpParameter, hir.Long, 0)
	s := location.NewSummary(0, location.NoCall)
	s.SetOut(location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(p).Locations = s
	use := g.NewInstr(b, hir.OpReturn, hir.Void, 0, p)
	us := location.NewSummary(1, location.NoCall)
	us.SetIn(0, location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(use).Locations = us
	require.NoError(t, g.BuildDominatorTree())

	_, err := NewAllocator(g, testConfig()).Run()
	require.NoError(t, err)

	out := g.InstrAt(p).Locations.Out()
	require.Equal(t, location.CoreRegisterPair, out.Kind())
	require.Zero(t, out.PairLow()%2, "pair base must be even")
	require.Equal(t, out.PairLow()+1, out.PairHigh())
}

func TestLoopHeaderExtendsLiveRanges(t *testing.T) {
	g := hir.NewGraph()
	entry := g.NewBlock()
	header := g.NewBlock()
	body := g.NewBlock()
	exit := g.NewBlock()
	g.SetEntry(entry.ID)
	g.SetExit(exit.ID)
	g.AddEdge(entry.ID, header.ID)
	g.AddEdge(header.ID, body.ID)
	g.AddEdge(header.ID, exit.ID)
	g.AddEdge(body.ID, header.ID)

	v := g.NewInstr(entry, hir.OpParameter, hir.Reference, 0)
	g.NewInstr(entry, hir.OpGoto, hir.Void, 0)
	cond := g.NewInstr(header, hir.OpEqual, hir.Bool, 0, v, v)
	g.NewInstr(header, hir.OpIf, hir.Void, 0, cond)
	g.NewInstr(body, hir.OpGoto, hir.Void, 0)
	g.NewInstr(exit, hir.OpReturn, hir.Void, 0, v)
	require.NoError(t, g.BuildDominatorTree())
	require.True(t, g.BlockAt(header.ID).IsLoopHeader())

	l := NewLiveness(g)
	iv := l.Interval(v)
	require.NotNil(t, iv)
	// The value is live at the header, so the whole loop body is covered.
	require.True(t, iv.Covers(l.BlockTo(body.ID)-1))
}

func TestSafepointMasks(t *testing.T) {
	g, b := straightLine(t)
	ref := g.NewInstr(b, hir.OpParameter, hir.Reference, 0)
	rs := location.NewSummary(0, location.NoCall)
	rs.SetOut(location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(ref).Locations = rs

	call := g.NewInstr(b, hir.OpInvokeStatic, hir.Void, 4)
	cs := location.NewSummary(0, location.Call)
	g.InstrAt(call).Locations = cs

	use := g.NewInstr(b, hir.OpReturn, hir.Void, 8, ref)
	us := location.NewSummary(1, location.NoCall)
	us.SetIn(0, location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(use).Locations = us
	require.NoError(t, g.BuildDominatorTree())

	_, err := NewAllocator(g, testConfig()).Run()
	require.NoError(t, err)

	// The reference lives across the call, so it sits in a callee-save
	// register and the stack map must list it.
	home := g.InstrAt(ref).Locations.Out()
	require.Equal(t, location.CoreRegister, home.Kind())
	require.NotZero(t, uint32(1)<<home.Register()&testConfig().CalleeSaveCore)
	require.Equal(t, uint32(1)<<home.Register(), cs.RegisterMask)
	require.Zero(t, cs.StackMask)
}

func TestTempGetsARegister(t *testing.T) {
	g, b := straightLine(t)
	p := g.NewInstr(b, hir.OpParameter, hir.Int, 0)
	ps := location.NewSummary(0, location.NoCall)
	ps.SetOut(location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(p).Locations = ps

	set := g.NewInstr(b, hir.OpInstanceFieldSet, hir.Void, 0, p, p)
	ss := location.NewSummary(2, location.NoCall)
	ss.SetIn(0, location.MakeUnallocated(location.RequiresRegister))
	ss.SetIn(1, location.MakeUnallocated(location.RequiresRegister))
	ss.AddTemp(location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(set).Locations = ss
	require.NoError(t, g.BuildDominatorTree())

	_, err := NewAllocator(g, testConfig()).Run()
	require.NoError(t, err)
	require.Equal(t, location.CoreRegister, ss.Temp(0).Kind())
	// The temp must not alias either input.
	require.NotEqual(t, ss.Temp(0), ss.In(0))
	require.NotEqual(t, ss.Temp(0), ss.In(1))
}

func TestPhiEdgeMoves(t *testing.T) {
	g := hir.NewGraph()
	entry := g.NewBlock()
	left := g.NewBlock()
	right := g.NewBlock()
	merge := g.NewBlock()
	g.SetEntry(entry.ID)
	g.SetExit(merge.ID)
	g.AddEdge(entry.ID, left.ID)
	g.AddEdge(entry.ID, right.ID)
	g.AddEdge(left.ID, merge.ID)
	g.AddEdge(right.ID, merge.ID)

	c1 := g.NewInstr(entry, hir.OpIntConstant, hir.Int, 0)
	g.InstrAt(c1).IntValue = 1
	c2 := g.NewInstr(entry, hir.OpIntConstant, hir.Int, 0)
	g.InstrAt(c2).IntValue = 2
	cond := g.NewInstr(entry, hir.OpEqual, hir.Bool, 0, c1, c2)
	g.NewInstr(entry, hir.OpIf, hir.Void, 0, cond)
	g.NewInstr(left, hir.OpGoto, hir.Void, 0)
	g.NewInstr(right, hir.OpGoto, hir.Void, 0)
	phi := g.NewPhi(merge, hir.Int, 0, c1, c2)
	ret := g.NewInstr(merge, hir.OpReturn, hir.Void, 0, phi)

	for _, id := range []hir.ID{c1, c2} {
		s := location.NewSummary(0, location.NoCall)
		s.SetOut(location.MakeUnallocated(location.RequiresRegister))
		g.InstrAt(id).Locations = s
	}
	es := location.NewSummary(2, location.NoCall)
	es.SetIn(0, location.MakeUnallocated(location.RequiresRegister))
	es.SetIn(1, location.MakeUnallocated(location.RequiresRegister))
	es.SetOut(location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(cond).Locations = es
	us := location.NewSummary(1, location.NoCall)
	us.SetIn(0, location.MakeUnallocated(location.RequiresRegister))
	g.InstrAt(ret).Locations = us
	require.NoError(t, g.BuildDominatorTree())

	a := NewAllocator(g, testConfig())
	res, err := a.Run()
	require.NoError(t, err)

	// The phi has a home; each incoming edge that disagrees with it carries a
	// move ending at the phi's location.
	phiHome := a.homeAt(phi, a.Liveness().BlockFrom(merge.ID))
	require.True(t, phiHome.IsValid())
	for _, pred := range []hir.BlockID{left.ID, right.ID} {
		moves := res.EdgeMoves[Edge{From: pred, To: merge.ID}]
		srcHome := a.homeAt(g.InstrAt(phi).In(indexOf(g.BlockAt(merge.ID).Preds, pred)),
			a.Liveness().BlockTo(pred)-1)
		if srcHome != phiHome {
			require.NotEmpty(t, moves)
			require.Equal(t, phiHome, moves[len(moves)-1].Dst)
		}
	}
}
