package hir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDiamond creates
//
//	entry → header → {left, right} → merge → exit
//
// with an If in header and a phi in merge.
func buildDiamond(t *testing.T) (*Graph, []*Block) {
	g := NewGraph()
	entry := g.NewBlock()
	header := g.NewBlock()
	left := g.NewBlock()
	right := g.NewBlock()
	merge := g.NewBlock()
	exit := g.NewBlock()
	g.SetEntry(entry.ID)
	g.SetExit(exit.ID)

	p := g.NewInstr(entry, OpParameter, Int, 0)
	g.NewInstr(entry, OpGoto, Void, 0)

	zero := g.NewInstr(header, OpIntConstant, Int, 0)
	cond := g.NewInstr(header, OpEqual, Bool, 1, p, zero)
	g.NewInstr(header, OpIf, Void, 1, cond)

	c1 := g.NewInstr(left, OpIntConstant, Int, 2)
	g.NewInstr(left, OpGoto, Void, 2)
	c2 := g.NewInstr(right, OpIntConstant, Int, 3)
	g.NewInstr(right, OpGoto, Void, 3)

	phi := g.NewPhi(merge, Int, 4, c1, c2)
	g.NewInstr(merge, OpReturn, Void, 4, phi)

	g.AddEdge(entry.ID, header.ID)
	g.AddEdge(header.ID, left.ID)
	g.AddEdge(header.ID, right.ID)
	g.AddEdge(left.ID, merge.ID)
	g.AddEdge(right.ID, merge.ID)
	g.AddEdge(merge.ID, exit.ID)

	require.NoError(t, g.Validate())
	require.NoError(t, g.BuildDominatorTree())
	return g, []*Block{entry, header, left, right, merge, exit}
}

func TestGraph_ReversePostOrder(t *testing.T) {
	g, bs := buildDiamond(t)
	rpo := g.ReversePostOrder()
	require.Equal(t, len(bs), len(rpo))
	require.Equal(t, bs[0].ID, rpo[0], "entry first")
	pos := make(map[BlockID]int)
	for i, id := range rpo {
		pos[id] = i
	}
	require.Less(t, pos[bs[1].ID], pos[bs[2].ID])
	require.Less(t, pos[bs[1].ID], pos[bs[3].ID])
	require.Less(t, pos[bs[2].ID], pos[bs[4].ID])
	require.Less(t, pos[bs[3].ID], pos[bs[4].ID])
}

func TestGraph_Dominators(t *testing.T) {
	g, bs := buildDiamond(t)
	entry, header, left, right, merge, exit := bs[0], bs[1], bs[2], bs[3], bs[4], bs[5]

	require.Equal(t, NoBlock, entry.Dominator)
	require.Equal(t, entry.ID, header.Dominator)
	require.Equal(t, header.ID, left.Dominator)
	require.Equal(t, header.ID, right.Dominator)
	require.Equal(t, header.ID, merge.Dominator, "merge is dominated by the branch, not a side")
	require.Equal(t, merge.ID, exit.Dominator)

	require.True(t, g.Dominates(entry.ID, exit.ID))
	require.False(t, g.Dominates(left.ID, merge.ID))
}

func TestGraph_Loops(t *testing.T) {
	// entry → header ⇄ body, header → exit
	g := NewGraph()
	entry := g.NewBlock()
	header := g.NewBlock()
	body := g.NewBlock()
	exit := g.NewBlock()
	g.SetEntry(entry.ID)
	g.SetExit(exit.ID)

	g.NewInstr(entry, OpGoto, Void, 0)
	sc := g.NewInstr(header, OpSuspendCheck, Void, 1)
	c := g.NewInstr(header, OpIntConstant, Int, 1)
	g.NewInstr(header, OpIf, Void, 1, g.NewInstr(header, OpEqual, Bool, 1, c, c))
	g.NewInstr(body, OpGoto, Void, 2)

	g.AddEdge(entry.ID, header.ID)
	g.AddEdge(header.ID, body.ID)
	g.AddEdge(header.ID, exit.ID)
	g.AddEdge(body.ID, header.ID)

	require.NoError(t, g.BuildDominatorTree())

	require.True(t, header.IsLoopHeader())
	require.Equal(t, sc, header.SuspendCheck, "loop header carries its suspend check")
	li := header.Loop
	require.NotNil(t, li)
	require.Equal(t, []BlockID{body.ID}, li.BackEdges)
	require.True(t, li.Contains(body.ID))
	require.False(t, li.Contains(entry.ID))
	require.False(t, li.Contains(exit.ID))
	require.Equal(t, li, body.Loop)
}

func TestGraph_DefUse(t *testing.T) {
	g, _ := buildDiamond(t)
	g.BuildDefUse()

	var param, cond ID = 0, 3
	p := g.InstrAt(param)
	require.Equal(t, OpParameter, p.Op)
	require.True(t, p.HasSingleUse())
	require.Equal(t, cond, p.Uses()[0])
}

func TestGraph_ValidateErrors(t *testing.T) {
	g := NewGraph()
	b := g.NewBlock()
	exit := g.NewBlock()
	g.SetEntry(b.ID)
	g.SetExit(exit.ID)
	require.Error(t, g.Validate(), "empty block has no terminator")

	g.NewInstr(b, OpIntConstant, Int, 0)
	require.Error(t, g.Validate(), "block must end in control flow")
}
