package hir

import "fmt"

// ReversePostOrder returns the blocks in reverse post order, computing and
// caching it on first use. Unreachable blocks are absent.
func (g *Graph) ReversePostOrder() []BlockID {
	if g.reversePostOrder != nil {
		return g.reversePostOrder
	}
	visited := make([]bool, len(g.blocks))
	post := make([]BlockID, 0, len(g.blocks))

	// Iterative DFS; the explicit stack carries the next successor index.
	type frame struct {
		id   BlockID
		succ int
	}
	stack := []frame{{id: g.entry}}
	visited[g.entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		b := g.blocks[top.id]
		if top.succ < len(b.Succs) {
			s := b.Succs[top.succ]
			top.succ++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{id: s})
			}
			continue
		}
		post = append(post, top.id)
		stack = stack[:len(stack)-1]
	}

	rpo := make([]BlockID, len(post))
	for i, id := range post {
		rpo[len(post)-1-i] = id
	}
	g.reversePostOrder = rpo
	return rpo
}

// LinearOrder returns the block layout order used for lifetime numbering and
// code emission. It is the reverse post order, which keeps a loop body after
// its header.
func (g *Graph) LinearOrder() []BlockID {
	if g.linearOrder == nil {
		g.linearOrder = g.ReversePostOrder()
	}
	return g.linearOrder
}

// BuildDominatorTree computes immediate dominators for all reachable blocks
// and attaches loop information to natural loops. It must run before the back
// end consumes the graph; the front end normally calls it once at
// construction.
func (g *Graph) BuildDominatorTree() error {
	rpo := g.ReversePostOrder()

	rpoIndex := make([]int, len(g.blocks))
	for i := range rpoIndex {
		rpoIndex[i] = -1
	}
	for i, id := range rpo {
		rpoIndex[id] = i
	}

	for _, b := range g.blocks {
		b.Dominator = NoBlock
	}

	// Cooper/Harvey/Kennedy iterative algorithm.
	intersect := func(a, b BlockID) BlockID {
		for a != b {
			for rpoIndex[a] > rpoIndex[b] {
				a = g.blocks[a].Dominator
			}
			for rpoIndex[b] > rpoIndex[a] {
				b = g.blocks[b].Dominator
			}
		}
		return a
	}

	g.blocks[g.entry].Dominator = g.entry
	for changed := true; changed; {
		changed = false
		for _, id := range rpo {
			if id == g.entry {
				continue
			}
			var idom BlockID = NoBlock
			for _, p := range g.blocks[id].Preds {
				if rpoIndex[p] < 0 || g.blocks[p].Dominator == NoBlock {
					continue // unreachable or not yet processed
				}
				if idom == NoBlock {
					idom = p
				} else {
					idom = intersect(idom, p)
				}
			}
			if idom == NoBlock {
				return fmt.Errorf("hir: block %d has no processed predecessor", id)
			}
			if g.blocks[id].Dominator != idom {
				g.blocks[id].Dominator = idom
				changed = true
			}
		}
	}
	// The entry's "self" dominator was only seed state for intersect.
	g.blocks[g.entry].Dominator = NoBlock

	g.findLoops(rpoIndex)
	return nil
}

// Dominates reports whether block a dominates block b. Valid after
// BuildDominatorTree.
func (g *Graph) Dominates(a, b BlockID) bool {
	for b != NoBlock {
		if a == b {
			return true
		}
		b = g.blocks[b].Dominator
	}
	return false
}

func (g *Graph) findLoops(rpoIndex []int) {
	for _, b := range g.blocks {
		b.Loop = nil
	}
	for _, id := range g.ReversePostOrder() {
		b := g.blocks[id]
		for _, s := range b.Succs {
			if !g.Dominates(s, id) {
				continue
			}
			// id→s is a back edge; s heads a natural loop.
			header := g.blocks[s]
			li := header.Loop
			if li == nil || li.Header != s {
				li = &LoopInfo{Header: s, Blocks: make([]bool, len(g.blocks))}
				li.Blocks[s] = true
				header.Loop = li
			}
			li.BackEdges = append(li.BackEdges, id)
			g.populateLoop(li, id)
		}
	}
}

// populateLoop walks backward from the back-edge source until the header,
// adding every visited block to the loop.
func (g *Graph) populateLoop(li *LoopInfo, from BlockID) {
	if li.Blocks[from] {
		return
	}
	work := []BlockID{from}
	li.Blocks[from] = true
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		b := g.blocks[id]
		if b.Loop == nil {
			b.Loop = li
		}
		for _, p := range b.Preds {
			if !li.Blocks[p] {
				li.Blocks[p] = true
				work = append(work, p)
			}
		}
	}
}
