package regalloc

import (
	"math"
	"sort"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

// constantLocation builds the immediate location for a constant-producing
// instruction.
func constantLocation(in *hir.Instruction) location.Location {
	switch in.Op {
	case hir.OpIntConstant:
		return location.MakeConstantInt(int32(in.IntValue))
	case hir.OpLongConstant:
		return location.MakeConstantLong(in.IntValue)
	case hir.OpFloatConstant:
		return location.MakeConstantFloat(math.Float32frombits(uint32(in.IntValue)))
	case hir.OpDoubleConstant:
		return location.MakeConstantDouble(math.Float64frombits(uint64(in.IntValue)))
	case hir.OpNullConstant:
		return location.MakeConstantInt(0)
	}
	return location.Location{}
}

// homeAt returns where value id lives at pos: its interval sibling's
// assignment, or its constant form for constants never materialized.
func (a *Allocator) homeAt(id hir.ID, pos int32) location.Location {
	iv := a.live.Interval(id)
	if iv == nil || len(iv.Parent().ranges) == 0 {
		return constantLocation(a.graph.InstrAt(id))
	}
	if s := iv.siblingAt(pos); s != nil {
		return s.Assigned
	}
	return constantLocation(a.graph.InstrAt(id))
}

// resolveSummaries rewrites every unallocated summary slot with the decided
// location. Fixed slots keep their demand and get a feeding move instead.
func (a *Allocator) resolveSummaries() {
	for _, bid := range a.live.order {
		b := a.graph.BlockAt(bid)
		for _, id := range b.Instrs {
			in := a.graph.InstrAt(id)
			s := in.Locations
			if s == nil {
				continue
			}
			pos := in.LifetimePosition
			for k := 0; k < s.InputCount() && k < in.InputCount(); k++ {
				home := a.homeAt(in.In(k), pos)
				want := s.In(k)
				if want.Kind() == location.Unallocated {
					s.SetIn(k, home)
					continue
				}
				// Fixed input (ABI register): feed it right before the
				// instruction.
				if want != home {
					a.res.InstrMoves[id] = append(a.res.InstrMoves[id],
						MoveOp{Src: home, Dst: want, Type: a.graph.InstrAt(in.In(k)).Type})
				}
			}
			if in.ProducesValue() && s.Out().Kind() == location.Unallocated {
				s.SetOut(a.homeAt(id, pos+1))
			}
		}
	}
	// Temps were allocated as tiny intervals; write them back.
	for _, tmp := range a.temps {
		a.graph.InstrAt(tmp.tempOwner).Locations.SetTemp(tmp.tempIndex, tmp.Assigned)
	}
}

// resolveSplits connects sibling intervals whose locations differ at an
// intra-block split boundary.
func (a *Allocator) resolveSplits() {
	type slot struct {
		pos int32
		id  hir.ID
	}
	var slots []slot
	for _, bid := range a.live.order {
		for _, id := range a.graph.BlockAt(bid).Instrs {
			slots = append(slots, slot{a.graph.InstrAt(id).LifetimePosition, id})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].pos < slots[j].pos })

	for _, iv := range a.live.Intervals() {
		if iv == nil {
			continue
		}
		for s := iv.Parent(); s != nil && s.next != nil; s = s.next {
			nxt := s.next
			if s.End() != nxt.Start() || s.Assigned == nxt.Assigned {
				continue
			}
			p := nxt.Start()
			if a.isBlockBoundary(p) {
				continue // handled by edge resolution
			}
			// Attach the move to the first instruction at or after the split.
			i := sort.Search(len(slots), func(i int) bool { return slots[i].pos >= p })
			if i == len(slots) {
				continue
			}
			at := slots[i].id
			a.res.InstrMoves[at] = append(a.res.InstrMoves[at],
				MoveOp{Src: s.Assigned, Dst: nxt.Assigned, Type: iv.Type})
		}
	}
}

func (a *Allocator) isBlockBoundary(pos int32) bool {
	for _, bid := range a.live.order {
		if a.live.blockFrom[bid] == pos || a.live.blockTo[bid] == pos {
			return true
		}
	}
	return false
}

// resolveEdges inserts moves on control-flow edges: phi inputs flowing in,
// and values whose home differs between the end of the predecessor and the
// start of the successor.
func (a *Allocator) resolveEdges() {
	for _, bid := range a.live.order {
		b := a.graph.BlockAt(bid)
		for _, succ := range b.Succs {
			sb := a.graph.BlockAt(succ)
			edge := Edge{From: bid, To: succ}
			outPos := a.live.blockTo[bid] - 1
			inPos := a.live.blockFrom[succ]

			predIndex := indexOf(sb.Preds, bid)
			for _, phi := range sb.Phis {
				pin := a.graph.InstrAt(phi)
				src := a.homeAt(pin.In(predIndex), outPos)
				dst := a.homeAt(phi, inPos)
				if src != dst {
					a.res.EdgeMoves[edge] = append(a.res.EdgeMoves[edge],
						MoveOp{Src: src, Dst: dst, Type: pin.Type})
				}
			}

			a.live.LiveIn(succ).forEach(func(id hir.ID) {
				iv := a.live.Interval(id)
				if iv == nil {
					return
				}
				src := a.homeAt(id, outPos)
				dst := a.homeAt(id, inPos)
				if src.IsValid() && dst.IsValid() && src != dst {
					a.res.EdgeMoves[edge] = append(a.res.EdgeMoves[edge],
						MoveOp{Src: src, Dst: dst, Type: iv.Type})
				}
			})
		}
	}
}

// recordSafepoints fills each safepoint summary's reference masks: which
// core registers and which spill slots hold references at that position.
func (a *Allocator) recordSafepoints() {
	for _, id := range a.live.Safepoints() {
		in := a.graph.InstrAt(id)
		s := in.Locations
		pos := in.LifetimePosition
		for vid, iv := range a.live.Intervals() {
			if iv == nil || hir.ID(vid) == id {
				continue
			}
			sib := iv.siblingAt(pos)
			if sib == nil {
				continue
			}
			lo, hi, isReg := regOf(sib.Assigned)
			if isReg {
				mask := uint32(1) << lo
				if hi >= 0 {
					mask |= 1 << hi
				}
				if iv.IsFloatingPoint() {
					s.LiveFpuRegisters |= mask
				} else {
					s.LiveCoreRegisters |= mask
					if iv.Type == hir.Reference {
						s.RegisterMask |= 1 << lo
					}
				}
				continue
			}
			if sib.Assigned.HasStackComponent() && iv.Type == hir.Reference {
				s.StackMask |= 1 << uint(sib.SpillSlot)
			}
		}
	}
}
