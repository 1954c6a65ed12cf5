package regalloc

import (
	"math/bits"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

// bitSet is a dense bitmap over instruction ids.
type bitSet []uint64

func newBitSet(n int) bitSet { return make(bitSet, (n+63)/64) }

func (b bitSet) set(i hir.ID)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitSet) clear(i hir.ID)    { b[i/64] &^= 1 << (uint(i) % 64) }
func (b bitSet) has(i hir.ID) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitSet) or(o bitSet) {
	for i := range o {
		b[i] |= o[i]
	}
}

func (b bitSet) forEach(fn func(hir.ID)) {
	for w, word := range b {
		for word != 0 {
			fn(hir.ID(w*64 + bits.TrailingZeros64(word)))
			word &= word - 1
		}
	}
}

// Liveness numbers the graph in linear order and builds one live interval per
// SSA value. Loop headers extend every value live at the header across the
// whole loop body, so a single backward pass suffices.
type Liveness struct {
	graph *hir.Graph
	order []hir.BlockID

	// blockFrom/blockTo delimit each block's lifetime positions, half open.
	blockFrom, blockTo []int32
	liveIn             []bitSet

	// intervals is indexed by instruction id; nil for void instructions.
	intervals []*Interval

	// safepoints are the positions of instructions that may call into the
	// runtime, in ascending order.
	safepoints []hir.ID
}

// NewLiveness analyzes g, which must already have its dominator tree and
// location summaries built.
func NewLiveness(g *hir.Graph) *Liveness {
	l := &Liveness{
		graph:     g,
		order:     g.LinearOrder(),
		blockFrom: make([]int32, g.BlockCount()),
		blockTo:   make([]int32, g.BlockCount()),
		liveIn:    make([]bitSet, g.BlockCount()),
		intervals: make([]*Interval, g.InstructionCount()),
	}
	l.numberInstructions()
	l.computeLiveRanges()
	return l
}

// Interval returns the live interval of value id, nil for void values.
func (l *Liveness) Interval(id hir.ID) *Interval { return l.intervals[id] }

// Intervals returns every parent interval, indexed by value id.
func (l *Liveness) Intervals() []*Interval { return l.intervals }

// Safepoints returns the ids of instructions needing a stack map.
func (l *Liveness) Safepoints() []hir.ID { return l.safepoints }

// BlockFrom returns the first lifetime position of block id.
func (l *Liveness) BlockFrom(id hir.BlockID) int32 { return l.blockFrom[id] }

// BlockTo returns the position one past block id's last instruction.
func (l *Liveness) BlockTo(id hir.BlockID) int32 { return l.blockTo[id] }

// LiveIn returns the set of values live at the entry of block id.
func (l *Liveness) LiveIn(id hir.BlockID) bitSet { return l.liveIn[id] }

func (l *Liveness) numberInstructions() {
	pos := int32(0)
	for _, bid := range l.order {
		b := l.graph.BlockAt(bid)
		l.blockFrom[bid] = pos
		for _, phi := range b.Phis {
			l.graph.InstrAt(phi).LifetimePosition = pos
		}
		pos += 2
		for _, id := range b.Instrs {
			in := l.graph.InstrAt(id)
			in.LifetimePosition = pos
			if in.Locations != nil && in.Locations.CanCall() {
				l.safepoints = append(l.safepoints, id)
			}
			pos += 2
		}
		l.blockTo[bid] = pos
	}
}

func (l *Liveness) interval(id hir.ID) *Interval {
	if l.intervals[id] == nil {
		in := l.graph.InstrAt(id)
		l.intervals[id] = newInterval(id, in.Type)
	}
	return l.intervals[id]
}

// computeLiveRanges is the single backward pass: live-out of a block is the
// union of its successors' live-ins plus the phi operands flowing out along
// each edge.
func (l *Liveness) computeLiveRanges() {
	n := l.graph.InstructionCount()
	for i := len(l.order) - 1; i >= 0; i-- {
		bid := l.order[i]
		b := l.graph.BlockAt(bid)
		from, to := l.blockFrom[bid], l.blockTo[bid]

		live := newBitSet(n)
		for _, succ := range b.Succs {
			sb := l.graph.BlockAt(succ)
			if l.liveIn[succ] != nil {
				live.or(l.liveIn[succ])
			}
			// A successor phi is defined there, not live through the edge,
			// but its operand from this block is.
			predIndex := indexOf(sb.Preds, bid)
			for _, phi := range sb.Phis {
				live.clear(phi)
				pin := l.graph.InstrAt(phi)
				op := pin.In(predIndex)
				if l.graph.InstrAt(op).Op.IsConstant() {
					// Materialized by the edge move, not allocated.
					continue
				}
				live.set(op)
				l.interval(op).addUse(to-1, false)
			}
		}

		live.forEach(func(id hir.ID) {
			l.interval(id).addRange(from, to)
		})

		for j := len(b.Instrs) - 1; j >= 0; j-- {
			in := l.graph.InstrAt(b.Instrs[j])
			pos := in.LifetimePosition
			if in.ProducesValue() && !in.EmittedAtUseSite {
				iv := l.interval(b.Instrs[j])
				iv.setFrom(pos + 1)
				if outRequiresRegister(in) {
					// The emitter writes a register; the value may spill
					// only past the definition.
					iv.addUse(pos+1, true)
				}
				live.clear(b.Instrs[j])
			}
			for k := 0; k < in.InputCount(); k++ {
				op := in.In(k)
				opIn := l.graph.InstrAt(op)
				if !opIn.ProducesValue() {
					continue
				}
				if opIn.EmittedAtUseSite {
					// The operand is generated here, not read: what this
					// instruction really consumes are the operand's inputs.
					for k2 := 0; k2 < opIn.InputCount(); k2++ {
						op2 := opIn.In(k2)
						if !l.graph.InstrAt(op2).ProducesValue() {
							continue
						}
						if opIn.Locations != nil && k2 < opIn.Locations.InputCount() &&
							opIn.Locations.In(k2).IsConstant() {
							continue
						}
						iv := l.interval(op2)
						iv.addRange(from, pos+1)
						iv.addUse(pos, inputRequiresRegister(opIn, k2))
						live.set(op2)
					}
					continue
				}
				if in.Locations != nil && k < in.Locations.InputCount() &&
					in.Locations.In(k).IsConstant() {
					// The builder folded the constant into the operand.
					continue
				}
				iv := l.interval(op)
				iv.addRange(from, pos+1)
				iv.addUse(pos, inputRequiresRegister(in, k))
				live.set(op)
			}
		}

		for _, phi := range b.Phis {
			l.interval(phi).setFrom(from)
			live.clear(phi)
		}

		if b.IsLoopHeader() {
			end := l.loopEnd(b.Loop)
			live.forEach(func(id hir.ID) {
				l.interval(id).appendRange(from, end)
			})
		}
		l.liveIn[bid] = live
	}
}

// loopEnd returns the position one past the last block of the loop in linear
// order.
func (l *Liveness) loopEnd(loop *hir.LoopInfo) int32 {
	end := int32(0)
	for id, in := range loop.Blocks {
		if in && l.blockTo[id] > end {
			end = l.blockTo[id]
		}
	}
	return end
}

// outRequiresRegister reports whether the definition itself must land in a
// register, as opposed to values the generator feeds through a move.
func outRequiresRegister(in *hir.Instruction) bool {
	if in.Locations == nil {
		return false
	}
	out := in.Locations.Out()
	if out.Kind() == location.Unallocated {
		p := out.GetPolicy()
		return p == location.RequiresRegister || p == location.RequiresFpuRegister
	}
	return false
}

// inputRequiresRegister consults the location summary the builder attached.
func inputRequiresRegister(in *hir.Instruction, idx int) bool {
	if in.Locations == nil || idx >= in.Locations.InputCount() {
		return false
	}
	loc := in.Locations.In(idx)
	if loc.Kind() == location.Unallocated {
		p := loc.GetPolicy()
		return p == location.RequiresRegister || p == location.RequiresFpuRegister
	}
	return loc.IsRegisterKind()
}

func indexOf(ids []hir.BlockID, want hir.BlockID) int {
	for i, id := range ids {
		if id == want {
			return i
		}
	}
	return -1
}
