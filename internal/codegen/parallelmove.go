package codegen

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
	"github.com/Dreams-N/platform-art-sub001/internal/regalloc"
)

// MoveEmitter is the primitive-move surface a target generator provides to
// the parallel-move resolver.
type MoveEmitter interface {
	// EmitMove transfers one value between two concrete locations.
	EmitMove(src, dst location.Location, typ hir.Type)
	// ScratchLocation returns the architecturally reserved scratch for
	// values of the given type, guaranteed not to participate in any
	// resolved move set. Wide types get a pair-shaped scratch.
	ScratchLocation(typ hir.Type) location.Location
}

// overlaps reports whether two locations share storage, counting each half of
// a register pair and each word of a double stack slot.
func overlaps(a, b location.Location) bool {
	regsOf := func(l location.Location) (lo, hi int, fpu, ok bool) {
		switch l.Kind() {
		case location.CoreRegister:
			return l.Register(), -1, false, true
		case location.FpuRegister:
			return l.Register(), -1, true, true
		case location.CoreRegisterPair:
			return l.PairLow(), l.PairHigh(), false, true
		case location.FpuRegisterPair:
			return l.PairLow(), l.PairHigh(), true, true
		case location.QuickParameter:
			return l.QuickParameterRegister(), -1, false, true
		}
		return 0, 0, false, false
	}
	al, ah, af, aok := regsOf(a)
	bl, bh, bf, bok := regsOf(b)
	if aok && bok && af == bf {
		if al == bl || al == bh || (ah >= 0 && (ah == bl || ah == bh)) {
			return true
		}
	}
	// Stack offsets are bytes; a double slot covers two words.
	slots := func(l location.Location) (lo, hi int32, ok bool) {
		switch l.Kind() {
		case location.StackSlot:
			return l.StackOffset(), -1, true
		case location.DoubleStackSlot:
			return l.StackOffset(), l.StackOffset() + 4, true
		case location.QuickParameter:
			return l.QuickParameterStackOffset(), -1, true
		}
		return 0, -1, false
	}
	as, ase, asok := slots(a)
	bs, bse, bsok := slots(b)
	if asok && bsok {
		if as == bs || as == bse || (ase >= 0 && (ase == bs || ase == bse)) {
			return true
		}
	}
	return false
}

// ResolveParallelMoves serializes a set of simultaneous moves: moves whose
// destination blocks no other pending source go first; a remaining cycle is
// broken by parking one source in the scratch register.
func ResolveParallelMoves(em MoveEmitter, ops []regalloc.MoveOp) error {
	pending := make([]regalloc.MoveOp, 0, len(ops))
	var constants []regalloc.MoveOp
	for _, m := range ops {
		if m.Src == m.Dst {
			continue
		}
		// Constant sources cannot block anything; performing them after all
		// location shuffles keeps them out of cycle breaking entirely.
		if m.Src.IsConstant() {
			constants = append(constants, m)
			continue
		}
		pending = append(pending, m)
	}
	for len(pending) > 0 {
		progressed := false
		for i := 0; i < len(pending); i++ {
			m := pending[i]
			blocked := false
			for j, o := range pending {
				if j != i && overlaps(o.Src, m.Dst) {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			em.EmitMove(m.Src, m.Dst, m.Type)
			pending = append(pending[:i], pending[i+1:]...)
			i--
			progressed = true
		}
		if progressed {
			continue
		}
		// Every remaining move is part of a cycle. Break it at the first
		// move: park its source in the scratch, which frees its source as a
		// destination for the rest of the cycle.
		m := &pending[0]
		scratch := em.ScratchLocation(m.Type)
		if overlaps(scratch, m.Src) || overlaps(scratch, m.Dst) {
			return errors.New("scratch register participates in move cycle: %v -> %v", m.Src, m.Dst)
		}
		em.EmitMove(m.Src, scratch, m.Type)
		m.Src = scratch
	}
	for _, m := range constants {
		em.EmitMove(m.Src, m.Dst, m.Type)
	}
	return nil
}
