// Package regalloc implements linear-scan register allocation over SSA live
// intervals, with interval splitting, spilling by furthest next use, and
// even-aligned register pairs for 64-bit values on 32-bit targets.
package regalloc

import (
	"sort"

	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

// ErrResource reports exhaustion of a physical resource: no register pair
// left after exhaustive spilling, or the spill area growing past its limit.
var ErrResource = errors.New("allocation resource exhausted")

// Config describes the register files of the target.
type Config struct {
	NumCoreRegisters int
	NumFpuRegisters  int

	// BlockedCore registers are never allocated (stack pointer, thread
	// register, scratch, pc).
	BlockedCore []int
	BlockedFpu  []int

	// CalleeSaveCore/Fpu are masks of registers preserved across calls.
	// Values live across a call may only be assigned these.
	CalleeSaveCore uint32
	CalleeSaveFpu  uint32

	// MaxSpillSlots caps the spill area, in single slots. Zero means no cap.
	MaxSpillSlots int32

	// SpillSlotBase is the sp-relative byte offset of spill slot 0, decided
	// by the target's frame layout before allocation runs.
	SpillSlotBase int32
}

// Edge identifies a control-flow edge for boundary moves.
type Edge struct {
	From, To hir.BlockID
}

// MoveOp is one pending location transfer, resolved later by the
// parallel-move resolver.
type MoveOp struct {
	Src, Dst location.Location
	Type     hir.Type
}

// Result carries the allocation decisions the code generator consumes.
type Result struct {
	// SpillSlots is the number of single spill slots the frame needs.
	SpillSlots int32
	// UsedCoreRegisters/UsedFpuRegisters are masks of every register the
	// allocation touched, used to compute the callee-save masks.
	UsedCoreRegisters uint32
	UsedFpuRegisters  uint32
	// InstrMoves run immediately before the keyed instruction.
	InstrMoves map[hir.ID][]MoveOp
	// EdgeMoves run on a control-flow edge, after the predecessor's
	// terminator condition is decided.
	EdgeMoves map[Edge][]MoveOp
}

// Allocator runs linear scan over one method.
type Allocator struct {
	graph *hir.Graph
	live  *Liveness
	cfg   Config

	unhandled []*Interval // sorted by start, descending; pop from the tail
	active    []*Interval
	inactive  []*Interval

	blockedCore []bool
	blockedFpu  []bool

	// callPositions are the lifetime positions of instructions that call on
	// their main path, ascending.
	callPositions []int32

	// temps are the scratch intervals created for summary temps.
	temps []*Interval

	res Result
}

// NewAllocator prepares an allocator for g. Liveness is computed here.
func NewAllocator(g *hir.Graph, cfg Config) *Allocator {
	a := &Allocator{
		graph:       g,
		live:        NewLiveness(g),
		cfg:         cfg,
		blockedCore: make([]bool, cfg.NumCoreRegisters),
		blockedFpu:  make([]bool, cfg.NumFpuRegisters),
	}
	for _, r := range cfg.BlockedCore {
		a.blockedCore[r] = true
	}
	for _, r := range cfg.BlockedFpu {
		a.blockedFpu[r] = true
	}
	a.res.InstrMoves = map[hir.ID][]MoveOp{}
	a.res.EdgeMoves = map[Edge][]MoveOp{}
	return a
}

// Liveness exposes the analysis for the code generator's stack-map pass.
func (a *Allocator) Liveness() *Liveness { return a.live }

// Run allocates every interval and resolves moves. After a successful run
// every location summary in the graph is concrete.
func (a *Allocator) Run() (Result, error) {
	a.collectIntervals()
	if err := a.scan(); err != nil {
		return Result{}, err
	}
	a.resolveSummaries()
	a.resolveSplits()
	a.resolveEdges()
	a.recordSafepoints()
	return a.res, nil
}

func (a *Allocator) collectIntervals() {
	for _, iv := range a.live.Intervals() {
		if iv != nil && len(iv.ranges) > 0 {
			a.unhandled = append(a.unhandled, iv)
		}
	}
	// Summary temps become tiny intervals pinned to their instruction.
	for id := 0; id < a.graph.InstructionCount(); id++ {
		in := a.graph.InstrAt(hir.ID(id))
		if in.Locations == nil {
			continue
		}
		pos := in.LifetimePosition
		if in.Locations.WillCall() {
			a.callPositions = append(a.callPositions, pos)
		}
		for t := 0; t < in.Locations.TempCount(); t++ {
			loc := in.Locations.Temp(t)
			if loc.Kind() != location.Unallocated {
				continue // fixed temp, honored as-is
			}
			typ := hir.Int
			if loc.GetPolicy() == location.RequiresFpuRegister {
				typ = hir.Float
			}
			tmp := newInterval(hir.NoID, typ)
			tmp.isTemp = true
			tmp.tempOwner = hir.ID(id)
			tmp.tempIndex = t
			tmp.addRange(pos, pos+1)
			tmp.addUse(pos, true)
			a.temps = append(a.temps, tmp)
			a.unhandled = append(a.unhandled, tmp)
		}
	}
	sort.Slice(a.callPositions, func(i, j int) bool { return a.callPositions[i] < a.callPositions[j] })
	a.sortUnhandled()
}

// sortUnhandled keeps the worklist sorted by start descending, with the
// later-starting of two equal-start intervals popped first.
func (a *Allocator) sortUnhandled() {
	sort.SliceStable(a.unhandled, func(i, j int) bool {
		return a.unhandled[i].Start() > a.unhandled[j].Start()
	})
}

func (a *Allocator) pushUnhandled(iv *Interval) {
	a.unhandled = append(a.unhandled, iv)
	a.sortUnhandled()
}

// crossesCall reports whether the interval stays live across a call on the
// main path, which restricts it to callee-save registers.
func (a *Allocator) crossesCall(iv *Interval) bool {
	for _, p := range a.callPositions {
		if p >= iv.End() {
			return false
		}
		if iv.Covers(p + 1) {
			return true
		}
	}
	return false
}

func (a *Allocator) scan() error {
	for len(a.unhandled) > 0 {
		current := a.unhandled[len(a.unhandled)-1]
		a.unhandled = a.unhandled[:len(a.unhandled)-1]
		pos := current.Start()

		keep := a.active[:0]
		for _, iv := range a.active {
			switch {
			case iv.End() <= pos:
			case !iv.Covers(pos):
				a.inactive = append(a.inactive, iv)
			default:
				keep = append(keep, iv)
			}
		}
		a.active = keep

		keepIn := a.inactive[:0]
		for _, iv := range a.inactive {
			switch {
			case iv.End() <= pos:
			case iv.Covers(pos):
				a.active = append(a.active, iv)
			default:
				keepIn = append(keepIn, iv)
			}
		}
		a.inactive = keepIn

		if a.tryAllocateFree(current) {
			a.active = append(a.active, current)
			continue
		}
		if err := a.allocateBlocked(current); err != nil {
			return err
		}
	}
	return nil
}

// usable reports whether physical register r may hold iv.
func (a *Allocator) usable(iv *Interval, r int) bool {
	if iv.IsFloatingPoint() {
		if r >= a.cfg.NumFpuRegisters || a.blockedFpu[r] {
			return false
		}
		if a.crossesCall(iv) && a.cfg.CalleeSaveFpu&(1<<r) == 0 {
			return false
		}
		return true
	}
	if r >= a.cfg.NumCoreRegisters || a.blockedCore[r] {
		return false
	}
	if a.crossesCall(iv) && a.cfg.CalleeSaveCore&(1<<r) == 0 {
		return false
	}
	return true
}

func regOf(l location.Location) (lo, hi int, ok bool) {
	switch l.Kind() {
	case location.CoreRegister, location.FpuRegister:
		return l.Register(), -1, true
	case location.CoreRegisterPair, location.FpuRegisterPair:
		return l.PairLow(), l.PairHigh(), true
	}
	return 0, 0, false
}

func sameClass(a, b *Interval) bool { return a.IsFloatingPoint() == b.IsFloatingPoint() }

// tryAllocateFree implements the free-register scan: for each candidate
// register compute how long it stays free, pick the register free the
// longest, and split the current interval if the register frees up too soon.
func (a *Allocator) tryAllocateFree(current *Interval) bool {
	n := a.cfg.NumCoreRegisters
	if current.IsFloatingPoint() {
		n = a.cfg.NumFpuRegisters
	}
	freeUntil := make([]int32, n)
	for r := range freeUntil {
		if a.usable(current, r) {
			freeUntil[r] = noPosition
		}
	}
	for _, iv := range a.active {
		if !sameClass(iv, current) {
			continue
		}
		if lo, hi, ok := regOf(iv.Assigned); ok {
			freeUntil[lo] = 0
			if hi >= 0 {
				freeUntil[hi] = 0
			}
		}
	}
	for _, iv := range a.inactive {
		if !sameClass(iv, current) {
			continue
		}
		at := iv.IntersectsAt(current)
		if at == noPosition {
			continue
		}
		if lo, hi, ok := regOf(iv.Assigned); ok {
			if at < freeUntil[lo] {
				freeUntil[lo] = at
			}
			if hi >= 0 && at < freeUntil[hi] {
				freeUntil[hi] = at
			}
		}
	}

	best, bestFree := -1, int32(0)
	if current.NeedsPair() {
		for r := 0; r+1 < n; r += 2 {
			f := min32(freeUntil[r], freeUntil[r+1])
			if f > bestFree {
				best, bestFree = r, f
			}
		}
	} else {
		for r := 0; r < n; r++ {
			if freeUntil[r] > bestFree {
				best, bestFree = r, freeUntil[r]
			}
		}
	}
	if best < 0 || bestFree <= current.Start() {
		return false
	}
	if bestFree < current.End() {
		// Partially free: take it now and retry the remainder later.
		a.pushUnhandled(current.splitAt(bestFree))
	}
	current.Assigned = a.makeRegLocation(current, best)
	a.markUsed(current, best)
	return true
}

// allocateBlocked spills either the current interval or the active interval
// with the furthest next use, per the furthest-next-use heuristic with the
// later-start tie-break.
func (a *Allocator) allocateBlocked(current *Interval) error {
	pos := current.Start()

	var victims []*Interval
	var furthest *Interval
	furthestUse := int32(-1)
	for _, iv := range a.active {
		if !sameClass(iv, current) || iv.isTemp {
			continue
		}
		lo, _, ok := regOf(iv.Assigned)
		if !ok || !a.usable(current, lo) {
			continue
		}
		u := iv.firstUseAfter(pos)
		if u > furthestUse || (u == furthestUse && furthest != nil && iv.Start() > furthest.Start()) {
			furthest, furthestUse = iv, u
		}
	}

	currentUse := current.firstRegisterUseAfter(pos)
	if furthest == nil || currentUse > furthestUse {
		// Everything else is needed sooner: spill current itself.
		if err := a.assignSpillSlot(current); err != nil {
			return err
		}
		current.Assigned = current.spillLocation(a.cfg.SpillSlotBase)
		switch {
		case currentUse == noPosition:
			// Never needs a register; it lives on the stack.
		case currentUse > pos:
			a.pushUnhandled(current.splitAt(currentUse))
		default:
			return errors.Wrap(ErrResource, "no usable register at position %d", pos)
		}
		a.active = append(a.active, current)
		return nil
	}

	victims = append(victims, furthest)
	lo, hi, _ := regOf(furthest.Assigned)
	if current.NeedsPair() && hi < 0 {
		// Need the partner register of an even-aligned base too.
		base := lo &^ 1
		for _, iv := range a.active {
			if iv == furthest || !sameClass(iv, current) {
				continue
			}
			l, h, ok := regOf(iv.Assigned)
			if ok && (l == base || l == base+1 || h == base+1) {
				victims = append(victims, iv)
			}
		}
		lo = base
	} else if hi >= 0 {
		lo = lo &^ 1
	}

	for _, v := range victims {
		if err := a.spillAt(v, pos); err != nil {
			return err
		}
	}
	if !a.registerFreeFor(current, lo) {
		return errors.Wrap(ErrResource, "no register pair available at position %d", pos)
	}
	// An inactive interval parked in this register may resume inside
	// current's range; give current the register only until then.
	cut := noPosition
	for _, iv := range a.inactive {
		if !sameClass(iv, current) {
			continue
		}
		l, h, ok := regOf(iv.Assigned)
		if !ok || (l != lo && h != lo && !(current.NeedsPair() && (l == lo+1 || h == lo+1))) {
			continue
		}
		if at := iv.IntersectsAt(current); at < cut {
			cut = at
		}
	}
	if cut != noPosition && cut < current.End() {
		a.pushUnhandled(current.splitAt(cut))
	}
	current.Assigned = a.makeRegLocation(current, lo)
	a.markUsed(current, lo)
	a.active = append(a.active, current)
	return nil
}

// spillAt splits iv at pos, parks the tail on the stack, and requeues the
// part after its next register use.
func (a *Allocator) spillAt(iv *Interval, pos int32) error {
	if err := a.assignSpillSlot(iv); err != nil {
		return err
	}
	tail := iv
	if iv.Start() < pos {
		// iv keeps its register until pos; only the tail moves to the stack.
		tail = iv.splitAt(pos)
	} else {
		a.removeActive(iv)
	}
	tail.Assigned = tail.spillLocation(a.cfg.SpillSlotBase)
	if use := tail.firstRegisterUseAfter(pos); use != noPosition && use > tail.Start() {
		a.pushUnhandled(tail.splitAt(use))
	}
	if tail != iv {
		a.active = append(a.active, tail)
	}
	return nil
}

func (a *Allocator) removeActive(iv *Interval) {
	for i, v := range a.active {
		if v == iv {
			a.active = append(a.active[:i], a.active[i+1:]...)
			return
		}
	}
}

// registerFreeFor re-checks that base (and base+1 for pairs) is no longer
// held by any active interval of the same class.
func (a *Allocator) registerFreeFor(current *Interval, base int) bool {
	if !a.usable(current, base) || (current.NeedsPair() && !a.usable(current, base+1)) {
		return false
	}
	for _, iv := range a.active {
		if !sameClass(iv, current) {
			continue
		}
		lo, hi, ok := regOf(iv.Assigned)
		if !ok {
			continue
		}
		if lo == base || hi == base || (current.NeedsPair() && (lo == base+1 || hi == base+1)) {
			return false
		}
	}
	return true
}

func (a *Allocator) makeRegLocation(iv *Interval, base int) location.Location {
	switch {
	case iv.IsFloatingPoint() && iv.NeedsPair():
		return location.MakeFpuRegisterPair(base, base+1)
	case iv.IsFloatingPoint():
		return location.MakeFpuRegister(base)
	case iv.NeedsPair():
		return location.MakeRegisterPair(base, base+1)
	default:
		return location.MakeRegister(base)
	}
}

func (a *Allocator) markUsed(iv *Interval, base int) {
	mask := uint32(1) << base
	if iv.NeedsPair() {
		mask |= 1 << (base + 1)
	}
	if iv.IsFloatingPoint() {
		a.res.UsedFpuRegisters |= mask
	} else {
		a.res.UsedCoreRegisters |= mask
	}
}

// assignSpillSlot reserves the value's slot once; 64-bit values take an
// even-aligned double slot.
func (a *Allocator) assignSpillSlot(iv *Interval) error {
	p := iv.Parent()
	if p.SpillSlot >= 0 {
		return nil
	}
	slot := a.res.SpillSlots
	if iv.NeedsPair() {
		slot = (slot + 1) &^ 1
		a.res.SpillSlots = slot + 2
	} else {
		a.res.SpillSlots = slot + 1
	}
	if a.cfg.MaxSpillSlots > 0 && a.res.SpillSlots > a.cfg.MaxSpillSlots {
		return errors.Wrap(ErrResource, "spill area overflow: %d slots", a.res.SpillSlots)
	}
	iv.setSpillSlot(slot)
	return nil
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
