package regalloc

import (
	"fmt"

	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

// noPosition sorts after every real lifetime position.
const noPosition int32 = 1 << 30

// Range is a half-open [Start, End) span of lifetime positions.
type Range struct {
	Start, End int32
}

// Use is one consumption of a value, recorded while building intervals.
type Use struct {
	Position         int32
	RequiresRegister bool
}

// Interval is the live interval of a single SSA value: the positions where
// the value must be materialized somewhere, plus its uses. Splitting produces
// sibling intervals chained through next.
type Interval struct {
	Value hir.ID
	Type  hir.Type

	// ranges are sorted ascending and non-overlapping; liveness builds them
	// back to front.
	ranges []Range
	uses   []Use

	// Assigned is the home location of this sibling after allocation.
	Assigned location.Location
	// SpillSlot is the base spill slot of the whole value, shared by all
	// siblings, or -1 while the value never hits the stack.
	SpillSlot int32

	// isTemp marks a scratch interval created for a summary temp rather than
	// an SSA value; tempOwner/tempIndex locate the summary slot.
	isTemp    bool
	tempOwner hir.ID
	tempIndex int

	parent *Interval
	next   *Interval
}

func newInterval(v hir.ID, t hir.Type) *Interval {
	return &Interval{Value: v, Type: t, SpillSlot: -1}
}

// IsFloatingPoint reports whether the value allocates from the FPR file.
func (iv *Interval) IsFloatingPoint() bool { return iv.Type.IsFloatingPoint() }

// NeedsPair reports whether the value occupies two consecutive registers.
func (iv *Interval) NeedsPair() bool { return iv.Type.Is64Bit() }

// Parent returns the first sibling of the value.
func (iv *Interval) Parent() *Interval {
	if iv.parent != nil {
		return iv.parent
	}
	return iv
}

// Start returns the first position covered.
func (iv *Interval) Start() int32 {
	if len(iv.ranges) == 0 {
		return noPosition
	}
	return iv.ranges[0].Start
}

// End returns the position one past the last covered.
func (iv *Interval) End() int32 {
	if len(iv.ranges) == 0 {
		return noPosition
	}
	return iv.ranges[len(iv.ranges)-1].End
}

// Covers reports whether pos falls inside one of the ranges.
func (iv *Interval) Covers(pos int32) bool {
	for _, r := range iv.ranges {
		if pos < r.Start {
			return false
		}
		if pos < r.End {
			return true
		}
	}
	return false
}

// IntersectsAt returns the first position covered by both intervals, or
// noPosition when they are disjoint.
func (iv *Interval) IntersectsAt(other *Interval) int32 {
	i, j := 0, 0
	for i < len(iv.ranges) && j < len(other.ranges) {
		a, b := iv.ranges[i], other.ranges[j]
		if a.End <= b.Start {
			i++
		} else if b.End <= a.Start {
			j++
		} else {
			if a.Start > b.Start {
				return a.Start
			}
			return b.Start
		}
	}
	return noPosition
}

// addRange prepends [start, end), merging with the current first range when
// they touch. Liveness walks blocks backward, so ranges arrive back to front.
func (iv *Interval) addRange(start, end int32) {
	if len(iv.ranges) > 0 && iv.ranges[0].Start <= end {
		if start < iv.ranges[0].Start {
			iv.ranges[0].Start = start
		}
		if end > iv.ranges[0].End {
			iv.ranges[0].End = end
		}
		return
	}
	iv.ranges = append([]Range{{start, end}}, iv.ranges...)
}

// appendRange extends the interval past its current end, used for the
// loop-header extension where the whole loop body is appended at once.
func (iv *Interval) appendRange(start, end int32) {
	if len(iv.ranges) > 0 && iv.ranges[len(iv.ranges)-1].End >= start {
		if end > iv.ranges[len(iv.ranges)-1].End {
			iv.ranges[len(iv.ranges)-1].End = end
		}
		return
	}
	iv.ranges = append(iv.ranges, Range{start, end})
}

// setFrom trims the first range to begin at the definition position.
func (iv *Interval) setFrom(pos int32) {
	if len(iv.ranges) == 0 {
		// Dead definition: keep the value alive for its own instruction.
		iv.ranges = []Range{{pos, pos + 1}}
		return
	}
	if pos > iv.ranges[0].Start {
		iv.ranges[0].Start = pos
	}
}

// addUse prepends a use; uses arrive back to front like ranges.
func (iv *Interval) addUse(pos int32, requiresRegister bool) {
	iv.uses = append([]Use{{Position: pos, RequiresRegister: requiresRegister}}, iv.uses...)
}

// firstUseAfter returns the position of the first use at or after pos, or
// noPosition.
func (iv *Interval) firstUseAfter(pos int32) int32 {
	for _, u := range iv.uses {
		if u.Position >= pos {
			return u.Position
		}
	}
	return noPosition
}

// firstRegisterUseAfter returns the first use at or after pos that demands a
// register, or noPosition.
func (iv *Interval) firstRegisterUseAfter(pos int32) int32 {
	for _, u := range iv.uses {
		if u.Position >= pos && u.RequiresRegister {
			return u.Position
		}
	}
	return noPosition
}

// splitAt cuts the interval at pos and returns the sibling covering
// [pos, End). Uses at or after pos move to the sibling.
func (iv *Interval) splitAt(pos int32) *Interval {
	sib := &Interval{
		Value:     iv.Value,
		Type:      iv.Type,
		SpillSlot: iv.SpillSlot,
		parent:    iv.Parent(),
	}
	for i, r := range iv.ranges {
		switch {
		case r.End <= pos:
			continue
		case r.Start >= pos:
			sib.ranges = append(sib.ranges, iv.ranges[i:]...)
			iv.ranges = iv.ranges[:i]
		default:
			sib.ranges = append(sib.ranges, Range{pos, r.End})
			sib.ranges = append(sib.ranges, iv.ranges[i+1:]...)
			iv.ranges = append(iv.ranges[:i], Range{r.Start, pos})
		}
		break
	}
	for i, u := range iv.uses {
		if u.Position >= pos {
			sib.uses = append(sib.uses, iv.uses[i:]...)
			iv.uses = iv.uses[:i]
			break
		}
	}
	sib.next = iv.next
	iv.next = sib
	return sib
}

// siblingAt returns the sibling of this value covering pos. The receiver may
// be any sibling.
func (iv *Interval) siblingAt(pos int32) *Interval {
	for s := iv.Parent(); s != nil; s = s.next {
		if s.Covers(pos) {
			return s
		}
	}
	return nil
}

// SiblingAt returns the sibling covering pos, nil when the value is dead
// there. Code generators use it to find where a value lives after a call.
func (iv *Interval) SiblingAt(pos int32) *Interval { return iv.siblingAt(pos) }

// setSpillSlot records the slot on the parent so every sibling sees it.
func (iv *Interval) setSpillSlot(slot int32) {
	for s := iv.Parent(); s != nil; s = s.next {
		s.SpillSlot = slot
	}
}

// spillLocation returns the stack location of the value, as an sp-relative
// byte offset computed from the configured spill area base.
func (iv *Interval) spillLocation(base int32) location.Location {
	off := base + 4*iv.SpillSlot
	if iv.NeedsPair() {
		return location.MakeDoubleStackSlot(off)
	}
	return location.MakeStackSlot(off)
}

// String implements fmt.Stringer for allocator traces.
func (iv *Interval) String() string {
	return fmt.Sprintf("v%d%v", iv.Value, iv.ranges)
}
