// Package location models abstract operand positions: physical registers,
// register pairs, stack slots, constants, and the unallocated placeholders the
// location builder hands to the register allocator.
package location

import (
	"fmt"
	"math"
)

// Kind discriminates the Location sum type.
type Kind byte

const (
	// Invalid means "not yet decided" and is the initial state of every
	// summary slot.
	Invalid Kind = iota
	ConstantInt
	ConstantLong
	ConstantFloat
	ConstantDouble
	CoreRegister
	CoreRegisterPair
	FpuRegister
	FpuRegisterPair
	StackSlot
	DoubleStackSlot
	// QuickParameter is the calling-convention straddle of a long whose low
	// half got the last parameter register and whose high half spilled to the
	// stack.
	QuickParameter
	// Unallocated carries a Policy for the allocator to satisfy.
	Unallocated
)

// Policy is the allocator constraint carried by an Unallocated location.
type Policy byte

const (
	Any Policy = iota
	RequiresRegister
	RequiresFpuRegister
	SameAsFirstInput
)

// Location is a value type; equality is structural (==).
type Location struct {
	kind Kind
	// value packs the payload: register id, (lo,hi) pair, byte offset,
	// constant bits, or policy.
	value int64
}

// NoLocation is the invalid location.
var NoLocation = Location{}

func MakeConstantInt(v int32) Location  { return Location{ConstantInt, int64(v)} }
func MakeConstantLong(v int64) Location { return Location{ConstantLong, v} }

func MakeConstantFloat(v float32) Location {
	return Location{ConstantFloat, int64(math.Float32bits(v))}
}

func MakeConstantDouble(v float64) Location {
	return Location{ConstantDouble, int64(math.Float64bits(v))}
}

func MakeRegister(id int) Location    { return Location{CoreRegister, int64(id)} }
func MakeFpuRegister(id int) Location { return Location{FpuRegister, int64(id)} }

// MakeRegisterPair builds a core pair. On 32-bit targets lo holds the low
// word, hi the high word.
func MakeRegisterPair(lo, hi int) Location {
	return Location{CoreRegisterPair, int64(lo) | int64(hi)<<16}
}

// MakeFpuRegisterPair builds an FPU pair; on arm this is two consecutive
// S-registers forming a D-register, so lo must be even and hi == lo+1.
func MakeFpuRegisterPair(lo, hi int) Location {
	return Location{FpuRegisterPair, int64(lo) | int64(hi)<<16}
}

func MakeStackSlot(offset int32) Location       { return Location{StackSlot, int64(offset)} }
func MakeDoubleStackSlot(offset int32) Location { return Location{DoubleStackSlot, int64(offset)} }

// MakeQuickParameter records the straddled long: regID holds the low half,
// stackOffset the high half.
func MakeQuickParameter(regID int, stackOffset int32) Location {
	return Location{QuickParameter, int64(regID) | int64(stackOffset)<<16}
}

func MakeUnallocated(p Policy) Location { return Location{Unallocated, int64(p)} }

// Kind returns the discriminator.
func (l Location) Kind() Kind { return l.kind }

// IsValid reports whether the location has been decided.
func (l Location) IsValid() bool { return l.kind != Invalid }

// IsConstant reports whether the location is any of the constant kinds.
func (l Location) IsConstant() bool {
	return l.kind >= ConstantInt && l.kind <= ConstantDouble
}

// IsRegisterKind reports whether the location is a single register or a pair,
// of either class.
func (l Location) IsRegisterKind() bool {
	return l.kind >= CoreRegister && l.kind <= FpuRegisterPair
}

// HasStackComponent reports whether part of the value lives on the stack.
func (l Location) HasStackComponent() bool {
	return l.kind == StackSlot || l.kind == DoubleStackSlot || l.kind == QuickParameter
}

// Register returns the register id of a CoreRegister or FpuRegister location.
func (l Location) Register() int {
	switch l.kind {
	case CoreRegister, FpuRegister:
		return int(l.value)
	}
	panic(fmt.Sprintf("location: Register of %v", l))
}

// PairLow returns the low register of a pair.
func (l Location) PairLow() int {
	switch l.kind {
	case CoreRegisterPair, FpuRegisterPair:
		return int(l.value & 0xffff)
	}
	panic(fmt.Sprintf("location: PairLow of %v", l))
}

// PairHigh returns the high register of a pair.
func (l Location) PairHigh() int {
	switch l.kind {
	case CoreRegisterPair, FpuRegisterPair:
		return int(l.value >> 16 & 0xffff)
	}
	panic(fmt.Sprintf("location: PairHigh of %v", l))
}

// StackOffset returns the SP-relative byte offset of a stack slot.
func (l Location) StackOffset() int32 {
	switch l.kind {
	case StackSlot, DoubleStackSlot:
		return int32(l.value)
	}
	panic(fmt.Sprintf("location: StackOffset of %v", l))
}

// QuickParameterRegister returns the register holding the low half of a
// straddled long.
func (l Location) QuickParameterRegister() int {
	if l.kind != QuickParameter {
		panic(fmt.Sprintf("location: QuickParameterRegister of %v", l))
	}
	return int(l.value & 0xffff)
}

// QuickParameterStackOffset returns the stack offset holding the high half of
// a straddled long.
func (l Location) QuickParameterStackOffset() int32 {
	if l.kind != QuickParameter {
		panic(fmt.Sprintf("location: QuickParameterStackOffset of %v", l))
	}
	return int32(l.value >> 16)
}

// ConstantInt32 returns the payload of a ConstantInt.
func (l Location) ConstantInt32() int32 {
	if l.kind != ConstantInt {
		panic(fmt.Sprintf("location: ConstantInt32 of %v", l))
	}
	return int32(l.value)
}

// ConstantInt64 returns the payload of a ConstantLong.
func (l Location) ConstantInt64() int64 {
	if l.kind != ConstantLong {
		panic(fmt.Sprintf("location: ConstantInt64 of %v", l))
	}
	return l.value
}

// ConstantFloatBits returns the raw bits of a ConstantFloat.
func (l Location) ConstantFloatBits() uint32 {
	if l.kind != ConstantFloat {
		panic(fmt.Sprintf("location: ConstantFloatBits of %v", l))
	}
	return uint32(l.value)
}

// ConstantDoubleBits returns the raw bits of a ConstantDouble.
func (l Location) ConstantDoubleBits() uint64 {
	if l.kind != ConstantDouble {
		panic(fmt.Sprintf("location: ConstantDoubleBits of %v", l))
	}
	return uint64(l.value)
}

// GetPolicy returns the policy of an Unallocated location.
func (l Location) GetPolicy() Policy {
	if l.kind != Unallocated {
		panic(fmt.Sprintf("location: GetPolicy of %v", l))
	}
	return Policy(l.value)
}

// Requires64Bits reports whether the location is a 64-bit home: a pair, a
// double stack slot, or a straddled parameter.
func (l Location) Requires64Bits() bool {
	switch l.kind {
	case CoreRegisterPair, FpuRegisterPair, DoubleStackSlot, QuickParameter, ConstantLong, ConstantDouble:
		return true
	}
	return false
}

// String implements fmt.Stringer, for allocator traces.
func (l Location) String() string {
	switch l.kind {
	case Invalid:
		return "invalid"
	case ConstantInt:
		return fmt.Sprintf("#%d", int32(l.value))
	case ConstantLong:
		return fmt.Sprintf("#%dL", l.value)
	case ConstantFloat:
		return fmt.Sprintf("#%gf", math.Float32frombits(uint32(l.value)))
	case ConstantDouble:
		return fmt.Sprintf("#%g", math.Float64frombits(uint64(l.value)))
	case CoreRegister:
		return fmt.Sprintf("r%d", l.value)
	case CoreRegisterPair:
		return fmt.Sprintf("r%d/r%d", l.PairLow(), l.PairHigh())
	case FpuRegister:
		return fmt.Sprintf("s%d", l.value)
	case FpuRegisterPair:
		return fmt.Sprintf("s%d/s%d", l.PairLow(), l.PairHigh())
	case StackSlot:
		return fmt.Sprintf("[sp+%d]", int32(l.value))
	case DoubleStackSlot:
		return fmt.Sprintf("[sp+%d](2)", int32(l.value))
	case QuickParameter:
		return fmt.Sprintf("straddle(r%d,[sp+%d])", l.QuickParameterRegister(), l.QuickParameterStackOffset())
	case Unallocated:
		return fmt.Sprintf("unallocated(%d)", l.value)
	default:
		return fmt.Sprintf("location(kind=%d)", l.kind)
	}
}
