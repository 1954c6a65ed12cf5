// Package arm implements the ARM (A32) assembler: typed instruction emitters
// over a code buffer, modified-immediate synthesis, a literal pool, and label
// binding with linked fixup chains threaded through the placeholder
// encodings.
package arm

import "fmt"

// Reg is a core register.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	// Aliases.
	TR = R9  // managed thread register
	IP = R12 // scratch, reserved for the assembler and move resolver
	SP = R13
	LR = R14
	PC = R15

	NoReg Reg = 0xff
)

// String implements fmt.Stringer.
func (r Reg) String() string {
	switch r {
	case SP:
		return "sp"
	case LR:
		return "lr"
	case PC:
		return "pc"
	default:
		return fmt.Sprintf("r%d", uint8(r))
	}
}

// SReg is a single-precision VFP register. Two consecutive S registers, even
// base, overlay the corresponding D register.
type SReg uint8

const (
	S0 SReg = iota
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	S12
	S13
	S14
	S15
	S16
	S17
	S18
	S19
	S20
	S21
	S22
	S23
	S24
	S25
	S26
	S27
	S28
	S29
	S30
	S31

	NoSReg SReg = 0xff
)

// String implements fmt.Stringer.
func (s SReg) String() string { return fmt.Sprintf("s%d", uint8(s)) }

// DReg is a double-precision VFP register (D0-D15 overlay S0-S31).
type DReg uint8

// D returns the double register overlaying the even-aligned pair starting at
// s.
func D(s SReg) DReg { return DReg(s / 2) }

// String implements fmt.Stringer.
func (d DReg) String() string { return fmt.Sprintf("d%d", uint8(d)) }

// Condition is the 4-bit predication field.
type Condition uint8

const (
	EQ Condition = iota // equal
	NE                  // not equal
	CS                  // carry set / unsigned higher or same
	CC                  // carry clear / unsigned lower
	MI                  // negative
	PL                  // positive or zero
	VS                  // overflow
	VC                  // no overflow
	HI                  // unsigned higher
	LS                  // unsigned lower or same
	GE                  // signed greater or equal
	LT                  // signed less
	GT                  // signed greater
	LE                  // signed less or equal
	AL                  // always
)

var condNames = [...]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "al",
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return "??"
}

// Opposite returns the inverted condition. AL has no inverse.
func (c Condition) Opposite() Condition {
	if c >= AL {
		panic("arm: AL has no opposite condition")
	}
	return c ^ 1
}

// Shift is a shifter-operand shift type.
type Shift uint8

const (
	LSL Shift = iota
	LSR
	ASR
	ROR
)

// RegList is a bitset of core registers for push/pop and ldm/stm.
type RegList uint16

// ListOf builds a RegList.
func ListOf(regs ...Reg) RegList {
	var l RegList
	for _, r := range regs {
		l |= 1 << r
	}
	return l
}

// Contains reports whether r is in the list.
func (l RegList) Contains(r Reg) bool { return l&(1<<r) != 0 }

// Count returns the number of registers in the list.
func (l RegList) Count() int {
	n := 0
	for v := uint16(l); v != 0; v &= v - 1 {
		n++
	}
	return n
}

// BarrierOption selects the dmb domain/type.
type BarrierOption uint8

const (
	BarrierSY    BarrierOption = 0xf
	BarrierISH   BarrierOption = 0xb
	BarrierISHST BarrierOption = 0xa
)
