package arm

import "math/bits"

// Operand is the data-processing shifter operand: a rotated 8-bit immediate,
// a plain register, a register shifted by an immediate, or a register shifted
// by a register.
type Operand struct {
	kind   operandKind
	imm    uint32
	rm, rs Reg
	shift  Shift
	amount uint8
}

type operandKind uint8

const (
	operandImmediate operandKind = iota
	operandRegister
	operandShiftImm
	operandShiftReg
)

// Imm builds an immediate operand. The value must be encodable; emitters
// report ErrOperandRange otherwise. Use EncodableImmediate to probe first.
func Imm(v uint32) Operand { return Operand{kind: operandImmediate, imm: v} }

// RegOp builds a plain register operand.
func RegOp(rm Reg) Operand { return Operand{kind: operandRegister, rm: rm} }

// ShiftImm builds "rm, <shift> #amount".
func ShiftImm(rm Reg, shift Shift, amount uint8) Operand {
	return Operand{kind: operandShiftImm, rm: rm, shift: shift, amount: amount}
}

// ShiftReg builds "rm, <shift> rs".
func ShiftReg(rm Reg, shift Shift, rs Reg) Operand {
	return Operand{kind: operandShiftReg, rm: rm, shift: shift, rs: rs}
}

// EncodableImmediate runs the modified-immediate search: a value fits when it
// is an 8-bit constant rotated right by an even amount. It returns the 12-bit
// shifter encoding and whether the search succeeded.
func EncodableImmediate(v uint32) (uint32, bool) {
	for rot := 0; rot < 16; rot++ {
		imm8 := bits.RotateLeft32(v, 2*rot)
		if imm8 < 256 {
			return uint32(rot)<<8 | imm8, true
		}
	}
	return 0, false
}

// encode returns the 12-bit shifter field plus the I bit (bit 25) folded into
// bit 12 of the second result.
func (o Operand) encode() (field uint32, immediate, ok bool) {
	switch o.kind {
	case operandImmediate:
		f, ok := EncodableImmediate(o.imm)
		return f, true, ok
	case operandRegister:
		return uint32(o.rm), false, true
	case operandShiftImm:
		if o.amount >= 32 {
			return 0, false, false
		}
		return uint32(o.amount)<<7 | uint32(o.shift)<<5 | uint32(o.rm), false, true
	case operandShiftReg:
		return uint32(o.rs)<<8 | uint32(o.shift)<<5 | 1<<4 | uint32(o.rm), false, true
	}
	return 0, false, false
}
