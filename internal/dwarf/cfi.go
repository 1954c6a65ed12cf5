// Package dwarf writes the canonical frame-information opcode stream the back
// end attaches to every compiled method. Only the handful of directives frame
// entry and exit need are implemented.
package dwarf

// Call-frame instruction opcodes (DWARF 4, section 6.4.2).
const (
	cfaAdvanceLoc     = 0x40
	cfaOffset         = 0x80
	cfaRestore        = 0xc0
	cfaAdvanceLoc1    = 0x02
	cfaAdvanceLoc2    = 0x03
	cfaAdvanceLoc4    = 0x04
	cfaOffsetExtended = 0x05
	cfaRestoreExt     = 0x06
	cfaRememberState  = 0x0a
	cfaRestoreState   = 0x0b
	cfaDefCFAOffset   = 0x0e
)

// dataAlignment is the factor register-save offsets are divided by. Negative
// because saves grow down from the CFA.
const dataAlignment = -4

// Reg is a DWARF register number. For arm, core registers are 0-15 and the
// VFP double registers start at 256.
type Reg int

// ArmCore returns the DWARF number of core register r.
func ArmCore(r int) Reg { return Reg(r) }

// ArmFpu returns the DWARF number of the VFP double register d.
func ArmFpu(d int) Reg { return Reg(256 + d) }

// Writer assembles a CFI opcode stream. The current pc is tracked so that
// each frame-altering directive is preceded by the minimal advance-pc form;
// callers pass the code offset at which the directive takes effect.
type Writer struct {
	buf []byte
	pc  int

	cfaOffset int
	saved     []int // remember-state stack of cfa offsets
}

// Data returns the opcode stream written so far.
func (w *Writer) Data() []byte { return w.buf }

// CFAOffset returns the current distance from SP to the CFA.
func (w *Writer) CFAOffset() int { return w.cfaOffset }

// AdvancePC emits the shortest advance-loc form for the delta from the last
// directive's pc to the given one.
func (w *Writer) AdvancePC(pc int) {
	delta := pc - w.pc
	w.pc = pc
	switch {
	case delta == 0:
	case delta < 0x40:
		w.buf = append(w.buf, byte(cfaAdvanceLoc|delta))
	case delta <= 0xff:
		w.buf = append(w.buf, cfaAdvanceLoc1, byte(delta))
	case delta <= 0xffff:
		w.buf = append(w.buf, cfaAdvanceLoc2, byte(delta), byte(delta>>8))
	default:
		w.buf = append(w.buf, cfaAdvanceLoc4,
			byte(delta), byte(delta>>8), byte(delta>>16), byte(delta>>24))
	}
}

// DefCFAOffset sets the CFA to SP + offset.
func (w *Writer) DefCFAOffset(pc, offset int) {
	w.AdvancePC(pc)
	w.cfaOffset = offset
	w.buf = append(w.buf, cfaDefCFAOffset)
	w.buf = appendULEB(w.buf, uint64(offset))
}

// AdjustCFAOffset grows (positive delta) or shrinks the CFA offset, as done
// around push/pop and SP adjustments.
func (w *Writer) AdjustCFAOffset(pc, delta int) {
	w.DefCFAOffset(pc, w.cfaOffset+delta)
}

// RelOffset records that reg was saved at [sp + spOffset].
func (w *Writer) RelOffset(pc int, reg Reg, spOffset int) {
	w.AdvancePC(pc)
	factored := (spOffset - w.cfaOffset) / dataAlignment
	if reg < 0x40 {
		w.buf = append(w.buf, byte(cfaOffset|int(reg)))
	} else {
		w.buf = append(w.buf, cfaOffsetExtended)
		w.buf = appendULEB(w.buf, uint64(reg))
	}
	w.buf = appendULEB(w.buf, uint64(factored))
}

// Restore reverts reg to its initial rule.
func (w *Writer) Restore(pc int, reg Reg) {
	w.AdvancePC(pc)
	if reg < 0x40 {
		w.buf = append(w.buf, byte(cfaRestore|int(reg)))
	} else {
		w.buf = append(w.buf, cfaRestoreExt)
		w.buf = appendULEB(w.buf, uint64(reg))
	}
}

// RememberState pushes the current frame rules, used before the frame-exit
// sequence of a non-terminal return.
func (w *Writer) RememberState(pc int) {
	w.AdvancePC(pc)
	w.saved = append(w.saved, w.cfaOffset)
	w.buf = append(w.buf, cfaRememberState)
}

// RestoreState pops the rules saved by RememberState.
func (w *Writer) RestoreState(pc int) {
	w.AdvancePC(pc)
	n := len(w.saved)
	w.cfaOffset = w.saved[n-1]
	w.saved = w.saved[:n-1]
	w.buf = append(w.buf, cfaRestoreState)
}

func appendULEB(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
		} else {
			return append(b, c)
		}
	}
}
