package arm

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/arena"
	"github.com/Dreams-N/platform-art-sub001/internal/asm"
)

// dpOpcode is the 4-bit data-processing opcode (bits 24-21).
type dpOpcode uint32

const (
	opAND dpOpcode = iota
	opEOR
	opSUB
	opRSB
	opADD
	opADC
	opSBC
	opRSC
	opTST
	opTEQ
	opCMP
	opCMN
	opORR
	opMOV
	opBIC
	opMVN
)

// endOfChain marks the end of a label's fixup chain inside a placeholder
// branch encoding.
const endOfChain = 0x00ffffff

// Assembler emits A32 instructions into a code buffer. Emitters do not return
// errors; the first failure sticks and surfaces from Finalize, which matches
// the fatal-error contract: an unencodable operand is a bug in the caller's
// shape policy, not a recoverable condition.
type Assembler struct {
	buf asm.Buffer
	err error

	// forceLongBranches makes constant materialization avoid the literal
	// pool, the policy a driver selects when retrying after a phase error.
	forceLongBranches bool

	literals []literal
}

// literal is one pool constant and the ldr sites waiting for it.
type literal struct {
	value uint32
	sites []int
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// NewAssemblerIn returns an assembler whose code buffer grows out of a.
func NewAssemblerIn(a *arena.Arena) *Assembler {
	m := &Assembler{}
	m.buf.SetAllocator(a.Alloc)
	return m
}

// ForceLongBranches disables the literal pool in favor of movw/movt pairs.
func (a *Assembler) ForceLongBranches() { a.forceLongBranches = true }

// CodeSize returns the pc of the next instruction to be emitted.
func (a *Assembler) CodeSize() int { return a.buf.Size() }

// Err returns the sticky first error.
func (a *Assembler) Err() error { return a.err }

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Finalize flushes the literal pool and returns the emitted code.
func (a *Assembler) Finalize() ([]byte, error) {
	a.flushLiterals()
	if a.err != nil {
		return nil, a.err
	}
	return a.buf.Bytes(), nil
}

func (a *Assembler) emit(w uint32) {
	a.buf.Emit32(w)
}

// dataProcessing emits one data-processing instruction.
func (a *Assembler) dataProcessing(cond Condition, op dpOpcode, set bool, rd, rn Reg, o Operand) {
	field, immediate, ok := o.encode()
	if !ok {
		a.fail(errors.Wrap(asm.ErrOperandRange, "%v rd=%v rn=%v imm=%#x", op, rd, rn, o.imm))
		return
	}
	w := uint32(cond)<<28 | uint32(op)<<21 | uint32(rn)<<16 | uint32(rd)<<12 | field
	if immediate {
		w |= 1 << 25
	}
	if set {
		w |= 1 << 20
	}
	a.emit(w)
}

// And emits and rd, rn, op.
func (a *Assembler) And(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opAND, false, rd, rn, o)
}

// Eor emits eor rd, rn, op.
func (a *Assembler) Eor(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opEOR, false, rd, rn, o)
}

// Sub emits sub rd, rn, op.
func (a *Assembler) Sub(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opSUB, false, rd, rn, o)
}

// Subs emits subs rd, rn, op.
func (a *Assembler) Subs(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opSUB, true, rd, rn, o)
}

// Sbc emits sbc rd, rn, op.
func (a *Assembler) Sbc(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opSBC, false, rd, rn, o)
}

// Rsb emits rsb rd, rn, op.
func (a *Assembler) Rsb(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opRSB, false, rd, rn, o)
}

// Rsbs emits rsbs rd, rn, op.
func (a *Assembler) Rsbs(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opRSB, true, rd, rn, o)
}

// Rsc emits rsc rd, rn, op.
func (a *Assembler) Rsc(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opRSC, false, rd, rn, o)
}

// Add emits add rd, rn, op.
func (a *Assembler) Add(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opADD, false, rd, rn, o)
}

// Adds emits adds rd, rn, op.
func (a *Assembler) Adds(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opADD, true, rd, rn, o)
}

// Adc emits adc rd, rn, op.
func (a *Assembler) Adc(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opADC, false, rd, rn, o)
}

// Tst emits tst rn, op.
func (a *Assembler) Tst(rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opTST, true, R0, rn, o)
}

// Teq emits teq rn, op.
func (a *Assembler) Teq(rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opTEQ, true, R0, rn, o)
}

// Cmp emits cmp rn, op.
func (a *Assembler) Cmp(rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opCMP, true, R0, rn, o)
}

// Cmn emits cmn rn, op.
func (a *Assembler) Cmn(rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opCMN, true, R0, rn, o)
}

// Orr emits orr rd, rn, op.
func (a *Assembler) Orr(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opORR, false, rd, rn, o)
}

// Mov emits mov rd, op.
func (a *Assembler) Mov(rd Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opMOV, false, rd, R0, o)
}

// Movs emits movs rd, op.
func (a *Assembler) Movs(rd Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opMOV, true, rd, R0, o)
}

// Bic emits bic rd, rn, op.
func (a *Assembler) Bic(rd, rn Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opBIC, false, rd, rn, o)
}

// Mvn emits mvn rd, op.
func (a *Assembler) Mvn(rd Reg, o Operand, cond Condition) {
	a.dataProcessing(cond, opMVN, false, rd, R0, o)
}

// Lsl emits a left shift by immediate.
func (a *Assembler) Lsl(rd, rm Reg, amount uint8, cond Condition) {
	a.Mov(rd, ShiftImm(rm, LSL, amount), cond)
}

// Lsr emits a logical right shift by immediate.
func (a *Assembler) Lsr(rd, rm Reg, amount uint8, cond Condition) {
	a.Mov(rd, ShiftImm(rm, LSR, amount), cond)
}

// Asr emits an arithmetic right shift by immediate.
func (a *Assembler) Asr(rd, rm Reg, amount uint8, cond Condition) {
	a.Mov(rd, ShiftImm(rm, ASR, amount), cond)
}

// Mul emits mul rd, rn, rm.
func (a *Assembler) Mul(rd, rn, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | uint32(rd)<<16 | uint32(rm)<<8 | 0x9<<4 | uint32(rn))
}

// Mla emits mla rd, rn, rm, ra (rd = ra + rn*rm).
func (a *Assembler) Mla(rd, rn, rm, ra Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 1<<21 | uint32(rd)<<16 | uint32(ra)<<12 | uint32(rm)<<8 | 0x9<<4 | uint32(rn))
}

// Umull emits umull rdLo, rdHi, rn, rm.
func (a *Assembler) Umull(rdLo, rdHi, rn, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x4<<21 | uint32(rdHi)<<16 | uint32(rdLo)<<12 | uint32(rm)<<8 | 0x9<<4 | uint32(rn))
}

// Smull emits smull rdLo, rdHi, rn, rm.
func (a *Assembler) Smull(rdLo, rdHi, rn, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x6<<21 | uint32(rdHi)<<16 | uint32(rdLo)<<12 | uint32(rm)<<8 | 0x9<<4 | uint32(rn))
}

// Sdiv emits sdiv rd, rn, rm. Requires the divide feature.
func (a *Assembler) Sdiv(rd, rn, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x71<<20 | uint32(rd)<<16 | 0xf<<12 | uint32(rm)<<8 | 0x1<<4 | uint32(rn))
}

// Udiv emits udiv rd, rn, rm. Requires the divide feature.
func (a *Assembler) Udiv(rd, rn, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x73<<20 | uint32(rd)<<16 | 0xf<<12 | uint32(rm)<<8 | 0x1<<4 | uint32(rn))
}

// Clz emits clz rd, rm.
func (a *Assembler) Clz(rd, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x16f<<16 | uint32(rd)<<12 | 0xf1<<4 | uint32(rm))
}

// Movw emits movw rd, #imm16.
func (a *Assembler) Movw(rd Reg, imm16 uint16, cond Condition) {
	v := uint32(imm16)
	a.emit(uint32(cond)<<28 | 0x30<<20 | (v>>12)<<16 | uint32(rd)<<12 | v&0xfff)
}

// Movt emits movt rd, #imm16.
func (a *Assembler) Movt(rd Reg, imm16 uint16, cond Condition) {
	v := uint32(imm16)
	a.emit(uint32(cond)<<28 | 0x34<<20 | (v>>12)<<16 | uint32(rd)<<12 | v&0xfff)
}

// LoadImmediate materializes an arbitrary 32-bit constant into rd, choosing
// the cheapest of mov, mvn, movw, movw+movt.
func (a *Assembler) LoadImmediate(rd Reg, value int32, cond Condition) {
	v := uint32(value)
	if _, ok := EncodableImmediate(v); ok {
		a.Mov(rd, Imm(v), cond)
		return
	}
	if _, ok := EncodableImmediate(^v); ok {
		a.Mvn(rd, Imm(^v), cond)
		return
	}
	a.Movw(rd, uint16(v), cond)
	if v>>16 != 0 {
		a.Movt(rd, uint16(v>>16), cond)
	}
}

// Push emits push {list}.
func (a *Assembler) Push(list RegList, cond Condition) {
	if list == 0 {
		a.fail(errors.Wrap(asm.ErrIllegalShape, "push of empty register list"))
		return
	}
	a.emit(uint32(cond)<<28 | 0x92d<<16 | uint32(list))
}

// Pop emits pop {list}.
func (a *Assembler) Pop(list RegList, cond Condition) {
	if list == 0 {
		a.fail(errors.Wrap(asm.ErrIllegalShape, "pop of empty register list"))
		return
	}
	a.emit(uint32(cond)<<28 | 0x8bd<<16 | uint32(list))
}

// Bx emits bx rm.
func (a *Assembler) Bx(rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x12fff1<<4 | uint32(rm))
}

// Blx emits blx rm.
func (a *Assembler) Blx(rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x12fff3<<4 | uint32(rm))
}

// Dmb emits a data memory barrier.
func (a *Assembler) Dmb(option BarrierOption) {
	a.emit(0xf57ff050 | uint32(option))
}

// Bkpt emits a breakpoint, used for unreachable paths.
func (a *Assembler) Bkpt(imm uint16) {
	a.emit(0xe<<28 | 0x12<<20 | uint32(imm>>4)<<8 | 0x7<<4 | uint32(imm&0xf))
}

// B emits a (possibly conditional) branch to label.
func (a *Assembler) B(label *asm.Label, cond Condition) {
	a.emitBranch(label, cond, false)
}

// Bl emits a branch-with-link to label.
func (a *Assembler) Bl(label *asm.Label, cond Condition) {
	a.emitBranch(label, cond, true)
}

func (a *Assembler) emitBranch(label *asm.Label, cond Condition, link bool) {
	w := uint32(cond)<<28 | 0x5<<25
	if link {
		w |= 1 << 24
	}
	pc := a.buf.Size()
	if label.IsBound() {
		disp, err := branchDisplacement(label.Position(), pc)
		if err != nil {
			a.fail(err)
			return
		}
		a.emit(w | disp)
		return
	}
	// Thread the fixup chain through the displacement field.
	prev := uint32(endOfChain)
	if label.IsLinked() {
		prev = uint32(label.LinkPosition()) >> 2
	}
	label.LinkTo(pc)
	a.emit(w | prev)
}

// Bind binds label at the current pc and patches every branch site waiting on
// it. After Bind every site decodes to (bound pc - site pc - 8) within the
// signed 24-bit range.
func (a *Assembler) Bind(label *asm.Label) {
	pc := a.buf.Size()
	for label.IsLinked() {
		pos := label.LinkPosition()
		w := a.buf.Load32(pos)
		next := w & 0x00ffffff
		disp, err := branchDisplacement(pc, pos)
		if err != nil {
			a.fail(err)
			disp = 0
		}
		a.buf.Store32(pos, w&^uint32(0x00ffffff)|disp)
		if next == endOfChain {
			break
		}
		label.LinkTo(int(next) << 2)
	}
	// Unbound-and-linked state was consumed above; record the final position.
	*label = asm.Label{}
	label.BindTo(pc)
}

// branchDisplacement computes the pipeline-adjusted word displacement from a
// branch at site to target, encoded in the low 24 bits.
func branchDisplacement(target, site int) (uint32, error) {
	delta := target - site - 8
	if delta&3 != 0 {
		return 0, errors.Wrap(asm.ErrIllegalShape, "unaligned branch target %#x", target)
	}
	words := delta >> 2
	if words < -(1<<23) || words >= 1<<23 {
		return 0, errors.Wrap(asm.ErrOperandRange, "branch displacement %d out of range", delta)
	}
	return uint32(words) & 0x00ffffff, nil
}

// LoadLiteral loads a 32-bit constant via the literal pool (or a movw/movt
// pair when long branches are forced).
func (a *Assembler) LoadLiteral(rd Reg, value uint32, cond Condition) {
	if a.forceLongBranches {
		a.LoadImmediate(rd, int32(value), cond)
		return
	}
	site := a.buf.Size()
	for i := range a.literals {
		if a.literals[i].value == value {
			a.literals[i].sites = append(a.literals[i].sites, site)
			a.emitLiteralPlaceholder(rd, cond)
			return
		}
	}
	a.literals = append(a.literals, literal{value: value, sites: []int{site}})
	a.emitLiteralPlaceholder(rd, cond)
}

// emitLiteralPlaceholder emits ldr rd, [pc, #0]; the displacement is patched
// when the pool is flushed.
func (a *Assembler) emitLiteralPlaceholder(rd Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 0x59f<<16 | uint32(rd)<<12)
}

// flushLiterals appends the literal pool after the instruction stream and
// patches each ldr site. A site farther than the ldr-literal reach is the
// single-pass phase error: the caller should retry with long branches forced.
func (a *Assembler) flushLiterals() {
	if len(a.literals) == 0 {
		return
	}
	for i := range a.literals {
		lit := &a.literals[i]
		pos := a.buf.Size()
		a.buf.Emit32(lit.value)
		for _, site := range lit.sites {
			delta := pos - site - 8
			if delta < 0 || delta > 4095 {
				a.fail(errors.Wrap(asm.ErrPhase, "literal pool out of ldr range: delta %d", delta))
				continue
			}
			w := a.buf.Load32(site)
			a.buf.Store32(site, w|uint32(delta))
		}
	}
	a.literals = a.literals[:0]
}
