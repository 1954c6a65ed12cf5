package arm

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/asm"
	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	"github.com/Dreams-N/platform-art-sub001/internal/entrypoints"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
	"github.com/Dreams-N/platform-art-sub001/internal/regalloc"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

func (cg *Generator) visit(id hir.ID, in *hir.Instruction, orderIndex int) error {
	switch in.Op {
	case hir.OpIntConstant, hir.OpLongConstant, hir.OpFloatConstant,
		hir.OpDoubleConstant, hir.OpNullConstant,
		hir.OpParameter, hir.OpTemporary, hir.OpParallelMove:
		// Constants materialize at their uses; parameters were shuffled in
		// the frame entry.
		return nil

	case hir.OpCurrentMethod:
		cg.masm.LoadFromOffset(asmarm.LoadWord, coreOf(in.Locations.Out()),
			asmarm.SP, 0, asmarm.AL)

	case hir.OpAdd, hir.OpSub, hir.OpAnd, hir.OpOr, hir.OpXor:
		return cg.visitBinary(in)

	case hir.OpMul:
		return cg.visitMul(id, in)

	case hir.OpDiv, hir.OpRem:
		return cg.visitDivRem(id, in)

	case hir.OpNeg:
		return cg.visitNeg(in)

	case hir.OpNot:
		return cg.visitNot(in)

	case hir.OpShl, hir.OpShr, hir.OpUShr:
		return cg.visitShift(id, in)

	case hir.OpEqual, hir.OpNotEqual, hir.OpLessThan, hir.OpLessThanOrEqual,
		hir.OpGreaterThan, hir.OpGreaterThanOrEqual:
		if in.EmittedAtUseSite {
			return nil // the If emits the compare
		}
		cg.visitCondition(in)

	case hir.OpCompare:
		return cg.visitCompare(in)

	case hir.OpTypeConversion:
		return cg.visitConversion(id, in)

	case hir.OpArrayLength:
		s := in.Locations
		cg.masm.LoadFromOffset(asmarm.LoadWord, coreOf(s.Out()),
			coreOf(s.In(0)), mirrorArrayLengthOffset, asmarm.AL)

	case hir.OpArrayGet:
		return cg.visitArrayGet(in)

	case hir.OpArraySet:
		return cg.visitArraySet(in)

	case hir.OpInstanceFieldGet, hir.OpStaticFieldGet:
		return cg.visitFieldGet(in)

	case hir.OpInstanceFieldSet, hir.OpStaticFieldSet:
		return cg.visitFieldSet(in)

	case hir.OpNullCheck:
		cg.visitNullCheck(in)

	case hir.OpDivZeroCheck:
		cg.visitDivZeroCheck(in)

	case hir.OpBoundsCheck:
		cg.visitBoundsCheck(in)

	case hir.OpSuspendCheck:
		cg.visitSuspendCheck(in)

	case hir.OpLoadClass:
		cg.visitLoadClass(in)

	case hir.OpLoadString:
		cg.visitLoadString(in)

	case hir.OpNewInstance:
		cg.masm.LoadImmediate(asmarm.R0, int32(in.Index), asmarm.AL)
		cg.invokeRuntime(entrypoints.AllocObject, in)
		cg.moveOutOfReturnRegister(id, in)

	case hir.OpNewArray:
		cg.masm.LoadImmediate(asmarm.R0, int32(in.Index), asmarm.AL)
		cg.invokeRuntime(entrypoints.AllocArray, in)
		cg.moveOutOfReturnRegister(id, in)

	case hir.OpInstanceOf:
		cg.visitInstanceOf(in)

	case hir.OpCheckCast:
		cg.visitCheckCast(in)

	case hir.OpInvokeStatic, hir.OpInvokeDirect, hir.OpInvokeVirtual,
		hir.OpInvokeInterface:
		cg.visitInvoke(id, in)

	case hir.OpThrow:
		cg.invokeRuntime(entrypoints.DeliverException, in)

	case hir.OpGoto:
		return cg.visitGoto(in, orderIndex)

	case hir.OpIf:
		return cg.visitIf(in, orderIndex)

	case hir.OpReturn, hir.OpReturnVoid:
		cg.emitFrameExit()

	default:
		return errors.Wrap(codegen.ErrShape, "no emitter for %v", in.Op)
	}
	return nil
}

// operand2 turns a resolved input location into a shifter operand: either the
// folded immediate or the allocated register.
func operand2(l location.Location) asmarm.Operand {
	if l.Kind() == location.ConstantInt {
		return asmarm.Imm(uint32(l.ConstantInt32()))
	}
	return asmarm.RegOp(coreOf(l))
}

// lowWordOf returns the core register holding the value's low word.
func lowWordOf(l location.Location) asmarm.Reg {
	if l.Kind() == location.CoreRegisterPair {
		return pairLo(l)
	}
	return coreOf(l)
}

func (cg *Generator) visitBinary(in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	switch in.Type {
	case hir.Int:
		rd, rn := coreOf(s.Out()), coreOf(s.In(0))
		sec := s.In(1)
		switch in.Op {
		case hir.OpAdd, hir.OpSub:
			if sec.Kind() == location.ConstantInt {
				cg.emitAddSubImmediate(in.Op, rd, rn, uint32(sec.ConstantInt32()))
				return nil
			}
			if in.Op == hir.OpAdd {
				m.Add(rd, rn, asmarm.RegOp(coreOf(sec)), asmarm.AL)
			} else {
				m.Sub(rd, rn, asmarm.RegOp(coreOf(sec)), asmarm.AL)
			}
		case hir.OpAnd:
			if sec.Kind() == location.ConstantInt {
				v := uint32(sec.ConstantInt32())
				if _, ok := asmarm.EncodableImmediate(v); ok {
					m.And(rd, rn, asmarm.Imm(v), asmarm.AL)
				} else {
					m.Bic(rd, rn, asmarm.Imm(^v), asmarm.AL)
				}
			} else {
				m.And(rd, rn, asmarm.RegOp(coreOf(sec)), asmarm.AL)
			}
		case hir.OpOr:
			m.Orr(rd, rn, operand2(sec), asmarm.AL)
		case hir.OpXor:
			m.Eor(rd, rn, operand2(sec), asmarm.AL)
		}
	case hir.Long:
		cg.visitBinaryLong(in)
	case hir.Float, hir.Double:
		if in.Op != hir.OpAdd && in.Op != hir.OpSub {
			return errors.Wrap(codegen.ErrShape, "%v of %v", in.Op, in.Type)
		}
		cg.emitFpuBinary(in)
	default:
		return errors.Wrap(codegen.ErrShape, "%v of %v", in.Op, in.Type)
	}
	return nil
}

// emitAddSubImmediate picks between the operation and its negated dual so
// both +imm and -imm encode.
func (cg *Generator) emitAddSubImmediate(op hir.Opcode, rd, rn asmarm.Reg, v uint32) {
	m := cg.masm
	_, direct := asmarm.EncodableImmediate(v)
	switch {
	case op == hir.OpAdd && direct:
		m.Add(rd, rn, asmarm.Imm(v), asmarm.AL)
	case op == hir.OpAdd:
		m.Sub(rd, rn, asmarm.Imm(-v), asmarm.AL)
	case direct:
		m.Sub(rd, rn, asmarm.Imm(v), asmarm.AL)
	default:
		m.Add(rd, rn, asmarm.Imm(-v), asmarm.AL)
	}
}

// visitBinaryLong emits the word-pair form. When the low result register
// aliases one of the high inputs the low word detours through IP.
func (cg *Generator) visitBinaryLong(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	aLo, aHi := pairLo(s.In(0)), pairHi(s.In(0))
	bLo, bHi := pairLo(s.In(1)), pairHi(s.In(1))
	oLo, oHi := pairLo(s.Out()), pairHi(s.Out())

	lo := oLo
	if oLo == aHi || oLo == bHi {
		lo = asmarm.IP
	}
	switch in.Op {
	case hir.OpAdd:
		m.Adds(lo, aLo, asmarm.RegOp(bLo), asmarm.AL)
		m.Adc(oHi, aHi, asmarm.RegOp(bHi), asmarm.AL)
	case hir.OpSub:
		m.Subs(lo, aLo, asmarm.RegOp(bLo), asmarm.AL)
		m.Sbc(oHi, aHi, asmarm.RegOp(bHi), asmarm.AL)
	case hir.OpAnd:
		m.And(lo, aLo, asmarm.RegOp(bLo), asmarm.AL)
		m.And(oHi, aHi, asmarm.RegOp(bHi), asmarm.AL)
	case hir.OpOr:
		m.Orr(lo, aLo, asmarm.RegOp(bLo), asmarm.AL)
		m.Orr(oHi, aHi, asmarm.RegOp(bHi), asmarm.AL)
	case hir.OpXor:
		m.Eor(lo, aLo, asmarm.RegOp(bLo), asmarm.AL)
		m.Eor(oHi, aHi, asmarm.RegOp(bHi), asmarm.AL)
	}
	if lo == asmarm.IP {
		m.Mov(oLo, asmarm.RegOp(asmarm.IP), asmarm.AL)
	}
}

func (cg *Generator) emitFpuBinary(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	if in.Type == hir.Float {
		out, a, b := sregOf(s.Out()), sregOf(s.In(0)), sregOf(s.In(1))
		switch in.Op {
		case hir.OpAdd:
			m.Vadds(out, a, b, asmarm.AL)
		case hir.OpSub:
			m.Vsubs(out, a, b, asmarm.AL)
		case hir.OpMul:
			m.Vmuls(out, a, b, asmarm.AL)
		case hir.OpDiv:
			m.Vdivs(out, a, b, asmarm.AL)
		}
		return
	}
	out, a, b := dregOf(s.Out()), dregOf(s.In(0)), dregOf(s.In(1))
	switch in.Op {
	case hir.OpAdd:
		m.Vaddd(out, a, b, asmarm.AL)
	case hir.OpSub:
		m.Vsubd(out, a, b, asmarm.AL)
	case hir.OpMul:
		m.Vmuld(out, a, b, asmarm.AL)
	case hir.OpDiv:
		m.Vdivd(out, a, b, asmarm.AL)
	}
}

func (cg *Generator) visitMul(id hir.ID, in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	switch in.Type {
	case hir.Int:
		rd, rn, rm := coreOf(s.Out()), coreOf(s.In(0)), coreOf(s.In(1))
		switch {
		case rd != rn:
			m.Mul(rd, rn, rm, asmarm.AL)
		case rd != rm:
			m.Mul(rd, rm, rn, asmarm.AL)
		default:
			m.Mul(asmarm.IP, rn, rm, asmarm.AL)
			m.Mov(rd, asmarm.RegOp(asmarm.IP), asmarm.AL)
		}
	case hir.Long:
		cg.invokeRuntime(entrypoints.MulLong, in)
		cg.moveOutOfReturnRegister(id, in)
	case hir.Float, hir.Double:
		cg.emitFpuBinary(in)
	default:
		return errors.Wrap(codegen.ErrShape, "mul of %v", in.Type)
	}
	return nil
}

func (cg *Generator) visitDivRem(id hir.ID, in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	if s.WillCall() {
		var e entrypoints.Entrypoint
		switch {
		case in.Type == hir.Int:
			e = entrypoints.IdivmodInt
		case in.Type == hir.Long && in.Op == hir.OpDiv:
			e = entrypoints.DivLong
		case in.Type == hir.Long:
			e = entrypoints.ModLong
		case in.Type == hir.Float:
			e = entrypoints.Fmodf
		case in.Type == hir.Double:
			e = entrypoints.Fmod
		default:
			return errors.Wrap(codegen.ErrShape, "%v of %v", in.Op, in.Type)
		}
		cg.invokeRuntime(e, in)
		cg.moveOutOfReturnRegister(id, in)
		return nil
	}
	switch in.Type {
	case hir.Int:
		rd, rn, rm := coreOf(s.Out()), coreOf(s.In(0)), coreOf(s.In(1))
		if in.Op == hir.OpDiv {
			m.Sdiv(rd, rn, rm, asmarm.AL)
			return nil
		}
		tmp := coreOf(s.Temp(0))
		m.Sdiv(tmp, rn, rm, asmarm.AL)
		m.Mul(asmarm.IP, tmp, rm, asmarm.AL)
		m.Sub(rd, rn, asmarm.RegOp(asmarm.IP), asmarm.AL)
	case hir.Float, hir.Double:
		cg.emitFpuBinary(in) // OpDiv only; OpRem calls out
	default:
		return errors.Wrap(codegen.ErrShape, "%v of %v", in.Op, in.Type)
	}
	return nil
}

func (cg *Generator) visitNeg(in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	switch in.Type {
	case hir.Int:
		m.Rsb(coreOf(s.Out()), coreOf(s.In(0)), asmarm.Imm(0), asmarm.AL)
	case hir.Long:
		aLo, aHi := pairLo(s.In(0)), pairHi(s.In(0))
		oLo, oHi := pairLo(s.Out()), pairHi(s.Out())
		lo := oLo
		if oLo == aHi {
			lo = asmarm.IP
		}
		m.Rsbs(lo, aLo, asmarm.Imm(0), asmarm.AL)
		m.Rsc(oHi, aHi, asmarm.Imm(0), asmarm.AL)
		if lo == asmarm.IP {
			m.Mov(oLo, asmarm.RegOp(asmarm.IP), asmarm.AL)
		}
	case hir.Float:
		m.Vnegs(sregOf(s.Out()), sregOf(s.In(0)), asmarm.AL)
	case hir.Double:
		m.Vnegd(dregOf(s.Out()), dregOf(s.In(0)), asmarm.AL)
	default:
		return errors.Wrap(codegen.ErrShape, "neg of %v", in.Type)
	}
	return nil
}

func (cg *Generator) visitNot(in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	switch in.Type {
	case hir.Int, hir.Bool:
		m.Mvn(coreOf(s.Out()), asmarm.RegOp(coreOf(s.In(0))), asmarm.AL)
	case hir.Long:
		aLo, aHi := pairLo(s.In(0)), pairHi(s.In(0))
		oLo, oHi := pairLo(s.Out()), pairHi(s.Out())
		if oLo == aHi {
			m.Mvn(oHi, asmarm.RegOp(aHi), asmarm.AL)
			m.Mvn(oLo, asmarm.RegOp(aLo), asmarm.AL)
		} else {
			m.Mvn(oLo, asmarm.RegOp(aLo), asmarm.AL)
			m.Mvn(oHi, asmarm.RegOp(aHi), asmarm.AL)
		}
	default:
		return errors.Wrap(codegen.ErrShape, "not of %v", in.Type)
	}
	return nil
}

func shiftKind(op hir.Opcode) asmarm.Shift {
	switch op {
	case hir.OpShl:
		return asmarm.LSL
	case hir.OpShr:
		return asmarm.ASR
	default:
		return asmarm.LSR
	}
}

func (cg *Generator) visitShift(id hir.ID, in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	if in.Type == hir.Long {
		var e entrypoints.Entrypoint
		switch in.Op {
		case hir.OpShl:
			e = entrypoints.ShlLong
		case hir.OpShr:
			e = entrypoints.ShrLong
		default:
			e = entrypoints.UshrLong
		}
		cg.invokeRuntime(e, in)
		cg.moveOutOfReturnRegister(id, in)
		return nil
	}
	if in.Type != hir.Int {
		return errors.Wrap(codegen.ErrShape, "%v of %v", in.Op, in.Type)
	}
	rd, rn := coreOf(s.Out()), coreOf(s.In(0))
	sec := s.In(1)
	if sec.Kind() == location.ConstantInt {
		amount := uint8(sec.ConstantInt32() & 31)
		if amount == 0 {
			if rd != rn {
				m.Mov(rd, asmarm.RegOp(rn), asmarm.AL)
			}
			return nil
		}
		m.Mov(rd, asmarm.ShiftImm(rn, shiftKind(in.Op), amount), asmarm.AL)
		return nil
	}
	// Register shifts only honor the low five bits.
	m.And(asmarm.IP, coreOf(sec), asmarm.Imm(31), asmarm.AL)
	m.Mov(rd, asmarm.ShiftReg(rn, shiftKind(in.Op), asmarm.IP), asmarm.AL)
	return nil
}

// emitCompare emits cmp, falling back to the cmn dual when the constant only
// encodes negated.
func (cg *Generator) emitCompare(rn asmarm.Reg, l location.Location) {
	m := cg.masm
	if l.Kind() != location.ConstantInt {
		m.Cmp(rn, asmarm.RegOp(coreOf(l)), asmarm.AL)
		return
	}
	v := uint32(l.ConstantInt32())
	if _, ok := asmarm.EncodableImmediate(v); ok {
		m.Cmp(rn, asmarm.Imm(v), asmarm.AL)
		return
	}
	m.Cmn(rn, asmarm.Imm(-v), asmarm.AL)
}

func (cg *Generator) visitCondition(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	cg.emitCompare(coreOf(s.In(0)), s.In(1))
	rd := coreOf(s.Out())
	m.Mov(rd, asmarm.Imm(0), asmarm.AL)
	m.Mov(rd, asmarm.Imm(1), condFor(in.Op))
}

func (cg *Generator) visitCompare(in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	rd := coreOf(s.Out())
	switch t := cg.graph.InstrAt(in.In(0)).Type; t {
	case hir.Long:
		aLo, aHi := pairLo(s.In(0)), pairHi(s.In(0))
		bLo, bHi := pairLo(s.In(1)), pairHi(s.In(1))
		var less, greater, done asm.Label
		m.Cmp(aHi, asmarm.RegOp(bHi), asmarm.AL)
		m.B(&less, asmarm.LT)
		m.B(&greater, asmarm.GT)
		// High words equal; the low words compare unsigned.
		m.Cmp(aLo, asmarm.RegOp(bLo), asmarm.AL)
		m.Mov(rd, asmarm.Imm(0), asmarm.AL)
		m.B(&done, asmarm.EQ)
		m.B(&less, asmarm.CC)
		m.Bind(&greater)
		m.Mov(rd, asmarm.Imm(1), asmarm.AL)
		m.B(&done, asmarm.AL)
		m.Bind(&less)
		m.Mvn(rd, asmarm.Imm(0), asmarm.AL)
		m.Bind(&done)
	case hir.Float, hir.Double:
		if t == hir.Float {
			m.Vcmps(sregOf(s.In(0)), sregOf(s.In(1)), asmarm.AL)
		} else {
			m.Vcmpd(dregOf(s.In(0)), dregOf(s.In(1)), asmarm.AL)
		}
		m.Vmstat(asmarm.AL)
		m.Mov(rd, asmarm.Imm(0), asmarm.AL)
		if in.IntValue != 0 {
			// NaN compares greater: HI also covers unordered.
			m.Mov(rd, asmarm.Imm(1), asmarm.HI)
			m.Mvn(rd, asmarm.Imm(0), asmarm.CC)
		} else {
			// NaN compares less: LT also covers unordered.
			m.Mov(rd, asmarm.Imm(1), asmarm.GT)
			m.Mvn(rd, asmarm.Imm(0), asmarm.LT)
		}
	default:
		return errors.Wrap(codegen.ErrShape, "compare of %v", t)
	}
	return nil
}

func (cg *Generator) visitConversion(id hir.ID, in *hir.Instruction) error {
	m := cg.masm
	s := in.Locations
	from, to := in.InputType, in.Type
	if s.WillCall() {
		e := entrypoints.F2l
		if from == hir.Double {
			e = entrypoints.D2l
		}
		cg.invokeRuntime(e, in)
		cg.moveOutOfReturnRegister(id, in)
		return nil
	}
	switch to {
	case hir.Byte:
		rd := coreOf(s.Out())
		m.Lsl(rd, lowWordOf(s.In(0)), 24, asmarm.AL)
		m.Asr(rd, rd, 24, asmarm.AL)
	case hir.Char:
		rd := coreOf(s.Out())
		m.Lsl(rd, lowWordOf(s.In(0)), 16, asmarm.AL)
		m.Lsr(rd, rd, 16, asmarm.AL)
	case hir.Short:
		rd := coreOf(s.Out())
		m.Lsl(rd, lowWordOf(s.In(0)), 16, asmarm.AL)
		m.Asr(rd, rd, 16, asmarm.AL)
	case hir.Int:
		rd := coreOf(s.Out())
		switch {
		case from == hir.Long:
			if lo := pairLo(s.In(0)); lo != rd {
				m.Mov(rd, asmarm.RegOp(lo), asmarm.AL)
			}
		case from == hir.Float:
			tmp := sregOf(s.Temp(0))
			m.Vcvtis(tmp, sregOf(s.In(0)), asmarm.AL)
			m.Vmovrs(rd, tmp, asmarm.AL)
		case from == hir.Double:
			tmp := sregOf(s.Temp(0))
			m.Vcvtid(tmp, dregOf(s.In(0)), asmarm.AL)
			m.Vmovrs(rd, tmp, asmarm.AL)
		default:
			if rn := coreOf(s.In(0)); rn != rd {
				m.Mov(rd, asmarm.RegOp(rn), asmarm.AL)
			}
		}
	case hir.Long:
		oLo, oHi := pairLo(s.Out()), pairHi(s.Out())
		if rn := coreOf(s.In(0)); rn != oLo {
			m.Mov(oLo, asmarm.RegOp(rn), asmarm.AL)
		}
		m.Asr(oHi, oLo, 31, asmarm.AL)
	case hir.Float:
		if from == hir.Double {
			m.Vcvtsd(sregOf(s.Out()), dregOf(s.In(0)), asmarm.AL)
			return nil
		}
		tmp := sregOf(s.Temp(0))
		m.Vmovsr(tmp, coreOf(s.In(0)), asmarm.AL)
		m.Vcvtsi(sregOf(s.Out()), tmp, asmarm.AL)
	case hir.Double:
		if from == hir.Float {
			m.Vcvtds(dregOf(s.Out()), sregOf(s.In(0)), asmarm.AL)
			return nil
		}
		tmp := sregOf(s.Temp(0))
		m.Vmovsr(tmp, coreOf(s.In(0)), asmarm.AL)
		m.Vcvtdi(dregOf(s.Out()), tmp, asmarm.AL)
	default:
		return errors.Wrap(codegen.ErrShape, "conversion %v to %v", from, to)
	}
	return nil
}

func arrayDataOffset(typ hir.Type) int32 {
	if typ.Is64Bit() {
		return mirrorWideArrayDataOffset
	}
	return mirrorArrayDataOffset
}

func scaleFor(typ hir.Type) uint8 {
	switch typ.SizeInBytes() {
	case 1:
		return 0
	case 2:
		return 1
	case 8:
		return 3
	default:
		return 2
	}
}

// elementAddress folds a constant index into the offset or computes the
// scaled address into IP.
func (cg *Generator) elementAddress(obj asmarm.Reg, idx location.Location, typ hir.Type) (asmarm.Reg, int32) {
	off := arrayDataOffset(typ)
	if idx.Kind() == location.ConstantInt {
		return obj, off + idx.ConstantInt32()<<scaleFor(typ)
	}
	cg.masm.Add(asmarm.IP, obj,
		asmarm.ShiftImm(coreOf(idx), asmarm.LSL, scaleFor(typ)), asmarm.AL)
	return asmarm.IP, off
}

func (cg *Generator) visitArrayGet(in *hir.Instruction) error {
	s := in.Locations
	base, off := cg.elementAddress(coreOf(s.In(0)), s.In(1), in.Type)
	return cg.emitTypedLoad(s.Out(), in.Type, base, off)
}

func (cg *Generator) visitArraySet(in *hir.Instruction) error {
	s := in.Locations
	valueType := cg.graph.InstrAt(in.In(2)).Type
	obj := coreOf(s.In(0))
	base, off := cg.elementAddress(obj, s.In(1), valueType)
	if err := cg.emitTypedStore(s.In(2), valueType, base, off); err != nil {
		return err
	}
	if valueType == hir.Reference {
		cg.markCard(obj, coreOf(s.Temp(0)))
	}
	return nil
}

// emitTypedLoad loads one value of the given type from [base + off] into dst.
func (cg *Generator) emitTypedLoad(dst location.Location, typ hir.Type, base asmarm.Reg, off int32) error {
	m := cg.masm
	switch typ {
	case hir.Bool:
		m.LoadFromOffset(asmarm.LoadUnsignedByte, coreOf(dst), base, off, asmarm.AL)
	case hir.Byte:
		m.LoadFromOffset(asmarm.LoadSignedByte, coreOf(dst), base, off, asmarm.AL)
	case hir.Char:
		m.LoadFromOffset(asmarm.LoadUnsignedHalf, coreOf(dst), base, off, asmarm.AL)
	case hir.Short:
		m.LoadFromOffset(asmarm.LoadSignedHalf, coreOf(dst), base, off, asmarm.AL)
	case hir.Int, hir.Reference:
		m.LoadFromOffset(asmarm.LoadWord, coreOf(dst), base, off, asmarm.AL)
	case hir.Float:
		m.Vldrs(sregOf(dst), base, off, asmarm.AL)
	case hir.Double:
		m.Vldrd(dregOf(dst), base, off, asmarm.AL)
	case hir.Long:
		lo, hi := pairLo(dst), pairHi(dst)
		if lo == base {
			m.LoadFromOffset(asmarm.LoadWord, hi, base, off+4, asmarm.AL)
			m.LoadFromOffset(asmarm.LoadWord, lo, base, off, asmarm.AL)
		} else {
			m.LoadFromOffset(asmarm.LoadWord, lo, base, off, asmarm.AL)
			m.LoadFromOffset(asmarm.LoadWord, hi, base, off+4, asmarm.AL)
		}
	default:
		return errors.Wrap(codegen.ErrShape, "load of %v", typ)
	}
	return nil
}

// emitTypedStore stores one value of the given type from src to [base + off].
func (cg *Generator) emitTypedStore(src location.Location, typ hir.Type, base asmarm.Reg, off int32) error {
	m := cg.masm
	switch typ {
	case hir.Bool, hir.Byte:
		m.StoreToOffset(asmarm.StoreByte, coreOf(src), base, off, asmarm.AL)
	case hir.Char, hir.Short:
		m.StoreToOffset(asmarm.StoreHalf, coreOf(src), base, off, asmarm.AL)
	case hir.Int, hir.Reference:
		m.StoreToOffset(asmarm.StoreWord, coreOf(src), base, off, asmarm.AL)
	case hir.Float:
		m.Vstrs(sregOf(src), base, off, asmarm.AL)
	case hir.Double:
		m.Vstrd(dregOf(src), base, off, asmarm.AL)
	case hir.Long:
		m.StoreToOffset(asmarm.StoreWord, pairLo(src), base, off, asmarm.AL)
		m.StoreToOffset(asmarm.StoreWord, pairHi(src), base, off+4, asmarm.AL)
	default:
		return errors.Wrap(codegen.ErrShape, "store of %v", typ)
	}
	return nil
}

// markCard dirties the card covering obj after a reference store.
func (cg *Generator) markCard(obj, tmp asmarm.Reg) {
	m := cg.masm
	m.LoadFromOffset(asmarm.LoadWord, tmp, asmarm.TR,
		cg.ctx.Thread.CardTableOffset, asmarm.AL)
	m.Lsr(asmarm.IP, obj, cardTableShift, asmarm.AL)
	m.StoreByteRegOffset(tmp, tmp, asmarm.IP, asmarm.AL)
}

func (cg *Generator) visitFieldGet(in *hir.Instruction) error {
	s := in.Locations
	err := cg.emitTypedLoad(s.Out(), in.Type, coreOf(s.In(0)), in.FieldOffset)
	if err != nil {
		return err
	}
	if in.Volatile {
		cg.masm.Dmb(asmarm.BarrierISH)
	}
	return nil
}

func (cg *Generator) visitFieldSet(in *hir.Instruction) error {
	s := in.Locations
	valueType := cg.graph.InstrAt(in.In(1)).Type
	base := coreOf(s.In(0))
	if in.Volatile {
		cg.masm.Dmb(asmarm.BarrierISHST)
	}
	if err := cg.emitTypedStore(s.In(1), valueType, base, in.FieldOffset); err != nil {
		return err
	}
	if in.Volatile {
		cg.masm.Dmb(asmarm.BarrierISH)
	}
	if valueType == hir.Reference {
		cg.markCard(base, coreOf(s.Temp(0)))
	}
	return nil
}

func (cg *Generator) visitNullCheck(in *hir.Instruction) {
	m := cg.masm
	obj := coreOf(in.Locations.In(0))
	if cg.ctx.Options.ImplicitNullChecks {
		// A load through null faults; the handler maps the pc back through
		// the stack map.
		m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, obj, 0, asmarm.AL)
		cg.recordPCInfo(in)
		return
	}
	sp := cg.throwSlowPath("null check", entrypoints.ThrowNullPointer, in, nil)
	m.Cmp(obj, asmarm.Imm(0), asmarm.AL)
	m.B(sp.EntryLabel(), asmarm.EQ)
}

func (cg *Generator) visitDivZeroCheck(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	sp := cg.throwSlowPath("div zero check", entrypoints.ThrowDivZero, in, nil)
	if cg.graph.InstrAt(in.In(0)).Type == hir.Long {
		m.Orr(asmarm.IP, pairLo(s.In(0)), asmarm.RegOp(pairHi(s.In(0))), asmarm.AL)
		m.Cmp(asmarm.IP, asmarm.Imm(0), asmarm.AL)
	} else {
		m.Cmp(coreOf(s.In(0)), asmarm.Imm(0), asmarm.AL)
	}
	m.B(sp.EntryLabel(), asmarm.EQ)
}

func (cg *Generator) visitBoundsCheck(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	index, length := s.In(0), s.In(1)
	sp := cg.throwSlowPath("bounds check", entrypoints.ThrowArrayBounds, in,
		[]regalloc.MoveOp{
			{Src: index, Dst: location.MakeRegister(int(asmarm.R0)), Type: hir.Int},
			{Src: length, Dst: location.MakeRegister(int(asmarm.R1)), Type: hir.Int},
		})
	if index.Kind() == location.ConstantInt {
		// length <= index, unsigned.
		m.Cmp(coreOf(length), asmarm.Imm(uint32(index.ConstantInt32())), asmarm.AL)
		m.B(sp.EntryLabel(), asmarm.LS)
		return
	}
	m.Cmp(coreOf(index), asmarm.RegOp(coreOf(length)), asmarm.AL)
	m.B(sp.EntryLabel(), asmarm.CS)
}

func (cg *Generator) visitSuspendCheck(in *hir.Instruction) {
	m := cg.masm
	sp := cg.newSlowPath("suspend check", in, true, func(*codegen.SlowPath) error {
		cg.invokeRuntime(entrypoints.TestSuspend, in)
		return nil
	})
	m.LoadFromOffset(asmarm.LoadUnsignedHalf, asmarm.IP, asmarm.TR,
		cg.ctx.Thread.FlagsOffset, asmarm.AL)
	m.Cmp(asmarm.IP, asmarm.Imm(0), asmarm.AL)
	m.B(sp.EntryLabel(), asmarm.NE)
	m.Bind(sp.ExitLabel())
}

func (cg *Generator) visitLoadClass(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	method := coreOf(s.In(0))
	out := coreOf(s.Out())

	var sp *codegen.SlowPath
	if in.NeedsInitialization || (cg.ctx.Options.PIC && in.MayBeNull) {
		sp = cg.resolutionSlowPath(in, method, out)
	}
	if cg.ctx.Options.PIC {
		m.LoadFromOffset(asmarm.LoadWord, out, method,
			artMethodDexCacheResolvedTypesOffset, asmarm.AL)
		m.LoadFromOffset(asmarm.LoadWord, out, out,
			dexCacheArrayDataOffset+4*int32(in.Index), asmarm.AL)
		if in.MayBeNull {
			m.Cmp(out, asmarm.Imm(0), asmarm.AL)
			m.B(sp.EntryLabel(), asmarm.EQ)
		}
	} else {
		// Boot-image class: the linker writes the absolute address over the
		// movw/movt pair.
		cg.patches = append(cg.patches, codegen.LinkerPatch{
			Offset:      uint32(m.CodeSize()),
			Kind:        codegen.PatchType,
			TargetIndex: in.Index,
		})
		m.Movw(out, 0, asmarm.AL)
		m.Movt(out, 0, asmarm.AL)
	}
	if in.NeedsInitialization {
		m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, out,
			mirrorClassStatusOffset, asmarm.AL)
		m.Cmp(asmarm.IP, asmarm.Imm(classStatusInitialized), asmarm.AL)
		m.B(sp.EntryLabel(), asmarm.LT)
		m.Dmb(asmarm.BarrierISH)
	}
	if sp != nil {
		m.Bind(sp.ExitLabel())
	}
}

// resolutionSlowPath builds the shared out-of-line sequence for class
// resolution and initialization.
func (cg *Generator) resolutionSlowPath(in *hir.Instruction, method, out asmarm.Reg) *codegen.SlowPath {
	return cg.newSlowPath("class resolution", in, true, func(*codegen.SlowPath) error {
		m := cg.masm
		if method != asmarm.R1 {
			m.Mov(asmarm.R1, asmarm.RegOp(method), asmarm.AL)
		}
		m.LoadImmediate(asmarm.R0, int32(in.Index), asmarm.AL)
		e := entrypoints.InitializeType
		if in.NeedsInitialization {
			e = entrypoints.InitializeStaticStorage
		}
		cg.invokeRuntime(e, in)
		if out != asmarm.R0 {
			m.Mov(out, asmarm.RegOp(asmarm.R0), asmarm.AL)
		}
		return nil
	})
}

func (cg *Generator) visitLoadString(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	method := coreOf(s.In(0))
	out := coreOf(s.Out())

	if !cg.ctx.Options.PIC {
		cg.patches = append(cg.patches, codegen.LinkerPatch{
			Offset:      uint32(m.CodeSize()),
			Kind:        codegen.PatchString,
			TargetIndex: in.Index,
		})
		m.Movw(out, 0, asmarm.AL)
		m.Movt(out, 0, asmarm.AL)
		return
	}
	sp := cg.newSlowPath("string resolution", in, true, func(*codegen.SlowPath) error {
		if method != asmarm.R1 {
			cg.masm.Mov(asmarm.R1, asmarm.RegOp(method), asmarm.AL)
		}
		cg.masm.LoadImmediate(asmarm.R0, int32(in.Index), asmarm.AL)
		cg.invokeRuntime(entrypoints.ResolveString, in)
		if out != asmarm.R0 {
			cg.masm.Mov(out, asmarm.RegOp(asmarm.R0), asmarm.AL)
		}
		return nil
	})
	m.LoadFromOffset(asmarm.LoadWord, out, method,
		artMethodDeclaringClassOffset, asmarm.AL)
	m.LoadFromOffset(asmarm.LoadWord, out, out,
		mirrorClassDexCacheStringsOffset, asmarm.AL)
	m.LoadFromOffset(asmarm.LoadWord, out, out,
		dexCacheArrayDataOffset+4*int32(in.Index), asmarm.AL)
	m.Cmp(out, asmarm.Imm(0), asmarm.AL)
	m.B(sp.EntryLabel(), asmarm.EQ)
	m.Bind(sp.ExitLabel())
}

// typeCheckArgs moves the object and target class into the runtime helper's
// registers; the helper compares the object's class.
func (cg *Generator) typeCheckArgs(s *location.Summary) []regalloc.MoveOp {
	return []regalloc.MoveOp{
		{Src: s.In(0), Dst: location.MakeRegister(int(asmarm.R0)), Type: hir.Reference},
		{Src: s.In(1), Dst: location.MakeRegister(int(asmarm.R1)), Type: hir.Reference},
	}
}

func (cg *Generator) visitInstanceOf(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	obj, class, out := coreOf(s.In(0)), coreOf(s.In(1)), coreOf(s.Out())

	sp := cg.newSlowPath("instance of", in, true, func(*codegen.SlowPath) error {
		if err := codegen.ResolveParallelMoves(cg, cg.typeCheckArgs(s)); err != nil {
			return err
		}
		cg.masm.LoadFromOffset(asmarm.LoadWord, asmarm.R0, asmarm.R0,
			mirrorObjectClassOffset, asmarm.AL)
		cg.invokeRuntime(entrypoints.InstanceofNonTrivial, in)
		if out != asmarm.R0 {
			cg.masm.Mov(out, asmarm.RegOp(asmarm.R0), asmarm.AL)
		}
		return nil
	})

	var zero, done asm.Label
	m.Cmp(obj, asmarm.Imm(0), asmarm.AL)
	m.B(&zero, asmarm.EQ) // null is an instance of nothing
	m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, obj, mirrorObjectClassOffset, asmarm.AL)
	m.Cmp(asmarm.IP, asmarm.RegOp(class), asmarm.AL)
	m.B(sp.EntryLabel(), asmarm.NE)
	m.Mov(out, asmarm.Imm(1), asmarm.AL)
	m.B(&done, asmarm.AL)
	m.Bind(&zero)
	m.Mov(out, asmarm.Imm(0), asmarm.AL)
	m.Bind(&done)
	m.Bind(sp.ExitLabel())
}

func (cg *Generator) visitCheckCast(in *hir.Instruction) {
	m := cg.masm
	s := in.Locations
	obj, class, tmp := coreOf(s.In(0)), coreOf(s.In(1)), coreOf(s.Temp(0))

	sp := cg.newSlowPath("check cast", in, true, func(*codegen.SlowPath) error {
		if err := codegen.ResolveParallelMoves(cg, cg.typeCheckArgs(s)); err != nil {
			return err
		}
		cg.masm.LoadFromOffset(asmarm.LoadWord, asmarm.R0, asmarm.R0,
			mirrorObjectClassOffset, asmarm.AL)
		cg.invokeRuntime(entrypoints.CheckCast, in)
		return nil
	})

	var done asm.Label
	m.Cmp(obj, asmarm.Imm(0), asmarm.AL) // null casts to anything
	m.B(&done, asmarm.EQ)
	m.LoadFromOffset(asmarm.LoadWord, tmp, obj, mirrorObjectClassOffset, asmarm.AL)
	m.Cmp(tmp, asmarm.RegOp(class), asmarm.AL)
	m.B(sp.EntryLabel(), asmarm.NE)
	m.Bind(&done)
	m.Bind(sp.ExitLabel())
}

func (cg *Generator) visitInvoke(id hir.ID, in *hir.Instruction) {
	m := cg.masm
	switch in.Op {
	case hir.OpInvokeStatic, hir.OpInvokeDirect:
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, asmarm.SP, 0, asmarm.AL)
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, methodRegister,
			artMethodDexCacheResolvedMethodsOffset, asmarm.AL)
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, methodRegister,
			dexCacheArrayDataOffset+4*int32(in.Index), asmarm.AL)
	case hir.OpInvokeVirtual:
		recv := coreOf(in.Locations.In(0))
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, recv,
			mirrorObjectClassOffset, asmarm.AL)
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, methodRegister,
			mirrorClassVtableOffset, asmarm.AL)
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, methodRegister,
			mirrorArrayDataOffset+4*int32(in.Index), asmarm.AL)
	case hir.OpInvokeInterface:
		// The conflict trampoline resolves through the hidden argument.
		m.LoadFromOffset(asmarm.LoadWord, methodRegister, asmarm.SP, 0, asmarm.AL)
		m.LoadImmediate(asmarm.IP, int32(in.Index), asmarm.AL)
		cg.invokeRuntime(entrypoints.ImtConflictTrampoline, in)
		cg.moveOutOfReturnRegister(id, in)
		return
	}
	m.LoadFromOffset(asmarm.LoadWord, asmarm.LR, methodRegister,
		artMethodQuickCodeOffset, asmarm.AL)
	m.Blx(asmarm.LR, asmarm.AL)
	cg.recordPCInfo(in)
	cg.moveOutOfReturnRegister(id, in)
}

func (cg *Generator) visitGoto(in *hir.Instruction, orderIndex int) error {
	blk := cg.graph.BlockAt(in.Block)
	succ := blk.Succs[0]
	if len(cg.graph.BlockAt(succ).Preds) > 1 {
		if err := cg.emitEdgeMoves(in.Block, succ); err != nil {
			return err
		}
	}
	cg.branchTo(succ, orderIndex)
	return nil
}

func (cg *Generator) visitIf(in *hir.Instruction, orderIndex int) error {
	m := cg.masm
	blk := cg.graph.BlockAt(in.Block)
	trueB, falseB := blk.Succs[0], blk.Succs[1]
	for _, succ := range blk.Succs {
		if len(cg.graph.BlockAt(succ).Preds) > 1 &&
			len(cg.res.EdgeMoves[regalloc.Edge{From: in.Block, To: succ}]) > 0 {
			return errors.Wrap(codegen.ErrShape,
				"unsplit critical edge %d->%d carries moves", in.Block, succ)
		}
	}
	if cond := cg.graph.InstrAt(in.In(0)); cond.EmittedAtUseSite {
		cs := cond.Locations
		cg.emitCompare(coreOf(cs.In(0)), cs.In(1))
		m.B(&cg.blockLabels[trueB], condFor(cond.Op))
	} else {
		m.Cmp(coreOf(in.Locations.In(0)), asmarm.Imm(0), asmarm.AL)
		m.B(&cg.blockLabels[trueB], asmarm.NE)
	}
	cg.branchTo(falseB, orderIndex)
	return nil
}
