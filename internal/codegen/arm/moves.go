package arm

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

// Move scratch assignments. Cycle parking uses IP for core values, s30/d15
// for FPU and wide values; memory-to-memory transits inside a single move go
// through d14, which no park ever touches. A constant store transits IP,
// which is safe because the resolver performs constant moves after every
// cycle has drained.
const (
	transitS   = asmarm.SReg(28)
	transitD   = asmarm.DReg(14)
	parkFpu    = asmarm.SReg(30)
	parkFpuLow = 30
)

// ScratchLocation implements codegen.MoveEmitter.
func (cg *Generator) ScratchLocation(typ hir.Type) location.Location {
	switch {
	case typ == hir.Float:
		return location.MakeFpuRegister(int(parkFpu))
	case typ.Is64Bit():
		return location.MakeFpuRegisterPair(parkFpuLow, parkFpuLow+1)
	default:
		return location.MakeRegister(int(asmarm.IP))
	}
}

func (cg *Generator) failMove(src, dst location.Location) {
	cg.fail(errors.Wrap(codegen.ErrShape, "no move %v -> %v", src, dst))
}

// EmitMove implements codegen.MoveEmitter: one value transfer between any
// two concrete locations, constants included.
func (cg *Generator) EmitMove(src, dst location.Location, typ hir.Type) {
	m := cg.masm
	switch dst.Kind() {
	case location.CoreRegister:
		rd := coreOf(dst)
		switch src.Kind() {
		case location.CoreRegister:
			m.Mov(rd, asmarm.RegOp(coreOf(src)), asmarm.AL)
		case location.FpuRegister:
			m.Vmovrs(rd, sregOf(src), asmarm.AL)
		case location.StackSlot:
			m.LoadFromOffset(asmarm.LoadWord, rd, asmarm.SP, src.StackOffset(), asmarm.AL)
		case location.ConstantInt:
			m.LoadImmediate(rd, src.ConstantInt32(), asmarm.AL)
		case location.ConstantFloat:
			m.LoadImmediate(rd, int32(src.ConstantFloatBits()), asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	case location.CoreRegisterPair:
		lo, hi := pairLo(dst), pairHi(dst)
		switch src.Kind() {
		case location.CoreRegisterPair:
			cg.emitPairShuffle(lo, hi, pairLo(src), pairHi(src))
		case location.FpuRegisterPair:
			m.Vmovrrd(lo, hi, dregOf(src), asmarm.AL)
		case location.DoubleStackSlot:
			m.LoadFromOffset(asmarm.LoadWord, lo, asmarm.SP, src.StackOffset(), asmarm.AL)
			m.LoadFromOffset(asmarm.LoadWord, hi, asmarm.SP, src.StackOffset()+4, asmarm.AL)
		case location.QuickParameter:
			q := asmarm.Reg(src.QuickParameterRegister())
			if lo != q {
				m.Mov(lo, asmarm.RegOp(q), asmarm.AL)
			}
			m.LoadFromOffset(asmarm.LoadWord, hi, asmarm.SP, src.QuickParameterStackOffset(), asmarm.AL)
		case location.ConstantLong, location.ConstantDouble:
			v := constantBits64(src)
			m.LoadImmediate(lo, int32(v), asmarm.AL)
			m.LoadImmediate(hi, int32(v>>32), asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	case location.FpuRegister:
		sd := sregOf(dst)
		switch src.Kind() {
		case location.FpuRegister:
			m.Vmovs(sd, sregOf(src), asmarm.AL)
		case location.CoreRegister:
			m.Vmovsr(sd, coreOf(src), asmarm.AL)
		case location.StackSlot:
			m.Vldrs(sd, asmarm.SP, src.StackOffset(), asmarm.AL)
		case location.ConstantFloat:
			m.LoadImmediate(asmarm.IP, int32(src.ConstantFloatBits()), asmarm.AL)
			m.Vmovsr(sd, asmarm.IP, asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	case location.FpuRegisterPair:
		dd := dregOf(dst)
		switch src.Kind() {
		case location.FpuRegisterPair:
			m.Vmovd(dd, dregOf(src), asmarm.AL)
		case location.CoreRegisterPair:
			m.Vmovdrr(dd, pairLo(src), pairHi(src), asmarm.AL)
		case location.DoubleStackSlot:
			m.Vldrd(dd, asmarm.SP, src.StackOffset(), asmarm.AL)
		case location.ConstantLong, location.ConstantDouble:
			v := constantBits64(src)
			sLo := asmarm.SReg(dst.PairLow())
			m.LoadImmediate(asmarm.IP, int32(v), asmarm.AL)
			m.Vmovsr(sLo, asmarm.IP, asmarm.AL)
			m.LoadImmediate(asmarm.IP, int32(v>>32), asmarm.AL)
			m.Vmovsr(sLo+1, asmarm.IP, asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	case location.StackSlot:
		off := dst.StackOffset()
		switch src.Kind() {
		case location.CoreRegister:
			m.StoreToOffset(asmarm.StoreWord, coreOf(src), asmarm.SP, off, asmarm.AL)
		case location.FpuRegister:
			m.Vstrs(sregOf(src), asmarm.SP, off, asmarm.AL)
		case location.StackSlot:
			m.Vldrs(transitS, asmarm.SP, src.StackOffset(), asmarm.AL)
			m.Vstrs(transitS, asmarm.SP, off, asmarm.AL)
		case location.ConstantInt:
			m.LoadImmediate(asmarm.IP, src.ConstantInt32(), asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off, asmarm.AL)
		case location.ConstantFloat:
			m.LoadImmediate(asmarm.IP, int32(src.ConstantFloatBits()), asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off, asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	case location.DoubleStackSlot:
		off := dst.StackOffset()
		switch src.Kind() {
		case location.CoreRegisterPair:
			m.StoreToOffset(asmarm.StoreWord, pairLo(src), asmarm.SP, off, asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, pairHi(src), asmarm.SP, off+4, asmarm.AL)
		case location.FpuRegisterPair:
			m.Vstrd(dregOf(src), asmarm.SP, off, asmarm.AL)
		case location.DoubleStackSlot:
			m.Vldrd(transitD, asmarm.SP, src.StackOffset(), asmarm.AL)
			m.Vstrd(transitD, asmarm.SP, off, asmarm.AL)
		case location.QuickParameter:
			q := asmarm.Reg(src.QuickParameterRegister())
			m.StoreToOffset(asmarm.StoreWord, q, asmarm.SP, off, asmarm.AL)
			m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, asmarm.SP, src.QuickParameterStackOffset(), asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off+4, asmarm.AL)
		case location.ConstantLong, location.ConstantDouble:
			v := constantBits64(src)
			m.LoadImmediate(asmarm.IP, int32(v), asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off, asmarm.AL)
			m.LoadImmediate(asmarm.IP, int32(v>>32), asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off+4, asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	case location.QuickParameter:
		q := asmarm.Reg(dst.QuickParameterRegister())
		off := dst.QuickParameterStackOffset()
		switch src.Kind() {
		case location.CoreRegisterPair:
			m.StoreToOffset(asmarm.StoreWord, pairHi(src), asmarm.SP, off, asmarm.AL)
			if q != pairLo(src) {
				m.Mov(q, asmarm.RegOp(pairLo(src)), asmarm.AL)
			}
		case location.DoubleStackSlot:
			m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, asmarm.SP, src.StackOffset()+4, asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off, asmarm.AL)
			m.LoadFromOffset(asmarm.LoadWord, q, asmarm.SP, src.StackOffset(), asmarm.AL)
		case location.ConstantLong:
			v := constantBits64(src)
			m.LoadImmediate(asmarm.IP, int32(v>>32), asmarm.AL)
			m.StoreToOffset(asmarm.StoreWord, asmarm.IP, asmarm.SP, off, asmarm.AL)
			m.LoadImmediate(q, int32(v), asmarm.AL)
		default:
			cg.failMove(src, dst)
		}

	default:
		cg.failMove(src, dst)
	}
}

// emitPairShuffle moves a core pair into another, watching for half
// overlaps. A full swap routes the low word through IP.
func (cg *Generator) emitPairShuffle(dlo, dhi, slo, shi asmarm.Reg) {
	m := cg.masm
	switch {
	case dlo == shi && dhi == slo:
		m.Mov(asmarm.IP, asmarm.RegOp(shi), asmarm.AL)
		m.Mov(dlo, asmarm.RegOp(slo), asmarm.AL)
		m.Mov(dhi, asmarm.RegOp(asmarm.IP), asmarm.AL)
	case dlo == shi:
		m.Mov(dhi, asmarm.RegOp(shi), asmarm.AL)
		m.Mov(dlo, asmarm.RegOp(slo), asmarm.AL)
	default:
		if dlo != slo {
			m.Mov(dlo, asmarm.RegOp(slo), asmarm.AL)
		}
		if dhi != shi {
			m.Mov(dhi, asmarm.RegOp(shi), asmarm.AL)
		}
	}
}

func constantBits64(l location.Location) uint64 {
	if l.Kind() == location.ConstantDouble {
		return l.ConstantDoubleBits()
	}
	return uint64(l.ConstantInt64())
}
