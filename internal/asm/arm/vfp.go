package arm

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/asm"
)

// Single-precision registers encode as Vx:D with D the low bit; doubles use
// Vx:D with D the high bit (VFPv3, D0-D15 only here).
func splitS(s SReg) (vd, d uint32) { return uint32(s) >> 1, uint32(s) & 1 }
func splitD(r DReg) (vd, d uint32) { return uint32(r) & 0xf, 0 }

// vfpDP3 emits a three-operand VFP data-processing instruction from its
// AL-condition opcode template.
func (a *Assembler) vfpDP3s(cond Condition, template uint32, sd, sn, sm SReg) {
	vd, d := splitS(sd)
	vn, n := splitS(sn)
	vm, m := splitS(sm)
	a.emit(uint32(cond)<<28 | template | d<<22 | vn<<16 | vd<<12 | n<<7 | m<<5 | vm)
}

func (a *Assembler) vfpDP3d(cond Condition, template uint32, dd, dn, dm DReg) {
	vd, _ := splitD(dd)
	vn, _ := splitD(dn)
	vm, _ := splitD(dm)
	a.emit(uint32(cond)<<28 | template | vn<<16 | vd<<12 | vm)
}

// Vadds emits vadd.f32 sd, sn, sm.
func (a *Assembler) Vadds(sd, sn, sm SReg, cond Condition) { a.vfpDP3s(cond, 0x0e300a00, sd, sn, sm) }

// Vaddd emits vadd.f64 dd, dn, dm.
func (a *Assembler) Vaddd(dd, dn, dm DReg, cond Condition) { a.vfpDP3d(cond, 0x0e300b00, dd, dn, dm) }

// Vsubs emits vsub.f32 sd, sn, sm.
func (a *Assembler) Vsubs(sd, sn, sm SReg, cond Condition) { a.vfpDP3s(cond, 0x0e300a40, sd, sn, sm) }

// Vsubd emits vsub.f64 dd, dn, dm.
func (a *Assembler) Vsubd(dd, dn, dm DReg, cond Condition) { a.vfpDP3d(cond, 0x0e300b40, dd, dn, dm) }

// Vmuls emits vmul.f32 sd, sn, sm.
func (a *Assembler) Vmuls(sd, sn, sm SReg, cond Condition) { a.vfpDP3s(cond, 0x0e200a00, sd, sn, sm) }

// Vmuld emits vmul.f64 dd, dn, dm.
func (a *Assembler) Vmuld(dd, dn, dm DReg, cond Condition) { a.vfpDP3d(cond, 0x0e200b00, dd, dn, dm) }

// Vdivs emits vdiv.f32 sd, sn, sm.
func (a *Assembler) Vdivs(sd, sn, sm SReg, cond Condition) { a.vfpDP3s(cond, 0x0e800a00, sd, sn, sm) }

// Vdivd emits vdiv.f64 dd, dn, dm.
func (a *Assembler) Vdivd(dd, dn, dm DReg, cond Condition) { a.vfpDP3d(cond, 0x0e800b00, dd, dn, dm) }

// vfpDP2 emits a two-operand (Vd, Vm) instruction.
func (a *Assembler) vfpDP2s(cond Condition, template uint32, sd, sm SReg) {
	vd, d := splitS(sd)
	vm, m := splitS(sm)
	a.emit(uint32(cond)<<28 | template | d<<22 | vd<<12 | m<<5 | vm)
}

func (a *Assembler) vfpDP2d(cond Condition, template uint32, dd, dm DReg) {
	vd, _ := splitD(dd)
	vm, _ := splitD(dm)
	a.emit(uint32(cond)<<28 | template | vd<<12 | vm)
}

// Vmovs emits vmov.f32 sd, sm.
func (a *Assembler) Vmovs(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0eb00a40, sd, sm) }

// Vmovd emits vmov.f64 dd, dm.
func (a *Assembler) Vmovd(dd, dm DReg, cond Condition) { a.vfpDP2d(cond, 0x0eb00b40, dd, dm) }

// Vnegs emits vneg.f32 sd, sm.
func (a *Assembler) Vnegs(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0eb10a40, sd, sm) }

// Vnegd emits vneg.f64 dd, dm.
func (a *Assembler) Vnegd(dd, dm DReg, cond Condition) { a.vfpDP2d(cond, 0x0eb10b40, dd, dm) }

// Vabss emits vabs.f32 sd, sm.
func (a *Assembler) Vabss(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0eb00ac0, sd, sm) }

// Vabsd emits vabs.f64 dd, dm.
func (a *Assembler) Vabsd(dd, dm DReg, cond Condition) { a.vfpDP2d(cond, 0x0eb00bc0, dd, dm) }

// Vsqrts emits vsqrt.f32 sd, sm.
func (a *Assembler) Vsqrts(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0eb10ac0, sd, sm) }

// Vsqrtd emits vsqrt.f64 dd, dm.
func (a *Assembler) Vsqrtd(dd, dm DReg, cond Condition) { a.vfpDP2d(cond, 0x0eb10bc0, dd, dm) }

// Vcmps emits vcmp.f32 sd, sm.
func (a *Assembler) Vcmps(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0eb40a40, sd, sm) }

// Vcmpd emits vcmp.f64 dd, dm.
func (a *Assembler) Vcmpd(dd, dm DReg, cond Condition) { a.vfpDP2d(cond, 0x0eb40b40, dd, dm) }

// Vmstat emits vmrs APSR_nzcv, fpscr, moving the VFP comparison flags into
// the core flags.
func (a *Assembler) Vmstat(cond Condition) {
	a.emit(uint32(cond)<<28 | 0x0ef1fa10)
}

// Vcvtds emits vcvt.f64.f32 dd, sm (widen).
func (a *Assembler) Vcvtds(dd DReg, sm SReg, cond Condition) {
	vd, _ := splitD(dd)
	vm, m := splitS(sm)
	a.emit(uint32(cond)<<28 | 0x0eb70ac0 | vd<<12 | m<<5 | vm)
}

// Vcvtsd emits vcvt.f32.f64 sd, dm (narrow).
func (a *Assembler) Vcvtsd(sd SReg, dm DReg, cond Condition) {
	vd, d := splitS(sd)
	vm, _ := splitD(dm)
	a.emit(uint32(cond)<<28 | 0x0eb70bc0 | d<<22 | vd<<12 | vm)
}

// Vcvtis emits vcvt.s32.f32 sd, sm (truncate to int).
func (a *Assembler) Vcvtis(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0ebd0ac0, sd, sm) }

// Vcvtid emits vcvt.s32.f64 sd, dm (truncate to int).
func (a *Assembler) Vcvtid(sd SReg, dm DReg, cond Condition) {
	vd, d := splitS(sd)
	vm, _ := splitD(dm)
	a.emit(uint32(cond)<<28 | 0x0ebd0bc0 | d<<22 | vd<<12 | vm)
}

// Vcvtsi emits vcvt.f32.s32 sd, sm (int to float).
func (a *Assembler) Vcvtsi(sd, sm SReg, cond Condition) { a.vfpDP2s(cond, 0x0eb80ac0, sd, sm) }

// Vcvtdi emits vcvt.f64.s32 dd, sm (int to double).
func (a *Assembler) Vcvtdi(dd DReg, sm SReg, cond Condition) {
	vd, _ := splitD(dd)
	vm, m := splitS(sm)
	a.emit(uint32(cond)<<28 | 0x0eb80bc0 | vd<<12 | m<<5 | vm)
}

// Vmovsr emits vmov sn, rt (core to single).
func (a *Assembler) Vmovsr(sn SReg, rt Reg, cond Condition) {
	vn, n := splitS(sn)
	a.emit(uint32(cond)<<28 | 0x0e000a10 | vn<<16 | uint32(rt)<<12 | n<<7)
}

// Vmovrs emits vmov rt, sn (single to core).
func (a *Assembler) Vmovrs(rt Reg, sn SReg, cond Condition) {
	vn, n := splitS(sn)
	a.emit(uint32(cond)<<28 | 0x0e100a10 | vn<<16 | uint32(rt)<<12 | n<<7)
}

// Vmovdrr emits vmov dm, rt, rt2 (core pair to double).
func (a *Assembler) Vmovdrr(dm DReg, rt, rt2 Reg, cond Condition) {
	vm, _ := splitD(dm)
	a.emit(uint32(cond)<<28 | 0x0c400b10 | uint32(rt2)<<16 | uint32(rt)<<12 | vm)
}

// Vmovrrd emits vmov rt, rt2, dm (double to core pair).
func (a *Assembler) Vmovrrd(rt, rt2 Reg, dm DReg, cond Condition) {
	vm, _ := splitD(dm)
	a.emit(uint32(cond)<<28 | 0x0c500b10 | uint32(rt2)<<16 | uint32(rt)<<12 | vm)
}

// vfpMem emits vldr/vstr; offset must be a multiple of 4 within ±1020.
func (a *Assembler) vfpMem(cond Condition, template uint32, vd, d uint32, rn Reg, offset int32) {
	u := uint32(1 << 23)
	if offset < 0 {
		u = 0
		offset = -offset
	}
	if offset&3 != 0 || offset > 1020 {
		a.fail(errors.Wrap(asm.ErrOperandRange, "vfp memory offset %d", offset))
		return
	}
	a.emit(uint32(cond)<<28 | template | u | d<<22 | uint32(rn)<<16 | vd<<12 | uint32(offset)>>2)
}

// Vldrs emits vldr sd, [rn, #offset].
func (a *Assembler) Vldrs(sd SReg, rn Reg, offset int32, cond Condition) {
	vd, d := splitS(sd)
	a.vfpMem(cond, 0x0d100a00, vd, d, rn, offset)
}

// Vstrs emits vstr sd, [rn, #offset].
func (a *Assembler) Vstrs(sd SReg, rn Reg, offset int32, cond Condition) {
	vd, d := splitS(sd)
	a.vfpMem(cond, 0x0d000a00, vd, d, rn, offset)
}

// Vldrd emits vldr dd, [rn, #offset].
func (a *Assembler) Vldrd(dd DReg, rn Reg, offset int32, cond Condition) {
	vd, d := splitD(dd)
	a.vfpMem(cond, 0x0d100b00, vd, d, rn, offset)
}

// Vstrd emits vstr dd, [rn, #offset].
func (a *Assembler) Vstrd(dd DReg, rn Reg, offset int32, cond Condition) {
	vd, d := splitD(dd)
	a.vfpMem(cond, 0x0d000b00, vd, d, rn, offset)
}

// Vpush emits vpush {dFirst .. dFirst+count-1}.
func (a *Assembler) Vpush(first DReg, count int, cond Condition) {
	if count <= 0 || int(first)+count > 16 {
		a.fail(errors.Wrap(asm.ErrIllegalShape, "vpush d%d count %d", first, count))
		return
	}
	vd, _ := splitD(first)
	a.emit(uint32(cond)<<28 | 0x0d2d0b00 | vd<<12 | uint32(count*2))
}

// Vpop emits vpop {dFirst .. dFirst+count-1}.
func (a *Assembler) Vpop(first DReg, count int, cond Condition) {
	if count <= 0 || int(first)+count > 16 {
		a.fail(errors.Wrap(asm.ErrIllegalShape, "vpop d%d count %d", first, count))
		return
	}
	vd, _ := splitD(first)
	a.emit(uint32(cond)<<28 | 0x0cbd0b00 | vd<<12 | uint32(count*2))
}
