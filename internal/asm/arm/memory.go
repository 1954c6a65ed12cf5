package arm

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/asm"
)

// LoadKind selects the width and extension of a core-register load.
type LoadKind uint8

const (
	LoadWord LoadKind = iota
	LoadUnsignedByte
	LoadSignedByte
	LoadUnsignedHalf
	LoadSignedHalf
	// LoadWordPair is ldrd into rt, rt+1 (rt even).
	LoadWordPair
)

// StoreKind selects the width of a core-register store.
type StoreKind uint8

const (
	StoreWord StoreKind = iota
	StoreByte
	StoreHalf
	// StoreWordPair is strd from rt, rt+1 (rt even).
	StoreWordPair
)

// offsetEncodable reports whether the offset fits the immediate form of the
// given access: 12 bits for word/byte, 8 bits for the halfword/dual family.
func loadOffsetEncodable(kind LoadKind, offset int32) bool {
	mag := offset
	if mag < 0 {
		mag = -mag
	}
	switch kind {
	case LoadWord, LoadUnsignedByte:
		return mag <= 4095
	default:
		return mag <= 255
	}
}

func storeOffsetEncodable(kind StoreKind, offset int32) bool {
	mag := offset
	if mag < 0 {
		mag = -mag
	}
	switch kind {
	case StoreWord, StoreByte:
		return mag <= 4095
	default:
		return mag <= 255
	}
}

// ldrStrWord emits the word/byte immediate form.
func (a *Assembler) ldrStrWord(cond Condition, load, byteAccess bool, rt, rn Reg, offset int32) {
	u := uint32(1)
	if offset < 0 {
		u = 0
		offset = -offset
	}
	w := uint32(cond)<<28 | 1<<26 | 1<<24 | u<<23 | uint32(rn)<<16 | uint32(rt)<<12 | uint32(offset)
	if byteAccess {
		w |= 1 << 22
	}
	if load {
		w |= 1 << 20
	}
	a.emit(w)
}

// ldrStrHalf emits the halfword/dual immediate form with the given op2
// nibble.
func (a *Assembler) ldrStrHalf(cond Condition, load bool, op2 uint32, rt, rn Reg, offset int32) {
	u := uint32(1)
	if offset < 0 {
		u = 0
		offset = -offset
	}
	w := uint32(cond)<<28 | 1<<24 | u<<23 | 1<<22 | uint32(rn)<<16 | uint32(rt)<<12 |
		uint32(offset>>4)<<8 | op2<<4 | uint32(offset&0xf)
	if load {
		w |= 1 << 20
	}
	a.emit(w)
}

// LoadFromOffset loads rt from [base + offset], splitting unencodable
// offsets through IP.
func (a *Assembler) LoadFromOffset(kind LoadKind, rt, base Reg, offset int32, cond Condition) {
	if kind == LoadWordPair && rt&1 != 0 {
		a.fail(errors.Wrap(asm.ErrIllegalShape, "ldrd needs even base register, got %v", rt))
		return
	}
	if !loadOffsetEncodable(kind, offset) {
		a.LoadImmediate(IP, offset, cond)
		a.Add(IP, base, RegOp(IP), cond)
		base, offset = IP, 0
	}
	switch kind {
	case LoadWord:
		a.ldrStrWord(cond, true, false, rt, base, offset)
	case LoadUnsignedByte:
		a.ldrStrWord(cond, true, true, rt, base, offset)
	case LoadSignedByte:
		a.ldrStrHalf(cond, true, 0xd, rt, base, offset)
	case LoadUnsignedHalf:
		a.ldrStrHalf(cond, true, 0xb, rt, base, offset)
	case LoadSignedHalf:
		a.ldrStrHalf(cond, true, 0xf, rt, base, offset)
	case LoadWordPair:
		a.ldrStrHalf(cond, false, 0xd, rt, base, offset)
	}
}

// StoreToOffset stores rt to [base + offset], splitting unencodable offsets
// through IP. rt must not be IP when splitting is possible.
func (a *Assembler) StoreToOffset(kind StoreKind, rt, base Reg, offset int32, cond Condition) {
	if kind == StoreWordPair && rt&1 != 0 {
		a.fail(errors.Wrap(asm.ErrIllegalShape, "strd needs even base register, got %v", rt))
		return
	}
	if !storeOffsetEncodable(kind, offset) {
		if rt == IP {
			a.fail(errors.Wrap(asm.ErrIllegalShape, "store of IP with unencodable offset %d", offset))
			return
		}
		a.LoadImmediate(IP, offset, cond)
		a.Add(IP, base, RegOp(IP), cond)
		base, offset = IP, 0
	}
	switch kind {
	case StoreWord:
		a.ldrStrWord(cond, false, false, rt, base, offset)
	case StoreByte:
		a.ldrStrWord(cond, false, true, rt, base, offset)
	case StoreHalf:
		a.ldrStrHalf(cond, false, 0xb, rt, base, offset)
	case StoreWordPair:
		a.ldrStrHalf(cond, false, 0xf, rt, base, offset)
	}
}

// LoadWordRegOffset emits ldr rt, [base, rm].
func (a *Assembler) LoadWordRegOffset(rt, base, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 1<<26 | 1<<25 | 1<<24 | 1<<23 | 1<<20 |
		uint32(base)<<16 | uint32(rt)<<12 | uint32(rm))
}

// StoreWordRegOffset emits str rt, [base, rm].
func (a *Assembler) StoreWordRegOffset(rt, base, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 1<<26 | 1<<25 | 1<<24 | 1<<23 |
		uint32(base)<<16 | uint32(rt)<<12 | uint32(rm))
}

// StoreByteRegOffset emits strb rt, [base, rm], the write-barrier card mark
// form.
func (a *Assembler) StoreByteRegOffset(rt, base, rm Reg, cond Condition) {
	a.emit(uint32(cond)<<28 | 1<<26 | 1<<25 | 1<<24 | 1<<23 | 1<<22 |
		uint32(base)<<16 | uint32(rt)<<12 | uint32(rm))
}
