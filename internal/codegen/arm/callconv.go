package arm

import (
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/location"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

// The managed calling convention: the callee method pointer arrives in r0,
// argument words fill r1-r3 in order and overflow to caller stack slots.
// Floating-point arguments travel in core registers like everything else;
// only the method body moves them into the FPU file. A long whose low word
// lands in r3 straddles into the first stack slot.
//
// Stack slots produced here are sp-relative byte offsets in the caller's
// outgoing area: word w of the stack arguments lives at [sp, #4+4*w], with
// [sp, #0] holding the caller's own method. The callee sees the same word at
// that offset plus its frame size.

var argumentRegisters = [...]asmarm.Reg{asmarm.R1, asmarm.R2, asmarm.R3}

// methodRegister holds the ArtMethod* of the callee at every call boundary.
const methodRegister = asmarm.R0

// callingConvention walks one signature, yielding a location per argument.
type callingConvention struct {
	regIndex int
	argWord  int
}

// Next returns the location of the next argument of the given type and
// advances the convention state.
func (c *callingConvention) Next(typ hir.Type) location.Location {
	if typ.Is64Bit() {
		switch {
		case c.regIndex+1 < len(argumentRegisters):
			lo := int(argumentRegisters[c.regIndex])
			hi := int(argumentRegisters[c.regIndex+1])
			c.regIndex += 2
			c.argWord += 2
			return location.MakeRegisterPair(lo, hi)
		case c.regIndex < len(argumentRegisters):
			// Low half takes the last register, high half the next stack
			// word.
			lo := int(argumentRegisters[c.regIndex])
			c.regIndex = len(argumentRegisters)
			hiOff := int32(4 + 4*(c.argWord+1-len(argumentRegisters)))
			c.argWord += 2
			return location.MakeQuickParameter(lo, hiOff)
		default:
			off := int32(4 + 4*(c.argWord-len(argumentRegisters)))
			c.argWord += 2
			return location.MakeDoubleStackSlot(off)
		}
	}
	if c.regIndex < len(argumentRegisters) {
		r := int(argumentRegisters[c.regIndex])
		c.regIndex++
		c.argWord++
		return location.MakeRegister(r)
	}
	off := int32(4 + 4*(c.argWord-len(argumentRegisters)))
	c.argWord++
	return location.MakeStackSlot(off)
}

// StackWords returns how many caller stack words the arguments consumed so
// far.
func (c *callingConvention) StackWords() int {
	if c.argWord <= len(argumentRegisters) {
		return 0
	}
	return c.argWord - len(argumentRegisters)
}

// ReturnLocation gives the fixed home of the callee's result.
func (c *callingConvention) ReturnLocation(typ hir.Type) location.Location {
	return returnLocation(typ)
}

// returnLocation gives the fixed ABI home of a returned value. The managed
// ABI returns everything in core registers, including floats.
func returnLocation(typ hir.Type) location.Location {
	switch {
	case typ == hir.Void:
		return location.NoLocation
	case typ.Is64Bit():
		return location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1))
	default:
		return location.MakeRegister(int(asmarm.R0))
	}
}

// runtimeCallingConvention places arguments for runtime entrypoint calls:
// plain AAPCS-style core register assignment r0-r3, 64-bit values in even
// pairs.
type runtimeCallingConvention struct {
	regIndex int
}

func (c *runtimeCallingConvention) Next(typ hir.Type) location.Location {
	if typ.Is64Bit() {
		c.regIndex = (c.regIndex + 1) &^ 1 // align to (r0,r1) or (r2,r3)
		lo := c.regIndex
		c.regIndex += 2
		return location.MakeRegisterPair(lo, lo+1)
	}
	r := c.regIndex
	c.regIndex++
	return location.MakeRegister(r)
}

// ReturnLocation gives the helper's result home: r0, or (r0,r1) for 64-bit
// values. The helpers return floats in core registers too.
func (c *runtimeCallingConvention) ReturnLocation(typ hir.Type) location.Location {
	if typ.Is64Bit() {
		return location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1))
	}
	if typ == hir.Void {
		return location.NoLocation
	}
	return location.MakeRegister(int(asmarm.R0))
}

// jniCallingConvention places arguments for native method stubs: plain AAPCS
// core assignment r0-r3 with 64-bit values in even pairs, overflowing to
// 8-byte-aligned native stack words; once an argument lands on the stack no
// later one goes back to a register. The stub prepends the JNIEnv* and the
// jobject/jclass receiver as ordinary reference arguments. Managed call
// sites never marshal a native frame themselves; native methods are entered
// through their stub.
type jniCallingConvention struct {
	regIndex  int
	stackWord int
}

func (c *jniCallingConvention) Next(typ hir.Type) location.Location {
	if typ.Is64Bit() {
		c.regIndex = (c.regIndex + 1) &^ 1
		if c.regIndex+1 < 4 {
			lo := c.regIndex
			c.regIndex += 2
			return location.MakeRegisterPair(lo, lo+1)
		}
		c.regIndex = 4
		c.stackWord = (c.stackWord + 1) &^ 1
		off := int32(4 * c.stackWord)
		c.stackWord += 2
		return location.MakeDoubleStackSlot(off)
	}
	if c.regIndex < 4 {
		r := c.regIndex
		c.regIndex++
		return location.MakeRegister(r)
	}
	off := int32(4 * c.stackWord)
	c.stackWord++
	return location.MakeStackSlot(off)
}

// ReturnLocation gives the native result home under the softfp ABI.
func (c *jniCallingConvention) ReturnLocation(typ hir.Type) location.Location {
	if typ.Is64Bit() {
		return location.MakeRegisterPair(int(asmarm.R0), int(asmarm.R1))
	}
	if typ == hir.Void {
		return location.NoLocation
	}
	return location.MakeRegister(int(asmarm.R0))
}
