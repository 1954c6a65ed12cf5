// Package isa describes the target instruction sets the back end can emit
// for: word and pointer sizes, register-file shapes, frame alignment and the
// feature bits that gate instruction selection.
package isa

import "fmt"

// InstructionSet identifies a target ISA.
type InstructionSet byte

const (
	None InstructionSet = iota
	Arm
	Arm64
	X86
	X86_64
)

// String implements fmt.Stringer.
func (i InstructionSet) String() string {
	switch i {
	case Arm:
		return "arm"
	case Arm64:
		return "arm64"
	case X86:
		return "x86"
	case X86_64:
		return "x86_64"
	default:
		return "none"
	}
}

// PointerSize returns the size of a managed pointer in bytes.
func (i InstructionSet) PointerSize() int {
	switch i {
	case Arm, X86:
		return 4
	case Arm64, X86_64:
		return 8
	default:
		panic(fmt.Sprintf("isa: pointer size of %v", i))
	}
}

// WordSize returns the native word size in bytes.
func (i InstructionSet) WordSize() int { return i.PointerSize() }

// Is64Bit reports whether the ISA has 64-bit general-purpose registers, i.e.
// whether long values fit a single core register.
func (i InstructionSet) Is64Bit() bool { return i.PointerSize() == 8 }

// Features holds the ISA feature flags that gate instruction selection.
type Features struct {
	// HasDivideInstruction reports sdiv/udiv availability (ARMv7 VE). Without
	// it integer division lowers to a runtime call.
	HasDivideInstruction bool
	// HasAtomicLoadStore64 reports ldrd/strd atomicity (LPAE). Unused by
	// non-volatile paths.
	HasAtomicLoadStore64 bool
}

// Descriptor bundles the per-ISA constants the back end consumes.
type Descriptor struct {
	ISA InstructionSet

	// NumCoreRegisters and NumFpuRegisters size the register files visible to
	// the allocator. For arm the FPU file is counted in single-precision
	// S-registers; doubles take an aligned pair.
	NumCoreRegisters int
	NumFpuRegisters  int

	// StackAlignment is the required alignment of the frame size in bytes.
	StackAlignment int
	// SpillSlotSize is the size of one spill slot; 64-bit values take two
	// consecutive slots on 32-bit targets.
	SpillSlotSize int

	// RequiresEvenPairBase reports whether 64-bit register pairs must start on
	// an even-numbered register.
	RequiresEvenPairBase bool
}

// Describe returns the descriptor for the given ISA, or false when the back
// end has no code generator for it.
func Describe(i InstructionSet) (Descriptor, bool) {
	switch i {
	case Arm:
		return Descriptor{
			ISA:                  Arm,
			NumCoreRegisters:     16,
			NumFpuRegisters:      32,
			StackAlignment:       8,
			SpillSlotSize:        4,
			RequiresEvenPairBase: true,
		}, true
	case Arm64:
		return Descriptor{
			ISA:              Arm64,
			NumCoreRegisters: 32,
			NumFpuRegisters:  32,
			StackAlignment:   16,
			SpillSlotSize:    8,
		}, true
	case X86:
		return Descriptor{
			ISA:                  X86,
			NumCoreRegisters:     8,
			NumFpuRegisters:      8,
			StackAlignment:       16,
			SpillSlotSize:        4,
			RequiresEvenPairBase: false,
		}, true
	case X86_64:
		return Descriptor{
			ISA:              X86_64,
			NumCoreRegisters: 16,
			NumFpuRegisters:  16,
			StackAlignment:   16,
			SpillSlotSize:    8,
		}, true
	default:
		return Descriptor{}, false
	}
}
