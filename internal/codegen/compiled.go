// Package codegen holds the target-independent half of the code generator:
// the compiled-method artifact, the parallel-move resolver, slow-path
// plumbing, linker patches, and the back end's error kinds. Per-ISA
// generators live in subpackages.
package codegen

import (
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
)

// PatchKind classifies a linker patch.
type PatchKind byte

const (
	// PatchMethod resolves a method index to the target method's code.
	PatchMethod PatchKind = iota
	// PatchType resolves a type index to a class object address.
	PatchType
	// PatchString resolves a string index to an interned string address.
	PatchString
	// PatchEntrypoint rebinds a call against a runtime trampoline.
	PatchEntrypoint
)

// LinkerPatch is a deferred fixup against the code vector, resolved when the
// method is installed in the code cache.
type LinkerPatch struct {
	Offset      uint32
	Kind        PatchKind
	TargetIndex uint32
}

// PCMapping relates one native pc to the dex pc it was compiled from.
type PCMapping struct {
	NativePC uint32
	DexPC    uint32
}

// VmapEntry records where a callee-save register was spilled, one slot index
// per saved register in push order.
type VmapEntry struct {
	Register  int
	IsFpu     bool
	SpillSlot int32
}

// CompiledMethod is the back end's final artifact.
type CompiledMethod struct {
	Code []byte

	InstructionSet   isa.InstructionSet
	FrameSizeInBytes int32
	CoreSpillMask    uint32
	FpSpillMask      uint32

	// MappingTable pairs native pcs with dex pcs, ascending by native pc.
	MappingTable []PCMapping
	// VmapTable locates every spilled register in the frame.
	VmapTable []VmapEntry
	// GCMap is the encoded stack-map stream (internal/stackmap format).
	GCMap []byte
	// CFI is the frame-info opcode stream, offsets already final.
	CFI []byte
	// Patches are ordered by code offset.
	Patches []LinkerPatch
}
