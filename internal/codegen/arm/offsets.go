// Package arm is the ARM32 code generator: calling conventions, the
// per-opcode location builder, the instruction emitter and its slow paths.
package arm

// Mirror-object field offsets for the 32-bit runtime layout. Generated code
// addresses these fields directly; the values must match the runtime the code
// is installed into.
const (
	// Object header.
	mirrorObjectClassOffset   = 0
	mirrorObjectMonitorOffset = 4

	// Arrays: length then data, data 8-byte aligned for wide elements.
	mirrorArrayLengthOffset = 8
	mirrorArrayDataOffset   = 12
	mirrorWideArrayDataOffset = 16

	// mirror::Class.
	mirrorClassStatusOffset      = 112
	mirrorClassVtableOffset      = 116
	mirrorClassDexCacheStringsOffset = 104

	// Class status value meaning "initialized"; anything lower needs the
	// initialization slow path.
	classStatusInitialized = 10

	// ArtMethod.
	artMethodDeclaringClassOffset      = 0
	artMethodDexCacheResolvedMethodsOffset = 4
	artMethodDexCacheResolvedTypesOffset   = 8
	artMethodQuickCodeOffset               = 40

	// Dex cache arrays: GC header then a pointer vector.
	dexCacheArrayDataOffset = 12
)

// cardTableShift is the log2 of the card granularity the write barrier uses.
const cardTableShift = 10

// stackOverflowReservedBytes is the guard area the implicit stack-overflow
// probe touches below the current stack pointer.
const stackOverflowReservedBytes = 4096
