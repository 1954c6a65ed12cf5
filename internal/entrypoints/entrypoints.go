// Package entrypoints names the runtime helpers generated code calls into.
// The runtime publishes each helper as a thread-relative offset; the back end
// only ever emits "load [thread + offset]; call" sequences and never embeds an
// absolute helper address.
package entrypoints

import "fmt"

// Entrypoint identifies one runtime helper.
type Entrypoint byte

const (
	// Allocation.
	AllocObject Entrypoint = iota
	AllocObjectWithAccessCheck
	AllocArray
	AllocArrayWithAccessCheck

	// Resolution and initialization.
	InitializeStaticStorage
	InitializeType
	InitializeTypeAndVerifyAccess
	ResolveString

	// Type checks.
	InstanceofNonTrivial
	CheckCast

	// Locking.
	LockObject
	UnlockObject

	// Math helpers for ISAs lacking the hardware form.
	IdivmodInt
	DivLong
	ModLong
	MulLong
	ShlLong
	ShrLong
	UshrLong
	Fmod
	Fmodf
	F2l
	D2l

	// Throws.
	DeliverException
	ThrowArrayBounds
	ThrowDivZero
	ThrowNullPointer
	ThrowStackOverflow

	// Suspension.
	TestSuspend

	// Invocation trampolines.
	ImtConflictTrampoline
	ResolutionTrampoline

	numEntrypoints
)

// String implements fmt.Stringer.
func (e Entrypoint) String() string {
	if int(e) < len(entrypointNames) {
		return entrypointNames[e]
	}
	return fmt.Sprintf("entrypoint(%d)", byte(e))
}

var entrypointNames = [numEntrypoints]string{
	AllocObject:                   "AllocObject",
	AllocObjectWithAccessCheck:    "AllocObjectWithAccessCheck",
	AllocArray:                    "AllocArray",
	AllocArrayWithAccessCheck:     "AllocArrayWithAccessCheck",
	InitializeStaticStorage:       "InitializeStaticStorage",
	InitializeType:                "InitializeType",
	InitializeTypeAndVerifyAccess: "InitializeTypeAndVerifyAccess",
	ResolveString:                 "ResolveString",
	InstanceofNonTrivial:          "InstanceofNonTrivial",
	CheckCast:                     "CheckCast",
	LockObject:                    "LockObject",
	UnlockObject:                  "UnlockObject",
	IdivmodInt:                    "IdivmodInt",
	DivLong:                       "DivLong",
	ModLong:                       "ModLong",
	MulLong:                       "MulLong",
	ShlLong:                       "ShlLong",
	ShrLong:                       "ShrLong",
	UshrLong:                      "UshrLong",
	Fmod:                          "Fmod",
	Fmodf:                         "Fmodf",
	F2l:                           "F2l",
	D2l:                           "D2l",
	DeliverException:              "DeliverException",
	ThrowArrayBounds:              "ThrowArrayBounds",
	ThrowDivZero:                  "ThrowDivZero",
	ThrowNullPointer:              "ThrowNullPointer",
	ThrowStackOverflow:            "ThrowStackOverflow",
	TestSuspend:                   "TestSuspend",
	ImtConflictTrampoline:         "ImtConflictTrampoline",
	ResolutionTrampoline:          "ResolutionTrampoline",
}

// Table maps each helper to its thread-relative byte offset. Provided by the
// runtime; the back end treats it as opaque data.
type Table [numEntrypoints]int32

// Offset returns the thread-relative offset of e.
func (t *Table) Offset(e Entrypoint) int32 { return t[e] }

// DefaultTable builds a table with the helpers laid out contiguously,
// pointer-size apart, starting at base. The runtime's real table has this
// shape; tests rely on it only for distinct, stable values.
func DefaultTable(base int32, pointerSize int) *Table {
	var t Table
	for i := range t {
		t[i] = base + int32(i*pointerSize)
	}
	return &t
}

// ThreadLayout holds the handful of thread-local fields generated code reads
// directly, as thread-relative byte offsets.
type ThreadLayout struct {
	// FlagsOffset locates the 16-bit state-and-flags word polled by suspend
	// checks.
	FlagsOffset int32
	// CardTableOffset locates the card-table base used by the write barrier.
	CardTableOffset int32
	// StackEndOffset locates the stack watermark compared by explicit
	// stack-overflow checks.
	StackEndOffset int32
	// ExceptionOffset locates the pending-exception slot.
	ExceptionOffset int32
}

// DefaultThreadLayout mirrors the runtime's thread layout for 32-bit targets.
func DefaultThreadLayout() ThreadLayout {
	return ThreadLayout{
		FlagsOffset:     0,
		CardTableOffset: 120,
		StackEndOffset:  124,
		ExceptionOffset: 128,
	}
}
