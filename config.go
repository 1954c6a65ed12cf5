package art

import (
	"github.com/Dreams-N/platform-art-sub001/internal/entrypoints"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
)

// CompilerFilter selects how much work the compiler does per method. The
// ordering matters: filters at or above Space run this back end, the ones
// below leave the method to the verifier and interpreter.
type CompilerFilter int

const (
	FilterVerifyNone CompilerFilter = iota
	FilterInterpretOnly
	FilterVerifyAtRuntime
	FilterSpace
	FilterBalanced
	FilterSpeed
	FilterEverything
	FilterTime
)

// String implements fmt.Stringer.
func (f CompilerFilter) String() string {
	switch f {
	case FilterVerifyNone:
		return "verify-none"
	case FilterInterpretOnly:
		return "interpret-only"
	case FilterVerifyAtRuntime:
		return "verify-at-runtime"
	case FilterSpace:
		return "space"
	case FilterBalanced:
		return "balanced"
	case FilterSpeed:
		return "speed"
	case FilterEverything:
		return "everything"
	case FilterTime:
		return "time"
	default:
		return "unknown"
	}
}

// CompilesMethod reports whether methods are compiled at all under this
// filter.
func (f CompilerFilter) CompilesMethod() bool { return f >= FilterSpace }

// Config carries every knob of one compilation. There is no global state;
// two goroutines with separate Configs never interfere.
type Config struct {
	// ISA is the target instruction set; Features gates instruction
	// selection within it.
	ISA      isa.InstructionSet
	Features isa.Features

	// Entrypoints and Thread come from the runtime: the thread-relative
	// offsets of the helper table and of the thread-local fields generated
	// code reads directly.
	Entrypoints entrypoints.Table
	Thread      entrypoints.ThreadLayout

	// PIC requests position-independent references resolved through linker
	// patches and the dex cache instead of absolute values.
	PIC bool
	// DebugInfo keeps a pc2dex mapping entry for every instruction rather
	// than only safepoints.
	DebugInfo bool

	ImplicitNullChecks          bool
	ImplicitStackOverflowChecks bool
	ImplicitSuspendChecks       bool

	Filter CompilerFilter

	InlineDepthLimit   int
	InlineMaxCodeUnits int

	// Method-size buckets in bytecode units. Huge methods are skipped by
	// every filter below Everything.
	HugeMethodThreshold  uint32
	LargeMethodThreshold uint32
	SmallMethodThreshold uint32
	TinyMethodThreshold  uint32
}

// NewConfig returns a Config for the given target with the default policy:
// speed filter, the stock size buckets and the runtime's stock thread
// layout. Callers override Entrypoints and Thread with the live runtime's
// values before compiling for real execution.
func NewConfig(is isa.InstructionSet) *Config {
	return &Config{
		ISA:                  is,
		Entrypoints:          *entrypoints.DefaultTable(0x200, is.PointerSize()),
		Thread:               entrypoints.DefaultThreadLayout(),
		Filter:               FilterSpeed,
		InlineDepthLimit:     3,
		InlineMaxCodeUnits:   32,
		HugeMethodThreshold:  10000,
		LargeMethodThreshold: 600,
		SmallMethodThreshold: 60,
		TinyMethodThreshold:  20,
	}
}

// IsHugeMethod reports whether a method of the given size lands in the huge
// bucket.
func (c *Config) IsHugeMethod(codeUnits uint32) bool {
	return codeUnits > c.HugeMethodThreshold
}

func (c *Config) IsLargeMethod(codeUnits uint32) bool {
	return codeUnits > c.LargeMethodThreshold
}

func (c *Config) IsSmallMethod(codeUnits uint32) bool {
	return codeUnits > c.TinyMethodThreshold && codeUnits <= c.SmallMethodThreshold
}

func (c *Config) IsTinyMethod(codeUnits uint32) bool {
	return codeUnits <= c.TinyMethodThreshold
}
