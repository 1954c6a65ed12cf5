package codegen

import (
	"github.com/Dreams-N/platform-art-sub001/internal/entrypoints"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
)

// Options are the per-compilation policy flags.
type Options struct {
	// PIC requests position-independent references for methods, types and
	// strings, emitted as linker patches instead of absolute values.
	PIC bool
	// DebugInfo keeps the pc2dex mapping table for every instruction rather
	// than only safepoints.
	DebugInfo bool

	// ImplicitNullChecks elides the explicit null compare; the fault handler
	// recovers through the stack map at the faulting pc.
	ImplicitNullChecks bool
	// ImplicitStackOverflowChecks probe the guard page in the frame entry
	// instead of comparing against Thread.stack_end.
	ImplicitStackOverflowChecks bool
	// ImplicitSuspendChecks is accepted but not implemented by the ARM
	// generator; explicit flag tests are emitted regardless.
	ImplicitSuspendChecks bool
}

// Context carries everything a target generator needs beyond the graph: the
// ISA, its features, the runtime's entrypoint table and thread layout, and
// the policy flags. There is no hidden global state.
type Context struct {
	ISA         isa.InstructionSet
	Features    isa.Features
	Entrypoints entrypoints.Table
	Thread      entrypoints.ThreadLayout
	Options     Options
}

// Generator compiles one graph into machine code. Implementations are
// per-ISA and single-use: one generator per method compilation.
type Generator interface {
	Compile(g *hir.Graph) (*CompiledMethod, error)
}
