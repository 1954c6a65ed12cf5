// Package art is an optimizing method compiler back end: it lowers a graph
// IR into machine code plus the metadata a managed runtime needs to run,
// unwind and garbage-collect the frame (stack maps, vmap and mapping tables,
// CFI, linker patches).
package art

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	armcg "github.com/Dreams-N/platform-art-sub001/internal/codegen/arm"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
)

// CompiledMethod is the final artifact of a successful compilation.
type CompiledMethod = codegen.CompiledMethod

// Stable error kinds, tested with errors.Is. Every failure wraps one of
// these with a contextual message.
var (
	// ErrNotCompiled marks a method the compiler filter refused; the driver
	// leaves it to the interpreter.
	ErrNotCompiled = codegen.ErrNotCompiled
	// ErrShape marks an opcode/type combination this back end does not
	// lower.
	ErrShape = codegen.ErrShape
	// ErrResource marks physical-resource exhaustion during register
	// allocation.
	ErrResource = codegen.ErrResource
	// ErrUnsupportedISA marks a target with no code generator.
	ErrUnsupportedISA = codegen.ErrUnsupportedISA
)

type generator interface {
	codegen.Generator
	ForceLongBranches()
}

func newGenerator(cfg *Config) (generator, error) {
	cctx := &codegen.Context{
		ISA:         cfg.ISA,
		Features:    cfg.Features,
		Entrypoints: cfg.Entrypoints,
		Thread:      cfg.Thread,
		Options: codegen.Options{
			PIC:                         cfg.PIC,
			DebugInfo:                   cfg.DebugInfo,
			ImplicitNullChecks:          cfg.ImplicitNullChecks,
			ImplicitStackOverflowChecks: cfg.ImplicitStackOverflowChecks,
			ImplicitSuspendChecks:       cfg.ImplicitSuspendChecks,
		},
	}
	switch cfg.ISA {
	case isa.Arm:
		gen, err := armcg.New(cctx)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, errors.Wrap(ErrUnsupportedISA, "%v", cfg.ISA)
	}
}

// Compile compiles one method graph under cfg. The context is used for span
// logging only; compilation does not block.
func Compile(ctx context.Context, cfg *Config, g *hir.Graph) (_ *CompiledMethod, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "compile method",
		"isa", cfg.ISA, "filter", cfg.Filter, "code_units", g.CodeUnits)
	defer tr.Finish("err", &err)

	if !cfg.Filter.CompilesMethod() {
		return nil, errors.Wrap(ErrNotCompiled, "filter %v", cfg.Filter)
	}
	if cfg.IsHugeMethod(g.CodeUnits) && cfg.Filter < FilterEverything {
		return nil, errors.Wrap(ErrNotCompiled, "huge method: %d code units", g.CodeUnits)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	cm, err := gen.Compile(g)
	if errors.Is(err, codegen.ErrAssemblerPhase) {
		// A branch displacement flipped from the short to the long form
		// after later code was emitted. One retry with long forms forced
		// always converges.
		tr.Printw("assembler phase error, retrying with long branches", "err", err)
		gen, err = newGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gen.ForceLongBranches()
		cm, err = gen.Compile(g)
	}
	if err != nil {
		return nil, errors.Wrap(err, "compile %v", cfg.ISA)
	}

	tr.Printw("compiled",
		"code_bytes", len(cm.Code),
		"frame_bytes", cm.FrameSizeInBytes,
		"safepoints", len(cm.MappingTable),
		"patches", len(cm.Patches))
	return cm, nil
}
