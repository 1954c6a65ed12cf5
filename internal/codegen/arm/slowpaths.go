package arm

import (
	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	"github.com/Dreams-N/platform-art-sub001/internal/entrypoints"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/regalloc"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

// throwSlowPath builds a non-returning out-of-line sequence: stage the helper
// arguments, call the throw entrypoint, record the safepoint. Control never
// comes back; the runtime unwinds to the catch handler.
func (cg *Generator) throwSlowPath(desc string, e entrypoints.Entrypoint,
	in *hir.Instruction, args []regalloc.MoveOp) *codegen.SlowPath {
	return cg.newSlowPath(desc, in, false, func(*codegen.SlowPath) error {
		if len(args) > 0 {
			if err := codegen.ResolveParallelMoves(cg, args); err != nil {
				return err
			}
		}
		cg.invokeRuntime(e, in)
		return nil
	})
}

// writeStackOverflow tail-calls the throw helper so the faulting frame, which
// was never fully constructed, stays out of the unwind.
func (cg *Generator) writeStackOverflow(*codegen.SlowPath) error {
	m := cg.masm
	m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, asmarm.TR,
		cg.ctx.Entrypoints.Offset(entrypoints.ThrowStackOverflow), asmarm.AL)
	m.Bx(asmarm.IP, asmarm.AL)
	return nil
}
