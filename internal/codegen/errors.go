package codegen

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/asm"
	"github.com/Dreams-N/platform-art-sub001/internal/regalloc"
)

// Stable error kinds the driver dispatches on with errors.Is. Kinds raised by
// inner packages keep their identity so a single Is check works end to end.
var (
	// ErrShape marks an opcode/type combination this back end does not
	// implement; the driver should fall back to the interpreter.
	ErrShape = errors.New("unsupported instruction shape")

	// ErrUnsupportedISA marks a target with no code generator.
	ErrUnsupportedISA = errors.New("unsupported instruction set")

	// ErrNotCompiled marks a method the compiler filter refused.
	ErrNotCompiled = errors.New("method rejected by compiler filter")

	// ErrResource marks physical-resource exhaustion during allocation.
	ErrResource = regalloc.ErrResource

	// ErrAssemblerPhase marks a single-pass assembler reach violation; the
	// caller may retry with long forms forced.
	ErrAssemblerPhase = asm.ErrPhase
)
