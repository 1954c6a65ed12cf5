package arm

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
	"github.com/Dreams-N/platform-art-sub001/internal/location"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

// locationsBuilder attaches a location summary to every instruction that
// needs one: register demands for the allocator, fixed ABI slots for calls,
// and the call kind deciding safepoints. Constants get no summary; their
// users either fold them into an immediate operand or force a register.
type locationsBuilder struct {
	graph    *hir.Graph
	features isa.Features
}

func requiresRegister() location.Location {
	return location.MakeUnallocated(location.RequiresRegister)
}

func requiresFpuRegister() location.Location {
	return location.MakeUnallocated(location.RequiresFpuRegister)
}

func anyLocation() location.Location {
	return location.MakeUnallocated(location.Any)
}

// outLocation demands a register of the type's class for a definition; the
// allocator may spill the value afterwards but the write itself targets a
// register.
func outLocation(typ hir.Type) location.Location {
	if typ.IsFloatingPoint() {
		return requiresFpuRegister()
	}
	return requiresRegister()
}

func coreReg(r asmarm.Reg) location.Location { return location.MakeRegister(int(r)) }

// foldableConstant returns the constant location of input idx if the operand
// is a constant the instruction can encode as an immediate.
func (b *locationsBuilder) foldableConstant(in *hir.Instruction, idx int) (location.Location, bool) {
	op := b.graph.InstrAt(in.In(idx))
	if op.Op != hir.OpIntConstant {
		return location.NoLocation, false
	}
	v := uint32(op.IntValue)
	switch in.Op {
	case hir.OpAdd, hir.OpSub:
		// Both the operation and its negated dual are usable.
		if _, ok := asmarm.EncodableImmediate(v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
		if _, ok := asmarm.EncodableImmediate(-v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
	case hir.OpAnd:
		// and and its bic dual.
		if _, ok := asmarm.EncodableImmediate(v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
		if _, ok := asmarm.EncodableImmediate(^v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
	case hir.OpEqual, hir.OpNotEqual, hir.OpLessThan, hir.OpLessThanOrEqual,
		hir.OpGreaterThan, hir.OpGreaterThanOrEqual:
		// cmp and its cmn dual.
		if _, ok := asmarm.EncodableImmediate(v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
		if _, ok := asmarm.EncodableImmediate(-v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
	case hir.OpOr, hir.OpXor, hir.OpBoundsCheck:
		if _, ok := asmarm.EncodableImmediate(v); ok {
			return location.MakeConstantInt(int32(v)), true
		}
	case hir.OpShl, hir.OpShr, hir.OpUShr:
		if in.Type == hir.Int {
			return location.MakeConstantInt(int32(v & 31)), true
		}
	case hir.OpArrayGet, hir.OpArraySet:
		if idx == 1 {
			// Constant index folds into the addressing offset.
			return location.MakeConstantInt(int32(v)), true
		}
	}
	return location.NoLocation, false
}

// registerOrConstant picks between folding a constant operand and demanding a
// register for it.
func (b *locationsBuilder) registerOrConstant(in *hir.Instruction, idx int) location.Location {
	if c, ok := b.foldableConstant(in, idx); ok {
		return c
	}
	return requiresRegister()
}

func inputLocation(typ hir.Type) location.Location {
	switch {
	case typ.IsFloatingPoint():
		return requiresFpuRegister()
	default:
		return requiresRegister()
	}
}

// fuseConditionsWithBranches marks conditions whose single consumer is the If
// terminating the same block; those emit their compare at the branch and
// never materialize a boolean.
func (b *locationsBuilder) fuseConditionsWithBranches() {
	for i := 0; i < b.graph.InstructionCount(); i++ {
		in := b.graph.InstrAt(hir.ID(i))
		if !in.Op.IsCondition() || !in.HasSingleUse() {
			continue
		}
		user := b.graph.InstrAt(in.Uses()[0])
		if user.Op != hir.OpIf || user.Block != in.Block {
			continue
		}
		blk := b.graph.BlockAt(in.Block)
		if len(blk.Instrs) < 2 || blk.Instrs[len(blk.Instrs)-2] != hir.ID(i) {
			// Only fuse when the condition immediately precedes the branch;
			// anything in between could clobber the flags.
			continue
		}
		in.EmittedAtUseSite = true
	}
}

func (b *locationsBuilder) build() error {
	b.graph.BuildDefUse()
	b.fuseConditionsWithBranches()
	for _, bid := range b.graph.LinearOrder() {
		blk := b.graph.BlockAt(bid)
		for _, id := range blk.Instrs {
			if err := b.visit(b.graph.InstrAt(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *locationsBuilder) visit(in *hir.Instruction) error {
	switch in.Op {
	case hir.OpIntConstant, hir.OpLongConstant, hir.OpFloatConstant,
		hir.OpDoubleConstant, hir.OpNullConstant:
		// Never materialized at the definition.
		return nil

	case hir.OpParameter:
		s := location.NewSummary(0, location.NoCall)
		s.SetOut(anyLocation())
		in.Locations = s

	case hir.OpCurrentMethod:
		s := location.NewSummary(0, location.NoCall)
		s.SetOut(requiresRegister())
		in.Locations = s

	case hir.OpAdd, hir.OpSub, hir.OpAnd, hir.OpOr, hir.OpXor:
		s := location.NewSummary(2, location.NoCall)
		s.SetIn(0, inputLocation(in.Type))
		if in.Type == hir.Int {
			s.SetIn(1, b.registerOrConstant(in, 1))
		} else {
			s.SetIn(1, inputLocation(in.Type))
		}
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpMul:
		if in.Type == hir.Long {
			return b.runtimeArithLong(in)
		}
		s := location.NewSummary(2, location.NoCall)
		s.SetIn(0, inputLocation(in.Type))
		s.SetIn(1, inputLocation(in.Type))
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpDiv, hir.OpRem:
		return b.buildDivRem(in)

	case hir.OpNeg, hir.OpNot:
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, inputLocation(in.Type))
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpShl, hir.OpShr, hir.OpUShr:
		if in.Type == hir.Long {
			return b.runtimeArithLong(in)
		}
		s := location.NewSummary(2, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, b.registerOrConstant(in, 1))
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpEqual, hir.OpNotEqual, hir.OpLessThan, hir.OpLessThanOrEqual,
		hir.OpGreaterThan, hir.OpGreaterThanOrEqual:
		s := location.NewSummary(2, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, b.registerOrConstant(in, 1))
		if !in.EmittedAtUseSite {
			s.SetOut(outLocation(in.Type))
		}
		in.Locations = s

	case hir.OpCompare:
		s := location.NewSummary(2, location.NoCall)
		t := b.graph.InstrAt(in.In(0)).Type
		s.SetIn(0, inputLocation(t))
		s.SetIn(1, inputLocation(t))
		s.SetOut(requiresRegister())
		in.Locations = s

	case hir.OpTypeConversion:
		return b.buildConversion(in)

	case hir.OpArrayLength:
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpArrayGet:
		s := location.NewSummary(2, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, b.registerOrConstant(in, 1))
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpArraySet:
		s := location.NewSummary(3, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, b.registerOrConstant(in, 1))
		s.SetIn(2, inputLocation(b.graph.InstrAt(in.In(2)).Type))
		if b.graph.InstrAt(in.In(2)).Type == hir.Reference {
			s.AddTemp(requiresRegister()) // card table base
		}
		in.Locations = s

	case hir.OpInstanceFieldGet, hir.OpStaticFieldGet:
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpInstanceFieldSet, hir.OpStaticFieldSet:
		s := location.NewSummary(2, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, inputLocation(b.graph.InstrAt(in.In(1)).Type))
		if b.graph.InstrAt(in.In(1)).Type == hir.Reference {
			s.AddTemp(requiresRegister()) // card table base
		}
		in.Locations = s

	case hir.OpNullCheck, hir.OpDivZeroCheck:
		s := location.NewSummary(1, location.CallOnSlowPath)
		s.SetIn(0, inputLocation(b.graph.InstrAt(in.In(0)).Type))
		in.Locations = s

	case hir.OpBoundsCheck:
		s := location.NewSummary(2, location.CallOnSlowPath)
		s.SetIn(0, b.registerOrConstant(in, 0))
		s.SetIn(1, requiresRegister())
		in.Locations = s

	case hir.OpSuspendCheck:
		in.Locations = location.NewSummary(0, location.CallOnSlowPath)

	case hir.OpLoadClass:
		kind := location.NoCall
		if in.MayBeNull || in.NeedsInitialization {
			kind = location.CallOnSlowPath
		}
		s := location.NewSummary(1, kind)
		s.SetIn(0, requiresRegister())
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpLoadString:
		s := location.NewSummary(1, location.CallOnSlowPath)
		s.SetIn(0, requiresRegister())
		s.SetOut(outLocation(in.Type))
		in.Locations = s

	case hir.OpNewInstance:
		s := location.NewSummary(1, location.Call)
		s.SetIn(0, coreReg(asmarm.R1)) // current method
		s.SetOut(coreReg(asmarm.R0))
		in.Locations = s

	case hir.OpNewArray:
		s := location.NewSummary(2, location.Call)
		s.SetIn(0, coreReg(asmarm.R2)) // length
		s.SetIn(1, coreReg(asmarm.R1)) // current method
		s.SetOut(coreReg(asmarm.R0))
		in.Locations = s

	case hir.OpInstanceOf:
		s := location.NewSummary(2, location.CallOnSlowPath)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, requiresRegister())
		s.SetOut(requiresRegister())
		in.Locations = s

	case hir.OpCheckCast:
		s := location.NewSummary(2, location.CallOnSlowPath)
		s.SetIn(0, requiresRegister())
		s.SetIn(1, requiresRegister())
		s.AddTemp(requiresRegister())
		in.Locations = s

	case hir.OpInvokeStatic, hir.OpInvokeDirect, hir.OpInvokeVirtual,
		hir.OpInvokeInterface:
		b.buildInvoke(in)

	case hir.OpThrow:
		s := location.NewSummary(1, location.Call)
		s.SetIn(0, coreReg(asmarm.R0))
		in.Locations = s

	case hir.OpIf:
		cond := b.graph.InstrAt(in.In(0))
		if cond.EmittedAtUseSite {
			// The compare is emitted here from the condition's own summary.
			return nil
		}
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, requiresRegister())
		in.Locations = s

	case hir.OpReturn:
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, returnLocation(b.graph.InstrAt(in.In(0)).Type))
		in.Locations = s

	case hir.OpReturnVoid, hir.OpGoto, hir.OpTemporary, hir.OpParallelMove:
		return nil

	default:
		return errors.Wrap(codegen.ErrShape, "no location rule for %v", in.Op)
	}
	return nil
}

// buildDivRem routes integer division to sdiv when the core has it and to
// the runtime otherwise; long and floating remainder always call out.
func (b *locationsBuilder) buildDivRem(in *hir.Instruction) error {
	switch in.Type {
	case hir.Int:
		if b.features.HasDivideInstruction {
			s := location.NewSummary(2, location.NoCall)
			s.SetIn(0, requiresRegister())
			s.SetIn(1, requiresRegister())
			s.SetOut(outLocation(in.Type))
			if in.Op == hir.OpRem {
				s.AddTemp(requiresRegister())
			}
			in.Locations = s
			return nil
		}
		var c runtimeCallingConvention
		s := location.NewSummary(2, location.Call)
		s.SetIn(0, c.Next(hir.Int))
		s.SetIn(1, c.Next(hir.Int))
		if in.Op == hir.OpDiv {
			s.SetOut(c.ReturnLocation(hir.Int))
		} else {
			// idivmod returns the remainder in r1.
			s.SetOut(coreReg(asmarm.R1))
		}
		in.Locations = s
		return nil
	case hir.Long:
		return b.runtimeArithLong(in)
	case hir.Float, hir.Double:
		if in.Op == hir.OpDiv {
			s := location.NewSummary(2, location.NoCall)
			s.SetIn(0, requiresFpuRegister())
			s.SetIn(1, requiresFpuRegister())
			s.SetOut(outLocation(in.Type))
			in.Locations = s
			return nil
		}
		// fmod/fmodf take and return core registers under the softfp ABI.
		var c runtimeCallingConvention
		s := location.NewSummary(2, location.Call)
		s.SetIn(0, c.Next(in.Type))
		s.SetIn(1, c.Next(in.Type))
		s.SetOut(c.ReturnLocation(in.Type))
		in.Locations = s
		return nil
	}
	return errors.Wrap(codegen.ErrShape, "div/rem of %v", in.Type)
}

// runtimeArithLong places the operands of the long arithmetic helpers (mul,
// div, rem, shifts) per the runtime convention.
func (b *locationsBuilder) runtimeArithLong(in *hir.Instruction) error {
	var c runtimeCallingConvention
	s := location.NewSummary(2, location.Call)
	s.SetIn(0, c.Next(hir.Long))
	switch in.Op {
	case hir.OpShl, hir.OpShr, hir.OpUShr:
		s.SetIn(1, c.Next(hir.Int))
	default:
		s.SetIn(1, c.Next(hir.Long))
	}
	s.SetOut(c.ReturnLocation(hir.Long))
	in.Locations = s
	return nil
}

func (b *locationsBuilder) buildConversion(in *hir.Instruction) error {
	from, to := in.InputType, in.Type
	switch {
	case from == hir.Long && to.IsFloatingPoint():
		return errors.Wrap(codegen.ErrShape, "conversion %v to %v has no lowering", from, to)
	case from.IsFloatingPoint() && to == hir.Long:
		// F2l/D2l runtime helpers.
		var c runtimeCallingConvention
		s := location.NewSummary(1, location.Call)
		s.SetIn(0, c.Next(from))
		s.SetOut(c.ReturnLocation(hir.Long))
		in.Locations = s
		return nil
	case from.IsFloatingPoint() && to.IsIntegralOrRef():
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, requiresFpuRegister())
		s.SetOut(outLocation(in.Type))
		s.AddTemp(requiresFpuRegister())
		in.Locations = s
		return nil
	case from.IsIntegralOrRef() && to.IsFloatingPoint():
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, requiresRegister())
		s.SetOut(outLocation(in.Type))
		s.AddTemp(requiresFpuRegister())
		in.Locations = s
		return nil
	default:
		// Integral widths and float<->double.
		s := location.NewSummary(1, location.NoCall)
		s.SetIn(0, inputLocation(from))
		s.SetOut(outLocation(in.Type))
		in.Locations = s
		return nil
	}
}

// buildInvoke lays out the arguments per the managed calling convention and
// reserves r0 for the callee method pointer.
func (b *locationsBuilder) buildInvoke(in *hir.Instruction) {
	s := location.NewSummary(in.InputCount(), location.Call)
	var conv callingConvention
	for i := 0; i < in.InputCount(); i++ {
		s.SetIn(i, conv.Next(b.graph.InstrAt(in.In(i)).Type))
	}
	if in.Type != hir.Void {
		s.SetOut(returnLocation(in.Type))
	}
	in.Locations = s
}
