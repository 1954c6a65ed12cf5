package arm

import (
	"math/bits"

	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/arena"
	"github.com/Dreams-N/platform-art-sub001/internal/asm"
	"github.com/Dreams-N/platform-art-sub001/internal/codegen"
	"github.com/Dreams-N/platform-art-sub001/internal/dwarf"
	"github.com/Dreams-N/platform-art-sub001/internal/entrypoints"
	"github.com/Dreams-N/platform-art-sub001/internal/hir"
	"github.com/Dreams-N/platform-art-sub001/internal/isa"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
	"github.com/Dreams-N/platform-art-sub001/internal/regalloc"
	"github.com/Dreams-N/platform-art-sub001/internal/stackmap"

	asmarm "github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

// Allocatable-register policy. TR, IP, SP, LR and PC never hold values; the
// top two D registers back the move resolver's scratch needs.
const (
	coreCalleeSaves uint32 = 0xDF0       // r4-r8, r10, r11
	fpuCalleeSaves  uint32 = 0x0fff0000 // s16-s27
)

var blockedFpuRegisters = []int{28, 29, 30, 31} // d14, d15 scratch

func allocConfig(d isa.Descriptor, spillBase int32) regalloc.Config {
	return regalloc.Config{
		NumCoreRegisters: d.NumCoreRegisters,
		NumFpuRegisters:  d.NumFpuRegisters,
		BlockedCore: []int{
			int(asmarm.TR), int(asmarm.IP), int(asmarm.SP),
			int(asmarm.LR), int(asmarm.PC),
		},
		BlockedFpu:     blockedFpuRegisters,
		CalleeSaveCore: coreCalleeSaves,
		CalleeSaveFpu:  fpuCalleeSaves,
		SpillSlotBase:  spillBase,
	}
}

// regions recycles arena storage across compilations.
var regions = arena.NewRegionPool()

// scratchLimit caps one compilation's arena; past it the method is rejected
// as a resource failure rather than growing without bound.
const scratchLimit = 16 << 20

// Generator compiles one graph to A32 machine code. It is single use.
type Generator struct {
	ctx     *codegen.Context
	desc    isa.Descriptor
	scratch *arena.Arena
	masm    *asmarm.Assembler
	graph   *hir.Graph
	live    *regalloc.Liveness
	res     regalloc.Result

	order       []hir.BlockID
	blockLabels []asm.Label
	slow        codegen.SlowPathList
	maps        *stackmap.Builder
	cfi         *dwarf.Writer
	mapping     []codegen.PCMapping
	patches     []codegen.LinkerPatch

	frameSize int32
	outgoing  int32 // outgoing stack argument bytes, past the method slot
	coreSpill asmarm.RegList
	dFirst    asmarm.DReg
	dCount    int

	err error
}

// New builds an ARM generator for the given compilation context. The
// generator owns one arena; everything it allocates there dies with the
// compilation while the regions go back to the shared pool.
func New(ctx *codegen.Context) (*Generator, error) {
	desc, ok := isa.Describe(ctx.ISA)
	if !ok || ctx.ISA != isa.Arm {
		return nil, errors.Wrap(codegen.ErrUnsupportedISA, "%v", ctx.ISA)
	}
	a := arena.New(regions)
	a.SetLimit(scratchLimit)
	return &Generator{
		ctx:     ctx,
		desc:    desc,
		scratch: a,
		masm:    asmarm.NewAssemblerIn(a),
		cfi:     &dwarf.Writer{},
	}, nil
}

// ForceLongBranches makes every branch use the maximum-range form; the
// driver retries a compilation with it after a branch-reach failure.
func (cg *Generator) ForceLongBranches() { cg.masm.ForceLongBranches() }

func (cg *Generator) fail(err error) {
	if cg.err == nil {
		cg.err = err
	}
}

// Compile runs the full pipeline: location building, register allocation,
// frame construction, instruction emission, slow paths and artifact
// assembly.
func (cg *Generator) Compile(g *hir.Graph) (*codegen.CompiledMethod, error) {
	defer cg.scratch.Reset()
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(codegen.ErrShape, "%v", err)
	}
	if err := g.BuildDominatorTree(); err != nil {
		return nil, errors.Wrap(codegen.ErrShape, "%v", err)
	}
	lb := &locationsBuilder{graph: g, features: cg.ctx.Features}
	if err := lb.build(); err != nil {
		return nil, err
	}
	cg.graph = g
	cg.outgoing = outgoingArgumentBytes(g)

	alloc := regalloc.NewAllocator(g, allocConfig(cg.desc, 4+cg.outgoing))
	res, err := alloc.Run()
	if err != nil {
		return nil, err
	}
	cg.res = res
	cg.live = alloc.Liveness()
	cg.order = g.LinearOrder()
	cg.blockLabels = make([]asm.Label, g.BlockCount())
	cg.maps = stackmap.NewBuilder(int(res.SpillSlots))

	cg.computeFrame()
	cg.emitFrameEntry()
	if err := cg.emitParameterMoves(); err != nil {
		return nil, err
	}

	for i, bid := range cg.order {
		if err := cg.emitBlock(bid, i); err != nil {
			return nil, err
		}
	}
	if err := cg.slow.EmitAll(func(l *asm.Label) { cg.masm.Bind(l) }); err != nil {
		return nil, err
	}
	if cg.err != nil {
		return nil, cg.err
	}

	code, err := cg.masm.Finalize()
	if err != nil {
		return nil, err
	}
	if cg.scratch.Exhausted() {
		return nil, errors.Wrap(codegen.ErrResource,
			"scratch arena over %d bytes", scratchLimit)
	}
	// The artifact outlives the arena; the buffer's bytes do not.
	code = append([]byte(nil), code...)
	return &codegen.CompiledMethod{
		Code:             code,
		InstructionSet:   isa.Arm,
		FrameSizeInBytes: cg.frameSize,
		CoreSpillMask:    uint32(cg.coreSpill),
		FpSpillMask:      cg.fpSpillMask(),
		MappingTable:     cg.mapping,
		VmapTable:        cg.vmapTable(),
		GCMap:            cg.maps.Encode(),
		CFI:              cg.cfi.Data(),
		Patches:          cg.patches,
	}, nil
}

// outgoingArgumentBytes sizes the outgoing stack-argument area from the
// widest call site.
func outgoingArgumentBytes(g *hir.Graph) int32 {
	max := int32(0)
	for i := 0; i < g.InstructionCount(); i++ {
		in := g.InstrAt(hir.ID(i))
		if !in.Op.IsInvoke() {
			continue
		}
		var conv callingConvention
		for k := 0; k < in.InputCount(); k++ {
			conv.Next(g.InstrAt(in.In(k)).Type)
		}
		if w := int32(4 * conv.StackWords()); w > max {
			max = w
		}
	}
	return max
}

// computeFrame decides the callee-save sets and the final frame size:
// [sp,0] method, outgoing args, spill slots, vpushed D registers, pushed
// core registers. The total is 8-byte aligned.
func (cg *Generator) computeFrame() {
	saves := cg.res.UsedCoreRegisters & coreCalleeSaves
	cg.coreSpill = asmarm.RegList(saves) | asmarm.ListOf(asmarm.LR)

	usedS := cg.res.UsedFpuRegisters & fpuCalleeSaves
	cg.dFirst, cg.dCount = 0, 0
	if usedS != 0 {
		lo := bits.TrailingZeros32(usedS) / 2
		hi := (31 - bits.LeadingZeros32(usedS)) / 2
		cg.dFirst = asmarm.DReg(lo)
		cg.dCount = hi - lo + 1
	}

	size := 4 + cg.outgoing + int32(cg.desc.SpillSlotSize)*cg.res.SpillSlots +
		int32(8*cg.dCount) + int32(4*cg.coreSpill.Count())
	align := int32(cg.desc.StackAlignment)
	cg.frameSize = (size + align - 1) &^ (align - 1)
}

func (cg *Generator) frameAdjustment() int32 {
	return cg.frameSize - int32(4*cg.coreSpill.Count()) - int32(8*cg.dCount)
}

func (cg *Generator) fpSpillMask() uint32 {
	if cg.dCount == 0 {
		return 0
	}
	mask := uint32(0)
	for s := int(cg.dFirst) * 2; s < (int(cg.dFirst)+cg.dCount)*2; s++ {
		mask |= 1 << s
	}
	return mask
}

// vmapTable lists every preserved register in push order, low addresses
// first, so the runtime can locate them during deoptimization and GC.
func (cg *Generator) vmapTable() []codegen.VmapEntry {
	var t []codegen.VmapEntry
	slot := cg.frameAdjustment() / 4
	for d := 0; d < cg.dCount; d++ {
		t = append(t, codegen.VmapEntry{Register: int(cg.dFirst) + d, IsFpu: true, SpillSlot: slot})
		slot += 2
	}
	for r := asmarm.R0; r <= asmarm.PC; r++ {
		if cg.coreSpill.Contains(r) {
			t = append(t, codegen.VmapEntry{Register: int(r), SpillSlot: slot})
			slot++
		}
	}
	return t
}

func (cg *Generator) emitFrameEntry() {
	m := cg.masm
	if cg.ctx.Options.ImplicitStackOverflowChecks {
		// Touch below the guard page; the fault handler unwinds via the
		// method header.
		m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, asmarm.SP,
			-stackOverflowReservedBytes, asmarm.AL)
	} else {
		m.LoadFromOffset(asmarm.LoadWord, asmarm.IP, asmarm.TR,
			cg.ctx.Thread.StackEndOffset, asmarm.AL)
		m.Cmp(asmarm.SP, asmarm.RegOp(asmarm.IP), asmarm.AL)
		sp := cg.newSlowPath("stack overflow", nil, false, cg.writeStackOverflow)
		m.B(sp.EntryLabel(), asmarm.LS)
	}

	m.Push(cg.coreSpill, asmarm.AL)
	pc := m.CodeSize()
	cg.cfi.AdjustCFAOffset(pc, 4*cg.coreSpill.Count())
	off := 0
	for r := asmarm.R0; r <= asmarm.PC; r++ {
		if cg.coreSpill.Contains(r) {
			cg.cfi.RelOffset(pc, dwarf.ArmCore(int(r)), off)
			off += 4
		}
	}
	if cg.dCount > 0 {
		m.Vpush(cg.dFirst, cg.dCount, asmarm.AL)
		pc = m.CodeSize()
		cg.cfi.AdjustCFAOffset(pc, 8*cg.dCount)
		for d := 0; d < cg.dCount; d++ {
			cg.cfi.RelOffset(pc, dwarf.ArmFpu(int(cg.dFirst)+d), 8*d)
		}
	}
	if adj := cg.frameAdjustment(); adj > 0 {
		m.Sub(asmarm.SP, asmarm.SP, asmarm.Imm(uint32(adj)), asmarm.AL)
		cg.cfi.AdjustCFAOffset(m.CodeSize(), int(adj))
	}
	m.StoreToOffset(asmarm.StoreWord, asmarm.R0, asmarm.SP, 0, asmarm.AL)
}

func (cg *Generator) emitFrameExit() {
	m := cg.masm
	cg.cfi.RememberState(m.CodeSize())
	if adj := cg.frameAdjustment(); adj > 0 {
		m.Add(asmarm.SP, asmarm.SP, asmarm.Imm(uint32(adj)), asmarm.AL)
		cg.cfi.AdjustCFAOffset(m.CodeSize(), -int(adj))
	}
	if cg.dCount > 0 {
		m.Vpop(cg.dFirst, cg.dCount, asmarm.AL)
		cg.cfi.AdjustCFAOffset(m.CodeSize(), -8*cg.dCount)
	}
	pop := (cg.coreSpill &^ asmarm.ListOf(asmarm.LR)) | asmarm.ListOf(asmarm.PC)
	m.Pop(pop, asmarm.AL)
	cg.cfi.RestoreState(m.CodeSize())
	cg.cfi.DefCFAOffset(m.CodeSize(), int(cg.frameSize))
}

// incomingLocation shifts a calling-convention stack location from the
// caller's outgoing area into this frame's coordinates.
func (cg *Generator) incomingLocation(l location.Location) location.Location {
	switch l.Kind() {
	case location.StackSlot:
		return location.MakeStackSlot(l.StackOffset() + cg.frameSize)
	case location.DoubleStackSlot:
		return location.MakeDoubleStackSlot(l.StackOffset() + cg.frameSize)
	case location.QuickParameter:
		return location.MakeQuickParameter(l.QuickParameterRegister(),
			l.QuickParameterStackOffset()+cg.frameSize)
	}
	return l
}

// defHome returns where the value defined by id lives right after its
// definition.
func (cg *Generator) defHome(id hir.ID) (location.Location, bool) {
	iv := cg.live.Interval(id)
	if iv == nil {
		return location.NoLocation, false
	}
	sib := iv.SiblingAt(cg.graph.InstrAt(id).LifetimePosition + 1)
	if sib == nil || !sib.Assigned.IsValid() {
		return location.NoLocation, false
	}
	return sib.Assigned, true
}

// emitParameterMoves shuffles incoming arguments from their ABI slots into
// the homes the allocator picked.
func (cg *Generator) emitParameterMoves() error {
	var conv callingConvention
	var moves []regalloc.MoveOp
	entry := cg.graph.BlockAt(cg.graph.Entry())
	for _, id := range entry.Instrs {
		in := cg.graph.InstrAt(id)
		if in.Op != hir.OpParameter {
			continue
		}
		src := cg.incomingLocation(conv.Next(in.Type))
		dst, ok := cg.defHome(id)
		if !ok {
			continue // dead parameter
		}
		if src != dst {
			moves = append(moves, regalloc.MoveOp{Src: src, Dst: dst, Type: in.Type})
		}
	}
	return codegen.ResolveParallelMoves(cg, moves)
}

func (cg *Generator) emitBlock(bid hir.BlockID, orderIndex int) error {
	blk := cg.graph.BlockAt(bid)
	cg.masm.Bind(&cg.blockLabels[bid])
	if len(blk.Preds) == 1 {
		if err := cg.emitEdgeMoves(blk.Preds[0], bid); err != nil {
			return err
		}
	}
	for _, id := range blk.Instrs {
		in := cg.graph.InstrAt(id)
		if mv := cg.res.InstrMoves[id]; len(mv) > 0 {
			if err := codegen.ResolveParallelMoves(cg, mv); err != nil {
				return err
			}
		}
		if cg.ctx.Options.DebugInfo {
			cg.mapping = append(cg.mapping,
				codegen.PCMapping{NativePC: uint32(cg.masm.CodeSize()), DexPC: in.DexPC})
		}
		if err := cg.visit(id, in, orderIndex); err != nil {
			return err
		}
	}
	return nil
}

func (cg *Generator) emitEdgeMoves(from, to hir.BlockID) error {
	mv := cg.res.EdgeMoves[regalloc.Edge{From: from, To: to}]
	if len(mv) == 0 {
		return nil
	}
	return codegen.ResolveParallelMoves(cg, mv)
}

// branchTo jumps to the target block unless it is next in emission order.
func (cg *Generator) branchTo(target hir.BlockID, orderIndex int) {
	if orderIndex+1 < len(cg.order) && cg.order[orderIndex+1] == target {
		return
	}
	cg.masm.B(&cg.blockLabels[target], asmarm.AL)
}

// recordPCInfo emits the stack map for the call that just ended at the
// current pc.
func (cg *Generator) recordPCInfo(in *hir.Instruction) {
	nativePC := uint32(cg.masm.CodeSize())
	if !cg.ctx.Options.DebugInfo {
		cg.mapping = append(cg.mapping,
			codegen.PCMapping{NativePC: nativePC, DexPC: in.DexPC})
	}
	s := in.Locations
	cg.maps.Add(nativePC, in.DexPC, s.RegisterMask,
		stackMaskBytes(s.StackMask, int(cg.res.SpillSlots)))
}

func stackMaskBytes(mask uint64, slots int) []byte {
	if slots == 0 {
		return nil
	}
	b := make([]byte, (slots+7)/8)
	for i := 0; i < slots && i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			b[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return b
}

// invokeRuntime calls a runtime entrypoint through the per-thread table and
// records the safepoint.
func (cg *Generator) invokeRuntime(e entrypoints.Entrypoint, in *hir.Instruction) {
	cg.masm.LoadFromOffset(asmarm.LoadWord, asmarm.LR, asmarm.TR,
		cg.ctx.Entrypoints.Offset(e), asmarm.AL)
	cg.masm.Blx(asmarm.LR, asmarm.AL)
	cg.recordPCInfo(in)
}

// moveOutOfReturnRegister relocates a call result from its fixed ABI
// register into the value's allocated home.
func (cg *Generator) moveOutOfReturnRegister(id hir.ID, in *hir.Instruction) {
	ret := in.Locations.Out()
	if !ret.IsValid() {
		return
	}
	home, ok := cg.defHome(id)
	if ok && home != ret {
		cg.EmitMove(ret, home, in.Type)
	}
}

// Caller-save sets under the runtime ABI. The allocator leaves values in
// these across call-on-slow-path sites; the slow path spills them before its
// runtime call and reloads them on return.
const (
	callerSaveCores uint32 = 0x000f // r0-r3
	callerSaveFpu   uint32 = 0xffff // s0-s15
)

// liveRegisterSet is the spill set of one slow path: the caller-save
// registers holding live values at the fast path's branch point.
type liveRegisterSet struct {
	core   asmarm.RegList
	dFirst asmarm.DReg
	dCount int
}

func liveRegisters(s *location.Summary) liveRegisterSet {
	var set liveRegisterSet
	if s == nil {
		return set
	}
	set.core = asmarm.RegList(s.LiveCoreRegisters & callerSaveCores)
	if fm := s.LiveFpuRegisters & callerSaveFpu; fm != 0 {
		lo := bits.TrailingZeros32(fm) / 2
		hi := (31 - bits.LeadingZeros32(fm)) / 2
		set.dFirst = asmarm.DReg(lo)
		set.dCount = hi - lo + 1
	}
	if (set.core.Count()+2*set.dCount)%2 != 0 {
		// Keep sp 8-byte aligned across the runtime call.
		set.core |= asmarm.ListOf(asmarm.IP)
	}
	return set
}

func (cg *Generator) saveLiveRegisters(set liveRegisterSet) {
	if set.core != 0 {
		cg.masm.Push(set.core, asmarm.AL)
	}
	if set.dCount > 0 {
		cg.masm.Vpush(set.dFirst, set.dCount, asmarm.AL)
	}
}

func (cg *Generator) restoreLiveRegisters(set liveRegisterSet) {
	if set.dCount > 0 {
		cg.masm.Vpop(set.dFirst, set.dCount, asmarm.AL)
	}
	if set.core != 0 {
		cg.masm.Pop(set.core, asmarm.AL)
	}
}

// newSlowPath wraps the body with the live-register protocol: spill the
// caller-save registers recorded at the branch point, run the body, and on
// returning paths reload them and branch back to the exit label. The body
// must not write a register in the live set other than through the wrapper.
func (cg *Generator) newSlowPath(desc string, in *hir.Instruction, returns bool,
	write func(*codegen.SlowPath) error) *codegen.SlowPath {
	var dexPC uint32
	var set liveRegisterSet
	if in != nil {
		dexPC = in.DexPC
		set = liveRegisters(in.Locations)
	}
	return cg.slow.Add(&codegen.SlowPath{
		Description: desc,
		DexPC:       dexPC,
		Returns:     returns,
		Write: func(p *codegen.SlowPath) error {
			cg.saveLiveRegisters(set)
			if err := write(p); err != nil {
				return err
			}
			if returns {
				cg.restoreLiveRegisters(set)
				cg.masm.B(p.ExitLabel(), asmarm.AL)
			}
			return nil
		},
	})
}

func condFor(op hir.Opcode) asmarm.Condition {
	switch op {
	case hir.OpEqual:
		return asmarm.EQ
	case hir.OpNotEqual:
		return asmarm.NE
	case hir.OpLessThan:
		return asmarm.LT
	case hir.OpLessThanOrEqual:
		return asmarm.LE
	case hir.OpGreaterThan:
		return asmarm.GT
	case hir.OpGreaterThanOrEqual:
		return asmarm.GE
	}
	return asmarm.AL
}

func coreOf(l location.Location) asmarm.Reg  { return asmarm.Reg(l.Register()) }
func pairLo(l location.Location) asmarm.Reg  { return asmarm.Reg(l.PairLow()) }
func pairHi(l location.Location) asmarm.Reg  { return asmarm.Reg(l.PairHigh()) }
func sregOf(l location.Location) asmarm.SReg { return asmarm.SReg(l.Register()) }
func dregOf(l location.Location) asmarm.DReg { return asmarm.D(asmarm.SReg(l.PairLow())) }
