// Package hir holds the graph intermediate representation the back end
// consumes: basic blocks of typed instructions in SSA form, with dominance and
// loop information attached. The front end builds it; the back end reads it
// and only annotates instructions with locations and lifetime positions.
//
// Nodes live in pooled vectors and reference each other through 32-bit
// indices, so the whole graph is released as one unit with its compilation.
package hir

import (
	"fmt"

	"github.com/Dreams-N/platform-art-sub001/internal/arena"
	"github.com/Dreams-N/platform-art-sub001/internal/location"
)

// ID names an instruction inside its graph.
type ID int32

// NoID is the absent instruction reference.
const NoID ID = -1

// BlockID names a basic block inside its graph.
type BlockID int32

// NoBlock is the absent block reference.
const NoBlock BlockID = -1

// Instruction is one node of the graph. The opcode decides which payload
// fields are meaningful.
type Instruction struct {
	Op    Opcode
	Type  Type
	DexPC uint32
	Block BlockID

	inputs []ID
	uses   []ID

	// IntValue holds the constant payload: the value for int/long constants,
	// the raw bits for float/double constants. For OpCompare on
	// floating-point operands a nonzero value makes NaN compare as greater.
	IntValue int64
	// Index is the dex-file index payload: field/method/type/string index, or
	// the vtable / interface-method index for virtual and interface invokes.
	Index uint32
	// FieldOffset is the resolved byte offset for field accesses.
	FieldOffset int32
	// Volatile marks field accesses needing memory barriers.
	Volatile bool
	// NeedsInitialization marks a LoadClass whose class may not be
	// initialized yet, requiring a class-initialization check.
	NeedsInitialization bool
	// MayBeNull marks a LoadClass/LoadString whose dex-cache entry may still
	// be unresolved.
	MayBeNull bool
	// InputType is the operand type of a TypeConversion (the result type is
	// Type).
	InputType Type
	// EmittedAtUseSite marks a condition fused into the If consuming it: the
	// value is never materialized and its operands stay live until the user.
	EmittedAtUseSite bool

	// Locations is attached by the location builder and resolved by the
	// register allocator.
	Locations *location.Summary
	// LifetimePosition is assigned by the liveness analysis.
	LifetimePosition int32
}

// In returns the i-th input instruction id.
func (i *Instruction) In(idx int) ID { return i.inputs[idx] }

// InputCount returns the number of inputs.
func (i *Instruction) InputCount() int { return len(i.inputs) }

// Inputs returns the input list. Callers must not mutate it.
func (i *Instruction) Inputs() []ID { return i.inputs }

// Uses returns the instructions consuming this value, valid after
// Graph.BuildDefUse.
func (i *Instruction) Uses() []ID { return i.uses }

// HasSingleUse reports whether exactly one instruction consumes this value.
func (i *Instruction) HasSingleUse() bool { return len(i.uses) == 1 }

// ProducesValue reports whether the instruction defines an SSA value.
func (i *Instruction) ProducesValue() bool { return i.Type != Void }

// Block is a basic block: phis, then instructions, the last of which is the
// terminator.
type Block struct {
	ID     BlockID
	Preds  []BlockID
	Succs  []BlockID
	Phis   []ID
	Instrs []ID

	// Dominator is the immediate dominator, NoBlock for the entry.
	Dominator BlockID
	// Loop is set on every block belonging to a loop; Loop.Header == ID marks
	// the loop header.
	Loop *LoopInfo
	// SuspendCheck is the distinguished safepoint instruction of a loop
	// header.
	SuspendCheck ID
}

// IsLoopHeader reports whether the block heads a loop.
func (b *Block) IsLoopHeader() bool { return b.Loop != nil && b.Loop.Header == b.ID }

// LoopInfo describes one natural loop.
type LoopInfo struct {
	Header    BlockID
	BackEdges []BlockID
	// Blocks flags membership, indexed by BlockID.
	Blocks []bool
}

// Contains reports whether block id belongs to the loop.
func (l *LoopInfo) Contains(id BlockID) bool {
	return int(id) < len(l.Blocks) && l.Blocks[id]
}

// Graph is the method-wide instruction graph. It is immutable during code
// generation except for the allocator annotations on instructions.
type Graph struct {
	instrs arena.Pool[Instruction]
	blocks []*Block

	entry BlockID
	exit  BlockID

	// CodeUnits is the size of the source method in bytecode units, used by
	// the compiler-filter size gates.
	CodeUnits uint32

	reversePostOrder []BlockID
	linearOrder      []BlockID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{instrs: arena.NewPool[Instruction](), entry: NoBlock, exit: NoBlock}
}

// NewBlock appends a new empty block.
func (g *Graph) NewBlock() *Block {
	b := &Block{ID: BlockID(len(g.blocks)), Dominator: NoBlock, SuspendCheck: NoID}
	g.blocks = append(g.blocks, b)
	return b
}

// BlockCount returns the number of blocks.
func (g *Graph) BlockCount() int { return len(g.blocks) }

// BlockAt returns the block with the given id.
func (g *Graph) BlockAt(id BlockID) *Block { return g.blocks[id] }

// SetEntry marks the unique entry block.
func (g *Graph) SetEntry(id BlockID) { g.entry = id }

// SetExit marks the unique exit block.
func (g *Graph) SetExit(id BlockID) { g.exit = id }

// Entry returns the entry block id.
func (g *Graph) Entry() BlockID { return g.entry }

// Exit returns the exit block id.
func (g *Graph) Exit() BlockID { return g.exit }

// AddEdge links from→to in both successor and predecessor lists.
func (g *Graph) AddEdge(from, to BlockID) {
	g.blocks[from].Succs = append(g.blocks[from].Succs, to)
	g.blocks[to].Preds = append(g.blocks[to].Preds, from)
}

// InstructionCount returns the number of instructions allocated in the graph.
func (g *Graph) InstructionCount() int { return g.instrs.Allocated() }

// InstrAt returns the instruction with the given id.
func (g *Graph) InstrAt(id ID) *Instruction { return g.instrs.View(int(id)) }

// NewInstr appends an instruction to block b and returns its id.
func (g *Graph) NewInstr(b *Block, op Opcode, typ Type, dexPC uint32, inputs ...ID) ID {
	id := g.newNode(b, op, typ, dexPC, inputs)
	b.Instrs = append(b.Instrs, id)
	if op == OpSuspendCheck && b.SuspendCheck == NoID {
		b.SuspendCheck = id
	}
	return id
}

// NewPhi appends a phi to block b. Inputs are ordered by predecessor index.
func (g *Graph) NewPhi(b *Block, typ Type, dexPC uint32, inputs ...ID) ID {
	id := g.newNode(b, OpPhi, typ, dexPC, inputs)
	b.Phis = append(b.Phis, id)
	return id
}

func (g *Graph) newNode(b *Block, op Opcode, typ Type, dexPC uint32, inputs []ID) ID {
	id := ID(g.instrs.Allocated())
	n := g.instrs.Allocate()
	n.Op = op
	n.Type = typ
	n.DexPC = dexPC
	n.Block = b.ID
	n.LifetimePosition = -1
	if len(inputs) > 0 {
		n.inputs = append([]ID(nil), inputs...)
	}
	return id
}

// BuildDefUse fills the use lists of every instruction.
func (g *Graph) BuildDefUse() {
	for i := 0; i < g.instrs.Allocated(); i++ {
		g.instrs.View(i).uses = g.instrs.View(i).uses[:0]
	}
	for i := 0; i < g.instrs.Allocated(); i++ {
		for _, in := range g.instrs.View(i).inputs {
			def := g.instrs.View(int(in))
			def.uses = append(def.uses, ID(i))
		}
	}
}

// Validate checks the structural properties code generation relies on: a
// single entry with no predecessors, a single exit, every non-exit block
// terminated by a control-flow instruction, and successor counts matching the
// terminator.
func (g *Graph) Validate() error {
	if g.entry == NoBlock || g.exit == NoBlock {
		return fmt.Errorf("hir: graph missing entry or exit")
	}
	if len(g.blocks[g.entry].Preds) != 0 {
		return fmt.Errorf("hir: entry block has predecessors")
	}
	for _, b := range g.blocks {
		if b.ID == g.exit {
			continue
		}
		if len(b.Instrs) == 0 {
			return fmt.Errorf("hir: block %d has no terminator", b.ID)
		}
		last := g.InstrAt(b.Instrs[len(b.Instrs)-1])
		if !last.Op.IsControlFlow() {
			return fmt.Errorf("hir: block %d ends with %v", b.ID, last.Op)
		}
		want := 1
		switch last.Op {
		case OpIf:
			want = 2
		case OpReturn, OpReturnVoid, OpThrow:
			want = 1 // the exit block
		}
		if len(b.Succs) != want {
			return fmt.Errorf("hir: block %d has %d successors, %v wants %d", b.ID, len(b.Succs), last.Op, want)
		}
	}
	return nil
}
