package codegen

import (
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/asm"
)

// SlowPathState tracks the lifecycle of one out-of-line sequence. Transitions
// are monotonic: Created -> Emitted -> Finalized.
type SlowPathState byte

const (
	// SlowPathCreated means the fast path has branched to the entry label but
	// no body exists yet.
	SlowPathCreated SlowPathState = iota
	// SlowPathEmitted means the body has been written after the main stream.
	SlowPathEmitted
	// SlowPathFinalized means bookkeeping (stack maps, patches) is complete.
	SlowPathFinalized
)

// SlowPath is one out-of-line code sequence reached from a rare condition.
// Target generators fill Write with a closure emitting the body; paths that
// raise never use the exit label.
type SlowPath struct {
	// Description names the path in diagnostics, e.g. "bounds check".
	Description string
	// DexPC is the source position the path's stack map records.
	DexPC uint32
	// Write emits the body. The entry label is already bound when it runs.
	Write func(sp *SlowPath) error
	// Returns marks paths that branch back to the exit label; throwing paths
	// leave it false.
	Returns bool

	entry asm.Label
	exit  asm.Label
	state SlowPathState
}

// EntryLabel is the branch target the fast path jumps to.
func (sp *SlowPath) EntryLabel() *asm.Label { return &sp.entry }

// ExitLabel is where a returning path lands back in the main stream.
func (sp *SlowPath) ExitLabel() *asm.Label { return &sp.exit }

// State returns the current lifecycle state.
func (sp *SlowPath) State() SlowPathState { return sp.state }

// SlowPathList collects the paths of one compilation in creation order and
// emits them after the main stream.
type SlowPathList struct {
	paths []*SlowPath
}

// Add registers a new path and returns it for label wiring.
func (l *SlowPathList) Add(sp *SlowPath) *SlowPath {
	l.paths = append(l.paths, sp)
	return sp
}

// Paths returns the registered paths in creation order.
func (l *SlowPathList) Paths() []*SlowPath { return l.paths }

// EmitAll writes every pending body, binding entry labels through the
// generator's bind callback, and finalizes each path.
func (l *SlowPathList) EmitAll(bind func(*asm.Label)) error {
	for _, sp := range l.paths {
		if sp.state != SlowPathCreated {
			return errors.New("slow path %q emitted twice", sp.Description)
		}
		bind(&sp.entry)
		sp.state = SlowPathEmitted
		if err := sp.Write(sp); err != nil {
			return errors.Wrap(err, "slow path %q", sp.Description)
		}
		sp.state = SlowPathFinalized
	}
	return nil
}
