package location

// CallKind classifies how an instruction interacts with the runtime, which in
// turn decides whether a stack map must be recorded at its site.
type CallKind byte

const (
	NoCall CallKind = iota
	CallOnSlowPath
	Call
)

// OutputPolicy records whether the output may share a register with the first
// input.
type OutputPolicy byte

const (
	OutputDistinct OutputPolicy = iota
	OutputOverlapsFirstInput
)

// Summary is the contract between the location builder and the code
// generator: the ordered input locations, the output, the temp list and the
// call kind. The builder fills the slots with Unallocated placeholders; after
// register allocation every slot is concrete.
type Summary struct {
	inputs []Location
	temps  []Location
	output Location
	outPol OutputPolicy
	call   CallKind

	// Filled by the allocator for safepoint sites: the caller-visible mask of
	// registers holding references and the bitmap of reference-bearing spill
	// slots.
	RegisterMask uint32
	StackMask    uint64
	// LiveRegisters tracks the caller-save registers holding live values at a
	// call site, so slow paths know what to preserve.
	LiveCoreRegisters uint32
	LiveFpuRegisters  uint32
}

// NewSummary creates a summary with room for n inputs, all Invalid.
func NewSummary(n int, call CallKind) *Summary {
	return &Summary{inputs: make([]Location, n), call: call}
}

// SetIn sets the requirement (or, post-allocation, the decision) for input i.
func (s *Summary) SetIn(i int, l Location) { s.inputs[i] = l }

// In returns input i.
func (s *Summary) In(i int) Location { return s.inputs[i] }

// InputCount returns the number of inputs.
func (s *Summary) InputCount() int { return len(s.inputs) }

// SetOut sets the output location.
func (s *Summary) SetOut(l Location) { s.output = l }

// SetOutOverlapping sets the output location and allows it to share a
// register with the first input.
func (s *Summary) SetOutOverlapping(l Location) {
	s.output = l
	s.outPol = OutputOverlapsFirstInput
}

// Out returns the output location.
func (s *Summary) Out() Location { return s.output }

// OutputOverlapsFirst reports whether the output may reuse the first input's
// register.
func (s *Summary) OutputOverlapsFirst() bool { return s.outPol == OutputOverlapsFirstInput }

// AddTemp appends a temp requirement and returns its index.
func (s *Summary) AddTemp(l Location) int {
	s.temps = append(s.temps, l)
	return len(s.temps) - 1
}

// SetTemp overwrites temp i.
func (s *Summary) SetTemp(i int, l Location) { s.temps[i] = l }

// Temp returns temp i.
func (s *Summary) Temp(i int) Location { return s.temps[i] }

// TempCount returns the number of temps.
func (s *Summary) TempCount() int { return len(s.temps) }

// CallKind returns how the instruction calls into the runtime.
func (s *Summary) CallKind() CallKind { return s.call }

// CanCall reports whether a stack map is needed at this site.
func (s *Summary) CanCall() bool { return s.call != NoCall }

// WillCall reports whether the main path itself performs the call.
func (s *Summary) WillCall() bool { return s.call == Call }

// AllConcrete reports whether every input, temp and the output (when present)
// has been resolved to a concrete location.
func (s *Summary) AllConcrete() bool {
	concrete := func(l Location) bool {
		return l.Kind() != Unallocated
	}
	for _, in := range s.inputs {
		if !in.IsValid() || !concrete(in) {
			return false
		}
	}
	for _, tmp := range s.temps {
		if !tmp.IsValid() || !concrete(tmp) {
			return false
		}
	}
	return concrete(s.output)
}
