// Package asm holds the pieces shared by all ISA assemblers: the append-only
// code buffer, branch labels, and the assembler error kinds.
package asm

import (
	"encoding/binary"

	"tlog.app/go/errors"
)

// Assembler error kinds. The ISA assemblers wrap these so the driver can test
// with errors.Is while every site keeps a contextual message.
var (
	// ErrPhase is the single-pass phase error: a branch displacement flipped
	// from the short to the long encoding after later code was emitted.
	// Retrying with long branches forced is the caller's decision.
	ErrPhase = errors.New("assembler phase error")
	// ErrOperandRange is a non-representable immediate, offset or
	// displacement.
	ErrOperandRange = errors.New("operand out of encodable range")
	// ErrIllegalShape is an unsupported register, condition or operand
	// combination.
	ErrIllegalShape = errors.New("illegal operand shape")
)

// Buffer is the append-only machine-code byte vector. Emitted words can be
// re-read and patched in place, which is how label binding resolves the
// placeholder branch encodings.
type Buffer struct {
	data []byte

	// alloc, when set, supplies the backing storage on growth; an arena's
	// Alloc goes here so the buffer dies with the compilation.
	alloc func(n int) []byte
}

// SetAllocator routes capacity growth through alloc. Nil keeps growth on the
// Go heap.
func (b *Buffer) SetAllocator(alloc func(n int) []byte) { b.alloc = alloc }

func (b *Buffer) ensure(n int) {
	if b.alloc == nil || len(b.data)+n <= cap(b.data) {
		return
	}
	c := cap(b.data) * 2
	if c < 1024 {
		c = 1024
	}
	for c < len(b.data)+n {
		c *= 2
	}
	nd := b.alloc(c)
	copy(nd, b.data)
	b.data = nd[:len(b.data)]
}

// Size returns the current end offset, i.e. the pc of the next emitted byte.
func (b *Buffer) Size() int { return len(b.data) }

// Bytes returns the emitted code. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Emit8 appends one byte.
func (b *Buffer) Emit8(v byte) {
	b.ensure(1)
	b.data = append(b.data, v)
}

// Emit32 appends a little-endian 32-bit word.
func (b *Buffer) Emit32(v uint32) {
	b.ensure(4)
	b.data = append(b.data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Load32 reads the word previously emitted at pos.
func (b *Buffer) Load32(pos int) uint32 {
	return binary.LittleEndian.Uint32(b.data[pos : pos+4])
}

// Store32 patches the word previously emitted at pos.
func (b *Buffer) Store32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[pos:pos+4], v)
}

// Align pads with the given byte until the size is a multiple of n.
func (b *Buffer) Align(n int, pad byte) {
	b.ensure(n)
	for len(b.data)%n != 0 {
		b.data = append(b.data, pad)
	}
}

// Label marks a position in the instruction stream. Until the label is bound,
// branch sites targeting it form a linked list threaded through the
// placeholder branch encodings themselves; Bind walks that list and patches
// every site.
type Label struct {
	// position holds, biased by one to keep the zero value meaning "unused":
	// bound pc + 1 when bound, or -(last linked site pc) - 1 while unbound
	// with at least one use.
	position int
}

// IsBound reports whether the label has been bound to a pc.
func (l *Label) IsBound() bool { return l.position > 0 }

// IsLinked reports whether any branch site waits on the label.
func (l *Label) IsLinked() bool { return l.position < 0 }

// Position returns the bound pc.
func (l *Label) Position() int {
	if !l.IsBound() {
		panic("asm: position of unbound label")
	}
	return l.position - 1
}

// LinkPosition returns the pc of the most recent branch site waiting on the
// label.
func (l *Label) LinkPosition() int {
	if !l.IsLinked() {
		panic("asm: link position of unlinked label")
	}
	return -l.position - 1
}

// BindTo marks the label bound at pc. The ISA assembler is responsible for
// having patched the linked sites first.
func (l *Label) BindTo(pc int) {
	if l.IsBound() {
		panic("asm: label bound twice")
	}
	l.position = pc + 1
}

// LinkTo records pc as the newest site waiting on the label.
func (l *Label) LinkTo(pc int) {
	if l.IsBound() {
		panic("asm: linking to bound label")
	}
	l.position = -pc - 1
}
