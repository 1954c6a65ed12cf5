// Package stackmap encodes the per-safepoint GC maps: for each native pc at
// which the runtime may walk the frame, the dex pc, a bitmask of core
// registers holding references, and a bitmap of reference-bearing stack
// slots.
package stackmap

import (
	"encoding/binary"

	"tlog.app/go/errors"
)

// Entry is one safepoint record.
type Entry struct {
	NativePC     uint32
	DexPC        uint32
	RegisterMask uint32
	// StackMask has one bit per spill slot, bit i = slot i (low bit first).
	StackMask []byte
}

// StackBit reports whether spill slot i holds a reference.
func (e *Entry) StackBit(i int) bool {
	if i/8 >= len(e.StackMask) {
		return false
	}
	return e.StackMask[i/8]&(1<<(i%8)) != 0
}

// Builder accumulates safepoint records during emission and serializes them
// once code layout is final.
type Builder struct {
	numSlots int
	entries  []Entry
}

// NewBuilder returns a builder for a frame with the given number of spill
// slots.
func NewBuilder(numSlots int) *Builder {
	return &Builder{numSlots: numSlots}
}

// NumEntries returns the number of safepoints recorded.
func (b *Builder) NumEntries() int { return len(b.entries) }

// Entries returns the recorded safepoints in emission order.
func (b *Builder) Entries() []Entry { return b.entries }

// maskBytes returns the encoded size of one stack mask.
func (b *Builder) maskBytes() int { return (b.numSlots + 7) / 8 }

// Add records a safepoint. stackMask is a little-endian bitset over spill
// slots; missing high bytes read as zero.
func (b *Builder) Add(nativePC, dexPC uint32, registerMask uint32, stackMask []byte) {
	m := make([]byte, b.maskBytes())
	copy(m, stackMask)
	b.entries = append(b.entries, Entry{
		NativePC:     nativePC,
		DexPC:        dexPC,
		RegisterMask: registerMask,
		StackMask:    m,
	})
}

// SetNativePC patches the native pc of entry i, used when a slow-path call
// site records its map before the final branch layout is known.
func (b *Builder) SetNativePC(i int, pc uint32) { b.entries[i].NativePC = pc }

// Encode serializes the table:
//
//	u32 entry count, u32 spill-slot count,
//	then per entry: u32 native pc, u32 dex pc, u32 register mask, stack mask.
func (b *Builder) Encode() []byte {
	out := make([]byte, 0, 8+len(b.entries)*(12+b.maskBytes()))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.entries)))
	out = binary.LittleEndian.AppendUint32(out, uint32(b.numSlots))
	for i := range b.entries {
		e := &b.entries[i]
		out = binary.LittleEndian.AppendUint32(out, e.NativePC)
		out = binary.LittleEndian.AppendUint32(out, e.DexPC)
		out = binary.LittleEndian.AppendUint32(out, e.RegisterMask)
		out = append(out, e.StackMask...)
	}
	return out
}

// Decode parses a table produced by Encode.
func Decode(data []byte) (entries []Entry, numSlots int, err error) {
	if len(data) < 8 {
		return nil, 0, errors.New("stackmap: truncated header")
	}
	count := int(binary.LittleEndian.Uint32(data))
	numSlots = int(binary.LittleEndian.Uint32(data[4:]))
	maskBytes := (numSlots + 7) / 8
	pos := 8
	entries = make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		if pos+12+maskBytes > len(data) {
			return nil, 0, errors.New("stackmap: truncated entry %d", i)
		}
		e := Entry{
			NativePC:     binary.LittleEndian.Uint32(data[pos:]),
			DexPC:        binary.LittleEndian.Uint32(data[pos+4:]),
			RegisterMask: binary.LittleEndian.Uint32(data[pos+8:]),
			StackMask:    append([]byte(nil), data[pos+12:pos+12+maskBytes]...),
		}
		pos += 12 + maskBytes
		entries = append(entries, e)
	}
	return entries, numSlots, nil
}
