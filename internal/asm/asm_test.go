package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	var b Buffer
	require.Equal(t, 0, b.Size())
	b.Emit32(0xe0810002)
	b.Emit32(0xe12fff1e)
	require.Equal(t, 8, b.Size())
	require.Equal(t, uint32(0xe0810002), b.Load32(0))

	b.Store32(0, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), b.Load32(0))
	require.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, b.Bytes()[:4], "little endian")

	b.Emit8(1)
	b.Align(4, 0)
	require.Equal(t, 12, b.Size())
}

func TestLabel(t *testing.T) {
	var l Label
	require.False(t, l.IsBound())
	require.False(t, l.IsLinked())

	l.LinkTo(0)
	require.True(t, l.IsLinked())
	require.Equal(t, 0, l.LinkPosition())

	l.LinkTo(8)
	require.Equal(t, 8, l.LinkPosition())

	l2 := Label{}
	l2.BindTo(16)
	require.True(t, l2.IsBound())
	require.Equal(t, 16, l2.Position())
	require.Panics(t, func() { l2.BindTo(20) })
	require.Panics(t, func() { l2.LinkTo(20) })
}

func TestBufferAllocator(t *testing.T) {
	var b Buffer
	var grew int
	b.SetAllocator(func(n int) []byte {
		grew++
		return make([]byte, n)
	})
	for i := 0; i < 600; i++ {
		b.Emit32(uint32(i))
	}
	require.NotZero(t, grew, "growth must go through the allocator")
	require.Equal(t, 2400, b.Size())
	for i := 0; i < 600; i++ {
		require.Equal(t, uint32(i), b.Load32(4*i), "growth must preserve emitted words")
	}
}
