package stackmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_RoundTrip(t *testing.T) {
	b := NewBuilder(10)
	b.Add(0x10, 3, 1<<0|1<<4, []byte{0b0000_0101, 0b0000_0010})
	b.Add(0x2c, 9, 0, nil)

	entries, slots, err := Decode(b.Encode())
	require.NoError(t, err)
	require.Equal(t, 10, slots)
	require.Len(t, entries, 2)

	e := entries[0]
	require.Equal(t, uint32(0x10), e.NativePC)
	require.Equal(t, uint32(3), e.DexPC)
	require.Equal(t, uint32(0x11), e.RegisterMask)
	require.True(t, e.StackBit(0))
	require.False(t, e.StackBit(1))
	require.True(t, e.StackBit(2))
	require.True(t, e.StackBit(9))
	require.False(t, e.StackBit(63), "out-of-range bits read as zero")

	require.Equal(t, uint32(0), entries[1].RegisterMask)
	require.False(t, entries[1].StackBit(0))
}

func TestBuilder_SetNativePC(t *testing.T) {
	b := NewBuilder(0)
	b.Add(0, 7, 0, nil)
	b.SetNativePC(0, 0x40)
	entries, _, err := Decode(b.Encode())
	require.NoError(t, err)
	require.Equal(t, uint32(0x40), entries[0].NativePC)
}

func TestDecode_Truncated(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)

	b := NewBuilder(4)
	b.Add(0, 0, 0, nil)
	enc := b.Encode()
	_, _, err = Decode(enc[:len(enc)-1])
	require.Error(t, err)
}
