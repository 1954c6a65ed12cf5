package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/asm"
)

func TestSlowPathLifecycle(t *testing.T) {
	var list SlowPathList
	var emitted []string
	sp := list.Add(&SlowPath{
		Description: "bounds check",
		Write: func(sp *SlowPath) error {
			require.Equal(t, SlowPathEmitted, sp.State())
			emitted = append(emitted, sp.Description)
			return nil
		},
	})
	require.Equal(t, SlowPathCreated, sp.State())

	var boundAt []*asm.Label
	require.NoError(t, list.EmitAll(func(l *asm.Label) {
		boundAt = append(boundAt, l)
	}))
	require.Equal(t, []string{"bounds check"}, emitted)
	require.Equal(t, []*asm.Label{sp.EntryLabel()}, boundAt)
	require.Equal(t, SlowPathFinalized, sp.State())

	require.Error(t, list.EmitAll(func(*asm.Label) {}))
}

func TestSlowPathOrder(t *testing.T) {
	var list SlowPathList
	var order []string
	for _, name := range []string{"null check", "div zero", "suspend"} {
		name := name
		list.Add(&SlowPath{
			Description: name,
			Write: func(*SlowPath) error {
				order = append(order, name)
				return nil
			},
		})
	}
	require.NoError(t, list.EmitAll(func(*asm.Label) {}))
	require.Equal(t, []string{"null check", "div zero", "suspend"}, order)
}
