package armdebug

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

func TestCrossCheckAgainstGolangAsm(t *testing.T) {
	c, err := NewCrossAssembler()
	require.NoError(t, err)

	c.Add(arm.R0, arm.R1, arm.R2)
	c.Sub(arm.R3, arm.R4, arm.R5)
	c.AddImm(arm.R0, arm.R1, 4)
	c.SubImm(arm.SP, arm.SP, 16)
	c.And(arm.R0, arm.R1, arm.R2)
	c.Orr(arm.R0, arm.R1, arm.R2)
	c.Eor(arm.R0, arm.R1, arm.R2)
	c.Cmp(arm.R0, arm.R1)
	c.Mov(arm.R0, arm.R1)
	c.LoadWord(arm.R0, arm.R1, 4)
	c.StoreWord(arm.R0, arm.R1, 8)
	c.Mul(arm.R0, arm.R1, arm.R2)

	require.NoError(t, c.Finalize())
}
