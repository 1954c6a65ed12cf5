// Package armdebug cross-checks the homemade ARM encoder against the
// golang-asm port of the Go toolchain assembler. It covers the subset of
// instructions both assemblers spell identically and is meant for debugging
// encoder regressions, not for production code generation.
package armdebug

import (
	"bytes"
	"encoding/hex"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	goarm "github.com/twitchyliquid64/golang-asm/obj/arm"
	"tlog.app/go/errors"

	"github.com/Dreams-N/platform-art-sub001/internal/asm/arm"
)

// CrossAssembler feeds every instruction to both the homemade encoder and
// golang-asm, then diffs the two byte streams at Finalize.
type CrossAssembler struct {
	ours    *arm.Assembler
	builder *goasm.Builder
}

// NewCrossAssembler returns a cross-checking assembler for the arm
// architecture.
func NewCrossAssembler() (*CrossAssembler, error) {
	b, err := goasm.NewBuilder("arm", 1024)
	if err != nil {
		return nil, errors.Wrap(err, "golang-asm builder")
	}
	return &CrossAssembler{ours: arm.NewAssembler(), builder: b}, nil
}

func goReg(r arm.Reg) int16 { return goarm.REG_R0 + int16(r) }

func (c *CrossAssembler) add(p *obj.Prog) {
	c.builder.AddInstruction(p)
}

// dp3 records a three-register data-processing instruction in both streams.
func (c *CrossAssembler) dp3(as obj.As, rd, rn, rm arm.Reg) {
	p := c.builder.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_REG
	p.From.Reg = goReg(rm)
	p.Reg = goReg(rn)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = goReg(rd)
	c.add(p)
}

// dpImm records rd = rn <op> #imm in both streams. The immediate must be a
// modified immediate so golang-asm emits a single word.
func (c *CrossAssembler) dpImm(as obj.As, rd, rn arm.Reg, imm uint32) {
	p := c.builder.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = int64(imm)
	p.Reg = goReg(rn)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = goReg(rd)
	c.add(p)
}

// Add records add rd, rn, rm.
func (c *CrossAssembler) Add(rd, rn, rm arm.Reg) {
	c.ours.Add(rd, rn, arm.RegOp(rm), arm.AL)
	c.dp3(goarm.AADD, rd, rn, rm)
}

// AddImm records add rd, rn, #imm.
func (c *CrossAssembler) AddImm(rd, rn arm.Reg, imm uint32) {
	c.ours.Add(rd, rn, arm.Imm(imm), arm.AL)
	c.dpImm(goarm.AADD, rd, rn, imm)
}

// Sub records sub rd, rn, rm.
func (c *CrossAssembler) Sub(rd, rn, rm arm.Reg) {
	c.ours.Sub(rd, rn, arm.RegOp(rm), arm.AL)
	c.dp3(goarm.ASUB, rd, rn, rm)
}

// SubImm records sub rd, rn, #imm.
func (c *CrossAssembler) SubImm(rd, rn arm.Reg, imm uint32) {
	c.ours.Sub(rd, rn, arm.Imm(imm), arm.AL)
	c.dpImm(goarm.ASUB, rd, rn, imm)
}

// And records and rd, rn, rm.
func (c *CrossAssembler) And(rd, rn, rm arm.Reg) {
	c.ours.And(rd, rn, arm.RegOp(rm), arm.AL)
	c.dp3(goarm.AAND, rd, rn, rm)
}

// Orr records orr rd, rn, rm.
func (c *CrossAssembler) Orr(rd, rn, rm arm.Reg) {
	c.ours.Orr(rd, rn, arm.RegOp(rm), arm.AL)
	c.dp3(goarm.AORR, rd, rn, rm)
}

// Eor records eor rd, rn, rm.
func (c *CrossAssembler) Eor(rd, rn, rm arm.Reg) {
	c.ours.Eor(rd, rn, arm.RegOp(rm), arm.AL)
	c.dp3(goarm.AEOR, rd, rn, rm)
}

// Cmp records cmp rn, rm.
func (c *CrossAssembler) Cmp(rn, rm arm.Reg) {
	c.ours.Cmp(rn, arm.RegOp(rm), arm.AL)
	p := c.builder.NewProg()
	p.As = goarm.ACMP
	p.From.Type = obj.TYPE_REG
	p.From.Reg = goReg(rm)
	p.Reg = goReg(rn)
	c.add(p)
}

// Mov records mov rd, rm.
func (c *CrossAssembler) Mov(rd, rm arm.Reg) {
	c.ours.Mov(rd, arm.RegOp(rm), arm.AL)
	p := c.builder.NewProg()
	p.As = goarm.AMOVW
	p.From.Type = obj.TYPE_REG
	p.From.Reg = goReg(rm)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = goReg(rd)
	c.add(p)
}

// LoadWord records ldr rt, [base, #offset].
func (c *CrossAssembler) LoadWord(rt, base arm.Reg, offset int32) {
	c.ours.LoadFromOffset(arm.LoadWord, rt, base, offset, arm.AL)
	p := c.builder.NewProg()
	p.As = goarm.AMOVW
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = goReg(base)
	p.From.Offset = int64(offset)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = goReg(rt)
	c.add(p)
}

// StoreWord records str rt, [base, #offset].
func (c *CrossAssembler) StoreWord(rt, base arm.Reg, offset int32) {
	c.ours.StoreToOffset(arm.StoreWord, rt, base, offset, arm.AL)
	p := c.builder.NewProg()
	p.As = goarm.AMOVW
	p.From.Type = obj.TYPE_REG
	p.From.Reg = goReg(rt)
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = goReg(base)
	p.To.Offset = int64(offset)
	c.add(p)
}

// Mul records mul rd, rn, rm.
func (c *CrossAssembler) Mul(rd, rn, rm arm.Reg) {
	c.ours.Mul(rd, rn, rm, arm.AL)
	p := c.builder.NewProg()
	p.As = goarm.AMUL
	p.From.Type = obj.TYPE_REG
	p.From.Reg = goReg(rm)
	p.Reg = goReg(rn)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = goReg(rd)
	c.add(p)
}

// Finalize assembles both streams and reports the first divergence.
func (c *CrossAssembler) Finalize() error {
	ours, err := c.ours.Finalize()
	if err != nil {
		return err
	}
	ref := c.builder.Assemble()
	if !bytes.Equal(ours, ref) {
		return errors.New("encoder mismatch:\nours: %s\nref:  %s",
			hex.EncodeToString(ours), hex.EncodeToString(ref))
	}
	return nil
}
