// Package codegen lowers typed IR functions to assembler text honoring the
// machine's calling convention.
//
// The machine has no hardware call stack: CALL only writes RA, so the
// generated prologue and epilogue are the sole guarantee that the stack
// pointer and return address survive a call. Every function entered through
// a CALL stores RA and the caller's frame pointer to its own frame, and
// every return path funnels through one epilogue that restores them, so the
// stack pointer after a call always equals its value before the call.
//
// Register roles in generated code: R0 stays zero; R1 and R2 are scratch;
// R3 carries the return value and, with R4..R6, the first four arguments;
// R13 is the stack-region base, R14 the stack pointer (next free slot),
// R15 the frame pointer. All IR locals live in frame slots, so a callee may
// clobber any general register without damaging its caller.
package codegen

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"wordvm/pkg/asm"
	"wordvm/pkg/ir"
	"wordvm/pkg/vm"
)

const (
	// DefaultStackBase is the first word of the stack region, above the
	// MMIO header and the TEXT40 video RAM.
	DefaultStackBase = 2048
	// DefaultStackWords bounds a single frame; exceeding it is a
	// generation error rather than a latent runtime fault.
	DefaultStackWords = 8192

	numArgRegs = 4
	retReg     = 3 // R3, also the first argument register
)

// labelSeq feeds fresh label names. Process-wide so concurrent generators
// never collide.
var labelSeq uint64

// Generator lowers one ir.Program. It is a pure function of its input: all
// state below is private to one Generate call.
type Generator struct {
	prog       *ir.Program
	stackBase  int
	stackWords int

	out strings.Builder
	fn  *ir.Function
}

// Option configures a Generator.
type Option func(*Generator)

// StackBase sets the first word of the stack region installed by _start.
func StackBase(words int) Option {
	return func(g *Generator) { g.stackBase = words }
}

// StackWords sets the addressable stack region size used to reject
// oversized frames.
func StackWords(words int) Option {
	return func(g *Generator) { g.stackWords = words }
}

// New prepares a generator for p.
func New(p *ir.Program, opts ...Option) *Generator {
	g := &Generator{
		prog:       p,
		stackBase:  DefaultStackBase,
		stackWords: DefaultStackWords,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate emits assembler text for the whole program. When a main function
// exists, a _start preamble pins R13 to the stack base, points R14 and R15
// at it, calls main and halts.
func (g *Generator) Generate() (string, error) {
	if err := g.prog.Validate(); err != nil {
		return "", err
	}
	g.out.Reset()

	if main := g.prog.Func("main"); main != nil {
		if main.NumParams != 0 {
			return "", errors.Errorf("function main: must take no parameters")
		}
		g.line("%s:", asm.EntryLabel)
		g.line("    LI R13, 0")
		g.line("    LI R14, %d", g.stackBase)
		g.line("    LI R15, %d", g.stackBase)
		g.line("    CALL main")
		g.line("    HALT")
		g.line("")
	}

	for _, f := range g.prog.Funcs {
		if err := g.genFunction(f); err != nil {
			return "", err
		}
		g.line("")
	}
	return g.out.String(), nil
}

// Build generates and assembles in one step.
func (g *Generator) Build() (*vm.Program, error) {
	text, err := g.Generate()
	if err != nil {
		return nil, err
	}
	p, err := asm.Assemble(text)
	if err != nil {
		return nil, errors.Wrap(err, "assembling generated code")
	}
	return p, nil
}

func (g *Generator) line(format string, args ...any) {
	fmt.Fprintf(&g.out, format+"\n", args...)
}

func (g *Generator) comment(format string, args ...any) {
	g.line("    ; "+format, args...)
}

func (g *Generator) newLabel(hint string) string {
	n := atomic.AddUint64(&labelSeq, 1)
	return fmt.Sprintf("_%s_%s%d", g.fn.Name, hint, n)
}

// slotOf maps a local index to its frame slot, relative to R15. Overflow
// arguments (index >= 4) occupy the first slots because the caller wrote
// them just above the RA/FP words the prologue pushes; the spilled register
// arguments follow, then the remaining locals.
func (g *Generator) slotOf(local int) int {
	f := g.fn
	overflow := f.NumParams - numArgRegs
	if overflow < 0 {
		overflow = 0
	}
	if local < f.NumParams && local < numArgRegs {
		return overflow + local
	}
	if local < f.NumParams {
		return local - numArgRegs
	}
	return local
}

// loadLocal reads a frame slot into reg, using reg itself for the address
// arithmetic so no extra scratch register is touched.
func (g *Generator) loadLocal(reg string, local int) {
	g.line("    ADDI %s, R15, %d", reg, g.slotOf(local))
	g.line("    LOAD %s, R13, %s", reg, reg)
}

// storeLocal writes reg to a frame slot. R2 holds the address, so reg must
// not be R2.
func (g *Generator) storeLocal(local int, reg string) {
	g.line("    ADDI R2, R15, %d", g.slotOf(local))
	g.line("    STORE %s, R13, R2", reg)
}

func (g *Generator) genFunction(f *ir.Function) error {
	g.fn = f
	defer func() { g.fn = nil }()

	frameSlots := f.NumLocals
	if frameSlots+2 > g.stackWords {
		return errors.Errorf("function %s: frame of %d words exceeds the %d-word stack region",
			f.Name, frameSlots+2, g.stackWords)
	}

	epilogue := g.newLabel("ret")

	g.line("%s:", f.Name)
	g.comment("frame: %d slots, %d params", frameSlots, f.NumParams)
	g.line("    STORE RA, R13, R14")
	g.line("    ADDI R14, R14, 1")
	g.line("    STORE R15, R13, R14")
	g.line("    ADDI R14, R14, 1")
	g.line("    ADD R15, R14, R0")
	if frameSlots > 0 {
		g.line("    ADDI R14, R14, %d", frameSlots)
	}
	for j := 0; j < f.NumParams && j < numArgRegs; j++ {
		g.storeLocal(j, fmt.Sprintf("R%d", retReg+j))
	}

	if err := g.genOps(f.Body, epilogue); err != nil {
		return err
	}

	g.line("%s:", epilogue)
	g.line("    ADD R14, R15, R0")
	g.line("    ADDI R14, R14, -1")
	g.line("    LOAD R15, R13, R14")
	g.line("    ADDI R14, R14, -1")
	g.line("    LOAD RA, R13, R14")
	g.line("    RET")
	return nil
}

func (g *Generator) genOps(ops []ir.Op, epilogue string) error {
	for _, op := range ops {
		if err := g.genOp(op, epilogue); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genOp(op ir.Op, epilogue string) error {
	switch o := op.(type) {
	case ir.Const:
		g.line("    LI R1, %d", o.Value)
		g.storeLocal(o.Dst, "R1")

	case ir.Move:
		g.loadLocal("R1", o.Src)
		g.storeLocal(o.Dst, "R1")

	case ir.Bin:
		g.genBin(o)

	case ir.Call:
		g.genCall(o)

	case ir.Ret:
		if o.Src != ir.None {
			g.loadLocal("R3", o.Src)
		}
		g.line("    JMP %s", epilogue)

	case ir.Emit:
		g.loadLocal("R1", o.Src)
		g.line("    STORE R1, R0, R0")

	case ir.Peek:
		g.loadLocal("R1", o.Addr)
		g.line("    LOAD R1, R1, R0")
		g.storeLocal(o.Dst, "R1")

	case ir.Poke:
		g.loadLocal("R1", o.Addr)
		g.loadLocal("R2", o.Src)
		g.line("    STORE R2, R1, R0")

	case ir.If:
		elseL := g.newLabel("else")
		endL := g.newLabel("endif")
		g.loadLocal("R1", o.Cond)
		if len(o.Else) == 0 {
			g.line("    BEQ R1, R0, %s", endL)
			if err := g.genOps(o.Then, epilogue); err != nil {
				return err
			}
		} else {
			g.line("    BEQ R1, R0, %s", elseL)
			if err := g.genOps(o.Then, epilogue); err != nil {
				return err
			}
			g.line("    JMP %s", endL)
			g.line("%s:", elseL)
			if err := g.genOps(o.Else, epilogue); err != nil {
				return err
			}
		}
		g.line("%s:", endL)

	case ir.While:
		startL := g.newLabel("loop")
		endL := g.newLabel("endloop")
		g.line("%s:", startL)
		if err := g.genOps(o.Pre, epilogue); err != nil {
			return err
		}
		g.loadLocal("R1", o.Cond)
		g.line("    BEQ R1, R0, %s", endL)
		if err := g.genOps(o.Body, epilogue); err != nil {
			return err
		}
		g.line("    JMP %s", startL)
		g.line("%s:", endL)

	default:
		return errors.Errorf("function %s: unsupported operation %T", g.fn.Name, op)
	}
	return nil
}

func (g *Generator) genBin(o ir.Bin) {
	g.loadLocal("R1", o.L)
	g.loadLocal("R2", o.R)
	switch o.Kind {
	case ir.Add:
		g.line("    ADD R1, R1, R2")
	case ir.Sub:
		g.line("    SUB R1, R1, R2")
	case ir.Mul:
		g.line("    MUL R1, R1, R2")
	case ir.Div:
		g.line("    DIV R1, R1, R2")
	case ir.Mod:
		g.line("    MOD R1, R1, R2")
	case ir.And:
		g.line("    AND R1, R1, R2")
	case ir.Or:
		g.line("    OR R1, R1, R2")
	case ir.Xor:
		g.line("    XOR R1, R1, R2")
	case ir.Lt:
		g.line("    SLT R1, R1, R2")
	case ir.Eq:
		done := g.newLabel("eq")
		g.line("    SUB R2, R1, R2")
		g.line("    LI R1, 1")
		g.line("    BEQ R2, R0, %s", done)
		g.line("    LI R1, 0")
		g.line("%s:", done)
	}
	g.storeLocal(o.Dst, "R1")
}

// genCall implements the caller side of the convention. The caller has no
// live register state to protect (locals are already in its frame), so a
// call is: place overflow arguments above the current stack top, load the
// first four into R3..R6, CALL, then store R3 if a value is expected. The
// overflow slots sit exactly where the callee's frame will map its
// parameter slots once the prologue pushes RA and the frame pointer.
func (g *Generator) genCall(o ir.Call) {
	g.comment("call %s", o.Callee)
	for j := numArgRegs; j < len(o.Args); j++ {
		g.loadLocal("R1", o.Args[j])
		g.line("    ADDI R2, R14, %d", 2+j-numArgRegs)
		g.line("    STORE R1, R13, R2")
	}
	for j := 0; j < len(o.Args) && j < numArgRegs; j++ {
		g.loadLocal(fmt.Sprintf("R%d", retReg+j), o.Args[j])
	}
	g.line("    CALL %s", o.Callee)
	if o.Dst != ir.None {
		g.storeLocal(o.Dst, "R3")
	}
}
