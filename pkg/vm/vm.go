package vm

import (
	"fmt"
	"io"
)

// Register indices. R0 through R15 are addressed by number; RA is the
// return-address register written by CALL. The executor treats all of them
// as ordinary storage: the stack-related roles of R13/R14/R15 are a
// convention enforced by generated code, not by the machine.
const (
	NumRegs = 17
	RegRA   = 16

	RegZero = 0  // zero source by convention
	RegSB   = 13 // stack-region base
	RegSP   = 14 // stack pointer (next free slot)
	RegFP   = 15 // frame pointer
)

// RegName returns the assembler name of register index r.
func RegName(r int) string {
	if r == RegRA {
		return "RA"
	}
	return fmt.Sprintf("R%d", r)
}

const (
	// DefaultMemWords is the default size of the flat memory, in words.
	DefaultMemWords = 65536
	// MinMemWords is the smallest allowed memory; the MMIO header and the
	// TEXT40 video RAM must always be addressable.
	MinMemWords = 2048

	defaultRNGSeed = 0x2A
)

// Program is a resolved instruction stream plus debug metadata. It is
// immutable once assembled: the executor only reads it, and the symbol
// table is never touched after assembly completes.
type Program struct {
	Code  []Instruction
	Entry int // starting instruction index (_start if the label exists)

	// Symbols maps label names to instruction indices, retained as debug
	// metadata. SourceMap maps instruction indices back to source lines.
	Symbols   map[string]int
	SourceMap map[int]int
}

// VM is a single executor instance. It owns its register file, memory and
// output buffer exclusively; independent instances may run concurrently but
// one instance must never be shared.
type VM struct {
	Regs   [NumRegs]Word
	Mem    []Word
	PC     int
	Halted bool

	code []Instruction

	// DispMode, DispCtl and FlushPending mirror the display header words;
	// a front end consumes FlushPending once per frame.
	DispMode     Word
	DispCtl      Word
	FlushPending bool

	rngState uint32
	output   []byte
	sink     io.Writer
}

// Option configures a VM at construction time.
type Option func(*VM) error

// MemSize sets the memory size in words. The default is DefaultMemWords.
func MemSize(words int) Option {
	return func(v *VM) error {
		if words < MinMemWords {
			return fmt.Errorf("memory size %d below minimum %d", words, MinMemWords)
		}
		v.Mem = make([]Word, words)
		return nil
	}
}

// Output mirrors every byte written to the output port to w, in addition to
// the in-memory output buffer.
func Output(w io.Writer) Option {
	return func(v *VM) error {
		v.sink = w
		return nil
	}
}

// RNGSeed sets the initial state of the memory-mapped random source. The
// default seed is fixed, so two instances with identical programs and
// initial state produce identical runs.
func RNGSeed(seed uint32) Option {
	return func(v *VM) error {
		v.rngState = seed
		return nil
	}
}

// New creates an executor with zeroed registers and memory.
func New(opts ...Option) (*VM, error) {
	v := &VM{
		Mem:      make([]Word, DefaultMemWords),
		rngState: defaultRNGSeed,
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Load installs a resolved program and positions the PC at its entry point.
// Registers, memory and output are left untouched.
func (v *VM) Load(p *Program) {
	v.code = p.Code
	v.PC = p.Entry
	v.Halted = false
}

// OutputBytes returns the bytes emitted through the output port so far.
// The returned slice is the live buffer; callers must not modify it.
func (v *VM) OutputBytes() []byte {
	return v.output
}

// Step executes a single instruction. It returns a *Fault when fetch or an
// effective address fails; the fault halts the VM and leaves every register
// and memory word exactly as it was before the faulting instruction.
func (v *VM) Step() error {
	if v.Halted {
		return nil
	}
	if v.PC < 0 || v.PC >= len(v.code) {
		return v.fault(IllegalInstruction, Word(v.PC))
	}

	in := v.code[v.PC]
	next := v.PC + 1

	switch in.Op {
	case OpHALT:
		v.Halted = true
		return nil

	case OpNOP:

	case OpLI:
		v.Regs[in.A] = in.B

	case OpADD:
		v.Regs[in.A] = v.Regs[in.B] + v.Regs[in.C]

	case OpADDI:
		v.Regs[in.A] = v.Regs[in.B] + in.C

	case OpSUB:
		v.Regs[in.A] = v.Regs[in.B] - v.Regs[in.C]

	case OpMUL:
		v.Regs[in.A] = v.Regs[in.B] * v.Regs[in.C]

	case OpDIV:
		if v.Regs[in.C] == 0 {
			v.Regs[in.A] = 0 // division by zero yields 0, deterministically
		} else {
			v.Regs[in.A] = v.Regs[in.B] / v.Regs[in.C]
		}

	case OpMOD:
		if v.Regs[in.C] == 0 {
			v.Regs[in.A] = 0
		} else {
			v.Regs[in.A] = v.Regs[in.B] % v.Regs[in.C]
		}

	case OpAND:
		v.Regs[in.A] = v.Regs[in.B] & v.Regs[in.C]

	case OpOR:
		v.Regs[in.A] = v.Regs[in.B] | v.Regs[in.C]

	case OpXOR:
		v.Regs[in.A] = v.Regs[in.B] ^ v.Regs[in.C]

	case OpSLT:
		if v.Regs[in.B] < v.Regs[in.C] {
			v.Regs[in.A] = 1
		} else {
			v.Regs[in.A] = 0
		}

	case OpLOAD:
		addr := int(v.Regs[in.B]) + int(v.Regs[in.C])
		val, ok := v.loadWord(addr)
		if !ok {
			return v.fault(MemoryFault, Word(addr))
		}
		v.Regs[in.A] = val

	case OpSTORE:
		addr := int(v.Regs[in.B]) + int(v.Regs[in.C])
		if !v.storeWord(addr, v.Regs[in.A]) {
			return v.fault(MemoryFault, Word(addr))
		}

	case OpJMP:
		next = int(in.A)

	case OpBEQ:
		if v.Regs[in.A] == v.Regs[in.B] {
			next = int(in.C)
		}

	case OpBNE:
		if v.Regs[in.A] != v.Regs[in.B] {
			next = int(in.C)
		}

	case OpBLT:
		if v.Regs[in.A] < v.Regs[in.B] {
			next = int(in.C)
		}

	case OpBGE:
		if v.Regs[in.A] >= v.Regs[in.B] {
			next = int(in.C)
		}

	case OpCALL:
		v.Regs[RegRA] = Word(v.PC + 1)
		next = int(in.A)

	case OpRET:
		next = int(v.Regs[RegRA])

	default:
		return v.fault(IllegalInstruction, Word(v.PC))
	}

	v.PC = next
	return nil
}

// Run executes instructions until HALT or a fault.
func (v *VM) Run() error {
	for !v.Halted {
		if err := v.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (v *VM) fault(kind FaultKind, addr Word) error {
	v.Halted = true
	return &Fault{Kind: kind, PC: v.PC, Addr: addr, Regs: v.Regs}
}
