package vm

import "strconv"

// Word is the unit of register and memory storage.
type Word int32

// Opcode identifies one machine instruction.
type Opcode uint8

const (
	OpHALT Opcode = iota
	OpNOP
	OpLI
	OpADD
	OpADDI
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpAND
	OpOR
	OpXOR
	OpSLT
	OpLOAD
	OpSTORE
	OpJMP
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpCALL
	OpRET
)

// OperandKind describes what one operand slot of an instruction holds.
type OperandKind uint8

// OperandNone marks an unused slot. OperandReg holds a register index,
// OperandImm an immediate word, and OperandTarget an instruction index
// (a label before resolution).
const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
	OperandTarget
)

// OpSpec describes the operand layout of an opcode. Slot meanings:
//
//	LI    dst, imm
//	ADDI  dst, src, imm
//	ADD.. dst, a, b
//	LOAD  dst, base, idx
//	STORE src, base, idx
//	BEQ.. a, b, target
//	JMP/CALL target
type OpSpec struct {
	Name     string
	Operands [3]OperandKind
}

var opSpecs = [...]OpSpec{
	OpHALT:  {"HALT", [3]OperandKind{}},
	OpNOP:   {"NOP", [3]OperandKind{}},
	OpLI:    {"LI", [3]OperandKind{OperandReg, OperandImm}},
	OpADD:   {"ADD", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpADDI:  {"ADDI", [3]OperandKind{OperandReg, OperandReg, OperandImm}},
	OpSUB:   {"SUB", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpMUL:   {"MUL", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpDIV:   {"DIV", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpMOD:   {"MOD", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpAND:   {"AND", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpOR:    {"OR", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpXOR:   {"XOR", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpSLT:   {"SLT", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpLOAD:  {"LOAD", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpSTORE: {"STORE", [3]OperandKind{OperandReg, OperandReg, OperandReg}},
	OpJMP:   {"JMP", [3]OperandKind{OperandTarget}},
	OpBEQ:   {"BEQ", [3]OperandKind{OperandReg, OperandReg, OperandTarget}},
	OpBNE:   {"BNE", [3]OperandKind{OperandReg, OperandReg, OperandTarget}},
	OpBLT:   {"BLT", [3]OperandKind{OperandReg, OperandReg, OperandTarget}},
	OpBGE:   {"BGE", [3]OperandKind{OperandReg, OperandReg, OperandTarget}},
	OpCALL:  {"CALL", [3]OperandKind{OperandTarget}},
	OpRET:   {"RET", [3]OperandKind{}},
}

// Spec returns the operand layout for op, or false for an unknown opcode.
func (op Opcode) Spec() (OpSpec, bool) {
	if int(op) >= len(opSpecs) || opSpecs[op].Name == "" {
		return OpSpec{}, false
	}
	return opSpecs[op], true
}

func (op Opcode) String() string {
	if s, ok := op.Spec(); ok {
		return s.Name
	}
	return "???"
}

// Instruction is one decoded machine instruction. The meaning of A, B and C
// depends on the opcode (see OpSpec): register slots hold register indices,
// immediate slots hold the literal word, and target slots hold resolved
// instruction indices. Instructions are immutable once assembled.
type Instruction struct {
	Op      Opcode
	A, B, C Word
}

func (in Instruction) String() string {
	spec, ok := in.Op.Spec()
	if !ok {
		return "???"
	}
	s := spec.Name
	args := [3]Word{in.A, in.B, in.C}
	for i, kind := range spec.Operands {
		if kind == OperandNone {
			break
		}
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		if kind == OperandReg {
			s += RegName(int(args[i]))
		} else {
			s += strconv.Itoa(int(args[i]))
		}
	}
	return s
}
