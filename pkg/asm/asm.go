// Package asm assembles symbolic instruction text into a resolved program.
//
// The input format is one instruction per line, `name:` label lines,
// `;` end-of-line comments and blank lines. A label may stand on its own
// line or share a line with the instruction it binds to. Register operands
// are named R0..R15 and RA; immediates are decimal integers; jump, branch
// and call targets may be labels or absolute instruction indices.
package asm

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"wordvm/pkg/vm"
)

// EntryLabel names the program's start address when defined.
const EntryLabel = "_start"

var mnemonics = func() map[string]vm.Opcode {
	m := make(map[string]vm.Opcode)
	for op := vm.Opcode(0); ; op++ {
		spec, ok := op.Spec()
		if !ok {
			break
		}
		m[spec.Name] = op
	}
	return m
}()

type assembler struct {
	labels map[string]int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

// Assemble resolves src into a Program. The two passes make label
// references order-independent: a label may be used before or after its
// definition and resolves to the same address either way. On error no
// partial program is returned.
func Assemble(src string) (*vm.Program, error) {
	a := &assembler{labels: make(map[string]int)}
	lines := strings.Split(src, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, err
	}
	return a.pass2(lines)
}

// pass1 binds every label to the index of the next instruction. Label lines
// do not consume an index themselves.
func (a *assembler) pass1(lines []string) error {
	index := 0
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return err
		}
		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists {
				return errors.Errorf("duplicate label '%s' on line %d", lbl, p.lineNo)
			}
			a.labels[lbl] = index
		}
		if p.mnemonic != "" {
			index++
		}
	}
	return nil
}

func (a *assembler) pass2(lines []string) (*vm.Program, error) {
	p := &vm.Program{
		Symbols:   a.labels,
		SourceMap: make(map[int]int),
	}

	for i, raw := range lines {
		parsed, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		if parsed.mnemonic == "" {
			continue
		}

		in, err := a.encode(parsed)
		if err != nil {
			return nil, err
		}
		p.SourceMap[len(p.Code)] = parsed.lineNo
		p.Code = append(p.Code, in)
	}

	if entry, ok := a.labels[EntryLabel]; ok {
		p.Entry = entry
	}
	return p, nil
}

func (a *assembler) encode(p parsedLine) (vm.Instruction, error) {
	op, ok := mnemonics[p.mnemonic]
	if !ok {
		return vm.Instruction{}, errors.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	spec, _ := op.Spec()

	arity := 0
	for _, kind := range spec.Operands {
		if kind != vm.OperandNone {
			arity++
		}
	}
	if len(p.operands) != arity {
		return vm.Instruction{}, errors.Errorf("%s expects %d operands, got %d on line %d",
			p.mnemonic, arity, len(p.operands), p.lineNo)
	}

	in := vm.Instruction{Op: op}
	args := [3]*vm.Word{&in.A, &in.B, &in.C}
	for i := 0; i < arity; i++ {
		val, err := a.operand(p.operands[i], spec.Operands[i], p.lineNo)
		if err != nil {
			return vm.Instruction{}, err
		}
		*args[i] = val
	}
	return in, nil
}

func (a *assembler) operand(token string, kind vm.OperandKind, lineNo int) (vm.Word, error) {
	switch kind {
	case vm.OperandReg:
		return parseRegister(token, lineNo)
	case vm.OperandImm:
		return parseImmediate(token, lineNo)
	case vm.OperandTarget:
		if addr, ok := a.labels[token]; ok {
			return vm.Word(addr), nil
		}
		if isIdentifier(token) {
			return 0, errors.Errorf("undefined label '%s' on line %d", token, lineNo)
		}
		return parseImmediate(token, lineNo)
	}
	return 0, errors.Errorf("internal: bad operand kind on line %d", lineNo)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := stripComment(raw)
	line = strings.TrimSpace(line)
	if line == "" {
		return p, nil
	}

	// Peel off leading label definitions; several may stack on one line.
	for {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			break
		}
		label := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(label, " \t,") {
			break // colon belongs to something later on the line
		}
		if !isIdentifier(label) {
			return p, errors.Errorf("invalid label '%s' on line %d", label, lineNo)
		}
		p.labels = append(p.labels, label)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return p, nil
	}
	p.mnemonic = strings.ToUpper(fields[0])
	p.operands = fields[1:]
	return p, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseRegister(token string, lineNo int) (vm.Word, error) {
	t := strings.ToUpper(token)
	if t == "RA" {
		return vm.RegRA, nil
	}
	// Bare indices are accepted alongside the R-prefixed names, so
	// "STORE R5, 0, 0" addresses through R0 twice.
	if strings.HasPrefix(t, "R") {
		t = t[1:]
	}
	if n, err := strconv.Atoi(t); err == nil && n >= 0 && n <= 15 {
		return vm.Word(n), nil
	}
	return 0, errors.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func parseImmediate(token string, lineNo int) (vm.Word, error) {
	value, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid immediate '%s' on line %d", token, lineNo)
	}
	return vm.Word(value), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
