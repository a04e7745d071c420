package vm

import "fmt"

// FaultKind classifies runtime faults. CALL and RET are ordinary
// instructions and never fault; only fetch and address-bound failures do.
type FaultKind int

const (
	IllegalInstruction FaultKind = iota
	MemoryFault
)

func (k FaultKind) String() string {
	switch k {
	case IllegalInstruction:
		return "illegal instruction"
	case MemoryFault:
		return "memory fault"
	}
	return "unknown fault"
}

// Fault reports a runtime fault. PC is the index of the faulting
// instruction and Regs is a copy of the register file from immediately
// before it executed; the VM itself is halted but otherwise intact.
type Fault struct {
	Kind FaultKind
	PC   int
	Addr Word // offending address (or PC for fetch failures)
	Regs [NumRegs]Word
}

func (f *Fault) Error() string {
	if f.Kind == MemoryFault {
		return fmt.Sprintf("%v at pc=%d: address %d out of bounds", f.Kind, f.PC, f.Addr)
	}
	return fmt.Sprintf("%v at pc=%d", f.Kind, f.PC)
}
