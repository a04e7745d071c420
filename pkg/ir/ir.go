// Package ir defines the typed intermediate representation consumed by the
// code generator. A frontend lowers its source language to Functions whose
// bodies are structured operations over an unbounded set of virtual locals;
// the code generator maps those locals onto the machine's registers and
// stack frames.
package ir

import (
	"fmt"

	"wordvm/pkg/vm"
)

// None marks an absent local slot (no destination, no return value).
const None = -1

// BinKind enumerates two-operand arithmetic and comparison operations.
// Lt and Eq yield 1 or 0.
type BinKind int

const (
	Add BinKind = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	Lt
	Eq
)

var binNames = [...]string{"add", "sub", "mul", "div", "mod", "and", "or", "xor", "lt", "eq"}

func (k BinKind) String() string {
	if int(k) < len(binNames) {
		return binNames[k]
	}
	return "?"
}

// Op is one typed operation. Locals are identified by index; parameters
// occupy locals 0..NumParams-1.
type Op interface {
	isOp()
}

// Const sets a local to a constant word.
type Const struct {
	Dst   int
	Value vm.Word
}

// Move copies one local to another.
type Move struct {
	Dst, Src int
}

// Bin computes Dst = L <op> R.
type Bin struct {
	Kind BinKind
	Dst  int
	L, R int
}

// Call invokes Callee with the given argument locals. Dst receives the
// return value, or is None when the callee's return arity is 0.
type Call struct {
	Dst    int
	Callee string
	Args   []int
}

// Ret returns from the function. Src is None for arity-0 functions.
type Ret struct {
	Src int
}

// Emit writes the low byte of a local to the output port.
type Emit struct {
	Src int
}

// Peek loads Dst from the memory address held in local Addr.
type Peek struct {
	Dst, Addr int
}

// Poke stores local Src to the memory address held in local Addr.
type Poke struct {
	Addr, Src int
}

// If runs Then when local Cond is non-zero, otherwise Else (may be nil).
type If struct {
	Cond int
	Then []Op
	Else []Op
}

// While re-runs Pre and tests local Cond before every iteration; the loop
// exits when Cond is zero.
type While struct {
	Pre  []Op
	Cond int
	Body []Op
}

func (Const) isOp() {}
func (Move) isOp()  {}
func (Bin) isOp()   {}
func (Call) isOp()  {}
func (Ret) isOp()   {}
func (Emit) isOp()  {}
func (Peek) isOp()  {}
func (Poke) isOp()  {}
func (If) isOp()    {}
func (While) isOp() {}

// Function is one compiled unit. Params are locals 0..NumParams-1;
// ReturnArity is 0 or 1.
type Function struct {
	Name        string
	NumParams   int
	NumLocals   int
	ReturnArity int
	Body        []Op
}

// Program is a set of functions with unique names.
type Program struct {
	Funcs []*Function
}

// Func returns the named function, or nil.
func (p *Program) Func(name string) *Function {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Validate checks structural invariants that the code generator relies on:
// local indices in range, known callees, argument counts matching the
// callee's declared arity, and value calls only on value-returning callees.
// Errors are tied to the offending function's name.
func (p *Program) Validate() error {
	seen := make(map[string]bool, len(p.Funcs))
	for _, f := range p.Funcs {
		if seen[f.Name] {
			return fmt.Errorf("function %s: duplicate definition", f.Name)
		}
		seen[f.Name] = true
		if f.NumParams > f.NumLocals {
			return fmt.Errorf("function %s: %d params exceed %d locals", f.Name, f.NumParams, f.NumLocals)
		}
		if f.ReturnArity < 0 || f.ReturnArity > 1 {
			return fmt.Errorf("function %s: return arity %d", f.Name, f.ReturnArity)
		}
	}
	for _, f := range p.Funcs {
		if err := p.validateOps(f, f.Body); err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return nil
}

func (p *Program) validateOps(f *Function, ops []Op) error {
	local := func(idx int, what string) error {
		if idx < 0 || idx >= f.NumLocals {
			return fmt.Errorf("%s local %d out of range (0..%d)", what, idx, f.NumLocals-1)
		}
		return nil
	}

	for _, op := range ops {
		switch o := op.(type) {
		case Const:
			if err := local(o.Dst, "const dst"); err != nil {
				return err
			}
		case Move:
			if err := local(o.Dst, "move dst"); err != nil {
				return err
			}
			if err := local(o.Src, "move src"); err != nil {
				return err
			}
		case Bin:
			if err := local(o.Dst, "dst"); err != nil {
				return err
			}
			if err := local(o.L, "operand"); err != nil {
				return err
			}
			if err := local(o.R, "operand"); err != nil {
				return err
			}
		case Call:
			callee := p.Func(o.Callee)
			if callee == nil {
				return fmt.Errorf("call to unknown function %s", o.Callee)
			}
			if len(o.Args) != callee.NumParams {
				return fmt.Errorf("call to %s: %d args, callee declares %d",
					o.Callee, len(o.Args), callee.NumParams)
			}
			if o.Dst != None {
				if callee.ReturnArity == 0 {
					return fmt.Errorf("call to %s: callee returns no value", o.Callee)
				}
				if err := local(o.Dst, "call dst"); err != nil {
					return err
				}
			}
			for _, a := range o.Args {
				if err := local(a, "call arg"); err != nil {
					return err
				}
			}
		case Ret:
			if o.Src == None {
				if f.ReturnArity != 0 {
					return fmt.Errorf("bare return in value-returning function")
				}
			} else {
				if f.ReturnArity == 0 {
					return fmt.Errorf("value return in void function")
				}
				if err := local(o.Src, "return src"); err != nil {
					return err
				}
			}
		case Emit:
			if err := local(o.Src, "emit src"); err != nil {
				return err
			}
		case Peek:
			if err := local(o.Dst, "peek dst"); err != nil {
				return err
			}
			if err := local(o.Addr, "peek addr"); err != nil {
				return err
			}
		case Poke:
			if err := local(o.Addr, "poke addr"); err != nil {
				return err
			}
			if err := local(o.Src, "poke src"); err != nil {
				return err
			}
		case If:
			if err := local(o.Cond, "if cond"); err != nil {
				return err
			}
			if err := p.validateOps(f, o.Then); err != nil {
				return err
			}
			if err := p.validateOps(f, o.Else); err != nil {
				return err
			}
		case While:
			if err := p.validateOps(f, o.Pre); err != nil {
				return err
			}
			if err := local(o.Cond, "while cond"); err != nil {
				return err
			}
			if err := p.validateOps(f, o.Body); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported operation %T", op)
		}
	}
	return nil
}
