// Package trace runs a VM in bounded, resumable slices and optionally
// records a snapshot of machine state after every step. It is the layer a
// debugger or test harness sits on: the wrapped machine is stepped, never
// copied, and a Runner can be resumed with further Run calls until the
// machine halts or faults.
package trace

import (
	"context"

	"github.com/pkg/errors"

	"wordvm/pkg/vm"
)

// ErrTraceOverflow is returned by Run when snapshot recording hits the
// configured limit and the truncate policy is not enabled.
var ErrTraceOverflow = errors.New("trace snapshot limit reached")

// StopReason reports why a Run call returned.
type StopReason int

// StopBudget means the step budget ran out with the machine still runnable.
// StopHalted and StopFault report the machine's own terminal states;
// StopCanceled the context ending; StopOverflow a full snapshot buffer.
const (
	StopBudget StopReason = iota
	StopHalted
	StopFault
	StopCanceled
	StopOverflow
)

func (s StopReason) String() string {
	switch s {
	case StopBudget:
		return "budget"
	case StopHalted:
		return "halted"
	case StopFault:
		return "fault"
	case StopCanceled:
		return "canceled"
	case StopOverflow:
		return "overflow"
	}
	return "unknown"
}

// Snapshot captures machine state immediately after one instruction
// retired. Output holds only the bytes emitted since the previous
// snapshot, so concatenating every snapshot's Output reproduces the full
// output stream.
type Snapshot struct {
	Step   int
	PC     int // instruction index after the step, matching vm.VM.PC
	Regs   [vm.NumRegs]vm.Word
	Output []byte
}

// Runner drives a VM step by step.
type Runner struct {
	v          *vm.VM
	steps      int
	fault      error
	record     bool
	maxSnaps   int
	dropOldest bool
	snaps      []Snapshot
	outMark    int
}

// Option configures a Runner.
type Option func(*Runner)

// WithSnapshots records a Snapshot after every retired instruction.
func WithSnapshots() Option {
	return func(r *Runner) { r.record = true }
}

// MaxSnapshots bounds the recorded trace at n entries. Once full, Run
// stops with ErrTraceOverflow unless DropOldest is also set.
func MaxSnapshots(n int) Option {
	return func(r *Runner) { r.maxSnaps = n }
}

// DropOldest switches the full-trace policy from stopping to discarding
// the oldest snapshot, keeping the trace a sliding window.
func DropOldest() Option {
	return func(r *Runner) { r.dropOldest = true }
}

// New wraps v. The Runner does not reset or copy the machine; stepping
// mutates v directly.
func New(v *vm.VM, opts ...Option) *Runner {
	r := &Runner{v: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes up to n further instructions. It returns the reason it
// stopped and, for faults and overflow, the associated error. Calling Run
// again resumes from the current machine state; once the machine has
// halted or faulted every further call reports the same outcome without
// stepping.
func (r *Runner) Run(ctx context.Context, n int) (StopReason, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; i < n; i++ {
		if r.fault != nil {
			return StopFault, r.fault
		}
		if r.v.Halted {
			return StopHalted, nil
		}
		select {
		case <-ctx.Done():
			return StopCanceled, ctx.Err()
		default:
		}
		if err := r.v.Step(); err != nil {
			r.steps++
			r.fault = err
			if r.record {
				r.snapshot()
			}
			return StopFault, err
		}
		r.steps++
		if r.record {
			if !r.snapshot() {
				return StopOverflow, ErrTraceOverflow
			}
		}
	}
	if r.v.Halted {
		return StopHalted, nil
	}
	return StopBudget, nil
}

// snapshot records current machine state. It reports false when the trace
// is full and the truncate policy is off.
func (r *Runner) snapshot() bool {
	if r.maxSnaps > 0 && len(r.snaps) >= r.maxSnaps {
		if !r.dropOldest {
			return false
		}
		copy(r.snaps, r.snaps[1:])
		r.snaps = r.snaps[:len(r.snaps)-1]
	}
	out := r.v.OutputBytes()
	var delta []byte
	if len(out) > r.outMark {
		delta = append(delta, out[r.outMark:]...)
		r.outMark = len(out)
	}
	r.snaps = append(r.snaps, Snapshot{
		Step:   r.steps,
		PC:     r.v.PC,
		Regs:   r.v.Regs,
		Output: delta,
	})
	return true
}

// Trace returns the recorded snapshots, oldest first. The slice is the
// Runner's backing store; callers must not modify it while still stepping.
func (r *Runner) Trace() []Snapshot {
	return r.snaps
}

// Steps returns the number of instructions retired through this Runner.
func (r *Runner) Steps() int {
	return r.steps
}

// Fault returns the fault that stopped the machine, or nil.
func (r *Runner) Fault() error {
	return r.fault
}

// VM returns the wrapped machine.
func (r *Runner) VM() *vm.VM {
	return r.v
}
