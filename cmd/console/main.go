package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"wordvm/pkg/asm"
	"wordvm/pkg/trace"
	"wordvm/pkg/vm"
)

// settings is the optional YAML run configuration loaded with --settings.
type settings struct {
	MemoryWords int   `yaml:"memory_words"`
	MaxSteps    int   `yaml:"max_steps"`
	RandomSeed  int64 `yaml:"random_seed"`
}

func loadSettings(path string) (settings, error) {
	s := settings{
		MemoryWords: vm.DefaultMemWords,
		MaxSteps:    0,
	}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: console <program.asm> [--settings file.yaml] [--trace] [--dump-regs]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	filename := os.Args[1]
	settingsPath := ""
	showTrace := false
	dumpRegs := false
	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--settings":
			i++
			if i >= len(os.Args) {
				usage()
			}
			settingsPath = os.Args[i]
		case "--trace":
			showTrace = true
		case "--dump-regs":
			dumpRegs = true
		default:
			usage()
		}
	}

	cfg, err := loadSettings(settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	sourceBytes, err := os.ReadFile(filename)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	program, err := asm.Assemble(string(sourceBytes))
	if err != nil {
		log.Fatalf("Assembly failed: %v", err)
	}

	opts := []vm.Option{
		vm.MemSize(cfg.MemoryWords),
		vm.Output(os.Stdout),
	}
	if cfg.RandomSeed != 0 {
		opts = append(opts, vm.RNGSeed(uint32(cfg.RandomSeed)))
	}
	machine, err := vm.New(opts...)
	if err != nil {
		log.Fatalf("Failed to create machine: %v", err)
	}
	machine.Load(program)

	var runnerOpts []trace.Option
	if showTrace {
		runnerOpts = append(runnerOpts, trace.WithSnapshots())
	}
	runner := trace.New(machine, runnerOpts...)

	budget := cfg.MaxSteps
	if budget <= 0 {
		budget = 1 << 30
	}
	reason, runErr := runner.Run(context.Background(), budget)

	if showTrace {
		for _, s := range runner.Trace() {
			fmt.Fprintf(os.Stderr, "step %6d  pc=%4d", s.Step, s.PC)
			if len(s.Output) > 0 {
				fmt.Fprintf(os.Stderr, "  out=%q", s.Output)
			}
			fmt.Fprintln(os.Stderr)
		}
	}

	switch reason {
	case trace.StopHalted:
		// normal exit
	case trace.StopBudget:
		log.Fatalf("Step budget of %d exhausted at pc=%d", budget, machine.PC)
	case trace.StopFault:
		log.Fatalf("Machine fault after %d steps: %v", runner.Steps(), runErr)
	default:
		log.Fatalf("Stopped (%v): %v", reason, runErr)
	}

	if dumpRegs {
		for i := 0; i < vm.NumRegs; i++ {
			fmt.Fprintf(os.Stderr, "%-3s = %d\n", vm.RegName(i), machine.Regs[i])
		}
	}
}
