package main

import (
	"testing"

	"wordvm/pkg/vm"
)

func TestDecodeCell(t *testing.T) {
	tests := []struct {
		name   string
		word   vm.Word
		ch     byte
		fg, bg int
	}{
		{"blank", 0, 0, 0, 0},
		{"plain char", 'A', 'A', 0, 0},
		{"white on black", 'A' | 7<<8, 'A', 7, 0},
		{"red on blue", 'Z' | 8<<8 | 12<<12, 'Z', 8, 12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ch, fg, bg := decodeCell(tc.word)
			if ch != tc.ch || fg != tc.fg || bg != tc.bg {
				t.Errorf("decodeCell(%#x) = %q,%d,%d; expected %q,%d,%d",
					tc.word, ch, fg, bg, tc.ch, tc.fg, tc.bg)
			}
		})
	}
}

func TestLayoutMatchesText40Grid(t *testing.T) {
	g := &Game{}
	w, h := g.Layout(1024, 768)
	if w != vm.Text40Cols*cellWidth || h != vm.Text40Rows*cellHeight {
		t.Errorf("Layout = %dx%d; expected %dx%d", w, h,
			vm.Text40Cols*cellWidth, vm.Text40Rows*cellHeight)
	}
}

// A flush request copies VRAM into the front buffer and clears the flag.
func TestUpdateHonorsFlush(t *testing.T) {
	machine, err := vm.New()
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	machine.Load(&vm.Program{Code: []vm.Instruction{
		{Op: vm.OpLI, A: 1, B: 'A' | 7<<8},
		{Op: vm.OpLI, A: 2, B: vm.Text40BaseWord},
		{Op: vm.OpSTORE, A: 1, B: 2, C: 0},
		{Op: vm.OpLI, A: 2, B: vm.HdrDispFlush},
		{Op: vm.OpSTORE, A: 0, B: 2, C: 0},
		{Op: vm.OpHALT},
	}})
	g := &Game{machine: machine}
	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !g.flushed {
		t.Fatal("expected a flush to have been taken")
	}
	if machine.FlushPending {
		t.Error("expected FlushPending to be cleared")
	}
	ch, fg, _ := decodeCell(g.front[0])
	if ch != 'A' || fg != 7 {
		t.Errorf("front[0]: expected 'A' fg=7, got %q fg=%d", ch, fg)
	}
}
