package main

import (
	"fmt"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"wordvm/pkg/asm"
	"wordvm/pkg/vm"
)

const (
	cellWidth     = 8
	cellHeight    = 14
	stepsPerFrame = 10000
)

// palette is the 16-color set used by the TEXT40 display.
var palette = [16]color.RGBA{
	{0x00, 0x00, 0x00, 0xFF}, // black
	{0x1D, 0x2B, 0x53, 0xFF}, // dark blue
	{0x7E, 0x25, 0x53, 0xFF}, // dark purple
	{0x00, 0x87, 0x51, 0xFF}, // dark green
	{0xAB, 0x52, 0x36, 0xFF}, // brown
	{0x5F, 0x57, 0x4F, 0xFF}, // dark grey
	{0xC2, 0xC3, 0xC7, 0xFF}, // light grey
	{0xFF, 0xF1, 0xE8, 0xFF}, // white
	{0xFF, 0x00, 0x4D, 0xFF}, // red
	{0xFF, 0xA3, 0x00, 0xFF}, // orange
	{0xFF, 0xEC, 0x27, 0xFF}, // yellow
	{0x00, 0xE4, 0x36, 0xFF}, // green
	{0x29, 0xAD, 0xFF, 0xFF}, // blue
	{0x83, 0x76, 0x9C, 0xFF}, // lavender
	{0xFF, 0x77, 0xA8, 0xFF}, // pink
	{0xFF, 0xCC, 0xAA, 0xFF}, // peach
}

// decodeCell splits a VRAM word into its character and color fields:
// bits 0..7 character, 8..11 foreground index, 12..15 background index.
func decodeCell(w vm.Word) (ch byte, fg, bg int) {
	return byte(w & 0xFF), int(w >> 8 & 0xF), int(w >> 12 & 0xF)
}

type Game struct {
	machine *vm.VM
	face    font.Face
	front   [vm.Text40Words]vm.Word // VRAM copy taken at the last flush
	flushed bool
}

func (g *Game) Update() error {
	for i := 0; i < stepsPerFrame; i++ {
		if g.machine.Halted {
			break
		}
		if err := g.machine.Step(); err != nil {
			return err
		}
		if g.machine.FlushPending {
			break
		}
	}
	if g.machine.FlushPending {
		copy(g.front[:], g.machine.Mem[vm.Text40BaseWord:vm.Text40BaseWord+vm.Text40Words])
		g.machine.FlushPending = false
		g.flushed = true
	}
	return nil
}

func (g *Game) drawText40(screen *ebiten.Image) {
	for row := 0; row < vm.Text40Rows; row++ {
		for col := 0; col < vm.Text40Cols; col++ {
			ch, fg, bg := decodeCell(g.front[row*vm.Text40Cols+col])
			px := col * cellWidth
			py := row * cellHeight
			if bg != 0 {
				vector.DrawFilledRect(screen,
					float32(px), float32(py), cellWidth, cellHeight,
					palette[bg], false)
			}
			if ch < 32 || ch > 126 {
				continue
			}
			text.Draw(screen, string(rune(ch)), g.face,
				px, py+cellHeight-3, palette[fg])
		}
	}
}

// drawTTY renders the raw output stream when the program never switched
// the display into TEXT40 mode.
func (g *Game) drawTTY(screen *ebiten.Image) {
	lines := strings.Split(string(g.machine.OutputBytes()), "\n")
	if max := vm.Text40Rows - 1; len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	ebitenutil.DebugPrint(screen, strings.Join(lines, "\n"))
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.machine.DispMode == vm.DispModeText40 {
		g.drawText40(screen)
		return
	}
	g.drawTTY(screen)
	if g.machine.Halted {
		ebitenutil.DebugPrintAt(screen, "[halted]", 0, (vm.Text40Rows-1)*cellHeight)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return vm.Text40Cols * cellWidth, vm.Text40Rows * cellHeight
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: desktop <program.asm>")
		os.Exit(2)
	}
	sourceBytes, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}
	program, err := asm.Assemble(string(sourceBytes))
	if err != nil {
		log.Fatalf("Assembly failed: %v", err)
	}

	machine, err := vm.New()
	if err != nil {
		log.Fatalf("Failed to create machine: %v", err)
	}
	machine.Load(program)

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(vm.Text40Cols*cellWidth*2, vm.Text40Rows*cellHeight*2)
	ebiten.SetWindowTitle("wordvm")

	game := &Game{machine: machine, face: basicfont.Face7x13}
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
