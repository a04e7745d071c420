package vm

// Memory-mapped header, words 0..31. Word 0 is the output port defined by
// the instruction set; the rest of the header and the TEXT40 video RAM
// follow the machine's device map. VRAM is ordinary memory that a front
// end reads; only the header words below are intercepted.
const (
	HdrTTYOut    = 0 // STORE: emit low byte; LOAD: 0
	HdrTTYStatus = 1 // LOAD: 1 (always ready)
	HdrRNG       = 4 // LOAD: next pseudo-random value
	HdrRNGSeed   = 5 // STORE: set low 16 bits of RNG state
	HdrDispMode  = 6 // 0=off, 1=tty, 2=text40
	HdrDispStat  = 7 // LOAD: DispReady|DispFlushDone
	HdrDispCtl   = 8
	HdrDispFlush = 9 // STORE: request a frame flush

	Text40BaseWord = 32
	Text40Cols     = 40
	Text40Rows     = 25
	Text40Words    = Text40Cols * Text40Rows

	DispModeOff    = 0
	DispModeTTY    = 1
	DispModeText40 = 2

	DispReady     = 1 << 0
	DispFlushDone = 1 << 1
)

// loadWord reads memory with header interception. A LOAD from the output
// port (address 0) deterministically yields 0.
func (v *VM) loadWord(addr int) (Word, bool) {
	switch addr {
	case HdrTTYOut:
		return 0, true
	case HdrTTYStatus:
		return 1, true
	case HdrRNG:
		v.rngState = v.rngState*1664525 + 1013904223
		return Word(v.rngState >> 16 & 0xFFFF), true
	case HdrRNGSeed:
		return Word(v.rngState & 0xFFFF), true
	case HdrDispMode:
		return v.DispMode, true
	case HdrDispStat:
		return DispReady | DispFlushDone, true
	case HdrDispCtl:
		return v.DispCtl, true
	}
	if addr < 0 || addr >= len(v.Mem) {
		return 0, false
	}
	return v.Mem[addr], true
}

// storeWord writes memory with header interception. A STORE whose effective
// address is exactly 0 emits the low byte of val instead of persisting it.
func (v *VM) storeWord(addr int, val Word) bool {
	switch addr {
	case HdrTTYOut:
		b := byte(val & 0xFF)
		v.output = append(v.output, b)
		if v.sink != nil {
			v.sink.Write([]byte{b})
		}
		return true
	case HdrTTYStatus:
		return true // read-only, write ignored
	case HdrRNGSeed:
		v.rngState = v.rngState&0xFFFF0000 | uint32(val)&0xFFFF
		return true
	case HdrDispMode:
		v.DispMode = val
		return true
	case HdrDispCtl:
		v.DispCtl = val
		return true
	case HdrDispFlush:
		v.FlushPending = true
		return true
	}
	if addr < 0 || addr >= len(v.Mem) {
		return false
	}
	v.Mem[addr] = val
	return true
}

// Text40Cell returns the VRAM word for the cell at (col, row).
func (v *VM) Text40Cell(col, row int) Word {
	return v.Mem[Text40BaseWord+row*Text40Cols+col]
}
