package sim

import "github.com/dshills/simscript/internal/override"

// StepResult is what one machine step produced.
type StepResult struct {
	CodeHits   []uint32
	MemoryHits []MemoryAccess

	// Raised and Cleared hold interrupt cause bits that changed this step.
	Raised  uint32
	Cleared uint32

	// Frame is true when a frame finished this step.
	Frame bool
}

// MemoryAccess is one access to a watched address.
type MemoryAccess struct {
	IsWrite bool
	Address uint32
	Value   uint64
}

// Machine is the simulated system. Every method is called on the loop
// goroutine.
type Machine interface {
	// Step advances one step. The machine polls the pads as often as it
	// needs to.
	Step(pads []*override.Pad) StepResult

	// Render writes the last finished frame into buf, growing it when
	// needed, and returns the frame size and pixels.
	Render(buf []byte) (width, height int, pixels []byte)

	// Reset returns the machine to its power-on state.
	Reset()
}
