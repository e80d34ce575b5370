package sim

import (
	"slices"

	"github.com/dshills/simscript/internal/override"
)

// CounterConfig shapes a CounterMachine.
type CounterConfig struct {
	// CodeBase is the address of the first instruction. The program counter
	// walks CodeSize bytes from there in 4 byte steps and wraps.
	CodeBase uint32
	CodeSize uint32

	// DataBase is the start of the 16 word scratch area written every step.
	DataBase uint32

	CodeWatches   []uint32
	MemoryWatches []uint32

	FrameWidth  int
	FrameHeight int
	FrameEvery  int

	InterruptEvery int

	// PollsPerStep is how many times each pad is polled per step.
	PollsPerStep int
}

// DefaultCounterConfig returns the configuration used when none is given.
func DefaultCounterConfig() CounterConfig {
	return CounterConfig{
		CodeBase:       0x80000000,
		CodeSize:       0x100,
		DataBase:       0x80100000,
		FrameWidth:     64,
		FrameHeight:    48,
		FrameEvery:     4,
		InterruptEvery: 16,
		PollsPerStep:   2,
	}
}

// CounterMachine walks a program counter through a small address space and
// folds pad input into an accumulator it stores to memory every step.
type CounterMachine struct {
	cfg CounterConfig

	step        uint64
	pc          uint32
	acc         uint64
	pending     uint32
	lastInput   []float64
	frameShade  byte
	frameNumber uint64
}

// NewCounterMachine creates a machine; zero fields of cfg take defaults.
func NewCounterMachine(cfg CounterConfig) *CounterMachine {
	def := DefaultCounterConfig()
	if cfg.CodeSize == 0 {
		cfg.CodeBase, cfg.CodeSize = def.CodeBase, def.CodeSize
	}
	if cfg.DataBase == 0 {
		cfg.DataBase = def.DataBase
	}
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		cfg.FrameWidth, cfg.FrameHeight = def.FrameWidth, def.FrameHeight
	}
	if cfg.PollsPerStep <= 0 {
		cfg.PollsPerStep = def.PollsPerStep
	}
	cfg.CodeWatches = slices.Clone(cfg.CodeWatches)
	cfg.MemoryWatches = slices.Clone(cfg.MemoryWatches)

	m := &CounterMachine{cfg: cfg}
	m.Reset()
	return m
}

// Reset implements Machine.
func (m *CounterMachine) Reset() {
	m.step = 0
	m.pc = m.cfg.CodeBase
	m.acc = 0
	m.pending = 0
	m.lastInput = nil
	m.frameShade = 0
	m.frameNumber = 0
}

// PC returns the address of the next instruction.
func (m *CounterMachine) PC() uint32 {
	return m.pc
}

// Accumulator returns the folded input value.
func (m *CounterMachine) Accumulator() uint64 {
	return m.acc
}

// Step implements Machine.
func (m *CounterMachine) Step(pads []*override.Pad) StepResult {
	var res StepResult
	m.step++

	if slices.Contains(m.cfg.CodeWatches, m.pc) {
		res.CodeHits = append(res.CodeHits, m.pc)
	}

	var input float64
	for i := 0; i < m.cfg.PollsPerStep; i++ {
		input = 0
		for _, p := range pads {
			p.Poll()
			for _, key := range override.Catalogue(p.ID().Family) {
				input += p.Value(key)
			}
		}
	}
	m.acc = m.acc*31 + uint64(int64(input*1000))
	m.lastInput = m.lastInput[:0]
	for _, p := range pads {
		for _, key := range override.Catalogue(p.ID().Family) {
			m.lastInput = append(m.lastInput, p.Value(key))
		}
	}

	addr := m.cfg.DataBase + uint32(m.step%16)*4
	if slices.Contains(m.cfg.MemoryWatches, addr) {
		res.MemoryHits = append(res.MemoryHits, MemoryAccess{IsWrite: true, Address: addr, Value: m.acc})
	}
	readAddr := m.cfg.DataBase + uint32((m.step+8)%16)*4
	if slices.Contains(m.cfg.MemoryWatches, readAddr) {
		res.MemoryHits = append(res.MemoryHits, MemoryAccess{Address: readAddr, Value: m.acc >> 1})
	}

	if m.pending != 0 {
		res.Cleared = m.pending
		m.pending = 0
	}
	if m.cfg.InterruptEvery > 0 && m.step%uint64(m.cfg.InterruptEvery) == 0 {
		m.pending = 1 << ((m.step / uint64(m.cfg.InterruptEvery)) % 4)
		res.Raised = m.pending
	}

	if m.cfg.FrameEvery > 0 && m.step%uint64(m.cfg.FrameEvery) == 0 {
		m.frameNumber++
		m.frameShade = byte(m.acc)
		res.Frame = true
	}

	m.pc += 4
	if m.pc >= m.cfg.CodeBase+m.cfg.CodeSize {
		m.pc = m.cfg.CodeBase
	}
	return res
}

// Render implements Machine. The frame is a gradient tinted by the last
// input so that scripted input is visible in the pixels.
func (m *CounterMachine) Render(buf []byte) (int, int, []byte) {
	w, h := m.cfg.FrameWidth, m.cfg.FrameHeight
	n := w * h * 4
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]

	var tint byte
	for i, v := range m.lastInput {
		if v != 0 {
			tint ^= byte(i*37) + byte(int(v*100))
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			buf[i] = byte(x * 255 / max(w-1, 1))
			buf[i+1] = byte(y * 255 / max(h-1, 1))
			buf[i+2] = m.frameShade ^ tint
			buf[i+3] = 0xff
		}
	}
	return w, h, buf
}
