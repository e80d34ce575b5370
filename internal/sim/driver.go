package sim

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/loop"
	"github.com/dshills/simscript/internal/override"
)

// State is the run state of a Driver.
type State int32

const (
	Running State = iota
	Paused
	Ending
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ending:
		return "ending"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Driver steps a Machine on the loop goroutine.
type Driver struct {
	loop    *loop.Loop
	hub     *event.Hub
	machine Machine
	pads    []*override.Pad
	log     zerolog.Logger

	pace  time.Duration
	limit uint64

	steps   atomic.Uint64
	state   atomic.Int32
	resetRq atomic.Bool

	frame []byte
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithPace sleeps between steps. Zero runs as fast as possible.
func WithPace(d time.Duration) DriverOption {
	return func(dr *Driver) {
		dr.pace = d
	}
}

// WithStepLimit ends Run after n steps. Zero means no limit.
func WithStepLimit(n uint64) DriverOption {
	return func(dr *Driver) {
		dr.limit = n
	}
}

// WithDriverLogger sets the driver logger.
func WithDriverLogger(logger zerolog.Logger) DriverOption {
	return func(dr *Driver) {
		dr.log = logger
	}
}

// WithStartPaused starts the driver in the Paused state.
func WithStartPaused() DriverOption {
	return func(dr *Driver) {
		dr.state.Store(int32(Paused))
	}
}

// NewDriver creates a driver for machine. The pads are handed to the
// machine on every step.
func NewDriver(l *loop.Loop, hub *event.Hub, machine Machine, pads []*override.Pad, opts ...DriverOption) *Driver {
	d := &Driver{
		loop:    l,
		hub:     hub,
		machine: machine,
		pads:    pads,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run binds the loop to the calling goroutine and steps until the context
// ends, the loop closes, Stop is called or the step limit is reached.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.loop.Bind(); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	defer d.loop.Unbind()

	d.log.Info().
		Uint64("limit", d.limit).
		Dur("pace", d.pace).
		Msg("simulation started")
	defer func() {
		d.log.Info().Uint64("steps", d.steps.Load()).Msg("simulation stopped")
	}()

	var tick *time.Ticker
	if d.pace > 0 {
		tick = time.NewTicker(d.pace)
		defer tick.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.loop.Drain(); err != nil {
			return err
		}
		if d.resetRq.CompareAndSwap(true, false) {
			d.applyReset()
		}

		switch d.State() {
		case Ending:
			return nil
		case Paused:
			if err := d.loop.Wait(ctx); err != nil {
				if errors.Is(err, loop.ErrLoopClosed) {
					return nil
				}
				return err
			}
			continue
		}

		if d.limit > 0 && d.steps.Load() >= d.limit {
			return nil
		}
		if d.loop.IsClosed() {
			return nil
		}

		d.Step()

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick.C:
			}
		}
	}
}

// Step runs one machine step and emits its events. It must be called on
// the loop goroutine.
func (d *Driver) Step() {
	res := d.machine.Step(d.pads)

	for _, addr := range res.CodeHits {
		d.hub.Emit(event.CodeWatchHit{Address: addr})
	}
	for _, m := range res.MemoryHits {
		d.hub.Emit(event.MemoryWatchHit{IsWrite: m.IsWrite, Address: m.Address, Value: m.Value})
	}
	if res.Raised != 0 {
		d.hub.Emit(event.InterruptRaised{CauseMask: res.Raised})
	}
	if res.Cleared != 0 {
		d.hub.Emit(event.InterruptCleared{CauseMask: res.Cleared})
	}
	if res.Frame && d.hub.HasListeners(event.KindFrameProduced) {
		var w, h int
		w, h, d.frame = d.machine.Render(d.frame)
		d.hub.Emit(event.FrameProduced{Width: w, Height: h, Pixels: d.frame})
	}

	d.steps.Add(1)
	d.hub.Emit(event.StepAdvanced{})
}

// Steps returns the number of steps since start or the last reset.
func (d *Driver) Steps() uint64 {
	return d.steps.Load()
}

// State returns the current run state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Pause stops stepping after the current step. Safe from any goroutine.
func (d *Driver) Pause() {
	if d.state.CompareAndSwap(int32(Running), int32(Paused)) {
		d.log.Debug().Uint64("step", d.steps.Load()).Msg("paused")
	}
}

// Resume continues a paused driver. Safe from any goroutine.
func (d *Driver) Resume() {
	if d.state.CompareAndSwap(int32(Paused), int32(Running)) {
		d.log.Debug().Uint64("step", d.steps.Load()).Msg("resumed")
		d.wake()
	}
}

// Reset requests a machine reset before the next step. Safe from any
// goroutine.
func (d *Driver) Reset() {
	d.resetRq.Store(true)
	d.wake()
}

// Stop ends Run before the next step. Safe from any goroutine.
func (d *Driver) Stop() {
	d.state.Store(int32(Ending))
	d.wake()
}

func (d *Driver) applyReset() {
	d.machine.Reset()
	d.steps.Store(0)
	d.log.Info().Msg("machine reset")
}

// wake unblocks a paused Run. A full queue already wakes it.
func (d *Driver) wake() {
	if d.loop.IsOwner() {
		return
	}
	if err := d.loop.Submit(func() {}); err != nil && !errors.Is(err, loop.ErrQueueFull) {
		d.log.Debug().Err(err).Msg("wake failed")
	}
}
