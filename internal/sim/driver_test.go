package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/loop"
	"github.com/dshills/simscript/internal/override"
)

func countAll(t *testing.T, hub *event.Hub) map[event.Kind]int {
	t.Helper()
	counts := make(map[event.Kind]int)
	for _, k := range event.Kinds() {
		kind := k
		_, err := hub.Register(kind, func(event.Event) error {
			counts[kind]++
			return nil
		})
		require.NoError(t, err)
	}
	return counts
}

func TestDriverRunsToLimit(t *testing.T) {
	l := loop.New()
	hub := event.NewHub(event.WithOwner(l))
	m := NewCounterMachine(CounterConfig{
		CodeWatches:    []uint32{0x80000008},
		MemoryWatches:  []uint32{0x80100004},
		FrameEvery:     4,
		InterruptEvery: 5,
	})
	d := NewDriver(l, hub, m, nil, WithStepLimit(10))
	counts := countAll(t, hub)

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, uint64(10), d.Steps())
	assert.Equal(t, 10, counts[event.KindStepAdvanced])
	assert.Equal(t, 2, counts[event.KindFrameProduced])
	assert.Equal(t, 1, counts[event.KindCodeWatchHit])
	assert.Equal(t, 2, counts[event.KindMemoryWatchHit])
	assert.Equal(t, 2, counts[event.KindInterruptRaised])
	assert.Equal(t, 1, counts[event.KindInterruptCleared])
	assert.False(t, l.IsOwner(), "Run unbinds on return")
}

type renderCounter struct {
	*CounterMachine
	renders int
}

func (r *renderCounter) Render(buf []byte) (int, int, []byte) {
	r.renders++
	return r.CounterMachine.Render(buf)
}

func TestDriverSkipsFrameWithoutListeners(t *testing.T) {
	l := loop.New()
	hub := event.NewHub(event.WithOwner(l))
	m := &renderCounter{CounterMachine: NewCounterMachine(CounterConfig{FrameEvery: 1})}
	d := NewDriver(l, hub, m, nil, WithStepLimit(3))

	require.NoError(t, d.Run(context.Background()))
	assert.Zero(t, m.renders)

	var got event.FrameProduced
	_, err := event.On(hub, func(f event.FrameProduced) error {
		got = f
		got.Pixels = append([]byte(nil), f.Pixels...)
		return nil
	})
	require.NoError(t, err)

	d = NewDriver(l, hub, m, nil, WithStepLimit(2))
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 2, m.renders)
	assert.Equal(t, 64, got.Width)
	assert.Equal(t, 48, got.Height)
	assert.Len(t, got.Pixels, 64*48*4)
	assert.Equal(t, byte(0xff), got.Pixels[3])
}

func TestDriverPauseResumeStop(t *testing.T) {
	l := loop.New()
	hub := event.NewHub(event.WithOwner(l))
	d := NewDriver(l, hub, NewCounterMachine(CounterConfig{}), nil, WithStartPaused())
	stepped := make(chan uint64, 16)

	_, err := hub.Register(event.KindStepAdvanced, func(event.Event) error {
		if d.Steps() == 3 {
			d.Pause()
		}
		select {
		case stepped <- d.Steps():
		default:
		}
		return nil
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- d.Run(context.Background())
	}()

	assert.Equal(t, Paused, d.State())
	d.Resume()

	for n := range stepped {
		if n == 3 {
			break
		}
	}

	var steps uint64
	require.NoError(t, l.Do(context.Background(), func() error {
		steps = d.Steps()
		return nil
	}))
	assert.Equal(t, uint64(3), steps)
	assert.Equal(t, Paused, d.State())

	d.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriverReset(t *testing.T) {
	l := loop.New()
	hub := event.NewHub(event.WithOwner(l))
	m := NewCounterMachine(CounterConfig{})
	d := NewDriver(l, hub, m, nil, WithStepLimit(8))
	counts := countAll(t, hub)

	reset := false
	_, err := hub.Register(event.KindStepAdvanced, func(event.Event) error {
		if d.Steps() == 5 && !reset {
			reset = true
			d.Reset()
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 13, counts[event.KindStepAdvanced])
	assert.Equal(t, uint64(8), d.Steps())
	assert.Equal(t, uint32(0x80000000+8*4), m.PC())
}

func TestDriverHonoursContext(t *testing.T) {
	l := loop.New()
	hub := event.NewHub(event.WithOwner(l))
	d := NewDriver(l, hub, NewCounterMachine(CounterConfig{}), nil, WithPace(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := hub.Register(event.KindStepAdvanced, func(event.Event) error {
		if d.Steps() == 2 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Run(ctx), context.Canceled)
}

func TestDriverAppliesStepScopedOverrides(t *testing.T) {
	l := loop.New()
	hub := event.NewHub(event.WithOwner(l))
	registry := override.NewRegistry()
	cache := override.NewCache(override.FamilyGC, override.WithOwner(l))
	binding, err := override.Bind(hub, registry, cache, 1)
	require.NoError(t, err)
	defer binding.Unbind()

	keyA := override.ControlKey{Group: override.GroupButtons, Control: "A"}
	pad := override.NewPad(override.ControllerID{Family: override.FamilyGC}, nil, registry)
	d := NewDriver(l, hub, NewCounterMachine(CounterConfig{PollsPerStep: 3}), []*override.Pad{pad}, WithStepLimit(2))

	var seen []float64
	var states []override.EntryState
	_, err = hub.Register(event.KindStepAdvanced, func(event.Event) error {
		seen = append(seen, cache.Get(0, keyA))
		states = append(states, cache.State(0, keyA))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, l.Bind())
	require.NoError(t, cache.Set(0, keyA, 1, override.OnNextStepBoundary))
	l.Unbind()

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []float64{1, 0}, seen)
	assert.Equal(t, []override.EntryState{override.Absent, override.Absent}, states)
}

func TestCounterMachineDeterministic(t *testing.T) {
	registry := override.NewRegistry()
	raw := override.RawReaderFunc(func(_ override.ControllerID, key override.ControlKey) float64 {
		if key.Control == "A" {
			return 1
		}
		return 0
	})
	run := func() (uint64, []byte) {
		m := NewCounterMachine(CounterConfig{})
		pads := []*override.Pad{override.NewPad(override.ControllerID{Family: override.FamilyGBA}, raw, registry)}
		for i := 0; i < 20; i++ {
			m.Step(pads)
		}
		_, _, px := m.Render(nil)
		return m.Accumulator(), px
	}

	acc1, px1 := run()
	acc2, px2 := run()
	assert.Equal(t, acc1, acc2)
	assert.Equal(t, px1, px2)
	assert.NotZero(t, acc1)
}
