package automation

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/simscript/internal/event"
)

func TestBridgeAwaitResumesOnce(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)
	var got []event.Event

	w, err := b.Await(event.KindCodeWatchHit, func(ev event.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, event.KindCodeWatchHit, w.Kind())
	assert.False(t, w.Done())
	assert.True(t, hub.HasListeners(event.KindCodeWatchHit))

	hub.Emit(event.CodeWatchHit{Address: 0x8000})
	hub.Emit(event.CodeWatchHit{Address: 0x8004})

	require.Len(t, got, 1)
	assert.Equal(t, event.CodeWatchHit{Address: 0x8000}, got[0])
	assert.True(t, w.Done())
	assert.False(t, w.Cancel())
	assert.False(t, hub.HasListeners(event.KindCodeWatchHit), "listener released with the last wait")
}

func TestBridgeAwaitUnknownKind(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)

	_, err := b.Await(event.Kind(250), func(event.Event) error { return nil })
	require.ErrorIs(t, err, event.ErrUnknownKind)

	_, err = b.Await(event.KindStepAdvanced, nil)
	require.ErrorIs(t, err, event.ErrInvalidListener)

	for _, k := range event.Kinds() {
		assert.False(t, hub.HasListeners(k))
	}
}

func TestBridgeReawaitWaitsForNextEmission(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)
	var steps int

	var loop Resume
	loop = func(event.Event) error {
		steps++
		_, err := b.Await(event.KindStepAdvanced, loop)
		return err
	}
	_, err := b.Await(event.KindStepAdvanced, loop)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		hub.Emit(event.StepAdvanced{})
		assert.Equal(t, i, steps)
	}
	assert.Equal(t, 1, b.Parked(event.KindStepAdvanced))
}

func TestBridgeAwaitFromListenerOfSameKind(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)
	var resumed int

	parked := false
	_, err := hub.Register(event.KindStepAdvanced, func(event.Event) error {
		if parked {
			return nil
		}
		parked = true
		_, err := b.Await(event.KindStepAdvanced, func(event.Event) error {
			resumed++
			return nil
		})
		return err
	})
	require.NoError(t, err)

	// A self-renewing wait keeps the bridge listener in the emission
	// snapshot, after the listener above.
	var keep Resume
	keep = func(event.Event) error {
		_, err := b.Await(event.KindStepAdvanced, keep)
		return err
	}
	_, err = b.Await(event.KindStepAdvanced, keep)
	require.NoError(t, err)

	hub.Emit(event.StepAdvanced{})
	assert.Zero(t, resumed, "wait parked during an emission is not resumed by it")

	hub.Emit(event.StepAdvanced{})
	assert.Equal(t, 1, resumed)
}

func TestBridgeNestedEmissionCountsAsNext(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)
	var order []string

	_, err := b.Await(event.KindInterruptRaised, func(ev event.Event) error {
		order = append(order, "first")
		_, err := b.Await(event.KindInterruptRaised, func(event.Event) error {
			order = append(order, "second")
			return nil
		})
		if err != nil {
			return err
		}
		hub.Emit(event.InterruptRaised{CauseMask: 2})
		return nil
	})
	require.NoError(t, err)

	hub.Emit(event.InterruptRaised{CauseMask: 1})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBridgeFailuresDoNotBlockOtherWaits(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub, WithBridgeLogger(zerolog.Nop()))
	var reached []string

	_, err := b.Await(event.KindFrameProduced, func(event.Event) error {
		reached = append(reached, "error")
		return errors.New("script error")
	})
	require.NoError(t, err)
	_, err = b.Await(event.KindFrameProduced, func(event.Event) error {
		reached = append(reached, "panic")
		panic("bad")
	})
	require.NoError(t, err)
	_, err = b.Await(event.KindFrameProduced, func(event.Event) error {
		reached = append(reached, "ok")
		return nil
	})
	require.NoError(t, err)

	hub.Emit(event.FrameProduced{Width: 1, Height: 1, Pixels: []byte{0, 0, 0, 255}})
	assert.Equal(t, []string{"error", "panic", "ok"}, reached)
	assert.Zero(t, b.Parked(event.KindFrameProduced))
}

func TestWaitCancel(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)
	var resumed bool

	w, err := b.Await(event.KindMemoryWatchHit, func(event.Event) error {
		resumed = true
		return nil
	})
	require.NoError(t, err)

	assert.True(t, w.Cancel())
	assert.True(t, w.Done())
	assert.False(t, w.Cancel())
	assert.False(t, hub.HasListeners(event.KindMemoryWatchHit))

	hub.Emit(event.MemoryWatchHit{Address: 4})
	assert.False(t, resumed)
}

func TestWaitCancelledByEarlierResumption(t *testing.T) {
	hub := event.NewHub()
	b := NewBridge(hub)
	var second *Wait
	var secondResumed bool

	_, err := b.Await(event.KindStepAdvanced, func(event.Event) error {
		assert.True(t, second.Cancel())
		return nil
	})
	require.NoError(t, err)
	second, err = b.Await(event.KindStepAdvanced, func(event.Event) error {
		secondResumed = true
		return nil
	})
	require.NoError(t, err)

	hub.Emit(event.StepAdvanced{})
	assert.False(t, secondResumed)
	assert.False(t, hub.HasListeners(event.KindStepAdvanced))
}

type waitCounter map[event.Kind]int

func (c waitCounter) WaitsChanged(kind event.Kind, n int) {
	c[kind] = n
}

func TestBridgeObserver(t *testing.T) {
	hub := event.NewHub()
	obs := waitCounter{}
	b := NewBridge(hub, WithBridgeObserver(obs))

	w1, err := b.Await(event.KindStepAdvanced, func(event.Event) error { return nil })
	require.NoError(t, err)
	_, err = b.Await(event.KindStepAdvanced, func(event.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, obs[event.KindStepAdvanced])

	w1.Cancel()
	assert.Equal(t, 1, obs[event.KindStepAdvanced])

	hub.Emit(event.StepAdvanced{})
	assert.Equal(t, 0, obs[event.KindStepAdvanced])
}
