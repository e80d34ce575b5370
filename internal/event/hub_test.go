package event

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/simscript/internal/loop"
)

type goroutineOwner struct {
	id uint64
}

func (o goroutineOwner) IsOwner() bool {
	return loop.GoroutineID() == o.id
}

type countingObserver struct {
	mu        sync.Mutex
	emitted   map[Kind]int
	failed    map[Kind]int
	timed     map[Kind]int
	listeners map[Kind]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		emitted:   make(map[Kind]int),
		failed:    make(map[Kind]int),
		timed:     make(map[Kind]int),
		listeners: make(map[Kind]int),
	}
}

func (o *countingObserver) EventEmitted(kind Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitted[kind]++
}

func (o *countingObserver) ListenerFailed(kind Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[kind]++
}

func (o *countingObserver) ListenerDispatched(kind Kind, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if took >= 0 {
		o.timed[kind]++
	}
}

func (o *countingObserver) ListenersChanged(kind Kind, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners[kind] = n
}

func TestHubRegisterValidation(t *testing.T) {
	h := NewHub()

	_, err := h.Register(KindStepAdvanced, nil)
	assert.ErrorIs(t, err, ErrInvalidListener)

	_, err = h.Register(Kind(200), func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.ErrorIs(t, h.RegisterOnce(KindStepAdvanced, nil), ErrInvalidListener)
	assert.ErrorIs(t, h.RegisterOnce(Kind(200), func(Event) error { return nil }), ErrUnknownKind)

	for _, k := range Kinds() {
		assert.False(t, h.HasListeners(k), k.String())
	}
}

func TestHubHandlesAreMonotonicPerKind(t *testing.T) {
	h := NewHub()
	noop := func(Event) error { return nil }

	a, err := h.Register(KindCodeWatchHit, noop)
	require.NoError(t, err)
	b, err := h.Register(KindCodeWatchHit, noop)
	require.NoError(t, err)
	other, err := h.Register(KindFrameProduced, noop)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, a.Less(b))
	assert.Equal(t, KindFrameProduced, other.Kind)

	require.True(t, h.Unregister(b))
	c, err := h.Register(KindCodeWatchHit, noop)
	require.NoError(t, err)
	assert.True(t, b.Less(c), "handles are not reused")
}

func TestHubUnregisterUnknownHandle(t *testing.T) {
	h := NewHub()

	assert.False(t, h.Unregister(ListenerID{Kind: KindStepAdvanced, Value: 42}))
	assert.False(t, h.Unregister(ListenerID{Kind: Kind(99), Value: 1}))

	id, err := h.Register(KindStepAdvanced, func(Event) error { return nil })
	require.NoError(t, err)
	assert.True(t, h.Unregister(id))
	assert.False(t, h.Unregister(id))
}

func TestHubEmitOrder(t *testing.T) {
	h := NewHub()
	var order []string

	record := func(name string) Listener {
		return func(Event) error {
			order = append(order, name)
			return nil
		}
	}

	require.NoError(t, h.RegisterOnce(KindStepAdvanced, record("once1")))
	_, err := h.Register(KindStepAdvanced, record("d1"))
	require.NoError(t, err)
	require.NoError(t, h.RegisterOnce(KindStepAdvanced, record("once2")))
	_, err = h.Register(KindStepAdvanced, record("d2"))
	require.NoError(t, err)

	h.Emit(StepAdvanced{})
	assert.Equal(t, []string{"d1", "d2", "once1", "once2"}, order)

	order = nil
	h.Emit(StepAdvanced{})
	assert.Equal(t, []string{"d1", "d2"}, order)
}

func TestHubSnapshotDispatch(t *testing.T) {
	h := NewHub()
	var l1Calls, l2Calls int
	registered := false

	_, err := h.Register(KindStepAdvanced, func(Event) error {
		l1Calls++
		if !registered {
			registered = true
			_, err := h.Register(KindStepAdvanced, func(Event) error {
				l2Calls++
				return nil
			})
			return err
		}
		return nil
	})
	require.NoError(t, err)

	h.Emit(StepAdvanced{})
	assert.Equal(t, 1, l1Calls)
	assert.Equal(t, 0, l2Calls, "listener added during emission must wait for the next one")

	h.Emit(StepAdvanced{})
	assert.Equal(t, 2, l1Calls)
	assert.Equal(t, 1, l2Calls)
}

func TestHubSnapshotKeepsRemovedListeners(t *testing.T) {
	h := NewHub()
	var victimCalls int
	var victim ListenerID

	_, err := h.Register(KindInterruptRaised, func(Event) error {
		h.Unregister(victim)
		return nil
	})
	require.NoError(t, err)
	victim, err = h.Register(KindInterruptRaised, func(Event) error {
		victimCalls++
		return nil
	})
	require.NoError(t, err)

	h.Emit(InterruptRaised{CauseMask: 1})
	assert.Equal(t, 1, victimCalls, "captured listener still runs")

	h.Emit(InterruptRaised{CauseMask: 1})
	assert.Equal(t, 1, victimCalls)
}

func TestHubOnceNotReentrant(t *testing.T) {
	h := NewHub()
	var calls int

	require.NoError(t, h.RegisterOnce(KindStepAdvanced, func(ev Event) error {
		calls++
		h.Emit(ev)
		return nil
	}))

	h.Emit(StepAdvanced{})
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(2), h.Emissions(KindStepAdvanced))
	assert.False(t, h.HasListeners(KindStepAdvanced))
}

func TestHubOnceReregisterRunsNextEmission(t *testing.T) {
	h := NewHub()
	var calls int

	var again Listener
	again = func(Event) error {
		calls++
		return h.RegisterOnce(KindStepAdvanced, again)
	}
	require.NoError(t, h.RegisterOnce(KindStepAdvanced, again))

	h.Emit(StepAdvanced{})
	assert.Equal(t, 1, calls)
	assert.True(t, h.HasListeners(KindStepAdvanced))

	h.Emit(StepAdvanced{})
	assert.Equal(t, 2, calls)
}

func TestHubListenerFailuresDoNotStopDelivery(t *testing.T) {
	obs := newCountingObserver()
	h := NewHub(WithObserver(obs))
	var reached []string

	_, err := h.Register(KindMemoryWatchHit, func(Event) error {
		reached = append(reached, "err")
		return errors.New("boom")
	})
	require.NoError(t, err)
	_, err = h.Register(KindMemoryWatchHit, func(Event) error {
		reached = append(reached, "panic")
		panic("listener exploded")
	})
	require.NoError(t, err)
	require.NoError(t, h.RegisterOnce(KindMemoryWatchHit, func(ev Event) error {
		hit := ev.(MemoryWatchHit)
		assert.True(t, hit.IsWrite)
		assert.Equal(t, uint32(0x80001234), hit.Address)
		reached = append(reached, "once")
		return nil
	}))

	h.Emit(MemoryWatchHit{IsWrite: true, Address: 0x80001234, Value: 7})

	assert.Equal(t, []string{"err", "panic", "once"}, reached)
	assert.Equal(t, 2, obs.failed[KindMemoryWatchHit])
	assert.Equal(t, 3, obs.timed[KindMemoryWatchHit])
	assert.Equal(t, 1, obs.emitted[KindMemoryWatchHit])
	assert.Equal(t, 2, obs.listeners[KindMemoryWatchHit])

	stats := h.Stats()
	assert.Equal(t, uint64(3), stats.Dispatched)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Panicked)
}

func TestHubTypedListeners(t *testing.T) {
	h := NewHub()
	var got FrameProduced
	var hits []uint32

	_, err := On(h, func(f FrameProduced) error {
		got = f
		return nil
	})
	require.NoError(t, err)
	id, err := On(h, func(c CodeWatchHit) error {
		hits = append(hits, c.Address)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, KindCodeWatchHit, id.Kind)

	h.Emit(FrameProduced{Width: 2, Height: 1, Pixels: make([]byte, 8)})
	h.Emit(CodeWatchHit{Address: 0x100})
	require.True(t, h.Unregister(id))
	h.Emit(CodeWatchHit{Address: 0x200})

	assert.Equal(t, 2, got.Width)
	assert.Len(t, got.Pixels, 8)
	assert.Equal(t, []uint32{0x100}, hits)

	_, err = On[StepAdvanced](h, nil)
	assert.ErrorIs(t, err, ErrInvalidListener)
}

func TestHubAffinityViolation(t *testing.T) {
	var violation *AffinityError
	h := NewHub(
		WithOwner(goroutineOwner{id: loop.GoroutineID()}),
		WithFatalHandler(func(err *AffinityError) { violation = err }),
	)
	var calls int
	_, err := h.Register(KindStepAdvanced, func(Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	h.Emit(StepAdvanced{})
	require.Nil(t, violation)
	assert.Equal(t, 1, calls)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Emit(StepAdvanced{})
	}()
	<-done

	require.NotNil(t, violation)
	assert.ErrorIs(t, violation, ErrThreadAffinity)
	assert.Equal(t, "emit step_advanced", violation.Op)
	assert.NotEmpty(t, violation.Stack)
	assert.Equal(t, 1, calls, "violating emission is not delivered")
	assert.Equal(t, uint64(1), h.Emissions(KindStepAdvanced))
}

func TestHubAffinityViolationExits(t *testing.T) {
	if os.Getenv("SIMSCRIPT_AFFINITY_CHILD") == "1" {
		h := NewHub(WithOwner(goroutineOwner{id: loop.GoroutineID()}))
		done := make(chan struct{})
		go func() {
			defer close(done)
			h.Emit(StepAdvanced{})
		}()
		<-done
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestHubAffinityViolationExits$")
	cmd.Env = append(os.Environ(), "SIMSCRIPT_AFFINITY_CHILD=1")
	err := cmd.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	var calls int
	_, err := h.Register(KindStepAdvanced, func(Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, h.RegisterOnce(KindStepAdvanced, func(Event) error {
		calls++
		return nil
	}))

	h.Close()
	assert.False(t, h.HasListeners(KindStepAdvanced))

	h.Emit(StepAdvanced{})
	assert.Zero(t, calls)

	_, err = h.Register(KindStepAdvanced, func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("vblank")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "kind(77)", Kind(77).String())
}
