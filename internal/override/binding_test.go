package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/simscript/internal/event"
)

func TestRegistryInstallUninstall(t *testing.T) {
	r := NewRegistry()
	id := ControllerID{Family: FamilyGC, Index: 0}
	a := NewCache(FamilyGC)
	b := NewCache(FamilyGC)

	require.NoError(t, r.Install(id, a))
	require.NoError(t, r.Install(id, a))
	assert.ErrorIs(t, r.Install(id, b), ErrSourceInstalled)

	assert.False(t, r.Uninstall(id, b))
	assert.True(t, r.Uninstall(id, a))
	assert.False(t, r.Uninstall(id, a))

	_, ok := r.Lookup(id)
	assert.False(t, ok)

	assert.ErrorIs(t, r.Install(ControllerID{Family: "n64"}, a), ErrUnknownFamily)
	assert.ErrorIs(t, r.Install(ControllerID{Family: FamilyGC, Index: -1}, a), ErrInvalidController)
}

func TestPadPollThroughRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewCache(FamilyGC)
	id := ControllerID{Family: FamilyGC, Index: 1}
	raw := RawReaderFunc(func(_ ControllerID, key ControlKey) float64 {
		if key == keyA {
			return 1
		}
		return 0
	})
	pad := NewPad(id, raw, r)

	pad.Poll()
	assert.True(t, pad.Pressed(keyA))
	assert.Equal(t, 0.0, c.Get(1, keyA), "no source installed")

	require.NoError(t, r.Install(id, c))
	require.NoError(t, c.Set(1, keyA, 0, OnNextPoll))

	pad.Poll()
	assert.False(t, pad.Pressed(keyA))
	assert.Equal(t, 0.0, c.Get(1, keyA))

	pad.Poll()
	assert.True(t, pad.Pressed(keyA))
	assert.Equal(t, 1.0, c.Get(1, keyA))
}

func TestBindAndUnbind(t *testing.T) {
	hub := event.NewHub()
	r := NewRegistry()
	c := NewCache(FamilyWii)

	b, err := Bind(hub, r, c, 4)
	require.NoError(t, err)
	assert.Len(t, b.Controllers(), 4)
	assert.Len(t, r.Installed(), 4)
	assert.True(t, c.Attached())

	b.Unbind()
	assert.Empty(t, r.Installed())
	assert.False(t, c.Attached())
	assert.False(t, hub.HasListeners(event.KindStepAdvanced))

	b.Unbind()
}

func TestBindRollsBackOnConflict(t *testing.T) {
	hub := event.NewHub()
	r := NewRegistry()
	other := NewCache(FamilyGBA)
	require.NoError(t, r.Install(ControllerID{Family: FamilyGBA, Index: 2}, other))

	c := NewCache(FamilyGBA)
	_, err := Bind(hub, r, c, 4)
	require.ErrorIs(t, err, ErrSourceInstalled)

	assert.Equal(t, []ControllerID{{Family: FamilyGBA, Index: 2}}, r.Installed())
	assert.False(t, c.Attached())
}

func TestBindRollsBackOnClosedHub(t *testing.T) {
	hub := event.NewHub()
	hub.Close()
	r := NewRegistry()
	c := NewCache(FamilyGC)

	_, err := Bind(hub, r, c, 2)
	require.ErrorIs(t, err, event.ErrHubClosed)
	assert.Empty(t, r.Installed())
}
