package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogueIsUniquePerFamily(t *testing.T) {
	for _, f := range Families() {
		seenKeys := make(map[ControlKey]bool)
		seenNames := make(map[string]bool)
		for _, c := range Controls(f) {
			assert.False(t, seenKeys[c.Key], "%s duplicate key %s", f, c.Key)
			assert.False(t, seenNames[c.Name], "%s duplicate name %s", f, c.Name)
			seenKeys[c.Key] = true
			seenNames[c.Name] = true
		}
		assert.Len(t, Catalogue(f), len(seenKeys))
	}
}

func TestCatalogueSizes(t *testing.T) {
	assert.Len(t, Catalogue(FamilyGC), 18)
	assert.Len(t, Catalogue(FamilyWii), 19)
	assert.Len(t, Catalogue(FamilyWiiClassic), 21)
	assert.Len(t, Catalogue(FamilyWiiNunchuk), 7)
	assert.Len(t, Catalogue(FamilyGBA), 10)
}

func TestLookupControl(t *testing.T) {
	c, err := LookupControl(FamilyGC, "TriggerLeft")
	require.NoError(t, err)
	assert.True(t, c.Analog)
	assert.Equal(t, ControlKey{GroupTriggers, "L-Analog"}, c.Key)

	_, err = LookupControl(FamilyGBA, "Z")
	assert.ErrorIs(t, err, ErrUnknownControl)

	_, err = LookupControl(Family("n64"), "A")
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestParseFamilyAndPolicy(t *testing.T) {
	f, err := ParseFamily("wii_nunchuk")
	require.NoError(t, err)
	assert.Equal(t, FamilyWiiNunchuk, f)

	_, err = ParseFamily("n64")
	assert.ErrorIs(t, err, ErrUnknownFamily)

	p, err := ParseClearPolicy("next_poll")
	require.NoError(t, err)
	assert.Equal(t, OnNextPoll, p)

	p, err = ParseClearPolicy("next_step_boundary")
	require.NoError(t, err)
	assert.Equal(t, OnNextStepBoundary, p)

	_, err = ParseClearPolicy("next_override")
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)
}

func TestControlKeyOrder(t *testing.T) {
	a := ControlKey{"Buttons", "B"}
	b := ControlKey{"Buttons", "X"}
	c := ControlKey{"D-Pad", "Down"}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, "D-Pad/Down", c.String())
}
