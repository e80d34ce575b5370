package override

import (
	"fmt"
	"slices"
)

// Family names a kind of controller. Each family has its own Cache.
type Family string

// Controller families.
const (
	FamilyGC         Family = "gc"
	FamilyWii        Family = "wii"
	FamilyWiiClassic Family = "wii_classic"
	FamilyWiiNunchuk Family = "wii_nunchuk"
	FamilyGBA        Family = "gba"
)

// Control maps a script-facing name to a catalogue key.
type Control struct {
	Name   string
	Key    ControlKey
	Analog bool
}

var dpadControls = []Control{
	{Name: "Up", Key: dpad("Up")},
	{Name: "Down", Key: dpad("Down")},
	{Name: "Left", Key: dpad("Left")},
	{Name: "Right", Key: dpad("Right")},
}

var controls = map[Family][]Control{
	FamilyGC: concat(
		[]Control{
			{Name: "A", Key: button("A")},
			{Name: "B", Key: button("B")},
			{Name: "X", Key: button("X")},
			{Name: "Y", Key: button("Y")},
			{Name: "Z", Key: button("Z")},
			{Name: "Start", Key: button("Start")},
		},
		dpadControls,
		[]Control{
			{Name: "L", Key: ControlKey{GroupTriggers, "L"}},
			{Name: "R", Key: ControlKey{GroupTriggers, "R"}},
			{Name: "TriggerLeft", Key: ControlKey{GroupTriggers, "L-Analog"}, Analog: true},
			{Name: "TriggerRight", Key: ControlKey{GroupTriggers, "R-Analog"}, Analog: true},
			{Name: "StickX", Key: ControlKey{GroupMainStick, AxisX}, Analog: true},
			{Name: "StickY", Key: ControlKey{GroupMainStick, AxisY}, Analog: true},
			{Name: "CStickX", Key: ControlKey{GroupCStick, AxisX}, Analog: true},
			{Name: "CStickY", Key: ControlKey{GroupCStick, AxisY}, Analog: true},
		},
	),
	FamilyWii: concat(
		[]Control{
			{Name: "A", Key: button("A")},
			{Name: "B", Key: button("B")},
			{Name: "One", Key: button("1")},
			{Name: "Two", Key: button("2")},
			{Name: "Plus", Key: button("+")},
			{Name: "Minus", Key: button("-")},
			{Name: "Home", Key: button("Home")},
		},
		dpadControls,
		[]Control{
			{Name: "PointerX", Key: ControlKey{GroupIR, AxisX}, Analog: true},
			{Name: "PointerY", Key: ControlKey{GroupIR, AxisY}, Analog: true},
			{Name: "AccelX", Key: ControlKey{GroupAccelerometer, AxisX}, Analog: true},
			{Name: "AccelY", Key: ControlKey{GroupAccelerometer, AxisY}, Analog: true},
			{Name: "AccelZ", Key: ControlKey{GroupAccelerometer, AxisZ}, Analog: true},
			{Name: "GyroX", Key: ControlKey{GroupGyroscope, AxisX}, Analog: true},
			{Name: "GyroY", Key: ControlKey{GroupGyroscope, AxisY}, Analog: true},
			{Name: "GyroZ", Key: ControlKey{GroupGyroscope, AxisZ}, Analog: true},
		},
	),
	FamilyWiiClassic: concat(
		[]Control{
			{Name: "A", Key: button("A")},
			{Name: "B", Key: button("B")},
			{Name: "X", Key: button("X")},
			{Name: "Y", Key: button("Y")},
			{Name: "ZL", Key: button("ZL")},
			{Name: "ZR", Key: button("ZR")},
			{Name: "Plus", Key: button("+")},
			{Name: "Minus", Key: button("-")},
			{Name: "Home", Key: button("Home")},
		},
		dpadControls,
		[]Control{
			{Name: "L", Key: ControlKey{GroupTriggers, "L"}},
			{Name: "R", Key: ControlKey{GroupTriggers, "R"}},
			{Name: "TriggerLeft", Key: ControlKey{GroupTriggers, "L-Analog"}, Analog: true},
			{Name: "TriggerRight", Key: ControlKey{GroupTriggers, "R-Analog"}, Analog: true},
			{Name: "LeftStickX", Key: ControlKey{GroupLeftStick, AxisX}, Analog: true},
			{Name: "LeftStickY", Key: ControlKey{GroupLeftStick, AxisY}, Analog: true},
			{Name: "RightStickX", Key: ControlKey{GroupRightStick, AxisX}, Analog: true},
			{Name: "RightStickY", Key: ControlKey{GroupRightStick, AxisY}, Analog: true},
		},
	),
	FamilyWiiNunchuk: {
		{Name: "C", Key: button("C")},
		{Name: "Z", Key: button("Z")},
		{Name: "StickX", Key: ControlKey{GroupStick, AxisX}, Analog: true},
		{Name: "StickY", Key: ControlKey{GroupStick, AxisY}, Analog: true},
		{Name: "AccelX", Key: ControlKey{GroupAccelerometer, AxisX}, Analog: true},
		{Name: "AccelY", Key: ControlKey{GroupAccelerometer, AxisY}, Analog: true},
		{Name: "AccelZ", Key: ControlKey{GroupAccelerometer, AxisZ}, Analog: true},
	},
	FamilyGBA: concat(
		[]Control{
			{Name: "A", Key: button("A")},
			{Name: "B", Key: button("B")},
			{Name: "L", Key: button("L")},
			{Name: "R", Key: button("R")},
			{Name: "Start", Key: button("Start")},
			{Name: "Select", Key: button("Select")},
		},
		dpadControls,
	),
}

func concat(parts ...[]Control) []Control {
	var out []Control
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Families returns every family in a fixed order.
func Families() []Family {
	return []Family{FamilyGC, FamilyWii, FamilyWiiClassic, FamilyWiiNunchuk, FamilyGBA}
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	_, ok := controls[f]
	return ok
}

// ParseFamily validates a family name.
func ParseFamily(name string) (Family, error) {
	f := Family(name)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	return f, nil
}

// Controls returns the script-facing controls of a family in catalogue order.
func Controls(f Family) []Control {
	return slices.Clone(controls[f])
}

// Catalogue returns the keys of a family in catalogue order.
func Catalogue(f Family) []ControlKey {
	cs := controls[f]
	keys := make([]ControlKey, len(cs))
	for i, c := range cs {
		keys[i] = c.Key
	}
	return keys
}

// HasKey reports whether key belongs to the family's catalogue.
func HasKey(f Family, key ControlKey) bool {
	for _, c := range controls[f] {
		if c.Key == key {
			return true
		}
	}
	return false
}

// LookupControl finds a control by its script-facing name.
func LookupControl(f Family, name string) (Control, error) {
	cs, ok := controls[f]
	if !ok {
		return Control{}, fmt.Errorf("%w: %q", ErrUnknownFamily, string(f))
	}
	for _, c := range cs {
		if c.Name == name {
			return c, nil
		}
	}
	return Control{}, fmt.Errorf("%w: %s has no control %q", ErrUnknownControl, f, name)
}
