package override

// ControlKey identifies one logical control of a controller family.
type ControlKey struct {
	Group   string
	Control string
}

// Less orders keys by group, then control.
func (k ControlKey) Less(other ControlKey) bool {
	if k.Group != other.Group {
		return k.Group < other.Group
	}
	return k.Control < other.Control
}

// String returns "group/control".
func (k ControlKey) String() string {
	return k.Group + "/" + k.Control
}

// Control group names.
const (
	GroupButtons       = "Buttons"
	GroupDPad          = "D-Pad"
	GroupTriggers      = "Triggers"
	GroupMainStick     = "Main Stick"
	GroupCStick        = "C-Stick"
	GroupStick         = "Stick"
	GroupLeftStick     = "Left Stick"
	GroupRightStick    = "Right Stick"
	GroupIR            = "IR"
	GroupAccelerometer = "Accelerometer"
	GroupGyroscope     = "Gyroscope"
)

// Axis control names shared by sticks, IR and motion groups.
const (
	AxisX = "X"
	AxisY = "Y"
	AxisZ = "Z"
)

func button(name string) ControlKey { return ControlKey{GroupButtons, name} }
func dpad(name string) ControlKey   { return ControlKey{GroupDPad, name} }
