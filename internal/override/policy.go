package override

import "fmt"

// ClearPolicy decides when an override entry is removed.
type ClearPolicy uint8

const (
	// OnNextPoll removes the entry on the Resolve that consumes it.
	OnNextPoll ClearPolicy = iota

	// OnNextStepBoundary keeps the entry for the rest of the step and removes
	// it at the boundary once it has been consumed.
	OnNextStepBoundary

	// OnNextOverride is reserved. Set rejects it.
	OnNextOverride
)

var policyNames = map[ClearPolicy]string{
	OnNextPoll:         "next_poll",
	OnNextStepBoundary: "next_step_boundary",
	OnNextOverride:     "next_override",
}

// String returns the script-facing name.
func (p ClearPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// Supported reports whether the policy has defined behavior.
func (p ClearPolicy) Supported() bool {
	return p == OnNextPoll || p == OnNextStepBoundary
}

// ParseClearPolicy maps a script-facing name to a policy. Only supported
// policies parse.
func ParseClearPolicy(name string) (ClearPolicy, error) {
	for p, n := range policyNames {
		if n == name && p.Supported() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedPolicy, name)
}

// EntryState is the state of one (controller, key) slot.
type EntryState uint8

const (
	Absent EntryState = iota
	Armed
	Consumed
)

func (s EntryState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Armed:
		return "armed"
	case Consumed:
		return "consumed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}
