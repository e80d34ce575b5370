package event

import "fmt"

// Kind identifies one member of the closed set of events.
type Kind uint8

// Event kinds.
const (
	KindStepAdvanced Kind = iota
	KindFrameProduced
	KindMemoryWatchHit
	KindCodeWatchHit
	KindInterruptRaised
	KindInterruptCleared

	kindCount
)

var kindNames = [kindCount]string{
	KindStepAdvanced:     "step_advanced",
	KindFrameProduced:    "frame_produced",
	KindMemoryWatchHit:   "memory_watch_hit",
	KindCodeWatchHit:     "code_watch_hit",
	KindInterruptRaised:  "interrupt_raised",
	KindInterruptCleared: "interrupt_cleared",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is part of the closed set.
func (k Kind) Valid() bool {
	return k < kindCount
}

// ParseKind maps a wire name back to its kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, kindCount)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}
