package override

import "errors"

var (
	// ErrUnsupportedPolicy is returned for the reserved OnNextOverride policy
	// and for unknown policy values.
	ErrUnsupportedPolicy = errors.New("unsupported clear policy")

	// ErrUnknownFamily is returned for a controller family outside the catalogue.
	ErrUnknownFamily = errors.New("unknown controller family")

	// ErrUnknownControl is returned for a key or friendly name the family does not have.
	ErrUnknownControl = errors.New("unknown control")

	// ErrInvalidController is returned for a negative controller index.
	ErrInvalidController = errors.New("invalid controller index")

	// ErrSourceInstalled is returned when a controller slot already has a
	// different source.
	ErrSourceInstalled = errors.New("override source already installed")

	// ErrAlreadyAttached is returned when attaching a cache twice.
	ErrAlreadyAttached = errors.New("cache already attached to a hub")
)
