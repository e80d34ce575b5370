package event

// Event is the closed variant carried by the hub. Only the payload types in
// this package implement it.
type Event interface {
	// Kind returns the kind tag of the payload.
	Kind() Kind

	sealed()
}

// StepAdvanced marks the completion of one simulation step.
type StepAdvanced struct{}

// FrameProduced carries a rendered frame as RGBA bytes, 4 per pixel.
// Pixels is only valid during dispatch; copy it to keep it.
type FrameProduced struct {
	Width  int
	Height int
	Pixels []byte
}

// MemoryWatchHit reports an access to a watched memory address.
type MemoryWatchHit struct {
	IsWrite bool
	Address uint32
	Value   uint64
}

// CodeWatchHit reports execution reaching a watched code address.
type CodeWatchHit struct {
	Address uint32
}

// InterruptRaised reports interrupt cause bits being set.
type InterruptRaised struct {
	CauseMask uint32
}

// InterruptCleared reports interrupt cause bits being cleared.
type InterruptCleared struct {
	CauseMask uint32
}

func (StepAdvanced) Kind() Kind     { return KindStepAdvanced }
func (FrameProduced) Kind() Kind    { return KindFrameProduced }
func (MemoryWatchHit) Kind() Kind   { return KindMemoryWatchHit }
func (CodeWatchHit) Kind() Kind     { return KindCodeWatchHit }
func (InterruptRaised) Kind() Kind  { return KindInterruptRaised }
func (InterruptCleared) Kind() Kind { return KindInterruptCleared }

func (StepAdvanced) sealed()     {}
func (FrameProduced) sealed()    {}
func (MemoryWatchHit) sealed()   {}
func (CodeWatchHit) sealed()     {}
func (InterruptRaised) sealed()  {}
func (InterruptCleared) sealed() {}
