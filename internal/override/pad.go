package override

// RawReader supplies the physical or virtual value of a control before
// overrides are applied.
type RawReader interface {
	Read(id ControllerID, key ControlKey) float64
}

// RawReaderFunc adapts a function to RawReader.
type RawReaderFunc func(id ControllerID, key ControlKey) float64

// Read calls f.
func (f RawReaderFunc) Read(id ControllerID, key ControlKey) float64 {
	return f(id, key)
}

// Pad is a polled controller. Each Poll reads every catalogue key once and
// passes it through the source installed for the pad's id.
type Pad struct {
	id       ControllerID
	keys     []ControlKey
	raw      RawReader
	registry *Registry
	values   []float64
	state    map[ControlKey]float64
}

// NewPad creates a pad for id. A nil raw reader reads every control as 0.
func NewPad(id ControllerID, raw RawReader, registry *Registry) *Pad {
	if raw == nil {
		raw = RawReaderFunc(func(ControllerID, ControlKey) float64 { return 0 })
	}
	return &Pad{
		id:       id,
		keys:     Catalogue(id.Family),
		raw:      raw,
		registry: registry,
		values:   make([]float64, len(Catalogue(id.Family))),
		state:    make(map[ControlKey]float64, len(Catalogue(id.Family))),
	}
}

// ID returns the pad's controller id.
func (p *Pad) ID() ControllerID {
	return p.id
}

// Poll refreshes every control.
func (p *Pad) Poll() {
	for i, key := range p.keys {
		p.values[i] = p.raw.Read(p.id, key)
	}

	var src Source
	if p.registry != nil {
		src, _ = p.registry.Lookup(p.id)
	}
	switch s := src.(type) {
	case nil:
	case PollSource:
		s.ResolvePoll(p.id.Index, p.keys, p.values)
	default:
		for i, key := range p.keys {
			p.values[i] = s.Resolve(p.id.Index, key, p.values[i])
		}
	}

	for i, key := range p.keys {
		p.state[key] = p.values[i]
	}
}

// Value returns the value of key from the last Poll.
func (p *Pad) Value(key ControlKey) float64 {
	return p.state[key]
}

// Pressed reports whether a digital control was non-zero at the last Poll.
func (p *Pad) Pressed(key ControlKey) bool {
	return p.state[key] != 0
}
