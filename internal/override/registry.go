package override

import (
	"fmt"
	"sort"
	"sync"
)

// Source decides the value a controller uses for one control. Sources are
// compared by identity, so implementations should be pointer types.
type Source interface {
	Resolve(controller int, key ControlKey, original float64) float64
}

// PollSource is a Source that can resolve a whole poll at once. Pads prefer
// it over per-key Resolve calls.
type PollSource interface {
	Source
	ResolvePoll(controller int, keys []ControlKey, values []float64)
}

// ControllerID identifies one controller instance.
type ControllerID struct {
	Family Family
	Index  int
}

func (id ControllerID) String() string {
	return fmt.Sprintf("%s[%d]", id.Family, id.Index)
}

// Registry maps controllers to their override source. A controller with no
// installed source has no override capability.
type Registry struct {
	mu      sync.RWMutex
	sources map[ControllerID]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[ControllerID]Source),
	}
}

// Install puts src in the slot for id. Installing the same source twice is
// a no-op; installing over a different source fails.
func (r *Registry) Install(id ControllerID, src Source) error {
	if src == nil {
		return fmt.Errorf("install %s: nil source", id)
	}
	if !id.Family.Valid() {
		return fmt.Errorf("install %s: %w", id, ErrUnknownFamily)
	}
	if id.Index < 0 {
		return fmt.Errorf("install %s: %w", id, ErrInvalidController)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sources[id]; ok {
		if cur == src {
			return nil
		}
		return fmt.Errorf("install %s: %w", id, ErrSourceInstalled)
	}
	r.sources[id] = src
	return nil
}

// Uninstall removes src from the slot for id. It returns false if src is
// not the installed source.
func (r *Registry) Uninstall(id ControllerID, src Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sources[id]
	if !ok || cur != src {
		return false
	}
	delete(r.sources, id)
	return true
}

// Lookup returns the source installed for id.
func (r *Registry) Lookup(id ControllerID) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[id]
	return src, ok
}

// Installed returns every id with a source, sorted by family then index.
func (r *Registry) Installed() []ControllerID {
	r.mu.RLock()
	ids := make([]ControllerID, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Family != ids[j].Family {
			return ids[i].Family < ids[j].Family
		}
		return ids[i].Index < ids[j].Index
	})
	return ids
}
