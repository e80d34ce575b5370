package override

import (
	"fmt"

	"github.com/dshills/simscript/internal/event"
)

// Binding is a cache installed on a range of controllers and attached to a
// hub. Unbind is its matched teardown.
type Binding struct {
	registry *Registry
	cache    *Cache
	ids      []ControllerID
}

// Bind installs cache as the source of controllers 0..count-1 of its family
// and attaches it to hub. On failure nothing stays installed.
func Bind(hub *event.Hub, registry *Registry, cache *Cache, count int) (*Binding, error) {
	b := &Binding{registry: registry, cache: cache}

	for i := 0; i < count; i++ {
		id := ControllerID{Family: cache.Family(), Index: i}
		if err := registry.Install(id, cache); err != nil {
			b.uninstall()
			return nil, err
		}
		b.ids = append(b.ids, id)
	}

	if err := cache.Attach(hub); err != nil {
		b.uninstall()
		return nil, fmt.Errorf("bind %s: %w", cache.Family(), err)
	}
	return b, nil
}

// Cache returns the bound cache.
func (b *Binding) Cache() *Cache {
	return b.cache
}

// Controllers returns the ids the cache is installed on.
func (b *Binding) Controllers() []ControllerID {
	return append([]ControllerID(nil), b.ids...)
}

// Unbind uninstalls every controller hook, then detaches the step boundary
// listener. Calling it again does nothing.
func (b *Binding) Unbind() {
	b.uninstall()
	b.cache.Detach()
}

func (b *Binding) uninstall() {
	for _, id := range b.ids {
		b.registry.Uninstall(id, b.cache)
	}
	b.ids = nil
}
