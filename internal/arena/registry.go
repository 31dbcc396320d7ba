package arena

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Registry holds the arenas of a running simulation by id.
type Registry struct {
	mu     sync.RWMutex
	arenas map[string]*Arena
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{arenas: make(map[string]*Arena)}
}

// Add registers an arena. Ids must be unique.
func (r *Registry) Add(a *Arena) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.arenas[a.ID()]; ok {
		return fmt.Errorf("arena %s already registered", a.ID())
	}
	r.arenas[a.ID()] = a
	return nil
}

// Get returns the arena with the given id
func (r *Registry) Get(id string) (*Arena, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.arenas[id]
	if !ok {
		return nil, fmt.Errorf("unknown arena: %s", id)
	}
	return a, nil
}

// Remove drops an arena
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.arenas, id)
}

// IDs returns all arena ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.arenas))
	for id := range r.arenas {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tick advances every arena by dt in id order.
func (r *Registry) Tick(dt core.TimeStamp) {
	for _, id := range r.IDs() {
		if a, err := r.Get(id); err == nil {
			a.Tick(dt)
		}
	}
}
