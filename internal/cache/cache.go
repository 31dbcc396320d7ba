package cache

import (
	"sync"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// PositionCache holds the current grid position of every entity in an arena.
// It stands in for the ECS transform store: the recorder reads start poses
// from it and the player writes ghost movement into it.
type PositionCache struct {
	m         sync.RWMutex
	positions map[core.EntityID]core.GridPos
}

func NewPositionCache() *PositionCache {
	return &PositionCache{
		positions: make(map[core.EntityID]core.GridPos),
	}
}

func (c *PositionCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.positions = make(map[core.EntityID]core.GridPos)
}

func (c *PositionCache) Position(id core.EntityID) (core.GridPos, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	p, ok := c.positions[id]
	return p, ok
}

func (c *PositionCache) SetPosition(id core.EntityID, pos core.GridPos) {
	c.m.Lock()
	defer c.m.Unlock()
	c.positions[id] = pos
}

func (c *PositionCache) Remove(id core.EntityID) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.positions, id)
}

func (c *PositionCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.positions)
}

// Activation is one ability use observed by an AbilityLog.
type Activation struct {
	Entity core.EntityID
	Kind   core.AbilityKind
	Target *core.GridPos
}

// AbilityLog records ability activations in call order. It is the default
// activator for headless runs and tests.
type AbilityLog struct {
	mu          sync.Mutex
	activations []Activation
}

func NewAbilityLog() *AbilityLog {
	return &AbilityLog{}
}

// Activate appends an activation. The target is copied.
func (l *AbilityLog) Activate(id core.EntityID, kind core.AbilityKind, target *core.GridPos) {
	a := Activation{Entity: id, Kind: kind}
	if target != nil {
		t := *target
		a.Target = &t
	}
	l.mu.Lock()
	l.activations = append(l.activations, a)
	l.mu.Unlock()
}

// Activations returns a copy of everything recorded so far.
func (l *AbilityLog) Activations() []Activation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Activation, len(l.activations))
	copy(out, l.activations)
	return out
}

// Count returns the number of activations of kind for id.
func (l *AbilityLog) Count(id core.EntityID, kind core.AbilityKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, a := range l.activations {
		if a.Entity == id && a.Kind == kind {
			n++
		}
	}
	return n
}

func (l *AbilityLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activations = nil
}
