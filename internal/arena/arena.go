// Package arena runs one isolated simulation cell: a cycle clock and the
// timeline managers of the entities that live in it.
package arena

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/cache"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/player"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/queue"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/recorder"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Stats summarizes what one ghost did during one completed cycle.
type Stats struct {
	Arena      string
	Entity     core.EntityID
	Session    string
	Cycle      uint64
	Dispatched int
	Abilities  int
	Died       bool
}

// CycleObserver is notified once per wrap with the stats of the cycle that
// just ended, in entity insertion order.
type CycleObserver interface {
	ObserveCycle(stats []Stats)
}

// FinalizeFunc is called whenever an entity's recording is published,
// whether by command or by reaching the cycle bound.
type FinalizeFunc func(arena string, entity core.EntityID, p *timeline.Published)

// Config holds the per-arena timing rules.
type Config struct {
	ID           string
	CycleLength  core.TimeStamp
	Countdown    core.TimeStamp
	AutoPlayback bool
	Logger       *slog.Logger
}

// Arena owns a clock, the managers of its entities in insertion order and
// the outbox the player writes dispatches to. Tick is the only clock writer.
type Arena struct {
	mu sync.Mutex

	id     string
	cfg    Config
	logger *slog.Logger

	clock     *timeline.Clock
	order     []core.EntityID
	managers  map[core.EntityID]*timeline.Manager
	positions *cache.PositionCache
	recorder  *recorder.Recorder
	player    *player.Player
	outbox    *queue.Queue[core.Dispatch]

	stats      map[uint64]map[core.EntityID]*Stats
	observers  []CycleObserver
	onFinalize []FinalizeFunc
}

// New creates an arena. abilities receives every ghost ability activation.
func New(cfg Config, abilities player.Activator) (*Arena, error) {
	if cfg.CycleLength <= 0 {
		cfg.CycleLength = core.CycleLength
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = core.CountdownLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("arena", cfg.ID)

	a := &Arena{
		id:        cfg.ID,
		cfg:       cfg,
		logger:    logger,
		clock:     timeline.NewClock(cfg.CycleLength),
		managers:  make(map[core.EntityID]*timeline.Manager),
		positions: cache.NewPositionCache(),
		outbox:    queue.New[core.Dispatch](),
		stats:     make(map[uint64]map[core.EntityID]*Stats),
	}

	var err error
	a.recorder, err = recorder.New(a.positions, logger)
	if err != nil {
		return nil, fmt.Errorf("arena %s: %w", cfg.ID, err)
	}
	a.player, err = player.New(a.positions, abilities, emitter{a}, player.Options{
		Countdown:   cfg.Countdown,
		CycleLength: cfg.CycleLength,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("arena %s: %w", cfg.ID, err)
	}
	return a, nil
}

func (a *Arena) ID() string { return a.id }

// Positions exposes the arena's position store.
func (a *Arena) Positions() *cache.PositionCache { return a.positions }

// Now returns the current clock reading.
func (a *Arena) Now() core.TimeStamp {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock.Now()
}

// Cycle returns the number of completed cycles.
func (a *Arena) Cycle() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock.Cycle()
}

// Observe registers a cycle observer.
func (a *Arena) Observe(o CycleObserver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// OnFinalize registers a callback for newly published timelines.
func (a *Arena) OnFinalize(fn FinalizeFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFinalize = append(a.onFinalize, fn)
}

// Spawn adds an entity at pos. Spawning a known entity only moves it.
func (a *Arena) Spawn(id core.EntityID, pos core.GridPos) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.positions.SetPosition(id, pos)
	if _, ok := a.managers[id]; ok {
		return
	}
	a.managers[id] = timeline.NewManager(id, a.cfg.CycleLength)
	a.order = append(a.order, id)
	a.logger.Debug("entity spawned", "entity", id, "pos", pos.String())
}

// Entities returns entity ids in insertion order.
func (a *Arena) Entities() []core.EntityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.order)
}

// Mode returns an entity's current timeline mode.
func (a *Arena) Mode(id core.EntityID) (timeline.Mode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return nil, err
	}
	return m.Mode(), nil
}

// Published returns an entity's published timeline, or nil.
func (a *Arena) Published(id core.EntityID) (*timeline.Published, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return nil, err
	}
	return m.Published(), nil
}

// Publish installs a timeline loaded from storage. A ghost already replaying
// restarts on the new timeline.
func (a *Arena) Publish(id core.EntityID, p *timeline.Published) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return err
	}
	return a.player.Replace(m, p, core.Frame{Now: a.clock.Now(), Cycle: a.clock.Cycle()})
}

func (a *Arena) BeginRecording(id core.EntityID) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return "", err
	}
	return a.recorder.Begin(m)
}

func (a *Arena) Record(id core.EntityID, ts core.TimeStamp, ev core.EventType) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return err
	}
	return a.recorder.Record(m, ts, ev)
}

func (a *Arena) Stamp(id core.EntityID, ev core.EventType) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return err
	}
	return a.recorder.Stamp(m, ev)
}

func (a *Arena) CancelRecording(id core.EntityID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return err
	}
	a.recorder.Cancel(m)
	return nil
}

func (a *Arena) FinalizeRecording(id core.EntityID) (*timeline.Published, error) {
	a.mu.Lock()
	m, err := a.manager(id)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	p, err := a.recorder.Finalize(m)
	callbacks := slices.Clone(a.onFinalize)
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	for _, fn := range callbacks {
		fn(a.id, id, p)
	}
	return p, nil
}

func (a *Arena) StartPlayback(id core.EntityID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return err
	}
	return a.player.Start(m, core.Frame{Now: a.clock.Now(), Cycle: a.clock.Cycle()})
}

func (a *Arena) StopPlayback(id core.EntityID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.manager(id)
	if err != nil {
		return err
	}
	a.player.Stop(m)
	return nil
}

// Tick advances the clock once and steps every entity against the same
// frame, in insertion order.
func (a *Arena) Tick(dt core.TimeStamp) core.Frame {
	a.mu.Lock()

	frame := a.clock.Advance(dt)
	var published []*timeline.Manager

	for _, id := range a.order {
		m := a.managers[id]

		switch m.Mode().(type) {
		case timeline.Recording:
			p, err := a.recorder.Advance(m, frame.Delta)
			if err != nil {
				a.logger.Error("recording advance failed", "entity", id, "error", err)
			}
			if p != nil {
				published = append(published, m)
			}
			continue

		case timeline.Idle:
			if frame.Wrapped && a.cfg.AutoPlayback && m.Published() != nil {
				if err := a.player.Start(m, frame); err != nil {
					a.logger.Error("auto playback failed", "entity", id, "error", err)
				}
			}
			continue
		}

		a.player.Step(m, frame)
	}

	var report []Stats
	var observers []CycleObserver
	if frame.Wrapped {
		report = a.collectStats(frame.Cycle)
		observers = slices.Clone(a.observers)
	}
	callbacks := slices.Clone(a.onFinalize)
	a.mu.Unlock()

	for _, m := range published {
		for _, fn := range callbacks {
			fn(a.id, m.Entity(), m.Published())
		}
	}
	if len(report) > 0 {
		for _, o := range observers {
			o.ObserveCycle(report)
		}
	}
	return frame
}

// Drain hands over every dispatch produced since the last call.
func (a *Arena) Drain() []core.Dispatch {
	return a.outbox.Drain()
}

func (a *Arena) manager(id core.EntityID) (*timeline.Manager, error) {
	m, ok := a.managers[id]
	if !ok {
		return nil, fmt.Errorf("arena %s entity %d: %w", a.id, id, core.ErrUnknownEntity)
	}
	return m, nil
}

// collectStats removes and returns the stats of every cycle before current.
func (a *Arena) collectStats(current uint64) []Stats {
	var out []Stats
	for cycle, byEntity := range a.stats {
		if cycle >= current {
			continue
		}
		for _, id := range a.order {
			if s, ok := byEntity[id]; ok {
				out = append(out, *s)
			}
		}
		delete(a.stats, cycle)
	}
	slices.SortStableFunc(out, func(x, y Stats) int {
		switch {
		case x.Cycle < y.Cycle:
			return -1
		case x.Cycle > y.Cycle:
			return 1
		}
		return 0
	})
	return out
}

// emitter forwards player output to the outbox and tallies cycle stats.
// It runs under the arena lock.
type emitter struct{ a *Arena }

func (e emitter) Push(items ...core.Dispatch) {
	for _, d := range items {
		byEntity, ok := e.a.stats[d.Cycle]
		if !ok {
			byEntity = make(map[core.EntityID]*Stats)
			e.a.stats[d.Cycle] = byEntity
		}
		s, ok := byEntity[d.Entity]
		if !ok {
			s = &Stats{Arena: e.a.id, Entity: d.Entity, Cycle: d.Cycle}
			if m := e.a.managers[d.Entity]; m != nil && m.Published() != nil {
				s.Session = m.Published().Session()
			}
			byEntity[d.Entity] = s
		}
		switch d.Kind {
		case core.DispatchMove:
			s.Dispatched++
		case core.DispatchAbility:
			s.Dispatched++
			s.Abilities++
		case core.DispatchDeath:
			s.Dispatched++
			s.Died = true
		}
	}
	e.a.outbox.Push(items...)
}
