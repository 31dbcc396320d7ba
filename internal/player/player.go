// Package player replays published timelines in lockstep with an arena clock.
package player

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// PositionWriter relocates entities on the grid.
type PositionWriter interface {
	SetPosition(id core.EntityID, pos core.GridPos)
}

// Activator triggers an ability for an entity.
type Activator interface {
	Activate(id core.EntityID, kind core.AbilityKind, target *core.GridPos)
}

// Emitter receives every dispatch the player produces.
type Emitter interface {
	Push(items ...core.Dispatch)
}

// Player steps the countdown and playback modes of timeline managers.
type Player struct {
	positions PositionWriter
	abilities Activator
	out       Emitter
	countdown core.TimeStamp
	limit     core.TimeStamp
	logger    *slog.Logger

	dispatched metric.Int64Counter
	cycles     metric.Int64Counter
}

// Options configures a Player. Zero values fall back to the package
// constants and slog.Default.
type Options struct {
	Countdown   core.TimeStamp
	CycleLength core.TimeStamp
	Logger      *slog.Logger
}

func New(positions PositionWriter, abilities Activator, out Emitter, opts Options) (*Player, error) {
	if opts.Countdown <= 0 {
		opts.Countdown = core.CountdownLength
	}
	if opts.CycleLength <= 0 {
		opts.CycleLength = core.CycleLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Player{
		positions: positions,
		abilities: abilities,
		out:       out,
		countdown: opts.Countdown,
		limit:     opts.CycleLength,
		logger:    opts.Logger,
	}

	m := meter()
	var err error

	p.dispatched, err = m.Int64Counter(
		"player.events.dispatched",
		metric.WithDescription("Timeline events dispatched by ghosts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatched counter: %w", err)
	}

	p.cycles, err = m.Int64Counter(
		"player.cycles",
		metric.WithDescription("Countdown entries, including the one at playback start"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cycles counter: %w", err)
	}

	return p, nil
}

// Start puts the entity into countdown and snaps it to its recorded start
// pose. The snap is emitted as a Reset dispatch.
func (p *Player) Start(m *timeline.Manager, frame core.Frame) error {
	if err := p.reset(m, frame.Cycle); err != nil {
		return err
	}
	p.logger.Info("playback started", "entity", m.Entity(), "events", m.Published().Len())
	return nil
}

// Replace installs p as the entity's timeline. An entity that was counting
// down or playing restarts from the beginning of p, with a fresh countdown
// and a Reset dispatch.
func (p *Player) Replace(m *timeline.Manager, pub *timeline.Published, frame core.Frame) error {
	playing := false
	switch m.Mode().(type) {
	case timeline.CountdownToPlayback, timeline.Playback:
		playing = true
	}
	if err := m.Publish(pub); err != nil {
		return err
	}
	if !playing {
		return nil
	}
	if err := p.reset(m, frame.Cycle); err != nil {
		return err
	}
	p.logger.Info("playback restarted with new timeline", "entity", m.Entity(), "events", pub.Len())
	return nil
}

// Stop returns the entity to Idle. Its timeline is kept.
func (p *Player) Stop(m *timeline.Manager) {
	switch m.Mode().(type) {
	case timeline.CountdownToPlayback, timeline.Playback:
		m.Stop()
		p.logger.Info("playback stopped", "entity", m.Entity())
	}
}

// Step advances one entity by one frame and returns the number of timeline
// events it consumed.
func (p *Player) Step(m *timeline.Manager, frame core.Frame) int {
	switch m.Mode().(type) {
	case timeline.CountdownToPlayback:
		if !m.Countdown(frame.Delta) {
			return 0
		}
		return p.drain(m, frame.Now, frame.Cycle)

	case timeline.Playback:
		if !frame.Wrapped {
			return p.drain(m, frame.Now, frame.Cycle)
		}
		// finish the cycle that just ended before looping; the clock wraps at
		// most once per frame
		n := p.drain(m, p.limit, frame.Cycle-1)
		if err := p.reset(m, frame.Cycle); err != nil {
			p.logger.Error("cycle reset failed", "entity", m.Entity(), "error", err)
		}
		return n
	}
	return 0
}

func (p *Player) reset(m *timeline.Manager, cycle uint64) error {
	pose, err := m.StartCountdown(p.countdown)
	if err != nil {
		return err
	}
	if _, ok := m.Published().StartPose(); ok {
		p.positions.SetPosition(m.Entity(), pose)
	}
	p.out.Push(core.Dispatch{
		Entity: m.Entity(),
		Kind:   core.DispatchReset,
		Cycle:  cycle,
		Pos:    pose,
	})
	p.cycles.Add(context.Background(), 1)
	return nil
}

func (p *Player) drain(m *timeline.Manager, now core.TimeStamp, cycle uint64) int {
	n := 0
	for {
		ev, ok := m.NextDue(now)
		if !ok {
			break
		}
		n++
		if m.Dead() {
			continue
		}
		p.dispatch(m, ev, cycle)
	}
	if n > 0 {
		p.dispatched.Add(context.Background(), int64(n),
			metric.WithAttributes(attribute.Int64("entity", int64(m.Entity()))))
	}
	return n
}

func (p *Player) dispatch(m *timeline.Manager, ev core.TimelineEvent, cycle uint64) {
	d := core.Dispatch{Entity: m.Entity(), Cycle: cycle, Timestamp: ev.Timestamp}

	switch t := ev.Type.(type) {
	case core.Movement:
		p.positions.SetPosition(m.Entity(), t.To)
		d.Kind = core.DispatchMove
		d.Pos = t.To
	case core.Ability:
		// consumers get their own copy of the target
		a := core.NewAbility(t.Kind, t.Target)
		p.abilities.Activate(m.Entity(), a.Kind, a.Target)
		d.Kind = core.DispatchAbility
		d.Ability = a.Kind
		d.Target = a.Target
	case core.Death:
		m.MarkDead()
		d.Kind = core.DispatchDeath
	default:
		p.logger.Error("unhandled event type", "entity", m.Entity(), "type", fmt.Sprintf("%T", t))
		return
	}

	p.out.Push(d)
}
