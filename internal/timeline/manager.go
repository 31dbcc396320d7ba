package timeline

import (
	"fmt"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Mode is the per-entity timeline state. Exactly one mode is active at a time.
type Mode interface {
	mode()
	String() string
}

// Idle means the entity is neither recording nor replaying.
type Idle struct{}

// Recording carries the session's draft and the time elapsed since it began.
type Recording struct {
	Draft   *Draft
	Elapsed core.TimeStamp
	Session string
}

// CountdownToPlayback is the pre-roll before the cursor starts moving.
type CountdownToPlayback struct {
	Remaining core.TimeStamp
}

// Playback replays the published timeline. Cursor is the index of the next
// unconsumed event.
type Playback struct {
	Cursor int
	Dead   bool
}

func (Idle) mode()                {}
func (Recording) mode()           {}
func (CountdownToPlayback) mode() {}
func (Playback) mode()            {}

func (Idle) String() string                { return "idle" }
func (Recording) String() string           { return "recording" }
func (CountdownToPlayback) String() string { return "countdown" }
func (Playback) String() string            { return "playback" }

// Manager tracks the timeline state of one entity: its current mode and the
// one published timeline it retains across mode changes.
type Manager struct {
	entity    core.EntityID
	limit     core.TimeStamp
	mode      Mode
	published *Published
}

// NewManager creates an idle manager for an entity recording against limit.
func NewManager(entity core.EntityID, limit core.TimeStamp) *Manager {
	return &Manager{
		entity: entity,
		limit:  limit,
		mode:   Idle{},
	}
}

// Entity returns the managed entity id.
func (m *Manager) Entity() core.EntityID {
	return m.entity
}

// Mode returns the current mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Published returns the retained timeline, or nil if none was finalized yet.
func (m *Manager) Published() *Published {
	return m.published
}

// Publish installs a timeline, e.g. one restored from storage. It is refused
// while recording so a live draft is never shadowed, and refused when p was
// recorded against a different cycle length. A countdown or playback in
// progress ends and the manager returns to Idle, since its cursor indexed the
// old timeline.
func (m *Manager) Publish(p *Published) error {
	if p == nil {
		return fmt.Errorf("entity %d: %w", m.entity, core.ErrNoPublishedTimeline)
	}
	if _, ok := m.mode.(Recording); ok {
		return fmt.Errorf("entity %d: %w", m.entity, core.ErrAlreadyRecording)
	}
	if p.Limit() != m.limit {
		return fmt.Errorf("entity %d: %w: recorded against %s, arena cycle is %s",
			m.entity, core.ErrCorruptTimeline, p.Limit(), m.limit)
	}
	m.published = p
	m.Stop()
	return nil
}

// Begin starts a recording session whose first event is a Movement to start
// at time zero.
func (m *Manager) Begin(start core.GridPos, session string) error {
	switch m.mode.(type) {
	case Idle:
	case Recording:
		return fmt.Errorf("entity %d: %w", m.entity, core.ErrAlreadyRecording)
	default:
		return fmt.Errorf("entity %d in %s: %w", m.entity, m.mode, core.ErrNotIdle)
	}

	draft := NewDraft(m.limit)
	if err := draft.Append(0, core.Movement{To: start}); err != nil {
		return err
	}
	m.mode = Recording{Draft: draft, Session: session}
	return nil
}

// Append adds an event to the active draft.
func (m *Manager) Append(ts core.TimeStamp, ev core.EventType) error {
	rec, ok := m.mode.(Recording)
	if !ok {
		return fmt.Errorf("entity %d: %w", m.entity, core.ErrNotRecording)
	}
	if err := rec.Draft.Append(ts, ev); err != nil {
		return fmt.Errorf("entity %d: %w", m.entity, err)
	}
	return nil
}

// Elapse adds dt to the session clock of an active recording and returns the
// new elapsed time.
func (m *Manager) Elapse(dt core.TimeStamp) (core.TimeStamp, error) {
	rec, ok := m.mode.(Recording)
	if !ok {
		return 0, fmt.Errorf("entity %d: %w", m.entity, core.ErrNotRecording)
	}
	rec.Elapsed += dt
	if rec.Elapsed > m.limit {
		rec.Elapsed = m.limit
	}
	m.mode = rec
	return rec.Elapsed, nil
}

// Cancel drops the active draft and returns to Idle. Cancelling when no
// recording is active does nothing.
func (m *Manager) Cancel() {
	if _, ok := m.mode.(Recording); ok {
		m.mode = Idle{}
	}
}

// Finalize promotes the draft to the entity's published timeline, replacing
// any previous one, and returns to Idle.
func (m *Manager) Finalize() (*Published, error) {
	rec, ok := m.mode.(Recording)
	if !ok {
		return nil, fmt.Errorf("entity %d: %w", m.entity, core.ErrNotRecording)
	}
	m.published = rec.Draft.Finalize(rec.Session)
	m.mode = Idle{}
	return m.published, nil
}

// StartCountdown enters CountdownToPlayback and returns the start pose the
// entity must be reset to.
func (m *Manager) StartCountdown(length core.TimeStamp) (core.GridPos, error) {
	if _, ok := m.mode.(Recording); ok {
		return core.GridPos{}, fmt.Errorf("entity %d: %w", m.entity, core.ErrAlreadyRecording)
	}
	if m.published == nil {
		return core.GridPos{}, fmt.Errorf("entity %d: %w", m.entity, core.ErrNoPublishedTimeline)
	}
	pose, _ := m.published.StartPose()
	m.mode = CountdownToPlayback{Remaining: length}
	return pose, nil
}

// Countdown consumes dt of the pre-roll. When it runs out the manager moves
// to Playback with the cursor at the first event and Countdown returns true.
func (m *Manager) Countdown(dt core.TimeStamp) bool {
	cd, ok := m.mode.(CountdownToPlayback)
	if !ok {
		return false
	}
	cd.Remaining -= dt
	if cd.Remaining > 0 {
		m.mode = cd
		return false
	}
	m.mode = Playback{}
	return true
}

// NextDue returns the next unconsumed event if its timestamp is <= now and
// advances the cursor past it. Each event is returned at most once per pass.
func (m *Manager) NextDue(now core.TimeStamp) (core.TimelineEvent, bool) {
	pb, ok := m.mode.(Playback)
	if !ok || m.published == nil || pb.Cursor >= m.published.Len() {
		return core.TimelineEvent{}, false
	}
	ev := m.published.At(pb.Cursor)
	if ev.Timestamp > now {
		return core.TimelineEvent{}, false
	}
	pb.Cursor++
	m.mode = pb
	return ev, true
}

// MarkDead flags the ghost dead for the rest of the current pass.
func (m *Manager) MarkDead() {
	if pb, ok := m.mode.(Playback); ok {
		pb.Dead = true
		m.mode = pb
	}
}

// Dead reports whether the ghost died during the current pass.
func (m *Manager) Dead() bool {
	pb, ok := m.mode.(Playback)
	return ok && pb.Dead
}

// Stop leaves countdown or playback and returns to Idle, keeping the
// published timeline.
func (m *Manager) Stop() {
	switch m.mode.(type) {
	case CountdownToPlayback, Playback:
		m.mode = Idle{}
	}
}
