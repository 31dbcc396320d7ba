// Package handlers binds operator commands to arena operations.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/arena"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/dispatcher"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/parser"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/storage"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Command names accepted by the service.
const (
	CmdEntitySpawn    = ":ENTITY:SPAWN:"
	CmdRecordStart    = ":RECORD:START:"
	CmdRecordEvent    = ":RECORD:EVENT:"
	CmdRecordStamp    = ":RECORD:STAMP:"
	CmdRecordCancel   = ":RECORD:CANCEL:"
	CmdRecordFinalize = ":RECORD:FINALIZE:"
	CmdPlaybackStart  = ":PLAYBACK:START:"
	CmdPlaybackStop   = ":PLAYBACK:STOP:"
	CmdTimelineSave   = ":TIMELINE:SAVE:"
	CmdTimelineLoad   = ":TIMELINE:LOAD:"
)

const defaultSaveBacklog = 64

// ErrNoBackend is returned by persistence commands when storage is disabled.
var ErrNoBackend = errors.New("no storage backend configured")

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Registry *arena.Registry
	Backend  storage.Backend // optional
	Logger   *slog.Logger

	// SaveBacklog sizes the async save queue. Zero means the default.
	SaveBacklog int
}

// Service provides handler methods for the command surface.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.SaveBacklog <= 0 {
		deps.SaveBacklog = defaultSaveBacklog
	}
	return &Service{deps: deps, logger: logger}
}

// RegisterHandlers registers every command with d.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdEntitySpawn, s.wrap(s.Spawn), dispatcher.Logged())
	d.Register(CmdRecordStart, s.wrap(s.RecordStart), dispatcher.Logged())
	d.Register(CmdRecordEvent, s.wrap(s.RecordEvent), dispatcher.Logged())
	d.Register(CmdRecordStamp, s.wrap(s.RecordStamp), dispatcher.Logged())
	d.Register(CmdRecordCancel, s.wrap(s.RecordCancel), dispatcher.Logged())
	d.Register(CmdRecordFinalize, s.wrap(s.RecordFinalize), dispatcher.Logged())
	d.Register(CmdPlaybackStart, s.wrap(s.PlaybackStart), dispatcher.Logged())
	d.Register(CmdPlaybackStop, s.wrap(s.PlaybackStop), dispatcher.Logged())
	d.Register(CmdTimelineLoad, s.wrap(s.TimelineLoad), dispatcher.Logged())

	// saves read an immutable timeline, so they can run off the tick loop
	d.Register(CmdTimelineSave, s.wrap(s.TimelineSave),
		dispatcher.Buffered(s.deps.SaveBacklog), dispatcher.Blocking(), dispatcher.Logged())
}

func (s *Service) wrap(fn func([]string) (any, error)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		return fn(e.Args)
	}
}

func (s *Service) lookup(data []string) (*arena.Arena, parser.EntityRef, error) {
	ref, err := parser.ParseEntityRef(data)
	if err != nil {
		return nil, ref, err
	}
	a, err := s.deps.Registry.Get(ref.Arena)
	if err != nil {
		return nil, ref, err
	}
	return a, ref, nil
}

// Spawn handles [arena, entity, col, row].
func (s *Service) Spawn(data []string) (any, error) {
	sp, err := parser.ParseSpawn(data)
	if err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}
	a, err := s.deps.Registry.Get(sp.Arena)
	if err != nil {
		return nil, err
	}
	a.Spawn(sp.Entity, sp.Pos)
	return "ok", nil
}

// RecordStart handles [arena, entity] and returns the session id.
func (s *Service) RecordStart(data []string) (any, error) {
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	session, err := a.BeginRecording(ref.Entity)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// RecordEvent handles [arena, entity, ts, kind, ...].
func (s *Service) RecordEvent(data []string) (any, error) {
	ev, err := parser.ParseRecordEvent(data)
	if err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}
	a, err := s.deps.Registry.Get(ev.Arena)
	if err != nil {
		return nil, err
	}
	if err := a.Record(ev.Entity, ev.Timestamp, ev.Type); err != nil {
		return nil, err
	}
	return "ok", nil
}

// RecordStamp handles [arena, entity, kind, ...], recording at the
// session's elapsed time.
func (s *Service) RecordStamp(data []string) (any, error) {
	ev, err := parser.ParseStampEvent(data)
	if err != nil {
		return nil, fmt.Errorf("record stamp: %w", err)
	}
	a, err := s.deps.Registry.Get(ev.Arena)
	if err != nil {
		return nil, err
	}
	if err := a.Stamp(ev.Entity, ev.Type); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Service) RecordCancel(data []string) (any, error) {
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	if err := a.CancelRecording(ref.Entity); err != nil {
		return nil, err
	}
	return "ok", nil
}

// RecordFinalize publishes the draft and returns the event count.
func (s *Service) RecordFinalize(data []string) (any, error) {
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	p, err := a.FinalizeRecording(ref.Entity)
	if err != nil {
		return nil, err
	}
	return p.Len(), nil
}

func (s *Service) PlaybackStart(data []string) (any, error) {
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	if err := a.StartPlayback(ref.Entity); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Service) PlaybackStop(data []string) (any, error) {
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	if err := a.StopPlayback(ref.Entity); err != nil {
		return nil, err
	}
	return "ok", nil
}

// TimelineSave persists the entity's published timeline.
func (s *Service) TimelineSave(data []string) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	p, err := a.Published(ref.Entity)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("entity %d: %w", ref.Entity, core.ErrNoPublishedTimeline)
	}
	if err := s.deps.Backend.SaveTimeline(ref.Arena, ref.Entity, p); err != nil {
		return nil, fmt.Errorf("saving timeline: %w", err)
	}
	s.logger.Info("timeline saved", "arena", ref.Arena, "entity", ref.Entity, "events", p.Len())
	return "ok", nil
}

// TimelineLoad replaces the entity's published timeline with the stored one.
func (s *Service) TimelineLoad(data []string) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	a, ref, err := s.lookup(data)
	if err != nil {
		return nil, err
	}
	p, err := s.deps.Backend.LoadTimeline(ref.Arena, ref.Entity)
	if err != nil {
		return nil, fmt.Errorf("loading timeline: %w", err)
	}
	if err := a.Publish(ref.Entity, p); err != nil {
		return nil, err
	}
	return p.Len(), nil
}

// PersistFinalized returns an arena.FinalizeFunc that saves every published
// timeline to the backend.
func (s *Service) PersistFinalized() arena.FinalizeFunc {
	return func(arenaID string, entity core.EntityID, p *timeline.Published) {
		if s.deps.Backend == nil {
			return
		}
		if err := s.deps.Backend.SaveTimeline(arenaID, entity, p); err != nil {
			s.logger.Error("saving finalized timeline", "arena", arenaID, "entity", entity, "error", err)
		}
	}
}
