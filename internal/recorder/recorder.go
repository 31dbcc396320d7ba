// Package recorder captures a controlled entity's actions into a draft
// timeline and finalizes it into an immutable published timeline.
package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// PositionReader resolves an entity's current grid position.
type PositionReader interface {
	Position(id core.EntityID) (core.GridPos, bool)
}

// Recorder drives the recording half of a timeline manager. It holds no
// per-entity state of its own; everything lives in the manager.
type Recorder struct {
	positions PositionReader
	logger    *slog.Logger
	session   func() string

	rejected  metric.Int64Counter
	finalized metric.Int64Counter
}

// New creates a recorder reading start poses from positions.
func New(positions PositionReader, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		positions: positions,
		logger:    logger,
		session:   uuid.NewString,
	}

	m := meter()
	var err error

	r.rejected, err = m.Int64Counter(
		"recorder.events.rejected",
		metric.WithDescription("Events refused by an active recording"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	r.finalized, err = m.Int64Counter(
		"recorder.timelines.finalized",
		metric.WithDescription("Recordings promoted to published timelines"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finalized counter: %w", err)
	}

	return r, nil
}

// Begin starts a session for the manager's entity and returns its session id.
// The entity's current position becomes the Movement at t=0.
func (r *Recorder) Begin(m *timeline.Manager) (string, error) {
	pos, ok := r.positions.Position(m.Entity())
	if !ok {
		return "", fmt.Errorf("entity %d: %w", m.Entity(), core.ErrUnknownEntity)
	}
	session := r.session()
	if err := m.Begin(pos, session); err != nil {
		return "", err
	}
	r.logger.Info("recording started", "entity", m.Entity(), "session", session, "start", pos.String())
	return session, nil
}

// Record appends ev at ts. Out-of-range events are refused and the session
// continues.
func (r *Recorder) Record(m *timeline.Manager, ts core.TimeStamp, ev core.EventType) error {
	if err := m.Append(ts, ev); err != nil {
		r.reject(m.Entity(), err)
		return err
	}
	return nil
}

// Stamp records ev at the session's current elapsed time.
func (r *Recorder) Stamp(m *timeline.Manager, ev core.EventType) error {
	rec, ok := m.Mode().(timeline.Recording)
	if !ok {
		err := fmt.Errorf("entity %d: %w", m.Entity(), core.ErrNotRecording)
		r.reject(m.Entity(), err)
		return err
	}
	return r.Record(m, rec.Elapsed, ev)
}

// Cancel discards the active draft. The published timeline is untouched.
func (r *Recorder) Cancel(m *timeline.Manager) {
	rec, ok := m.Mode().(timeline.Recording)
	if !ok {
		return
	}
	m.Cancel()
	r.logger.Info("recording cancelled", "entity", m.Entity(), "session", rec.Session, "events", rec.Draft.Len())
}

// Finalize promotes the active draft and returns the new timeline.
func (r *Recorder) Finalize(m *timeline.Manager) (*timeline.Published, error) {
	p, err := m.Finalize()
	if err != nil {
		return nil, err
	}
	r.finalized.Add(context.Background(), 1)
	r.logger.Info("recording finalized",
		"entity", m.Entity(),
		"session", p.Session(),
		"events", p.Len(),
		"duration", p.Duration().String())
	return p, nil
}

// Advance moves the session clock by dt. When the session reaches the
// timeline limit it is finalized and the new timeline is returned.
// Entities that are not recording are ignored.
func (r *Recorder) Advance(m *timeline.Manager, dt core.TimeStamp) (*timeline.Published, error) {
	if _, ok := m.Mode().(timeline.Recording); !ok {
		return nil, nil
	}
	elapsed, err := m.Elapse(dt)
	if err != nil {
		return nil, err
	}
	rec := m.Mode().(timeline.Recording)
	if elapsed < rec.Draft.Limit() {
		return nil, nil
	}
	r.logger.Debug("recording reached cycle bound", "entity", m.Entity(), "elapsed", elapsed.String())
	return r.Finalize(m)
}

func (r *Recorder) reject(entity core.EntityID, err error) {
	r.rejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int64("entity", int64(entity))))
	r.logger.Debug("event rejected", "entity", entity, "error", err)
}
