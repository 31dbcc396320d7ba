// Package timeline holds the recorded event tracks of a ghost: the mutable
// draft built while recording, the immutable published track replayed by the
// player, and the per-entity state machine moving between the two.
package timeline

import (
	"fmt"
	"slices"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Draft is an append-only event buffer owned by one recording session.
// Events may arrive out of order; they are sorted once, at Finalize.
type Draft struct {
	limit  core.TimeStamp
	events []core.TimelineEvent
}

// NewDraft creates an empty draft accepting timestamps in [0, limit].
func NewDraft(limit core.TimeStamp) *Draft {
	return &Draft{
		limit:  limit,
		events: make([]core.TimelineEvent, 0, 64),
	}
}

// Append adds one event. Out-of-range timestamps are rejected and the draft
// is left unchanged.
func (d *Draft) Append(ts core.TimeStamp, ev core.EventType) error {
	if !ts.InRange(d.limit) {
		return fmt.Errorf("%w: %s not in [0, %s]", core.ErrTimestampOutOfBounds, ts, d.limit)
	}
	if ev == nil {
		return fmt.Errorf("event at %s has no type", ts)
	}
	d.events = append(d.events, cloneEvent(core.TimelineEvent{Timestamp: ts, Type: ev}))
	return nil
}

// Len returns the number of buffered events.
func (d *Draft) Len() int {
	return len(d.events)
}

// Limit returns the upper timestamp bound of the draft.
func (d *Draft) Limit() core.TimeStamp {
	return d.limit
}

// Finalize sorts the buffered events by timestamp and wraps them into a
// Published timeline. Events sharing a timestamp keep their append order.
// The draft must not be used afterwards.
func (d *Draft) Finalize(session string) *Published {
	events := slices.Clone(d.events)
	slices.SortStableFunc(events, func(a, b core.TimelineEvent) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	d.events = nil
	return &Published{events: events, limit: d.limit, session: session}
}
