package timeline

import (
	"fmt"
	"iter"
	"sort"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Published is a finalized, time-sorted ghost track. It is never mutated
// after construction and may be shared by any number of players. Every
// accessor hands out deep copies, ability targets included.
type Published struct {
	events  []core.TimelineEvent
	limit   core.TimeStamp
	session string
}

// Restore rebuilds a Published timeline from previously persisted events.
// It refuses input that breaks the sorted, in-range invariant.
func Restore(events []core.TimelineEvent, limit core.TimeStamp, session string) (*Published, error) {
	for i, ev := range events {
		if !ev.Timestamp.InRange(limit) {
			return nil, fmt.Errorf("%w: event %d at %s outside [0, %s]", core.ErrCorruptTimeline, i, ev.Timestamp, limit)
		}
		if ev.Type == nil {
			return nil, fmt.Errorf("%w: event %d has no type", core.ErrCorruptTimeline, i)
		}
		if i > 0 && ev.Timestamp < events[i-1].Timestamp {
			return nil, fmt.Errorf("%w: event %d at %s precedes %s", core.ErrCorruptTimeline, i, ev.Timestamp, events[i-1].Timestamp)
		}
	}
	return &Published{events: cloneEvents(events), limit: limit, session: session}, nil
}

// cloneEvent copies ev so that no pointer inside it is shared with the caller.
func cloneEvent(ev core.TimelineEvent) core.TimelineEvent {
	if a, ok := ev.Type.(core.Ability); ok {
		ev.Type = core.NewAbility(a.Kind, a.Target)
	}
	return ev
}

func cloneEvents(events []core.TimelineEvent) []core.TimelineEvent {
	if events == nil {
		return nil
	}
	out := make([]core.TimelineEvent, len(events))
	for i, ev := range events {
		out[i] = cloneEvent(ev)
	}
	return out
}

// Len returns the number of events.
func (p *Published) Len() int {
	return len(p.events)
}

// At returns the i-th event in timestamp order.
func (p *Published) At(i int) core.TimelineEvent {
	return cloneEvent(p.events[i])
}

// Events returns a copy of the sorted event list.
func (p *Published) Events() []core.TimelineEvent {
	return cloneEvents(p.events)
}

// All iterates the events in timestamp order.
func (p *Published) All() iter.Seq2[int, core.TimelineEvent] {
	return func(yield func(int, core.TimelineEvent) bool) {
		for i, ev := range p.events {
			if !yield(i, cloneEvent(ev)) {
				return
			}
		}
	}
}

// Range returns the events with from <= timestamp <= to, in order.
func (p *Published) Range(from, to core.TimeStamp) []core.TimelineEvent {
	if to < from {
		return nil
	}
	lo := sort.Search(len(p.events), func(i int) bool { return p.events[i].Timestamp >= from })
	hi := sort.Search(len(p.events), func(i int) bool { return p.events[i].Timestamp > to })
	if lo >= hi {
		return nil
	}
	return cloneEvents(p.events[lo:hi])
}

// StartPose returns the destination of the first Movement event at time zero,
// which recording always emits.
func (p *Published) StartPose() (core.GridPos, bool) {
	for _, ev := range p.events {
		if ev.Timestamp > 0 {
			break
		}
		if mv, ok := ev.Type.(core.Movement); ok {
			return mv.To, true
		}
	}
	return core.GridPos{}, false
}

// Duration returns the timestamp of the last event, or zero if empty.
func (p *Published) Duration() core.TimeStamp {
	if len(p.events) == 0 {
		return 0
	}
	return p.events[len(p.events)-1].Timestamp
}

// Limit returns the cycle length the timeline was recorded against.
func (p *Published) Limit() core.TimeStamp {
	return p.limit
}

// Session returns the id of the recording session that produced the timeline.
func (p *Published) Session() string {
	return p.session
}
