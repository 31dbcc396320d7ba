package timeline

import (
	"time"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Document is the persisted form of a published timeline.
type Document struct {
	Arena   string               `json:"arena"`
	Entity  core.EntityID        `json:"entity"`
	Session string               `json:"session"`
	Limit   core.TimeStamp       `json:"limit"`
	SavedAt time.Time            `json:"savedAt"`
	Events  []core.TimelineEvent `json:"events"`
}

// Summary describes a saved timeline without its events.
type Summary struct {
	Arena    string
	Entity   core.EntityID
	Session  string
	Events   int
	Duration core.TimeStamp
	SavedAt  time.Time
}

// NewDocument snapshots p for storage.
func NewDocument(arena string, entity core.EntityID, p *Published, savedAt time.Time) Document {
	return Document{
		Arena:   arena,
		Entity:  entity,
		Session: p.Session(),
		Limit:   p.Limit(),
		SavedAt: savedAt.UTC(),
		Events:  p.Events(),
	}
}

// Restore rebuilds the published timeline, validating the events.
func (d Document) Restore() (*Published, error) {
	limit := d.Limit
	if limit <= 0 {
		limit = core.CycleLength
	}
	return Restore(d.Events, limit, d.Session)
}

// Summary returns the document's listing entry.
func (d Document) Summary() Summary {
	s := Summary{
		Arena:   d.Arena,
		Entity:  d.Entity,
		Session: d.Session,
		Events:  len(d.Events),
		SavedAt: d.SavedAt,
	}
	if n := len(d.Events); n > 0 {
		s.Duration = d.Events[n-1].Timestamp
	}
	return s
}
