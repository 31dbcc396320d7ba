// Package storage persists published timelines so ghosts survive restarts.
package storage

import (
	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Only published timelines are ever stored; drafts never leave the recorder.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveTimeline stores p as the entity's timeline, replacing any earlier one.
	SaveTimeline(arena string, entity core.EntityID, p *timeline.Published) error
	// LoadTimeline returns core.ErrTimelineNotFound when nothing is saved.
	LoadTimeline(arena string, entity core.EntityID) (*timeline.Published, error)
	// ListTimelines returns summaries ordered by entity id.
	ListTimelines(arena string) ([]timeline.Summary, error)
}

// Exporter is an optional interface for backends that write files on Close.
type Exporter interface {
	ExportedFiles() []string
}
