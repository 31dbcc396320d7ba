// Package memory stores timelines in a map and exports them to JSON files
// on Close. Exports found in the output directory are loaded back on Init.
package memory

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

type key struct {
	arena  string
	entity core.EntityID
}

// Backend stores timeline documents in memory
type Backend struct {
	cfg    config.MemoryConfig
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	documents map[key]timeline.Document
	exported  []string
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		documents: make(map[key]timeline.Document),
	}
}

// Init loads any earlier exports from the output directory.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	docs, err := importDir(b.cfg.OutputDir)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range docs {
		k := key{d.Arena, d.Entity}
		if prev, ok := b.documents[k]; ok && prev.SavedAt.After(d.SavedAt) {
			continue
		}
		b.documents[k] = d
	}
	if len(docs) > 0 {
		b.logger.Info("loaded exported timelines", "dir", b.cfg.OutputDir, "count", len(docs))
	}
	return nil
}

// Close writes every stored timeline to disk.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// SaveTimeline snapshots p under (arena, entity).
func (b *Backend) SaveTimeline(arena string, entity core.EntityID, p *timeline.Published) error {
	if p == nil {
		return fmt.Errorf("arena %s entity %d: nil timeline", arena, entity)
	}
	doc := timeline.NewDocument(arena, entity, p, b.now())

	b.mu.Lock()
	defer b.mu.Unlock()
	b.documents[key{arena, entity}] = doc
	return nil
}

// LoadTimeline restores the saved timeline for (arena, entity).
func (b *Backend) LoadTimeline(arena string, entity core.EntityID) (*timeline.Published, error) {
	b.mu.RLock()
	doc, ok := b.documents[key{arena, entity}]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("arena %s entity %d: %w", arena, entity, core.ErrTimelineNotFound)
	}
	p, err := doc.Restore()
	if err != nil {
		return nil, fmt.Errorf("arena %s entity %d: %w", arena, entity, err)
	}
	return p, nil
}

// ListTimelines returns the arena's saved timelines ordered by entity.
func (b *Backend) ListTimelines(arena string) ([]timeline.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []timeline.Summary
	for k, d := range b.documents {
		if k.arena == arena {
			out = append(out, d.Summary())
		}
	}
	slices.SortFunc(out, func(x, y timeline.Summary) int {
		switch {
		case x.Entity < y.Entity:
			return -1
		case x.Entity > y.Entity:
			return 1
		}
		return 0
	})
	return out, nil
}

// ExportedFiles returns the files written by the last Close.
func (b *Backend) ExportedFiles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.exported)
}
