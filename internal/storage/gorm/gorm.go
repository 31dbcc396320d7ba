// Package gormstorage implements the storage.Backend interface on any GORM
// dialect. The sqlite and postgres backends only differ in how they open the
// connection.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// TimelineRecord is one entity's saved timeline.
type TimelineRecord struct {
	ID         uint           `gorm:"primarykey"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	Arena      string         `gorm:"size:64;not null;uniqueIndex:idx_timeline_arena_entity"`
	Entity     uint64         `gorm:"not null;uniqueIndex:idx_timeline_arena_entity"`
	Session    string         `gorm:"size:64"`
	CycleLimit float64        `gorm:"not null"`
	EventCount int            `gorm:"not null"`
	Duration   float64        `gorm:"not null"`
	Events     datatypes.JSON `gorm:"not null"`
}

func (*TimelineRecord) TableName() string {
	return "ghost_timelines"
}

// Backend stores timelines as rows with a JSON events column.
type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps an open connection.
func New(db *gorm.DB, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{db: db, logger: logger}
}

// DB exposes the connection for dialect-specific wrappers.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("no database connection")
	}
	b.logger.Info("Migrating schema", "dialect", b.db.Dialector.Name())
	if err := b.db.AutoMigrate(&TimelineRecord{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// SaveTimeline upserts the entity's row.
func (b *Backend) SaveTimeline(arena string, entity core.EntityID, p *timeline.Published) error {
	if p == nil {
		return fmt.Errorf("arena %s entity %d: nil timeline", arena, entity)
	}
	events, err := json.Marshal(p.Events())
	if err != nil {
		return fmt.Errorf("arena %s entity %d: encoding events: %w", arena, entity, err)
	}

	rec := TimelineRecord{
		Arena:      arena,
		Entity:     uint64(entity),
		Session:    p.Session(),
		CycleLimit: p.Limit().Seconds(),
		EventCount: p.Len(),
		Duration:   p.Duration().Seconds(),
		Events:     datatypes.JSON(events),
	}

	err = b.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "arena"}, {Name: "entity"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"session", "cycle_limit", "event_count", "duration", "events", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("arena %s entity %d: saving timeline: %w", arena, entity, err)
	}

	b.logger.Debug("timeline saved", "arena", arena, "entity", entity, "events", rec.EventCount)
	return nil
}

// LoadTimeline restores the entity's saved timeline.
func (b *Backend) LoadTimeline(arena string, entity core.EntityID) (*timeline.Published, error) {
	var rec TimelineRecord
	err := b.db.Where("arena = ? AND entity = ?", arena, uint64(entity)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("arena %s entity %d: %w", arena, entity, core.ErrTimelineNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("arena %s entity %d: loading timeline: %w", arena, entity, err)
	}
	return rec.restore()
}

// ListTimelines returns the arena's rows ordered by entity.
func (b *Backend) ListTimelines(arena string) ([]timeline.Summary, error) {
	var recs []TimelineRecord
	err := b.db.
		Select("arena", "entity", "session", "event_count", "duration", "updated_at").
		Where("arena = ?", arena).
		Order("entity").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("arena %s: listing timelines: %w", arena, err)
	}

	out := make([]timeline.Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, timeline.Summary{
			Arena:    r.Arena,
			Entity:   core.EntityID(r.Entity),
			Session:  r.Session,
			Events:   r.EventCount,
			Duration: core.TimeStamp(r.Duration),
			SavedAt:  r.UpdatedAt,
		})
	}
	return out, nil
}

func (r *TimelineRecord) restore() (*timeline.Published, error) {
	var events []core.TimelineEvent
	if err := json.Unmarshal(r.Events, &events); err != nil {
		return nil, fmt.Errorf("arena %s entity %d: %w: %v", r.Arena, r.Entity, core.ErrCorruptTimeline, err)
	}
	doc := timeline.Document{
		Arena:   r.Arena,
		Entity:  core.EntityID(r.Entity),
		Session: r.Session,
		Limit:   core.TimeStamp(r.CycleLimit),
		SavedAt: r.UpdatedAt,
		Events:  events,
	}
	p, err := doc.Restore()
	if err != nil {
		return nil, fmt.Errorf("arena %s entity %d: %w", r.Arena, r.Entity, err)
	}
	return p, nil
}
