// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with an internal queue and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/database"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/queue"
	gormstorage "github.com/matthewharwood/arenic-bevy-sub009/internal/storage/gorm"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// DefaultFlushInterval is how often queued saves are written.
const DefaultFlushInterval = 2 * time.Second

type pendingSave struct {
	arena    string
	entity   core.EntityID
	timeline *timeline.Published
}

// Backend queues saves and writes them from a background goroutine.
// Published timelines are immutable, so they can be written after the
// caller has moved on.
type Backend struct {
	cfg           config.PostgresConfig
	log           *slog.Logger
	db            *gorm.DB
	store         *gormstorage.Backend
	pending       *queue.Queue[pendingSave]
	FlushInterval time.Duration

	flushMu  sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a backend that connects to Postgres on Init.
func New(cfg config.PostgresConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:           cfg,
		log:           logger,
		pending:       queue.New[pendingSave](),
		FlushInterval: DefaultFlushInterval,
	}
}

// NewWithDB creates a backend over an already open connection.
func NewWithDB(db *gorm.DB, logger *slog.Logger) *Backend {
	b := New(config.PostgresConfig{}, logger)
	b.db = db
	return b
}

// Init connects if needed, migrates the schema and starts the DB writer.
func (b *Backend) Init() error {
	if b.db == nil {
		db, err := database.OpenPostgres(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.db = db
		b.log.Info("Connected to database", "host", b.cfg.Host, "database", b.cfg.Database)
	}

	b.store = gormstorage.New(b.db, b.log)
	if err := b.store.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.writer()
	return nil
}

// Close stops the writer, flushes what is queued and closes the connection.
func (b *Backend) Close() error {
	if b.store == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()

	flushErr := b.Flush()
	return errors.Join(flushErr, b.store.Close())
}

// SaveTimeline queues p for writing.
func (b *Backend) SaveTimeline(arena string, entity core.EntityID, p *timeline.Published) error {
	if p == nil {
		return fmt.Errorf("arena %s entity %d: nil timeline", arena, entity)
	}
	b.pending.Push(pendingSave{arena: arena, entity: entity, timeline: p})
	return nil
}

// LoadTimeline flushes queued saves, then reads.
func (b *Backend) LoadTimeline(arena string, entity core.EntityID) (*timeline.Published, error) {
	if b.store == nil {
		return nil, fmt.Errorf("postgres backend not initialized")
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.store.LoadTimeline(arena, entity)
}

// ListTimelines flushes queued saves, then lists.
func (b *Backend) ListTimelines(arena string) ([]timeline.Summary, error) {
	if b.store == nil {
		return nil, fmt.Errorf("postgres backend not initialized")
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.store.ListTimelines(arena)
}

// Pending returns the number of queued saves.
func (b *Backend) Pending() int {
	return b.pending.Len()
}

// Flush writes every queued save. Later saves for the same entity win.
// Saves that fail to write go back to the front of the queue for the next
// flush.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	var errs []error
	var failed []pendingSave
	for _, s := range latestSaves(b.pending.Drain()) {
		if err := b.store.SaveTimeline(s.arena, s.entity, s.timeline); err != nil {
			b.log.Error("Failed to write timeline", "arena", s.arena, "entity", s.entity, "error", err)
			errs = append(errs, err)
			failed = append(failed, s)
		}
	}
	b.pending.Requeue(failed...)
	return errors.Join(errs...)
}

// latestSaves keeps only the last save of each entity, in queue order.
func latestSaves(saves []pendingSave) []pendingSave {
	type key struct {
		arena  string
		entity core.EntityID
	}
	last := make(map[key]int, len(saves))
	for i, s := range saves {
		last[key{s.arena, s.entity}] = i
	}
	out := make([]pendingSave, 0, len(last))
	for i, s := range saves {
		if last[key{s.arena, s.entity}] == i {
			out = append(out, s)
		}
	}
	return out
}

func (b *Backend) writer() {
	defer b.wg.Done()
	interval := b.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.pending.Empty() {
				continue
			}
			start := time.Now()
			n := b.pending.Len()
			if err := b.Flush(); err == nil {
				b.log.Debug("Flushed timelines", "count", n, "duration", time.Since(start))
			}
		}
	}
}
