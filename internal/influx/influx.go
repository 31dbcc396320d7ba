// Package influx exports per-cycle ghost stats to InfluxDB, falling back to
// a gzipped line-protocol file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/arena"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
)

// Measurement is the name of the per-cycle point.
const Measurement = "ghost_cycle"

// Sink writes one point per entity per completed cycle.
type Sink struct {
	mu     sync.Mutex
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	logger *slog.Logger
	now    func() time.Time

	backup     *gzip.Writer
	backupFile io.Closer
}

// Connect creates a sink for cfg. When the server does not answer a ping the
// sink writes to backupPath instead.
func Connect(ctx context.Context, cfg config.InfluxConfig, backupPath string, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{logger: logger, now: time.Now}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		logger.Warn("InfluxDB unreachable, writing to backup file", "url", cfg.URL, "backupPath", backupPath, "error", err)
		file, err := os.OpenFile(backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("error creating backup file: %w", err)
		}
		s.backup = gzip.NewWriter(file)
		s.backupFile = file
		return s, nil
	}

	if err := ensureBucket(ctx, client, cfg.Org, cfg.Bucket, logger); err != nil {
		client.Close()
		return nil, err
	}

	s.client = client
	s.writer = client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			logger.Error("Error sending data to InfluxDB", "bucket", cfg.Bucket, "error", writeErr)
		}
	}(s.writer.Errors())

	logger.Info("InfluxDB client initialized", "url", cfg.URL, "bucket", cfg.Bucket)
	return s, nil
}

// NewBackupSink creates a sink that only writes gzipped line protocol to w.
func NewBackupSink(w io.Writer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger, now: time.Now, backup: gzip.NewWriter(w)}
}

func ensureBucket(ctx context.Context, client influxdb2.Client, orgName, bucket string, logger *slog.Logger) error {
	org, err := client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		logger.Info("Organization not found, creating", "org", orgName)
		org, err = client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", orgName, err)
		}
	}

	if _, err = client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
		return nil
	}
	logger.Info("Bucket not found, creating", "bucket", bucket)

	rule := domain.RetentionRuleTypeExpire
	_, err = client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucket, err)
	}
	return nil
}

// CyclePoint builds the point for one entity's completed cycle.
func CyclePoint(s arena.Stats, at time.Time) *influxdb2_write.Point {
	tags := map[string]string{
		"arena":  s.Arena,
		"entity": strconv.FormatUint(uint64(s.Entity), 10),
	}
	if s.Session != "" {
		tags["session"] = s.Session
	}
	return influxdb2_write.NewPoint(Measurement,
		tags,
		map[string]any{
			"cycle":      int64(s.Cycle),
			"dispatched": int64(s.Dispatched),
			"abilities":  int64(s.Abilities),
			"died":       s.Died,
		},
		at)
}

// ObserveCycle implements arena.CycleObserver.
func (s *Sink) ObserveCycle(stats []arena.Stats) {
	at := s.now()
	for _, st := range stats {
		if err := s.WritePoint(CyclePoint(st, at)); err != nil {
			s.logger.Error("Error writing cycle point", "arena", st.Arena, "entity", st.Entity, "error", err)
		}
	}
}

// WritePoint writes a point to InfluxDB or the backup file.
func (s *Sink) WritePoint(point *influxdb2_write.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		s.writer.WritePoint(point)
		return nil
	}
	if s.backup == nil {
		return fmt.Errorf("influxDB sink closed")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := s.backup.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client or backup file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		s.writer.Flush()
		s.client.Close()
		s.writer = nil
		s.client = nil
	}
	if s.backup != nil {
		err := s.backup.Close()
		s.backup = nil
		if s.backupFile != nil {
			if cerr := s.backupFile.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return nil
}
