package storage

import (
	"fmt"
	"log/slog"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/storage/memory"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/storage/postgres"
	sqlitestorage "github.com/matthewharwood/arenic-bevy-sub009/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, logger), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, logger)
	case "memory":
		return memory.New(cfg.Memory, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
