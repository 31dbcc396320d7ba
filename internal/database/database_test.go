package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
)

type row struct {
	ID   uint
	Name string
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host: "db", Port: "5433", Username: "u", Password: "p", Database: "ghosts",
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=ghosts sslmode=disable", dsn)
}

func TestOpenSQLite_InMemoryIsPrivate(t *testing.T) {
	a, err := OpenSQLite("")
	require.NoError(t, err)
	b, err := OpenSQLite("")
	require.NoError(t, err)

	require.NoError(t, a.AutoMigrate(&row{}))
	require.NoError(t, a.Create(&row{Name: "only in a"}).Error)

	assert.False(t, b.Migrator().HasTable(&row{}))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	require.NoError(t, db.Create(&row{Name: "ghost"}).Error)

	path := filepath.Join(t.TempDir(), "dumps", "arena.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	disk, err := OpenSQLite(path)
	require.NoError(t, err)
	var got row
	require.NoError(t, disk.First(&got).Error)
	assert.Equal(t, "ghost", got.Name)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSQLite("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}
