package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

func sampleTimeline(t *testing.T) *timeline.Published {
	t.Helper()
	d := timeline.NewDraft(core.CycleLength)
	require.NoError(t, d.Append(2, core.NewAbility("AutoShot", nil)))
	require.NoError(t, d.Append(0, core.Movement{To: core.GridPos{Col: 1}}))
	return d.Finalize("dump")
}

func TestBackend_SaveLoadInMemory(t *testing.T) {
	b, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	p := sampleTimeline(t)
	require.NoError(t, b.SaveTimeline("north", 1, p))

	got, err := b.LoadTimeline("north", 1)
	require.NoError(t, err)
	assert.Equal(t, p.Events(), got.Events())
}

func TestBackend_CloseDumpsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghosts.db")
	b, err := New(Config{DumpPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	p := sampleTimeline(t)
	require.NoError(t, b.SaveTimeline("north", 1, p))
	require.NoError(t, b.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	dump, err := OpenDump(path, nil)
	require.NoError(t, err)
	defer dump.Close()

	got, err := dump.LoadTimeline("north", 1)
	require.NoError(t, err)
	assert.Equal(t, p.Events(), got.Events())
}

func TestBackend_PeriodicDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghosts.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.SaveTimeline("north", 1, sampleTimeline(t)))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBackend_CloseTwice(t *testing.T) {
	b, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.Close())
	assert.NotPanics(t, func() { b.Close() })
}
