package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/arena"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/cache"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/dispatcher"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/logging"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/storage/memory"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

type harness struct {
	svc     *Service
	d       *dispatcher.Dispatcher
	arena   *arena.Arena
	backend *memory.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logManager := logging.NewSlogManager()
	logManager.Setup(nil, "error", nil)
	logger := logManager.Logger()

	a, err := arena.New(arena.Config{ID: "north", CycleLength: 10, Countdown: 1, Logger: logger}, cache.NewAbilityLog())
	require.NoError(t, err)
	reg := arena.NewRegistry()
	require.NoError(t, reg.Add(a))

	backend := memory.New(config.MemoryConfig{}, logger)
	require.NoError(t, backend.Init())

	svc := NewService(Dependencies{Registry: reg, Backend: backend, Logger: logger})
	d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	require.NoError(t, err)
	svc.RegisterHandlers(d)
	t.Cleanup(d.Close)

	return &harness{svc: svc, d: d, arena: a, backend: backend}
}

func (h *harness) send(cmd string, args ...string) (any, error) {
	return h.d.Dispatch(dispatcher.Event{Command: cmd, Args: args})
}

func TestRegisterHandlers_AllCommands(t *testing.T) {
	h := newHarness(t)
	for _, cmd := range []string{
		CmdEntitySpawn, CmdRecordStart, CmdRecordEvent, CmdRecordStamp,
		CmdRecordCancel, CmdRecordFinalize, CmdPlaybackStart, CmdPlaybackStop,
		CmdTimelineSave, CmdTimelineLoad,
	} {
		assert.True(t, h.d.HasHandler(cmd), cmd)
	}
}

func TestRecordAndFinalize(t *testing.T) {
	h := newHarness(t)

	_, err := h.send(CmdEntitySpawn, "north", "7", "2", "3")
	require.NoError(t, err)

	session, err := h.send(CmdRecordStart, `"north"`, "7")
	require.NoError(t, err)
	assert.NotEmpty(t, session)

	_, err = h.send(CmdRecordEvent, "north", "7", "4.5", "ability", "AutoShot", "1", "0")
	require.NoError(t, err)
	_, err = h.send(CmdRecordEvent, "north", "7", "1.0", "move", "3", "3")
	require.NoError(t, err)

	_, err = h.send(CmdRecordEvent, "north", "7", "11", "death")
	assert.ErrorIs(t, err, core.ErrTimestampOutOfBounds)

	n, err := h.send(CmdRecordFinalize, "north", "7")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p, err := h.arena.Published(7)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, core.TimeStamp(1.0), p.At(1).Timestamp)
	pose, ok := p.StartPose()
	require.True(t, ok)
	assert.Equal(t, core.GridPos{Col: 2, Row: 3}, pose)
}

func TestRecordStart_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.send(CmdRecordStart, "south", "7")
	assert.Error(t, err)

	_, err = h.send(CmdRecordStart, "north", "7")
	assert.ErrorIs(t, err, core.ErrUnknownEntity)

	_, err = h.send(CmdRecordStart, "north")
	assert.Error(t, err)
}

func TestRecordCancel_KeepsPublished(t *testing.T) {
	h := newHarness(t)
	_, err := h.send(CmdEntitySpawn, "north", "1", "0", "0")
	require.NoError(t, err)
	_, err = h.send(CmdRecordStart, "north", "1")
	require.NoError(t, err)
	_, err = h.send(CmdRecordFinalize, "north", "1")
	require.NoError(t, err)

	_, err = h.send(CmdRecordStart, "north", "1")
	require.NoError(t, err)
	_, err = h.send(CmdRecordCancel, "north", "1")
	require.NoError(t, err)

	mode, err := h.arena.Mode(1)
	require.NoError(t, err)
	assert.IsType(t, timeline.Idle{}, mode)
	p, err := h.arena.Published(1)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPlayback_StartStop(t *testing.T) {
	h := newHarness(t)
	_, err := h.send(CmdEntitySpawn, "north", "1", "0", "0")
	require.NoError(t, err)

	_, err = h.send(CmdPlaybackStart, "north", "1")
	assert.ErrorIs(t, err, core.ErrNoPublishedTimeline)

	_, err = h.send(CmdRecordStart, "north", "1")
	require.NoError(t, err)
	_, err = h.send(CmdRecordFinalize, "north", "1")
	require.NoError(t, err)

	_, err = h.send(CmdPlaybackStart, "north", "1")
	require.NoError(t, err)
	mode, _ := h.arena.Mode(1)
	assert.IsType(t, timeline.CountdownToPlayback{}, mode)

	_, err = h.send(CmdPlaybackStop, "north", "1")
	require.NoError(t, err)
	mode, _ = h.arena.Mode(1)
	assert.IsType(t, timeline.Idle{}, mode)
}

func TestTimelineSaveAndLoad(t *testing.T) {
	h := newHarness(t)
	_, err := h.send(CmdEntitySpawn, "north", "1", "4", "4")
	require.NoError(t, err)
	_, err = h.send(CmdRecordStart, "north", "1")
	require.NoError(t, err)
	_, err = h.send(CmdRecordEvent, "north", "1", "2", "death")
	require.NoError(t, err)
	_, err = h.send(CmdRecordFinalize, "north", "1")
	require.NoError(t, err)

	res, err := h.send(CmdTimelineSave, "north", "1")
	require.NoError(t, err)
	assert.Equal(t, "queued", res)
	h.d.Close()

	saved, err := h.backend.LoadTimeline("north", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Len())

	h.arena.Spawn(2, core.GridPos{})
	_, err = h.svc.TimelineLoad([]string{"north", "1"})
	require.NoError(t, err)

	_, err = h.svc.TimelineLoad([]string{"north", "2"})
	assert.ErrorIs(t, err, core.ErrTimelineNotFound)
}

func TestTimelineSave_NothingPublished(t *testing.T) {
	h := newHarness(t)
	h.arena.Spawn(1, core.GridPos{})

	_, err := h.svc.TimelineSave([]string{"north", "1"})
	assert.ErrorIs(t, err, core.ErrNoPublishedTimeline)
}

func TestTimeline_NoBackend(t *testing.T) {
	svc := NewService(Dependencies{Registry: arena.NewRegistry()})

	_, err := svc.TimelineSave([]string{"north", "1"})
	assert.ErrorIs(t, err, ErrNoBackend)
	_, err = svc.TimelineLoad([]string{"north", "1"})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestPersistFinalized(t *testing.T) {
	h := newHarness(t)
	h.arena.OnFinalize(h.svc.PersistFinalized())
	h.arena.Spawn(5, core.GridPos{Col: 1})

	_, err := h.send(CmdRecordStart, "north", "5")
	require.NoError(t, err)
	_, err = h.send(CmdRecordStamp, "north", "5", "ability", "Heal")
	require.NoError(t, err)
	_, err = h.send(CmdRecordFinalize, "north", "5")
	require.NoError(t, err)

	list, err := h.backend.ListTimelines("north")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.EntityID(5), list[0].Entity)
	assert.Equal(t, 2, list[0].Events)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.send(":PLAYBACK:SEEK:", "north", "1")
	assert.Error(t, err)
}
