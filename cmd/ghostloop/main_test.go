package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/parser"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/sim"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

func TestScriptArenas(t *testing.T) {
	lines := []parser.ScriptLine{
		{Command: ":ENTITY:SPAWN:", Args: []string{"north", "1", "0", "0"}},
		{Command: ":ENTITY:SPAWN:", Args: []string{`"south"`, "2", "0", "0"}},
		{Command: ":RECORD:START:", Args: []string{"north", "1"}},
		{Command: ":RECORD:START:", Args: []string{"west"}},
	}
	assert.Equal(t, []string{"north", "south"}, scriptArenas(lines))
	// args are not modified
	assert.Equal(t, `"south"`, lines[1].Args[0])
}

func TestDescribe(t *testing.T) {
	target := core.GridPos{Col: 1, Row: 2}
	assert.Equal(t, "death", describe(core.Death{}))
	assert.Equal(t, "ability Heal", describe(core.Ability{Kind: "Heal"}))
	assert.Contains(t, describe(core.Ability{Kind: "AutoShot", Target: &target}), "AutoShot ->")
	assert.Contains(t, describe(core.Movement{To: target}), "move ")
}

func TestRun_Usage(t *testing.T) {
	assert.Error(t, run(nil))
}

func TestArenaTiming_Defaults(t *testing.T) {
	got := arenaTiming(config.ArenaConfig{})
	assert.Equal(t, core.CycleLength, got.cycle)
	assert.Equal(t, core.CountdownLength, got.countdown)
	assert.Equal(t, sim.DefaultStep, got.step)

	lines := []parser.ScriptLine{{At: 2}}
	assert.Equal(t, core.TimeStamp(2)+core.CycleLength, sim.Duration(lines, 1, got.cycle))
}

func TestArenaTiming_FromConfig(t *testing.T) {
	got := arenaTiming(config.ArenaConfig{CycleLength: 30, Countdown: 1, TickRate: 100 * time.Millisecond, AutoPlayback: true})
	assert.Equal(t, core.TimeStamp(30), got.cycle)
	assert.Equal(t, core.TimeStamp(1), got.countdown)
	assert.InDelta(t, 0.1, float64(got.step), 1e-9)
	assert.True(t, got.autoPlayback)
}
