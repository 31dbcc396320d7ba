// Package sim drives a registry of arenas headlessly from a command script.
package sim

import (
	"context"
	"log/slog"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/arena"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/dispatcher"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/parser"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// DefaultStep is the tick length used when Runner.Step is not positive.
const DefaultStep core.TimeStamp = 0.05

// DispatchFunc receives every ghost dispatch drained after a tick.
type DispatchFunc func(arena string, d core.Dispatch)

// Runner executes scripts at a fixed step.
type Runner struct {
	Registry   *arena.Registry
	Dispatcher *dispatcher.Dispatcher
	Step       core.TimeStamp // seconds per tick
	Logger     *slog.Logger
	OnDispatch DispatchFunc
}

// Result counts what a run did.
type Result struct {
	Ticks      int
	Commands   int
	Failed     int
	Dispatches int
	Elapsed    core.TimeStamp
}

// Run executes lines in order, ticking every arena once per step until
// duration seconds have been simulated. Commands due at or before the
// current time run before the tick. A failing command is logged and the run
// continues.
func (r *Runner) Run(ctx context.Context, lines []parser.ScriptLine, duration core.TimeStamp) (Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	step := r.Step
	if step <= 0 {
		step = DefaultStep
	}

	var res Result
	next := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// computed from the tick count so the error does not accumulate
		now := core.TimeStamp(res.Ticks) * step
		res.Elapsed = now

		for next < len(lines) && lines[next].At <= now {
			line := lines[next]
			next++
			res.Commands++
			_, err := r.Dispatcher.Dispatch(dispatcher.Event{Command: line.Command, Args: line.Args})
			if err != nil {
				res.Failed++
				logger.Warn("script command failed", "line", line.Line, "command", line.Command, "error", err)
			}
		}

		if now >= duration {
			return res, nil
		}

		r.Registry.Tick(step)
		res.Ticks++

		for _, id := range r.Registry.IDs() {
			a, err := r.Registry.Get(id)
			if err != nil {
				continue
			}
			for _, d := range a.Drain() {
				res.Dispatches++
				if r.OnDispatch != nil {
					r.OnDispatch(id, d)
				}
			}
		}
	}
}

// Duration returns the simulated time needed to reach the last script line
// and then play cycles full cycles.
func Duration(lines []parser.ScriptLine, cycles int, cycleLength core.TimeStamp) core.TimeStamp {
	var last core.TimeStamp
	if len(lines) > 0 {
		last = lines[len(lines)-1].At
	}
	if cycles < 0 {
		cycles = 0
	}
	return last + core.TimeStamp(cycles)*cycleLength
}
