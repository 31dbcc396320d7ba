package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/arena"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/cache"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/config"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/dispatcher"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/handlers"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/influx"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/logging"
	intOtel "github.com/matthewharwood/arenic-bevy-sub009/internal/otel"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/parser"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/sim"
	"github.com/matthewharwood/arenic-bevy-sub009/internal/storage"
	sqlitestorage "github.com/matthewharwood/arenic-bevy-sub009/internal/storage/sqlite"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "ghostloop"
)

var (
	SessionStartTime = time.Now()

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	closers []io.Closer
)

const usage = `usage:
  ghostloop simulate <script> [cycles]
  ghostloop inspect <arena> <entity>
  ghostloop version`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	setupLogging()
	defer shutdown()

	switch strings.ToLower(args[0]) {
	case "simulate":
		if len(args) < 2 {
			return errors.New(usage)
		}
		cycles := 1
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid cycle count %q", args[2])
			}
			cycles = n
		}
		return simulate(args[1], cycles)

	case "inspect":
		if len(args) < 3 {
			return errors.New(usage)
		}
		return inspect(args[1], args[2])

	case "version":
		fmt.Println(Version, BuildDate)
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// setupLogging loads config then configures slog with the file, OTel and
// Graylog sinks it names. Before config is read logs go to stdout.
func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	configDir := os.Getenv("GHOSTLOOP_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		config.LoadDefaults()
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	var logFile *os.File
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
	} else {
		logPath := logging.SessionFile(logsDir, AppName, SessionStartTime, "log")
		logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			Logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
			logFile = nil
		} else {
			closers = append(closers, logFile)
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var logWriter io.Writer
		if logFile != nil {
			logWriter = logFile
		}
		p, err := intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logWriter,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			OTelProvider = p
		}
	}

	var sinks []io.Writer
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		w, err := logging.NewGraylogWriter(graylogCfg.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			sinks = append(sinks, w)
			closers = append(closers, w)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	var file io.Writer
	if logFile != nil {
		file = logFile
	}
	SlogManager.Setup(file, config.GetString("logLevel"), otelLogProvider, sinks...)
	Logger = SlogManager.Logger()
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}

func simulate(scriptPath string, cycles int) error {
	f, err := os.Open(scriptPath)
	if err != nil {
		return fmt.Errorf("opening script: %w", err)
	}
	lines, err := parser.ParseScript(f)
	f.Close()
	if err != nil {
		return err
	}

	times := arenaTiming(config.GetArenaConfig())
	backend, err := storage.NewBackend(config.GetStorageConfig(), Logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage", "error", err)
		}
		if exp, ok := backend.(storage.Exporter); ok {
			for _, path := range exp.ExportedFiles() {
				Logger.Info("Exported timelines", "path", path)
			}
		}
	}()

	registry := arena.NewRegistry()
	abilities := cache.NewAbilityLog()
	svc := handlers.NewService(handlers.Dependencies{Registry: registry, Backend: backend, Logger: Logger})

	var sink *influx.Sink
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		backupPath := logging.SessionFile(config.GetString("logsDir"), AppName, SessionStartTime, "lp.gz")
		sink, err = influx.Connect(ctx, influxCfg, backupPath, Logger)
		cancel()
		if err != nil {
			Logger.Error("Failed to set up InfluxDB sink", "error", err)
			sink = nil
		} else {
			defer sink.Close()
		}
	}

	// script arena ids are created on first use
	for _, id := range scriptArenas(lines) {
		a, err := arena.New(arena.Config{
			ID:           id,
			CycleLength:  times.cycle,
			Countdown:    times.countdown,
			AutoPlayback: times.autoPlayback,
			Logger:       Logger,
		}, abilities)
		if err != nil {
			return err
		}
		a.OnFinalize(svc.PersistFinalized())
		if sink != nil {
			a.Observe(sink)
		}
		if err := registry.Add(a); err != nil {
			return err
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return err
	}
	svc.RegisterHandlers(d)
	// drain queued saves before storage closes
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	step := times.step
	runner := &sim.Runner{
		Registry:   registry,
		Dispatcher: d,
		Step:       step,
		Logger:     Logger,
		OnDispatch: func(arenaID string, disp core.Dispatch) {
			Logger.Debug("ghost dispatch",
				"arena", arenaID,
				"entity", disp.Entity,
				"kind", disp.Kind.String(),
				"cycle", disp.Cycle,
				"t", float64(disp.Timestamp),
				"pos", disp.Pos.String())
		},
	}

	duration := sim.Duration(lines, cycles, times.cycle)
	Logger.Info("Starting simulation", "script", scriptPath, "lines", len(lines), "duration", float64(duration), "step", float64(step))
	res, err := runner.Run(ctx, lines, duration)
	Logger.Info("Simulation finished",
		"ticks", res.Ticks,
		"commands", res.Commands,
		"failed", res.Failed,
		"dispatches", res.Dispatches,
		"abilities", len(abilities.Activations()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type timing struct {
	cycle        core.TimeStamp
	countdown    core.TimeStamp
	step         core.TimeStamp
	autoPlayback bool
}

// arenaTiming resolves the arena config, applying the same defaults as
// arena.New and sim.Runner so the run length matches the arenas.
func arenaTiming(cfg config.ArenaConfig) timing {
	t := timing{
		cycle:        core.TimeStamp(cfg.CycleLength),
		countdown:    core.TimeStamp(cfg.Countdown),
		step:         core.TimeStamp(cfg.TickRate.Seconds()),
		autoPlayback: cfg.AutoPlayback,
	}
	if t.cycle <= 0 {
		t.cycle = core.CycleLength
	}
	if t.countdown <= 0 {
		t.countdown = core.CountdownLength
	}
	if t.step <= 0 {
		t.step = sim.DefaultStep
	}
	return t
}

// scriptArenas returns the arena ids named by the script's commands.
func scriptArenas(lines []parser.ScriptLine) []string {
	seen := map[string]bool{}
	var ids []string
	for _, l := range lines {
		ref, err := parser.ParseEntityRef(append([]string(nil), l.Args...))
		if err != nil || seen[ref.Arena] {
			continue
		}
		seen[ref.Arena] = true
		ids = append(ids, ref.Arena)
	}
	return ids
}

func inspect(arenaID, entityArg string) error {
	ref, err := parser.ParseEntityRef([]string{arenaID, entityArg})
	if err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	var backend storage.Backend
	if storageCfg.Type == "sqlite" {
		// the in-memory database is gone; read the last dump instead
		backend, err = sqlitestorage.OpenDump(storageCfg.SQLite.DumpPath, Logger)
	} else {
		backend, err = storage.NewBackend(storageCfg, Logger)
	}
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer backend.Close()

	p, err := backend.LoadTimeline(ref.Arena, ref.Entity)
	if err != nil {
		return err
	}

	fmt.Printf("arena %s entity %d session %s: %d events, duration %s\n",
		ref.Arena, ref.Entity, p.Session(), p.Len(), p.Duration())
	for _, ev := range p.All() {
		fmt.Printf("  %8s  %s\n", ev.Timestamp, describe(ev.Type))
	}
	return nil
}

func describe(ev core.EventType) string {
	switch v := ev.(type) {
	case core.Movement:
		return "move " + v.To.String()
	case core.Ability:
		if v.Target != nil {
			return fmt.Sprintf("ability %s -> %s", v.Kind, v.Target.String())
		}
		return fmt.Sprintf("ability %s", v.Kind)
	case core.Death:
		return "death"
	default:
		return "unknown"
	}
}
