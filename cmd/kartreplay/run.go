package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/dispatcher"
	"github.com/OCAP2/kartreplay/internal/geo"
	"github.com/OCAP2/kartreplay/internal/handlers"
	"github.com/OCAP2/kartreplay/internal/influx"
	"github.com/OCAP2/kartreplay/internal/logging"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/monitor"
	"github.com/OCAP2/kartreplay/internal/player"
	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/OCAP2/kartreplay/internal/scenario"
	"github.com/OCAP2/kartreplay/internal/storage"
	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/spf13/pflag"
)

var errStopAtDesync = errors.New("stopped at first desync")

type runOptions struct {
	configDir    string
	start        string
	frames       uint32
	stopOnDesync bool
}

// summary is the outcome of one replay.
type summary struct {
	Scenario string
	Planned  uint32
	Result   replay.Result
	Export   string
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts runOptions
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configDir, "config", "c", ".", "directory containing "+config.FileName)
	fs.StringVar(&opts.start, "start", "", "override the start position as x,y,z")
	fs.Uint32VarP(&opts.frames, "frames", "n", 0, "frames to simulate, 0 runs through the inputs")
	fs.BoolVar(&opts.stopOnDesync, "stop-on-desync", false, "stop each replay at its first desync")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	paths, err := expandScenarios(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "No scenarios provided.")
		return exitError
	}

	sess := openSession(opts.configDir, stderr)
	defer sess.Close()

	began := time.Now()
	code := exitOK
	for _, path := range paths {
		fmt.Fprintf(stdout, "Scenario: %s\n", path)
		sum, err := sess.replay(ctx, path, opts)
		if err != nil {
			sess.Logger.Error("Replay failed", "scenario", path, "error", err)
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			code = exitError
			if ctx.Err() != nil {
				break
			}
			continue
		}
		printSummary(stdout, sum)
		if !sum.Result.InSync() && code == exitOK {
			code = exitDesync
		}
	}
	fmt.Fprintf(stdout, "Completed in %.2f seconds\n", time.Since(began).Seconds())
	return code
}

// expandScenarios replaces directories with the scenario files they contain.
func expandScenarios(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario dir: %w", err)
		}
		var found []string
		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() && (strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz")) {
				found = append(found, filepath.Join(arg, name))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func printSummary(w io.Writer, sum summary) {
	last := sum.Result.Frames
	if last > 0 {
		last--
	}
	fmt.Fprintf(w, "Simulated %d/%d (in-game: %d) frames\n", sum.Result.Frames, sum.Planned, inGame(last))
	if sum.Result.InSync() {
		fmt.Fprintln(w, "In sync")
	} else {
		fmt.Fprintf(w, "Desync at frame %d (in-game: %d): %s\n",
			sum.Result.DesyncFrame, inGame(sum.Result.DesyncFrame), strings.Join(sum.Result.DesyncFields, ", "))
	}
	if sum.Export != "" {
		fmt.Fprintf(w, "Exported to %s\n", sum.Export)
	}
	fmt.Fprintln(w)
}

// inGame is the race timer frame, zero before the countdown ends.
func inGame(frame uint32) uint32 {
	if frame < player.FrameCountdown {
		return 0
	}
	return frame - player.FrameCountdown
}

// loadScenario loads path and applies the overrides of opts.
func loadScenario(path string, opts runOptions) (*scenario.Scenario, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}

	if opts.start != "" {
		pos, err := geo.PositionFromString(opts.start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		sc.Start = mathf.Vec3{float32(pos.X), float32(pos.Y), float32(pos.Z)}
	}

	switch {
	case opts.frames != 0:
		sc.Frames = opts.frames
	case config.GetInt("frames") > 0:
		sc.Frames = uint32(config.GetInt("frames"))
	}
	return sc, nil
}

// replay simulates one scenario with the configured sinks attached.
func (s *session) replay(ctx context.Context, path string, opts runOptions) (summary, error) {
	sc, err := loadScenario(path, opts)
	if err != nil {
		return summary{}, err
	}
	g, _, err := sc.NewGame()
	if err != nil {
		return summary{}, err
	}
	frames := sc.FrameCount()

	backend, err := storage.NewBackend(config.GetStorageConfig(), storage.Dependencies{
		DB:     config.GetDBConfig(),
		Logger: s.Components,
	})
	if err != nil {
		return summary{}, err
	}
	if err := backend.Init(); err != nil {
		return summary{}, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			s.Logger.Error("Failed to close storage", "error", err)
		}
	}()

	run := &core.Run{
		Scenario:        sc.Name,
		Course:          sc.Course.Name,
		Vehicle:         sc.VehicleName(),
		PlannedFrames:   frames,
		ReferenceFrames: uint32(len(sc.Reference)),
		StartTime:       time.Now(),
	}
	if err := backend.StartRun(run); err != nil {
		return summary{}, fmt.Errorf("failed to start run: %w", err)
	}

	var telemetry handlers.Telemetry
	if cfg := config.GetInfluxConfig(); cfg.Enabled {
		m := influx.NewManager(s.Components, cfg)
		if err := m.Connect(ctx); err != nil {
			s.Logger.Warn("Telemetry disabled", "error", err)
		} else {
			telemetry = m
			defer func() {
				if err := m.Close(); err != nil {
					s.Logger.Error("Failed to close telemetry", "error", err)
				}
			}()
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(s.Components))
	if err != nil {
		return summary{}, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()

	handlers.NewService(handlers.Dependencies{
		Backend:   backend,
		Telemetry: telemetry,
		Logger:    s.Logger,
	}, run).Register(d, config.GetInt("dispatcher.bufferSize"))

	s.Logger.Info("Replay started",
		"scenario", path, "run", run.ID, "course", run.Course, "vehicle", run.Vehicle, "frames", frames)

	monCfg := config.GetMonitorConfig()
	mon := monitor.NewService(monitor.Dependencies{
		Logger:     s.Logger,
		Frame:      s.frame.Load,
		StatusFile: monCfg.StatusFile,
		Interval:   monCfg.Interval,
	})
	if err := mon.Start(path, frames); err != nil {
		s.Logger.Warn("Progress monitor disabled", "error", err)
	}

	publish := handlers.Observer(d, sc.Reference)
	res, runErr := replay.Run(ctx, g, frames, func(fr replay.FrameResult) error {
		s.frame.Store(int64(fr.Index))
		if err := publish(fr); err != nil {
			return err
		}
		if opts.stopOnDesync && fr.Desync != nil {
			return errStopAtDesync
		}
		return nil
	})
	mon.Stop()
	s.frame.Store(-1)
	if errors.Is(runErr, errStopAtDesync) {
		runErr = nil
	}

	// the partial run is still recorded when the replay stopped early
	out, err := handlers.Finish(d, res)
	if runErr != nil {
		return summary{}, errors.Join(runErr, err)
	}
	if err != nil {
		return summary{}, err
	}

	sum := summary{Scenario: path, Planned: frames, Result: res}
	sum.Export, _ = out.(string)
	s.Logger.Info("Replay finished",
		"scenario", path, "frames", res.Frames, "inSync", res.InSync(), "desyncFrame", res.DesyncFrame)
	return sum, nil
}
