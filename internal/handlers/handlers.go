// Package handlers connects the frame driver to the sinks: it publishes settled
// frames on the dispatcher and records them in storage and telemetry.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/kartreplay/internal/dispatcher"
	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/OCAP2/kartreplay/internal/storage"
	"github.com/OCAP2/kartreplay/pkg/core"
)

// Telemetry receives per-frame points. *influx.Manager implements it.
type Telemetry interface {
	WriteFrame(run *core.Run, s *core.FrameState) error
	WriteDesync(run *core.Run, d *core.Desync) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Backend   storage.Backend
	Telemetry Telemetry // optional
	Logger    *slog.Logger
}

// Service records the events of one run
type Service struct {
	deps Dependencies
	run  *core.Run
}

// NewService creates a Service for run, which must already be started on the
// backend.
func NewService(deps Dependencies, run *core.Run) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, run: run}
}

// Register adds the frame, desync and end handlers to d. Frames are written on a
// buffered goroutine of bufferSize events.
func (s *Service) Register(d *dispatcher.Dispatcher, bufferSize int) {
	d.Register(dispatcher.CommandFrame, s.handleFrame, dispatcher.Buffered(bufferSize), dispatcher.Blocking())
	d.Register(dispatcher.CommandDesync, s.handleDesync, dispatcher.Logged())
	d.Register(dispatcher.CommandEnd, s.handleEnd, dispatcher.Logged())
}

func (s *Service) handleFrame(e dispatcher.Event) (any, error) {
	state, ok := e.Payload.(*core.FrameState)
	if !ok {
		return nil, fmt.Errorf("frame %d: unexpected payload %T", e.Frame, e.Payload)
	}

	if err := s.deps.Backend.RecordFrame(state); err != nil {
		return nil, fmt.Errorf("record frame %d: %w", e.Frame, err)
	}
	if s.deps.Telemetry != nil {
		if err := s.deps.Telemetry.WriteFrame(s.run, state); err != nil {
			return nil, fmt.Errorf("telemetry frame %d: %w", e.Frame, err)
		}
	}
	return nil, nil
}

func (s *Service) handleDesync(e dispatcher.Event) (any, error) {
	desync, ok := e.Payload.(*core.Desync)
	if !ok {
		return nil, fmt.Errorf("desync %d: unexpected payload %T", e.Frame, e.Payload)
	}

	s.deps.Logger.Warn("desync", "frame", desync.Frame, "fields", desync.Fields)

	err := s.deps.Backend.RecordDesync(desync)
	if s.deps.Telemetry != nil {
		err = errors.Join(err, s.deps.Telemetry.WriteDesync(s.run, desync))
	}
	return nil, err
}

func (s *Service) handleEnd(e dispatcher.Event) (any, error) {
	res, ok := e.Payload.(*core.RunResult)
	if !ok {
		return nil, fmt.Errorf("end: unexpected payload %T", e.Payload)
	}

	if err := s.deps.Backend.EndRun(res); err != nil {
		return nil, fmt.Errorf("end run: %w", err)
	}

	if exp, ok := s.deps.Backend.(storage.Exporter); ok {
		s.deps.Logger.Info("run exported", "path", exp.GetExportedFilePath())
		return exp.GetExportedFilePath(), nil
	}
	return nil, nil
}

// Observer returns the replay observer that publishes the first player of every
// frame on d. reference supplies the expected position of a desync.
func Observer(d *dispatcher.Dispatcher, reference []replay.ReferenceFrame) replay.Observer {
	return func(fr replay.FrameResult) error {
		if len(fr.Players) == 0 {
			return nil
		}

		now := time.Now()
		state := Snapshot(fr.Players[0], fr.Index, fr.Stage, now)
		if _, err := d.Dispatch(dispatcher.Event{
			Command:   dispatcher.CommandFrame,
			Frame:     fr.Index,
			Payload:   &state,
			Timestamp: now,
		}); err != nil {
			return err
		}

		if fr.Desync == nil {
			return nil
		}

		desync := core.Desync{
			Frame:  fr.Index,
			Time:   now,
			Fields: fr.Desync,
			Actual: state.Position,
		}
		if int(fr.Index) < len(reference) {
			desync.Expected = position(reference[fr.Index].Pos)
		}
		_, err := d.Dispatch(dispatcher.Event{
			Command:   dispatcher.CommandDesync,
			Frame:     fr.Index,
			Payload:   &desync,
			Timestamp: now,
		})
		return err
	}
}

// Finish waits for the queued frames and then dispatches the end of the run.
// It returns what the end handler returned.
func Finish(d *dispatcher.Dispatcher, res replay.Result) (any, error) {
	d.Drain()

	end := RunResult(res, time.Now())
	return d.Dispatch(dispatcher.Event{
		Command:   dispatcher.CommandEnd,
		Frame:     res.Frames,
		Payload:   &end,
		Timestamp: end.EndTime,
	})
}

// RunResult converts a replay result to its storage record.
func RunResult(res replay.Result, end time.Time) core.RunResult {
	out := core.RunResult{Frames: res.Frames, EndTime: end}
	if !res.InSync() {
		frame := res.DesyncFrame
		out.DesyncFrame = &frame
		out.Fields = res.DesyncFields
	}
	return out
}
