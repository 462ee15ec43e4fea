package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger *slog.Logger
	// Frame returns the frame being simulated, negative before the first one.
	Frame      func() int64
	StatusFile string
	Interval   time.Duration
}

// Status is the progress of the replay being monitored.
type Status struct {
	Scenario        string        `json:"scenario"`
	Frame           int64         `json:"frame"`
	Frames          uint32        `json:"frames"`
	FramesPerSecond float64       `json:"framesPerSecond"`
	Elapsed         time.Duration `json:"elapsed"`
	Done            bool          `json:"done"`
}

// Service reports replay progress on an interval
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}

	scenario string
	frames   uint32
	started  time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.Frame == nil {
		deps.Frame = func() int64 { return -1 }
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current progress.
func (s *Service) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked(time.Now())
}

func (s *Service) statusLocked(now time.Time) Status {
	st := Status{
		Scenario: s.scenario,
		Frame:    s.deps.Frame(),
		Frames:   s.frames,
		Done:     !s.isRunning && !s.started.IsZero(),
	}
	if s.started.IsZero() {
		return st
	}
	st.Elapsed = now.Sub(s.started)
	if secs := st.Elapsed.Seconds(); secs > 0 && st.Frame >= 0 {
		st.FramesPerSecond = float64(st.Frame+1) / secs
	}
	return st
}

func (s *Service) report(st Status) {
	s.deps.Logger.Debug("Replay progress",
		"scenario", st.Scenario,
		"frame", st.Frame,
		"frames", st.Frames,
		"fps", st.FramesPerSecond,
	)

	if s.deps.StatusFile == "" {
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.deps.Logger.Error("Error encoding status", "error", err)
		return
	}
	if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0644); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err, "path", s.deps.StatusFile)
	}
}

// Start begins monitoring a replay of frames frames.
func (s *Service) Start(scenario string, frames uint32) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.scenario = scenario
	s.frames = frames
	s.started = time.Now()
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.mu.RLock()
				st := s.statusLocked(now)
				s.mu.RUnlock()
				s.report(st)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and writes the final status.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.RLock()
	st := s.statusLocked(time.Now())
	s.mu.RUnlock()
	s.report(st)
}
