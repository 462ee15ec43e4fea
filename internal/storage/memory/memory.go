// Package memory keeps a run in memory and exports it as JSON when it ends.
package memory

import (
	"sync"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/pkg/core"
)

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg    config.MemoryConfig
	run    *core.Run
	frames []core.FrameState
	desync *core.Desync

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	run.ID = b.idCounter

	b.run = run
	b.frames = nil
	b.desync = nil
	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun(result *core.RunResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return core.ErrNoRun
	}
	err := b.exportJSON(result)
	b.run = nil
	return err
}

// RecordFrame appends a frame state
func (b *Backend) RecordFrame(s *core.FrameState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return core.ErrNoRun
	}
	b.frames = append(b.frames, *s)
	return nil
}

// RecordDesync keeps the first desync of the run
func (b *Backend) RecordDesync(d *core.Desync) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return core.ErrNoRun
	}
	if b.desync == nil {
		desync := *d
		b.desync = &desync
	}
	return nil
}

// GetFrames returns a copy of the frames recorded so far
func (b *Backend) GetFrames() []core.FrameState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.FrameState, len(b.frames))
	copy(out, b.frames)
	return out
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
