// Package storage defines the run storage backends and selects one from
// configuration.
package storage

import "github.com/OCAP2/kartreplay/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management (StartRun assigns the run ID)
	StartRun(run *core.Run) error
	EndRun(result *core.RunResult) error

	// Recording
	RecordFrame(s *core.FrameState) error
	RecordDesync(d *core.Desync) error
}

// Exporter is an optional interface for backends that write one file per run.
type Exporter interface {
	GetExportedFilePath() string
}
