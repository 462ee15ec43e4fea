// Package core holds the storage-neutral records of a replay run. Storage
// backends convert them to their own representation.
package core

import (
	"errors"
	"time"
)

// ErrNoRun is returned by storage backends when recording outside of a run.
var ErrNoRun = errors.New("no run started")

// Position3D is a point or vector in course space. Y is up.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Run describes one simulated replay.
type Run struct {
	ID              uint
	Scenario        string
	Course          string
	Vehicle         string
	PlannedFrames   uint32
	ReferenceFrames uint32
	StartTime       time.Time
}

// FrameState is the vehicle state after one simulated frame.
type FrameState struct {
	Frame     uint32
	Time      time.Time
	Stage     string
	Position  Position3D
	Velocity  Position3D
	Up        Position3D
	Speed     float32
	SoftLimit float32
	Airtime   uint32
	Drift     string
	Boost     uint16 // longest active boost, in frames
	Wheelie   bool
	Trick     bool

	// Subsystems is a snapshot of the state machines, stored as JSON.
	Subsystems map[string]any
}

// Desync is the first frame whose state differs from the reference.
type Desync struct {
	Frame    uint32
	Time     time.Time
	Fields   []string
	Expected Position3D
	Actual   Position3D
}

// RunResult summarises a finished run.
type RunResult struct {
	Frames      uint32
	EndTime     time.Time
	DesyncFrame *uint32
	Fields      []string
}

// InSync reports whether the run matched its reference throughout.
func (r *RunResult) InSync() bool {
	return r.DesyncFrame == nil
}
