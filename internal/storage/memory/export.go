package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/kartreplay/internal/geo"
	"github.com/OCAP2/kartreplay/pkg/core"
)

// RunExport is the root JSON structure
type RunExport struct {
	Scenario         string      `json:"scenario"`
	Course           string      `json:"course"`
	Vehicle          string      `json:"vehicle"`
	StartTime        time.Time   `json:"startTime"`
	EndTime          time.Time   `json:"endTime"`
	PlannedFrames    uint32      `json:"plannedFrames"`
	ReferenceFrames  uint32      `json:"referenceFrames"`
	Frames           uint32      `json:"frames"`
	InSync           bool        `json:"inSync"`
	Desync           *DesyncJSON `json:"desync,omitempty"`
	Trajectory       string      `json:"trajectory"`
	TrajectoryLength float64     `json:"trajectoryLength"`
	States           []StateJSON `json:"states"`
}

// DesyncJSON is the first differing frame
type DesyncJSON struct {
	Frame    uint32          `json:"frame"`
	Fields   []string        `json:"fields"`
	Expected core.Position3D `json:"expected"`
	Actual   core.Position3D `json:"actual"`
}

// StateJSON is one frame of the run
type StateJSON struct {
	Frame      uint32         `json:"frame"`
	Stage      string         `json:"stage"`
	Position   [3]float64     `json:"pos"`
	Velocity   [3]float64     `json:"vel"`
	Speed      float32        `json:"speed"`
	Airtime    uint32         `json:"airtime"`
	Drift      string         `json:"drift,omitempty"`
	Boost      uint16         `json:"boost,omitempty"`
	Subsystems map[string]any `json:"subsystems,omitempty"`
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}

// exportJSON writes the run to a (gzipped) JSON file
func (b *Backend) exportJSON(result *core.RunResult) error {
	export := b.buildExport(result)

	// Build filename
	timestamp := b.run.StartTime.Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%s.json", sanitize(b.run.Course), sanitize(b.run.Vehicle), timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(result *core.RunResult) RunExport {
	export := RunExport{
		Scenario:        b.run.Scenario,
		Course:          b.run.Course,
		Vehicle:         b.run.Vehicle,
		StartTime:       b.run.StartTime,
		EndTime:         result.EndTime,
		PlannedFrames:   b.run.PlannedFrames,
		ReferenceFrames: b.run.ReferenceFrames,
		Frames:          result.Frames,
		InSync:          result.InSync(),
		States:          make([]StateJSON, 0, len(b.frames)),
	}

	if b.desync != nil {
		export.Desync = &DesyncJSON{
			Frame:    b.desync.Frame,
			Fields:   b.desync.Fields,
			Expected: b.desync.Expected,
			Actual:   b.desync.Actual,
		}
	}

	positions := make([]core.Position3D, 0, len(b.frames))
	for _, s := range b.frames {
		export.States = append(export.States, StateJSON{
			Frame:      s.Frame,
			Stage:      s.Stage,
			Position:   [3]float64{s.Position.X, s.Position.Y, s.Position.Z},
			Velocity:   [3]float64{s.Velocity.X, s.Velocity.Y, s.Velocity.Z},
			Speed:      s.Speed,
			Airtime:    s.Airtime,
			Drift:      s.Drift,
			Boost:      s.Boost,
			Subsystems: s.Subsystems,
		})
		positions = append(positions, s.Position)
	}

	trajectory := geo.Trajectory(positions)
	export.Trajectory = trajectory.AsText()
	export.TrajectoryLength = geo.GroundLength(trajectory)

	return export
}

func (b *Backend) writeJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
