// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/OCAP2/kartreplay/internal/geo"
	"github.com/OCAP2/kartreplay/internal/model"
	"github.com/OCAP2/kartreplay/pkg/core"
	"gorm.io/datatypes"
)

// fieldsToJSON converts a []string to datatypes.JSON for DB storage.
func fieldsToJSON(fields []string) datatypes.JSON {
	if len(fields) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(fields)
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run. The trajectory is filled in
// when the run ends.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		ID:              r.ID,
		StartTime:       r.StartTime,
		Scenario:        r.Scenario,
		Course:          r.Course,
		Vehicle:         r.Vehicle,
		PlannedFrames:   r.PlannedFrames,
		ReferenceFrames: r.ReferenceFrames,
		InSync:          true,
	}
}

// CoreToFrameState converts a core.FrameState to a GORM model.FrameState.
func CoreToFrameState(s core.FrameState, runID uint) model.FrameState {
	subsystems := datatypes.JSON("{}")
	if len(s.Subsystems) > 0 {
		if data, err := json.Marshal(s.Subsystems); err == nil {
			subsystems = data
		}
	}

	return model.FrameState{
		Time:       s.Time,
		RunID:      runID,
		Frame:      s.Frame,
		Stage:      s.Stage,
		Position:   geo.PointFromPosition(s.Position),
		VelocityX:  float32(s.Velocity.X),
		VelocityY:  float32(s.Velocity.Y),
		VelocityZ:  float32(s.Velocity.Z),
		Speed:      s.Speed,
		SoftLimit:  s.SoftLimit,
		Airtime:    s.Airtime,
		Drift:      s.Drift,
		Boost:      s.Boost,
		Wheelie:    s.Wheelie,
		Trick:      s.Trick,
		Subsystems: subsystems,
	}
}

// CoreToDesync converts a core.Desync to a GORM model.Desync.
func CoreToDesync(d core.Desync, runID uint) model.Desync {
	return model.Desync{
		Time:     d.Time,
		RunID:    runID,
		Frame:    d.Frame,
		Fields:   fieldsToJSON(d.Fields),
		Expected: geo.PointFromPosition(d.Expected),
		Actual:   geo.PointFromPosition(d.Actual),
	}
}

// ApplyResult fills the end-of-run columns of r.
func ApplyResult(r *model.Run, res core.RunResult, trajectory []core.Position3D) {
	r.EndTime = res.EndTime
	r.Frames = res.Frames
	r.InSync = res.InSync()
	r.DesyncFrame = res.DesyncFrame
	r.Trajectory = geo.Trajectory(trajectory)
	r.TrajectoryLength = geo.GroundLength(r.Trajectory)
}

// FrameStateToCore converts a GORM model.FrameState back to a core.FrameState.
func FrameStateToCore(s model.FrameState) core.FrameState {
	pos, _ := geo.PositionFromPoint(s.Position)

	var subsystems map[string]any
	if len(s.Subsystems) > 0 {
		_ = json.Unmarshal(s.Subsystems, &subsystems)
	}

	return core.FrameState{
		Frame:      s.Frame,
		Time:       s.Time,
		Stage:      s.Stage,
		Position:   pos,
		Velocity:   core.Position3D{X: float64(s.VelocityX), Y: float64(s.VelocityY), Z: float64(s.VelocityZ)},
		Speed:      s.Speed,
		SoftLimit:  s.SoftLimit,
		Airtime:    s.Airtime,
		Drift:      s.Drift,
		Boost:      s.Boost,
		Wheelie:    s.Wheelie,
		Trick:      s.Trick,
		Subsystems: subsystems,
	}
}

// DesyncToCore converts a GORM model.Desync back to a core.Desync.
func DesyncToCore(d model.Desync) core.Desync {
	var fields []string
	if len(d.Fields) > 0 {
		_ = json.Unmarshal(d.Fields, &fields)
	}
	expected, _ := geo.PositionFromPoint(d.Expected)
	actual, _ := geo.PositionFromPoint(d.Actual)

	return core.Desync{
		Frame:    d.Frame,
		Time:     d.Time,
		Fields:   fields,
		Expected: expected,
		Actual:   actual,
	}
}
