package convert

import (
	"testing"
	"time"

	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFieldsToJSON(t *testing.T) {
	assert.Equal(t, datatypes.JSON("[]"), fieldsToJSON(nil))
	assert.JSONEq(t, `["pos","speed1"]`, string(fieldsToJSON([]string{"pos", "speed1"})))
}

func TestCoreToRun(t *testing.T) {
	now := time.Now()
	r := CoreToRun(core.Run{
		ID:              7,
		Scenario:        "flat.json",
		Course:          "flat",
		Vehicle:         "md_kart",
		PlannedFrames:   600,
		ReferenceFrames: 500,
		StartTime:       now,
	})

	assert.Equal(t, uint(7), r.ID)
	assert.Equal(t, "flat", r.Course)
	assert.Equal(t, uint32(600), r.PlannedFrames)
	assert.True(t, r.InSync)
	assert.True(t, r.Trajectory.IsEmpty())
}

// Round-trip: Core → GORM → Core
func TestFrameStateRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	original := core.FrameState{
		Frame:     412,
		Time:      now,
		Stage:     "race",
		Position:  core.Position3D{X: 1.5, Y: 20, Z: -3},
		Velocity:  core.Position3D{X: 0.25, Y: -1, Z: 2},
		Speed:     12.5,
		SoftLimit: 80,
		Airtime:   3,
		Drift:     "hop",
		Boost:     45,
		Wheelie:   true,
		Subsystems: map[string]any{
			"drift": map[string]any{"state": "hop"},
		},
	}

	m := CoreToFrameState(original, 3)
	assert.Equal(t, uint(3), m.RunID)
	assert.JSONEq(t, `{"drift":{"state":"hop"}}`, string(m.Subsystems))

	got := FrameStateToCore(m)
	assert.Equal(t, original, got)
}

func TestCoreToFrameState_EmptySubsystems(t *testing.T) {
	m := CoreToFrameState(core.FrameState{Frame: 1}, 1)
	assert.Equal(t, datatypes.JSON("{}"), m.Subsystems)
}

func TestDesyncRoundTrip(t *testing.T) {
	original := core.Desync{
		Frame:    200,
		Time:     time.Now().Truncate(time.Millisecond),
		Fields:   []string{"pos"},
		Expected: core.Position3D{X: 1, Y: 2, Z: 3},
		Actual:   core.Position3D{X: 1, Y: 2.5, Z: 3},
	}

	m := CoreToDesync(original, 9)
	assert.Equal(t, uint(9), m.RunID)

	got := DesyncToCore(m)
	assert.Equal(t, original, got)
}

func TestApplyResult(t *testing.T) {
	r := CoreToRun(core.Run{ID: 1})
	frame := uint32(250)
	end := time.Now()

	ApplyResult(&r, core.RunResult{Frames: 300, EndTime: end, DesyncFrame: &frame, Fields: []string{"pos"}},
		[]core.Position3D{{X: 0}, {X: 3, Z: 4}})

	assert.Equal(t, uint32(300), r.Frames)
	assert.False(t, r.InSync)
	require.NotNil(t, r.DesyncFrame)
	assert.Equal(t, uint32(250), *r.DesyncFrame)
	assert.InDelta(t, 5.0, r.TrajectoryLength, 1e-9)
	assert.Equal(t, 2, r.Trajectory.Coordinates().Length())
}
