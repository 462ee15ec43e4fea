package gormstorage

import (
	"errors"
	"testing"
	"time"

	"github.com/OCAP2/kartreplay/internal/database"
	"github.com/OCAP2/kartreplay/internal/model"
	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{Logger: zerolog.Nop()})
}

func newSqliteBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB("", zerolog.Nop())
	require.NoError(t, err)
	b := New(Dependencies{DB: db, Logger: zerolog.Nop(), FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestInitClose(t *testing.T) {
	b := newTestBackend()

	err := b.Init()
	require.NoError(t, err)
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")
}

func TestInit_ConnectError(t *testing.T) {
	b := New(Dependencies{
		Logger:  zerolog.Nop(),
		Connect: func() (*gorm.DB, error) { return nil, errors.New("refused") },
	})
	assert.ErrorContains(t, b.Init(), "refused")
}

func TestRecordFrame_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.RecordFrame(&core.FrameState{}), core.ErrNoRun)

	run := &core.Run{Course: "flat"}
	require.NoError(t, b.StartRun(run))
	assert.Equal(t, uint(1), run.ID)

	require.NoError(t, b.RecordFrame(&core.FrameState{Frame: 0}))
	require.NoError(t, b.RecordFrame(&core.FrameState{Frame: 1}))
	assert.Equal(t, 2, b.queues.FrameStates.Len())
}

func TestRecordDesync_KeepsFirst(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(&core.Run{}))
	require.NoError(t, b.RecordDesync(&core.Desync{Frame: 200}))
	require.NoError(t, b.RecordDesync(&core.Desync{Frame: 250}))

	require.Equal(t, 1, b.queues.Desyncs.Len())
	assert.Equal(t, uint32(200), b.queues.Desyncs.Take(1)[0].Frame)
}

func TestEndRun_WithoutRun(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.EndRun(&core.RunResult{}), core.ErrNoRun)
}

func TestRun_PersistsToSQLite(t *testing.T) {
	b := newSqliteBackend(t)
	db := b.DB()

	run := &core.Run{Scenario: "flat.json", Course: "flat", Vehicle: "md_kart", PlannedFrames: 3, StartTime: time.Now()}
	require.NoError(t, b.StartRun(run))
	require.NotZero(t, run.ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.RecordFrame(&core.FrameState{
			Frame:      uint32(i),
			Stage:      "race",
			Position:   core.Position3D{X: float64(i) * 3, Y: 5, Z: float64(i) * 4},
			Speed:      float32(i),
			Subsystems: map[string]any{"drift": "idle"},
		}))
	}
	require.NoError(t, b.RecordDesync(&core.Desync{Frame: 2, Fields: []string{"pos"}}))

	frame := uint32(2)
	require.NoError(t, b.EndRun(&core.RunResult{Frames: 3, EndTime: time.Now(), DesyncFrame: &frame}))

	var states []model.FrameState
	require.NoError(t, db.Where("run_id = ?", run.ID).Order("frame").Find(&states).Error)
	require.Len(t, states, 3)
	assert.Equal(t, float32(2), states[2].Speed)
	assert.JSONEq(t, `{"drift":"idle"}`, string(states[0].Subsystems))

	var desyncs []model.Desync
	require.NoError(t, db.Find(&desyncs).Error)
	require.Len(t, desyncs, 1)
	assert.JSONEq(t, `["pos"]`, string(desyncs[0].Fields))

	var stored model.Run
	require.NoError(t, db.First(&stored, run.ID).Error)
	assert.Equal(t, uint32(3), stored.Frames)
	assert.False(t, stored.InSync)
	require.NotNil(t, stored.DesyncFrame)
	assert.Equal(t, uint32(2), *stored.DesyncFrame)
	assert.InDelta(t, 10.0, stored.TrajectoryLength, 1e-9)
	assert.Equal(t, 3, stored.Trajectory.Coordinates().Length())
}

func TestClose_FlushesQueues(t *testing.T) {
	db, err := database.GetSqliteDB("", zerolog.Nop())
	require.NoError(t, err)
	b := New(Dependencies{DB: db, Logger: zerolog.Nop(), FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.StartRun(&core.Run{}))
	require.NoError(t, b.RecordFrame(&core.FrameState{Frame: 1}))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.FrameState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
