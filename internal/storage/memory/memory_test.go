package memory

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun() *core.Run {
	return &core.Run{
		Scenario:        "flat.json",
		Course:          "flat course",
		Vehicle:         "md_kart",
		PlannedFrames:   3,
		ReferenceFrames: 3,
		StartTime:       time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
	}
}

func recordRun(t *testing.T, b *Backend) *core.RunResult {
	t.Helper()
	require.NoError(t, b.StartRun(testRun()))
	for i, x := range []float64{0, 3, 3} {
		require.NoError(t, b.RecordFrame(&core.FrameState{
			Frame:    uint32(i),
			Stage:    "race",
			Position: core.Position3D{X: x, Y: 10, Z: float64(i) * 4},
			Speed:    float32(i),
		}))
	}

	frame := uint32(1)
	require.NoError(t, b.RecordDesync(&core.Desync{Frame: 1, Fields: []string{"pos"}}))
	require.NoError(t, b.RecordDesync(&core.Desync{Frame: 2, Fields: []string{"speed1"}}))

	res := &core.RunResult{Frames: 3, EndTime: time.Now(), DesyncFrame: &frame, Fields: []string{"pos"}}
	require.NoError(t, b.EndRun(res))
	return res
}

func readExport(t *testing.T, path string) RunExport {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		r = gz
	}

	var export RunExport
	require.NoError(t, json.NewDecoder(r).Decode(&export))
	return export
}

func TestStartRun_AssignsIDs(t *testing.T) {
	b := New(config.MemoryConfig{})
	r1, r2 := testRun(), testRun()
	require.NoError(t, b.StartRun(r1))
	require.NoError(t, b.StartRun(r2))
	assert.Equal(t, uint(1), r1.ID)
	assert.Equal(t, uint(2), r2.ID)
}

func TestRecord_WithoutRun(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.ErrorIs(t, b.RecordFrame(&core.FrameState{}), core.ErrNoRun)
	assert.ErrorIs(t, b.RecordDesync(&core.Desync{}), core.ErrNoRun)
	assert.ErrorIs(t, b.EndRun(&core.RunResult{}), core.ErrNoRun)
}

func TestEndRun_ExportsJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.Init())
	defer b.Close()

	recordRun(t, b)

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "flat_course_md_kart_20260301_123045.json"), path)

	export := readExport(t, path)
	assert.Equal(t, "flat course", export.Course)
	assert.Equal(t, uint32(3), export.Frames)
	assert.False(t, export.InSync)
	require.NotNil(t, export.Desync)
	assert.Equal(t, uint32(1), export.Desync.Frame, "only the first desync is kept")
	assert.Equal(t, []string{"pos"}, export.Desync.Fields)
	require.Len(t, export.States, 3)
	assert.Equal(t, [3]float64{3, 10, 4}, export.States[1].Position)

	// (0,0) -> (3,4) -> (3,8) on the ground plane
	assert.InDelta(t, 9.0, export.TrajectoryLength, 1e-9)
	assert.True(t, strings.HasPrefix(export.Trajectory, "LINESTRING Z"), export.Trajectory)
}

func TestEndRun_ExportsGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	recordRun(t, b)

	path := b.GetExportedFilePath()
	assert.True(t, strings.HasSuffix(path, ".json.gz"))
	export := readExport(t, path)
	assert.Len(t, export.States, 3)
}

func TestStartRun_ResetsState(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	recordRun(t, b)

	require.NoError(t, b.StartRun(testRun()))
	assert.Empty(t, b.GetFrames())
}
