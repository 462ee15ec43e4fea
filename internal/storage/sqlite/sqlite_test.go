package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/database"
	"github.com/OCAP2/kartreplay/internal/model"
	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndRun_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	b, err := New(config.SQLiteConfig{DumpPath: path, DumpInterval: time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	run := &core.Run{Course: "flat", Vehicle: "md_kart", StartTime: time.Now()}
	require.NoError(t, b.StartRun(run))
	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordFrame(&core.FrameState{Frame: uint32(i), Stage: "intro"}))
	}
	require.NoError(t, b.EndRun(&core.RunResult{Frames: 5, EndTime: time.Now()}))

	disk, err := database.GetSqliteDB(path, zerolog.Nop())
	require.NoError(t, err)

	var runs []model.Run
	require.NoError(t, disk.Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].InSync)
	assert.Equal(t, uint32(5), runs[0].Frames)

	var count int64
	require.NoError(t, disk.Model(&model.FrameState{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(config.SQLiteConfig{DumpPath: path, DumpInterval: 10 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestClose_WithoutDumpPath(t *testing.T) {
	b, err := New(config.SQLiteConfig{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}
