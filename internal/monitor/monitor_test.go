package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_StatusBeforeStart(t *testing.T) {
	s := NewService(Dependencies{})

	st := s.GetStatus()
	assert.Equal(t, int64(-1), st.Frame)
	assert.False(t, st.Done)
	assert.Zero(t, st.Elapsed)
	assert.False(t, s.IsRunning())
}

func TestService_WritesStatusFile(t *testing.T) {
	var frame atomic.Int64
	frame.Store(-1)
	path := filepath.Join(t.TempDir(), "status.json")

	s := NewService(Dependencies{
		Frame:      frame.Load,
		StatusFile: path,
		Interval:   10 * time.Millisecond,
	})
	require.NoError(t, s.Start("flat", 272))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start("other", 1), "starting twice is a no-op")

	frame.Store(99)
	assert.Eventually(t, func() bool {
		raw, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var st Status
		return json.Unmarshal(raw, &st) == nil && st.Frame == 99
	}, time.Second, 10*time.Millisecond)

	frame.Store(271)
	s.Stop()
	assert.False(t, s.IsRunning())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, "flat", st.Scenario)
	assert.Equal(t, int64(271), st.Frame)
	assert.Equal(t, uint32(272), st.Frames)
	assert.True(t, st.Done)
	assert.Greater(t, st.FramesPerSecond, 0.0)

	s.Stop()
}

func TestService_NoStatusFile(t *testing.T) {
	s := NewService(Dependencies{Interval: time.Millisecond})
	require.NoError(t, s.Start("flat", 10))
	time.Sleep(5 * time.Millisecond)
	s.Stop()

	assert.True(t, s.GetStatus().Done)
}
