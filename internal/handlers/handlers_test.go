package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/internal/dispatcher"
	"github.com/OCAP2/kartreplay/internal/logging"
	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/OCAP2/kartreplay/internal/scenario"
	"github.com/OCAP2/kartreplay/internal/storage/memory"
	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	mu      sync.Mutex
	frames  []core.FrameState
	desyncs []core.Desync
	result  *core.RunResult
	failEnd bool
}

func (b *mockBackend) Init() error                { return nil }
func (b *mockBackend) Close() error               { return nil }
func (b *mockBackend) StartRun(r *core.Run) error { r.ID = 1; return nil }

func (b *mockBackend) RecordFrame(s *core.FrameState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, *s)
	return nil
}

func (b *mockBackend) RecordDesync(d *core.Desync) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.desyncs = append(b.desyncs, *d)
	return nil
}

func (b *mockBackend) EndRun(res *core.RunResult) error {
	if b.failEnd {
		return errors.New("disk full")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = res
	return nil
}

// mockTelemetry implements Telemetry for testing
type mockTelemetry struct {
	mu      sync.Mutex
	frames  int
	desyncs int
}

func (m *mockTelemetry) WriteFrame(*core.Run, *core.FrameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++
	return nil
}

func (m *mockTelemetry) WriteDesync(*core.Run, *core.Desync) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desyncs++
	return nil
}

func newDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func loadFlat(t *testing.T) *scenario.Scenario {
	t.Helper()
	s, err := scenario.Load(filepath.Join("..", "scenario", "testdata", "flat.json"))
	require.NoError(t, err)
	return s
}

func runScenario(t *testing.T, s *scenario.Scenario, d *dispatcher.Dispatcher) replay.Result {
	t.Helper()
	g, _, err := s.NewGame()
	require.NoError(t, err)
	res, err := replay.Run(context.Background(), g, s.FrameCount(), Observer(d, s.Reference))
	require.NoError(t, err)
	return res
}

func TestService_RecordsEveryFrame(t *testing.T) {
	s := loadFlat(t)
	d := newDispatcher(t)
	backend := &mockBackend{}
	telemetry := &mockTelemetry{}

	run := &core.Run{Course: s.Course.Name}
	require.NoError(t, backend.StartRun(run))
	NewService(Dependencies{Backend: backend, Telemetry: telemetry}, run).Register(d, 16)

	res := runScenario(t, s, d)
	_, err := Finish(d, res)
	require.NoError(t, err)

	require.Len(t, backend.frames, int(s.FrameCount()))
	for i, f := range backend.frames {
		require.Equal(t, uint32(i), f.Frame, "frames arrive in order")
	}
	assert.Equal(t, "intro", backend.frames[0].Stage)
	assert.Equal(t, "countdown", backend.frames[len(backend.frames)-1].Stage)
	assert.Equal(t, int(s.FrameCount()), telemetry.frames)

	require.NotNil(t, backend.result)
	assert.True(t, backend.result.InSync())
	assert.Equal(t, s.FrameCount(), backend.result.Frames)
}

func TestService_RecordsFirstDesync(t *testing.T) {
	s := loadFlat(t)

	// capture a self-consistent reference, then break frame 200
	g, _, err := s.NewGame()
	require.NoError(t, err)
	var ref []replay.ReferenceFrame
	_, err = replay.Run(context.Background(), g, s.FrameCount(), func(fr replay.FrameResult) error {
		ref = append(ref, replay.Capture(fr.Players[0]))
		return nil
	})
	require.NoError(t, err)
	expected := ref[200].Pos
	ref[200].Pos[1] += 1
	s.Reference = ref

	d := newDispatcher(t)
	backend := &mockBackend{}
	telemetry := &mockTelemetry{}
	run := &core.Run{}
	require.NoError(t, backend.StartRun(run))
	NewService(Dependencies{Backend: backend, Telemetry: telemetry}, run).Register(d, 16)

	res := runScenario(t, s, d)
	_, err = Finish(d, res)
	require.NoError(t, err)

	require.Len(t, backend.desyncs, 1)
	desync := backend.desyncs[0]
	assert.Equal(t, uint32(200), desync.Frame)
	assert.Equal(t, []string{replay.FieldPos}, desync.Fields)
	assert.Equal(t, float64(expected[1]+1), desync.Expected.Y)
	assert.Equal(t, float64(expected[1]), desync.Actual.Y)
	assert.Equal(t, 1, telemetry.desyncs)

	require.NotNil(t, backend.result)
	require.NotNil(t, backend.result.DesyncFrame)
	assert.Equal(t, uint32(200), *backend.result.DesyncFrame)
}

func TestService_ExportsWithMemoryBackend(t *testing.T) {
	s := loadFlat(t)
	d := newDispatcher(t)
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.Init())

	run := &core.Run{Course: "flat", Vehicle: s.VehicleName()}
	require.NoError(t, backend.StartRun(run))
	NewService(Dependencies{Backend: backend}, run).Register(d, 8)

	res := runScenario(t, s, d)
	path, err := Finish(d, res)
	require.NoError(t, err)
	assert.Equal(t, backend.GetExportedFilePath(), path)
	assert.FileExists(t, path.(string))
}

func TestService_EndError(t *testing.T) {
	d := newDispatcher(t)
	backend := &mockBackend{failEnd: true}
	NewService(Dependencies{Backend: backend}, &core.Run{}).Register(d, 1)

	_, err := Finish(d, replay.Result{DesyncFrame: replay.NoDesync})
	assert.ErrorContains(t, err, "disk full")
}

func TestService_RejectsWrongPayload(t *testing.T) {
	s := NewService(Dependencies{Backend: &mockBackend{}}, &core.Run{})

	_, err := s.handleFrame(dispatcher.Event{Command: dispatcher.CommandFrame, Payload: "nope"})
	assert.Error(t, err)
	_, err = s.handleDesync(dispatcher.Event{Command: dispatcher.CommandDesync})
	assert.Error(t, err)
	_, err = s.handleEnd(dispatcher.Event{Command: dispatcher.CommandEnd})
	assert.Error(t, err)
}

func TestRunResult(t *testing.T) {
	in := RunResult(replay.Result{Frames: 10, DesyncFrame: replay.NoDesync}, time.Time{})
	assert.True(t, in.InSync())

	out := RunResult(replay.Result{Frames: 10, DesyncFrame: 4, DesyncFields: []string{"dir"}}, time.Time{})
	require.NotNil(t, out.DesyncFrame)
	assert.Equal(t, uint32(4), *out.DesyncFrame)
	assert.Equal(t, []string{"dir"}, out.Fields)
}
