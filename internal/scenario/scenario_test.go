package scenario

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/player"
	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFlat(t *testing.T) *Scenario {
	t.Helper()
	s, err := Load(filepath.Join("testdata", "flat.json"))
	require.NoError(t, err)
	return s
}

func TestLoad_Testdata(t *testing.T) {
	s := loadFlat(t)

	assert.Equal(t, "flat", s.Name)
	assert.Len(t, s.Course.Faces, 2)
	assert.Len(t, s.Inputs, 100)
	assert.Equal(t, uint32(player.FrameCountdown+100), s.FrameCount())
	assert.Equal(t, "md_kart", s.VehicleName())

	stats := s.Vehicle.Stats()
	assert.Equal(t, float32(80), stats.Weight, "kart and driver weight are summed")
	assert.Equal(t, int32(30), stats.MiniTurboDuration)
}

func TestNewGame_Runs(t *testing.T) {
	s := loadFlat(t)
	s.Inputs = make([]player.Input, 400)
	for i := range s.Inputs {
		s.Inputs[i].Accelerate = true
	}

	g, w, err := s.NewGame()
	require.NoError(t, err)
	require.Len(t, w.Tris, 2)

	res, err := replay.Run(context.Background(), g, s.FrameCount(), nil)
	require.NoError(t, err)
	assert.True(t, res.InSync(), "no reference means nothing to desync against")

	p := g.Player(0)
	assert.Zero(t, p.Floor.Airtime)
	assert.Greater(t, p.Physics.Speed1, float32(0), "accelerated after the countdown")
	assert.Less(t, p.Physics.Pos[2], float32(-1000), "drove down the long side of the floor")
}

var updateGolden = flag.Bool("update", false, "rewrite testdata/flat.rkrd from the current simulation")

// TestFlat_GoldenReference replays flat.json against its committed reference log.
// Any change to the physics output shows up here as a desync.
func TestFlat_GoldenReference(t *testing.T) {
	golden := filepath.Join("testdata", "flat.rkrd")
	s := loadFlat(t)
	frames := s.FrameCount()

	if *updateGolden {
		g, _, err := s.NewGame()
		require.NoError(t, err)
		var ref []replay.ReferenceFrame
		_, err = replay.Run(context.Background(), g, frames, func(fr replay.FrameResult) error {
			ref = append(ref, replay.Capture(fr.Players[0]))
			return nil
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, replay.WriteReferenceLog(&buf, ref))
		require.NoError(t, os.WriteFile(golden, buf.Bytes(), 0644))
	}

	f, err := os.Open(golden)
	require.NoError(t, err, "generate it with: go test ./internal/scenario -run TestFlat_GoldenReference -update")
	defer f.Close()
	s.Reference, err = replay.ReadReferenceLog(f)
	require.NoError(t, err)
	require.Len(t, s.Reference, int(frames))

	g, _, err := s.NewGame()
	require.NoError(t, err)
	res, err := replay.Run(context.Background(), g, frames, nil)
	require.NoError(t, err)

	assert.True(t, res.InSync(), "desync at frame %d: %v", res.DesyncFrame, res.DesyncFields)
	assert.Equal(t, frames, res.Frames)
	_, desync := g.Desync()
	assert.False(t, desync)
}

func TestSave_RoundTrip(t *testing.T) {
	s := loadFlat(t)
	dir := t.TempDir()

	for _, name := range []string{"out.json", "out.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, s.Save(path))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out.json.gz"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])
}

func TestLoad_GhostAndReferenceFiles(t *testing.T) {
	dir := t.TempDir()

	inputs := []player.Input{{Accelerate: true}, {Drift: true, StickX: -1}}
	block, err := replay.EncodeInputs(inputs)
	require.NoError(t, err)
	ghost := make([]byte, 0x88)
	copy(ghost, "RKGD")
	ghost[8] = 1 << 2 // vehicle id 1
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.rkg"), append(ghost, block...), 0644))

	ref := []replay.ReferenceFrame{{Pos: mathf.Vec3{1, 2, 3}}}
	var buf bytes.Buffer
	require.NoError(t, replay.WriteReferenceLog(&buf, ref))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.rkrd"), buf.Bytes(), 0644))

	s := loadFlat(t)
	s.Inputs = nil
	s.Vehicle.Name = ""
	s.GhostFile = "run.rkg"
	s.ReferenceLog = "run.rkrd"
	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, s.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, inputs, got.Inputs)
	assert.Equal(t, ref, got.Reference)
	require.NotNil(t, got.Ghost)
	assert.Equal(t, "mdf_kart", got.VehicleName())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	s := loadFlat(t)
	s.ReferenceLog = "nope.rkrd"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nope.rkrd"), []byte("RKRD\x00\x00\x00\x02\x00"), 0644))
	path := filepath.Join(dir, "ref.json")
	require.NoError(t, s.Save(path))
	_, err = Load(path)
	assert.ErrorIs(t, err, replay.ErrBadReferenceLog)
}

func TestCourse_Errors(t *testing.T) {
	var empty Course
	_, err := empty.World()
	assert.ErrorIs(t, err, ErrEmptyCourse)

	c := Course{
		Vertices: []mathf.Vec3{{0, 0, 0}, {0, 0, 1}},
		Faces:    []Face{{V: [3]uint32{0, 1, 2}}},
	}
	_, err = c.World()
	assert.Error(t, err)

	c.Vertices = append(c.Vertices, mathf.Vec3{0, 0, 2})
	_, err = c.World()
	assert.ErrorIs(t, err, kcl.ErrDegenerateTriangle)
}

func TestCourseFromWorld_RoundTrip(t *testing.T) {
	s := loadFlat(t)
	w, err := s.Course.World()
	require.NoError(t, err)

	c := CourseFromWorld("flat", w)
	require.NotNil(t, c.Octree)

	got, err := c.World()
	require.NoError(t, err)
	assert.Equal(t, w.Header, got.Header)
	assert.Equal(t, w.Tris, got.Tris)
	assert.Equal(t, w.Octree, got.Octree)

	c.Octree.Roots = c.Octree.Roots[:0]
	_, err = c.World()
	assert.ErrorIs(t, err, kcl.ErrInvalidOctree)
}

func TestNewGame_NoInputs(t *testing.T) {
	s := loadFlat(t)
	s.Inputs = nil

	_, _, err := s.NewGame()
	assert.ErrorIs(t, err, ErrNoInputs)
}
