package replay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/player"
	"github.com/OCAP2/kartreplay/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer(t *testing.T) *player.Player {
	t.Helper()

	tri, err := kcl.NewTriangle(
		mathf.Vec3{-1000, 0, -1000},
		mathf.Vec3{-1000, 0, 3000},
		mathf.Vec3{3000, 0, -1000},
		kcl.Attribute(kcl.KindRoad),
	)
	require.NoError(t, err)
	w, err := kcl.BuildWorld([]kcl.Triangle{tri}, kcl.BuildOptions{})
	require.NoError(t, err)

	stats := vehicle.Params{
		DriftType:               vehicle.DriftKartOutside,
		WeightClass:             vehicle.WeightMedium,
		Weight:                  80,
		Speed:                   80,
		SpeedInTurn:             0.8,
		Tilt:                    0.2,
		AccelerationYs:          [4]float32{1.0, 2.0, 3.0, 4.0},
		AccelerationXs:          [4]float32{0.0, 0.2, 0.5, 0.8},
		DriftAccelerationYs:     [2]float32{1.0, 2.0},
		DriftAccelerationXs:     [2]float32{0.0, 0.5},
		HandlingTightnessManual: 0.7,
		HandlingReactivity:      0.7,
		DriftTightnessManual:    0.05,
		DriftReactivity:         0.6,
		DriftTargetAngle:        40,
		DriftDecrement:          2,
		MiniTurboDuration:       30,
		MaxNormalAcceleration:   5,
	}
	for i := range stats.SpeedMultipliers {
		stats.SpeedMultipliers[i] = 1
		stats.RotationMultipliers[i] = 1
	}

	wheel := vehicle.Wheel{
		SuspensionDistance: 0.1,
		SuspensionSpeed:    0.3,
		SuspensionSlack:    30,
		SuspensionTop:      mathf.Vec3{40, 0, 50},
		Radius:             15,
		SphereRadius:       12,
	}
	rear := wheel
	rear.SuspensionTop = mathf.Vec3{40, 0, -50}

	bsp := &vehicle.Bsp{
		Hitboxes: []vehicle.Hitbox{
			{Center: mathf.Vec3{0, 30, 30}, Radius: 20},
			{Center: mathf.Vec3{0, 30, -30}, Radius: 20},
		},
		Cuboids:              [2]mathf.Vec3{{100, 50, 150}, {20, 20, 20}},
		AngularVelocityBoost: 1,
		Wheels:               []vehicle.Wheel{wheel, rear},
	}

	p, err := player.Place(w, stats, bsp, nil, mathf.Vec3{0, 100, 0})
	require.NoError(t, err)
	return p
}

func testInputs(n int) []player.Input {
	inputs := make([]player.Input, n)
	for i := range inputs {
		in := &inputs[i]
		in.Accelerate = true
		if i > 300 {
			in.StickX = float32(4) / 7
		}
		if i > 320 && i < 360 {
			in.Drift = true
		}
	}
	return inputs
}

// captureRun simulates frames frames and records the reference log it produced.
func captureRun(t *testing.T, inputs []player.Input, frames uint32) []ReferenceFrame {
	t.Helper()

	g := NewGame(nil)
	g.AddPlayer(testPlayer(t), inputs)

	var log []ReferenceFrame
	_, err := Run(context.Background(), g, frames, func(f FrameResult) error {
		log = append(log, Capture(f.Players[0]))
		return nil
	})
	require.NoError(t, err)
	return log
}

func TestInputAt(t *testing.T) {
	inputs := []player.Input{{Accelerate: true}, {Brake: true}}

	assert.Equal(t, player.Input{}, InputAt(inputs, 0))
	assert.Equal(t, player.Input{}, InputAt(inputs, player.FrameCountdown-1))
	assert.True(t, InputAt(inputs, player.FrameCountdown).Accelerate)
	assert.True(t, InputAt(inputs, player.FrameCountdown+1).Brake)
	assert.Equal(t, player.Input{}, InputAt(inputs, player.FrameCountdown+2), "past the stream is neutral")
	assert.Equal(t, player.Input{}, InputAt(nil, math.MaxUint32))
}

func TestGame_SelfCaptureStaysInSync(t *testing.T) {
	inputs := testInputs(300)
	frames := uint32(player.FrameCountdown + len(inputs))
	ref := captureRun(t, inputs, frames)
	require.Len(t, ref, int(frames))

	g := NewGame(ref)
	g.AddPlayer(testPlayer(t), inputs)

	res, err := Run(context.Background(), g, frames, nil)
	require.NoError(t, err)

	assert.True(t, res.InSync())
	assert.Equal(t, frames, res.Frames)
	assert.Equal(t, frames, g.Frame())
	_, desync := g.Desync()
	assert.False(t, desync)
}

func TestGame_FirstDesyncIsKept(t *testing.T) {
	inputs := testInputs(100)
	frames := uint32(player.FrameCountdown + len(inputs))
	ref := captureRun(t, inputs, frames)

	ref[200].Pos[0] += 0.001
	ref[250].Speed1 += 1

	g := NewGame(ref)
	g.AddPlayer(testPlayer(t), inputs)

	var reported []uint32
	res, err := Run(context.Background(), g, frames, func(f FrameResult) error {
		if f.Desync != nil {
			reported = append(reported, f.Index)
		}
		return nil
	})
	require.NoError(t, err)

	frame, ok := g.Desync()
	require.True(t, ok)
	assert.Equal(t, uint32(200), frame)
	assert.Equal(t, []string{FieldPos}, g.DesyncFields())
	assert.Equal(t, []uint32{200}, reported, "only the first desync is reported")
	assert.Equal(t, frames, g.Frame(), "simulation continues past a desync")
	assert.False(t, res.InSync())
}

func TestGame_ReferenceShorterThanRun(t *testing.T) {
	ref := captureRun(t, nil, 10)

	g := NewGame(ref)
	g.AddPlayer(testPlayer(t), nil)
	res, err := Run(context.Background(), g, 50, nil)
	require.NoError(t, err)
	assert.True(t, res.InSync())
}

func TestGame_StagePerFrame(t *testing.T) {
	g := NewGame(nil)
	g.AddPlayer(testPlayer(t), nil)

	stages := map[uint32]player.Stage{}
	_, err := Run(context.Background(), g, player.FrameRaceStart+1, func(f FrameResult) error {
		stages[f.Index] = f.Stage
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, player.StageIntro, stages[player.FrameCountdown-1])
	assert.Equal(t, player.StageCountdown, stages[player.FrameCountdown])
	assert.Equal(t, player.StageCountdown, stages[player.FrameRace])
	assert.Equal(t, player.StageRace, stages[player.FrameRaceStart])
}

func TestRun_StopsOnCanceledContext(t *testing.T) {
	g := NewGame(nil)
	g.AddPlayer(testPlayer(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := Run(ctx, g, 100, func(f FrameResult) error {
		if f.Index == 4 {
			cancel()
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(5), res.Frames)
	assert.Equal(t, uint32(5), g.Frame(), "the frame in progress completes")
}

func TestRun_ObserverError(t *testing.T) {
	g := NewGame(nil)
	g.AddPlayer(testPlayer(t), nil)

	boom := errors.New("boom")
	res, err := Run(context.Background(), g, 100, func(f FrameResult) error {
		if f.Index == 2 {
			return boom
		}
		return nil
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint32(3), res.Frames)
}

func TestCompare(t *testing.T) {
	p := testPlayer(t)
	ref := Capture(p)

	assert.Empty(t, Compare(&p.Physics, &ref))

	ref.MainRot[3] = float32(math.NaN())
	ref.FloorNormal[1] = 2
	assert.Equal(t, []string{FieldUp, FieldMainRot}, Compare(&p.Physics, &ref))

	ref = Capture(p)
	p.Physics.Vel[0] = float32(math.NaN())
	ref.Vel[0] = float32(math.NaN())
	assert.Equal(t, []string{FieldVel}, Compare(&p.Physics, &ref), "NaN never matches")
}

func TestReferenceLog_RoundTrip(t *testing.T) {
	frames := []ReferenceFrame{
		{
			RotVec2:         mathf.Vec3{1, 2, 3},
			Speed1SoftLimit: 84.5,
			Speed1:          -0.25,
			FloorNormal:     mathf.Up,
			Pos:             mathf.Vec3{-14720, 1000, -2954.3},
			MainRot:         mathf.Quat{0, 1, 0, 0},
			FullRot:         mathf.Identity,
			Animation:       7,
			CheckpointIdx:   0xBEEF,
		},
		{Vel: mathf.Vec3{float32(math.Inf(1)), 0, -0}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReferenceLog(&buf, frames))
	assert.Equal(t, referenceHeaderLen+2*ReferenceFrameSize, buf.Len())
	assert.Equal(t, 140, ReferenceFrameSize)
	assert.Equal(t, []byte("RKRD\x00\x00\x00\x02"), buf.Bytes()[:8])

	got, err := ReadReferenceLog(&buf)
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}

func TestReferenceLog_FrameLayout(t *testing.T) {
	data := make([]byte, referenceHeaderLen+140)
	copy(data, "RKRD\x00\x00\x00\x02")
	frame := data[referenceHeaderLen:]
	put := func(off int, v float32) {
		binary.BigEndian.PutUint32(frame[off:], math.Float32bits(v))
	}
	put(0, 1)     // rot_vec2
	put(12, 84.5) // speed1 soft limit
	put(16, 80)   // speed1
	put(24, 1)    // floor normal y
	put(44, -14720)
	put(52, -2954.5) // pos z
	put(92, 3)       // vel x
	put(116, 1)      // main_rot w
	put(132, 1)      // full_rot w
	binary.BigEndian.PutUint16(frame[136:], 7)
	binary.BigEndian.PutUint16(frame[138:], 12)

	frames, err := DecodeReferenceLog(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0]
	assert.Equal(t, mathf.Vec3{1, 0, 0}, f.RotVec2)
	assert.Equal(t, float32(84.5), f.Speed1SoftLimit)
	assert.Equal(t, float32(80), f.Speed1)
	assert.Equal(t, mathf.Up, f.FloorNormal)
	assert.Equal(t, mathf.Vec3{-14720, 0, -2954.5}, f.Pos)
	assert.Equal(t, mathf.Vec3{3, 0, 0}, f.Vel)
	assert.Equal(t, mathf.Identity, f.MainRot)
	assert.Equal(t, mathf.Identity, f.FullRot)
	assert.Equal(t, uint16(7), f.Animation)
	assert.Equal(t, uint16(12), f.CheckpointIdx)

	var buf bytes.Buffer
	require.NoError(t, WriteReferenceLog(&buf, frames))
	assert.Equal(t, data, buf.Bytes(), "writing a decoded log gives back the same bytes")
}

func TestReferenceLog_Rejects(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReferenceLog(&buf, make([]ReferenceFrame, 1)))
	good := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("RKRX"), good[4:]...)},
		{"bad version", append([]byte("RKRD\x00\x00\x00\x01"), good[8:]...)},
		{"truncated frame", good[:len(good)-1]},
		{"trailing bytes", append(append([]byte{}, good...), 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeReferenceLog(tc.data)
			assert.ErrorIs(t, err, ErrBadReferenceLog)
		})
	}

	frames, err := DecodeReferenceLog([]byte("RKRD\x00\x00\x00\x02"))
	require.NoError(t, err)
	assert.Empty(t, frames)
}
