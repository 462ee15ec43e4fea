package replay

import (
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/player"
)

// ReferenceFrame is one frame of physics state recorded from the game, used to
// detect divergence of the simulation.
type ReferenceFrame struct {
	RotVec2         mathf.Vec3 `json:"rotVec2"`
	Speed1SoftLimit float32    `json:"speed1SoftLimit"`
	Speed1          float32    `json:"speed1"`
	FloorNormal     mathf.Vec3 `json:"floorNormal"`
	Dir             mathf.Vec3 `json:"dir"`
	Pos             mathf.Vec3 `json:"pos"`
	Vel0            mathf.Vec3 `json:"vel0"`
	RotVec0         mathf.Vec3 `json:"rotVec0"`
	Vel2            mathf.Vec3 `json:"vel2"`
	Vel             mathf.Vec3 `json:"vel"`
	MainRot         mathf.Quat `json:"mainRot"`
	FullRot         mathf.Quat `json:"fullRot"`
	Animation       uint16     `json:"animation"`
	CheckpointIdx   uint16     `json:"checkpointIdx"`
}

// Compared field names, in comparison order.
const (
	FieldUp      = "up"
	FieldDir     = "dir"
	FieldPos     = "pos"
	FieldVel0    = "vel0"
	FieldSpeed1  = "speed1"
	FieldVel     = "vel"
	FieldRotVec0 = "rot_vec0"
	FieldRotVec2 = "rot_vec2"
	FieldMainRot = "main_rot"
	FieldFullRot = "full_rot"
)

// Compare checks the simulated state against a reference frame with exact float
// equality and returns the names of the fields that differ. An empty result means
// the frame is in sync. NaN never compares equal.
func Compare(ph *player.Physics, ref *ReferenceFrame) []string {
	var diff []string

	check := func(name string, equal bool) {
		if !equal {
			diff = append(diff, name)
		}
	}

	check(FieldUp, vecEqual(ph.Up, ref.FloorNormal))
	check(FieldDir, vecEqual(ph.Dir, ref.Dir))
	check(FieldPos, vecEqual(ph.Pos, ref.Pos))
	check(FieldVel0, vecEqual(ph.Vel0, ref.Vel0))
	check(FieldSpeed1, ph.Speed1 == ref.Speed1)
	check(FieldVel, vecEqual(ph.Vel, ref.Vel))
	check(FieldRotVec0, vecEqual(ph.RotVec0, ref.RotVec0))
	check(FieldRotVec2, vecEqual(ph.RotVec2, ref.RotVec2))
	check(FieldMainRot, quatEqual(ph.MainRot, ref.MainRot))
	check(FieldFullRot, quatEqual(ph.FullRot, ref.FullRot))

	return diff
}

// Capture records the state of a player in reference frame form. Fields the
// simulation does not model (Vel2, animation, checkpoint) are left zero.
func Capture(p *player.Player) ReferenceFrame {
	ph := &p.Physics
	return ReferenceFrame{
		RotVec2:         ph.RotVec2,
		Speed1SoftLimit: ph.Speed1SoftLimit,
		Speed1:          ph.Speed1,
		FloorNormal:     ph.Up,
		Dir:             ph.Dir,
		Pos:             ph.Pos,
		Vel0:            ph.Vel0,
		RotVec0:         ph.RotVec0,
		Vel:             ph.Vel,
		MainRot:         ph.MainRot,
		FullRot:         ph.FullRot,
	}
}

func vecEqual(a, b mathf.Vec3) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2]
}

func quatEqual(a, b mathf.Quat) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2] && a[3] == b[3]
}
