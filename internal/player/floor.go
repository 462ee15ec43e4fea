package player

import (
	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
)

// Floor is the ground contact summary of the last frame.
type Floor struct {
	Valid          bool
	HasTrickable   bool
	StickyEnabled  bool
	TrickableTimer uint8
	Normal         mathf.Vec3
	Airtime        uint32
	LastAirtime    uint32
	SpeedFactor    float32
	RotationFactor float32
	Invincibility  uint16
}

func newFloor() Floor {
	return Floor{SpeedFactor: 1, RotationFactor: 1}
}

// IsLanding reports the first grounded frame after being airborne.
func (f *Floor) IsLanding() bool {
	return f.Airtime == 0 && f.LastAirtime != 0
}

// ActivateInvincibility extends invincibility to at least duration frames.
func (f *Floor) ActivateInvincibility(duration uint16) {
	if duration > f.Invincibility {
		f.Invincibility = duration
	}
}

func (f *Floor) update(p *Player) {
	trickable := false

	f.Valid = false
	f.Normal = mathf.Zero

	for i := range p.Wheels {
		c := &p.Wheels[i].Collision
		if c.Valid {
			f.Normal = f.Normal.Add(c.FloorNormal)
			f.Valid = true
		}
		trickable = trickable || c.HasTrickable
	}

	body := &p.Body.Collision
	if body.Valid {
		f.Normal = f.Normal.Add(body.FloorNormal)
		f.Valid = true
	}
	trickable = trickable || body.HasTrickable

	f.LastAirtime = f.Airtime

	if f.Valid {
		f.Normal.Normalize()
		f.Airtime = 0
	} else {
		f.Airtime++
	}

	if f.TrickableTimer > 0 {
		f.TrickableTimer--
	}

	if f.Airtime == 0 {
		if trickable {
			f.TrickableTimer = 3
			f.HasTrickable = true
		} else {
			f.HasTrickable = f.TrickableTimer > 0
		}
	}
}

// updateFactors blends the surface speed and rotation multipliers of everything
// touching the ground. When wheels and body both touch, the body is counted twice
// in the divisor; replays depend on that.
func (f *Floor) updateFactors(p *Player) {
	if f.Invincibility > 0 {
		f.SpeedFactor = p.Stats.SpeedMultipliers[0]
		f.RotationFactor = p.Stats.RotationMultipliers[0]
		return
	}

	speedMin := mathf.MaxFloat
	var rotSum float32
	count := 0

	for i := range p.Wheels {
		c := &p.Wheels[i].Collision
		if c.Valid {
			speedMin = mathf.Fmin(c.SpeedFactor, speedMin)
			rotSum += c.RotFactor
			count++
		}
	}

	body := &p.Body.Collision
	if body.Valid {
		speedMin = mathf.Fmin(body.SpeedFactor, speedMin)
		rotSum += body.RotFactor
	}

	if count == 0 && !body.Valid {
		return
	}

	if count > 0 && p.Body.HasFloorCollision {
		count++
	}
	if body.Valid {
		count++
	}

	f.SpeedFactor = speedMin
	f.RotationFactor = rotSum / float32(count)
}

const stickyProbeRadius = 200

// updateSticky keeps the vehicle glued to sticky roads by probing ahead and then
// progressively further down the vehicle's own down axis.
func (f *Floor) updateSticky(p *Player) {
	if p.Surface.HasStickyRoad {
		f.StickyEnabled = true
	} else if !f.StickyEnabled {
		return
	}

	ph := &p.Physics
	pos := ph.Pos
	vel := ph.Vel1Dir.Scale(ph.Speed1)
	down := mathf.Vec3{
		-stickyProbeRadius * ph.Mat.At(0, 1),
		-stickyProbeRadius * ph.Mat.At(1, 1),
		-stickyProbeRadius * ph.Mat.At(2, 1),
	}

	for i := 0; i < 3; i++ {
		hb := kcl.NewHitbox(pos.Add(vel), nil, stickyProbeRadius, kcl.MaskSticky)
		col := p.world.CollideHitbox(&hb)
		if col.Has(kcl.MaskSticky) {
			ph.Vel1Dir = ph.Vel1Dir.CrossPlane(col.FloorNormal)
			ph.Vel1Dir.Normalize()
			return
		}
		pos = pos.Add(down)
		vel = vel.Scale(0.5)
	}

	f.StickyEnabled = false
}
