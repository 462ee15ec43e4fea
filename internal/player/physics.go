package player

import (
	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/vehicle"
)

// DrivingDir is the forward/brake/reverse state machine.
type DrivingDir int

const (
	DrivingForward DrivingDir = iota
	DrivingBraking
	DrivingWaitBackward
	DrivingBackward
)

// Gravity is the per-frame vertical acceleration.
const Gravity float32 = -1.3

const maxSpeed = 120

// Physics is the rigid body state of a vehicle. Vel0 is the free velocity, Vel1
// the driven velocity along Vel1Dir; their sum is integrated into Pos.
type Physics struct {
	InvInertiaTensor    mathf.Mat34
	RotFactor           float32
	Mat                 mathf.Mat34
	Up                  mathf.Vec3
	SmoothedUp          mathf.Vec3
	Dir                 mathf.Vec3
	DirDiff             mathf.Vec3
	Vel1Dir             mathf.Vec3
	LandingDirValid     bool
	LandingAngle        float32
	LandingDir          mathf.Vec3
	Pos                 mathf.Vec3
	Gravity             float32
	NormalAcceleration  float32
	Vel0                mathf.Vec3
	Vel1                mathf.Vec3
	LastSpeed1          float32
	Speed1              float32
	Speed1Adj           float32
	Speed1SoftLimit     float32
	Speed1Ratio         float32
	Vel                 mathf.Vec3
	NormalRotVec        mathf.Vec3
	RotVec0             mathf.Vec3
	RotVec2             mathf.Vec3
	MainRot             mathf.Quat
	NonConservedRot     mathf.Quat
	ConservedRot        mathf.Quat
	FullRot             mathf.Quat
	StabilizationFactor float32
	DrivingDir          DrivingDir
	BackwardFrame       int16
}

// Start point offsets applied to the course start position, in this order.
var (
	startOffset0 = mathf.Vec3{-800, 0, 461.87988}
	startOffset1 = mathf.Vec3{800, 0, -461.87991}
)

const placeProbeRadius = 100

// inverseInertia builds the diagonal inverse inertia tensor of the two bsp
// cuboids. The first cuboid is weighted by 1/12.
func inverseInertia(cuboids [2]mathf.Vec3) mathf.Mat34 {
	masses := [2]float32{float32(1) / 12, 1}

	var it mathf.Vec3
	for i, c := range cuboids {
		m := masses[i]
		sum := mathf.Vec3{
			m * (float32(c[1]*c[1]) + float32(c[2]*c[2])),
			m * (float32(c[2]*c[2]) + float32(c[0]*c[0])),
			m * (float32(c[0]*c[0]) + float32(c[1]*c[1])),
		}
		it = it.Add(sum)
	}

	det := it[0] * it[1] * it[2]
	recip := 1 / det
	return mathf.Mat34Diag(mathf.Vec3{
		recip * (it[1] * it[2]),
		recip * (it[2] * it[0]),
		recip * (it[0] * it[1]),
	})
}

// place puts the vehicle on the ground below start, facing back along z.
func (ph *Physics) place(w *kcl.World, bsp *vehicle.Bsp, start mathf.Vec3) {
	ph.InvInertiaTensor = inverseInertia(bsp.Cuboids)

	pos := start.Add(startOffset0).Add(startOffset1)

	hb := kcl.NewHitbox(pos, nil, placeProbeRadius, kcl.MaskVehicle)
	col := w.CollideHitbox(&hb)

	pos = pos.Add(col.Movement()).Sub(col.FloorNormal.Scale(placeProbeRadius))
	pos = pos.Add(col.FloorNormal.Scale(bsp.YOffset))

	*ph = Physics{
		InvInertiaTensor: ph.InvInertiaTensor,
		RotFactor:        bsp.AngularVelocityBoost,
		Mat:              mathf.Mat34FromQuatPos(mathf.QuatBack, pos),
		Up:               mathf.Up,
		SmoothedUp:       mathf.Up,
		Dir:              mathf.Back,
		Vel1Dir:          mathf.Back,
		Pos:              pos,
		Gravity:          Gravity,
		MainRot:          mathf.QuatBack,
		NonConservedRot:  mathf.Identity,
		ConservedRot:     mathf.Identity,
		FullRot:          mathf.QuatBack,
	}
}

// rotationTensor is the inverse inertia tensor expressed in world space.
func (ph *Physics) rotationTensor() mathf.Mat33 {
	rot := mathf.Mat34FromQuatPos(ph.MainRot, mathf.Zero)
	return rot.MulM(ph.InvInertiaTensor).MulM(rot.Transpose()).Mat33()
}

// update integrates velocity into position and angular velocity into MainRot.
func (ph *Physics) update(p *Player, stage Stage) {
	if stage != StageRace {
		if p.bike {
			ph.Vel0 = ph.Vel0.RejUnit(ph.SmoothedUp)
		} else {
			ph.Vel0[0] = 0
			ph.Vel0[2] = 0
		}
	}

	ph.Vel0[1] += ph.NormalAcceleration + ph.Gravity
	ph.NormalAcceleration = 0
	ph.Vel0 = ph.Vel0.Scale(0.998)
	ph.RotVec0 = ph.RotVec0.Scale(0.98)

	front := ph.MainRot.Rotate(mathf.Front)
	frontXZ := mathf.Vec3{front[0], 0, front[2]}
	if frontXZ.MagSqr() > mathf.Epsilon {
		frontXZ.Normalize()
		vel0 := ph.Vel0
		proj := vel0.ProjUnit(frontXZ)
		ph.Vel0 = vel0.RejUnit(frontXZ)
		ph.Speed1Adj = mathf.Sign(frontXZ.Dot(proj)) * proj.Mag() * front.Dot(frontXZ)
	}

	ph.Vel = ph.Vel0.Add(ph.Vel1)
	mag := ph.Vel.Normalize()
	ph.Vel = ph.Vel.Scale(mathf.Fmin(mag, maxSpeed))
	ph.Pos = ph.Pos.Add(ph.Vel)

	m := ph.InvInertiaTensor.Mat33()
	tmp0 := m.MulV(ph.NormalRotVec)
	tmp1 := m.MulV(ph.NormalRotVec.Add(tmp0))
	ph.RotVec0 = ph.RotVec0.Add(tmp0.Add(tmp1).Scale(0.5))
	ph.NormalRotVec = mathf.Zero

	if p.bike {
		ph.RotVec0[2] = 0
	}
	ph.RotVec0[0] = mathf.Clamp(ph.RotVec0[0], -0.4, 0.4)
	ph.RotVec0[1] = mathf.Clamp(ph.RotVec0[1], -0.4, 0.4)
	ph.RotVec0[2] = mathf.Clamp(ph.RotVec0[2], -0.8, 0.8)

	rv := ph.RotVec0.Scale(ph.RotFactor).Add(ph.RotVec2)
	if rv.MagSqr() > mathf.Epsilon {
		q := mathf.Quat{rv[0], rv[1], rv[2], 0}
		ph.MainRot = ph.MainRot.Add(ph.MainRot.Mul(q).Scale(0.5))
		if ph.MainRot.MagSqr() >= mathf.Epsilon {
			ph.MainRot.Normalize()
		} else {
			ph.MainRot = mathf.Identity
		}
	}

	ph.stabilize(p)

	if ph.MainRot.MagSqr() > mathf.Epsilon {
		ph.MainRot.Normalize()
	} else {
		ph.MainRot = mathf.Identity
	}

	conserved := ph.ConservedRot
	special := ph.NonConservedRot.Mul(ph.ConservedRot)
	ph.FullRot = ph.MainRot.Mul(special)
	ph.FullRot.Normalize()
	ph.NonConservedRot = mathf.Identity
	ph.ConservedRot = conserved.Slerp(mathf.Identity, 0.1)
}

// stabilize turns MainRot toward the target up vector by StabilizationFactor.
func (ph *Physics) stabilize(p *Player) {
	var up mathf.Vec3
	if p.bike {
		front := ph.MainRot.Rotate(mathf.Front)
		right := ph.Up.Cross(front)
		front = right.Cross(ph.Up)
		front.Normalize()

		var t float32
		if ph.Speed1 >= 0 {
			t = mathf.Fmin(ph.Speed1Ratio*2, 1)
		}

		other := mathf.Up.Scale(1 - t).Add(ph.Up.Scale(t))
		if other.MagSqr() > mathf.Epsilon {
			other.Normalize()
		} else {
			other = ph.Up
		}

		right = other.Cross(front)
		up = front.Cross(right)
		up.Normalize()
	} else {
		up = ph.Up
	}

	rot0Up := ph.MainRot.Rotate(mathf.Up)
	if mathf.Abs(up.Dot(rot0Up)) < 0.9999 {
		rot0 := ph.MainRot
		rot := mathf.QuatFromVecs(rot0Up, up)
		ph.MainRot = rot0.Slerp(rot.Mul(rot0), ph.StabilizationFactor)
	}
}

// approachUp moves v 3% of the way toward world up, snapping when nearly there.
func approachUp(v mathf.Vec3) mathf.Vec3 {
	if v[1] > 0.99 {
		return mathf.Up
	}
	v = v.Add(mathf.Up.Sub(v).Scale(0.03))
	v.Normalize()
	return v
}

// updateUps picks the up vectors and the stabilization factor for the frame.
func (ph *Physics) updateUps(p *Player) {
	fl := &p.Floor

	ph.LandingDirValid = false
	ph.StabilizationFactor = 0.1

	switch {
	case fl.IsLanding() && fl.LastAirtime >= 3:
		ph.Up = fl.Normal
		ph.SmoothedUp = ph.Up
		ph.LandingDir = ph.Dir.CrossPlane(ph.SmoothedUp)
		ph.LandingDir.Normalize()
		ph.DirDiff = ph.LandingDir.ProjUnit(ph.LandingDir)
		ph.LandingDirValid = true

	case p.Drift.State == DriftHop && p.Drift.Hop.PosY > 0:
		if p.Drift.HasOutsideDrift {
			ph.StabilizationFactor = 0.5
		} else {
			ph.StabilizationFactor = 0.22
		}

	case fl.Airtime > 20:
		ph.Up = approachUp(ph.Up)
		ph.SmoothedUp = approachUp(ph.SmoothedUp)

	case fl.Airtime == 0:
		var up mathf.Vec3
		if (p.Surface.HasBoostRamp || fl.TrickableTimer > 0) &&
			ph.Speed1 > 50 &&
			fl.Normal.Dot(ph.Dir) > 0 &&
			p.Surface.HasNonTrickable {
			up = ph.Up
		} else {
			ph.Up = fl.Normal
			up = fl.Normal
		}

		var smoothing float32
		if p.Boost.Type() != BoostNone || p.Wheelie.Active {
			smoothing = 0.8
		} else {
			front := ph.Mat.Mat33().MulV(mathf.Front)
			smoothing = 0.8 - float32(6*mathf.Abs(up.Dot(front)))
			smoothing = mathf.Clamp(smoothing, 0.3, 0.8)
		}

		ph.SmoothedUp = ph.SmoothedUp.Add(up.Sub(ph.SmoothedUp).Scale(smoothing))
		ph.SmoothedUp.Normalize()

		front := ph.Mat.Mat33().MulV(mathf.Front)
		if dot := front.Dot(ph.SmoothedUp); dot < -0.1 {
			ph.StabilizationFactor += mathf.Fmin(mathf.Abs(dot)*0.5, 0.2)
		}

		if p.Surface.HasBoostRamp {
			ph.StabilizationFactor = 0.4
		}
	}
}

// updateDirs steers Dir toward the heading of MainRot, plus drift and landing
// angle offsets, in the plane of SmoothedUp.
func (ph *Physics) updateDirs(p *Player) {
	ph.Vel1Dir = ph.Dir

	fl := &p.Floor
	if fl.Airtime > 0 && p.Surface.HasBoostRamp {
		return
	}
	if fl.Airtime > 5 || p.JumpPad.Variant != kcl.VariantInvalid {
		return
	}
	if p.Trick.State == TrickStarted {
		return
	}

	var next mathf.Vec3
	if p.Drift.State == DriftHop {
		next = p.Drift.Hop.Dir
	} else {
		right := ph.MainRot.Rotate(mathf.Right)
		next = right.Cross(ph.SmoothedUp)
		next.Normalize()
	}

	angle := ph.LandingAngle
	if p.Drift.HasOutsideDrift {
		angle += p.Drift.Outside.Angle
	}
	angle = mathf.Radians(angle)

	world := mathf.Mat34FromAxisAngle(ph.SmoothedUp, angle).Mat33().MulV(next)
	perp := world.CrossPlane(ph.SmoothedUp)
	perp.Normalize()
	delta := perp.Sub(ph.Dir)

	if delta.MagSqr() < mathf.Epsilon {
		ph.Dir = perp
		ph.DirDiff = mathf.Zero
	} else {
		axis := ph.Dir.Cross(perp)
		delta = delta.Scale(fl.RotationFactor).Add(ph.DirDiff)
		ph.Dir = ph.Dir.Add(delta)
		ph.Dir.Normalize()
		ph.DirDiff = delta.Scale(0.1)

		if axis.Dot(ph.Dir.Cross(perp)) < 0 {
			ph.Dir = perp
			ph.DirDiff = mathf.Zero
		}
	}

	ph.Vel1Dir = ph.Dir.CrossPlane(ph.SmoothedUp)
	ph.Vel1Dir.Normalize()
}

// updateAccel advances Speed1 and the driving direction and rebuilds Vel1.
func (ph *Physics) updateAccel(p *Player, in *Input, stage Stage) {
	stats := &p.Stats
	fl := &p.Floor

	if p.Drift.State != DriftNormal && stage == StageRace {
		ph.Speed1 += ph.Speed1Adj
	}

	if ph.Speed1 < -20 {
		ph.Speed1 += 0.5
	}

	airtime := fl.Airtime
	grounded := airtime == 0
	var accel float32

	if !grounded || p.Standstill.Charging {
		switch {
		case p.RampBoost.Duration > 0 && airtime < 4:
			accel = 7
		case p.JumpPad.Variant == kcl.VariantInvalid || in.Accelerate:
			if airtime > 5 {
				ph.Speed1 *= 0.999
			}
		default:
			ph.Speed1 *= 0.99
		}
	} else if b := p.Boost.acceleration(); b != 0 {
		accel = b
	} else if p.RampBoost.Duration > 0 || kcl.JumpPadSpeed(p.JumpPad.Variant) != 0 {
		accel = 7
	} else {
		switch {
		case stage == StageRace && in.Accelerate:
			accel = ph.calcAcceleration(p)
		case stage == StageRace && in.Brake:
			switch {
			case ph.DrivingDir == DrivingBraking:
				accel = -1.5
			case ph.DrivingDir == DrivingWaitBackward && ph.bumpBackwardFrame() > 15:
				ph.DrivingDir = DrivingBackward
			case ph.DrivingDir == DrivingBackward:
				accel = -2
			}
		default:
			if ph.Speed1 > 0 {
				ph.Speed1 *= 0.98
			} else {
				ph.Speed1 *= 0.95
			}
		}

		if p.Drift.State != DriftNormal {
			t := stats.SpeedInTurn
			raw := mathf.Abs(p.Turn.Raw)
			ph.Speed1 *= t + float32((1-t)*(1-float32(raw*ph.Speed1Ratio)))
		}
	}

	ph.LastSpeed1 = ph.Speed1

	if accel < 0 {
		const minSpeed = -20
		if ph.Speed1 < minSpeed {
			accel = 0
		} else if ph.Speed1+accel <= minSpeed {
			accel = mathf.Fmax(accel, minSpeed-ph.Speed1)
		}
	}

	ph.Speed1 += accel

	if !p.Standstill.Charging {
		if ph.DrivingDir == DrivingBraking && ph.Speed1 < 0 {
			ph.Speed1 = 0
			ph.DrivingDir = DrivingWaitBackward
			ph.BackwardFrame = 0
		}
	} else {
		ph.Speed1 *= 0.8
	}

	jumpPadSpeed := kcl.JumpPadSpeed(p.JumpPad.Variant)
	base := stats.Speed
	if jumpPadSpeed != 0 {
		base = jumpPadSpeed
	}

	var wheelieBonus float32
	if p.Wheelie.Active {
		wheelieBonus = 0.15
	}
	next := (p.Boost.factor() + wheelieBonus) * fl.SpeedFactor * base

	if lim := p.Boost.limit(); lim != 0 && jumpPadSpeed == 0 {
		next = mathf.Fmax(next, lim*fl.SpeedFactor)
	}
	if p.RampBoost.Duration > 0 {
		next = mathf.Fmax(next, 100)
	}

	ph.Speed1SoftLimit = mathf.Fmax(ph.Speed1SoftLimit-3, next)
	ph.Speed1SoftLimit = mathf.Fmin(ph.Speed1SoftLimit, maxSpeed)
	ph.Speed1 = mathf.Fmin(ph.Speed1, ph.Speed1SoftLimit)

	if jumpPadSpeed != 0 {
		ph.Speed1 = mathf.Fmax(ph.Speed1, jumpPadSpeed)
	}

	ph.Speed1Ratio = mathf.Fmin(mathf.Abs(ph.Speed1/stats.Speed), 1)

	right := ph.SmoothedUp.Cross(ph.Dir)
	if ph.Speed1 < 0 {
		right = right.Scale(-1)
	}

	var angle float32
	switch {
	case p.Surface.HasBoostRamp:
		angle = 4
	case grounded:
		angle = 0.5
	default:
		angle = 0.2
	}
	angle = mathf.Radians(angle)

	if fl.Airtime == 0 && !in.Accelerate && stage >= StageRace &&
		ph.SmoothedUp[1] > 0 && mathf.Abs(ph.Speed1) < 30 {
		if diff := 1 - ph.SmoothedUp[1]; diff > 0 {
			front := ph.Mat.Front()
			front[1] *= -1

			friction := float32(-0.5)
			if front[1] >= friction {
				friction = mathf.Fmin(front[1], 0.5)
			}
			ph.Speed1 += float32(mathf.Fmin(diff*2, 2) * friction)
		}
	}

	ph.Vel1Dir = mathf.Mat34FromAxisAngle(right, angle).Mat33().MulV(ph.Vel1Dir)
	ph.Vel1 = ph.Vel1Dir.Scale(ph.Speed1)

	switch {
	case fl.Airtime > 0 || p.Drift.State == DriftNormal || p.Drift.State == DriftHop:
		ph.DrivingDir = DrivingForward
	case !in.Brake:
		if ph.Speed1 >= 0 {
			ph.DrivingDir = DrivingForward
		}
	case ph.DrivingDir == DrivingForward:
		if ph.Speed1 > 5 {
			ph.DrivingDir = DrivingBraking
		} else {
			ph.DrivingDir = DrivingBackward
		}
	}
}

func (ph *Physics) bumpBackwardFrame() int16 {
	ph.BackwardFrame++
	return ph.BackwardFrame
}

// calcAcceleration interpolates the acceleration curve at Speed1 relative to the
// soft limit. Drifting uses the two point drift curve.
func (ph *Physics) calcAcceleration(p *Player) float32 {
	t := ph.Speed1 / ph.Speed1SoftLimit
	if !(t >= 0) {
		return 1
	}

	var ys, xs []float32
	if p.Drift.State == DriftNormal {
		ys, xs = p.Stats.DriftAccelerationYs[:], p.Stats.DriftAccelerationXs[:]
	} else {
		ys, xs = p.Stats.AccelerationYs[:], p.Stats.AccelerationXs[:]
	}

	for i := 1; i < len(xs); i++ {
		if t < xs[i] {
			slope := (ys[i] - ys[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + float32(slope*(t-xs[i-1]))
		}
	}
	return ys[len(ys)-1]
}

// updateRigidBody applies a floor impulse at pos (relative to the centre of mass)
// for a contact moving at vel against normal nor.
func (ph *Physics) updateRigidBody(p *Player, pos, vel, nor mathf.Vec3) {
	fn := nor
	fn.Normalize()
	dot := vel.Dot(fn)
	if dot >= 0 {
		return
	}

	boosting := p.Boost.Type() != BoostNone
	if p.Floor.Airtime > 20 && !boosting && ph.Vel[1] < -50 {
		pos[0] = 0
		pos[2] = 0
	}

	s := float32(1.05)
	if boosting {
		s = 1
	}

	m := ph.rotationTensor()
	temp := m.MulV(pos.Cross(fn)).Cross(pos)
	val := (-dot * s) / (1 + fn.Dot(temp))

	t2 := fn.Cross(vel.Scale(-1)).Cross(fn)
	t2.Normalize()

	other := val * vel.Dot(t2) / dot
	other = mathf.Sign(other) * mathf.Fmin(mathf.Abs(other), 0.01*val)

	sum := t2.Scale(other).Add(fn.Scale(val))

	if !p.JumpPad.AppliedDir && ph.Vel1[1] > 0 && ph.Vel0[1]+ph.Vel1[1] < 0 {
		ph.Vel0[1] += ph.Vel1[1]
	}

	last := ph.Vel0[1]
	ph.Vel0 = ph.Vel0.Add(sum)

	if p.JumpPad.AppliedDir {
		ph.Vel0[1] = last
	}
	if last < 0 && ph.Vel0[1] > 0 && ph.Vel0[1] < 10 {
		ph.Vel0[1] = 0
	}

	cross := ph.MainRot.InvRotate(m.MulV(pos.Cross(sum)))
	cross[1] = 0
	ph.RotVec0 = ph.RotVec0.Add(cross)
}

// updateLandingAngle accumulates the heading change of a landing and decays it by
// two degrees a frame.
func (ph *Physics) updateLandingAngle() {
	if ph.LandingDirValid {
		cross := ph.Dir.Cross(ph.LandingDir)
		angle := mathf.Degrees(mathf.Abs(mathf.Atan2(cross.MagU(), ph.Dir.Dot(ph.LandingDir))))
		ph.LandingAngle += angle * mathf.Sign(cross.Dot(ph.SmoothedUp))
	}

	if ph.LandingAngle < 0 {
		ph.LandingAngle = mathf.Fmin(ph.LandingAngle+2, 0)
	} else {
		ph.LandingAngle = mathf.Fmax(ph.LandingAngle-2, 0)
	}
}
