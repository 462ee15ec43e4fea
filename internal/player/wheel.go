package player

import (
	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/vehicle"
)

const wheelProbeRadius = 10

// wheelFallSpeed is the downward speed a wheel contact feeds into the rigid body
// solver when the body itself is off the ground.
var wheelFallSpeed = 10 * float32(1.3)

// Wheel is one suspended wheel. AxisS is the suspension travel along Axis, measured
// from TopmostPos.
type Wheel struct {
	Axis         mathf.Vec3
	AxisS        float32
	TopmostPos   mathf.Vec3
	Pos          mathf.Vec3
	LastPos      mathf.Vec3
	LastPosRel   mathf.Vec3
	Hitbox       kcl.Hitbox
	HitboxPosRel mathf.Vec3
	Collision    Contact

	bsp    vehicle.Wheel
	handle *vehicle.Handle
}

func newWheel(bsp vehicle.Wheel, handle *vehicle.Handle, pos mathf.Vec3, slot vehicle.WheelSlot) Wheel {
	w := Wheel{
		bsp:    bsp,
		handle: handle,
		Axis:   mathf.Down,
		AxisS:  bsp.SuspensionSlack,
	}
	if slot.MirroredLR {
		w.bsp.SuspensionTop[0] = -w.bsp.SuspensionTop[0]
	}

	w.TopmostPos = w.bsp.SuspensionTop.Add(pos)
	w.Pos = w.Axis.Scale(w.AxisS).Add(w.TopmostPos)
	w.LastPos = w.Pos
	w.LastPosRel = w.Pos.Sub(w.TopmostPos)

	w.Hitbox = kcl.NewHitbox(w.Pos, &pos, wheelProbeRadius, kcl.MaskVehicle)
	w.Collision.reset()
	return w
}

// mat is the transform of the wheel's mount point, through the handle if it has one.
func (w *Wheel) mat(ph *Physics) mathf.Mat34 {
	m := mathf.Mat34FromQuatPos(ph.FullRot, ph.Pos)
	if w.handle != nil {
		m = m.MulM(mathf.Mat34FromAnglesPos(w.handle.Angles, w.handle.Pos))
	}
	return m
}

// update extends the suspension and collides the wheel. It returns the push needed
// to keep the mount above the ground when the wheel bottomed out.
func (w *Wheel) update(p *Player) (mathf.Vec3, bool) {
	bsp := &w.bsp
	ph := &p.Physics

	m34 := w.mat(ph)
	m33 := m34.Mat33()

	w.AxisS = mathf.Fmin(w.AxisS+5, bsp.SuspensionSlack)
	w.TopmostPos = m34.MulV(bsp.SuspensionTop)
	w.Axis = m33.MulV(mathf.Down)
	w.LastPos = w.Pos
	w.Pos = w.TopmostPos.Add(w.Axis.Scale(w.AxisS))

	hbPos := w.Pos.Add(w.Axis.Scale(bsp.Radius - bsp.SphereRadius))
	if p.bike {
		right := ph.Mat.Mat33().MulV(mathf.Right)
		hbPos = hbPos.Add(right.Scale(p.Lean.Rot * bsp.SphereRadius * 0.3))
	}

	w.Hitbox.UpdatePos(hbPos)
	w.HitboxPosRel = hbPos.Sub(ph.Pos)

	col := p.world.CollideHitbox(&w.Hitbox)
	w.Pos = w.Pos.Add(col.Movement())
	w.Hitbox.Radius = bsp.SphereRadius

	w.Collision.reset()
	if col.Has(kcl.MaskVehicle) {
		w.Collision.add(p, &col)
		p.Surface.add(&col, true)
	}

	w.AxisS = w.Axis.Dot(w.Pos.Sub(w.TopmostPos))
	if w.AxisS < 0 {
		return w.Axis.Scale(w.AxisS), true
	}
	return mathf.Zero, false
}

// updateSuspension applies the spring force and the floor impulse of a grounded
// wheel after the vehicle moved by movement.
func (w *Wheel) updateSuspension(p *Player, movement mathf.Vec3) {
	bsp := &w.bsp
	ph := &p.Physics

	topmost := w.TopmostPos
	w.TopmostPos = w.TopmostPos.Add(movement)
	w.AxisS = mathf.Clamp(w.Axis.Dot(w.Pos.Sub(w.TopmostPos)), 0, bsp.SuspensionSlack)
	w.Pos = w.TopmostPos.Add(w.Axis.Scale(w.AxisS))

	if w.Collision.Valid {
		posRel := w.Pos.Sub(topmost)
		delta := w.LastPosRel.Sub(posRel)

		dist := bsp.SuspensionSlack - mathf.Fmax(w.Axis.Dot(posRel), 0)
		distAcc := float32(-bsp.SuspensionDistance * dist)
		speedAcc := float32(-bsp.SuspensionSpeed * w.Axis.Dot(delta))
		acc := w.Axis.Scale(distAcc + speedAcc)

		if !p.JumpPad.AppliedDir && ph.Vel0[1] <= 5 {
			accDir := mathf.Vec3{acc[0], 0, acc[2]}
			proj := accDir.ProjUnit(w.Collision.FloorNormal)
			normalAcc := acc[1] + proj[1]
			ph.NormalAcceleration += mathf.Fmin(normalAcc, p.Stats.MaxNormalAcceleration)
		}

		topmostRel := ph.FullRot.InvRotate(topmost.Sub(ph.Pos))
		cross := topmostRel.Cross(ph.FullRot.InvRotate(acc))
		if p.bike && p.Wheelie.Rot > 0 {
			cross[0] = 0
		}
		cross[1] = 0
		ph.NormalRotVec = ph.NormalRotVec.Add(cross)
	}

	w.LastPosRel = w.Pos.Sub(w.TopmostPos)

	if w.Collision.Valid {
		w.applyImpulse(p)
	}
}

func (w *Wheel) applyImpulse(p *Player) {
	ph := &p.Physics
	fn := w.Collision.FloorNormal

	vel := w.Pos.Sub(w.LastPos).Sub(ph.Vel1)
	dot := vel.Add(mathf.Down.Scale(wheelFallSpeed)).Dot(fn)
	if !(dot < 0) {
		return
	}

	cross := fn.Cross(vel.Scale(-1)).Cross(fn)
	if !(cross.MagSqr() > mathf.Epsilon) {
		return
	}

	m := ph.rotationTensor()
	other := m.MulV(w.HitboxPosRel.Cross(fn)).Cross(w.HitboxPosRel)

	cross.Normalize()

	// Each intermediate is rounded to float32 separately.
	val := -dot / (1 + fn.Dot(other))
	lim := mathf.Fmin(vel.Dot(cross), 0)
	scale := float32(val*lim) / dot
	cross = cross.Scale(scale)

	front := ph.FullRot.Rotate(mathf.Front)

	proj := cross.ProjUnit(front)
	projNorm := proj.MagU()
	projNorm = mathf.Sign(projNorm) * mathf.Fmin(mathf.Abs(projNorm), 0.1*mathf.Abs(val))
	proj.Normalize()
	proj = proj.Scale(projNorm)

	rej := cross.RejUnit(front)
	rejNorm := rej.MagU()
	rejNorm = mathf.Sign(rejNorm) * mathf.Fmin(mathf.Abs(rejNorm), 0.8*mathf.Abs(val))
	rej.Normalize()
	rej = rej.Scale(rejNorm)

	sum := proj.Add(rej)
	ph.Vel0 = ph.Vel0.Add(sum.RejUnit(ph.Dir))

	if !p.bike || p.Wheelie.Rot <= 0 {
		rv := ph.MainRot.InvRotate(m.MulV(w.HitboxPosRel.Cross(sum)))
		rv[1] = 0
		ph.RotVec0 = ph.RotVec0.Add(rv)
	}
}

// Body is the set of collision spheres fixed to the chassis.
type Body struct {
	Hitboxes          []kcl.Hitbox
	Collision         Contact
	HasFloorCollision bool

	bsp []vehicle.Hitbox
}

// newBody places every sphere at the origin with a valid last position, so the
// first collision sweeps from there.
func newBody(bsp *vehicle.Bsp) Body {
	b := Body{
		Hitboxes: make([]kcl.Hitbox, len(bsp.Hitboxes)),
		bsp:      bsp.Hitboxes,
	}
	for i, hb := range bsp.Hitboxes {
		b.Hitboxes[i] = kcl.Hitbox{
			Radius:       hb.Radius,
			Flags:        kcl.MaskVehicle,
			LastPosValid: true,
		}
	}
	b.Collision.reset()
	return b
}

func (b *Body) update(p *Player) {
	ph := &p.Physics

	var lo, hi, posRel mathf.Vec3
	b.Collision.reset()

	for i := range b.bsp {
		bh := &b.bsp[i]
		if bh.WallOnly {
			continue
		}
		hb := &b.Hitboxes[i]

		hpr := ph.FullRot.Rotate(bh.Center)
		hb.UpdatePos(hpr.Add(ph.Pos))

		col := p.world.CollideHitbox(hb)
		if !col.Has(kcl.MaskVehicle) {
			continue
		}

		mv := col.Movement()
		lo = lo.Min(mv)
		hi = hi.Max(mv)

		dir := mv
		dir.Normalize()
		posRel = posRel.Add(hpr).Sub(dir.Scale(bh.Radius))

		b.Collision.add(p, &col)
		p.Surface.add(&col, false)
	}

	count := b.Collision.Count
	b.HasFloorCollision = count > 0
	if count == 0 {
		return
	}

	ph.Pos = ph.Pos.Add(lo.Add(hi))

	b.Collision.finalize()
	posRel = posRel.Scale(1 / float32(count))

	rv := ph.RotVec0.Scale(ph.RotFactor)
	vel := ph.MainRot.Rotate(rv.Cross(ph.MainRot.InvRotate(posRel))).Add(ph.Vel0)
	if ph.Vel1[1] > 0 {
		vel[1] += ph.Vel1[1]
	}

	if b.Collision.Valid {
		ph.updateRigidBody(p, posRel, vel, b.Collision.FloorNormal)
	}
}
