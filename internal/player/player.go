package player

import (
	"fmt"

	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/vehicle"
)

// FrameRaceStart is the first race frame, on which the start boost is granted.
const FrameRaceStart = FrameRace + 1

// Player is a vehicle driving on a course.
type Player struct {
	Stats vehicle.Params
	Bsp   *vehicle.Bsp

	Physics Physics
	Floor   Floor
	Surface SurfaceProps

	Turn    Turn
	Drift   Drift
	Wheelie Wheelie
	Lean    Lean
	Dive    Dive

	StartBoost      StartBoost
	StandstillBoost StandstillBoost
	Standstill      StandstillMiniturbo
	RampBoost       RampBoost
	Boost           Boost

	Trick   Trick
	JumpPad JumpPad

	Body   Body
	Wheels []Wheel

	world  *kcl.World
	handle *vehicle.Handle
	bike   bool
}

// Place creates a player with the given stats and geometry and sets it down at the
// course start point. handle is only used by bikes whose tire layout hangs the front
// wheel from a handle; it may be nil.
func Place(w *kcl.World, stats vehicle.Params, bsp *vehicle.Bsp, handle *vehicle.Handle, start mathf.Vec3) (*Player, error) {
	if w == nil {
		return nil, fmt.Errorf("place player: nil world")
	}
	if err := bsp.Validate(); err != nil {
		return nil, fmt.Errorf("place player: %w", err)
	}

	bike := stats.IsBike()
	p := &Player{
		Stats:   stats,
		Bsp:     bsp,
		Floor:   newFloor(),
		Surface: newSurfaceProps(),
		Drift:   newDrift(stats.IsInsideDrift(), !bike),
		Lean:    newLean(stats.IsInsideDrift()),
		JumpPad: JumpPad{Variant: kcl.VariantInvalid},
		Trick:   newTrick(),
		Body:    newBody(bsp),
		world:   w,
		bike:    bike,
	}

	p.Physics.place(w, bsp, start)

	layout := vehicle.LayoutFor(stats.NumTires)
	if bike && layout.HasHandle && handle != nil {
		h := *handle
		p.handle = &h
	}

	for _, slot := range layout.Slots() {
		if slot.BspIndex >= len(bsp.Wheels) {
			return nil, fmt.Errorf("place player: tire layout needs bsp wheel %d: %w", slot.BspIndex, vehicle.ErrTooFewWheels)
		}
		var h *vehicle.Handle
		if slot.OnHandle {
			h = p.handle
		}
		p.Wheels = append(p.Wheels, newWheel(bsp.Wheels[slot.BspIndex], h, p.Physics.Pos, slot))
	}

	return p, nil
}

// IsBike reports whether the player drives a bike.
func (p *Player) IsBike() bool {
	return p.bike
}

// Update advances the player one frame. frameIdx is the index of the frame being
// simulated and stage its race phase.
func (p *Player) Update(in, last *Input, stage Stage, frameIdx uint32) {
	ph := &p.Physics
	fl := &p.Floor

	ph.RotVec2 = mathf.Zero

	fl.update(p)
	if fl.Airtime == 0 {
		p.Trick.tryEnd(p)
	}

	ph.Gravity = Gravity

	p.Standstill.tryStart(p, in)

	if stage == StageCountdown {
		p.StartBoost.update(in.Accelerate)
	} else if frameIdx == FrameRaceStart {
		p.Boost.Activate(BoostWeak, p.StartBoost.Frames())
	}

	ph.updateUps(p)

	if fl.IsLanding() {
		p.JumpPad.Variant = kcl.VariantInvalid
	}
	if p.Surface.HasBoostPanel {
		p.Boost.Activate(BoostStrong, 60)
		fl.ActivateInvincibility(60)
	}
	if p.Surface.HasBoostRamp {
		p.RampBoost.Duration = 60
	}

	p.JumpPad.update(ph, p.Surface.JumpPad)

	p.Trick.updateRot(p)
	p.Trick.updateNext(p, in.Trick)

	ph.updateDirs(p)

	p.Trick.tryStart(p)

	ph.updateLandingAngle()

	fl.updateSticky(p)
	fl.updateFactors(p)

	p.Turn.update(p, in.StickX)
	p.Drift.update(p, in.StickX, in.Drift && stage == StageRace, last.Drift)

	if p.bike {
		p.Wheelie.update(p, in.Trick)
	}

	p.Standstill.update(p)
	p.Boost.update()
	p.RampBoost.update()

	if fl.Invincibility > 0 {
		fl.Invincibility--
	}

	ph.updateAccel(p, in, stage)
	p.StandstillBoost.update(p, stage)

	if p.bike {
		ph.RotVec2[0] += p.StandstillBoost.Rotation
		p.Lean.update(p, in.StickX, stage)
	} else {
		ph.RotVec0[0] += p.StandstillBoost.Rotation
		p.updateKartTilt()
	}

	p.Turn.updateRot(p, in)

	var stickY float32
	if stage == StageRace {
		stickY = in.StickY
	}
	p.Dive.update(p, stickY)

	ph.update(p, stage)

	p.Surface.reset()
	p.Body.update(p)
	p.updateWheels()

	p.Drift.Hop.updatePhysics()

	ph.Mat = mathf.Mat34FromQuatPos(ph.FullRot, ph.Pos)

	if in.UseItem && !last.UseItem {
		p.Boost.Activate(BoostStrong, 90)
		fl.ActivateInvincibility(90)
		p.Boost.Mushroom = 90
	}
}

// updateKartTilt rolls a grounded kart by its sideways slip.
func (p *Player) updateKartTilt() {
	ph := &p.Physics

	var norm float32
	if p.Floor.Airtime == 0 {
		front := ph.Mat.Mat33().MulV(mathf.Front)
		frontPerp := front.CrossPlane(ph.Up)
		frontPerp.Normalize()
		rej := ph.Vel.RejUnit(frontPerp)
		perp := rej.CrossPlane(ph.Up)

		if sq := perp.MagSqr(); sq > mathf.Epsilon {
			det := float32(perp[0]*frontPerp[2]) - float32(perp[2]*frontPerp[0])
			norm = -mathf.Fmin(mathf.Sqrt(sq), 1) * mathf.Sign(det)
		}
	} else if p.Drift.State != DriftHop || p.Drift.Hop.PosY <= 0 {
		ph.RotVec0[2] *= 0.98
	}

	ph.RotVec0[2] += float32(p.Stats.Tilt * norm * mathf.Abs(p.Turn.Raw))
}

// updateWheels runs the wheel collisions, pushes the vehicle out of the ground and
// lets grounded wheels act on the rigid body when the body itself is airborne.
func (p *Player) updateWheels() {
	ph := &p.Physics

	var lo, hi, posRel, vel, floorNor mathf.Vec3
	count := 0

	for i := range p.Wheels {
		w := &p.Wheels[i]
		mv, ok := w.update(p)
		if !ok {
			continue
		}
		lo = lo.Min(mv)
		hi = hi.Max(mv)

		if w.Collision.Valid {
			count++
			posRel = posRel.Add(w.HitboxPosRel)
			vel = vel.Add(mathf.Down.Scale(wheelFallSpeed))
			floorNor = floorNor.Add(w.Collision.FloorNormal)
		}
	}

	movement := lo.Add(hi)
	ph.Pos = ph.Pos.Add(movement)

	if count > 0 && !p.Body.Collision.Valid {
		recip := 1 / float32(count)
		posRel = posRel.Scale(recip)
		vel = vel.Scale(recip)
		floorNor.Normalize()

		ph.updateRigidBody(p, posRel, vel, floorNor)
		p.Body.Collision.setNormal(floorNor)
	}

	for i := range p.Wheels {
		p.Wheels[i].updateSuspension(p, movement)
	}
}
