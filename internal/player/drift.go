package player

import (
	"math"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

// DriftState is the drift state machine: a drift starts with a hop (or from a
// slipdrift begun in the air) and becomes a normal drift on landing.
type DriftState int

const (
	DriftIdle DriftState = iota
	DriftSlipdrift
	DriftHop
	DriftNormal
)

func (s DriftState) String() string {
	switch s {
	case DriftIdle:
		return "idle"
	case DriftSlipdrift:
		return "slipdrift"
	case DriftHop:
		return "hop"
	case DriftNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Mini-turbo charge thresholds.
const (
	MiniturboCharge      = 271
	SuperMiniturboCharge = 301
)

// Hop is the small jump that starts a drift. PosY is a visual offset integrated
// separately from the body.
type Hop struct {
	Frame   uint8
	InStick bool
	Dir     mathf.Vec3
	Up      mathf.Vec3
	StickX  float32
	PosY    float32
	VelY    float32
	Gravity float32
}

// NormalDrift is a held drift charging a mini-turbo.
type NormalDrift struct {
	StickX       float32
	MTCharge     uint16
	SMTCharge    uint16
	HasSMTCharge bool
}

// OutsideDrift is the extra heading offset of karts and outside drift bikes.
type OutsideDrift struct {
	Angle float32
	Dir   mathf.Vec3
	Bonus float32
}

// Drift is the hop and drift state machine.
type Drift struct {
	State             DriftState
	HasOutsideDrift   bool
	HasSuperMiniturbo bool
	Outside           OutsideDrift
	SlipdriftStickX   float32
	Hop               Hop
	Normal            NormalDrift
}

func newDrift(insideDrift, superMiniturbo bool) Drift {
	return Drift{
		HasOutsideDrift:   !insideDrift,
		HasSuperMiniturbo: superMiniturbo,
		Outside:           OutsideDrift{Dir: mathf.Back},
	}
}

func (d *Drift) hopStart(p *Player) {
	ph := &p.Physics

	p.Wheelie.cancel()
	ph.Vel0[1] = 10
	ph.NormalAcceleration = 0
	d.State = DriftHop

	d.Hop = Hop{
		Dir:     ph.MainRot.Rotate(mathf.Front),
		Up:      ph.MainRot.Rotate(mathf.Up),
		VelY:    10,
		Gravity: ph.Gravity,
	}
}

func (h *Hop) update(stickX float32) {
	if h.Frame < 3 {
		h.Frame++
	}
	if !h.InStick && stickX != 0 {
		h.InStick = true
		h.StickX = mathf.Sign(stickX) * float32(math.Ceil(float64(mathf.Abs(stickX))))
	}
}

func (h *Hop) updatePhysics() {
	h.VelY *= 0.998
	h.VelY += h.Gravity
	h.PosY += h.VelY

	if h.PosY < 0 {
		h.VelY = 0
		h.PosY = 0
	}
}

func (d *Drift) normalStart(p *Player, stickX float32) {
	if d.HasOutsideDrift {
		d.Outside.Bonus = p.Physics.Speed1Ratio * p.Stats.DriftTightnessManual * 0.5
	}

	d.Normal = NormalDrift{StickX: stickX, HasSMTCharge: !p.bike}
	d.State = DriftNormal
}

func (n *NormalDrift) updateMiniturbo(stickX float32) {
	inc := uint16(2)
	if stickX*n.StickX > 0.4 {
		inc = 5
	}

	n.MTCharge = min(n.MTCharge+inc, MiniturboCharge)

	if n.HasSMTCharge && n.MTCharge >= MiniturboCharge {
		n.SMTCharge = min(n.SMTCharge+inc, SuperMiniturboCharge)
	}
}

func (n *NormalDrift) releaseMiniturbo(b *Boost, duration uint16) {
	switch {
	case n.HasSMTCharge && n.SMTCharge >= SuperMiniturboCharge:
		b.Activate(BoostWeak, duration*3)
	case n.MTCharge >= MiniturboCharge:
		b.Activate(BoostWeak, duration)
	}
}

func (o *OutsideDrift) updateAngleStart(h *Hop, stickX float32, rot0 mathf.Quat) {
	rej := rot0.Rotate(mathf.Front).RejUnit(h.Up)
	if !(rej.MagSqr() > mathf.Epsilon) {
		return
	}
	rej.Normalize()

	cross := h.Dir.Cross(rej)
	diff := mathf.Degrees(mathf.Atan2(cross.MagU(), h.Dir.Dot(rej)))
	o.Angle = mathf.Clamp(o.Angle+float32(diff*stickX), -60, 60)
}

func (o *OutsideDrift) updateAngleAirborne(rot0 mathf.Quat) {
	rej := o.Dir.RejUnit(rot0.Rotate(mathf.Up))
	if !(rej.MagSqr() > mathf.Epsilon) {
		return
	}
	rej.Normalize()

	dir := rot0.Rotate(mathf.Front)
	cross := rej.Cross(dir)
	diff := mathf.Degrees(mathf.Atan2(cross.MagU(), rej.Dot(dir)))
	sign := mathf.Sign(float32(dir[0]*(dir[2]-rej[2])) - float32(dir[2]*(dir[0]-rej[0])))
	o.Angle += float32(sign * diff)
}

func (d *Drift) update(p *Player, stickX float32, input, lastInput bool) {
	ph := &p.Physics
	fl := &p.Floor
	grounded := fl.Airtime == 0

	if !grounded && stickX != 0 {
		if input && d.State == DriftIdle {
			p.Wheelie.cancel()
			d.SlipdriftStickX = mathf.Sign(stickX)
			d.State = DriftSlipdrift
		} else if !input && d.State == DriftSlipdrift {
			d.State = DriftIdle
		}
	}

	switch d.State {
	case DriftIdle:
		if grounded && input && !lastInput {
			d.hopStart(p)
		}

	case DriftSlipdrift:
		if grounded {
			d.normalStart(p, d.SlipdriftStickX)
		} else if fl.Airtime > 5 && d.HasOutsideDrift {
			d.Outside.updateAngleAirborne(ph.MainRot)
		}

	case DriftHop:
		d.Hop.update(stickX)

		var hopStick float32
		if d.Hop.InStick {
			hopStick = d.Hop.StickX
		}

		if d.Hop.Frame >= 3 && grounded {
			if d.HasOutsideDrift {
				d.Outside.updateAngleStart(&d.Hop, hopStick, ph.MainRot)
			}
			if d.Hop.InStick && input {
				d.normalStart(p, hopStick)
			} else {
				d.State = DriftIdle
			}
		} else if d.Hop.Frame < 3 && input && !lastInput {
			d.hopStart(p)
		}

	case DriftNormal:
		if fl.Airtime > 5 && d.HasOutsideDrift {
			d.Outside.updateAngleAirborne(ph.MainRot)
		}
	}

	if d.HasOutsideDrift {
		d.Outside.Dir = ph.MainRot.Rotate(mathf.Front)
	}

	switch {
	case d.State == DriftIdle && grounded:
		if d.HasOutsideDrift {
			angle := d.Outside.Angle
			d.Outside.Angle = mathf.Sign(angle) * mathf.Fmax(mathf.Abs(angle)-p.Stats.DriftDecrement, 0)
		}

	case d.State == DriftNormal:
		if !input {
			d.Normal.releaseMiniturbo(&p.Boost, uint16(p.Stats.MiniTurboDuration))
			d.State = DriftIdle
			return
		}

		d.Outside.Bonus *= 0.99

		if fl.Airtime > 5 {
			return
		}

		if d.HasOutsideDrift {
			last := d.Outside.Angle * d.Normal.StickX
			target := p.Stats.DriftTargetAngle
			next := last
			if last < target {
				next = mathf.Fmin(last+float32(150*p.Stats.DriftTightnessManual), target)
			} else if last > target {
				next = mathf.Fmax(last-2, target)
			}
			d.Outside.Angle = next * d.Normal.StickX
		}

		d.Normal.updateMiniturbo(stickX)
	}
}
