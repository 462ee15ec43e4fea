package player

import "github.com/OCAP2/kartreplay/internal/mathf"

// Dive is the airborne pitch control from the vertical stick.
type Dive struct {
	Rot float32
}

func (d *Dive) update(p *Player, stickY float32) {
	fl := &p.Floor
	d.Rot *= 0.96

	if fl.Airtime == 0 {
		return
	}

	rotDiff := stickY
	if p.Trick.State == TrickStarted && p.Trick.DivingBonus {
		rotDiff = mathf.Fmin(rotDiff+0.4, 1)
	}

	if fl.Airtime <= 50 {
		rotDiff *= float32(fl.Airtime) / 50
	} else if mathf.Abs(rotDiff) < 0.1 {
		d.Rot -= float32((d.Rot + 0.025) * 0.05)
	}

	ph := &p.Physics
	d.Rot = mathf.Clamp(d.Rot+float32(0.005*rotDiff), -0.8, 0.8)
	ph.RotVec2[0] += d.Rot

	if fl.Airtime < 50 {
		return
	}

	up := ph.MainRot.Rotate(mathf.Up)
	cross := ph.Up.Cross(up)
	angle := mathf.Degrees(mathf.Abs(mathf.Atan2(cross.MagU(), ph.Up.Dot(up)))) - 20
	if !(angle > 0) {
		return
	}

	s := mathf.Fmin(angle/20, 1)
	if ph.MainRot.Rotate(mathf.Front)[1] <= 0 {
		ph.Gravity *= 1 + float32(0.2*s)
	} else {
		ph.Gravity *= 1 - float32(0.2*s)
	}
}
