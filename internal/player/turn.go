package player

import "github.com/OCAP2/kartreplay/internal/mathf"

// Turn is the smoothed steering input. Raw follows the stick; Drift is the value
// actually used for rotation, remapped around the drift direction while drifting.
type Turn struct {
	Raw   float32
	Drift float32
}

func (t *Turn) update(p *Player, stickX float32) {
	d := &p.Drift
	if d.State == DriftHop && d.Hop.InStick {
		stickX = d.Hop.StickX
	} else if p.Floor.Airtime > 20 {
		stickX *= 0.01
	}

	reactivity := p.Stats.HandlingReactivity
	if d.State == DriftNormal {
		reactivity = p.Stats.DriftReactivity
	}

	t.Raw = float32((1-reactivity)*t.Raw) + float32(reactivity*-stickX)

	if d.State != DriftNormal {
		t.Drift = t.Raw
		return
	}

	driftStick := d.Normal.StickX
	driftTurn := 0.5 * (t.Raw - driftStick)
	t.Drift = float32(driftTurn*0.8) - float32(driftStick*0.2)
	t.Drift = mathf.Clamp(t.Drift, -1, 1)
}

// updateRot adds this frame's yaw to RotVec2.
func (t *Turn) updateRot(p *Player, in *Input) {
	ph := &p.Physics
	d := &p.Drift
	var rot float32

	if !p.Standstill.Charging {
		if d.State == DriftNormal {
			rot = t.Drift * (p.Stats.DriftTightnessManual + d.Outside.Bonus)
		} else {
			rot = t.Drift * p.Stats.HandlingTightnessManual
		}

		if d.State == DriftHop && d.Hop.PosY > 0 {
			rot *= 1.4
		}

		if d.State != DriftNormal {
			if !in.Brake || ph.Speed1 > 0 {
				rot = speedScaledTurn(ph.Speed1, rot)
			} else {
				rot = -rot
			}
		}

		airtime := p.Floor.Airtime
		switch {
		case airtime > 0 && p.RampBoost.Duration > 0 && p.Trick.BoostRampEnabled:
			rot = 0
		case airtime > 70:
			rot = 0
		case airtime >= 30:
			rot = mathf.Fmax((1-float32(0.025*float32(airtime-30)))*rot, 0)
		}
	} else {
		rot = t.Drift * 0.04
	}

	front := ph.MainRot.Rotate(mathf.Front)
	cross := front.Cross(ph.Dir)
	angle := mathf.Degrees(mathf.Abs(mathf.Atan2(cross.MagU(), front.Dot(ph.Dir))))
	if angle > 60 {
		rot *= mathf.Fmax(1-(angle-60)/(100-60), 0)
	}

	if p.Wheelie.Active {
		rot *= 0.2
	}

	ph.RotVec2[1] += rot
}

// speedScaledTurn weakens steering at low speed.
func speedScaledTurn(speed, rot float32) float32 {
	switch {
	case mathf.Abs(speed) < 1:
		return 0
	case speed < 20:
		return float32(0.4*rot) + float32((speed/20)*(rot*0.6))
	case speed < 70:
		return float32(0.5*rot) + float32((1-(speed-20)/(70-20))*(rot*0.5))
	default:
		return 0.5 * rot
	}
}
