package player

import "github.com/OCAP2/kartreplay/internal/mathf"

type leanRotParams struct {
	inc float32
	cap float32
}

type leanParams struct {
	rot          [3]leanRotParams
	rotMin       float32
	rotMax       float32
	stickXFactor float32
	sFactor      float32
}

var (
	leanOutsideDrift = leanParams{
		rot:          [3]leanRotParams{{0.08, 1.0}, {0.08, 0.6}, {0.15, 1.6}},
		rotMin:       0.8,
		rotMax:       1.2,
		stickXFactor: 0.1,
		sFactor:      0.8,
	}
	leanInsideDrift = leanParams{
		rot:          [3]leanRotParams{{0.1, 1.0}, {0.08, 0.6}, {0.15, 1.3}},
		rotMin:       0.7,
		rotMax:       1.5,
		stickXFactor: 0.05,
		sFactor:      1.0,
	}
)

// Lean is the bike roll into turns. It also nudges Vel0 sideways while the roll
// is inside its range.
type Lean struct {
	Rot     float32
	RotDiff float32
	RotCap  float32

	params *leanParams
}

func newLean(insideDrift bool) Lean {
	l := Lean{RotDiff: 0.08, RotCap: 0.6, params: &leanOutsideDrift}
	if insideDrift {
		l.params = &leanInsideDrift
	}
	return l
}

func (l *Lean) update(p *Player, stickX float32, stage Stage) {
	params := l.params
	ph := &p.Physics

	var rp *leanRotParams
	switch {
	case p.Standstill.Charging:
		rp = &params.rot[2]
	case stage == StageRace && mathf.Abs(ph.Speed1) >= 5:
		rp = &params.rot[0]
	default:
		rp = &params.rot[1]
	}

	l.RotDiff += float32(0.3 * (rp.inc - l.RotDiff))
	l.RotCap += float32(0.3 * (rp.cap - l.RotCap))

	airtime := p.Floor.Airtime
	var rotMin, rotMax, s float32

	if p.Drift.State == DriftNormal && airtime <= 20 {
		driftStick := p.Drift.Normal.StickX
		if stickX == 0 {
			l.Rot += float32(0.05 * (float32(0.5*driftStick) - l.Rot))
		} else {
			l.Rot += float32(params.stickXFactor * stickX)
		}

		if driftStick < 0 {
			rotMin, rotMax = -params.rotMax, -params.rotMin
		} else {
			rotMin, rotMax = params.rotMin, params.rotMax
		}

		s = params.sFactor * -stickX
	} else {
		rotMin, rotMax = -l.RotCap, l.RotCap

		if mathf.Abs(stickX) <= 0.2 || airtime > 20 || p.Wheelie.Active {
			l.Rot *= 0.9
		} else {
			sign := -mathf.Sign(stickX)
			l.Rot -= float32(sign * l.RotDiff)
			s = params.sFactor * sign
		}
	}

	switch {
	case l.Rot < rotMin:
		l.Rot = rotMin
	case l.Rot > rotMax:
		l.Rot = rotMax
	default:
		right := ph.Mat.Mat33().MulV(mathf.Right)
		ph.Vel0 = ph.Vel0.Add(right.Scale(s))
	}

	driftFactor := float32(1)
	if p.Drift.State == DriftNormal {
		driftFactor = 1.3
	}
	ph.RotVec2[2] += float32(0.05 * driftFactor * l.Rot)
}
