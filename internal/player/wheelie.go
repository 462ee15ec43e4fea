package player

import "github.com/OCAP2/kartreplay/internal/mathf"

const (
	wheelieCooldown  = 20
	wheelieMinFrames = 15
	wheelieMaxFrames = 180
)

// Wheelie is the bike-only pitch-up state entered with an up trick input.
type Wheelie struct {
	Active   bool
	Cooldown uint16
	Frame    uint16
	Rot      float32
	RotDec   float32
}

func (w *Wheelie) update(p *Player, trick TrickInput) {
	ph := &p.Physics

	switch trick {
	case TrickUp:
		w.tryStart(p)
	case TrickDown:
		w.tryCancel()
	}

	if w.Cooldown > 0 {
		w.Cooldown--
	}

	if w.Active {
		w.Frame++
		if w.shouldCancel(ph) {
			w.cancel()
		} else {
			w.Rot = mathf.Fmin(w.Rot+0.01, 0.07)
			ph.RotVec0[0] *= 0.9
		}
	} else if w.Rot > 0 {
		w.RotDec += 0.001
		w.Rot = mathf.Fmax(w.Rot-w.RotDec, 0)
	}

	c := mathf.Up.Dot(ph.Vel1Dir)
	if c <= 0.5 || w.Frame < wheelieMinFrames {
		ph.RotVec2[0] -= float32(w.Rot * (1 - mathf.Abs(c)))
	}
}

func (w *Wheelie) start() {
	w.Active = true
	w.Frame = 0
	w.Cooldown = wheelieCooldown
}

func (w *Wheelie) cancel() {
	w.Active = false
	w.RotDec = 0
}

func (w *Wheelie) tryStart(p *Player) {
	if w.Active || w.Cooldown > 0 {
		return
	}
	if p.Floor.Airtime > 0 {
		return
	}
	if p.Drift.State == DriftHop || p.Drift.State == DriftNormal {
		return
	}
	w.start()
}

func (w *Wheelie) tryCancel() {
	if !w.Active || w.Cooldown != 0 {
		return
	}
	w.cancel()
	w.Cooldown = wheelieCooldown
}

func (w *Wheelie) shouldCancel(ph *Physics) bool {
	if w.Frame < wheelieMinFrames {
		return false
	}
	if w.Frame > wheelieMaxFrames {
		return true
	}
	if ph.Speed1 < 0 {
		return true
	}
	return ph.Speed1Ratio < 0.3
}
