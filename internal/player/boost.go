package player

import (
	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
)

// BoostType indexes the boost duration slots. A lower index wins when several
// boosts are active.
type BoostType int

const (
	BoostNone BoostType = iota - 1
	BoostMedium
	BoostStrong
	BoostWeak

	boostTypeCount
)

func (t BoostType) String() string {
	switch t {
	case BoostMedium:
		return "medium"
	case BoostStrong:
		return "strong"
	case BoostWeak:
		return "weak"
	default:
		return "none"
	}
}

// Boost holds the remaining frames of each boost kind.
type Boost struct {
	Duration [boostTypeCount]uint16
	Mushroom uint16
}

func (b *Boost) update() {
	for i := range b.Duration {
		if b.Duration[i] > 0 {
			b.Duration[i]--
		}
	}
	if b.Mushroom > 0 {
		b.Mushroom--
	}
}

// Activate extends a boost to at least duration+1 frames, so that after the
// decrement of the same frame duration frames remain.
func (b *Boost) Activate(t BoostType, duration uint16) {
	next := int(duration) + 1
	if cur := int(b.Duration[t]); cur > next {
		next = cur
	}
	b.Duration[t] = uint16(next)
}

// Type returns the active boost with the lowest index.
func (b *Boost) Type() BoostType {
	for i, d := range b.Duration {
		if d > 0 {
			return BoostType(i)
		}
	}
	return BoostNone
}

func (b *Boost) factor() float32 {
	switch b.Type() {
	case BoostMedium:
		return 1.3
	case BoostStrong:
		return 1.4
	case BoostWeak:
		return 1.2
	default:
		return 1
	}
}

func (b *Boost) acceleration() float32 {
	switch b.Type() {
	case BoostMedium:
		return 6
	case BoostStrong:
		return 7
	case BoostWeak:
		return 3
	default:
		return 0
	}
}

func (b *Boost) limit() float32 {
	if b.Type() == BoostStrong {
		return 115
	}
	return 0
}

// RampBoost counts down after leaving a boost ramp.
type RampBoost struct {
	Duration uint16
}

func (r *RampBoost) update() {
	if r.Duration > 0 {
		r.Duration--
	}
}

// StandstillBoost is the pitch wobble from accelerating or charging in place.
type StandstillBoost struct {
	Rotation float32
}

func (s *StandstillBoost) update(p *Player, stage Stage) {
	var next float32
	t := float32(1)

	if p.Floor.Airtime == 0 {
		switch {
		case stage == StageCountdown:
			next = 0.015 * -p.StartBoost.Charge
		case !p.Standstill.Charging && p.RampBoost.Duration == 0 && p.JumpPad.Variant == kcl.VariantInvalid:
			ph := &p.Physics
			accel := mathf.Clamp(ph.Speed1-ph.LastSpeed1, -3, 3)
			if p.Boost.Mushroom > 0 {
				next = -accel * 0.15 * 0.25
				if p.bike && p.Wheelie.Active {
					next *= 0.5
				}
			} else {
				next = -accel * 0.15 * 0.08
			}
			if p.bike {
				t = 0.2
			}
		default:
			next = 0.015 * -(float32(p.Standstill.Charge) / 75)
		}
	}

	s.Rotation += float32(t * (next - s.Rotation))
}

// StandstillMiniturbo charges while accelerate and brake are both held in place.
type StandstillMiniturbo struct {
	Charge   int16
	Charging bool
}

const standstillFullCharge = 75

func (s *StandstillMiniturbo) tryStart(p *Player, in *Input) {
	if mathf.Abs(p.Physics.Speed1) >= 10 || !in.Accelerate || !in.Brake ||
		p.RampBoost.Duration > 0 || p.Boost.Type() != BoostNone {
		s.Charging = false
		return
	}
	s.Charging = true
	p.Drift.State = DriftIdle
}

func (s *StandstillMiniturbo) update(p *Player) {
	if !s.Charging {
		if s.Charge >= standstillFullCharge {
			p.Boost.Activate(BoostWeak, 30)
		}
		s.Charge = 0
		return
	}
	if s.Charge < standstillFullCharge {
		s.Charge++
	}
}

// StartBoost is the countdown accelerate charge.
type StartBoost struct {
	Charge float32
}

var (
	startBoostRise  = float32(0.02)
	startBoostDecay = startBoostRise - float32(0.002)
)

func (s *StartBoost) update(accelerate bool) {
	if accelerate {
		s.Charge += startBoostRise - float32(startBoostDecay*s.Charge)
	} else {
		s.Charge *= 0.96
	}
	s.Charge = mathf.Clamp(s.Charge, 0, 1)
}

// Frames maps the charge to the weak boost granted at the start. The thresholds
// are double precision; an overcharged start gives nothing.
func (s *StartBoost) Frames() uint16 {
	c := float64(s.Charge)
	switch {
	case c <= 0.85:
		return 0
	case c <= 0.88:
		return 10
	case c <= 0.905:
		return 20
	case c <= 0.925:
		return 30
	case c <= 0.94:
		return 45
	case c <= 0.95:
		return 70
	default:
		return 0
	}
}

// JumpPad is the variant of the pad the vehicle was launched by, if any.
type JumpPad struct {
	Variant    uint8
	AppliedDir bool
}

func (j *JumpPad) update(ph *Physics, variant uint8) {
	j.AppliedDir = false

	if j.Variant != kcl.VariantInvalid || variant == kcl.VariantInvalid {
		return
	}

	velY := kcl.JumpPadVelY(variant)
	ph.Vel0[1] = velY
	ph.NormalAcceleration = 0

	prev := ph.Dir
	ph.Dir[1] = 0
	ph.Dir.Normalize()
	ph.Vel1Dir = ph.Dir
	ph.Speed1 *= ph.Dir.Dot(prev)
	ph.Speed1 = mathf.Fmax(ph.Speed1, velY)

	j.AppliedDir = true
	j.Variant = variant
}
