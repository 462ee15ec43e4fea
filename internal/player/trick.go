package player

import (
	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/vehicle"
)

// TrickState is the air trick state machine.
type TrickState int

const (
	TrickIdle TrickState = iota
	TrickReady
	TrickStarted
)

// TrickKind selects the animation and boost of a trick. Boost ramp variants 0 and
// 1 give double and single flips; every other trickable surface gives a stunt.
type TrickKind int

const (
	TrickStunt TrickKind = iota
	TrickFlip
	TrickFlipDouble
)

type trickKindInfo struct {
	dirAngle    [3]float32
	maxDirDiff  [3]float32
	maxAngle    float32
	initialDiff float32
	minDiff     float32
	minDiffMul  float32
	diffMulDec  float32
	boostKart   uint16
	boostBike   uint16
}

var trickKinds = [...]trickKindInfo{
	TrickStunt: {
		dirAngle:    [3]float32{40, 36, 32},
		maxDirDiff:  [3]float32{15, 13, 11},
		maxAngle:    180,
		initialDiff: 7.5,
		minDiff:     2.5,
		minDiffMul:  0.93,
		diffMulDec:  0.05,
		boostKart:   40,
		boostBike:   45,
	},
	TrickFlip: {
		dirAngle:    [3]float32{45, 42, 39},
		maxDirDiff:  [3]float32{20, 18, 16},
		maxAngle:    360,
		initialDiff: 11,
		minDiff:     1.5,
		minDiffMul:  0.9,
		diffMulDec:  0.0018,
		boostKart:   70,
		boostBike:   80,
	},
	TrickFlipDouble: {
		dirAngle:    [3]float32{45, 42, 39},
		maxDirDiff:  [3]float32{20, 18, 16},
		maxAngle:    720,
		initialDiff: 14,
		minDiff:     1.5,
		minDiffMul:  0.9,
		diffMulDec:  0.0006,
		boostKart:   85,
		boostBike:   95,
	},
}

func weightIndex(w vehicle.WeightClass) int {
	if w < vehicle.WeightLight || w > vehicle.WeightHeavy {
		return int(vehicle.WeightMedium)
	}
	return int(w)
}

// TrickAct is the rotation of a trick in progress.
type TrickAct struct {
	Kind         TrickKind
	Angle        float32
	AngleDiff    float32
	AngleDiffMul float32
	RotDir       float32
	Rot          mathf.Quat
	Cooldown     uint8
	FlipAxis     uint8
}

func (a *TrickAct) initStunt(in TrickInput, bike bool) {
	a.Kind = TrickStunt

	var rotDir float32
	if bike {
		switch in {
		case TrickLeft:
			rotDir = 1
		case TrickRight:
			rotDir = -1
		}
	}
	a.create(rotDir)
}

func (a *TrickAct) initFlip(in TrickInput, bike, double bool) {
	a.Kind = TrickFlip
	if double {
		a.Kind = TrickFlipDouble
	}

	switch in {
	case TrickUp, TrickDown:
		if bike {
			a.FlipAxis = 0
		} else {
			a.FlipAxis = 2
		}
	case TrickLeft, TrickRight:
		a.FlipAxis = 1
	}

	var rotDir float32
	switch in {
	case TrickDown, TrickLeft:
		rotDir = 1
	case TrickUp, TrickRight:
		rotDir = -1
	}
	a.create(rotDir)
}

func (a *TrickAct) create(rotDir float32) {
	a.Angle = 0
	a.AngleDiff = trickKinds[a.Kind].initialDiff
	a.AngleDiffMul = 1
	a.RotDir = rotDir
	a.Rot = mathf.Identity
	a.Cooldown = 5
}

var (
	stuntPitch = mathf.Radians(20)
	stuntYaw   = mathf.Radians(60)
	stuntStep  = float32(256) / 360
)

func (a *TrickAct) updateRot() {
	info := &trickKinds[a.Kind]

	a.AngleDiff *= a.AngleDiffMul
	a.AngleDiff = mathf.Fmax(a.AngleDiff, info.minDiff)

	a.AngleDiffMul -= info.diffMulDec
	a.AngleDiffMul = mathf.Fmax(a.AngleDiffMul, info.minDiffMul)

	a.Angle += a.AngleDiff
	a.Angle = mathf.Fmin(a.Angle, info.maxAngle)

	switch a.Kind {
	case TrickStunt:
		if a.RotDir == 0 {
			a.Rot = mathf.Identity
			return
		}
		s := mathf.SinInner(stuntStep * a.Angle)
		a.Rot = mathf.QuatFromAngles(mathf.Vec3{
			-stuntPitch * s,
			a.RotDir * -stuntYaw * s,
			a.RotDir * stuntPitch * s,
		})
	default:
		var angles mathf.Vec3
		angles[a.FlipAxis] = a.RotDir * mathf.Radians(a.Angle)
		a.Rot = mathf.QuatFromAngles(angles)
	}
}

// Trick buffers a d-pad input near a trickable surface and plays it once airborne.
type Trick struct {
	NextInput        TrickInput
	NextTimer        uint8
	BoostRampEnabled bool
	DivingBonus      bool
	State            TrickState
	Act              TrickAct
}

func newTrick() Trick {
	return Trick{NextInput: TrickUp}
}

func (t *Trick) isReady(p *Player) bool {
	if t.NextTimer == 0 || t.State != TrickIdle {
		return false
	}
	fl := &p.Floor
	if fl.Airtime == 0 || fl.Airtime > 10 {
		return false
	}
	return fl.HasTrickable || p.RampBoost.Duration > 0
}

func (t *Trick) tryStart(p *Player) {
	if t.State != TrickReady {
		return
	}

	ph := &p.Physics
	if ph.Speed1Ratio <= 0.5 {
		return
	}

	act := &t.Act
	switch p.Surface.BoostRamp {
	case 0:
		act.initFlip(t.NextInput, p.bike, true)
	case 1:
		act.initFlip(t.NextInput, p.bike, false)
	default:
		act.initStunt(t.NextInput, p.bike)
	}

	// A stunt without rotation keeps whatever bonus the last trick left.
	if act.Kind == TrickStunt {
		if act.RotDir != 0 {
			t.DivingBonus = true
		}
	} else {
		t.DivingBonus = false
	}

	if p.JumpPad.Variant == kcl.VariantInvalid {
		info := &trickKinds[act.Kind]
		w := weightIndex(p.Stats.WeightClass)

		cross := ph.Vel1Dir.Cross(mathf.Up)
		angle := 90 - mathf.Degrees(mathf.Abs(mathf.Atan2(cross.MagU(), ph.Vel1Dir.Dot(mathf.Up))))

		dirAngle := info.dirAngle[w]
		maxDiff := info.maxDirDiff[w]
		if angle <= dirAngle {
			diff := maxDiff
			if dirAngle < angle+maxDiff {
				diff = dirAngle - angle
			}

			left := ph.SmoothedUp.Cross(ph.Dir)
			ph.Dir = mathf.Mat34FromAxisAngle(left, -mathf.Radians(diff)).MulV(ph.Dir)
			ph.Vel1Dir = ph.Dir
		}
	}

	p.Wheelie.cancel()
	t.State = TrickStarted
}

func (t *Trick) updateRot(p *Player) {
	if t.State != TrickStarted {
		return
	}
	if t.Act.Cooldown > 0 {
		t.Act.Cooldown--
	}
	t.Act.updateRot()
	p.Physics.NonConservedRot = p.Physics.NonConservedRot.Mul(t.Act.Rot)
}

func (t *Trick) updateNext(p *Player, in TrickInput) {
	if t.State == TrickIdle && in != TrickNone {
		t.NextInput = in
		t.NextTimer = 15
	}

	fl := &p.Floor
	if t.isReady(p) {
		if fl.Airtime >= 3 {
			t.State = TrickReady
		}
		if p.RampBoost.Duration > 0 {
			t.BoostRampEnabled = true
		}
	} else if t.NextTimer > 0 {
		t.NextTimer--
	}

	if fl.Airtime == 0 && !p.Surface.HasBoostRamp {
		t.BoostRampEnabled = false
	}
}

// tryEnd finishes a trick on landing, keeping its rotation and granting a boost.
func (t *Trick) tryEnd(p *Player) {
	if t.State != TrickStarted || t.Act.Cooldown > 0 {
		return
	}

	p.Physics.ConservedRot = p.Physics.ConservedRot.Mul(t.Act.Rot)

	info := &trickKinds[t.Act.Kind]
	duration := info.boostKart
	if p.bike {
		duration = info.boostBike
	}
	p.Boost.Activate(BoostMedium, duration)

	t.State = TrickIdle
	t.BoostRampEnabled = false
}
