package handlers

import (
	"time"

	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/player"
	"github.com/OCAP2/kartreplay/pkg/core"
)

func position(v mathf.Vec3) core.Position3D {
	return core.Position3D{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// Snapshot copies the recorded state of p after frame.
func Snapshot(p *player.Player, frame uint32, stage player.Stage, t time.Time) core.FrameState {
	ph := &p.Physics

	var boost uint16
	for _, d := range p.Boost.Duration {
		boost = max(boost, d)
	}

	return core.FrameState{
		Frame:     frame,
		Time:      t,
		Stage:     stage.String(),
		Position:  position(ph.Pos),
		Velocity:  position(ph.Vel),
		Up:        position(ph.Up),
		Speed:     ph.Speed1,
		SoftLimit: ph.Speed1SoftLimit,
		Airtime:   p.Floor.Airtime,
		Drift:     p.Drift.State.String(),
		Boost:     boost,
		Wheelie:   p.Wheelie.Active,
		Trick:     p.Trick.State != player.TrickIdle,
		Subsystems: map[string]any{
			"drift": map[string]any{
				"state":     p.Drift.State.String(),
				"mtCharge":  p.Drift.Normal.MTCharge,
				"smtCharge": p.Drift.Normal.SMTCharge,
			},
			"boost": map[string]any{
				"durations": p.Boost.Duration,
				"mushroom":  p.Boost.Mushroom,
				"ramp":      p.RampBoost.Duration,
			},
			"startBoost": p.StartBoost.Charge,
			"floor": map[string]any{
				"airtime":       p.Floor.Airtime,
				"invincibility": p.Floor.Invincibility,
			},
			"turn": map[string]any{
				"raw":   p.Turn.Raw,
				"drift": p.Turn.Drift,
			},
			"wheelie": map[string]any{
				"active":   p.Wheelie.Active,
				"cooldown": p.Wheelie.Cooldown,
			},
			"trick": int(p.Trick.State),
			"lean":  p.Lean.Rot,
		},
	}
}
