package player

import (
	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
)

// SurfaceProps collects the special surfaces touched by wheels and body during a
// frame. The flags are cleared before the collision pass, the variants persist.
type SurfaceProps struct {
	HasBoostPanel   bool
	HasBoostRamp    bool
	HasStickyRoad   bool
	HasNonTrickable bool
	BoostRamp       uint8
	JumpPad         uint8
}

func newSurfaceProps() SurfaceProps {
	return SurfaceProps{BoostRamp: kcl.VariantInvalid, JumpPad: kcl.VariantInvalid}
}

func (s *SurfaceProps) add(col *kcl.Collision, allowBoostPanels bool) {
	if _, ok := col.FindFurthest(kcl.KindMovingWater.Bit()); ok {
		s.HasStickyRoad = false
	}

	if _, ok := col.FindFurthest(kcl.MaskVehicle); !ok {
		return
	}

	if allowBoostPanels && col.Has(kcl.KindBoostPad.Bit()) {
		s.HasBoostPanel = true
	}

	ramp, ok := kcl.SurfaceHit{}, false
	if col.Has(kcl.KindBoostRamp.Bit()) {
		ramp, ok = col.FindFurthest(kcl.KindBoostRamp.Bit())
	}
	if ok {
		s.HasBoostRamp = true
		s.BoostRamp = ramp.Surface.Variant()
	} else {
		s.HasBoostRamp = false
		s.BoostRamp = kcl.VariantInvalid
		s.HasNonTrickable = true
	}

	if col.Has(kcl.KindStickyRoad.Bit()) {
		s.HasStickyRoad = true
	}

	if pad, ok := col.FindFurthest(kcl.KindJumpPad.Bit()); ok {
		s.JumpPad = pad.Surface.Variant()
	}
}

func (s *SurfaceProps) reset() {
	s.HasBoostPanel = false
	s.HasBoostRamp = false
	s.HasStickyRoad = false
	s.HasNonTrickable = false
}

// Contact is the ground contact of one wheel or of the body for a frame.
type Contact struct {
	Valid        bool
	HasTrickable bool
	Count        uint8
	FloorNormal  mathf.Vec3
	SpeedFactor  float32
	RotFactor    float32
}

func (c *Contact) reset() {
	*c = Contact{SpeedFactor: 1}
}

func (c *Contact) add(p *Player, col *kcl.Collision) {
	c.Valid = true
	c.Count++
	c.FloorNormal = c.FloorNormal.Add(col.FloorNormal)

	hit, ok := col.FindFurthest(kcl.MaskVehicle)
	if !ok {
		return
	}

	if hit.Surface.Trickable() {
		c.HasTrickable = true
	}

	kind := hit.Surface.Kind()
	c.SpeedFactor = mathf.Fmin(c.SpeedFactor, p.Stats.SpeedMultipliers[kind])
	c.RotFactor += p.Stats.RotationMultipliers[kind]

	if !c.HasTrickable {
		if _, pad := col.FindFurthest(kcl.KindJumpPad.Bit()); pad || hit.Surface.Trickable() {
			c.HasTrickable = true
		}
	}
}

func (c *Contact) setNormal(n mathf.Vec3) {
	c.Valid = true
	c.FloorNormal = n
	c.RotFactor = 1
}

func (c *Contact) finalize() {
	if c.Valid {
		c.FloorNormal.Normalize()
	}
	if c.Count > 0 {
		c.RotFactor /= float32(c.Count)
	}
}
