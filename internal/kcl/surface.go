// Package kcl holds the static collision world of a course: the triangle prisms, the
// octree index over them and the sphere-vs-prism overlap test.
package kcl

// Kind is the surface type stored in the low 5 bits of a triangle attribute.
type Kind uint8

// Surface kinds, in attribute order.
const (
	KindRoad Kind = iota
	KindSlipperyRoad
	KindWeakOffRoad
	KindOffRoad
	KindHeavyOffRoad
	KindSlipperyRoad2
	KindBoostPad
	KindBoostRamp
	KindJumpPad
	KindItemRoad
	KindSolidOOB
	KindMovingWater
	KindWall
	KindInvisibleWall
	KindItemWall
	KindWall2
	KindFallBoundary
	KindCannonTrigger
	KindForceRecalculateRoute
	KindHalfpipeRamp
	KindPlayerWall
	KindMovingRoad
	KindStickyRoad
	KindRoad2
	KindSoundTrigger
	KindWeakWall
	KindEffectTrigger
	KindItemStateModifier
	KindHalfpipeInvisibleWall
	KindRotatingRoad
	KindSpecialWall
	KindInvisibleWall2

	// KindCount is the number of surface kinds.
	KindCount
)

var kindNames = [KindCount]string{
	"road", "slippery_road", "weak_off_road", "off_road", "heavy_off_road",
	"slippery_road_2", "boost_pad", "boost_ramp", "jump_pad", "item_road",
	"solid_oob", "moving_water", "wall", "invisible_wall", "item_wall", "wall_2",
	"fall_boundary", "cannon_trigger", "force_recalculate_route", "halfpipe_ramp",
	"player_wall", "moving_road", "sticky_road", "road_2", "sound_trigger",
	"weak_wall", "effect_trigger", "item_state_modifier", "halfpipe_invisible_wall",
	"rotating_road", "special_wall", "invisible_wall_2",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return "unknown"
}

// Bit returns the kind's bit in a surface kind mask.
func (k Kind) Bit() uint32 {
	return 1 << (k & 0x1F)
}

// Surface kind masks.
const (
	// MaskDirectional holds the trigger and boundary kinds.
	MaskDirectional = 1<<KindFallBoundary | 1<<KindSoundTrigger | 1<<KindForceRecalculateRoute |
		1<<KindEffectTrigger | 1<<KindCannonTrigger

	// MaskSolidSurface is every kind with visible geometry.
	MaskSolidSurface = 0xFFFFFFFF &^ (1<<KindFallBoundary | 1<<KindCannonTrigger |
		1<<KindForceRecalculateRoute | 1<<KindSoundTrigger | 1<<KindWeakWall |
		1<<KindEffectTrigger | 1<<KindItemStateModifier)

	// MaskFloor kinds can be driven on.
	MaskFloor = 1<<KindRoad | 1<<KindSlipperyRoad | 1<<KindWeakOffRoad | 1<<KindOffRoad |
		1<<KindHeavyOffRoad | 1<<KindSlipperyRoad2 | 1<<KindBoostPad | 1<<KindBoostRamp |
		1<<KindJumpPad | 1<<KindItemRoad | 1<<KindSolidOOB | 1<<KindMovingWater |
		1<<KindHalfpipeRamp | 1<<KindMovingRoad | 1<<KindStickyRoad | 1<<KindRoad2 |
		1<<KindRotatingRoad

	// MaskWall kinds block from the side.
	MaskWall = 1<<KindWall | 1<<KindInvisibleWall | 1<<KindItemWall | 1<<KindWall2 |
		1<<KindPlayerWall | 1<<KindHalfpipeInvisibleWall | 1<<KindSpecialWall |
		1<<KindInvisibleWall2

	// MaskVehicle is what wheel and body hitboxes collide with.
	MaskVehicle uint32 = 0x20E80FFF
	// MaskSticky is searched by the sticky road probe.
	MaskSticky uint32 = 1<<KindStickyRoad | 1<<KindMovingWater
)

// Attribute flag bits above the kind and variant.
const (
	// FlagTrickable lets a ramp start a trick.
	FlagTrickable Attribute = 0x2000
	// FlagSoftWall marks a soft wall.
	FlagSoftWall Attribute = 0x8000
)

// VariantInvalid marks the absence of a boost ramp or jump pad variant.
const VariantInvalid uint8 = 0xFF

// Attribute is the 16-bit per-triangle surface value.
type Attribute uint16

// Kind returns the surface kind in the low 5 bits.
func (a Attribute) Kind() Kind { return Kind(a & 0x1F) }

// Variant selects the strength of boost ramps and jump pads.
func (a Attribute) Variant() uint8 { return uint8(a>>5) & 7 }

// Trickable reports whether FlagTrickable is set.
func (a Attribute) Trickable() bool { return a&FlagTrickable != 0 }

// KindBit returns the attribute's kind bit.
func (a Attribute) KindBit() uint32 { return a.Kind().Bit() }

var (
	jumpPadSpeed = [8]float32{50, 50, 59, 73, 73, 56, 55, 56}
	jumpPadVelY  = [8]float32{35, 47, 30, 45, 53, 50, 35, 50}
)

// JumpPadSpeed is the minimum forward speed a jump pad variant imposes.
func JumpPadSpeed(variant uint8) float32 {
	if variant < 8 {
		return jumpPadSpeed[variant]
	}
	return 0
}

// JumpPadVelY is the launch velocity of a jump pad variant.
func JumpPadVelY(variant uint8) float32 {
	if variant < 8 {
		return jumpPadVelY[variant]
	}
	return 0
}
