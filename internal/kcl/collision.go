package kcl

import "github.com/OCAP2/kartreplay/internal/mathf"

// MaxHits bounds the hit records kept per query.
const MaxHits = 64

// SurfaceHit records the surface and depth of one overlap.
type SurfaceHit struct {
	Surface Attribute
	Dist    float32
}

// Collision accumulates every overlap of one hitbox query.
type Collision struct {
	Min          mathf.Vec3
	Max          mathf.Vec3
	FloorDist    float32
	FloorNormal  mathf.Vec3
	Hits         [MaxHits]SurfaceHit
	HitCount     int
	SurfaceKinds uint32
}

// Add folds one prism hit into the result. The push-out along the hit normal widens
// the min/max box; the deepest hit becomes the floor.
func (c *Collision) Add(h Hit) {
	dir := h.Normal.Scale(h.Dist)
	c.Min = c.Min.Min(dir)
	c.Max = c.Max.Max(dir)

	if h.Dist > c.FloorDist {
		c.FloorDist = h.Dist
		c.FloorNormal = h.Normal
	}

	c.SurfaceKinds |= h.Flags.KindBit()

	if c.HitCount < MaxHits {
		c.Hits[c.HitCount] = SurfaceHit{Surface: h.Flags, Dist: h.Dist}
		c.HitCount++
	}
}

// Movement is the combined push-out of all hits.
func (c *Collision) Movement() mathf.Vec3 {
	return c.Min.Add(c.Max)
}

// Has reports whether any hit matched one of the kinds in mask.
func (c *Collision) Has(mask uint32) bool {
	return c.SurfaceKinds&mask != 0
}

// FindFurthest returns the deepest hit whose kind is in mask.
func (c *Collision) FindFurthest(mask uint32) (SurfaceHit, bool) {
	var best SurfaceHit
	found := false
	bestDist := -mathf.MaxFloat

	for i := 0; i < c.HitCount; i++ {
		hit := c.Hits[i]
		if hit.Surface.KindBit()&mask == 0 {
			continue
		}
		if hit.Dist > bestDist {
			best = hit
			bestDist = hit.Dist
			found = true
		}
	}

	return best, found
}

// Hitbox is a sphere queried against the world. LastPos is the centre one update
// earlier and is only meaningful when LastPosValid is set.
type Hitbox struct {
	Pos          mathf.Vec3
	LastPos      mathf.Vec3
	Radius       float32
	Flags        uint32
	LastPosValid bool
}

// NewHitbox creates a hitbox; lastPos may be nil.
func NewHitbox(pos mathf.Vec3, lastPos *mathf.Vec3, radius float32, flags uint32) Hitbox {
	hb := Hitbox{Pos: pos, Radius: radius, Flags: flags}
	if lastPos != nil {
		hb.LastPos = *lastPos
		hb.LastPosValid = true
	}
	return hb
}

// UpdatePos moves the hitbox, keeping the old centre as LastPos.
func (hb *Hitbox) UpdatePos(pos mathf.Vec3) {
	hb.LastPos = hb.Pos
	hb.Pos = pos
	hb.LastPosValid = true
}
