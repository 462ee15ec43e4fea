package kcl

import (
	"errors"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

// ErrDegenerateTriangle is returned when a prism cannot be built from three vertices.
var ErrDegenerateTriangle = errors.New("degenerate triangle")

// Triangle is a collision prism. Position is vertex A; the three edge normals point
// out of the triangle and Height is the distance from A to edge BC.
type Triangle struct {
	Height    float32
	Position  mathf.Vec3
	Normal    mathf.Vec3
	CANormal  mathf.Vec3
	ABNormal  mathf.Vec3
	BCNormal  mathf.Vec3
	Attribute Attribute
}

// Hit is a single prism overlap.
type Hit struct {
	Dist   float32
	Normal mathf.Vec3
	Flags  Attribute
}

// NewTriangle precomputes the prism for the counter-clockwise triangle a, b, c.
func NewTriangle(a, b, c mathf.Vec3, attr Attribute) (Triangle, error) {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Normalize() == 0 {
		return Triangle{}, ErrDegenerateTriangle
	}

	ca := a.Sub(c).Cross(n)
	ab := b.Sub(a).Cross(n)
	bc := c.Sub(b).Cross(n)
	if ca.Normalize() == 0 || ab.Normalize() == 0 || bc.Normalize() == 0 {
		return Triangle{}, ErrDegenerateTriangle
	}

	return Triangle{
		Height:    c.Sub(a).Dot(bc),
		Position:  a,
		Normal:    n,
		CANormal:  ca,
		ABNormal:  ab,
		BCNormal:  bc,
		Attribute: attr,
	}, nil
}

// Vertices reconstructs the three corners of the prism's face.
func (t *Triangle) Vertices() [3]mathf.Vec3 {
	crossA := t.CANormal.Cross(t.Normal)
	crossB := t.ABNormal.Cross(t.Normal)

	return [3]mathf.Vec3{
		t.Position,
		t.Position.MulAdd(t.Height/crossB.Dot(t.BCNormal), crossB),
		t.Position.MulAdd(t.Height/crossA.Dot(t.BCNormal), crossA),
	}
}

// triDot sums x and y in double precision before adding z.
func triDot(a, b mathf.Vec3) float32 {
	y := a[1] * b[1]
	xy := float32(float64(a[0])*float64(b[0]) + float64(y))
	return xy + float32(a[2]*b[2])
}

// Collide tests the hitbox sphere against the prism. A hit is reported when the
// sphere penetrates the face by less than thickness, either over the face or past
// the nearest edge or corner.
func (t *Triangle) Collide(hb *Hitbox, thickness float32) (Hit, bool) {
	if t.Attribute.KindBit()&hb.Flags == 0 {
		return Hit{}, false
	}

	radius := hb.Radius
	pos := hb.Pos.Sub(t.Position)

	caDist := triDot(pos, t.CANormal)
	if caDist >= radius {
		return Hit{}, false
	}

	abDist := triDot(pos, t.ABNormal)
	if abDist >= radius {
		return Hit{}, false
	}

	bcDist := triDot(pos, t.BCNormal) - t.Height
	if bcDist >= radius {
		return Hit{}, false
	}

	planeDist := triDot(pos, t.Normal)
	if !mathf.IsFinite(caDist) || !mathf.IsFinite(abDist) || !mathf.IsFinite(bcDist) || !mathf.IsFinite(planeDist) {
		return Hit{}, false
	}

	distInPlane := radius - planeDist
	if distInPlane <= 0 || distInPlane >= thickness {
		return Hit{}, false
	}

	if caDist <= 0 && abDist <= 0 && bcDist <= 0 {
		if hb.LastPosValid {
			lastPos := pos.Sub(hb.Pos.Sub(hb.LastPos))
			if planeDist < 0 && triDot(lastPos, t.Normal) < 0 {
				return Hit{}, false
			}
		}
		return Hit{Dist: distInPlane, Normal: t.Normal, Flags: t.Attribute}, true
	}

	var edgeNor, otherNor mathf.Vec3
	var edgeDist, otherDist float32
	switch {
	case abDist >= caDist && abDist > bcDist:
		edgeNor, edgeDist = t.ABNormal, abDist
		if caDist >= bcDist {
			otherNor, otherDist = t.CANormal, caDist
		} else {
			otherNor, otherDist = t.BCNormal, bcDist
		}
	case bcDist >= caDist:
		edgeNor, edgeDist = t.BCNormal, bcDist
		if abDist >= caDist {
			otherNor, otherDist = t.ABNormal, abDist
		} else {
			otherNor, otherDist = t.CANormal, caDist
		}
	default:
		edgeNor, edgeDist = t.CANormal, caDist
		if bcDist >= abDist {
			otherNor, otherDist = t.BCNormal, bcDist
		} else {
			otherNor, otherDist = t.ABNormal, abDist
		}
	}

	c := triDot(edgeNor, otherNor)
	var sqDist float32

	if c*edgeDist > otherDist {
		if !hb.LastPosValid && edgeDist >= planeDist {
			return Hit{}, false
		}
		sqDist = float32(radius*radius) - float32(edgeDist*edgeDist)
	} else {
		u := (float32(c*edgeDist) - otherDist) / (float32(c*c) - 1)
		s := edgeDist - float32(u*c)
		corner := edgeNor.Scale(s).Add(otherNor.Scale(u))
		cornerSqDist := corner.MagSqr()

		if !hb.LastPosValid && cornerSqDist > planeDist*planeDist {
			return Hit{}, false
		}
		sqDist = float32(radius*radius) - cornerSqDist
	}

	if sqDist < planeDist*planeDist || sqDist < 0 {
		return Hit{}, false
	}

	dist := mathf.Sqrt(sqDist) - planeDist
	if !(dist > 0) || !mathf.IsFinite(dist) {
		return Hit{}, false
	}

	if hb.LastPosValid {
		lastPos := pos.Sub(hb.Pos.Sub(hb.LastPos))
		if triDot(lastPos, t.Normal) < 0 {
			return Hit{}, false
		}
	}

	return Hit{Dist: dist, Normal: t.Normal, Flags: t.Attribute}, true
}
