package mathf

// Vec3 is a three component vector stored as an array so it can be indexed by axis.
type Vec3 [3]float32

var (
	Zero  = Vec3{0, 0, 0}
	Right = Vec3{1, 0, 0}
	Up    = Vec3{0, 1, 0}
	Down  = Vec3{0, -1, 0}
	Front = Vec3{0, 0, 1}
	Back  = Vec3{0, 0, -1}
)

func (v Vec3) X() float32 { return v[0] }
func (v Vec3) Y() float32 { return v[1] }
func (v Vec3) Z() float32 { return v[2] }

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (a Vec3) Neg() Vec3 {
	return Vec3{-a[0], -a[1], -a[2]}
}

// Scale returns a*k.
func (a Vec3) Scale(k float32) Vec3 {
	return Vec3{float32(a[0] * k), float32(a[1] * k), float32(a[2] * k)}
}

// MulAdd returns a + v*k.
func (a Vec3) MulAdd(k float32, v Vec3) Vec3 {
	return Vec3{
		a[0] + float32(v[0]*k),
		a[1] + float32(v[1]*k),
		a[2] + float32(v[2]*k),
	}
}

func (a Vec3) Div(k float32) Vec3 {
	return Vec3{a[0] / k, a[1] / k, a[2] / k}
}

func (a Vec3) Dot(b Vec3) float32 {
	return float32(a[0]*b[0]) + float32(a[1]*b[1]) + float32(a[2]*b[2])
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		float32(a[1]*b[2]) - float32(a[2]*b[1]),
		float32(a[2]*b[0]) - float32(a[0]*b[2]),
		float32(a[0]*b[1]) - float32(a[1]*b[0]),
	}
}

// CrossPlane returns the component of a lying in the plane with normal b, scaled by
// |b|^2. Parallel inputs give the zero vector.
func (a Vec3) CrossPlane(b Vec3) Vec3 {
	if Abs(a.Dot(b)) == 1 {
		return Zero
	}
	perp := b.Cross(a)
	return perp.Cross(b)
}

// ProjUnit projects a onto the unit vector b.
func (a Vec3) ProjUnit(b Vec3) Vec3 {
	return b.Scale(a.Dot(b))
}

// RejUnit removes the component of a along the unit vector b.
func (a Vec3) RejUnit(b Vec3) Vec3 {
	return a.Sub(a.ProjUnit(b))
}

func (a Vec3) Lerp(b Vec3, k float32) Vec3 {
	return a.Scale(1 - k).MulAdd(k, b)
}

func (v Vec3) MagSqr() float32 {
	return float32(v[0]*v[0]) + float32(v[1]*v[1]) + float32(v[2]*v[2])
}

// MagU is the unchecked magnitude.
func (v Vec3) MagU() float32 {
	return Sqrt(v.MagSqr())
}

// Mag returns 0 for vectors shorter than sqrt(Epsilon).
func (v Vec3) Mag() float32 {
	sq := v.MagSqr()
	if sq <= Epsilon {
		return 0
	}
	return Sqrt(sq)
}

// Normalize scales v to unit length in place and returns the previous magnitude.
// A degenerate vector is left untouched and 0 is returned.
func (v *Vec3) Normalize() float32 {
	mag := v.Mag()
	if mag != 0 {
		*v = v.Scale(1 / mag)
	}
	return mag
}

// Unit returns a normalized copy of v.
func (v Vec3) Unit() Vec3 {
	v.Normalize()
	return v
}

func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{Fmin(a[0], b[0]), Fmin(a[1], b[1]), Fmin(a[2], b[2])}
}

func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{Fmax(a[0], b[0]), Fmax(a[1], b[1]), Fmax(a[2], b[2])}
}

func (v Vec3) Radians() Vec3 {
	return Vec3{Radians(v[0]), Radians(v[1]), Radians(v[2])}
}

func (v Vec3) IsFinite() bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}
