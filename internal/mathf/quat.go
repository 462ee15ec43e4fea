package mathf

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat [4]float32

var (
	Identity = Quat{0, 0, 0, 1}
	// QuatBack is a half turn about the up axis.
	QuatBack = Quat{0, 1, 0, 0}
)

func (q Quat) X() float32 { return q[0] }
func (q Quat) Y() float32 { return q[1] }
func (q Quat) Z() float32 { return q[2] }
func (q Quat) W() float32 { return q[3] }

// Vec3 drops the w component.
func (q Quat) Vec3() Vec3 { return Vec3{q[0], q[1], q[2]} }

// QuatFromAngles builds a rotation from x, y, z Euler angles in radians.
func QuatFromAngles(angles Vec3) Quat {
	half := angles.Scale(0.5)
	sx, sy, sz := Sin(half[0]), Sin(half[1]), Sin(half[2])
	cx, cy, cz := Cos(half[0]), Cos(half[1]), Cos(half[2])

	return Quat{
		float32(float32(cz*cy)*sx) - float32(float32(sz*sy)*cx),
		float32(float32(cz*sy)*cx) + float32(float32(sz*cy)*sx),
		float32(float32(sz*cy)*cx) - float32(float32(cz*sy)*sx),
		float32(float32(cz*cy)*cx) + float32(float32(sz*sy)*sx),
	}
}

// QuatFromAxisAngle rotates by angle radians about a unit axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	half := angle * 0.5
	s, c := Sin(half), Cos(half)
	return Quat{s * axis[0], s * axis[1], s * axis[2], c}
}

// QuatFromVecs returns the shortest rotation taking from onto to, or the identity
// when the vectors are opposite.
func QuatFromVecs(from, to Vec3) Quat {
	s := Sqrt(2 * (from.Dot(to) + 1))
	if s <= Epsilon {
		return Identity
	}

	recip := 1 / s
	cross := from.Cross(to)
	return Quat{recip * cross[0], recip * cross[1], recip * cross[2], 0.5 * s}
}

func (q Quat) Add(p Quat) Quat {
	return Quat{q[0] + p[0], q[1] + p[1], q[2] + p[2], q[3] + p[3]}
}

func (q Quat) Scale(s float32) Quat {
	return Quat{float32(q[0] * s), float32(q[1] * s), float32(q[2] * s), float32(q[3] * s)}
}

// MulV multiplies q by the pure quaternion (v, 0).
func (q Quat) MulV(v Vec3) Quat {
	return Quat{
		float32(q[1]*v[2]) - float32(q[2]*v[1]) + float32(q[3]*v[0]),
		float32(q[2]*v[0]) - float32(q[0]*v[2]) + float32(q[3]*v[1]),
		float32(q[0]*v[1]) - float32(q[1]*v[0]) + float32(q[3]*v[2]),
		-(float32(q[0]*v[0]) + float32(q[1]*v[1]) + float32(q[2]*v[2])),
	}
}

// Mul returns the Hamilton product q*p.
func (q Quat) Mul(p Quat) Quat {
	return Quat{
		float32(q[3]*p[0]) + float32(q[0]*p[3]) + float32(q[1]*p[2]) - float32(q[2]*p[1]),
		float32(q[3]*p[1]) + float32(q[1]*p[3]) + float32(q[2]*p[0]) - float32(q[0]*p[2]),
		float32(q[3]*p[2]) + float32(q[2]*p[3]) + float32(q[0]*p[1]) - float32(q[1]*p[0]),
		float32(q[3]*p[3]) - float32(q[0]*p[0]) - float32(q[1]*p[1]) - float32(q[2]*p[2]),
	}
}

func (q Quat) Dot(p Quat) float32 {
	return float32(q[0]*p[0]) + float32(q[1]*p[1]) + float32(q[2]*p[2]) + float32(q[3]*p[3])
}

func (q Quat) MagSqr() float32 {
	return q.Dot(q)
}

// Normalize scales q to unit length in place and returns the squared norm it had.
// When that is not above Epsilon q is left untouched and 0 is returned.
func (q *Quat) Normalize() float32 {
	sq := q.MagSqr()
	if sq <= Epsilon {
		return 0
	}
	*q = q.Scale(1 / Sqrt(sq))
	return sq
}

// Invert is the conjugate, the inverse of a unit quaternion.
func (q Quat) Invert() Quat {
	return Quat{-q[0], -q[1], -q[2], q[3]}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	return q.MulV(v).Mul(q.Invert()).Vec3()
}

// InvRotate applies the inverse of q to v.
func (q Quat) InvRotate(v Vec3) Vec3 {
	return q.Invert().MulV(v).Mul(q).Vec3()
}

// Slerp interpolates from q toward p, taking the short arc.
func (q Quat) Slerp(p Quat, t float32) Quat {
	dot := Clamp(q.Dot(p), -1, 1)
	angle := Acos(Abs(dot))
	sine := Sin(angle)

	var s, u float32
	if Abs(sine) >= 1e-5 {
		recip := 1 / sine
		s = recip * Sin(angle-float32(t*angle))
		u = recip * Sin(t*angle)
	} else {
		s = 1 - t
		u = t
	}
	u = Sign(dot) * u

	return q.Scale(s).Add(p.Scale(u))
}

func (q Quat) IsFinite() bool {
	return IsFinite(q[0]) && IsFinite(q[1]) && IsFinite(q[2]) && IsFinite(q[3])
}
