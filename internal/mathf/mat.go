package mathf

// Mat34 is a row-major 3x4 affine transform; column 3 holds the translation.
type Mat34 [12]float32

// Mat33 is a row-major 3x3 matrix.
type Mat33 [9]float32

// At returns the element at row r, column c.
func (m Mat34) At(r, c int) float32 { return m[r*4+c] }

// Front returns the third column, the transformed front axis.
func (m Mat34) Front() Vec3 { return Vec3{m[2], m[6], m[10]} }

// Upward returns the second column, the transformed up axis.
func (m Mat34) Upward() Vec3 { return Vec3{m[1], m[5], m[9]} }

// Rightward returns the first column, the transformed right axis.
func (m Mat34) Rightward() Vec3 { return Vec3{m[0], m[4], m[8]} }

// Mat34FromQuatPos builds the transform rotating by q then translating by pos.
func Mat34FromQuatPos(q Quat, pos Vec3) Mat34 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	x2, y2, z2, w2 := 2*x, 2*y, 2*z, 2*w

	return Mat34{
		1 - float32(y2*y) - float32(z2*z), float32(x2*y) - float32(w2*z), float32(x2*z) + float32(w2*y), pos[0],
		float32(x2*y) + float32(w2*z), 1 - float32(x2*x) - float32(z2*z), float32(y2*z) - float32(w2*x), pos[1],
		float32(x2*z) - float32(w2*y), float32(y2*z) + float32(w2*x), 1 - float32(x2*x) - float32(y2*y), pos[2],
	}
}

// Mat34FromAnglesPos builds the transform for x, y, z Euler angles in radians.
func Mat34FromAnglesPos(angles, pos Vec3) Mat34 {
	sx, sy, sz := Sin(angles[0]), Sin(angles[1]), Sin(angles[2])
	cx, cy, cz := Cos(angles[0]), Cos(angles[1]), Cos(angles[2])

	return Mat34{
		cy * cz, float32(float32(sx*sy)*cz) - float32(sz*cx), float32(float32(cx*cz)*sy) + float32(sx*sz), pos[0],
		sz * cy, float32(float32(sx*sy)*sz) + float32(cx*cz), float32(float32(sz*cx)*sy) - float32(sx*cz), pos[1],
		-sy, sx * cy, cx * cy, pos[2],
	}
}

// Mat34FromAxisAngle is a pure rotation about axis.
func Mat34FromAxisAngle(axis Vec3, angle float32) Mat34 {
	return Mat34FromQuatPos(QuatFromAxisAngle(axis, angle), Zero)
}

// Mat34Diag is a scale matrix with no translation.
func Mat34Diag(d Vec3) Mat34 {
	return Mat34{
		d[0], 0, 0, 0,
		0, d[1], 0, 0,
		0, 0, d[2], 0,
	}
}

// Transpose transposes the rotation part and drops the translation.
func (m Mat34) Transpose() Mat34 {
	return Mat34{
		m[0], m[4], m[8], 0,
		m[1], m[5], m[9], 0,
		m[2], m[6], m[10], 0,
	}
}

// MulV transforms the point v. The z term is accumulated in double precision to
// match the paired-single code the game was compiled to.
func (m Mat34) MulV(v Vec3) Vec3 {
	var out Vec3
	for i := 0; i < 3; i++ {
		row := m[i*4 : i*4+4]
		tmp0 := row[0] * v[0]
		tmp0 = float32(float64(row[2])*float64(v[2]) + float64(tmp0))
		tmp1 := float32(row[1]*v[1]) + row[3]
		out[i] = tmp0 + tmp1
	}
	return out
}

// MulM returns m*n treating both as 4x4 affine matrices.
func (m Mat34) MulM(n Mat34) Mat34 {
	cols := [4][4]float32{
		{n[0], n[4], n[8], 0},
		{n[1], n[5], n[9], 0},
		{n[2], n[6], n[10], 0},
		{n[3], n[7], n[11], 1},
	}

	var o Mat34
	for i := 0; i < 3; i++ {
		row := m[i*4 : i*4+4]
		for j := 0; j < 4; j++ {
			col := cols[j]
			acc := row[0] * col[0]
			acc = float32(float64(row[1])*float64(col[1]) + float64(acc))
			acc = float32(float64(row[2])*float64(col[2]) + float64(acc))
			acc = float32(float64(row[3])*float64(col[3]) + float64(acc))
			o[i*4+j] = acc
		}
	}
	return o
}

// Mat33 extracts the rotation part.
func (m Mat34) Mat33() Mat33 {
	return Mat33{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}

func (m Mat33) MulV(v Vec3) Vec3 {
	return Vec3{
		float32(m[0]*v[0]) + float32(m[1]*v[1]) + float32(m[2]*v[2]),
		float32(m[3]*v[0]) + float32(m[4]*v[1]) + float32(m[5]*v[2]),
		float32(m[6]*v[0]) + float32(m[7]*v[1]) + float32(m[8]*v[2]),
	}
}
