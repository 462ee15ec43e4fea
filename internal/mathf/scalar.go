// Package mathf implements the float32 vector, quaternion and matrix routines the
// physics core is built on.
//
// Every product that feeds an addition is rounded to float32 explicitly. The Go
// compiler is allowed to fuse x*y+z into a single instruction on some targets, and
// a fused result would break bit-exact replay.
package mathf

import "math"

// Epsilon is the C FLT_EPSILON.
const Epsilon float32 = 1.1920928955078125e-07

// MaxFloat is the C FLT_MAX.
const MaxFloat float32 = math.MaxFloat32

// Pi is pi rounded to float32.
const Pi float32 = math.Pi

var (
	degPerRad = float32(180.0 / math.Pi)
	radPerDeg = Pi / 180
)

// Fmin follows C fminf: a NaN operand is ignored.
func Fmin(x, y float32) float32 {
	if x != x {
		return y
	}
	if y != y {
		return x
	}
	if y < x {
		return y
	}
	return x
}

// Fmax follows C fmaxf: a NaN operand is ignored.
func Fmax(x, y float32) float32 {
	if x != x {
		return y
	}
	if y != y {
		return x
	}
	if y > x {
		return y
	}
	return x
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	return Fmin(Fmax(x, lo), hi)
}

// Abs returns |x|.
func Abs(x float32) float32 {
	return math.Float32frombits(math.Float32bits(x) &^ (1 << 31))
}

// Sign returns copysign(1, x), so -0 yields -1.
func Sign(x float32) float32 {
	if math.Float32bits(x)&(1<<31) != 0 {
		return -1
	}
	return 1
}

// Copysign returns a value with the magnitude of mag and the sign of sign.
func Copysign(mag, sign float32) float32 {
	bits := math.Float32bits(mag)&^(1<<31) | math.Float32bits(sign)&(1<<31)
	return math.Float32frombits(bits)
}

// Sqrt is the correctly rounded float32 square root.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Sin returns sin(x) rounded to float32.
func Sin(x float32) float32 {
	return float32(math.Sin(float64(x)))
}

// Cos returns cos(x) rounded to float32.
func Cos(x float32) float32 {
	return float32(math.Cos(float64(x)))
}

// Atan2 returns atan2(y, x) rounded to float32.
func Atan2(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}

// Acos evaluates in double precision, as the slerp of the game does.
func Acos(x float32) float32 {
	return float32(math.Acos(float64(x)))
}

// SinInner takes an angle in units of 256 per full turn.
func SinInner(x float32) float32 {
	return float32(math.Sin(float64(x) * (2 * math.Pi / 256)))
}

// Degrees converts radians to degrees.
func Degrees(x float32) float32 {
	return x * degPerRad
}

// Radians converts degrees to radians.
func Radians(x float32) float32 {
	return x * radPerDeg
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float32) bool {
	return x == x && !math.IsInf(float64(x), 0)
}
