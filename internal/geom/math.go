package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Math is the rotation capability consumed by the decoders.
type Math interface {
	Multiply(a, b Quaternion) Quaternion
	FromEuler(e Euler) Quaternion
	ToEuler(q Quaternion, order Order) Euler
}

// Default is the gonum-backed Math implementation.
var Default Math = gonumMath{}

type gonumMath struct{}

func toNumber(q Quaternion) quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Multiply returns the Hamilton product a*b (b applied first).
func (gonumMath) Multiply(a, b Quaternion) Quaternion {
	return fromNumber(quat.Mul(toNumber(a), toNumber(b)))
}

func (gonumMath) FromEuler(e Euler) Quaternion {
	c1, s1 := math.Cos(e.X/2), math.Sin(e.X/2)
	c2, s2 := math.Cos(e.Y/2), math.Sin(e.Y/2)
	c3, s3 := math.Cos(e.Z/2), math.Sin(e.Z/2)

	switch e.Order {
	case OrderYXZ:
		return Quaternion{
			X: s1*c2*c3 + c1*s2*s3,
			Y: c1*s2*c3 - s1*c2*s3,
			Z: c1*c2*s3 - s1*s2*c3,
			W: c1*c2*c3 + s1*s2*s3,
		}
	default:
		return Quaternion{
			X: s1*c2*c3 + c1*s2*s3,
			Y: c1*s2*c3 - s1*c2*s3,
			Z: c1*c2*s3 + s1*s2*c3,
			W: c1*c2*c3 - s1*s2*s3,
		}
	}
}

// ToEuler decomposes the rotation matrix of a unit quaternion.
func (gonumMath) ToEuler(q Quaternion, order Order) Euler {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	m11 := 1 - 2*(y*y+z*z)
	m12 := 2 * (x*y - w*z)
	m13 := 2 * (x*z + w*y)
	m21 := 2 * (x*y + w*z)
	m22 := 1 - 2*(x*x+z*z)
	m23 := 2 * (y*z - w*x)
	m31 := 2 * (x*z - w*y)
	m32 := 2 * (y*z + w*x)
	m33 := 1 - 2*(x*x+y*y)

	out := Euler{Order: order}
	switch order {
	case OrderYXZ:
		out.X = math.Asin(-clamp(m23, -1, 1))
		if math.Abs(m23) < 0.9999999 {
			out.Y = math.Atan2(m13, m33)
			out.Z = math.Atan2(m21, m22)
		} else {
			out.Y = math.Atan2(-m31, m11)
		}
	default:
		out.Order = OrderXYZ
		out.Y = math.Asin(clamp(m13, -1, 1))
		if math.Abs(m13) < 0.9999999 {
			out.X = math.Atan2(-m23, m33)
			out.Z = math.Atan2(-m12, m11)
		} else {
			out.X = math.Atan2(m32, m22)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
