package protocol

import (
	"math"

	"github.com/danmuck/stridelink/internal/geom"
)

// Mounting offsets of the IMU inside each insole, as XYZ eulers.
var (
	rightInsoleCorrection = geom.Euler{X: 0, Y: math.Pi / 2, Z: -math.Pi / 2, Order: geom.OrderXYZ}
	leftInsoleCorrection  = geom.Euler{X: -math.Pi / 2, Y: -math.Pi / 2, Z: 0, Order: geom.OrderXYZ}
)

// InsoleCorrection returns the correction quaternion for an insole placement
// and identity for the motion module.
func InsoleCorrection(m geom.Math, t DeviceType) geom.Quaternion {
	switch t {
	case RightInsole:
		return m.FromEuler(rightInsoleCorrection)
	case LeftInsole:
		return m.FromEuler(leftInsoleCorrection)
	}
	return geom.Identity()
}

// RemapVector maps device axes to canonical axes.
func RemapVector(t DeviceType, x, y, z float64) geom.Vector3 {
	switch t {
	case RightInsole:
		return geom.Vector3{X: z, Y: y, Z: x}
	case LeftInsole:
		return geom.Vector3{X: -z, Y: y, Z: -x}
	}
	return geom.Vector3{X: x, Y: -z, Z: -y}
}

// RemapEuler maps device rotation axes (radians) to a canonical YXZ euler.
func RemapEuler(t DeviceType, x, y, z float64) geom.Euler {
	switch t {
	case RightInsole:
		return geom.Euler{X: -z, Y: -y, Z: -x, Order: geom.OrderYXZ}
	case LeftInsole:
		return geom.Euler{X: z, Y: -y, Z: x, Order: geom.OrderYXZ}
	}
	return geom.Euler{X: -x, Y: z, Z: y, Order: geom.OrderYXZ}
}

// RemapQuaternion permutes raw (w,x,y,z) and applies the insole correction.
// correction is ignored for the motion module.
func RemapQuaternion(m geom.Math, t DeviceType, correction geom.Quaternion, w, x, y, z float64) geom.Quaternion {
	q := geom.Quaternion{X: -y, Y: -w, Z: -x, W: z}
	if t.IsInsole() {
		q = m.Multiply(q, correction)
	}
	return q
}
