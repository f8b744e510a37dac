package geom

import "math"

// Order is the axis application order of an Euler rotation.
type Order string

const (
	OrderXYZ Order = "XYZ"
	OrderYXZ Order = "YXZ"
)

// Vector3 is a 3-component vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Euler is a rotation in radians applied in Order.
type Euler struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Order Order   `json:"order"`
}

// Quaternion stores the vector part first, matching the wire permutation tables.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the no-rotation quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) Length() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
