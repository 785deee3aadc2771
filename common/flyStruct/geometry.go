package flyStruct

import "math"

// Vec3 is a world position as the client lays it out: X, Y (height), Z.
type Vec3 struct {
	X, Y, Z float64
}

var pi = math.Pi

// HeadingDegrees returns the client's heading from one point toward another.
// Only the ground plane (X, Z) is used. This is the client's own odd convention,
// including the 360/pi scale, and must stay exactly as is.
func HeadingDegrees(from, to Vec3) float64 {
	x1, y1 := from.Z, from.X
	x2, y2 := to.Z, to.X

	deltaX := x2 - x1
	deltaY := y2 - y1
	hyp := math.Sqrt(math.Abs(deltaY)*math.Abs(deltaY) + math.Abs(deltaX)*math.Abs(deltaX))

	dy := deltaY - hyp
	dx := deltaX - 0
	deg := math.Atan2(dy, dx) * (360 / pi)

	return math.Mod((360-deg)+90, 360)
}
