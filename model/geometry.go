package model

import "math"

// Vec2 is a position on the simulation plane, in cells.
type Vec2 struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance between v and other.
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// StepToward returns a point advanced from v toward dst by at most step.
// If dst is within step, dst itself is returned.
func (v Vec2) StepToward(dst Vec2, step float64) Vec2 {
	dist := v.DistanceTo(dst)
	if dist <= step || dist == 0 {
		return dst
	}
	f := step / dist
	return Vec2{
		X: v.X + (dst.X-v.X)*f,
		Y: v.Y + (dst.Y-v.Y)*f,
	}
}
