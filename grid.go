package daw

import "math"

// DefaultStep is the minimum gap, minimum duration and nudge distance when
// snapping is disabled.
const DefaultStep = 0.25

// Grid is the snap setting shared by every interactive edit. Size is in beats.
type Grid struct {
	Size    float64
	Enabled bool
}

// Snap quantizes value to the nearest multiple of size. A non-positive size
// returns value unchanged.
func Snap(value, size float64) float64 {
	if size <= 0 {
		return value
	}
	return math.Round(value/size) * size
}

// Snap quantizes value to the grid, or passes it through when the grid is
// disabled.
func (g Grid) Snap(value float64) float64 {
	if !g.Enabled {
		return value
	}
	return Snap(value, g.Size)
}

// Step is one grid unit when snapping, DefaultStep otherwise.
func (g Grid) Step() float64 {
	if g.Enabled && g.Size > 0 {
		return g.Size
	}
	return DefaultStep
}
