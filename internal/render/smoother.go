// Package render eases the displayed globe transform toward the targets the
// interaction package produces, and names the region the globe is facing.
package render

import "github.com/ayusman/holohud/internal/interaction"

// SmoothingFactor is the fraction of the remaining gap closed per render tick.
const SmoothingFactor = 0.1

// Transform is the globe transform as displayed.
type Transform struct {
	RotationX float64 `json:"rotation_x"`
	RotationY float64 `json:"rotation_y"`
	Scale     float64 `json:"scale"`
}

// Lerp moves from toward to by factor t.
func Lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}

// Smoother tracks the displayed transform and eases it toward a target once
// per render tick.
type Smoother struct {
	factor  float64
	current Transform
}

// NewSmoother returns a smoother resting at the given transform.
func NewSmoother(initial Transform) *Smoother {
	return &Smoother{factor: SmoothingFactor, current: initial}
}

// Step eases the displayed transform one tick toward the interaction state's
// rotation and scale targets and returns the new transform.
func (s *Smoother) Step(target *interaction.State) Transform {
	s.current.RotationX = Lerp(s.current.RotationX, target.Rotation.X, s.factor)
	s.current.RotationY = Lerp(s.current.RotationY, target.Rotation.Y, s.factor)
	s.current.Scale = Lerp(s.current.Scale, target.Scale, s.factor)
	return s.current
}

// Current returns the displayed transform without advancing it.
func (s *Smoother) Current() Transform {
	return s.current
}
