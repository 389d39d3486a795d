// Package interaction turns per-frame hand landmarks into globe rotation,
// globe scale and panel drag intents.
package interaction

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/holohud/internal/detector"
)

// Gesture tuning. These are fixed; the HUD is calibrated around them.
const (
	// PinchThreshold is the thumb-to-index tip distance, in normalized image
	// units, below which a hand counts as pinching.
	PinchThreshold = 0.05
	// RotationSensitivity converts palm travel into radians of globe rotation.
	RotationSensitivity = 5.0
	// DragSmoothing is the fraction of the remaining gap the panel covers per frame.
	DragSmoothing = 0.15
	// RegionSplit is the palm x coordinate separating globe control (left)
	// from panel control (right).
	RegionSplit = 0.55
	// ScaleBase and ScaleGain map pinch spread to a globe scale target.
	ScaleBase = 1.0
	ScaleGain = 8.0
	// ScaleStep is the fraction of the scale gap closed per frame.
	ScaleStep = 0.1
	// ScaleDeadZone is the smallest scale gap that still moves the globe.
	ScaleDeadZone = 0.01
)

// Control is the screen region a hand's gestures are routed to.
type Control int

const (
	// ControlEarth routes gestures to the globe.
	ControlEarth Control = iota
	// ControlPanel routes gestures to the floating panel.
	ControlPanel
)

func (c Control) String() string {
	if c == ControlEarth {
		return "earth"
	}
	return "panel"
}

// Distance is the image-plane Euclidean distance between two landmarks.
// Depth is ignored: MediaPipe z is on a different scale from x and y.
func Distance(a, b detector.Point3D) float64 {
	return r2.Norm(r2.Sub(planar(a), planar(b)))
}

// PinchDistance is the distance between the thumb tip and the index tip.
func PinchDistance(hand *detector.HandLandmarks) float64 {
	return Distance(hand.Points[detector.ThumbTip], hand.Points[detector.IndexTip])
}

// IsPinching reports whether a pinch distance is below PinchThreshold.
func IsPinching(dist float64) bool {
	return dist < PinchThreshold
}

// Classify returns the control region for a palm x coordinate.
func Classify(palmX float64) Control {
	if palmX < RegionSplit {
		return ControlEarth
	}
	return ControlPanel
}

// ScaleTarget maps a pinch spread to the globe scale it asks for.
func ScaleTarget(pinchDist float64) float64 {
	return ScaleBase + pinchDist*ScaleGain
}

func planar(p detector.Point3D) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}
