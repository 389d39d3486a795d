package interaction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/holohud/internal/detector"
)

// Result is what one frame of hands amounted to.
type Result struct {
	Mode        Mode
	ActiveHands int
}

// Interpreter maps hand landmarks onto globe and panel intents.
type Interpreter struct {
	screen Size
}

// NewInterpreter creates an Interpreter for a screen of the given size.
// The size is used to turn normalized palm positions into panel pixels.
func NewInterpreter(screen Size) *Interpreter {
	return &Interpreter{screen: screen}
}

// Screen returns the screen size the interpreter drags the panel across.
func (in *Interpreter) Screen() Size {
	return in.screen
}

// Interpret applies one frame of hands to st and reports the frame's mode.
//
// Hands are processed in order and every hand that acts overwrites the mode,
// so with two hands the later one decides the frame's mode. Hands without a
// full landmark set are skipped but still counted as active.
func (in *Interpreter) Interpret(hands []detector.HandLandmarks, st *State) Result {
	res := Result{Mode: ModeIdle, ActiveHands: len(hands)}

	earthSeen := false
	for i := range hands {
		hand := &hands[i]
		if !hand.Complete() {
			continue
		}

		dist := PinchDistance(hand)
		pinching := IsPinching(dist)
		palm := planar(hand.Palm())

		switch Classify(palm.X) {
		case ControlEarth:
			earthSeen = true
			in.earth(st, palm, dist, pinching, &res.Mode)
		case ControlPanel:
			in.panel(st, palm, pinching, &res.Mode)
		}
	}

	// A reference only carries over from a frame that had a globe hand.
	if !earthSeen {
		st.Reset()
	}

	return res
}

func (in *Interpreter) earth(st *State, palm r2.Vec, dist float64, pinching bool, mode *Mode) {
	if st.PrevPalm != nil && !pinching {
		delta := r2.Sub(palm, *st.PrevPalm)
		st.Rotation.Y += delta.X * RotationSensitivity
		st.Rotation.X += delta.Y * RotationSensitivity
		*mode = ModeRotating
	}
	prev := palm
	st.PrevPalm = &prev

	if pinching {
		d := dist
		st.PrevPinch = &d
	} else {
		st.PrevPinch = nil
	}

	gap := ScaleTarget(dist) - st.Scale
	if math.Abs(gap) > ScaleDeadZone {
		st.Scale += gap * ScaleStep
		*mode = ModeScaling
	}
}

func (in *Interpreter) panel(st *State, palm r2.Vec, pinching bool, mode *Mode) {
	if !pinching {
		return
	}

	// The camera view is mirrored; flip x so the panel follows the hand.
	target := r2.Vec{
		X: (1 - palm.X) * in.screen.Width,
		Y: palm.Y * in.screen.Height,
	}
	st.Panel = r2.Add(st.Panel, r2.Scale(DragSmoothing, r2.Sub(target, st.Panel)))
	*mode = ModeDragging
}
