package interaction

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Mode summarizes what the hands did during one frame.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRotating
	ModeScaling
	ModeDragging
)

var modeNames = [...]string{
	ModeIdle:     "IDLE",
	ModeRotating: "ROTATING",
	ModeScaling:  "SCALING",
	ModeDragging: "DRAGGING",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "UNKNOWN"
	}
	return modeNames[m]
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, ok := ParseMode(string(text))
	if !ok {
		return fmt.Errorf("unknown interaction mode %q", text)
	}
	*m = parsed
	return nil
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return ModeIdle, false
}

// Size is a screen size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rotation holds globe rotation angles in radians.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Initial values for a fresh State.
const (
	InitialScale  = 1.5
	InitialPanelX = 0.7
	InitialPanelY = 0.2
)

// State is the interaction state carried from one frame to the next.
// Only Interpreter.Interpret mutates it.
type State struct {
	// Rotation is the accumulated rotation target for the globe.
	Rotation Rotation
	// Scale is the globe scale target, already eased toward the pinch spread.
	Scale float64
	// Panel is the panel center in screen pixels.
	Panel r2.Vec

	// PrevPalm is the last globe-control palm position, nil when the
	// previous frame had no hand in the globe region.
	PrevPalm *r2.Vec
	// PrevPinch is the last pinch distance seen while pinching.
	PrevPinch *float64
}

// NewState returns the startup state for a screen: default scale and the
// panel parked center-right.
func NewState(screen Size) *State {
	return &State{
		Scale: InitialScale,
		Panel: r2.Vec{X: screen.Width * InitialPanelX, Y: screen.Height * InitialPanelY},
	}
}

// Reset forgets the previous-frame references so the next hand starts clean.
func (s *State) Reset() {
	s.PrevPalm = nil
	s.PrevPinch = nil
}

// Tracking reports whether a previous palm reference is held.
func (s *State) Tracking() bool {
	return s.PrevPalm != nil
}
