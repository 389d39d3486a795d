package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// handShape holds an open right hand relative to its middle finger MCP.
var handShape = [NumLandmarks]Point3D{
	Wrist:     {X: 0.00, Y: 0.14, Z: 0.0},
	ThumbCMC:  {X: 0.05, Y: 0.09, Z: 0.02},
	ThumbMCP:  {X: 0.12, Y: 0.04, Z: 0.03},
	ThumbIP:   {X: 0.18, Y: -0.01, Z: 0.03},
	ThumbTip:  {X: 0.23, Y: -0.06, Z: 0.03},
	IndexMCP:  {X: 0.05, Y: 0.02, Z: 0.0},
	IndexPIP:  {X: 0.07, Y: -0.11, Z: 0.0},
	IndexDIP:  {X: 0.08, Y: -0.21, Z: 0.0},
	IndexTip:  {X: 0.08, Y: -0.31, Z: 0.0},
	MiddleMCP: {X: 0.00, Y: 0.00, Z: 0.0},
	MiddlePIP: {X: 0.00, Y: -0.14, Z: 0.0},
	MiddleDIP: {X: 0.00, Y: -0.26, Z: 0.0},
	MiddleTip: {X: 0.00, Y: -0.38, Z: 0.0},
	RingMCP:   {X: -0.05, Y: 0.02, Z: 0.0},
	RingPIP:   {X: -0.07, Y: -0.11, Z: 0.0},
	RingDIP:   {X: -0.08, Y: -0.21, Z: 0.0},
	RingTip:   {X: -0.08, Y: -0.31, Z: 0.0},
	PinkyMCP:  {X: -0.10, Y: 0.04, Z: 0.0},
	PinkyPIP:  {X: -0.13, Y: -0.06, Z: 0.0},
	PinkyDIP:  {X: -0.15, Y: -0.16, Z: 0.0},
	PinkyTip:  {X: -0.16, Y: -0.24, Z: 0.0},
}

// OpenHandAt returns an open right hand whose middle finger MCP sits at (x, y).
// The thumb and index tips are far apart, so the hand is not pinching.
func OpenHandAt(x, y float64) HandLandmarks {
	hand := NewHandLandmarks("Right", 0.95)
	for i, p := range handShape {
		hand.Points[i] = Point3D{X: x + p.X, Y: y + p.Y, Z: p.Z}
	}
	return hand
}

// PinchAt returns a hand at (x, y) whose thumb and index tips are exactly
// spread apart horizontally in the image plane.
func PinchAt(x, y, spread float64) HandLandmarks {
	hand := OpenHandAt(x, y)
	tip := Point3D{X: x + 0.06, Y: y - 0.12, Z: 0.01}
	hand.Points[IndexTip] = tip
	hand.Points[ThumbTip] = Point3D{X: tip.X + spread, Y: tip.Y, Z: tip.Z}
	return hand
}
