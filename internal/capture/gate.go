package capture

// FrameGate lets each video frame through once. A source polled faster than
// it produces frames hands back the same timestamp; those repeats are dropped.
type FrameGate struct {
	last float64
	seen bool
}

// Admit reports whether a frame with this timestamp should be processed.
func (g *FrameGate) Admit(timestamp float64) bool {
	if g.seen && timestamp == g.last {
		return false
	}
	g.last = timestamp
	g.seen = true
	return true
}

// Reset forgets the last timestamp, e.g. after the camera is reopened.
func (g *FrameGate) Reset() {
	g.seen = false
}
