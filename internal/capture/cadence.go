package capture

import "time"

// Vision cadence defaults.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// Cadence picks the vision frame rate: idle until motion is seen, active
// while it continues, and idle again after IdleTimeout without motion.
type Cadence struct {
	idleFPS    int
	activeFPS  int
	timeout    time.Duration
	active     bool
	lastMotion time.Time
}

// NewCadence creates a Cadence. Non-positive arguments use the defaults.
func NewCadence(idleFPS, activeFPS int, timeout time.Duration) *Cadence {
	if idleFPS <= 0 {
		idleFPS = IdleFPS
	}
	if activeFPS <= 0 {
		activeFPS = ActiveFPS
	}
	if timeout <= 0 {
		timeout = IdleTimeout
	}
	return &Cadence{idleFPS: idleFPS, activeFPS: activeFPS, timeout: timeout}
}

// Observe feeds one motion result taken at now and reports whether the
// cadence switched between idle and active.
func (c *Cadence) Observe(m Motion, now time.Time) bool {
	if m.Detected {
		c.lastMotion = now
		if !c.active {
			c.active = true
			return true
		}
		return false
	}

	if c.active && now.Sub(c.lastMotion) > c.timeout {
		c.active = false
		return true
	}
	return false
}

// Active reports whether the cadence is in active mode.
func (c *Cadence) Active() bool {
	return c.active
}

// FPS returns the frame rate for the current mode.
func (c *Cadence) FPS() int {
	if c.active {
		return c.activeFPS
	}
	return c.idleFPS
}

// Interval returns the time between vision frames for the current mode.
func (c *Cadence) Interval() time.Duration {
	return time.Second / time.Duration(c.FPS())
}
