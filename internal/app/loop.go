package app

import (
	"context"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/holohud/internal/hud"
	"github.com/ayusman/holohud/internal/interaction"
	"github.com/ayusman/holohud/internal/store"
)

// run is the only goroutine that touches interaction state. It selects over
// the vision ticker, whose interval follows the motion cadence, and the fixed
// render ticker.
func (a *App) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	vision := a.clock.Ticker(a.cadence.Interval())
	defer vision.Stop()

	renderTicker := a.clock.Ticker(time.Second / time.Duration(a.config.RenderFPS))
	defer renderTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-vision.C:
			if a.visionStep() {
				vision.Reset(a.cadence.Interval())
			}
		case <-renderTicker.C:
			a.renderStep()
		}
	}
}

// visionStep processes at most one new camera frame. It reports whether the
// cadence switched and the vision ticker needs a new interval.
func (a *App) visionStep() bool {
	if !a.enabled.Load() {
		a.pause()
		return false
	}
	a.paused = false

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.log.WithError(err).Debug("no frame")
		return false
	}
	defer frame.Close()

	if !a.gate.Admit(frame.Timestamp) {
		return false
	}
	a.frames.store(frame)

	now := a.clock.Now()
	switched := false
	if a.cadence.Observe(a.motion.Detect(frame.Mat), now) {
		switched = true
		a.camera.SetFPS(a.cadence.FPS())
		a.log.WithFields(logrus.Fields{
			"active": a.cadence.Active(),
			"fps":    a.cadence.FPS(),
		}).Debug("vision cadence changed")
	}

	hands, err := a.detector.Detect(frame.Mat)
	if err != nil {
		a.log.WithError(err).Warn("hand detection failed")
		return switched
	}

	res := a.interpreter.Interpret(hands, a.state)
	a.hands = slices.Clone(hands)
	a.meter.Observe(a.clock.Since(now), hands)
	a.setMode(res.Mode, now)

	a.publisher.Publish(a.snapshot(now))
	return switched
}

// pause runs once per disable: it drops the hand references so tracking
// resumes cleanly, and returns the mode to idle.
func (a *App) pause() {
	if a.paused {
		return
	}
	a.paused = true
	a.state.Reset()
	a.hands = nil
	a.setMode(interaction.ModeIdle, a.clock.Now())
}

func (a *App) setMode(mode interaction.Mode, at time.Time) {
	if mode == a.mode {
		return
	}
	a.log.WithFields(logrus.Fields{"from": a.mode, "to": mode}).Debug("mode changed")
	a.mode = mode
	a.rec.record(store.EventMode, mode.String(), at)
}

// renderStep eases the displayed globe one tick and refreshes the region
// readout.
func (a *App) renderStep() {
	now := a.clock.Now()
	globe := a.smoother.Step(a.state)

	if region, changed := a.regions.Lookup(globe.RotationY); changed {
		a.geo = a.roller.Roll(region)
		a.log.WithField("region", region).Debug("facing region changed")
		a.rec.record(store.EventRegion, region, now)
	}

	a.publisher.Publish(a.snapshot(now))
}

func (a *App) snapshot(now time.Time) hud.Snapshot {
	return hud.Snapshot{
		Mode:      a.mode,
		Target:    a.state.Rotation,
		Scale:     a.state.Scale,
		Globe:     a.smoother.Current(),
		Panel:     hud.Point{X: a.state.Panel.X, Y: a.state.Panel.Y},
		Screen:    a.config.Screen,
		Status:    a.meter.Status(),
		GeoIntel:  a.geo,
		Hands:     a.hands,
		Tracking:  a.enabled.Load(),
		UpdatedAt: now,
	}
}
