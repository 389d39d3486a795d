// Package app runs the holohud loop: camera frames feed the hand detector and
// interpreter at the vision cadence, and the globe transform is eased toward
// the interpreter's targets at the render rate.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/holohud/internal/capture"
	"github.com/ayusman/holohud/internal/detector"
	"github.com/ayusman/holohud/internal/hud"
	"github.com/ayusman/holohud/internal/interaction"
	"github.com/ayusman/holohud/internal/render"
	"github.com/ayusman/holohud/internal/store"
)

// DefaultRenderFPS is the render rate when none is configured.
const DefaultRenderFPS = 60

// ErrRunning is returned when a component is swapped while the loop runs.
var ErrRunning = errors.New("app is running")

// Config holds configuration options for the application.
type Config struct {
	Screen interaction.Size
	Camera capture.Options

	IdleFPS         int
	ActiveFPS       int
	IdleTimeout     time.Duration
	MotionThreshold float64
	RenderFPS       int

	Detector detector.Config

	// Store enables the session log and persists the tracking toggle. Optional.
	Store *store.Store
	// Record writes mode and region transitions to Store.
	Record bool

	Clock  clock.Clock
	Logger logrus.FieldLogger
	Roller *hud.Roller
}

// App owns the interaction loop. Everything the loop mutates is touched only
// by the loop goroutine; other goroutines read published snapshots.
type App struct {
	config Config
	clock  clock.Clock
	log    logrus.FieldLogger

	mu       sync.Mutex
	camera   capture.Camera
	motion   *capture.MotionDetector
	detector detector.Detector
	cancel   context.CancelFunc
	done     chan struct{}
	rec      *recorder

	enabled   atomic.Bool
	publisher *hud.Publisher
	frames    *frameBuffer

	// Loop-owned.
	state       *interaction.State
	interpreter *interaction.Interpreter
	smoother    *render.Smoother
	regions     *render.Regions
	meter       *hud.StatusMeter
	roller      *hud.Roller
	cadence     *capture.Cadence
	gate        capture.FrameGate
	mode        interaction.Mode
	hands       []detector.HandLandmarks
	geo         hud.GeoIntel
	paused      bool
}

// New creates an App. The MediaPipe detector is used when its service script
// can be found, otherwise a MockDetector that never sees hands.
func New(config Config) *App {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.Roller == nil {
		config.Roller = hud.NewRoller(nil)
	}
	if config.RenderFPS <= 0 {
		config.RenderFPS = DefaultRenderFPS
	}

	a := &App{
		config:    config,
		clock:     config.Clock,
		log:       config.Logger.WithField("component", "app"),
		camera:    capture.NewCamera(config.Camera),
		motion:    capture.NewMotionDetector(config.MotionThreshold),
		frames:    newFrameBuffer(),
		roller:    config.Roller,
		meter:     hud.NewStatusMeter(),
		regions:   render.NewRegions(render.DefaultBands),
		geo:       hud.InitialGeoIntel(),
		cadence:   capture.NewCadence(config.IdleFPS, config.ActiveFPS, config.IdleTimeout),
		publisher: hud.NewPublisher(hud.Snapshot{}),
	}
	a.resetInteraction()

	if mp, err := detector.NewMediaPipeDetector(config.Detector, config.Logger); err == nil {
		a.detector = mp
		a.log.Info("using MediaPipe hand detection")
	} else {
		a.log.WithError(err).Warn("MediaPipe not available, using mock detector")
		a.detector = detector.NewMockDetector()
	}

	enabled := true
	if config.Store != nil {
		enabled = config.Store.Settings().Bool(store.SettingTrackingEnabled, true)
	}
	a.enabled.Store(enabled)

	a.publisher.Publish(a.snapshot(a.clock.Now()))
	return a
}

func (a *App) resetInteraction() {
	a.state = interaction.NewState(a.config.Screen)
	a.interpreter = interaction.NewInterpreter(a.config.Screen)
	a.smoother = render.NewSmoother(render.Transform{Scale: a.state.Scale})
	a.mode = interaction.ModeIdle
	a.hands = nil
}

// SetEnabled turns hand tracking on or off. The choice is persisted when a
// store is configured.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	a.log.WithField("enabled", enabled).Info("tracking toggled")

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(store.SettingTrackingEnabled, enabled); err != nil {
			a.log.WithError(err).Warn("failed to persist tracking setting")
		}
	}
}

// IsEnabled returns whether hand tracking is on.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// SetDetector replaces the hand detector. It fails while the loop runs.
func (a *App) SetDetector(d detector.Detector) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return ErrRunning
	}
	a.detector = d
	return nil
}

// SetCamera replaces the frame source. It fails while the loop runs.
func (a *App) SetCamera(c capture.Camera) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return ErrRunning
	}
	a.camera = c
	return nil
}

// Start opens the camera, begins a recorded session when configured and
// launches the loop. Starting a running App is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.cadence = capture.NewCadence(a.config.IdleFPS, a.config.ActiveFPS, a.config.IdleTimeout)
	a.camera.SetFPS(a.cadence.FPS())
	a.gate.Reset()

	if a.config.Store != nil && a.config.Record {
		rec := newRecorder(a.config.Store, a.log)
		if err := rec.start(a.config.Screen, a.clock.Now()); err != nil {
			a.log.WithError(err).Warn("session recording disabled")
		} else {
			a.rec = rec
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(ctx, a.done)

	a.log.WithFields(logrus.Fields{
		"vision_fps": a.cadence.FPS(),
		"render_fps": a.config.RenderFPS,
	}).Info("loop started")
	return nil
}

// Stop halts the loop and releases the camera, motion detector and hand
// detector. It waits for the loop goroutine to return.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
		a.done = nil
	}

	if a.rec != nil {
		a.rec.stop(a.clock.Now())
		a.rec = nil
	}

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Warn("error closing camera")
	}
	a.motion.Close()
	a.frames.clear()

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.log.WithError(err).Warn("error closing detector")
		}
	}

	a.log.Info("loop stopped")
}

// Running reports whether the loop goroutine is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// Snapshot returns the most recently published HUD snapshot.
func (a *App) Snapshot() hud.Snapshot {
	return a.publisher.Latest()
}

// Subscribe returns a feed of HUD snapshots and its cancel function.
func (a *App) Subscribe() (<-chan hud.Snapshot, func()) {
	return a.publisher.Subscribe()
}

// LatestFrame returns a JPEG of the last admitted camera frame and its video
// timestamp. ok is false until a frame has been seen.
func (a *App) LatestFrame() (jpeg []byte, timestamp float64, ok bool) {
	return a.frames.latest()
}

// SessionID returns the ID of the session being recorded, or "".
func (a *App) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rec == nil {
		return ""
	}
	return a.rec.sessionID()
}
