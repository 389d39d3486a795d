package app

import (
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"gocv.io/x/gocv"

	"github.com/ayusman/holohud/internal/capture"
	"github.com/ayusman/holohud/internal/detector"
	"github.com/ayusman/holohud/internal/hud"
	"github.com/ayusman/holohud/internal/interaction"
	"github.com/ayusman/holohud/internal/logging"
	"github.com/ayusman/holohud/internal/render"
	"github.com/ayusman/holohud/internal/store"
)

// fakeCamera hands out image-less frames so the loop can run without OpenCV.
type fakeCamera struct {
	mu     sync.Mutex
	open   bool
	hold   bool
	ts     float64
	reads  int
	fps    int
	closed int
}

func (c *fakeCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closed++
	return nil
}

func (c *fakeCamera) ReadFrame() (*capture.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, capture.ErrCameraNotOpen
	}
	c.reads++
	if !c.hold {
		c.ts += 1000.0 / capture.ActiveFPS
	}
	return &capture.Frame{Timestamp: c.ts}, nil
}

func (c *fakeCamera) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *fakeCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *fakeCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type testApp struct {
	*App
	clock    *clock.Mock
	camera   *fakeCamera
	detector *detector.MockDetector
}

func newTestApp(t *testing.T, st *store.Store) *testApp {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	a := New(Config{
		Screen:  interaction.Size{Width: 1000, Height: 800},
		Store:   st,
		Record:  st != nil,
		Clock:   mock,
		Logger:  logging.Discard(),
		Roller:  hud.NewRoller(rand.New(rand.NewPCG(1, 2))),
		IdleFPS: capture.IdleFPS,
	})

	cam := &fakeCamera{}
	det := detector.NewMockDetector()
	if err := a.SetCamera(cam); err != nil {
		t.Fatalf("SetCamera() error = %v", err)
	}
	if err := a.SetDetector(det); err != nil {
		t.Fatalf("SetDetector() error = %v", err)
	}

	return &testApp{App: a, clock: mock, camera: cam, detector: det}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNew_Defaults(t *testing.T) {
	ta := newTestApp(t, nil)

	if !ta.IsEnabled() {
		t.Error("tracking should be enabled by default")
	}
	if ta.Running() {
		t.Error("app should not be running before Start")
	}

	snap := ta.Snapshot()
	if snap.Mode != interaction.ModeIdle {
		t.Errorf("initial mode = %v, want IDLE", snap.Mode)
	}
	if snap.Scale != interaction.InitialScale || snap.Globe.Scale != interaction.InitialScale {
		t.Errorf("initial scale = %v/%v, want %v", snap.Scale, snap.Globe.Scale, interaction.InitialScale)
	}
	if !approx(snap.Panel.X, 700) || !approx(snap.Panel.Y, 160) {
		t.Errorf("initial panel = %+v, want {700 160}", snap.Panel)
	}
	if snap.GeoIntel != hud.InitialGeoIntel() {
		t.Errorf("initial geo intel = %+v", snap.GeoIntel)
	}
	if _, _, ok := ta.LatestFrame(); ok {
		t.Error("LatestFrame() should report no frame before the loop runs")
	}
}

func TestVisionStep_OpenHandScales(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()
	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.3, 0.5)})

	ta.visionStep()

	snap := ta.Snapshot()
	if snap.Mode != interaction.ModeScaling {
		t.Errorf("mode = %v, want SCALING", snap.Mode)
	}
	if snap.Scale <= interaction.InitialScale {
		t.Errorf("scale target = %v, want growth toward an open hand", snap.Scale)
	}
	if snap.Status.ActiveHands != 1 {
		t.Errorf("active hands = %d, want 1", snap.Status.ActiveHands)
	}
	if !approx(snap.Status.TrackingConfidence, 0.95) {
		t.Errorf("confidence = %v, want 0.95", snap.Status.TrackingConfidence)
	}
	if len(snap.Hands) != 1 {
		t.Errorf("snapshot hands = %d, want 1", len(snap.Hands))
	}
}

func TestVisionStep_Rotates(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()

	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.30, 0.50)})
	ta.visionStep()
	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.32, 0.49)})
	ta.visionStep()

	got := ta.Snapshot().Target
	if !approx(got.Y, 0.02*interaction.RotationSensitivity) || !approx(got.X, -0.01*interaction.RotationSensitivity) {
		t.Errorf("rotation target = %+v, want {-0.05 0.1}", got)
	}
}

func TestVisionStep_FrameGateDropsRepeats(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()
	ta.camera.hold = true
	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.3, 0.5)})

	ta.visionStep()
	scale := ta.state.Scale
	ta.visionStep()
	ta.visionStep()

	if ta.camera.Reads() != 3 {
		t.Errorf("camera reads = %d, want 3", ta.camera.Reads())
	}
	if ta.detector.Calls() != 1 {
		t.Errorf("detector calls = %d, want 1 for a repeated frame", ta.detector.Calls())
	}
	if ta.state.Scale != scale {
		t.Errorf("repeated frame changed scale %v -> %v", scale, ta.state.Scale)
	}
}

func TestVisionStep_Disabled(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()
	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.3, 0.5)})

	ta.visionStep()
	if !ta.state.Tracking() {
		t.Fatal("expected a palm reference after a globe hand")
	}

	ta.SetEnabled(false)
	ta.visionStep()

	if ta.camera.Reads() != 1 {
		t.Errorf("camera reads = %d, want 1 while disabled", ta.camera.Reads())
	}
	if ta.state.Tracking() {
		t.Error("disabling should drop the palm reference")
	}
	if ta.mode != interaction.ModeIdle {
		t.Errorf("mode = %v, want IDLE while disabled", ta.mode)
	}

	ta.SetEnabled(true)
	ta.visionStep()
	if ta.camera.Reads() != 2 {
		t.Errorf("camera reads = %d, want 2 after re-enabling", ta.camera.Reads())
	}
}

func TestVisionStep_DetectorError(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()
	ta.detector.SetError(errors.New("service gone"))

	ta.visionStep()

	if ta.mode != interaction.ModeIdle {
		t.Errorf("mode = %v, want IDLE after a failed detection", ta.mode)
	}
	if ta.state.Scale != interaction.InitialScale {
		t.Errorf("scale = %v, want untouched", ta.state.Scale)
	}
}

func TestVisionStep_NoHandsResetsReference(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()

	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.3, 0.5)})
	ta.visionStep()
	ta.detector.SetHands(nil)
	ta.visionStep()

	if ta.state.Tracking() {
		t.Error("a frame without hands should drop the palm reference")
	}
	snap := ta.Snapshot()
	if snap.Mode != interaction.ModeIdle || snap.Status.ActiveHands != 0 {
		t.Errorf("mode=%v hands=%d, want IDLE with no hands", snap.Mode, snap.Status.ActiveHands)
	}
	if !approx(snap.Status.TrackingConfidence, 0.95) {
		t.Errorf("confidence = %v, want the last seen value", snap.Status.TrackingConfidence)
	}
}

func TestVisionStep_Drag(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.camera.Open()
	ta.detector.SetHands([]detector.HandLandmarks{detector.PinchAt(0.75, 0.5, 0.02)})

	ta.visionStep()

	snap := ta.Snapshot()
	if snap.Mode != interaction.ModeDragging {
		t.Fatalf("mode = %v, want DRAGGING", snap.Mode)
	}
	// Palm at (0.75, 0.5) mirrors to (250, 400); 15% of the way from (700, 160).
	want := hud.Point{X: 700 + (250-700)*interaction.DragSmoothing, Y: 160 + (400-160)*interaction.DragSmoothing}
	if !approx(snap.Panel.X, want.X) || !approx(snap.Panel.Y, want.Y) {
		t.Errorf("panel = %+v, want %+v", snap.Panel, want)
	}
}

func TestRenderStep(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.state.Rotation = interaction.Rotation{X: 1, Y: 2}
	ta.state.Scale = 2.5

	ta.renderStep()

	globe := ta.Snapshot().Globe
	want := render.Transform{RotationX: 0.1, RotationY: 0.2, Scale: 1.5 + 0.1}
	if !approx(globe.RotationX, want.RotationX) || !approx(globe.RotationY, want.RotationY) || !approx(globe.Scale, want.Scale) {
		t.Errorf("globe = %+v, want %+v", globe, want)
	}
}

func TestRenderStep_Region(t *testing.T) {
	ta := newTestApp(t, nil)

	ta.renderStep()
	geo := ta.Snapshot().GeoIntel
	if geo.Region != "ATLANTIC" {
		t.Fatalf("region = %q, want ATLANTIC at rest", geo.Region)
	}
	if geo.Population == "UNK" {
		t.Error("region change should re-roll the panel")
	}

	ta.renderStep()
	if again := ta.Snapshot().GeoIntel; again != geo {
		t.Errorf("no region change should keep the panel: %+v -> %+v", geo, again)
	}

	// Facing 120 degrees of longitude is ASIA; globe rotation runs opposite.
	ta.smoother = render.NewSmoother(render.Transform{RotationY: -120 * math.Pi / 180, Scale: 1.5})
	ta.state.Rotation.Y = -120 * math.Pi / 180
	ta.renderStep()
	if got := ta.Snapshot().GeoIntel.Region; got != "ASIA" {
		t.Errorf("region = %q, want ASIA", got)
	}
}

func TestApp_SwapWhileRunning(t *testing.T) {
	ta := newTestApp(t, nil)
	if err := ta.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ta.Stop()

	if err := ta.SetDetector(detector.NewMockDetector()); !errors.Is(err, ErrRunning) {
		t.Errorf("SetDetector() error = %v, want ErrRunning", err)
	}
	if err := ta.SetCamera(&fakeCamera{}); !errors.Is(err, ErrRunning) {
		t.Errorf("SetCamera() error = %v, want ErrRunning", err)
	}
}

func TestApp_StartStop(t *testing.T) {
	ta := newTestApp(t, nil)

	if err := ta.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := ta.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !ta.Running() || !ta.camera.IsOpen() {
		t.Fatal("app and camera should be running after Start")
	}
	if ta.camera.FPS() != capture.IdleFPS {
		t.Errorf("camera fps = %d, want idle %d", ta.camera.FPS(), capture.IdleFPS)
	}

	ta.Stop()
	if ta.Running() || ta.camera.IsOpen() {
		t.Error("app and camera should be stopped after Stop")
	}
	if ta.SessionID() != "" {
		t.Error("no session should be recorded without a store")
	}
}

// waitFor advances the mock clock until cond holds.
func waitFor(t *testing.T, ta *testApp, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		ta.clock.Add(50 * time.Millisecond)
	}
}

func TestApp_Loop(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.3, 0.5)})

	feed, cancel := ta.Subscribe()
	defer cancel()

	if err := ta.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ta.Stop()

	waitFor(t, ta, func() bool {
		s := ta.Snapshot()
		return s.Mode == interaction.ModeScaling && s.Globe.Scale > interaction.InitialScale
	})

	select {
	case s := <-feed:
		if s.Screen != (interaction.Size{Width: 1000, Height: 800}) {
			t.Errorf("snapshot screen = %+v", s.Screen)
		}
	case <-time.After(time.Second):
		t.Error("subscriber received no snapshot")
	}
}

func TestApp_RecordsSession(t *testing.T) {
	st := newTestStore(t)
	ta := newTestApp(t, st)
	ta.detector.SetHands([]detector.HandLandmarks{detector.OpenHandAt(0.3, 0.5)})

	if err := ta.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	id := ta.SessionID()
	if id == "" {
		t.Fatal("Start() should open a session")
	}

	waitFor(t, ta, func() bool {
		s := ta.Snapshot()
		return s.Mode == interaction.ModeScaling && s.GeoIntel.Region == "ATLANTIC"
	})
	ta.Stop()

	sess, err := st.Sessions().GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("Stop() should end the session")
	}
	if sess.ScreenWidth != 1000 || sess.ScreenHeight != 800 {
		t.Errorf("session screen = %vx%v", sess.ScreenWidth, sess.ScreenHeight)
	}

	events, err := st.Events().ListBySession(id)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	seen := map[string]bool{}
	for _, e := range events {
		seen[string(e.Kind)+":"+e.Value] = true
	}
	for _, want := range []string{"mode:SCALING", "region:ATLANTIC"} {
		if !seen[want] {
			t.Errorf("missing event %s in %v", want, seen)
		}
	}
}

func TestApp_TrackingPersisted(t *testing.T) {
	st := newTestStore(t)

	ta := newTestApp(t, st)
	ta.SetEnabled(false)

	again := newTestApp(t, st)
	if again.IsEnabled() {
		t.Error("tracking toggle should survive a restart")
	}
	if again.Snapshot().Tracking {
		t.Error("initial snapshot should report tracking off")
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	st := newTestStore(t)
	rec := newRecorder(st, logging.Discard())
	rec.session.ID = "unstarted"

	// No writer is running, so the queue fills and further events drop.
	for i := 0; i < RecordQueueSize+10; i++ {
		rec.record(store.EventMode, "IDLE", time.Now())
	}
	if len(rec.queue) != RecordQueueSize {
		t.Errorf("queue length = %d, want %d", len(rec.queue), RecordQueueSize)
	}

	var nilRec *recorder
	nilRec.record(store.EventMode, "IDLE", time.Now())
}

func TestVisionStep_CameraFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	ta := newTestApp(t, nil)
	cam := capture.NewMockCamera([]*gocv.Mat{&black, &white}, true)
	if err := ta.SetCamera(cam); err != nil {
		t.Fatal(err)
	}
	cam.Open()

	if ta.visionStep() {
		t.Error("the first frame only primes motion detection")
	}
	jpeg, ts, ok := ta.LatestFrame()
	if !ok || len(jpeg) == 0 {
		t.Fatal("LatestFrame() should hold the admitted frame")
	}
	if ts != 0 {
		t.Errorf("first frame timestamp = %v, want 0", ts)
	}

	if !ta.visionStep() {
		t.Error("black to white should switch the cadence to active")
	}
	if !ta.cadence.Active() || cam.FPS() != capture.ActiveFPS {
		t.Errorf("cadence active=%v camera fps=%d, want active at %d", ta.cadence.Active(), cam.FPS(), capture.ActiveFPS)
	}
}
