package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionDetector(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{name: "explicit threshold", threshold: 5.0, want: 5.0},
		{name: "low threshold", threshold: 0.5, want: 0.5},
		{name: "zero uses default", threshold: 0, want: DefaultMotionThreshold},
		{name: "negative uses default", threshold: -3, want: DefaultMotionThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(tt.threshold)
			defer md.Close()

			if got := md.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %f, want %f", got, tt.want)
			}
			if md.primed {
				t.Error("detector should not be primed before the first frame")
			}
		})
	}
}

func TestMotionDetector_NilFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	if m := md.Detect(nil); m.Detected || m.Changed != 0 {
		t.Errorf("Detect(nil) = %+v, want zero Motion", m)
	}
}

func TestMotionDetector_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	if m := md.Detect(&frame1); m.Detected || m.Changed != 0 {
		t.Errorf("first frame = %+v, want zero Motion", m)
	}
	if m := md.Detect(&frame2); m.Detected {
		t.Errorf("identical frames reported motion, changed = %f", m.Changed)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&black)
	m := md.Detect(&white)
	if !m.Detected {
		t.Errorf("black to white should detect motion, changed = %f", m.Changed)
	}
	if m.Changed < 50.0 {
		t.Errorf("changed = %f, want > 50 for black to white", m.Changed)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	if !md.primed {
		t.Fatal("detector should be primed after first Detect")
	}

	md.Reset()
	if md.primed {
		t.Error("detector should not be primed after Reset")
	}
	if !md.prev.Empty() {
		t.Error("baseline should be empty after Reset")
	}
}

func TestMotionDetector_ResolutionChangeReprimes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	small := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer small.Close()
	large := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer large.Close()
	large.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&small)
	if m := md.Detect(&large); m.Detected {
		t.Error("a resolution change should prime, not report motion")
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}
