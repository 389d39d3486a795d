// Package hud holds the display-side model handed to the presentation layer:
// system status, the cosmetic region readout and the published snapshot.
package hud

import (
	"math"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ayusman/holohud/internal/detector"
)

// MinFrameTime caps the reported frame rate at one frame per display refresh.
const MinFrameTime = 16 * time.Millisecond

// Status is the system readout shown in the HUD.
type Status struct {
	FPS                float64 `json:"fps"`
	MemoryMB           float64 `json:"memory_mb"`
	TrackingConfidence float64 `json:"tracking_confidence"`
	ActiveHands        int     `json:"active_hands"`
}

// MemoryString renders the memory estimate for humans, e.g. "12 MiB".
func (s Status) MemoryString() string {
	return humanize.IBytes(uint64(s.MemoryMB * 1024 * 1024))
}

// StatusMeter derives Status from each processed vision frame.
type StatusMeter struct {
	status  Status
	readMem func() uint64
}

// NewStatusMeter returns a meter reading heap usage from the Go runtime.
func NewStatusMeter() *StatusMeter {
	return &StatusMeter{readMem: heapInUse}
}

// Observe records a processed frame: how long interpretation took and the
// hands it saw. Confidence is the mean hand score and is kept from the last
// frame that had hands.
func (m *StatusMeter) Observe(processing time.Duration, hands []detector.HandLandmarks) Status {
	if processing < MinFrameTime {
		processing = MinFrameTime
	}
	m.status.FPS = float64(time.Second) / float64(processing)
	m.status.ActiveHands = len(hands)
	m.status.MemoryMB = math.Round(float64(m.readMem()) / (1024 * 1024))

	if len(hands) > 0 {
		var sum float64
		for _, h := range hands {
			sum += math.Max(h.Score, 0)
		}
		m.status.TrackingConfidence = sum / float64(len(hands))
	}

	return m.status
}

// Status returns the last observed status.
func (m *StatusMeter) Status() Status {
	return m.status
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}
