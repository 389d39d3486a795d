package app

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/holohud/internal/capture"
)

// frameBuffer keeps the last admitted camera frame as JPEG for the MJPEG
// stream, so viewers never read the camera themselves.
type frameBuffer struct {
	mu        sync.RWMutex
	jpeg      []byte
	timestamp float64
	ok        bool
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{}
}

func (b *frameBuffer) store(f *capture.Frame) {
	if f == nil || f.Mat == nil || f.Mat.Empty() {
		return
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *f.Mat)
	if err != nil {
		return
	}
	defer buf.Close()
	data := append([]byte(nil), buf.GetBytes()...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.jpeg = data
	b.timestamp = f.Timestamp
	b.ok = true
}

func (b *frameBuffer) latest() ([]byte, float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jpeg, b.timestamp, b.ok
}

func (b *frameBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jpeg = nil
	b.ok = false
}
