package hud

import (
	"sync"
	"time"

	"github.com/ayusman/holohud/internal/detector"
	"github.com/ayusman/holohud/internal/interaction"
	"github.com/ayusman/holohud/internal/render"
)

// Point is a screen position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is a copy of everything the presentation layer draws for a frame.
type Snapshot struct {
	Mode      interaction.Mode         `json:"mode"`
	Target    interaction.Rotation     `json:"rotation_target"`
	Scale     float64                  `json:"scale_target"`
	Globe     render.Transform         `json:"globe"`
	Panel     Point                    `json:"panel"`
	Screen    interaction.Size         `json:"screen"`
	Status    Status                   `json:"status"`
	GeoIntel  GeoIntel                 `json:"geo_intel"`
	Hands     []detector.HandLandmarks `json:"hands"`
	Tracking  bool                     `json:"tracking"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Publisher holds the latest snapshot and fans it out to subscribers.
// Slow subscribers miss snapshots rather than block the publisher.
type Publisher struct {
	mu     sync.RWMutex
	latest Snapshot
	subs   map[chan Snapshot]struct{}
}

// NewPublisher creates a publisher seeded with an initial snapshot.
func NewPublisher(initial Snapshot) *Publisher {
	return &Publisher{
		latest: initial,
		subs:   make(map[chan Snapshot]struct{}),
	}
}

// Publish replaces the latest snapshot and offers it to every subscriber.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = s
	for ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the most recently published snapshot.
func (p *Publisher) Latest() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Subscribe returns a channel receiving future snapshots and a function that
// cancels the subscription.
func (p *Publisher) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
		})
	}
}
