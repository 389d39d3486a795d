package hud

import (
	"fmt"
	"math/rand/v2"

	"github.com/ayusman/holohud/internal/render"
)

// Activity is the cosmetic activity level shown for a region.
type Activity string

const (
	ActivityLow      Activity = "LOW"
	ActivityModerate Activity = "MODERATE"
	ActivityHigh     Activity = "HIGH"
	ActivityCritical Activity = "CRITICAL"
)

// GeoIntel is the target region panel. Everything but the region name is
// decoration, re-rolled whenever the region changes.
type GeoIntel struct {
	Region     string   `json:"region"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Population string   `json:"population"`
	Activity   Activity `json:"activity"`
}

// InitialGeoIntel is shown until the globe faces its first region.
func InitialGeoIntel() GeoIntel {
	return GeoIntel{
		Region:     render.Scanning,
		Lat:        34.0522,
		Lon:        118.2437,
		Population: "UNK",
		Activity:   ActivityLow,
	}
}

// Roller re-rolls the decorative GeoIntel fields.
type Roller struct {
	rng *rand.Rand
}

// NewRoller creates a Roller drawing from rng. A nil rng uses a randomly
// seeded source.
func NewRoller(rng *rand.Rand) *Roller {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Roller{rng: rng}
}

// Roll returns the panel for a newly faced region.
func (r *Roller) Roll(region string) GeoIntel {
	activity := ActivityModerate
	if r.rng.Float64() > 0.7 {
		activity = ActivityHigh
	}
	return GeoIntel{
		Region:     region,
		Population: fmt.Sprintf("%.1fM", r.rng.Float64()*1000+100),
		Activity:   activity,
		Lat:        r.rng.Float64()*180 - 90,
		Lon:        r.rng.Float64()*360 - 180,
	}
}
