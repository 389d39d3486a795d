package render

import "math"

// Band is a named span of facing longitude, start inclusive, end exclusive.
type Band struct {
	Name  string
	Start float64
	End   float64
}

// DefaultBands is the facing-region table. ATLANTIC straddles the 360/0 wrap
// and so appears twice; the lookup is first match.
var DefaultBands = []Band{
	{Name: "ASIA", Start: 60, End: 150},
	{Name: "PACIFIC", Start: 150, End: 230},
	{Name: "AMERICAS", Start: 230, End: 330},
	{Name: "ATLANTIC", Start: 330, End: 360},
	{Name: "ATLANTIC", Start: 0, End: 30},
	{Name: "EMEA", Start: 30, End: 60},
}

// Scanning is the region shown before the globe has faced any band.
const Scanning = "SCANNING..."

// FacingLongitude converts a globe Y rotation in radians to the longitude
// facing the viewer, in [0, 360). Globe rotation runs opposite to longitude.
func FacingLongitude(rotY float64) float64 {
	deg := math.Mod(rotY*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return math.Mod(360-deg, 360)
}

// Regions names the facing region and remembers the last match.
type Regions struct {
	bands   []Band
	current string
}

// NewRegions creates a classifier over bands, showing Scanning until the
// first match.
func NewRegions(bands []Band) *Regions {
	return &Regions{bands: bands, current: Scanning}
}

// Lookup classifies rotY and returns the region name and whether it differs
// from the previous one. Without a matching band the previous name stays.
func (r *Regions) Lookup(rotY float64) (string, bool) {
	lon := FacingLongitude(rotY)
	for _, b := range r.bands {
		if lon >= b.Start && lon < b.End {
			changed := b.Name != r.current
			r.current = b.Name
			return r.current, changed
		}
	}
	return r.current, false
}

// Current returns the last region name.
func (r *Regions) Current() string {
	return r.current
}
