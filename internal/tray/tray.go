// Package tray provides the desktop system tray for holohud.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/holohud/internal/hud"
)

// Tray represents the system tray menu.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuMode   *systray.MenuItem
	menuRegion *systray.MenuItem
	menuStatus *systray.MenuItem

	shown labels
}

// labels are the read-only menu titles last rendered from a snapshot.
type labels struct {
	mode, region, status string
}

// New creates a Tray showing the given tracking state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
		shown: labels{
			mode:   modeLabel("IDLE"),
			region: regionLabel(hud.InitialGeoIntel().Region),
			status: statusLabel(hud.Status{}),
		},
	}
}

// OnToggle sets the callback invoked when tracking is toggled from the menu.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback invoked by "Open HUD...".
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback invoked by Quit before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until systray.Quit is called and
// must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

func (t *Tray) onReady() {
	systray.SetTitle("HoloHUD")
	systray.SetTooltip("HoloHUD hand tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle hand tracking")
	systray.AddSeparator()

	t.menuMode = systray.AddMenuItem(t.shown.mode, "Current interaction mode")
	t.menuMode.Disable()
	t.menuRegion = systray.AddMenuItem(t.shown.region, "Region facing the viewer")
	t.menuRegion.Disable()
	t.menuStatus = systray.AddMenuItem(t.shown.status, "Tracking status")
	t.menuStatus.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open HUD...", "Open the HUD in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit HoloHUD")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				systray.Quit()
				return
			}
		}
	}()
}

// handleToggle flips tracking, updates the menu and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// Watch refreshes the read-only items from a snapshot feed until it closes.
func (t *Tray) Watch(feed <-chan hud.Snapshot) {
	for snap := range feed {
		t.Update(snap)
	}
}

// Update renders one snapshot into the menu. Items are only retitled when
// their text changes.
func (t *Tray) Update(snap hud.Snapshot) {
	next := labels{
		mode:   modeLabel(snap.Mode.String()),
		region: regionLabel(snap.GeoIntel.Region),
		status: statusLabel(snap.Status),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if snap.Tracking != t.enabled {
		t.enabled = snap.Tracking
		if t.menuToggle != nil {
			t.menuToggle.SetTitle(toggleLabel(t.enabled))
		}
	}
	if next.mode != t.shown.mode && t.menuMode != nil {
		t.menuMode.SetTitle(next.mode)
	}
	if next.region != t.shown.region && t.menuRegion != nil {
		t.menuRegion.SetTitle(next.region)
	}
	if next.status != t.shown.status && t.menuStatus != nil {
		t.menuStatus.SetTitle(next.status)
	}
	t.shown = next
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func modeLabel(mode string) string {
	return "Mode: " + mode
}

func regionLabel(region string) string {
	return "Region: " + region
}

func statusLabel(s hud.Status) string {
	return fmt.Sprintf("%d hands · %.0f fps · %s", s.ActiveHands, s.FPS, s.MemoryString())
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
