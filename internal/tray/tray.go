// Package tray provides the system tray interface for the Mudra practice engine.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(practicing bool)
	onOpen     func()
	onQuit     func()
	practicing bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastSign *systray.MenuItem
	menuStatus   *systray.MenuItem
}

// New creates a new Tray instance. Practice starts disabled until the host
// begins a session.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback invoked when practice is toggled.
func (t *Tray) OnToggle(fn func(practicing bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback invoked when the open menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback invoked when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Sign Language Practice")

	t.menuToggle = systray.AddMenuItem("▶ Start Practice", "Toggle the practice session")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Status: idle", "Session state")
	t.menuStatus.Disable()
	t.menuLastSign = systray.AddMenuItem("Last sign: none", "Last recognized sign")
	t.menuLastSign.Disable()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Practice View...", "Open the practice view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.practicing = !t.practicing
	practicing := t.practicing

	if practicing {
		t.menuToggle.SetTitle("■ Stop Practice")
	} else {
		t.menuToggle.SetTitle("▶ Start Practice")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(practicing)
	}
}

// handleOpen handles the open menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastSign updates the last recognized sign in the menu.
func (t *Tray) SetLastSign(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastSign != nil {
		if name == "" {
			t.menuLastSign.SetTitle("Last sign: none")
		} else {
			t.menuLastSign.SetTitle("Last sign: " + name)
		}
	}
}

// SetStatus updates the session state display in the menu.
func (t *Tray) SetStatus(state string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle("Status: " + state)
	}
}

// SetPracticing updates the toggle display to reflect externally driven
// session changes.
func (t *Tray) SetPracticing(practicing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.practicing = practicing
	if t.menuToggle == nil {
		return
	}
	if practicing {
		t.menuToggle.SetTitle("■ Stop Practice")
	} else {
		t.menuToggle.SetTitle("▶ Start Practice")
	}
}

// IsPracticing returns whether practice is currently toggled on.
func (t *Tray) IsPracticing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.practicing
}
