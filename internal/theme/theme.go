// Package theme provides the color theme for newterm's chrome and for the
// 16 ANSI colors programs draw with.
package theme

import (
	"fmt"
	"image/color"
	"io"
	"slices"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/log"
	tint "github.com/lrstanley/bubbletint/v2"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  = log.New(io.Discard)
)

// SetLogger sets the logger used for theme loading warnings.
func SetLogger(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l != nil {
		logger = l
	}
}

func getLogger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Initialize sets up the theme registry and selects themeName. Custom
// themes from the themes directory are registered first. An empty name
// disables theming, leaving the host terminal's own colors in place.
// Initialize may be called again when the configured theme changes.
func Initialize(themeName string) error {
	mu.Lock()
	defer mu.Unlock()

	if themeName == "" {
		enabled = false
		return nil
	}

	tint.NewDefaultRegistry()

	if themesDir, err := GetThemesDir(); err == nil {
		if _, err := LoadCustomThemes(themesDir); err != nil {
			logger.Warn("error loading custom themes", "err", err)
		}
	}

	enabled = true
	if !tint.SetTintID(themeName) {
		tint.SetTintID("default")
		return fmt.Errorf("unknown theme %q, using default", themeName)
	}
	return nil
}

// IsEnabled reports whether a theme is active.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Current returns the active theme, or nil when theming is disabled.
func Current() *tint.Tint {
	if !IsEnabled() {
		return nil
	}
	return tint.Current()
}

// Available returns the IDs of every registered theme, sorted.
func Available() []string {
	tint.NewDefaultRegistry()
	if themesDir, err := GetThemesDir(); err == nil {
		_, _ = LoadCustomThemes(themesDir)
	}
	ids := tint.TintIDs()
	slices.Sort(ids)
	return ids
}

// ANSIColor returns the theme's color for ANSI color index i (0-15), or
// nil when theming is disabled so the host terminal's palette applies.
func ANSIColor(i int) color.Color {
	t := Current()
	if t == nil || i < 0 || i > 15 {
		return nil
	}
	palette := [16]*tint.Color{
		t.Black, t.Red, t.Green, t.Yellow, t.Blue, t.Purple, t.Cyan, t.White,
		t.BrightBlack, t.BrightRed, t.BrightGreen, t.BrightYellow,
		t.BrightBlue, t.BrightPurple, t.BrightCyan, t.BrightWhite,
	}
	if palette[i] == nil {
		return nil
	}
	return palette[i]
}

// TerminalFg returns the default foreground, or nil without a theme.
func TerminalFg() color.Color {
	t := Current()
	if t == nil || t.Fg == nil {
		return nil
	}
	return t.Fg
}

// TerminalBg returns the default background, or nil without a theme.
func TerminalBg() color.Color {
	t := Current()
	if t == nil || t.Bg == nil {
		return nil
	}
	return t.Bg
}

// StatusBarBg returns the status bar background.
func StatusBarBg() color.Color {
	t := Current()
	if t == nil {
		return lipgloss.Color("#2a2a3e")
	}
	return t.BrightBlack
}

// StatusBarFg returns the status bar text color.
func StatusBarFg() color.Color {
	t := Current()
	if t == nil {
		return lipgloss.Color("#a0a0a8")
	}
	return t.Fg
}

// StatusBarAccent highlights the title and the prefix indicator.
func StatusBarAccent() color.Color {
	t := Current()
	if t == nil {
		return lipgloss.Color("#00ff00")
	}
	return t.BrightGreen
}

// BellFlash is the status bar background while the visual bell shows.
func BellFlash() color.Color {
	t := Current()
	if t == nil {
		return lipgloss.Color("#cdcd00")
	}
	return t.Yellow
}

// NotificationError returns the color for error messages.
func NotificationError() color.Color {
	t := Current()
	if t == nil {
		return lipgloss.Color("#cd0000")
	}
	return t.Red
}

// HelpKeyBadge returns the color for key badges in the help line.
func HelpKeyBadge() color.Color {
	return lipgloss.Color("5")
}

// HelpGray returns the color for help descriptions.
func HelpGray() color.Color {
	return lipgloss.Color("8")
}
