// Package config provides configuration constants, preferences and their
// change propagation.
package config

import "time"

// =============================================================================
// Files
// =============================================================================

const (
	// AppName is used for XDG directories and the TERM_PROGRAM variable.
	AppName = "newterm"

	// ConfigRelPath is the config file path relative to the XDG config home.
	ConfigRelPath = AppName + "/config.toml"

	// LogRelPath is the log file path relative to the XDG state home.
	LogRelPath = AppName + "/newterm.log"
)

// =============================================================================
// Terminal Defaults
// =============================================================================

const (
	// DefaultCols and DefaultRows size a session before the display is laid
	// out, and the headless runner when no size is given.
	DefaultCols = 80
	DefaultRows = 24

	// DefaultScrollbackLines is the default scrollback capacity.
	DefaultScrollbackLines = 10000

	// MinScrollbackLines and MaxScrollbackLines bound scrollback_lines.
	MinScrollbackLines = 100
	MaxScrollbackLines = 1000000
)

// =============================================================================
// Refresh Rates
// =============================================================================

const (
	// DefaultRefreshRate is the default foreground rate on AC and battery.
	DefaultRefreshRate = 60

	// DefaultDisplayMaxRate is the assumed maximum display frequency.
	DefaultDisplayMaxRate = 120

	// MaxRefreshRate is the highest accepted rate.
	MaxRefreshRate = 240
)

// =============================================================================
// Timeouts and Intervals
// =============================================================================

const (
	// BellThrottle is the minimum spacing between bell notifications.
	BellThrottle = time.Second

	// CrashWindow is how soon after launch a clean exit counts as a crash.
	CrashWindow = 3 * time.Second

	// PowerPollInterval is how often the power source is sampled.
	PowerPollInterval = 10 * time.Second

	// WatchDebounce coalesces bursts of config file events.
	WatchDebounce = 100 * time.Millisecond

	// PrefixCommandTimeout is how long the prefix key stays armed.
	PrefixCommandTimeout = 2 * time.Second
)
