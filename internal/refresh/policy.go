// Package refresh selects the session refresh rate and drives the periodic
// clock that feeds the terminal emulator.
package refresh

// =============================================================================
// Rates
// =============================================================================

const (
	// DefaultRate is the configured rate used when preferences give none.
	DefaultRate = 60

	// DefaultDisplayMax is the assumed maximum display frequency.
	DefaultDisplayMax = 120

	// LowPowerRate is used while low-power mode is active and the user opted
	// into reducing the refresh rate.
	LowPowerRate = 15

	// BackgroundMultiWindowRate is used while the app is in the background
	// but other windows may still show the session.
	BackgroundMultiWindowRate = 10

	// MinimumRate keeps the dirty bit alive for sessions nobody is looking at.
	MinimumRate = 1
)

// Inputs are the facts the rate policy depends on.
type Inputs struct {
	// TabVisible is false while the session's tab is hidden.
	TabVisible bool
	// AppForeground is false while the whole application is backgrounded.
	AppForeground bool
	// MultiWindow reports whether the application can show several windows.
	MultiWindow bool

	// LowPower is true while the system is in low-power mode.
	LowPower bool
	// OnBattery is true while running from battery.
	OnBattery bool

	// ReduceInLowPower is the user preference to drop to LowPowerRate.
	ReduceInLowPower bool
	// RateOnAC and RateOnBattery are the configured foreground rates.
	RateOnAC      int
	RateOnBattery int
	// DisplayMax is the display's maximum frequency. Zero means unknown.
	DisplayMax int
}

// Select returns the tick frequency in Hz for the given inputs.
func Select(in Inputs) int {
	if !in.AppForeground {
		if in.MultiWindow && in.TabVisible {
			return BackgroundMultiWindowRate
		}
		return MinimumRate
	}
	if !in.TabVisible {
		return MinimumRate
	}
	if in.LowPower && in.ReduceInLowPower {
		return LowPowerRate
	}

	rate := in.RateOnAC
	if in.OnBattery {
		rate = in.RateOnBattery
	}
	if rate <= 0 {
		rate = DefaultRate
	}
	if in.DisplayMax > 0 {
		rate = min(rate, in.DisplayMax)
	}
	return max(rate, MinimumRate)
}
