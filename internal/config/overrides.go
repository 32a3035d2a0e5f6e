package config

// Overrides contains CLI flag values that can override user config.
// Zero values indicate the flag was not set and should use the user config default.
type Overrides struct {
	// Shell overrides shell.preferred_shell
	Shell string

	// RefreshRate overrides both refresh rates (0 means use config)
	RefreshRate int

	// InitialCommand overrides shell.initial_command
	InitialCommand string

	// ThemeName is the theme to load
	ThemeName string

	// ScrollbackLines overrides the scrollback buffer size (0 means use config)
	ScrollbackLines int

	// Debug forces the debug log level
	Debug bool
}

// ApplyOverrides returns a copy of prefs with the CLI flags applied. A nil
// prefs starts from the defaults.
func ApplyOverrides(overrides Overrides, prefs *Preferences) Preferences {
	if prefs == nil {
		prefs = DefaultPreferences()
	}
	out := prefs.Clone()

	if overrides.Shell != "" {
		out.Shell.PreferredShell = overrides.Shell
	}

	if overrides.RefreshRate > 0 {
		rate := min(overrides.RefreshRate, MaxRefreshRate)
		out.Refresh.RefreshRateOnAC = rate
		out.Refresh.RefreshRateOnBattery = rate
	}

	if overrides.InitialCommand != "" {
		out.Shell.InitialCommand = overrides.InitialCommand
	}

	if overrides.ThemeName != "" {
		out.Appearance.Theme = overrides.ThemeName
	}

	// Scrollback Lines - CLI flag takes precedence, clamped to the valid range
	if overrides.ScrollbackLines > 0 {
		out.Shell.ScrollbackLines = min(max(overrides.ScrollbackLines, MinScrollbackLines), MaxScrollbackLines)
	}

	if overrides.Debug {
		out.Log.Level = "debug"
	}

	return out
}

// Clone returns a deep copy.
func (p *Preferences) Clone() Preferences {
	out := *p
	if p.Refresh.ReduceRefreshRateInLPM != nil {
		out.Refresh.ReduceRefreshRateInLPM = boolPtr(*p.Refresh.ReduceRefreshRateInLPM)
	}
	if p.Bell.Visual != nil {
		out.Bell.Visual = boolPtr(*p.Bell.Visual)
	}
	if p.Bell.Sound != nil {
		out.Bell.Sound = boolPtr(*p.Bell.Sound)
	}
	if p.Keys.Actions != nil {
		out.Keys.Actions = make(map[string]string, len(p.Keys.Actions))
		for k, v := range p.Keys.Actions {
			out.Keys.Actions[k] = v
		}
	}
	return out
}
