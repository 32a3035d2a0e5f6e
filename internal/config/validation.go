package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes one problem in the config file.
type ValidationIssue struct {
	Field   string // section, e.g. "refresh"
	Key     string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Field, v.Key, v.Message)
}

// ValidationResult collects errors, which reject the file, and warnings,
// which are corrected with defaults or clamping.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// HasErrors reports whether any errors were found.
func (r *ValidationResult) HasErrors() bool { return r != nil && len(r.Errors) > 0 }

// HasWarnings reports whether any warnings were found.
func (r *ValidationResult) HasWarnings() bool { return r != nil && len(r.Warnings) > 0 }

func (r *ValidationResult) errorf(field, key, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationIssue{field, key, fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(field, key, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationIssue{field, key, fmt.Sprintf(format, args...)})
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks cfg as read from disk, before defaults are filled in.
func Validate(cfg *Preferences) *ValidationResult {
	r := &ValidationResult{}

	rates := []struct {
		key   string
		value int
	}{
		{"refresh_rate_on_ac", cfg.Refresh.RefreshRateOnAC},
		{"refresh_rate_on_battery", cfg.Refresh.RefreshRateOnBattery},
		{"display_max_rate", cfg.Refresh.DisplayMaxRate},
	}
	for _, rate := range rates {
		switch {
		case rate.value < 0:
			r.errorf("refresh", rate.key, "must not be negative, got %d", rate.value)
		case rate.value > MaxRefreshRate && rate.key != "display_max_rate":
			r.warnf("refresh", rate.key, "%d exceeds %d, clamping", rate.value, MaxRefreshRate)
		}
	}

	switch lines := cfg.Shell.ScrollbackLines; {
	case lines < 0:
		r.errorf("shell", "scrollback_lines", "must not be negative, got %d", lines)
	case lines > 0 && lines < MinScrollbackLines:
		r.warnf("shell", "scrollback_lines", "%d is below %d, clamping", lines, MinScrollbackLines)
	case lines > MaxScrollbackLines:
		r.warnf("shell", "scrollback_lines", "%d exceeds %d, clamping", lines, MaxScrollbackLines)
	}

	if level := cfg.Log.Level; level != "" && !slices.Contains(validLogLevels, strings.ToLower(level)) {
		r.errorf("log", "level", "unknown level %q (want one of %s)", level, strings.Join(validLogLevels, ", "))
	}

	known := defaultKeyActions()
	seen := map[string]string{}
	for _, action := range sortedKeys(cfg.Keys.Actions) {
		key := cfg.Keys.Actions[action]
		if _, ok := known[action]; !ok {
			r.warnf("keys", action, "unknown action, ignoring")
			continue
		}
		if other, dup := seen[strings.ToLower(key)]; dup {
			r.errorf("keys", action, "key %q is already bound to %s", key, other)
			continue
		}
		seen[strings.ToLower(key)] = action
	}

	return r
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
