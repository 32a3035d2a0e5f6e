package newterm

import (
	"testing"

	"github.com/Gaurav-Gosain/newterm/internal/config"
)

func TestNew_OptionsOverridePreferences(t *testing.T) {
	base := DefaultPreferences()
	base.Shell.InitialCommand = "echo base"
	base.Appearance.Theme = "nord"

	term := New(
		WithPreferences(base),
		WithTheme("dracula"),
		WithRefreshRate(30),
		WithInitialCommand("echo hi"),
	)
	prefs := term.Preferences()

	if prefs.Appearance.Theme != "dracula" {
		t.Errorf("expected theme dracula, got %q", prefs.Appearance.Theme)
	}
	if prefs.Refresh.RefreshRateOnAC != 30 || prefs.Refresh.RefreshRateOnBattery != 30 {
		t.Errorf("expected both refresh rates 30, got %d/%d",
			prefs.Refresh.RefreshRateOnAC, prefs.Refresh.RefreshRateOnBattery)
	}
	if prefs.Shell.InitialCommand != "echo hi" {
		t.Errorf("expected initial command override, got %q", prefs.Shell.InitialCommand)
	}
	if base.Appearance.Theme != "nord" {
		t.Error("options must not modify the caller's preferences")
	}
}

func TestNew_KeepsPreferencesWithoutOverrides(t *testing.T) {
	base := DefaultPreferences()
	base.Shell.ScrollbackLines = 500

	prefs := New(WithPreferences(base)).Preferences()
	if prefs.Shell.ScrollbackLines != 500 {
		t.Errorf("expected scrollback 500, got %d", prefs.Shell.ScrollbackLines)
	}
	if prefs.Refresh.RefreshRateOnAC != config.DefaultRefreshRate {
		t.Errorf("expected default refresh rate, got %d", prefs.Refresh.RefreshRateOnAC)
	}
}

func TestWithScrollbackLines_Clamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{10, config.MinScrollbackLines},
		{5000, 5000},
		{config.MaxScrollbackLines + 1, config.MaxScrollbackLines},
	}
	for _, tt := range tests {
		var o Options
		WithScrollbackLines(tt.in)(&o)
		if o.ScrollbackLines != tt.want {
			t.Errorf("WithScrollbackLines(%d) = %d, want %d", tt.in, o.ScrollbackLines, tt.want)
		}
	}
}

func TestWithShell_SetsArgs(t *testing.T) {
	var o Options
	WithShell("bash", "-l")(&o)
	WithEnv("A=1")(&o)
	WithEnv("B=2")(&o)
	if o.Shell != "bash" || len(o.Args) != 1 || o.Args[0] != "-l" {
		t.Errorf("unexpected shell %q args %v", o.Shell, o.Args)
	}
	if len(o.Env) != 2 {
		t.Errorf("expected env to accumulate, got %v", o.Env)
	}
}

func TestText_NotRunning(t *testing.T) {
	term := New(WithPreferences(DefaultPreferences()))
	if _, ok := term.Text(); ok {
		t.Error("expected no text before Run")
	}
}
