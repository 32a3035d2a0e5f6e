package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned when the config file has validation errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// Preferences represents the user's configuration
type Preferences struct {
	Refresh    RefreshConfig    `toml:"refresh"`
	Bell       BellConfig       `toml:"bell"`
	Shell      ShellConfig      `toml:"shell"`
	Appearance AppearanceConfig `toml:"appearance"`
	Keys       KeysConfig       `toml:"keys"`
	Log        LogConfig        `toml:"log"`
}

// RefreshConfig holds refresh-rate settings
type RefreshConfig struct {
	RefreshRateOnAC        int   `toml:"refresh_rate_on_ac"`         // Updates per second on AC power (default: 60)
	RefreshRateOnBattery   int   `toml:"refresh_rate_on_battery"`    // Updates per second on battery (default: 60)
	ReduceRefreshRateInLPM *bool `toml:"reduce_refresh_rate_in_lpm"` // Drop to 15 updates per second in low-power mode (default: true)
	DisplayMaxRate         int   `toml:"display_max_rate"`           // Upper bound for the rates above (default: 120)
}

// BellConfig holds bell settings
type BellConfig struct {
	Visual *bool `toml:"visual"` // Flash the status bar on bell (default: true)
	Sound  *bool `toml:"sound"`  // Ring the host terminal's bell (default: true)
}

// ShellConfig holds shell settings
type ShellConfig struct {
	PreferredShell  string `toml:"preferred_shell"`  // Preferred shell: if empty, auto-detect based on platform
	InitialCommand  string `toml:"initial_command"`  // Typed into the shell once the display is ready
	ScrollbackLines int    `toml:"scrollback_lines"` // Lines kept in scrollback (default: 10000, min: 100, max: 1000000)
}

// AppearanceConfig holds appearance-related settings
type AppearanceConfig struct {
	Theme string `toml:"theme"` // Color theme name (e.g., dracula, nord, my-custom-theme)
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error (default: info)
}

// ReduceInLowPower reports the effective reduce_refresh_rate_in_lpm value.
func (r RefreshConfig) ReduceInLowPower() bool {
	return r.ReduceRefreshRateInLPM == nil || *r.ReduceRefreshRateInLPM
}

// VisualEnabled reports the effective bell.visual value.
func (b BellConfig) VisualEnabled() bool { return b.Visual == nil || *b.Visual }

// SoundEnabled reports the effective bell.sound value.
func (b BellConfig) SoundEnabled() bool { return b.Sound == nil || *b.Sound }

func boolPtr(b bool) *bool { return &b }

// DefaultPreferences returns the default configuration
func DefaultPreferences() *Preferences {
	return &Preferences{
		Refresh: RefreshConfig{
			RefreshRateOnAC:        DefaultRefreshRate,
			RefreshRateOnBattery:   DefaultRefreshRate,
			ReduceRefreshRateInLPM: boolPtr(true),
			DisplayMaxRate:         DefaultDisplayMaxRate,
		},
		Bell: BellConfig{
			Visual: boolPtr(true),
			Sound:  boolPtr(true),
		},
		Shell: ShellConfig{
			ScrollbackLines: DefaultScrollbackLines,
		},
		Keys: KeysConfig{
			Prefix:  "ctrl+]",
			Actions: defaultKeyActions(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigPath returns the path to the config file, existing or not.
func ConfigPath() (string, error) {
	path, err := xdg.SearchConfigFile(ConfigRelPath)
	if err != nil {
		return xdg.ConfigFile(ConfigRelPath)
	}
	return path, nil
}

// LoadPreferences loads the user's config file, creating it with defaults
// on first run.
func LoadPreferences() (*Preferences, *ValidationResult, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadOrCreate(path)
}

// LoadOrCreate loads the config at path, writing the commented defaults
// there first if it does not exist.
func LoadOrCreate(path string) (*Preferences, *ValidationResult, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg, err := CreateDefault(path)
		return cfg, &ValidationResult{}, err
	}
	return Load(path)
}

// Load reads and validates the config file at path. Missing keys take
// their defaults. Validation warnings are returned with a nil error;
// validation errors are returned wrapped in ErrInvalidConfig.
func Load(path string) (*Preferences, *ValidationResult, error) {
	// #nosec G304 - reading the user's own config is intentional
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Preferences
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	validation := Validate(&cfg)
	fillMissing(&cfg, DefaultPreferences())

	if validation.HasErrors() {
		return nil, validation, fmt.Errorf("%w: %d error(s) in %s", ErrInvalidConfig, len(validation.Errors), path)
	}
	return &cfg, validation, nil
}

// CreateDefault writes the default config with explanatory comments to path.
func CreateDefault(path string) (*Preferences, error) {
	cfg := DefaultPreferences()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# newterm Configuration File\n")
	sb.WriteString("#\n")
	sb.WriteString("# Configuration location: " + path + "\n")
	sb.WriteString("# Changes are picked up while newterm is running.\n\n")

	sb.WriteString("# ============================================================================\n")
	sb.WriteString("# [refresh]\n")
	sb.WriteString("#   refresh_rate_on_ac / refresh_rate_on_battery: screen updates per second\n")
	sb.WriteString("#     Range: 1-240. Default: 60\n")
	sb.WriteString("#   reduce_refresh_rate_in_lpm: use 15 updates per second in low-power mode\n")
	sb.WriteString("#   display_max_rate: cap applied to the rates above. Default: 120\n")
	sb.WriteString("#\n")
	sb.WriteString("# [bell]\n")
	sb.WriteString("#   visual: flash the status bar. sound: ring the host terminal's bell\n")
	sb.WriteString("#\n")
	sb.WriteString("# [shell]\n")
	sb.WriteString("#   preferred_shell: empty means $SHELL, then a platform default\n")
	sb.WriteString("#   initial_command: typed into the shell when the session starts\n")
	sb.WriteString("#   scrollback_lines: 100-1000000. Default: 10000\n")
	sb.WriteString("#\n")
	sb.WriteString("# [appearance]\n")
	sb.WriteString("#   theme: bubbletint theme id, or a custom theme from\n")
	sb.WriteString("#          ~/.config/newterm/themes/*.json. Empty uses terminal colors\n")
	sb.WriteString("#\n")
	sb.WriteString("# [keys]\n")
	sb.WriteString("#   prefix: key that starts a command. Default: ctrl+]\n")
	sb.WriteString("#   actions: quit, clear, help, send_prefix -> key pressed after prefix\n")
	sb.WriteString("#\n")
	sb.WriteString("# [log]\n")
	sb.WriteString("#   level: debug, info, warn, error. Default: info\n")
	sb.WriteString("# ============================================================================\n\n")

	sb.Write(data)

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfg, nil
}

// fillMissing fills in unset settings with defaults
func fillMissing(cfg, defaultCfg *Preferences) {
	fillMissingRefresh(cfg, defaultCfg)
	fillMissingBell(cfg, defaultCfg)
	fillMissingShell(cfg, defaultCfg)
	fillMissingKeys(cfg, defaultCfg)

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultCfg.Log.Level
	}
}

func fillMissingRefresh(cfg, defaultCfg *Preferences) {
	r := &cfg.Refresh
	if r.RefreshRateOnAC <= 0 {
		r.RefreshRateOnAC = defaultCfg.Refresh.RefreshRateOnAC
	}
	r.RefreshRateOnAC = min(r.RefreshRateOnAC, MaxRefreshRate)

	if r.RefreshRateOnBattery <= 0 {
		r.RefreshRateOnBattery = defaultCfg.Refresh.RefreshRateOnBattery
	}
	r.RefreshRateOnBattery = min(r.RefreshRateOnBattery, MaxRefreshRate)

	if r.DisplayMaxRate <= 0 {
		r.DisplayMaxRate = defaultCfg.Refresh.DisplayMaxRate
	}
	if r.ReduceRefreshRateInLPM == nil {
		r.ReduceRefreshRateInLPM = boolPtr(*defaultCfg.Refresh.ReduceRefreshRateInLPM)
	}
}

func fillMissingBell(cfg, defaultCfg *Preferences) {
	if cfg.Bell.Visual == nil {
		cfg.Bell.Visual = boolPtr(*defaultCfg.Bell.Visual)
	}
	if cfg.Bell.Sound == nil {
		cfg.Bell.Sound = boolPtr(*defaultCfg.Bell.Sound)
	}
}

func fillMissingShell(cfg, defaultCfg *Preferences) {
	// Validate and set scrollback lines (min: 100, max: 1000000)
	switch lines := cfg.Shell.ScrollbackLines; {
	case lines <= 0:
		cfg.Shell.ScrollbackLines = defaultCfg.Shell.ScrollbackLines
	case lines < MinScrollbackLines:
		cfg.Shell.ScrollbackLines = MinScrollbackLines
	case lines > MaxScrollbackLines:
		cfg.Shell.ScrollbackLines = MaxScrollbackLines
	}
}

func fillMissingKeys(cfg, defaultCfg *Preferences) {
	if cfg.Keys.Prefix == "" {
		cfg.Keys.Prefix = defaultCfg.Keys.Prefix
	}
	if cfg.Keys.Actions == nil {
		cfg.Keys.Actions = map[string]string{}
	}
	used := map[string]bool{}
	for _, key := range cfg.Keys.Actions {
		used[strings.ToLower(key)] = true
	}
	for action, key := range defaultCfg.Keys.Actions {
		if _, ok := cfg.Keys.Actions[action]; !ok && !used[strings.ToLower(key)] {
			cfg.Keys.Actions[action] = key
		}
	}
}

// Reset overwrites the config file with the defaults.
func Reset() (string, error) {
	path, err := xdg.ConfigFile(ConfigRelPath)
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}
	if _, err := CreateDefault(path); err != nil {
		return "", err
	}
	return path, nil
}
