// Package newterm runs a terminal session inside a Bubble Tea program so it
// can be embedded in other tools or used as a standalone TUI.
//
// # Basic Usage
//
//	t := newterm.New()
//	if err := t.Run(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// # Custom Configuration
//
//	t := newterm.New(
//		newterm.WithShell("zsh"),
//		newterm.WithTheme("dracula"),
//		newterm.WithRefreshRate(30),
//	)
package newterm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/Gaurav-Gosain/newterm/internal/app"
	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/power"
	"github.com/Gaurav-Gosain/newterm/internal/session"
	"github.com/Gaurav-Gosain/newterm/internal/theme"
)

// ErrAlreadyRunning is returned by Run when the terminal already ran.
var ErrAlreadyRunning = errors.New("terminal already ran")

// Preferences re-exports the preference type so callers can build one
// without importing internal packages.
type Preferences = config.Preferences

// DefaultPreferences returns the default preferences.
func DefaultPreferences() Preferences { return *config.DefaultPreferences() }

// Options configures a Terminal.
type Options struct {
	// Shell is the program to run. Empty means $SHELL or a platform default.
	Shell string
	Args  []string
	Dir   string
	Env   []string

	// Theme is the color theme name (e.g., "dracula", "nord").
	// Leave empty to use standard terminal colors.
	Theme string

	// ScrollbackLines is the number of lines in scrollback buffer.
	// Default is 10000, min 100, max 1000000.
	ScrollbackLines int

	// RefreshRate caps updates per second on AC and battery. 0 keeps the
	// preference.
	RefreshRate int

	// InitialCommand is typed into the shell once it is displayed.
	InitialCommand string

	// Preferences replace the user's config file. If nil, the config file
	// is loaded and the defaults are used when that fails.
	Preferences *Preferences

	// PowerSource reports battery and low-power state. Nil reads sysfs.
	PowerSource power.Source

	// Version is exported to the shell as TERM_PROGRAM_VERSION.
	Version string

	Logger *log.Logger
}

// Option is a functional option for configuring a Terminal.
type Option func(*Options)

// WithShell sets the program to run and its arguments.
func WithShell(shell string, args ...string) Option {
	return func(o *Options) {
		o.Shell = shell
		o.Args = args
	}
}

// WithDir sets the working directory of the shell.
func WithDir(dir string) Option {
	return func(o *Options) {
		o.Dir = dir
	}
}

// WithEnv appends environment variables for the shell.
func WithEnv(env ...string) Option {
	return func(o *Options) {
		o.Env = append(o.Env, env...)
	}
}

// WithTheme sets the color theme.
func WithTheme(name string) Option {
	return func(o *Options) {
		o.Theme = name
	}
}

// WithScrollbackLines sets the scrollback buffer size.
func WithScrollbackLines(lines int) Option {
	return func(o *Options) {
		o.ScrollbackLines = min(max(lines, config.MinScrollbackLines), config.MaxScrollbackLines)
	}
}

// WithRefreshRate caps the refresh rate.
func WithRefreshRate(hz int) Option {
	return func(o *Options) {
		o.RefreshRate = hz
	}
}

// WithInitialCommand types cmd into the shell once it is displayed.
func WithInitialCommand(cmd string) Option {
	return func(o *Options) {
		o.InitialCommand = cmd
	}
}

// WithPreferences uses prefs instead of the user's config file.
func WithPreferences(prefs Preferences) Option {
	return func(o *Options) {
		o.Preferences = &prefs
	}
}

// WithPowerSource sets where battery state is read from.
func WithPowerSource(src power.Source) Option {
	return func(o *Options) {
		o.PowerSource = src
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Terminal is a session and the model displaying it.
type Terminal struct {
	opts   Options
	prefs  Preferences
	logger *log.Logger

	mu      sync.Mutex
	ran     bool
	session *session.Session
}

// New creates a Terminal with the given options. Nothing runs until Run.
func New(opts ...Option) *Terminal {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Terminal{
		opts:   options,
		prefs:  resolvePreferences(options),
		logger: logger,
	}
}

// resolvePreferences layers the options over the configured preferences.
func resolvePreferences(o Options) Preferences {
	base := o.Preferences
	if base == nil {
		if loaded, _, err := config.LoadPreferences(); err == nil {
			base = loaded
		}
	}
	return config.ApplyOverrides(config.Overrides{
		RefreshRate:     o.RefreshRate,
		InitialCommand:  o.InitialCommand,
		ThemeName:       o.Theme,
		ScrollbackLines: o.ScrollbackLines,
	}, base)
}

// Preferences returns the preferences the terminal runs with.
func (t *Terminal) Preferences() Preferences { return t.prefs }

// Text returns the scrollback and screen as text. ok is false when the
// terminal is not running.
func (t *Terminal) Text() (text string, ok bool) {
	t.mu.Lock()
	s := t.session
	t.mu.Unlock()
	if s == nil {
		return "", false
	}
	return s.GetAllText()
}

// Run starts the shell and runs the display until the shell exits, the
// user quits or ctx is cancelled. A Terminal runs once.
func (t *Terminal) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	t.mu.Lock()
	if t.ran {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.ran = true
	t.mu.Unlock()

	if err := theme.Initialize(t.prefs.Appearance.Theme); err != nil {
		t.logger.Warn("theme unavailable", "theme", t.prefs.Appearance.Theme, "err", err)
	}

	model := app.New(app.Options{
		Preferences: t.prefs,
		Logger:      t.logger.WithPrefix("app"),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, append(ProgramOptions(), opts...)...)
	disp := app.NewDispatcher(p.Send)
	defer disp.Close()

	prefs := t.prefs
	sess := session.New(session.Options{
		Shell:       t.opts.Shell,
		Args:        t.opts.Args,
		Dir:         t.opts.Dir,
		Env:         t.opts.Env,
		Version:     t.opts.Version,
		Preferences: &prefs,
		Dispatcher:  disp,
		Callbacks:   model.Callbacks(),
		Logger:      t.logger.WithPrefix("session"),
	})
	model.Attach(sess)

	t.mu.Lock()
	t.session = sess
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.session = nil
		t.mu.Unlock()
	}()

	src := t.opts.PowerSource
	if src == nil {
		src = power.Sysfs{}
	}
	go power.Watch(ctx, src, config.PowerPollInterval, sess.SetPowerState)
	go func() {
		<-ctx.Done()
		p.Send(tea.QuitMsg{})
	}()

	if err := sess.Start(); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	_, err := p.Run()
	cancel()
	_ = sess.Stop()

	if err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

// ProgramOptions returns recommended tea.ProgramOption values for running
// a Terminal. The shell receives ctrl+c itself, so the program does not
// install a signal handler.
func ProgramOptions() []tea.ProgramOption {
	return []tea.ProgramOption{
		tea.WithoutSignalHandler(),
	}
}
