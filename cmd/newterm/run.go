package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"

	"github.com/Gaurav-Gosain/newterm/internal/app"
	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/power"
	"github.com/Gaurav-Gosain/newterm/internal/session"
	"github.com/Gaurav-Gosain/newterm/internal/theme"
)

// loadPreferences loads the config file and applies the CLI flags. A broken
// config file is reported and replaced by the defaults.
func loadPreferences(logger *log.Logger) config.Preferences {
	prefs, result, err := config.LoadPreferences()
	if err != nil {
		logger.Warn("failed to load config, using defaults", "err", err)
		if result != nil {
			for _, issue := range result.Errors {
				logger.Warn("config error", "issue", issue.String())
			}
		}
		prefs = nil
	} else if result.HasWarnings() {
		for _, issue := range result.Warnings {
			logger.Warn("config warning", "issue", issue.String())
		}
	}
	return config.ApplyOverrides(overridesFromFlags(), prefs)
}

// newLogger builds a logger writing to w at the given level name.
func newLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          config.AppName,
	})
}

// openLogFile opens the log file under the XDG state home. The display owns
// the terminal, so nothing is logged to stderr while it runs.
func openLogFile() (io.WriteCloser, error) {
	path, err := xdg.StateFile(config.LogRelPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// ringHostBell writes BEL straight to the controlling terminal so it is not
// interleaved with the renderer's output.
func ringHostBell() {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return
	}
	_, _ = tty.Write([]byte{'\a'})
	_ = tty.Close()
}

func runLocal() error {
	var logOut io.Writer = io.Discard
	if f, err := openLogFile(); err == nil {
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger := newLogger(logOut, "info")

	prefs := loadPreferences(logger)
	logger.SetLevel(levelOf(prefs.Log.Level))
	logger.Debug("starting", "version", version, "commit", commit)

	theme.SetLogger(logger.WithPrefix("theme"))
	if err := theme.Initialize(prefs.Appearance.Theme); err != nil {
		logger.Warn("theme unavailable", "theme", prefs.Appearance.Theme, "err", err)
	}

	store := config.NewStore(prefs)
	if path, err := config.ConfigPath(); err == nil {
		watcher, err := config.NewWatcher(path, store,
			config.WithOverrides(overridesFromFlags()),
			config.WithLogger(logger.WithPrefix("config")),
		)
		if err != nil {
			logger.Warn("config watcher unavailable", "err", err)
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	model := app.New(app.Options{
		Preferences: prefs,
		RingBell:    ringHostBell,
		Logger:      logger.WithPrefix("app"),
	})

	p := tea.NewProgram(model, tea.WithoutSignalHandler())

	disp := app.NewDispatcher(p.Send)
	defer disp.Close()

	sess := session.New(session.Options{
		Version:    version,
		Store:      store,
		Dispatcher: disp,
		Callbacks:  model.Callbacks(),
		Logger:     logger.WithPrefix("session"),
	})
	model.Attach(sess)

	unsubscribe := store.Subscribe(func(p2 config.Preferences) {
		p.Send(app.PreferencesMsg{Preferences: p2})
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go power.Watch(ctx, power.Sysfs{}, config.PowerPollInterval, sess.SetPowerState)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			p.Send(tea.QuitMsg{})
		case <-ctx.Done():
		}
	}()

	if err := sess.Start(); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	_, err := p.Run()

	cancel()
	if stopErr := sess.Stop(); stopErr != nil {
		logger.Debug("session stop", "err", stopErr)
	}

	if err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

func levelOf(name string) log.Level {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
