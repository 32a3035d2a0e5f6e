// Package app implements the Bubble Tea display layer for a single
// terminal session.
//
// The Model draws the session's latest BufferSnapshot under a one-line
// status bar and turns key presses into bytes for the subprocess. Session
// callbacks reach the Model as messages through a QueueDispatcher, so they
// always run inside Update on the program's goroutine.
package app

import (
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/session"
	"github.com/Gaurav-Gosain/newterm/internal/theme"
)

const (
	statusBarHeight   = 1
	bellFlashDuration = 150 * time.Millisecond
)

// Terminal is the part of a session the display drives. *session.Session
// implements it.
type Terminal interface {
	Write(p []byte) error
	Clear() error
	RequestResize(size session.ScreenSize)
	DisplayReady()
	SetVisibility(tabVisible, windowVisible bool)
	SetAppState(foreground, multiWindow bool)
}

// Options configure a Model.
type Options struct {
	Preferences config.Preferences

	// RingBell sounds the host terminal's bell. Nil disables sound.
	RingBell func()

	Logger *log.Logger
}

// Model is the tea.Model hosting one session.
type Model struct {
	term   Terminal
	logger *log.Logger

	keys      config.KeysConfig
	themeName string
	ringBell  func()

	width, height int

	snap    session.BufferSnapshot
	hasSnap bool
	scroll  int

	state   session.State
	file    string
	errText string

	ready        bool
	focused      bool
	prefixActive bool
	prefixSeq    int
	showHelp     bool
	bellFlash    bool
	bellSeq      int
	closed       bool

	// Commands produced by callbacks, returned from the Update that ran them.
	pending []tea.Cmd
}

// New creates a Model. Attach must be called before the program runs.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Model{
		logger:    logger,
		keys:      opts.Preferences.Keys,
		themeName: opts.Preferences.Appearance.Theme,
		ringBell:  opts.RingBell,
		focused:   true,
	}
}

// Attach sets the session the model displays.
func (m *Model) Attach(t Terminal) {
	m.term = t
}

// Closed reports whether the session's program exited on its own.
func (m *Model) Closed() bool { return m.closed }

// dispatchMsg carries a session callback into Update.
type dispatchMsg func()

// PreferencesMsg tells the model the preferences changed.
type PreferencesMsg struct {
	Preferences config.Preferences
}

type bellDoneMsg struct{ seq int }

type prefixTimeoutMsg struct{ seq int }

// NewDispatcher returns a session Dispatcher that delivers callbacks with
// send, normally (*tea.Program).Send. Close it once the program exits.
func NewDispatcher(send func(tea.Msg)) *session.QueueDispatcher {
	return session.NewQueueDispatcher(func(fn func()) {
		send(dispatchMsg(fn))
	})
}

// Callbacks returns the session callbacks that update this model. They
// must only run inside Update, which NewDispatcher guarantees.
func (m *Model) Callbacks() session.Callbacks {
	return session.Callbacks{
		OnRefresh: func(snap session.BufferSnapshot) {
			m.snap = snap
			m.hasSnap = true
			m.scroll = min(m.scroll, snap.ScrollbackLen)
		},
		OnScroll: func(bool) {
			m.scroll = 0
		},
		OnBell:         m.onBell,
		OnStateChanged: func(st session.State) { m.state = st },
		OnCurrentFileChanged: func(file, _ string) {
			m.file = file
		},
		OnError: func(err error) {
			m.errText = err.Error()
			m.logger.Error("session error", "err", err)
		},
		OnClose: func() {
			m.closed = true
			m.pending = append(m.pending, tea.Quit)
		},
	}
}

func (m *Model) onBell(b session.Bell) {
	if b.Visual {
		m.bellFlash = true
		m.bellSeq++
		seq := m.bellSeq
		m.pending = append(m.pending, tea.Tick(bellFlashDuration, func(time.Time) tea.Msg {
			return bellDoneMsg{seq}
		}))
	}
	if b.Sound && m.ringBell != nil {
		m.ringBell()
	}
}

func (m *Model) applyPreferences(p config.Preferences) {
	m.keys = p.Keys
	if p.Appearance.Theme != m.themeName {
		m.themeName = p.Appearance.Theme
		if err := theme.Initialize(m.themeName); err != nil {
			m.logger.Warn("theme change failed", "theme", m.themeName, "err", err)
		}
	}
}

func (m *Model) takePending() tea.Cmd {
	if len(m.pending) == 0 {
		return nil
	}
	cmds := m.pending
	m.pending = nil
	return tea.Batch(cmds...)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}
