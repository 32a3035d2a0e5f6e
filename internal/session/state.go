package session

import (
	"time"

	"github.com/Gaurav-Gosain/newterm/internal/config"
)

// State is the display-facing state of a session.
type State struct {
	// Dirty is set when output arrived while the session was not visible.
	Dirty bool
	// HasBell is set when the bell rang while the session was not visible.
	HasBell bool
	// Title is the derived window title.
	Title string
}

// Bell is delivered when the program rings the bell, at most once a second.
type Bell struct {
	Visual bool
	Sound  bool
}

// stateMachine tracks dirty, bell and title state. It is only touched from
// the session worker.
type stateMachine struct {
	visible bool
	dirty   bool
	hasBell bool

	rawTitle   string
	remoteUser string
	hostname   string
	title      string

	localUser string
	localHost string

	lastBell time.Time
	now      func() time.Time
}

func newStateMachine(localUser, localHost string, now func() time.Time) *stateMachine {
	if now == nil {
		now = time.Now
	}
	m := &stateMachine{
		visible:   true,
		localUser: localUser,
		localHost: localHost,
		now:       now,
	}
	m.title = m.derive()
	return m
}

func (m *stateMachine) state() State {
	return State{Dirty: m.dirty, HasBell: m.hasBell, Title: m.title}
}

// outputArrived marks the session dirty if it is hidden. It reports whether
// the state changed.
func (m *stateMachine) outputArrived() bool {
	if m.visible || m.dirty {
		return false
	}
	m.dirty = true
	return true
}

// bell records a bell signal. notify reports whether a bell notification
// should fire; it is suppressed within a second of the last one that did.
func (m *stateMachine) bell() (changed, notify bool) {
	now := m.now()
	if m.lastBell.IsZero() || now.Sub(m.lastBell) > config.BellThrottle {
		m.lastBell = now
		notify = true
	}
	if !m.visible && !m.hasBell {
		m.hasBell = true
		changed = true
	}
	return changed, notify
}

// setVisible records a visibility transition. Becoming visible clears the
// dirty and bell flags.
func (m *stateMachine) setVisible(visible bool) bool {
	m.visible = visible
	if !visible || (!m.dirty && !m.hasBell) {
		return false
	}
	m.dirty = false
	m.hasBell = false
	return true
}

func (m *stateMachine) setRawTitle(title string) bool {
	m.rawTitle = title
	return m.retitle()
}

func (m *stateMachine) setRemoteHost(user, host string) bool {
	m.remoteUser = user
	m.hostname = host
	return m.retitle()
}

func (m *stateMachine) setHostname(host string) bool {
	m.hostname = host
	return m.retitle()
}

func (m *stateMachine) isLocal() bool {
	return isLocalHost(m.hostname, m.localHost)
}

func (m *stateMachine) retitle() bool {
	title := m.derive()
	if title == m.title {
		return false
	}
	m.title = title
	return true
}

func (m *stateMachine) derive() string {
	return deriveTitle(m.rawTitle, m.remoteUser, m.hostname, m.localUser, m.localHost)
}
