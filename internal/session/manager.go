package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Manager tracks running sessions by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	// defaults fill in unset Options fields on Create.
	defaults Options

	closed atomic.Bool
}

// NewManager creates a manager. Fields set in defaults are used for every
// session whose Options leave them unset.
func NewManager(defaults Options) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		defaults: defaults,
	}
}

// Create creates and starts a session. The session is forgotten once it
// is stopped.
func (m *Manager) Create(opts Options) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	// Apply defaults
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Shell == "" {
		opts.Shell = m.defaults.Shell
	}
	if opts.Cols <= 0 {
		opts.Cols = m.defaults.Cols
	}
	if opts.Rows <= 0 {
		opts.Rows = m.defaults.Rows
	}
	if opts.Version == "" {
		opts.Version = m.defaults.Version
	}
	if opts.Preferences == nil {
		opts.Preferences = m.defaults.Preferences
	}
	if opts.Store == nil {
		opts.Store = m.defaults.Store
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = m.defaults.Dispatcher
	}
	if opts.Logger == nil {
		opts.Logger = m.defaults.Logger
	}

	s := New(opts)
	s.onStop = func() { m.remove(s.id) }

	m.mu.Lock()
	m.sessions[s.id] = s
	m.order = append(m.order, s.id)
	m.mu.Unlock()

	if err := s.Start(); err != nil {
		_ = s.Stop()
		return nil, err
	}
	return s, nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns the running sessions in creation order.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.sessions[id])
	}
	return result
}

// Count returns the number of running sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop stops a session by ID.
func (m *Manager) Stop(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	return s.Stop()
}

// StopAll stops every session and refuses new ones.
func (m *Manager) StopAll() error {
	m.closed.Store(true)

	var errs []error
	for _, s := range m.List() {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
