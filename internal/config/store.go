package config

import "sync"

// Store holds the current preferences and notifies subscribers when they
// change. Subscribers are called synchronously, in registration order, on
// the goroutine that calls Set.
type Store struct {
	mu     sync.Mutex
	prefs  Preferences
	subs   map[int]func(Preferences)
	order  []int
	nextID int
}

// NewStore returns a store holding prefs.
func NewStore(prefs Preferences) *Store {
	return &Store{prefs: prefs.Clone(), subs: map[int]func(Preferences){}}
}

// Get returns a copy of the current preferences.
func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// Set replaces the preferences and notifies every subscriber.
func (s *Store) Set(prefs Preferences) {
	s.mu.Lock()
	s.prefs = prefs.Clone()
	fns := make([]func(Preferences), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(prefs.Clone())
	}
}

// Subscribe registers fn for future changes. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Preferences)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
