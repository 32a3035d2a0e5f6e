package session

import (
	"testing"
	"time"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		user, host string
		want       string
	}{
		{"raw title", "vim", "", "", "vim"},
		{"placeholder", "", "", "", placeholderTitle},
		{"remote user and host", "build", "alice", "remote.example.com", "[alice@remote.example.com] build"},
		{"local user omitted", "build", "me", "remote.example.com", "[remote.example.com] build"},
		{"local suffix stripped", "top", "alice", "laptop.local", "[alice@laptop] top"},
		{"local host shows user only", "top", "alice", "mybox", "[alice] top"},
		{"local host and user", "~/src", "me", "mybox.local", "~/src"},
		{"localhost", "", "me", "localhost", placeholderTitle},
		{"remote host without title", "", "", "far", "[far]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveTitle(tt.raw, tt.user, tt.host, "me", "mybox"); got != tt.want {
				t.Errorf("deriveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateMachine_BellThrottle(t *testing.T) {
	now := time.Unix(0, 0)
	m := newStateMachine("me", "mybox", func() time.Time { return now })
	m.setVisible(false)

	var fired []time.Duration
	changes := 0
	for _, at := range []time.Duration{0, 300 * time.Millisecond, 900 * time.Millisecond, 1200 * time.Millisecond} {
		now = time.Unix(0, 0).Add(at)
		changed, notify := m.bell()
		if notify {
			fired = append(fired, at)
		}
		if changed {
			changes++
		}
	}

	if len(fired) != 2 || fired[0] != 0 || fired[1] != 1200*time.Millisecond {
		t.Errorf("expected bells at 0 and 1.2s, got %v", fired)
	}
	if changes != 1 || !m.state().HasBell {
		t.Errorf("expected hasBell set once, got %d changes", changes)
	}
}

func TestStateMachine_VisibleBellDoesNotFlag(t *testing.T) {
	m := newStateMachine("me", "mybox", time.Now)

	changed, notify := m.bell()
	if changed || !notify {
		t.Errorf("visible bell: changed=%v notify=%v", changed, notify)
	}
	if m.outputArrived() {
		t.Error("output while visible must not mark dirty")
	}
}

func TestStateMachine_Visibility(t *testing.T) {
	m := newStateMachine("me", "mybox", time.Now)

	if m.setVisible(false) {
		t.Error("hiding a clean session is not a change")
	}
	if !m.outputArrived() || m.outputArrived() {
		t.Error("expected exactly one dirty transition")
	}
	if !m.setVisible(true) {
		t.Error("becoming visible should clear dirty")
	}
	if st := m.state(); st.Dirty || st.HasBell {
		t.Errorf("unexpected state %+v", st)
	}
	if m.setVisible(true) {
		t.Error("no change expected")
	}
}
