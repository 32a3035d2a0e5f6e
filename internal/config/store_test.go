package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(*DefaultPreferences())

	var got []int
	cancel := s.Subscribe(func(p Preferences) { got = append(got, p.Refresh.RefreshRateOnAC) })

	next := s.Get()
	next.Refresh.RefreshRateOnAC = 30
	s.Set(next)

	cancel()
	cancel()

	next.Refresh.RefreshRateOnAC = 90
	s.Set(next)

	if len(got) != 1 || got[0] != 30 {
		t.Errorf("expected one notification with 30, got %v", got)
	}
	if s.Get().Refresh.RefreshRateOnAC != 90 {
		t.Error("store should hold the latest value")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(*DefaultPreferences())

	p := s.Get()
	p.Keys.Actions[ActionQuit] = "z"

	if s.Get().Keys.Actions[ActionQuit] != "q" {
		t.Error("Get must return an independent copy")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if _, err := CreateDefault(path); err != nil {
		t.Fatal(err)
	}

	store := NewStore(*DefaultPreferences())
	var (
		mu    sync.Mutex
		rates []int
	)
	store.Subscribe(func(p Preferences) {
		mu.Lock()
		rates = append(rates, p.Refresh.RefreshRateOnAC)
		mu.Unlock()
	})

	w, err := NewWatcher(path, store, WithDebounce(10*time.Millisecond), WithOverrides(Overrides{ThemeName: "nord"}))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Unrelated files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[refresh]\nrefresh_rate_on_ac = 24\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(rates)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(rates) == 0 {
		t.Fatal("store was not updated after the config file changed")
	}
	if rates[len(rates)-1] != 24 {
		t.Errorf("expected reloaded rate 24, got %v", rates)
	}
	if store.Get().Appearance.Theme != "nord" {
		t.Error("overrides should be re-applied on reload")
	}
}

func TestWatcher_KeepsValueOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if _, err := CreateDefault(path); err != nil {
		t.Fatal(err)
	}

	store := NewStore(*DefaultPreferences())
	errs := make(chan error, 4)
	w, err := NewWatcher(path, store, WithDebounce(10*time.Millisecond), WithErrorHandler(func(err error) { errs <- err }))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[log]\nlevel = \"loud\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a reload error")
	}
	if store.Get().Log.Level != "info" {
		t.Error("store should keep its previous value after a failed reload")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
