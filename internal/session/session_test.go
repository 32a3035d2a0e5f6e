package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/power"
)

func TestSession_TickDispatchesSnapshot(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 5})
	h.start(t)

	h.proc.output("hello")
	h.tick()

	snap := h.rec.lastSnapshot(t)
	if len(snap.Lines) != 1 {
		t.Errorf("expected 1 line without scrollback, got %d", len(snap.Lines))
	}
	if got := snap.Text(); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	if snap.Cursor != uv.Pos(5, 0) {
		t.Errorf("expected cursor (5,0), got %v", snap.Cursor)
	}
	if !snap.CursorVisible {
		t.Error("expected visible cursor")
	}
}

func TestSession_NoRedundantSnapshots(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 5})
	h.start(t)

	// The first tick always renders.
	h.tick()
	if len(h.rec.snapshots) != 1 {
		t.Fatalf("expected the first tick to render, got %d snapshots", len(h.rec.snapshots))
	}

	h.tick()
	h.tick()
	if len(h.rec.snapshots) != 1 {
		t.Errorf("idle ticks must not render, got %d snapshots", len(h.rec.snapshots))
	}

	// A change on row 0 that leaves the cursor in place still renders.
	h.proc.output("x\b")
	h.tick()
	h.proc.output("y\b")
	h.tick()
	if len(h.rec.snapshots) != 3 {
		t.Errorf("expected 3 snapshots, got %d", len(h.rec.snapshots))
	}

	h.proc.output("\x1b[?25l")
	h.tick()
	if len(h.rec.snapshots) != 4 || h.rec.lastSnapshot(t).CursorVisible {
		t.Error("cursor visibility change should render a snapshot with a hidden cursor")
	}
}

func TestSession_SnapshotIncludesScrollback(t *testing.T) {
	h := newHarness(t, Options{Cols: 10, Rows: 2})
	h.start(t)

	h.proc.output("1\r\n2\r\n3\r\n4")
	h.tick()

	snap := h.rec.lastSnapshot(t)
	if snap.ScrollbackLen != 2 || len(snap.Lines) != 4 {
		t.Fatalf("expected 2 scrollback + 2 rows, got %d/%d", snap.ScrollbackLen, len(snap.Lines))
	}
	if snap.Cursor != uv.Pos(1, 3) {
		t.Errorf("expected scroll-invariant cursor (1,3), got %v", snap.Cursor)
	}
	if got := snap.CursorOnScreen(); got != uv.Pos(1, 1) {
		t.Errorf("expected on-screen cursor (1,1), got %v", got)
	}

	window := snap.Window(0, 2)
	if len(window) != 2 || window[0][0].Content != "3" {
		t.Errorf("unexpected bottom window %v", window)
	}
	window = snap.Window(2, 2)
	if len(window) != 2 || window[0][0].Content != "1" {
		t.Errorf("unexpected scrolled window %v", window)
	}
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	h := newHarness(t, Options{Cols: 10, Rows: 2})
	h.start(t)

	h.proc.output("ab")
	h.tick()
	first := h.rec.lastSnapshot(t)

	h.proc.output("\rzz")
	h.tick()

	if got := first.Text(); got != "ab" {
		t.Errorf("earlier snapshot changed to %q", got)
	}
}

func TestSession_DirtyWhileHidden(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 5})
	h.start(t)
	h.tick()

	h.s.SetVisibility(false, true)
	h.settle()
	if len(h.rec.states) != 0 {
		t.Fatalf("hiding a clean session should not notify, got %v", h.rec.states)
	}

	h.proc.output("a")
	h.tick()
	h.proc.output("b")
	h.tick()

	if len(h.rec.states) != 1 || !h.rec.states[0].Dirty {
		t.Fatalf("expected one dirty notification, got %v", h.rec.states)
	}

	h.s.SetVisibility(true, true)
	h.settle()
	if len(h.rec.states) != 2 || h.rec.states[1].Dirty {
		t.Errorf("expected dirty cleared on visibility, got %v", h.rec.states)
	}
}

func TestSession_BellThrottle(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 5})
	h.start(t)
	h.s.SetVisibility(false, false)
	h.settle()

	for _, offset := range []time.Duration{0, 300 * time.Millisecond, 600 * time.Millisecond, 300 * time.Millisecond} {
		h.advance(offset)
		h.proc.output("\a")
		h.tick()
	}

	if len(h.rec.bells) != 2 {
		t.Errorf("expected 2 bell notifications for bells at 0, 0.3, 0.9, 1.2s, got %d", len(h.rec.bells))
	}
	if !h.rec.bells[0].Visual || !h.rec.bells[0].Sound {
		t.Errorf("expected default bell styles, got %+v", h.rec.bells[0])
	}
	if !h.s.State().HasBell {
		t.Error("expected hasBell while hidden")
	}

	h.s.SetVisibility(true, true)
	h.settle()
	if h.s.State().HasBell {
		t.Error("expected hasBell cleared once visible")
	}
}

func TestSession_BellRespectsPreferences(t *testing.T) {
	prefs := config.DefaultPreferences()
	off := false
	prefs.Bell.Visual = &off
	prefs.Bell.Sound = &off

	h := newHarness(t, Options{Cols: 20, Rows: 5, Preferences: prefs})
	h.start(t)

	h.proc.output("\a")
	h.tick()
	if len(h.rec.bells) != 0 {
		t.Errorf("bell with both styles disabled should not notify, got %v", h.rec.bells)
	}
}

func TestSession_Title(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.proc.output("\x1b]2;build\a")
	h.tick()
	if got := h.s.State().Title; got != "build" {
		t.Errorf("expected title %q, got %q", "build", got)
	}

	h.proc.output("\x1b]1337;RemoteHost=alice@remote.example.com\a")
	h.tick()
	if got := h.s.State().Title; got != "[alice@remote.example.com] build" {
		t.Errorf("unexpected remote title %q", got)
	}

	// Setting the same title again is not a change.
	count := len(h.rec.states)
	h.proc.output("\x1b]2;build\a")
	h.tick()
	if len(h.rec.states) != count {
		t.Error("unchanged title should not notify")
	}
}

func TestSession_HostDocument(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.proc.output("\x1b]7;file://mybox/home/me\a")
	h.tick()
	h.proc.output("\x1b]6;file://mybox/home/me/notes.txt\a")
	h.tick()

	if len(h.rec.files) != 2 {
		t.Fatalf("expected 2 file notifications, got %v", h.rec.files)
	}
	if h.rec.files[0] != [2]string{"/home/me", "/home/me"} {
		t.Errorf("unexpected working directory notification %v", h.rec.files[0])
	}
	if h.rec.files[1] != [2]string{"/home/me/notes.txt", "/home/me"} {
		t.Errorf("unexpected document notification %v", h.rec.files[1])
	}
	if h.s.WorkingDirectory() != "/home/me" || h.s.CurrentFile() != "/home/me/notes.txt" {
		t.Errorf("unexpected accessors %q %q", h.s.WorkingDirectory(), h.s.CurrentFile())
	}

	h.proc.output("\x1b]6;\a\x1b]7;file://far.example.com/srv\a")
	h.tick()
	last := h.rec.files[len(h.rec.files)-1]
	if last != [2]string{"", ""} {
		t.Errorf("remote paths must not be reported, got %v", last)
	}
	if got := h.s.State().Title; got != "[far.example.com]" {
		t.Errorf("expected remote host title, got %q", got)
	}
}

func TestSession_AnswersTerminalQueries(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 5})
	h.start(t)

	h.proc.output("ab\x1b[6n")
	h.tick()
	h.settle()

	writes := h.proc.recordedWrites()
	if len(writes) != 1 || writes[0] != "\x1b[1;3R" {
		t.Errorf("expected cursor position report, got %q", writes)
	}
}

func TestSession_ResizeSuppressedWhileInteractive(t *testing.T) {
	h := newHarness(t, Options{Cols: 80, Rows: 24})
	h.start(t)

	h.s.SetInteractiveResizing(true)
	for cols := 90; cols < 95; cols++ {
		h.s.RequestResize(validSize(cols, 30))
	}
	h.settle()
	if sizes := h.proc.recordedSizes(); len(sizes) != 0 {
		t.Fatalf("expected no resize while interactive, got %v", sizes)
	}

	h.s.SetInteractiveResizing(false)
	h.settle()

	sizes := h.proc.recordedSizes()
	if len(sizes) != 1 || sizes[0] != [2]int{94, 30} {
		t.Fatalf("expected exactly one resize to the last candidate, got %v", sizes)
	}
	if h.proc.liveness != 1 {
		t.Errorf("expected one liveness check, got %d", h.proc.liveness)
	}

	h.s.RequestResize(validSize(100, 40))
	h.settle()
	if sizes := h.proc.recordedSizes(); len(sizes) != 2 {
		t.Errorf("expected a second resize, got %v", sizes)
	}

	h.tick()
	snap := h.rec.lastSnapshot(t)
	if snap.Cols != 100 || snap.Rows != 40 {
		t.Errorf("emulator not resized: %dx%d", snap.Cols, snap.Rows)
	}
}

func TestSession_ResizeSameSizeScrolls(t *testing.T) {
	h := newHarness(t, Options{Cols: 80, Rows: 24})
	h.start(t)

	h.s.RequestResize(validSize(80, 24))
	h.settle()

	if len(h.proc.recordedSizes()) != 0 {
		t.Error("same size must not resize")
	}
	if h.rec.scrolls != 1 {
		t.Errorf("expected one scroll request, got %d", h.rec.scrolls)
	}
}

func TestSession_ResizeIgnoresUnreadyLayout(t *testing.T) {
	h := newHarness(t, Options{Cols: 80, Rows: 24})
	h.start(t)

	for _, size := range []ScreenSize{
		{Cols: 100, Rows: 30},
		{Cols: 100, Rows: 30, CellWidth: 8},
		{Cols: 0, Rows: 30, CellWidth: 8, CellHeight: 16},
		{Cols: 100, Rows: 30, CellWidth: 8, CellHeight: 16, OriginY: -1},
	} {
		h.s.RequestResize(size)
	}
	h.settle()

	if len(h.proc.recordedSizes()) != 0 || h.rec.scrolls != 0 {
		t.Error("unready layouts must be ignored")
	}
}

func TestSession_StartFailure(t *testing.T) {
	boom := errors.New("boom")
	h := newHarness(t, Options{Cols: 80, Rows: 24})
	h.proc.startErr = boom

	if err := h.s.Start(); err != nil {
		t.Fatalf("Start must not return the spawn failure, got %v", err)
	}
	if !errors.Is(h.s.StartError(), boom) {
		t.Errorf("expected held start error, got %v", h.s.StartError())
	}

	h.settle()
	if len(h.rec.errs) != 0 {
		t.Fatal("start failure must be held until the display is ready")
	}

	h.s.DisplayReady()
	h.s.DisplayReady()
	h.settle()
	if len(h.rec.errs) != 1 || !errors.Is(h.rec.errs[0], boom) {
		t.Fatalf("expected start failure delivered once, got %v", h.rec.errs)
	}

	h.s.RequestResize(validSize(100, 20))
	h.s.RequestResize(validSize(90, 20))
	h.settle()
	h.tick()

	text, ok := h.s.GetAllText()
	if !ok {
		t.Fatal("GetAllText failed")
	}
	if strings.Count(text, startFailedMessage) != 1 {
		t.Errorf("expected the failure banner once, got %q", text)
	}
	if len(h.proc.recordedSizes()) != 0 {
		t.Error("a failed subprocess must not be resized")
	}
}

func TestSession_InitialCommand(t *testing.T) {
	prefs := config.DefaultPreferences()
	prefs.Shell.InitialCommand = "ls -la"

	h := newHarness(t, Options{Preferences: prefs})
	h.s.DisplayReady()
	if len(h.proc.recordedWrites()) != 0 {
		t.Fatal("initial command sent before start")
	}

	h.start(t)
	h.s.DisplayReady()

	writes := h.proc.recordedWrites()
	if len(writes) != 1 || writes[0] != "ls -la\r" {
		t.Errorf("expected initial command once, got %q", writes)
	}
}

func TestSession_WriteAndFeedExternal(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 5})

	if err := h.s.Write([]byte("x")); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}

	h.start(t)
	if err := h.s.Write([]byte("ls\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h.proc.output("a")
	if err := h.s.FeedExternal([]byte("b")); err != nil {
		t.Fatalf("FeedExternal: %v", err)
	}
	h.proc.output("c")
	h.tick()

	if got := h.rec.lastSnapshot(t).Text(); got != "abc" {
		t.Errorf("injected bytes out of order: %q", got)
	}

	_ = h.s.Stop()
	if err := h.s.Write([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := h.s.FeedExternal([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := h.s.Start(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.proc.output("bye")
	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	h.disp.flush()

	if h.proc.stops != 1 {
		t.Errorf("expected one subprocess stop, got %d", h.proc.stops)
	}
	if !h.clock.isStopped() {
		t.Error("expected clock stopped")
	}

	text := h.rec.lastSnapshot(t).Text()
	if !strings.HasPrefix(text, "bye") || !strings.Contains(text, processCompletedMessage) {
		t.Errorf("expected trailing output then termination message, got %q", text)
	}

	select {
	case <-h.s.Exited():
	default:
		t.Error("Exited should be closed after Stop")
	}
	if _, ok := h.s.CurrentScreenText(); ok {
		t.Error("CurrentScreenText should fail after Stop")
	}
}

func TestSession_StopKeepsOutputStillInFlight(t *testing.T) {
	h := newHarness(t, Options{Cols: 200, Rows: 5})
	h.proc.holdOutput = true
	h.start(t)

	produced := make(chan struct{})
	go func() {
		defer close(produced)
		// Above the high-water mark: blocks until a drain.
		h.proc.output(strings.Repeat("a", 150))
		h.proc.output("TAIL")
		h.proc.endOutput()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.s.ingest.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first chunk never reached the ingest buffer")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-produced
	h.disp.flush()

	text := h.rec.lastSnapshot(t).Text()
	tail := strings.Index(text, "TAIL")
	if tail < 0 {
		t.Fatalf("trailing output was lost on Stop: %q", text)
	}
	if !strings.HasPrefix(text, strings.Repeat("a", 150)+"TAIL") {
		t.Errorf("expected output in order, got %q", text)
	}
	if msg := strings.Index(text, processCompletedMessage); msg < tail {
		t.Errorf("termination message must follow all output, got %q", text)
	}
}

func TestSession_CurrentScreenTextIncludesScrollback(t *testing.T) {
	h := newHarness(t, Options{Cols: 20, Rows: 3})
	h.start(t)

	h.proc.output("one\r\ntwo\r\nthree\r\nfour\r\n")
	h.tick()

	text, ok := h.s.CurrentScreenText()
	if !ok {
		t.Fatal("CurrentScreenText failed")
	}
	if text != "one\ntwo\nthree\nfour\n" {
		t.Errorf("expected the whole buffer, got %q", text)
	}
	if all, _ := h.s.GetAllText(); all != text {
		t.Errorf("GetAllText %q differs from CurrentScreenText %q", all, text)
	}
}

func TestSession_CleanExitCloses(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.advance(config.CrashWindow + time.Second)
	h.proc.output("done")
	h.proc.exit(nil)
	h.settle()

	if h.rec.closes != 1 {
		t.Errorf("expected close after a clean exit, got %d", h.rec.closes)
	}
	if !h.clock.isStopped() {
		t.Error("expected clock stopped after exit")
	}
	select {
	case <-h.s.Exited():
	default:
		t.Error("Exited should be closed")
	}

	text, _ := h.s.GetAllText()
	if strings.Count(text, processCompletedMessage) != 1 {
		t.Errorf("expected one termination message, got %q", text)
	}

	// Stopping afterwards does not repeat the message.
	_ = h.s.Stop()
	h.disp.flush()
	if strings.Count(h.rec.lastSnapshot(t).Text(), processCompletedMessage) != 1 {
		t.Error("termination message repeated on Stop")
	}
}

func TestSession_EarlyExitStaysOpen(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.advance(time.Second)
	h.proc.exit(nil)
	h.settle()

	if h.rec.closes != 0 || len(h.rec.errs) != 0 {
		t.Errorf("early exit must not close or error, got closes=%d errs=%v", h.rec.closes, h.rec.errs)
	}
	text, _ := h.s.CurrentScreenText()
	if !strings.Contains(text, processCompletedMessage) {
		t.Errorf("expected termination message, got %q", text)
	}
}

func TestSession_ErrorExitReportsError(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.advance(time.Minute)
	crash := errors.New("killed")
	h.proc.exit(crash)
	h.settle()

	if len(h.rec.errs) != 1 || !errors.Is(h.rec.errs[0], crash) {
		t.Errorf("expected the exit error, got %v", h.rec.errs)
	}
	if h.rec.closes != 0 {
		t.Error("an error exit must not close the session")
	}
}

func TestSession_IOErrorIsReported(t *testing.T) {
	h := newHarness(t, Options{Cols: 40, Rows: 5})
	h.start(t)

	h.proc.handler().IOError(errors.New("read failed"))
	h.disp.flush()

	if len(h.rec.errs) != 1 {
		t.Errorf("expected one error, got %v", h.rec.errs)
	}
}

func TestSession_Clear(t *testing.T) {
	h := newHarness(t, Options{Cols: 80, Rows: 24})
	h.start(t)

	h.proc.output("abc\r\ndef")
	h.tick()

	if err := h.s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	h.settle()
	h.tick()

	sizes := h.proc.recordedSizes()
	if len(sizes) != 2 || sizes[0] != [2]int{79, 24} || sizes[1] != [2]int{80, 24} {
		t.Errorf("expected a narrow-then-restore resize, got %v", sizes)
	}
	if got := h.rec.lastSnapshot(t).Text(); got != "" {
		t.Errorf("expected a cleared screen, got %q", got)
	}
}

func TestSession_RefreshRatePolicy(t *testing.T) {
	h := newHarness(t, Options{})
	if h.clock.last() != 0 {
		t.Fatal("clock must not run before Start")
	}
	h.start(t)

	steps := []struct {
		name  string
		apply func()
		want  int
	}{
		{"started", func() {}, 60},
		{"tab hidden", func() { h.s.SetVisibility(false, true) }, 1},
		{"tab shown", func() { h.s.SetVisibility(true, true) }, 60},
		{"background multi-window", func() { h.s.SetAppState(false, true) }, 10},
		{"background single window", func() { h.s.SetAppState(false, false) }, 1},
		{"foreground", func() { h.s.SetAppState(true, false) }, 60},
		{"low power", func() { h.s.SetPowerState(power.State{OnBattery: true, LowPower: true}) }, 15},
		{"battery rate without lpm reduction", func() {
			p := config.DefaultPreferences()
			p.Refresh.RefreshRateOnBattery = 30
			off := false
			p.Refresh.ReduceRefreshRateInLPM = &off
			h.s.SetPreferences(*p)
		}, 30},
		{"display cap", func() {
			p := config.DefaultPreferences()
			p.Refresh.RefreshRateOnAC = 200
			p.Refresh.DisplayMaxRate = 90
			h.s.SetPreferences(*p)
			h.s.SetPowerState(power.State{})
		}, 90},
	}

	for _, step := range steps {
		step.apply()
		if got := h.clock.last(); got != step.want {
			t.Errorf("%s: expected %d Hz, got %d", step.name, step.want, got)
		}
		if got := h.s.RefreshRate(); got != step.want {
			t.Errorf("%s: RefreshRate() = %d, want %d", step.name, got, step.want)
		}
	}
}

func TestSession_FollowsStore(t *testing.T) {
	store := config.NewStore(*config.DefaultPreferences())
	h := newHarness(t, Options{Store: store})
	h.start(t)

	p := store.Get()
	p.Refresh.RefreshRateOnAC = 24
	store.Set(p)

	if h.clock.last() != 24 {
		t.Errorf("expected store change to set 24 Hz, got %d", h.clock.last())
	}

	_ = h.s.Stop()
	p.Refresh.RefreshRateOnAC = 48
	store.Set(p)
	if h.clock.last() != 24 {
		t.Error("a stopped session must not follow the store")
	}
}
