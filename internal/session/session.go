// Package session implements the terminal session engine.
//
// A Session owns one subprocess, one terminal emulator and the refresh
// clock between them. Subprocess output is appended to an ingest buffer
// from the subprocess's goroutine; on every clock tick a single worker
// goroutine drains the buffer into the emulator and, if anything changed,
// dispatches a BufferSnapshot to the display layer. Every call into the
// emulator happens on that worker.
//
// Callbacks never run on the worker. They are handed to the session's
// Dispatcher, which delivers them in order on the display layer's
// goroutine.
package session

import (
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/google/uuid"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/ingest"
	"github.com/Gaurav-Gosain/newterm/internal/power"
	"github.com/Gaurav-Gosain/newterm/internal/refresh"
	"github.com/Gaurav-Gosain/newterm/internal/subprocess"
	"github.com/Gaurav-Gosain/newterm/internal/vt"
)

// Process is the subprocess a session drives. *subprocess.PTY implements it.
type Process interface {
	Start(h subprocess.Handler) error
	Stop() error
	Write(p []byte) error
	SetSize(cols, rows int) error
	CheckLiveness()
	// OutputDone is closed once the process will deliver no more data.
	OutputDone() <-chan struct{}
}

const (
	// stopDrainInterval is how often Stop drains while the subprocess
	// finishes delivering output.
	stopDrainInterval = 5 * time.Millisecond

	// stopDrainTimeout bounds that wait.
	stopDrainTimeout = 2 * time.Second
)

// Callbacks receive session events on the Dispatcher's goroutine. Any of
// them may be nil.
type Callbacks struct {
	// OnRefresh receives a snapshot whenever the screen or cursor changed.
	OnRefresh func(BufferSnapshot)

	// OnScroll asks the display to scroll to the bottom.
	OnScroll func(animated bool)

	// OnBell is called when the bell rings, at most once a second.
	OnBell func(Bell)

	// OnStateChanged is called once for every dirty, bell or title change.
	OnStateChanged func(State)

	// OnCurrentFileChanged reports the document and working directory the
	// program announced. Both are empty when the program runs remotely.
	OnCurrentFileChanged func(file, workingDirectory string)

	// OnError reports a start failure (once the display is ready) or a
	// runtime I/O error. The session stays open.
	OnError func(error)

	// OnClose is called when the subprocess exited normally.
	OnClose func()
}

// rateClock is the periodic clock driving ticks.
type rateClock interface {
	SetRate(hz int)
	Stop()
}

// Options configure a Session.
type Options struct {
	// ID identifies the session. A random UUID is used when empty.
	ID string

	// Process overrides the PTY subprocess. When nil, a shell is started
	// with the fields below.
	Process Process
	Shell   string
	Args    []string
	Dir     string
	Env     []string
	Version string

	// Cols and Rows are the initial size until the display lays out.
	Cols, Rows int

	// Preferences are the initial preferences. When nil, Store is
	// consulted, then the defaults.
	Preferences *config.Preferences

	// Store, when set, pushes preference changes into the session.
	Store *config.Store

	// Dispatcher delivers callbacks. When nil, callbacks run in order on a
	// goroutine owned by the session.
	Dispatcher Dispatcher
	Callbacks  Callbacks

	Logger *log.Logger
}

// Session is a running terminal session.
type Session struct {
	id     string
	logger *log.Logger
	cb     Callbacks

	proc       Process
	ingest     *ingest.Buffer
	worker     *worker
	dispatcher Dispatcher
	ownedDisp  *worker
	clock      rateClock
	resizer    resizeNegotiator
	now        func() time.Time

	tickPending atomic.Bool

	// Owned by the worker.
	emu              *vt.Emulator
	sm               *stateMachine
	lastCursor       uv.Position
	cursorVisChanged bool
	terminated       bool
	bannerShown      bool

	mu             sync.Mutex
	prefs          config.Preferences
	inputs         refresh.Inputs
	rate           int
	started        bool
	launched       bool
	stopping       bool
	exited         bool
	startErr       error
	ready          bool
	readyDelivered bool
	launchedAt     time.Time
	cwd, file      string
	unsubscribe    func()
	onStop         func()

	exitOnce sync.Once
	exitedCh chan struct{}
}

// New creates a session. The subprocess is not started until Start.
func New(opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("session", shortID(id))

	var prefs config.Preferences
	switch {
	case opts.Preferences != nil:
		prefs = opts.Preferences.Clone()
	case opts.Store != nil:
		prefs = opts.Store.Get()
	default:
		prefs = *config.DefaultPreferences()
	}

	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = config.DefaultCols
	}
	if rows <= 0 {
		rows = config.DefaultRows
	}

	proc := opts.Process
	if proc == nil {
		proc = subprocess.New(subprocess.Options{
			Shell:          opts.Shell,
			PreferredShell: prefs.Shell.PreferredShell,
			Args:           opts.Args,
			Dir:            opts.Dir,
			Env:            opts.Env,
			Cols:           cols,
			Rows:           rows,
			Version:        opts.Version,
			Logger:         logger,
		})
	}

	s := &Session{
		id:         id,
		logger:     logger,
		cb:         opts.Callbacks,
		proc:       proc,
		ingest:     ingest.New(ingest.DefaultHighWaterMark),
		worker:     newWorker(),
		dispatcher: opts.Dispatcher,
		now:        time.Now,
		lastCursor: uv.Pos(-1, -1),
		prefs:      prefs,
		inputs: refresh.Inputs{
			TabVisible:    true,
			AppForeground: true,
		},
		exitedCh: make(chan struct{}),
	}
	if s.dispatcher == nil {
		s.ownedDisp = newWorker()
		s.dispatcher = s.ownedDisp
	}
	s.clock = refresh.NewClock(s.requestTick)

	localUser, localHost := localIdentity()
	s.sm = newStateMachine(localUser, localHost, func() time.Time { return s.now() })

	s.emu = vt.NewEmulator(cols, rows)
	s.emu.SetScrollbackMaxLines(prefs.Shell.ScrollbackLines)
	s.emu.SetCallbacks(vt.Callbacks{
		Bell:             s.onBell,
		Title:            s.onTitle,
		CursorVisibility: func(bool) { s.cursorVisChanged = true },
		HostDocument:     s.onHostDocument,
		RemoteHost:       s.onRemoteHost,
		Send:             s.onSend,
	})

	if opts.Store != nil {
		s.unsubscribe = opts.Store.Subscribe(s.SetPreferences)
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Start spawns the subprocess and starts the refresh clock. A spawn
// failure is not returned: it is held and delivered through OnError once
// DisplayReady has been called, and the failure banner is shown on the
// first valid resize.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.launchedAt = s.now()
	s.mu.Unlock()

	err := s.proc.Start(procHandler{s})

	s.mu.Lock()
	s.launched = true
	if err != nil {
		s.startErr = fmt.Errorf("failed to start subprocess: %w", err)
		s.logger.Error("subprocess failed to start", "err", err)
	}
	s.updateRateLocked()
	s.mu.Unlock()

	s.deliverReady()
	return nil
}

// StartError returns the held spawn failure, if any.
func (s *Session) StartError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}

// DisplayReady tells the session that the display can show errors and
// accept output. A held start failure is delivered now; otherwise the
// configured initial command is typed into the shell.
func (s *Session) DisplayReady() {
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	s.deliverReady()
}

func (s *Session) deliverReady() {
	s.mu.Lock()
	if !s.ready || !s.launched || s.readyDelivered || s.stopping {
		s.mu.Unlock()
		return
	}
	s.readyDelivered = true
	startErr := s.startErr
	command := s.prefs.Shell.InitialCommand
	s.mu.Unlock()

	if startErr != nil {
		s.emitError(startErr)
		return
	}
	if command != "" {
		if err := s.proc.Write([]byte(command + "\r")); err != nil {
			s.logger.Warn("failed to send initial command", "err", err)
		}
	}
}

// Stop stops the clock and the subprocess, renders any remaining output
// followed by the termination message, and shuts the worker down. Only
// the first call has any effect.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	running := s.started && s.startErr == nil
	unsubscribe := s.unsubscribe
	onStop := s.onStop
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.clock.Stop()

	var err error
	if running {
		if stopErr := s.proc.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop subprocess: %w", stopErr)
		}
	}

	if running {
		s.awaitOutput()
	}

	s.worker.Do(func() {
		s.writeTermination()
		s.tick()
	})
	s.ingest.Close()
	s.worker.Stop()
	s.markExited()

	if s.ownedDisp != nil {
		s.ownedDisp.Close()
	}
	if onStop != nil {
		onStop()
	}

	s.logger.Info("session stopped")
	return err
}

// awaitOutput drains on the worker until the subprocess has delivered its
// last chunk, so producers blocked on backpressure finish and nothing they
// still hold lands after the termination message.
func (s *Session) awaitOutput() {
	done := s.proc.OutputDone()
	deadline := time.NewTimer(stopDrainTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(stopDrainInterval)
	defer ticker.Stop()

	for {
		s.worker.Do(s.tick)
		select {
		case <-done:
			return
		case <-deadline.C:
			s.logger.Warn("subprocess output did not finish, discarding the rest")
			return
		case <-ticker.C:
		}
	}
}

// Exited is closed once the subprocess has exited and its output has been
// rendered, or the session was stopped.
func (s *Session) Exited() <-chan struct{} {
	return s.exitedCh
}

func (s *Session) markExited() {
	s.exitOnce.Do(func() { close(s.exitedCh) })
}

// Write sends keyboard input to the subprocess, unbuffered.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	stopping, started := s.stopping, s.started
	s.mu.Unlock()

	switch {
	case stopping:
		return ErrSessionClosed
	case !started:
		return ErrNotStarted
	}
	return s.proc.Write(p)
}

// FeedExternal injects p into the output stream after any output already
// queued. It is subject to the same backpressure as subprocess output.
func (s *Session) FeedExternal(p []byte) error {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return ErrSessionClosed
	}
	s.ingest.Append(p)
	return nil
}

// Clear resets the emulator and makes the program redraw by briefly
// narrowing the subprocess by one column.
func (s *Session) Clear() error {
	s.mu.Lock()
	stopping, running := s.stopping, s.launched && s.startErr == nil
	s.mu.Unlock()
	if stopping {
		return ErrSessionClosed
	}

	s.worker.Submit(func() {
		s.emu.ResetToInitialState()
		if !running {
			return
		}
		cols, rows := s.emu.Cols(), s.emu.Rows()
		if err := s.proc.SetSize(max(cols-1, 1), rows); err != nil {
			s.logger.Debug("redraw resize failed", "err", err)
			return
		}
		s.worker.Submit(func() {
			if err := s.proc.SetSize(cols, rows); err != nil {
				s.logger.Debug("redraw resize failed", "err", err)
			}
		})
	})
	return nil
}

// CurrentScreenText returns the entire buffer, scrollback followed by the
// screen, as contiguous text. ok is false once the session has stopped.
func (s *Session) CurrentScreenText() (text string, ok bool) {
	ok = s.worker.Do(func() {
		text = s.emu.Text(0, s.emu.ScrollbackLen()+s.emu.Rows())
	})
	return text, ok
}

// GetAllText is CurrentScreenText.
func (s *Session) GetAllText() (text string, ok bool) {
	return s.CurrentScreenText()
}

// State returns the current dirty, bell and title state.
func (s *Session) State() State {
	var st State
	s.worker.Do(func() { st = s.sm.state() })
	return st
}

// WorkingDirectory returns the last local working directory the program
// reported.
func (s *Session) WorkingDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// CurrentFile returns the last local document the program reported, or
// its working directory.
func (s *Session) CurrentFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// RefreshRate returns the rate currently selected for the clock.
func (s *Session) RefreshRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetVisibility records whether the session's tab and window are visible.
func (s *Session) SetVisibility(tabVisible, windowVisible bool) {
	s.mu.Lock()
	s.inputs.TabVisible = tabVisible
	s.updateRateLocked()
	s.mu.Unlock()

	visible := tabVisible && windowVisible
	s.worker.Submit(func() {
		if s.sm.setVisible(visible) {
			s.notifyState()
		}
	})
}

// SetAppState records whether the application is in the foreground and
// whether it can show more than one window at a time.
func (s *Session) SetAppState(foreground, multiWindow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs.AppForeground = foreground
	s.inputs.MultiWindow = multiWindow
	s.updateRateLocked()
}

// SetPowerState records the current power source and low-power state.
func (s *Session) SetPowerState(st power.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs.OnBattery = st.OnBattery
	s.inputs.LowPower = st.LowPower
	s.updateRateLocked()
}

// SetPreferences applies new preferences.
func (s *Session) SetPreferences(p config.Preferences) {
	s.mu.Lock()
	s.prefs = p.Clone()
	s.updateRateLocked()
	s.mu.Unlock()

	s.worker.Submit(func() {
		s.emu.SetScrollbackMaxLines(p.Shell.ScrollbackLines)
	})
}

// updateRateLocked re-selects the refresh rate. s.mu must be held. The
// clock's tick never takes s.mu, so waiting for the old ticker here is
// safe.
func (s *Session) updateRateLocked() {
	if !s.launched || s.stopping || s.exited {
		return
	}

	in := s.inputs
	in.ReduceInLowPower = s.prefs.Refresh.ReduceInLowPower()
	in.RateOnAC = s.prefs.Refresh.RefreshRateOnAC
	in.RateOnBattery = s.prefs.Refresh.RefreshRateOnBattery
	in.DisplayMax = s.prefs.Refresh.DisplayMaxRate

	rate := refresh.Select(in)
	if rate == s.rate {
		return
	}
	s.rate = rate
	s.clock.SetRate(rate)
	s.logger.Debug("refresh rate changed", "hz", rate)
}

// requestTick is called by the clock. At most one tick is queued at a time.
func (s *Session) requestTick() {
	if !s.tickPending.CompareAndSwap(false, true) {
		return
	}
	if !s.worker.Submit(s.runTick) {
		s.tickPending.Store(false)
	}
}

func (s *Session) runTick() {
	s.tickPending.Store(false)
	s.tick()
}

// tick runs on the worker.
func (s *Session) tick() {
	if data := s.ingest.DrainAll(); data != nil {
		s.emu.Feed(data)
	}

	cursor := s.emu.CursorLocation()
	cursor.Y += s.emu.TopVisibleRow()

	_, _, changed := s.emu.ScrollInvariantUpdateRange()
	if !changed && cursor == s.lastCursor && !s.cursorVisChanged {
		return
	}

	s.emu.ClearUpdateRange()
	s.lastCursor = cursor
	s.cursorVisChanged = false

	snap := newSnapshot(s.emu, cursor)
	s.emit(func(cb Callbacks) {
		if cb.OnRefresh != nil {
			cb.OnRefresh(snap)
		}
	})

	if s.sm.outputArrived() {
		s.notifyState()
	}
}

// emit hands fn to the dispatcher.
func (s *Session) emit(fn func(cb Callbacks)) {
	cb := s.cb
	s.dispatcher.Dispatch(func() { fn(cb) })
}

func (s *Session) emitError(err error) {
	s.emit(func(cb Callbacks) {
		if cb.OnError != nil {
			cb.OnError(err)
		}
	})
}

// notifyState runs on the worker.
func (s *Session) notifyState() {
	st := s.sm.state()
	s.emit(func(cb Callbacks) {
		if cb.OnStateChanged != nil {
			cb.OnStateChanged(st)
		}
	})
}

// writeTermination queues the termination message once. Worker only.
func (s *Session) writeTermination() {
	if s.terminated {
		return
	}
	s.terminated = true
	s.ingest.AppendNoWait(terminationMessage(s.emu.Cols(), processCompletedMessage))
}

func (s *Session) handleDisconnect(err error) {
	s.mu.Lock()
	if s.stopping || s.exited {
		s.mu.Unlock()
		return
	}
	s.exited = true
	elapsed := s.now().Sub(s.launchedAt)
	s.mu.Unlock()

	s.logger.Info("subprocess disconnected", "err", err, "elapsed", elapsed.Round(time.Millisecond))

	s.worker.Submit(func() {
		s.writeTermination()
		s.clock.Stop()
		s.tick()
		s.markExited()

		switch {
		case err != nil:
			s.emitError(err)
		case elapsed > config.CrashWindow:
			s.emit(func(cb Callbacks) {
				if cb.OnClose != nil {
					cb.OnClose()
				}
			})
		default:
			s.logger.Warn("subprocess exited right after launch, keeping session open", "elapsed", elapsed)
		}
	})
}

// Emulator callbacks. These run on the worker, inside Feed.

func (s *Session) onBell() {
	changed, notify := s.sm.bell()
	if notify {
		s.mu.Lock()
		bell := Bell{Visual: s.prefs.Bell.VisualEnabled(), Sound: s.prefs.Bell.SoundEnabled()}
		s.mu.Unlock()
		if bell.Visual || bell.Sound {
			s.emit(func(cb Callbacks) {
				if cb.OnBell != nil {
					cb.OnBell(bell)
				}
			})
		}
	}
	if changed {
		s.notifyState()
	}
}

func (s *Session) onTitle(title string) {
	if s.sm.setRawTitle(title) {
		s.notifyState()
	}
}

func (s *Session) onRemoteHost(user, host string) {
	if s.sm.setRemoteHost(user, host) {
		s.notifyState()
	}
}

func (s *Session) onHostDocument(workingDirectory, document string) {
	cwdURL, cwdOK := parseFileURL(workingDirectory)
	docURL, docOK := parseFileURL(document)

	switch {
	case docOK:
		if s.sm.setHostname(docURL.Host) {
			s.notifyState()
		}
	case cwdOK:
		if s.sm.setHostname(cwdURL.Host) {
			s.notifyState()
		}
	default:
		return
	}

	var cwd, file string
	if s.sm.isLocal() {
		if cwdOK {
			cwd = cwdURL.Path
		}
		if docOK {
			file = docURL.Path
		}
	}
	if file == "" {
		file = cwd
	}

	s.mu.Lock()
	s.cwd, s.file = cwd, file
	s.mu.Unlock()

	s.emit(func(cb Callbacks) {
		if cb.OnCurrentFileChanged != nil {
			cb.OnCurrentFileChanged(file, cwd)
		}
	})
}

func parseFileURL(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" {
		return nil, false
	}
	return u, true
}

// onSend queues a reply to a device query. It is written after the
// current Feed returns.
func (s *Session) onSend(p []byte) {
	reply := make([]byte, len(p))
	copy(reply, p)
	s.worker.Submit(func() {
		if err := s.proc.Write(reply); err != nil {
			s.logger.Debug("failed to answer terminal query", "err", err)
		}
	})
}

// procHandler adapts subprocess events to the session.
type procHandler struct{ s *Session }

func (h procHandler) Connected() {
	h.s.logger.Debug("subprocess connected")
}

func (h procHandler) DataReceived(p []byte) {
	h.s.ingest.Append(p)
}

func (h procHandler) IOError(err error) {
	h.s.logger.Warn("subprocess I/O error", "err", err)
	h.s.emitError(err)
}

func (h procHandler) Disconnected(err error) {
	h.s.handleDisconnect(err)
}
