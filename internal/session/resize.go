package session

import "sync"

// ScreenSize is a candidate size for the terminal, as laid out by the
// display layer.
type ScreenSize struct {
	Cols, Rows int

	// CellWidth and CellHeight are the size of one cell. Zero means the
	// surface has not been laid out yet.
	CellWidth, CellHeight float64

	// OriginX and OriginY place the surface within its parent. They are
	// negative while a layout is still in progress.
	OriginX, OriginY float64
}

// ready reports whether the size can be forwarded. Sizes that fail this
// check are dropped; the next layout pass supplies a new one.
func (s ScreenSize) ready() bool {
	return s.Cols > 0 && s.Rows > 0 &&
		s.CellWidth > 0 && s.CellHeight > 0 &&
		s.OriginX >= 0 && s.OriginY >= 0
}

// resizeNegotiator holds back resize requests while the display layer is
// resizing interactively.
type resizeNegotiator struct {
	mu          sync.Mutex
	interactive bool
	pending     ScreenSize
	hasPending  bool
}

// offer reports whether size should be applied now.
func (r *resizeNegotiator) offer(size ScreenSize) bool {
	if !size.ready() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interactive {
		r.pending = size
		r.hasPending = true
		return false
	}
	return true
}

// setInteractive toggles suppression. Ending it returns the last size
// offered while it was on.
func (r *resizeNegotiator) setInteractive(on bool) (ScreenSize, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactive = on
	if on || !r.hasPending {
		return ScreenSize{}, false
	}
	size := r.pending
	r.pending, r.hasPending = ScreenSize{}, false
	return size, true
}

// RequestResize offers a new display size. Invalid sizes and sizes offered
// during interactive resizing are not forwarded; the latter are
// reconsidered when interactive resizing ends.
func (s *Session) RequestResize(size ScreenSize) {
	if !s.resizer.offer(size) {
		return
	}
	s.worker.Submit(func() { s.applyResize(size) })
}

// SetInteractiveResizing suppresses resizes while on is true.
func (s *Session) SetInteractiveResizing(on bool) {
	if size, ok := s.resizer.setInteractive(on); ok {
		s.RequestResize(size)
	}
}

// applyResize runs on the worker.
func (s *Session) applyResize(size ScreenSize) {
	s.mu.Lock()
	startErr := s.startErr
	s.mu.Unlock()

	if startErr != nil {
		if size.Cols != s.emu.Cols() || size.Rows != s.emu.Rows() {
			s.emu.Resize(size.Cols, size.Rows)
		}
		if !s.bannerShown {
			s.bannerShown = true
			s.ingest.AppendNoWait(diagnosticBanner(size.Cols, size.Rows, startFailedMessage+": "+startErr.Error()))
		}
		return
	}

	if size.Cols == s.emu.Cols() && size.Rows == s.emu.Rows() {
		s.emit(func(cb Callbacks) {
			if cb.OnScroll != nil {
				cb.OnScroll(true)
			}
		})
		return
	}

	if err := s.proc.SetSize(size.Cols, size.Rows); err != nil {
		s.logger.Warn("subprocess resize failed", "cols", size.Cols, "rows", size.Rows, "err", err)
	}
	s.emu.Resize(size.Cols, size.Rows)
	s.proc.CheckLiveness()

	s.logger.Debug("resized", "cols", size.Cols, "rows", size.Rows)
}
