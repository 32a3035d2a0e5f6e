package vt

import (
	"bytes"
	"strings"
)

// handleOsc handles an OSC sequence. data includes the numeric command and
// its separator, e.g. "2;title".
func (e *Emulator) handleOsc(cmd int, data []byte) {
	_, arg, ok := bytes.Cut(data, []byte{';'})
	if !ok {
		arg = nil
	}

	switch cmd {
	case 0, 2:
		e.title = string(arg)
		if e.cb.Title != nil {
			e.cb.Title(e.title)
		}
	case 1:
		// Icon name only.
	case 6:
		e.document = string(arg)
		e.reportHostDocument()
	case 7:
		e.cwd = string(arg)
		e.reportHostDocument()
	case 1337:
		e.handleITerm(string(arg))
	}
}

func (e *Emulator) reportHostDocument() {
	if e.cb.HostDocument != nil {
		e.cb.HostDocument(e.cwd, e.document)
	}
}

// handleITerm handles the subset of OSC 1337 used for shell integration.
func (e *Emulator) handleITerm(arg string) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || key != "RemoteHost" {
		return
	}
	user, host, found := strings.Cut(value, "@")
	if !found {
		user, host = "", value
	}
	if e.cb.RemoteHost != nil {
		e.cb.RemoteHost(user, host)
	}
}
