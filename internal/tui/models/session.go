package models

import (
	"context"
	"sync"

	instrument "github.com/allbin/go-instrument"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// ConnectionStatusMsg reports the outcome of opening the instrument.
type ConnectionStatusMsg struct {
	Handle *instrument.Handle
	Error  error
}

// Session is the state shared by console views: the open instrument, the
// input mode and whether a command is in flight. An instrument handle serves
// one exchange at a time: a command runs between Begin and Done, and Cleanup
// waits for it before closing the handle.
type Session struct {
	handle   *instrument.Handle
	portPath string

	connected bool
	busy      bool
	closed    bool
	err       error
	ready     bool

	inputMode InputMode

	cancel   context.CancelFunc
	ctx      context.Context
	inflight sync.WaitGroup
	mu       sync.RWMutex
}

func NewSession(portPath string) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		portPath:  portPath,
		inputMode: InputModeNormal,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Session) Handle() *instrument.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Attach hands the opened instrument to the session, which closes it in
// Cleanup. It reports false once Cleanup has started; the caller still owns
// h then and must close it.
func (s *Session) Attach(h *instrument.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.handle = h
	s.connected = h != nil
	return true
}

func (s *Session) PortPath() string {
	return s.portPath
}

func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) Err() error {
	return s.err
}

func (s *Session) SetError(err error) {
	s.err = err
}

func (s *Session) IsReady() bool {
	return s.ready
}

func (s *Session) SetReady(ready bool) {
	s.ready = ready
}

func (s *Session) IsBusy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Begin marks a command in flight. It reports false if the session has no
// instrument, another command is still running or Cleanup has started.
func (s *Session) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil || s.busy || s.closed {
		return false
	}
	s.busy = true
	s.inflight.Add(1)
	return true
}

// Done ends the command started by Begin. Call it from the goroutine that
// used the handle, once it is finished with it.
func (s *Session) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy {
		return
	}
	s.busy = false
	s.inflight.Done()
}

func (s *Session) InputMode() InputMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputMode
}

func (s *Session) SetInputMode(mode InputMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputMode = mode
}

func (s *Session) IsInInsertMode() bool {
	return s.InputMode() == InputModeInsert
}

// Context is cancelled by Cleanup and bounds every command the session runs.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Cleanup cancels outstanding commands, waits for a running one to return
// and then hands the instrument back to local mode.
func (s *Session) Cleanup() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.inflight.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	s.connected = false
	return err
}
