package models

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	instrument "github.com/allbin/go-instrument"
	"github.com/sirupsen/logrus/hooks/test"
)

// lineTransport records complete command lines and answers *IDN?. It is
// shared between the test goroutine and a running command.
type lineTransport struct {
	mu      sync.Mutex
	inbuf   bytes.Buffer
	pending []byte
	lines   []string
}

func (f *lineTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbuf.Write(p)
	for {
		data := f.inbuf.String()
		i := strings.Index(data, instrument.DefaultTerminator)
		if i < 0 {
			break
		}
		line := data[:i]
		f.inbuf.Next(i + len(instrument.DefaultTerminator))
		f.lines = append(f.lines, line)
		if line == "*IDN?" {
			f.pending = append(f.pending, "ACME,DMM1,0,1.0"+instrument.DefaultTerminator...)
		}
	}
	return len(p), nil
}

func (f *lineTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *lineTransport) InputWaiting() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending), nil
}

func (f *lineTransport) Close() error {
	return nil
}

func (f *lineTransport) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func newSessionHandle(t *testing.T) (*instrument.Handle, *lineTransport) {
	t.Helper()
	log, _ := test.NewNullLogger()
	f := &lineTransport{}
	h, err := instrument.New(f,
		instrument.WithDelay(0),
		instrument.WithByteDelay(0),
		instrument.WithLogger(log),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h, f
}

func TestInputModeString(t *testing.T) {
	if InputModeNormal.String() != "NORMAL" {
		t.Errorf("Expected NORMAL, got %s", InputModeNormal)
	}
	if InputModeInsert.String() != "INSERT" {
		t.Errorf("Expected INSERT, got %s", InputModeInsert)
	}
}

func TestSessionWithoutHandle(t *testing.T) {
	s := NewSession("/dev/ttyUSB0")

	if s.PortPath() != "/dev/ttyUSB0" {
		t.Errorf("Expected port path /dev/ttyUSB0, got %s", s.PortPath())
	}
	if s.IsConnected() {
		t.Error("Expected new session to be disconnected")
	}
	if s.Begin() {
		t.Error("Expected Begin to fail without an instrument")
	}
	s.Done()

	s.SetInputMode(InputModeInsert)
	if !s.IsInInsertMode() {
		t.Error("Expected insert mode")
	}

	if err := s.Cleanup(); err != nil {
		t.Errorf("Cleanup failed: %v", err)
	}
	if s.Context().Err() == nil {
		t.Error("Expected context cancelled after Cleanup")
	}
}

func TestSessionBeginIsExclusive(t *testing.T) {
	h, _ := newSessionHandle(t)
	s := NewSession("/dev/ttyUSB0")
	if !s.Attach(h) {
		t.Fatal("Expected Attach to succeed")
	}
	if !s.IsConnected() {
		t.Error("Expected session connected after Attach")
	}

	if !s.Begin() {
		t.Fatal("Expected first Begin to succeed")
	}
	if s.Begin() {
		t.Error("Expected second Begin to fail while busy")
	}
	s.Done()
	if s.IsBusy() {
		t.Error("Expected session idle after Done")
	}
	if !s.Begin() {
		t.Error("Expected Begin to succeed after Done")
	}
	s.Done()
}

func TestCleanupWaitsForRunningCommand(t *testing.T) {
	h, f := newSessionHandle(t)
	s := NewSession("/dev/ttyUSB0")
	s.Attach(h)

	if !s.Begin() {
		t.Fatal("Begin failed")
	}
	started := make(chan struct{})
	var finished atomic.Bool
	go func() {
		defer s.Done()
		close(started)
		ctx := s.Context()
		for {
			if _, err := h.QueryContext(ctx, "MEAS?"); err != nil {
				break
			}
		}
		finished.Store(true)
	}()

	<-started
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if !finished.Load() {
		t.Error("Expected Cleanup to return after the running command")
	}
	if s.IsConnected() {
		t.Error("Expected session disconnected after Cleanup")
	}

	lines := f.Lines()
	if len(lines) == 0 || lines[len(lines)-1] != ":SYST:LOC" {
		t.Errorf("Expected :SYST:LOC written last, got %q", lines)
	}
	if s.Begin() {
		t.Error("Expected Begin to fail after Cleanup")
	}
}

func TestAttachAfterCleanup(t *testing.T) {
	h, f := newSessionHandle(t)
	s := NewSession("/dev/ttyUSB0")
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if s.Attach(h) {
		t.Error("Expected Attach to fail after Cleanup")
	}
	if s.Handle() != nil {
		t.Error("Expected no handle stored after Cleanup")
	}
	for _, line := range f.Lines() {
		if line == ":SYST:LOC" {
			t.Error("Expected a rejected handle to be left to its owner")
		}
	}
}
