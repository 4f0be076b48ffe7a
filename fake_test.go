package instrument

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	idMultimeter  = "HEWLETT-PACKARD,34401A,0,11-5-2"
	idFuncGen     = "HEWLETT-PACKARD,33120A,0,10.0-5.0-1.0"
	idPowerSupply = "Agilent Technologies,E3646A,0,1.4-5.0-1.0"
)

// fakeTransport answers complete command lines from a reply table. Lines
// with no entry get no response.
type fakeTransport struct {
	replies  map[string]string
	lines    []string
	inbuf    bytes.Buffer
	pending  []byte
	closed   bool
	closeErr error

	// chunk limits how many bytes one Write accepts.
	chunk int
	// endless keeps reporting input waiting forever.
	endless bool
}

func newFake(identity string) *fakeTransport {
	return &fakeTransport{replies: map[string]string{
		"*IDN?":      identity,
		":SYST:ERR?": `+0,"No error"`,
	}}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("fake closed")
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	f.inbuf.Write(p)
	for {
		data := f.inbuf.String()
		i := strings.Index(data, DefaultTerminator)
		if i < 0 {
			break
		}
		line := data[:i]
		f.inbuf.Next(i + len(DefaultTerminator))
		f.lines = append(f.lines, line)
		if r, ok := f.replies[line]; ok {
			f.pending = append(f.pending, r+DefaultTerminator...)
		}
	}
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	if f.endless {
		p[0] = 'x'
		return 1, nil
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeTransport) InputWaiting() (int, error) {
	if f.endless {
		return 1, nil
	}
	return len(f.pending), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return f.closeErr
}

// take returns the lines written since the last call.
func (f *fakeTransport) take() []string {
	l := f.lines
	f.lines = nil
	return l
}

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

// fastOptions removes all delays so tests run without sleeping.
func fastOptions(extra ...Option) []Option {
	return append([]Option{
		WithDelay(0),
		WithByteDelay(0),
		WithLogger(quietLogger()),
	}, extra...)
}

func newTestHandle(t *testing.T, f *fakeTransport, extra ...Option) *Handle {
	t.Helper()
	h, err := New(f, fastOptions(extra...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.take()
	return h
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
