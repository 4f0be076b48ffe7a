package instrument

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/allbin/go-instrument/serial"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Commands shared by every instrument family.
const (
	cmdRemote   = ":SYST:REM"
	cmdLocal    = ":SYST:LOC"
	cmdReset    = "*RST"
	cmdIdentify = "*IDN?"
	cmdError    = ":SYST:ERR?"
)

// noError is the error queue response meaning the queue is empty.
const noError = `+0,"No error"`

// Transport is the byte channel a Handle talks over. serial.Port satisfies
// it.
type Transport interface {
	io.ReadWriter
	InputWaiting() (int, error)
	Close() error
}

// Instrument is the common surface of a generic handle and the specialised
// types Classify returns.
type Instrument interface {
	Identity() string
	Port() string
	Category() Category
	WriteLine(cmd string) error
	ReadLine() (string, error)
	Query(cmd string) (string, error)
	Close() error
}

// Handle is a line oriented SCPI session with one instrument. A Handle and
// every specialised value derived from it share one transport and must not
// be used from more than one goroutine at a time.
type Handle struct {
	t        Transport
	owned    bool
	closed   bool
	port     string
	identity string
	category Category
	opts     options
	log      logrus.FieldLogger
}

var _ Instrument = (*Handle)(nil)

// Open opens the serial port, puts the instrument in remote mode and reads
// its identity. A port that cannot be opened yields a *TransportError.
func Open(port string, opts ...Option) (*Handle, error) {
	return OpenContext(context.Background(), port, opts...)
}

// OpenContext is Open with a context bounding the start up exchange.
func OpenContext(ctx context.Context, port string, opts ...Option) (*Handle, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	p, err := serial.Open(port, o.serial...)
	if err != nil {
		return nil, &TransportError{Port: port, Err: err}
	}

	h := newHandle(p, port, true, o)
	if err := h.start(ctx); err != nil {
		if cerr := p.Close(); cerr != nil {
			h.log.WithError(cerr).Warn("close after failed start")
		}
		return nil, err
	}
	return h, nil
}

// New adopts an already open transport. The handle does not own it: Close
// returns the instrument to local mode but leaves the transport open.
func New(t Transport, opts ...Option) (*Handle, error) {
	return NewContext(context.Background(), t, opts...)
}

// NewContext is New with a context bounding the start up exchange.
func NewContext(ctx context.Context, t Transport, opts ...Option) (*Handle, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	label := o.label
	if p, ok := t.(interface{ Path() string }); ok && label == "" {
		label = p.Path()
	}

	h := newHandle(t, label, false, o)
	if err := h.start(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func newHandle(t Transport, port string, owned bool, o options) *Handle {
	return &Handle{
		t:        t,
		owned:    owned,
		port:     port,
		category: CategoryUnknown,
		opts:     o,
		log:      o.log.WithField("port", port),
	}
}

func (h *Handle) start(ctx context.Context) error {
	if err := h.SetRemoteContext(ctx); err != nil {
		return err
	}
	// Only a port this handle opened itself is named on the panel.
	if h.opts.diagnostics && h.owned && h.port != "" {
		if err := h.DisplayTextContext(ctx, strings.TrimPrefix(h.port, "/dev/")); err != nil {
			return err
		}
	}
	id, err := h.QueryContext(ctx, cmdIdentify)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	h.identity = id
	h.log.WithField("identity", id).Debug("instrument identified")
	return nil
}

// Identity returns the *IDN? response read when the handle opened.
func (h *Handle) Identity() string { return h.identity }

// Port returns the serial port name, or the label of an adopted transport.
func (h *Handle) Port() string { return h.port }

// Category returns the category found by Classify, CategoryUnknown before.
func (h *Handle) Category() Category { return h.category }

// WriteLine sends cmd followed by the terminator and waits the inter-op
// delay.
func (h *Handle) WriteLine(cmd string) error {
	return h.WriteLineContext(context.Background(), cmd)
}

// WriteLineContext is WriteLine with a cancellable delay.
func (h *Handle) WriteLineContext(ctx context.Context, cmd string) error {
	if h.closed {
		return ErrClosed
	}

	if err := writeAll(h.t, []byte(cmd+h.opts.terminator)); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	h.log.WithField("command", cmd).Debug("write")
	h.opts.observer.CommandWritten(h.port, cmd)

	return sleep(ctx, h.opts.delay)
}

// ReadLine waits the inter-op delay, then reads byte by byte for as long as
// the transport reports input waiting. The result is whitespace trimmed.
//
// Framing is by timing alone: the response is complete once no byte
// arrives within one byte delay.
func (h *Handle) ReadLine() (string, error) {
	return h.ReadLineContext(context.Background())
}

// ReadLineContext is ReadLine with cancellable delays.
func (h *Handle) ReadLineContext(ctx context.Context) (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	if err := sleep(ctx, h.opts.delay); err != nil {
		return "", err
	}

	var deadline time.Time
	if h.opts.readTimeout > 0 {
		deadline = time.Now().Add(h.opts.readTimeout)
	}

	var buf bytes.Buffer
	one := make([]byte, 1)
	for {
		n, err := h.t.InputWaiting()
		if err != nil {
			return "", fmt.Errorf("poll input: %w", err)
		}
		if n == 0 {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return "", fmt.Errorf("%w (%v, %d bytes read)", ErrReadTimeout, h.opts.readTimeout, buf.Len())
		}

		m, err := h.t.Read(one)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		if m == 1 {
			buf.WriteByte(one[0])
		}
		if err := sleep(ctx, h.opts.byteDelay); err != nil {
			return "", err
		}
	}

	raw := buf.Bytes()
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: % x", ErrDecode, raw)
	}
	h.opts.observer.ResponseRead(h.port, len(raw))

	resp := strings.TrimSpace(string(raw))
	h.log.WithField("response", resp).Debug("read")
	return resp, nil
}

// Query writes cmd and reads the response. With diagnostics enabled the
// error queue is checked afterwards; device errors are logged, and in
// strict mode returned as *DeviceError alongside the response.
func (h *Handle) Query(cmd string) (string, error) {
	return h.QueryContext(context.Background(), cmd)
}

// QueryContext is Query with cancellable delays.
func (h *Handle) QueryContext(ctx context.Context, cmd string) (string, error) {
	start := time.Now()
	if err := h.WriteLineContext(ctx, cmd); err != nil {
		return "", err
	}
	resp, err := h.ReadLineContext(ctx)
	if err != nil {
		return "", err
	}
	h.opts.observer.QueryCompleted(h.port, time.Since(start))

	if h.opts.diagnostics {
		if err := h.checkErrorQueue(ctx, cmd); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (h *Handle) checkErrorQueue(ctx context.Context, cmd string) error {
	if err := h.WriteLineContext(ctx, cmdError); err != nil {
		return err
	}
	resp, err := h.ReadLineContext(ctx)
	if err != nil {
		return err
	}
	if IsNoError(resp) {
		return nil
	}

	h.log.WithFields(logrus.Fields{
		"command":  cmd,
		"response": resp,
	}).Warn("instrument reported an error")
	h.opts.observer.DeviceError(h.port, cmd, resp)

	if h.opts.strict {
		return &DeviceError{Port: h.port, Command: cmd, Response: resp}
	}
	return nil
}

// IsNoError reports whether an error queue response means "no error".
func IsNoError(resp string) bool {
	return resp == "" || resp == noError
}

// ErrorQueue reads one entry from the device error queue.
func (h *Handle) ErrorQueue() (string, error) {
	return h.ErrorQueueContext(context.Background())
}

// ErrorQueueContext is ErrorQueue with cancellable delays.
func (h *Handle) ErrorQueueContext(ctx context.Context) (string, error) {
	if err := h.WriteLineContext(ctx, cmdError); err != nil {
		return "", err
	}
	return h.ReadLineContext(ctx)
}

// SetRemote puts the instrument in remote mode. Most instruments ignore
// commands until this has been sent.
func (h *Handle) SetRemote() error {
	return h.SetRemoteContext(context.Background())
}

// SetRemoteContext is SetRemote with a cancellable delay.
func (h *Handle) SetRemoteContext(ctx context.Context) error {
	return h.WriteLineContext(ctx, cmdRemote)
}

// SetLocal returns front panel control to the user.
func (h *Handle) SetLocal() error {
	return h.SetLocalContext(context.Background())
}

// SetLocalContext is SetLocal with a cancellable delay.
func (h *Handle) SetLocalContext(ctx context.Context) error {
	return h.WriteLineContext(ctx, cmdLocal)
}

// Reset sends *RST.
func (h *Handle) Reset() error {
	return h.ResetContext(context.Background())
}

// ResetContext is Reset with a cancellable delay.
func (h *Handle) ResetContext(ctx context.Context) error {
	return h.WriteLineContext(ctx, cmdReset)
}

// DisplayText shows text on the front panel display.
func (h *Handle) DisplayText(text string) error {
	return h.DisplayTextContext(context.Background(), text)
}

// DisplayTextContext is DisplayText with a cancellable delay.
func (h *Handle) DisplayTextContext(ctx context.Context, text string) error {
	quoted := strings.ReplaceAll(text, "'", "''")
	return h.WriteLineContext(ctx, ":DISP:TEXT '"+quoted+"'")
}

// Classify looks the identity up in the registry and returns the matching
// specialised instrument, sharing this handle's transport. Unknown
// identities return nil, nil.
func (h *Handle) Classify() (Instrument, error) {
	return h.ClassifyContext(context.Background())
}

// ClassifyContext is Classify with a context for the power supply reset.
func (h *Handle) ClassifyContext(ctx context.Context) (Instrument, error) {
	c := h.opts.registry.Lookup(h.identity)
	h.log.WithFields(logrus.Fields{
		"identity": h.identity,
		"category": c,
	}).Debug("classify")

	switch c {
	case CategoryMultimeter:
		return NewMultimeter(h), nil
	case CategoryFunctionGenerator:
		return NewFunctionGenerator(h), nil
	case CategoryPowerSupply:
		return NewPowerSupplyContext(ctx, h)
	default:
		return nil, nil
	}
}

// Close returns the instrument to local mode and closes the transport if
// the handle opened it. Failures are logged; in strict mode they are also
// returned. Closing twice is a no-op.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}

	var err error
	if lerr := h.SetLocal(); lerr != nil {
		h.log.WithError(lerr).Warn("return to local mode")
		err = multierr.Append(err, lerr)
	}
	if h.owned {
		if cerr := h.t.Close(); cerr != nil {
			h.log.WithError(cerr).Warn("close transport")
			err = multierr.Append(err, cerr)
		}
	}
	h.closed = true

	if h.opts.strict {
		return err
	}
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
