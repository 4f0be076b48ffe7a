package instrument

import (
	"time"

	"github.com/allbin/go-instrument/serial"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTerminator ends every outgoing command line.
	DefaultTerminator = "\r\n"

	// DefaultDelay is the pause after each write and before each read.
	DefaultDelay = 500 * time.Millisecond

	// DefaultByteDelay is the pause between single byte reads while a
	// response is still arriving. Slow meters can still be computing a
	// reading when the read starts.
	DefaultByteDelay = 60 * time.Millisecond
)

type options struct {
	terminator  string
	delay       time.Duration
	byteDelay   time.Duration
	readTimeout time.Duration
	diagnostics bool
	strict      bool
	label       string
	log         logrus.FieldLogger
	observer    Observer
	registry    *Registry
	serial      []serial.Option
}

// Option configures a Handle.
type Option func(*options) error

func defaultOptions() options {
	return options{
		terminator: DefaultTerminator,
		delay:      DefaultDelay,
		byteDelay:  DefaultByteDelay,
		log:        logrus.StandardLogger(),
		observer:   nopObserver{},
		registry:   DefaultRegistry(),
	}
}

func newOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return options{}, err
		}
	}
	return o, nil
}

// WithTerminator sets the byte sequence appended to every command.
func WithTerminator(term string) Option {
	return func(o *options) error {
		o.terminator = term
		return nil
	}
}

// WithDelay sets the pause after each write and before each read.
func WithDelay(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return ErrInvalidOption
		}
		o.delay = d
		return nil
	}
}

// WithByteDelay sets the pause between single byte reads.
func WithByteDelay(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return ErrInvalidOption
		}
		o.byteDelay = d
		return nil
	}
}

// WithReadTimeout bounds how long a whole response may keep arriving once a
// read has started polling. Zero, the default, waits until the device stops
// sending. The deadline also applies to the *IDN? read when the handle opens:
// at the default byte delay a 34401A identity takes about 2s to arrive.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return ErrInvalidOption
		}
		o.readTimeout = d
		return nil
	}
}

// WithDiagnostics checks the device error queue after every query. Handles
// from Open also show the port name on the front panel when they open.
func WithDiagnostics() Option {
	return func(o *options) error {
		o.diagnostics = true
		return nil
	}
}

// WithStrict turns logged problems into returned errors: device reported
// errors (requires WithDiagnostics) and failures while closing.
func WithStrict() Option {
	return func(o *options) error {
		o.strict = true
		return nil
	}
}

// WithPortLabel names the port of an adopted transport for logging.
func WithPortLabel(label string) Option {
	return func(o *options) error {
		o.label = label
		return nil
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) error {
		if log == nil {
			return ErrInvalidOption
		}
		o.log = log
		return nil
	}
}

// WithObserver attaches an Observer to every exchange on the handle.
func WithObserver(obs Observer) Option {
	return func(o *options) error {
		if obs == nil {
			return ErrInvalidOption
		}
		o.observer = obs
		return nil
	}
}

// WithRegistry sets the signature registry Classify consults.
func WithRegistry(r *Registry) Option {
	return func(o *options) error {
		if r == nil {
			return ErrInvalidOption
		}
		o.registry = r
		return nil
	}
}

// WithSerialOptions passes framing options through to serial.Open. They are
// ignored for adopted transports.
func WithSerialOptions(opts ...serial.Option) Option {
	return func(o *options) error {
		o.serial = append(o.serial, opts...)
		return nil
	}
}

// WithFraming applies the serial framing and terminator of a known model.
func WithFraming(f Framing) Option {
	return func(o *options) error {
		o.serial = append(o.serial, f.serialOptions()...)
		if f.Terminator != "" {
			o.terminator = f.Terminator
		}
		return nil
	}
}
