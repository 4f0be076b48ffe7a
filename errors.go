package instrument

import (
	"errors"
	"fmt"
)

var (
	ErrClosed               = errors.New("instrument handle is closed")
	ErrDecode               = errors.New("response is not valid UTF-8 text")
	ErrReadTimeout          = errors.New("response still arriving after read timeout")
	ErrInvalidOption        = errors.New("invalid instrument option")
	ErrInvalidSampleCount   = errors.New("sample count must be at least 1")
	ErrReadingCount         = errors.New("response holds the wrong number of readings")
	ErrInvalidOutput        = errors.New("unknown power supply output")
	ErrInvalidSetting       = errors.New("invalid range/resolution setting")
	ErrConflictingSignature = errors.New("identity registered under more than one category")
	ErrMalformedIdentity    = errors.New("identity is not <vendor>,<model>,<serial>,<firmware>")
)

// TransportError is returned when the serial port behind a handle cannot be
// opened.
type TransportError struct {
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("open transport %s: %v", e.Port, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeviceError carries a fault the instrument reported in its own error
// queue after Command was sent. Only produced in strict diagnostics mode.
type DeviceError struct {
	Port     string
	Command  string
	Response string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device reported %s after %q", e.Port, e.Response, e.Command)
}

// ParseError reports a measurement field that is not a number. Index is the
// position of the field in the comma separated response.
type ParseError struct {
	Index int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reading %d: %q is not a number", e.Index, e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }
