package instrument

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Setting is a range or resolution argument: a number, or one of the
// Default, Min and Max keywords.
type Setting struct {
	keyword string
	value   float64
}

var (
	Default = Setting{keyword: "DEF"}
	Min     = Setting{keyword: "MIN"}
	Max     = Setting{keyword: "MAX"}
)

// Value returns a numeric setting.
func Value(v float64) Setting { return Setting{value: v} }

func (s Setting) String() string {
	if s.keyword != "" {
		return s.keyword
	}
	return strconv.FormatFloat(s.value, 'g', -1, 64)
}

func (s Setting) validate() error {
	if s.keyword != "" {
		return nil
	}
	if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, s.value)
	}
	return nil
}

// ParseSetting reads a setting from user input: def, min, max (any case)
// or a number.
func ParseSetting(s string) (Setting, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DEF", "DEFAULT":
		return Default, nil
	case "MIN", "MINIMUM":
		return Min, nil
	case "MAX", "MAXIMUM":
		return Max, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Setting{}, fmt.Errorf("%w: %q", ErrInvalidSetting, s)
	}
	if err := Value(v).validate(); err != nil {
		return Setting{}, err
	}
	return Value(v), nil
}

// Multimeter drives a DC voltage/current meter such as the 34401A.
type Multimeter struct {
	*Handle
}

// NewMultimeter wraps h. The handle's transport is shared, not reopened.
func NewMultimeter(h *Handle) *Multimeter {
	h.category = CategoryMultimeter
	return &Multimeter{Handle: h}
}

// ConfigureVoltageDC selects DC voltage with the given range and resolution.
func (m *Multimeter) ConfigureVoltageDC(rng, res Setting) error {
	return m.configure(context.Background(), "volt", rng, res)
}

// ConfigureCurrentDC selects DC current with the given range and resolution.
func (m *Multimeter) ConfigureCurrentDC(rng, res Setting) error {
	return m.configure(context.Background(), "curr", rng, res)
}

func (m *Multimeter) configure(ctx context.Context, fn string, rng, res Setting) error {
	if err := rng.validate(); err != nil {
		return err
	}
	if err := res.validate(); err != nil {
		return err
	}
	return m.WriteLineContext(ctx, fmt.Sprintf(":conf:%s:dc %s,%s", fn, rng, res))
}

// MeasureVoltageDC takes one DC voltage reading.
func (m *Multimeter) MeasureVoltageDC(rng, res Setting) (float64, error) {
	return m.measureOne(context.Background(), "volt", rng, res)
}

// MeasureVoltageDCSamples takes n DC voltage readings in one trigger and
// returns them in the order the meter sent them.
func (m *Multimeter) MeasureVoltageDCSamples(rng, res Setting, n int) ([]float64, error) {
	return m.measure(context.Background(), "volt", rng, res, n)
}

// MeasureCurrentDC takes one DC current reading.
func (m *Multimeter) MeasureCurrentDC(rng, res Setting) (float64, error) {
	return m.measureOne(context.Background(), "curr", rng, res)
}

// MeasureCurrentDCSamples is MeasureVoltageDCSamples for current.
func (m *Multimeter) MeasureCurrentDCSamples(rng, res Setting, n int) ([]float64, error) {
	return m.measure(context.Background(), "curr", rng, res, n)
}

// MeasureContext is the context aware form behind the Measure methods.
// quantity is "volt" or "curr".
func (m *Multimeter) MeasureContext(ctx context.Context, quantity string, rng, res Setting, n int) ([]float64, error) {
	switch quantity {
	case "volt", "curr":
	default:
		return nil, fmt.Errorf("%w: quantity %q", ErrInvalidOption, quantity)
	}
	return m.measure(ctx, quantity, rng, res, n)
}

func (m *Multimeter) measureOne(ctx context.Context, fn string, rng, res Setting) (float64, error) {
	vals, err := m.measure(ctx, fn, rng, res, 1)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func (m *Multimeter) measure(ctx context.Context, fn string, rng, res Setting, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}
	if err := m.configure(ctx, fn, rng, res); err != nil {
		return nil, err
	}
	if err := m.WriteLineContext(ctx, fmt.Sprintf(":samp:coun %d", n)); err != nil {
		return nil, err
	}
	resp, err := m.QueryContext(ctx, "read?")
	if err != nil {
		return nil, err
	}
	if n == 1 {
		v, err := parseReading(0, resp)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}
	vals, err := ParseReadings(resp)
	if err != nil {
		return nil, err
	}
	if len(vals) != n {
		return nil, fmt.Errorf("%w: asked for %d, got %d", ErrReadingCount, n, len(vals))
	}
	return vals, nil
}

// ParseReadings splits a comma separated read? response into numbers. The
// first field that is not a number fails the whole response.
func ParseReadings(resp string) ([]float64, error) {
	fields := strings.Split(resp, ",")
	vals := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := parseReading(i, f)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseReading(i int, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, &ParseError{Index: i, Field: field, Err: err}
	}
	return v, nil
}
