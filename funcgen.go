package instrument

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Shape is a function generator waveform.
type Shape string

const (
	Sine     Shape = "sin"
	Square   Shape = "squ"
	Triangle Shape = "tri"
	Ramp     Shape = "ramp"
	Noise    Shape = "nois"
	DC       Shape = "dc"
)

var shapes = map[string]Shape{
	"sin": Sine, "sinusoid": Sine, "sine": Sine,
	"squ": Square, "square": Square,
	"tri": Triangle, "triangle": Triangle,
	"ramp": Ramp,
	"nois": Noise, "noise": Noise,
	"dc": DC,
}

// ParseShape accepts the short SCPI forms and the long names.
func ParseShape(s string) (Shape, error) {
	if sh, ok := shapes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sh, nil
	}
	return "", fmt.Errorf("%w: waveform %q", ErrInvalidOption, s)
}

// FunctionGenerator is a waveform generator such as the 33120A.
type FunctionGenerator struct {
	*Handle
}

// NewFunctionGenerator wraps h. The handle's transport is shared, not
// reopened.
func NewFunctionGenerator(h *Handle) *FunctionGenerator {
	h.category = CategoryFunctionGenerator
	return &FunctionGenerator{Handle: h}
}

// Apply outputs a waveform in one command: frequency in Hz, amplitude in
// volts peak-to-peak, offset in volts.
func (g *FunctionGenerator) Apply(shape Shape, freq, amplitude, offset float64) error {
	return g.ApplyContext(context.Background(), shape, freq, amplitude, offset)
}

// ApplyContext is Apply with a cancellable delay.
func (g *FunctionGenerator) ApplyContext(ctx context.Context, shape Shape, freq, amplitude, offset float64) error {
	if _, err := ParseShape(string(shape)); err != nil {
		return err
	}
	for _, v := range []float64{freq, amplitude, offset} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidSetting, v)
		}
	}
	return g.WriteLineContext(ctx, fmt.Sprintf(":appl:%s %s,%s,%s",
		shape, formatValue(freq), formatValue(amplitude), formatValue(offset)))
}
