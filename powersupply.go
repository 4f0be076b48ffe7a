package instrument

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Output names one of the two supply outputs.
type Output int

const (
	Out1 Output = iota + 1
	Out2
)

func (o Output) String() string {
	switch o {
	case Out1:
		return "out1"
	case Out2:
		return "out2"
	default:
		return "none"
	}
}

func (o Output) valid() bool { return o == Out1 || o == Out2 }

// ParseOutput accepts out1/out2 in any case, or the bare numbers 1 and 2.
func ParseOutput(s string) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out1", "1":
		return Out1, nil
	case "out2", "2":
		return Out2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOutput, s)
	}
}

// VoltageRange is the supply's output range.
type VoltageRange int

const (
	RangeUnset VoltageRange = iota
	RangeLow
	RangeHigh
)

func (r VoltageRange) String() string {
	switch r {
	case RangeLow:
		return "low"
	case RangeHigh:
		return "high"
	default:
		return "unset"
	}
}

// lowRangeLimit is the magnitude at and above which the high range is used.
const lowRangeLimit = 8.0

// currentLimitVoltage is programmed before a current limit so the supply is
// not held in the low range.
const currentLimitVoltage = 20.0

// OutputState is what the supply is believed to be set to. It is a cache of
// commands sent, not a reading of the device.
type OutputState struct {
	Enabled  map[Output]bool
	Selected Output // zero when nothing is selected
	Range    VoltageRange
}

// PowerSupply drives a two output bench supply such as the E3646A. It skips
// range, enable and select commands the cache says are already in effect.
type PowerSupply struct {
	*Handle
	enabled  [3]bool
	selected Output
	rng      VoltageRange
}

// NewPowerSupply wraps h and resets the device so the cache starts from a
// known state.
func NewPowerSupply(h *Handle) (*PowerSupply, error) {
	return NewPowerSupplyContext(context.Background(), h)
}

// NewPowerSupplyContext is NewPowerSupply with a cancellable reset.
func NewPowerSupplyContext(ctx context.Context, h *Handle) (*PowerSupply, error) {
	h.category = CategoryPowerSupply
	p := &PowerSupply{Handle: h}
	if err := p.ResetContext(ctx); err != nil {
		return nil, fmt.Errorf("reset power supply: %w", err)
	}
	return p, nil
}

// Reset sends *RST and clears the output cache.
func (p *PowerSupply) Reset() error {
	return p.ResetContext(context.Background())
}

// ResetContext is Reset with a cancellable delay.
func (p *PowerSupply) ResetContext(ctx context.Context) error {
	if err := p.Handle.ResetContext(ctx); err != nil {
		return err
	}
	p.Invalidate()
	return nil
}

// Invalidate forgets the cached output state, so the next set command
// resends range, enable and selection. Use it after the supply was touched
// from the front panel or by another program.
func (p *PowerSupply) Invalidate() {
	p.enabled = [3]bool{}
	p.selected = 0
	p.rng = RangeUnset
}

// OutputState returns a snapshot of the cache.
func (p *PowerSupply) OutputState() OutputState {
	return OutputState{
		Enabled:  map[Output]bool{Out1: p.enabled[Out1], Out2: p.enabled[Out2]},
		Selected: p.selected,
		Range:    p.rng,
	}
}

// SetOutputVoltage programs v volts on out, enabling and selecting the
// output first when needed.
func (p *PowerSupply) SetOutputVoltage(v float64, out Output) error {
	return p.SetOutputVoltageContext(context.Background(), v, out)
}

// SetOutputVoltageContext is SetOutputVoltage with cancellable delays.
func (p *PowerSupply) SetOutputVoltageContext(ctx context.Context, v float64, out Output) error {
	if !out.valid() {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, out)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: voltage %v", ErrInvalidSetting, v)
	}

	want := RangeLow
	if math.Abs(v) >= lowRangeLimit {
		want = RangeHigh
	}
	if p.rng != want {
		if err := p.WriteLineContext(ctx, ":volt:rang "+want.String()); err != nil {
			return err
		}
		p.rng = want
	}

	if err := p.activate(ctx, out); err != nil {
		return err
	}
	return p.WriteLineContext(ctx, ":volt "+formatValue(v))
}

// SetOutputCurrent limits out to i amps. The output voltage is first set to
// 20 V so the limit is not masked by the low range.
func (p *PowerSupply) SetOutputCurrent(i float64, out Output) error {
	return p.SetOutputCurrentContext(context.Background(), i, out)
}

// SetOutputCurrentContext is SetOutputCurrent with cancellable delays.
func (p *PowerSupply) SetOutputCurrentContext(ctx context.Context, i float64, out Output) error {
	if math.IsNaN(i) || math.IsInf(i, 0) {
		return fmt.Errorf("%w: current %v", ErrInvalidSetting, i)
	}
	if err := p.SetOutputVoltageContext(ctx, currentLimitVoltage, out); err != nil {
		return err
	}
	if err := p.activate(ctx, out); err != nil {
		return err
	}
	return p.WriteLineContext(ctx, ":curr "+formatValue(i))
}

func (p *PowerSupply) activate(ctx context.Context, out Output) error {
	if !p.enabled[out] {
		if err := p.WriteLineContext(ctx, ":outp:stat on"); err != nil {
			return err
		}
		p.enabled[out] = true
	}
	if p.selected != out {
		if err := p.WriteLineContext(ctx, ":inst:sel "+out.String()); err != nil {
			return err
		}
		p.selected = out
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
