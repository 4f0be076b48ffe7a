package instrument

import (
	"errors"
	"testing"
)

func newTestPowerSupply(t *testing.T) (*PowerSupply, *fakeTransport) {
	t.Helper()
	f := newFake(idPowerSupply)
	h := newTestHandle(t, f)
	p, err := NewPowerSupply(h)
	if err != nil {
		t.Fatalf("NewPowerSupply failed: %v", err)
	}
	if got := f.take(); !equalLines(got, []string{"*RST"}) {
		t.Fatalf("Expected construction to reset, got %q", got)
	}
	return p, f
}

func TestSetOutputVoltageSequence(t *testing.T) {
	p, f := newTestPowerSupply(t)

	steps := []struct {
		volts    float64
		out      Output
		expected []string
	}{
		{5.0, Out1, []string{":volt:rang low", ":outp:stat on", ":inst:sel out1", ":volt 5"}},
		{6.0, Out1, []string{":volt 6"}},
		{9.0, Out1, []string{":volt:rang high", ":volt 9"}},
		{-8.0, Out1, []string{":volt -8"}},
		{7.99, Out2, []string{":volt:rang low", ":outp:stat on", ":inst:sel out2", ":volt 7.99"}},
		{1.5, Out1, []string{":inst:sel out1", ":volt 1.5"}},
	}

	for i, s := range steps {
		if err := p.SetOutputVoltage(s.volts, s.out); err != nil {
			t.Fatalf("step %d: SetOutputVoltage failed: %v", i, err)
		}
		if got := f.take(); !equalLines(got, s.expected) {
			t.Errorf("step %d: SetOutputVoltage(%v, %v) wrote %q, expected %q", i, s.volts, s.out, got, s.expected)
		}
	}
}

func TestSetOutputCurrent(t *testing.T) {
	p, f := newTestPowerSupply(t)

	if err := p.SetOutputCurrent(0.5, Out2); err != nil {
		t.Fatalf("SetOutputCurrent failed: %v", err)
	}
	expected := []string{":volt:rang high", ":outp:stat on", ":inst:sel out2", ":volt 20", ":curr 0.5"}
	if got := f.take(); !equalLines(got, expected) {
		t.Errorf("Expected lines %q, got %q", expected, got)
	}

	if err := p.SetOutputCurrent(0.25, Out2); err != nil {
		t.Fatalf("SetOutputCurrent failed: %v", err)
	}
	expected = []string{":volt 20", ":curr 0.25"}
	if got := f.take(); !equalLines(got, expected) {
		t.Errorf("Expected lines %q, got %q", expected, got)
	}
}

func TestOutputState(t *testing.T) {
	p, _ := newTestPowerSupply(t)

	st := p.OutputState()
	if st.Selected != 0 || st.Range != RangeUnset || st.Enabled[Out1] || st.Enabled[Out2] {
		t.Errorf("Expected empty state after construction, got %+v", st)
	}

	if err := p.SetOutputVoltage(12, Out2); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	st = p.OutputState()
	if st.Selected != Out2 || st.Range != RangeHigh || !st.Enabled[Out2] || st.Enabled[Out1] {
		t.Errorf("Unexpected state %+v", st)
	}
}

func TestInvalidateResendsEverything(t *testing.T) {
	p, f := newTestPowerSupply(t)

	if err := p.SetOutputVoltage(3.3, Out1); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	f.take()

	p.Invalidate()
	if err := p.SetOutputVoltage(3.3, Out1); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	expected := []string{":volt:rang low", ":outp:stat on", ":inst:sel out1", ":volt 3.3"}
	if got := f.take(); !equalLines(got, expected) {
		t.Errorf("Expected lines %q, got %q", expected, got)
	}
}

func TestResetClearsCache(t *testing.T) {
	p, f := newTestPowerSupply(t)

	if err := p.SetOutputVoltage(3.3, Out1); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	if err := p.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	f.take()

	if st := p.OutputState(); st.Selected != 0 || st.Range != RangeUnset {
		t.Errorf("Expected cleared state after Reset, got %+v", st)
	}
}

func TestSetOutputVoltageInvalidOutput(t *testing.T) {
	p, f := newTestPowerSupply(t)

	if err := p.SetOutputVoltage(5, Output(3)); !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("Expected ErrInvalidOutput, got %v", err)
	}
	if got := f.take(); len(got) != 0 {
		t.Errorf("Expected nothing written, got %q", got)
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		input    string
		expected Output
	}{
		{"out1", Out1},
		{"OUT2", Out2},
		{"1", Out1},
		{" 2 ", Out2},
	}
	for _, tt := range tests {
		got, err := ParseOutput(tt.input)
		if err != nil || got != tt.expected {
			t.Errorf("ParseOutput(%q) = %v, %v, expected %v", tt.input, got, err, tt.expected)
		}
	}
	if _, err := ParseOutput("out3"); !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("Expected ErrInvalidOutput, got %v", err)
	}
}
