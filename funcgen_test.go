package instrument

import (
	"errors"
	"math"
	"testing"
)

func TestApply(t *testing.T) {
	tests := []struct {
		shape    Shape
		freq     float64
		amp      float64
		offset   float64
		expected string
	}{
		{Sine, 1000, 2, 0, ":appl:sin 1000,2,0"},
		{Square, 2.5e6, 0.1, -0.05, ":appl:squ 2.5e+06,0.1,-0.05"},
		{Ramp, 50, 5, 1.5, ":appl:ramp 50,5,1.5"},
	}

	for _, tt := range tests {
		f := newFake(idFuncGen)
		g := NewFunctionGenerator(newTestHandle(t, f))

		if err := g.Apply(tt.shape, tt.freq, tt.amp, tt.offset); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got := f.take(); len(got) != 1 || got[0] != tt.expected {
			t.Errorf("Apply wrote %q, expected %q", got, tt.expected)
		}
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	f := newFake(idFuncGen)
	g := NewFunctionGenerator(newTestHandle(t, f))

	if err := g.Apply(Shape("pulse"), 1, 1, 0); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Expected ErrInvalidOption, got %v", err)
	}
	if err := g.Apply(Sine, math.NaN(), 1, 0); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("Expected ErrInvalidSetting, got %v", err)
	}
	if got := f.take(); len(got) != 0 {
		t.Errorf("Expected nothing written, got %q", got)
	}
}

func TestParseShape(t *testing.T) {
	tests := map[string]Shape{
		"sine":     Sine,
		"SIN":      Sine,
		"square":   Square,
		"triangle": Triangle,
		"noise":    Noise,
		"dc":       DC,
	}
	for in, expected := range tests {
		got, err := ParseShape(in)
		if err != nil || got != expected {
			t.Errorf("ParseShape(%q) = %q, %v, expected %q", in, got, err, expected)
		}
	}
}

func TestFunctionGeneratorCategory(t *testing.T) {
	f := newFake(idFuncGen)
	g := NewFunctionGenerator(newTestHandle(t, f))
	if g.Category() != CategoryFunctionGenerator {
		t.Errorf("Category = %v, expected %v", g.Category(), CategoryFunctionGenerator)
	}
}
