package daw_test

import (
	"testing"

	"github.com/soliddaw/daw"
)

func TestPanGains(t *testing.T) {
	tests := []struct {
		gain, pan   float64
		left, right float32
	}{
		{1, 0, 1, 1},
		{0.5, 0, 0.5, 0.5},
		{1, -1, 1, 0},
		{1, 1, 0, 1},
		{0.8, 0.5, 0.4, 0.8},
		{1, -3, 1, 0},
	}
	for _, tt := range tests {
		l, r := daw.PanGains(tt.gain, tt.pan)
		if l != tt.left || r != tt.right {
			t.Errorf("PanGains(%v, %v) = %v, %v, expected %v, %v", tt.gain, tt.pan, l, r, tt.left, tt.right)
		}
	}
}

func TestInstrumentMix(t *testing.T) {
	inst := daw.NewInstrument("i", daw.Synth)
	if g, p := inst.Mix(); g != 1 || p != 0 {
		t.Fatalf("unmixed instrument has gain %v, pan %v", g, p)
	}
	mixed := inst.WithMix(0.25, -0.5)
	if g, p := mixed.Mix(); g != 0.25 || p != -0.5 {
		t.Fatalf("Mix() = %v, %v, expected 0.25, -0.5", g, p)
	}
	if _, ok := inst.Parameters[daw.ParamMixGain]; ok {
		t.Fatalf("WithMix modified the original instrument")
	}
}
