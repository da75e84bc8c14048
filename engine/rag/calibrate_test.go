package rag

import (
	"testing"

	"github.com/ModaAI/moda-mvp/engine/domain"
)

func TestCalibrateDistance(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{0, 100},
		{0.1, 90},
		{0.4, 60},
		{1, 0},
		{1.5, 0},    // clamped
		{2, 0},      // clamped
		{-0.5, 100}, // degenerate input, clamped
	}
	for _, tt := range tests {
		got := calibrate(tt.raw, domain.MetricCosineDistance)
		if got != tt.want {
			t.Errorf("calibrate(%v, distance) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCalibrateScore(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{-1, 0},
		{0, 50},
		{0.5, 75},
		{1, 100},
		{-2, 0},    // clamped
		{1.5, 100}, // clamped
	}
	for _, tt := range tests {
		got := calibrate(tt.raw, domain.MetricCosineScore)
		if got != tt.want {
			t.Errorf("calibrate(%v, score) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCalibrateBoundsAndMonotonicity(t *testing.T) {
	// Distance law: bounded and monotonically decreasing over [0,2].
	prev := 101.0
	for d := 0.0; d <= 2.0; d += 0.05 {
		got := calibrate(d, domain.MetricCosineDistance)
		if got < 0 || got > 100 {
			t.Fatalf("calibrate(%v, distance) = %v out of [0,100]", d, got)
		}
		if got > prev {
			t.Fatalf("distance law not monotonically decreasing at %v", d)
		}
		prev = got
	}

	// Score law: bounded and monotonically increasing over [-1,1].
	prev = -1.0
	for s := -1.0; s <= 1.0; s += 0.05 {
		got := calibrate(s, domain.MetricCosineScore)
		if got < 0 || got > 100 {
			t.Fatalf("calibrate(%v, score) = %v out of [0,100]", s, got)
		}
		if got < prev {
			t.Fatalf("score law not monotonically increasing at %v", s)
		}
		prev = got
	}
}

func TestCalibrateRounding(t *testing.T) {
	if got := calibrate(0.123, domain.MetricCosineDistance); got != 87.7 {
		t.Errorf("expected 87.7, got %v", got)
	}
	if got := calibrate(0.333, domain.MetricCosineScore); got != 66.65 {
		t.Errorf("expected 66.65, got %v", got)
	}
}
