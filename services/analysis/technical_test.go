package analysis

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		window int
		want   float64
		ok     bool
	}{
		{"exact window", []float64{1, 2, 3, 4}, 4, 2.5, true},
		{"uses last values", []float64{100, 1, 2, 3}, 3, 2, true},
		{"short history", []float64{1, 2}, 3, 0, false},
		{"zero window", []float64{1, 2}, 0, 0, false},
		{"empty", nil, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SMA(tt.values, tt.window)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !almostEqual(got, tt.want) {
				t.Errorf("SMA = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMA200EqualsMeanOfLast200(t *testing.T) {
	closes := linear(220, 10, 0.25)

	a := TrailingAverages(closes, closes)
	if a.MA200 == nil {
		t.Fatal("expected MA200")
	}

	sum := 0.0
	for _, v := range closes[20:] {
		sum += v
	}
	if !almostEqual(*a.MA200, sum/200) {
		t.Errorf("MA200 = %v, want %v", *a.MA200, sum/200)
	}

	// values outside the trailing window do not matter
	changed := append([]float64(nil), closes...)
	for i := 0; i < 20; i++ {
		changed[i] = 1e6
	}
	b := TrailingAverages(changed, changed)
	if !almostEqual(*a.MA200, *b.MA200) {
		t.Errorf("MA200 changed by data outside window: %v vs %v", *a.MA200, *b.MA200)
	}
}

func TestTrailingAveragesShortHistory(t *testing.T) {
	closes := linear(120, 10, 1)
	volumes := linear(25, 1000, 0)

	a := TrailingAverages(closes, volumes)
	if a.MA20 == nil || a.MA50 == nil || a.MA100 == nil {
		t.Fatal("expected MA20, MA50 and MA100 to be set")
	}
	if a.MA200 != nil {
		t.Errorf("MA200 = %v, want nil", *a.MA200)
	}
	if a.VolMA30 != nil {
		t.Errorf("VolMA30 = %v, want nil", *a.VolMA30)
	}
}

func TestRollingSMAMatchesSMA(t *testing.T) {
	values := []float64{5, 3, 8, 1, 9, 2, 7, 4, 6, 10}
	window := 4

	rolling := RollingSMA(values, window)
	for i := range values {
		want, ok := SMA(values[:i+1], window)
		if !ok {
			if rolling[i] != nil {
				t.Errorf("index %d: got %v, want nil", i, *rolling[i])
			}
			continue
		}
		if rolling[i] == nil || !almostEqual(*rolling[i], want) {
			t.Errorf("index %d: got %v, want %v", i, rolling[i], want)
		}
	}
}

func TestOrdered(t *testing.T) {
	tests := []struct {
		name string
		set  MASet
		want bool
	}{
		{"strictly descending", MASet{ptr(4), ptr(3), ptr(2), ptr(1)}, true},
		{"equal pair", MASet{ptr(4), ptr(3), ptr(3), ptr(1)}, false},
		{"inverted", MASet{ptr(1), ptr(2), ptr(3), ptr(4)}, false},
		{"missing ma200", MASet{ptr(4), ptr(3), ptr(2), nil}, false},
		{"missing ma20", MASet{nil, ptr(3), ptr(2), ptr(1)}, false},
		{"empty", MASet{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ordered(tt.set); got != tt.want {
				t.Errorf("Ordered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeriesRisingPrices(t *testing.T) {
	series := Series(linear(250, 10, 0.1))

	if Ordered(series[198]) {
		t.Error("day 199 should not be ordered: MA200 window not filled")
	}
	for i := 199; i < len(series); i++ {
		if !Ordered(series[i]) {
			t.Fatalf("day %d should be ordered for a rising series", i+1)
		}
	}
}
