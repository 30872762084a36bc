package analysis

// Moving-average windows in trading days
const (
	MA20Window   = 20
	MA50Window   = 50
	MA100Window  = 100
	MA200Window  = 200
	VolumeWindow = 30

	// MaxWindow is the longest price window; a snapshot needs this much history.
	MaxWindow = MA200Window
)

// PriceWindows lists the adjusted-close windows in ascending order
var PriceWindows = []int{MA20Window, MA50Window, MA100Window, MA200Window}

// MASet holds the four price moving averages of one trading day
type MASet struct {
	MA20  *float64
	MA50  *float64
	MA100 *float64
	MA200 *float64
}

// Averages is a full snapshot: the price set plus the volume average
type Averages struct {
	MASet
	VolMA30 *float64
}

// SMA calculates the Simple Moving Average of the last window values.
// ok is false when fewer than window values are available.
func SMA(values []float64, window int) (avg float64, ok bool) {
	if window <= 0 || len(values) < window {
		return 0, false
	}

	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window), true
}

// RollingSMA returns the trailing mean ending at every index using a running sum.
// Entries before the window fills are nil.
func RollingSMA(values []float64, window int) []*float64 {
	out := make([]*float64, len(values))
	if window <= 0 {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i+1 >= window {
			avg := sum / float64(window)
			out[i] = &avg
		}
	}
	return out
}

// Ordered reports MA20 > MA50 > MA100 > MA200. Any missing average means not ordered.
func Ordered(s MASet) bool {
	if s.MA20 == nil || s.MA50 == nil || s.MA100 == nil || s.MA200 == nil {
		return false
	}
	return *s.MA20 > *s.MA50 && *s.MA50 > *s.MA100 && *s.MA100 > *s.MA200
}

// Series reconstructs the MA set for every day of an ascending close series
func Series(closes []float64) []MASet {
	ma20 := RollingSMA(closes, MA20Window)
	ma50 := RollingSMA(closes, MA50Window)
	ma100 := RollingSMA(closes, MA100Window)
	ma200 := RollingSMA(closes, MA200Window)

	out := make([]MASet, len(closes))
	for i := range closes {
		out[i] = MASet{MA20: ma20[i], MA50: ma50[i], MA100: ma100[i], MA200: ma200[i]}
	}
	return out
}

// TrailingAverages computes the snapshot for the last element of ascending
// close and volume series.
func TrailingAverages(closes, volumes []float64) Averages {
	var a Averages
	a.MA20 = smaPtr(closes, MA20Window)
	a.MA50 = smaPtr(closes, MA50Window)
	a.MA100 = smaPtr(closes, MA100Window)
	a.MA200 = smaPtr(closes, MA200Window)
	a.VolMA30 = smaPtr(volumes, VolumeWindow)
	return a
}

func smaPtr(values []float64, window int) *float64 {
	avg, ok := SMA(values, window)
	if !ok {
		return nil
	}
	return &avg
}
