package screener

import (
	"context"
	"time"

	"nasdaq_screener/services/analysis"
)

// historyRows is the number of trading rows needed to rebuild every average
// on the reference day and on each of the lookbackDays before it.
func historyRows(lookbackDays int) int {
	return analysis.MaxWindow + lookbackDays + 1
}

// nonOrderedDays rebuilds the moving averages of each symbol from raw prices
// and counts how many of the lookbackDays trading days before the latest bar
// at or before refDate were not ordered.
func (s *GoldenCrossScreener) nonOrderedDays(ctx context.Context, symbols []string, refDate time.Time, lookbackDays int) (map[string]int, error) {
	history, err := s.repo.RecentCloses(ctx, symbols, refDate, historyRows(lookbackDays))
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(symbols))
	for _, symbol := range symbols {
		bars := history[symbol]
		closes := make([]float64, len(bars))
		for i, c := range bars {
			closes[i] = c.Decimal.InexactFloat64()
		}
		out[symbol] = countNonOrdered(analysis.Series(closes), lookbackDays)
	}
	return out, nil
}

// countNonOrdered looks at the lookbackDays entries preceding the last one.
// Days before the start of the series are not counted.
func countNonOrdered(series []analysis.MASet, lookbackDays int) int {
	last := len(series) - 1
	count := 0
	for k := 1; k <= lookbackDays; k++ {
		i := last - k
		if i < 0 {
			break
		}
		if !analysis.Ordered(series[i]) {
			count++
		}
	}
	return count
}
