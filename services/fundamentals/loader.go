package fundamentals

import (
	"context"

	"nasdaq_screener/services/marketdata"
)

// Loader builds overlays from stored quarterly financials
type Loader struct {
	repo *marketdata.Repository
}

// NewLoader creates a new fundamentals loader
func NewLoader(repo *marketdata.Repository) *Loader {
	return &Loader{repo: repo}
}

// Load returns an overlay for every requested symbol. Symbols without
// financials get an empty overlay with unknown profitability.
func (l *Loader) Load(ctx context.Context, symbols []string) (map[string]Overlay, error) {
	rows, err := l.repo.RecentQuarters(ctx, symbols, StreakQuarters)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Overlay, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = Build(FromModels(rows[symbol]))
	}
	return out, nil
}
