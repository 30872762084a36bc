package screener

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nasdaq_screener/models"
	"nasdaq_screener/services/fundamentals"
	"nasdaq_screener/services/marketdata"
	"nasdaq_screener/services/universe"
)

// GoldenCrossScreener finds symbols whose moving averages are stacked
// MA20 > MA50 > MA100 > MA200 on the latest trading day.
type GoldenCrossScreener struct {
	repo         *marketdata.Repository
	fundamentals *fundamentals.Loader
	log          *logrus.Logger
}

// NewGoldenCrossScreener creates a new golden cross screener instance
func NewGoldenCrossScreener(db *gorm.DB, log *logrus.Logger) *GoldenCrossScreener {
	repo := marketdata.NewRepository(db)
	return &GoldenCrossScreener{
		repo:         repo,
		fundamentals: fundamentals.NewLoader(repo),
		log:          log,
	}
}

// Row is one screener result
type Row struct {
	Symbol                string                     `json:"symbol"`
	MarketCap             *float64                   `json:"market_cap"`
	LastClose             *float64                   `json:"last_close"`
	QuarterlyFinancials   []fundamentals.QuarterView `json:"quarterly_financials"`
	ProfitabilityStatus   fundamentals.Status        `json:"profitability_status"`
	RevenueGrowthQuarters int                        `json:"revenue_growth_quarters"`
	IncomeGrowthQuarters  int                        `json:"income_growth_quarters"`
	Ordered               bool                       `json:"ordered"`
	JustTurned            bool                       `json:"just_turned"`

	marketCap decimal.NullDecimal
}

// Result is the screener response body
type Result struct {
	Count        int     `json:"count"`
	TradeDate    *string `json:"trade_date"`
	LookbackDays *int    `json:"lookback_days"`
	Data         []Row   `json:"data"`
}

// candidate is an ordered snapshot that passed the cheap cuts
type candidate struct {
	snap      models.DailyMA
	meta      models.Symbol
	lastClose decimal.NullDecimal
}

// Screen runs the golden cross screen
func (s *GoldenCrossScreener) Screen(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Data: make([]Row, 0)}
	if p.JustTurned {
		lookback := p.LookbackDays
		result.LookbackDays = &lookback
	}

	refDate, ok, err := s.ReferenceDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, nil
	}
	tradeDate := refDate.Format("2006-01-02")
	result.TradeDate = &tradeDate

	candidates, err := s.candidates(ctx, refDate, p)
	if err != nil {
		return nil, err
	}

	var nonOrdered map[string]int
	if p.JustTurned && len(candidates) > 0 {
		nonOrdered, err = s.nonOrderedDays(ctx, symbolsOf(candidates), refDate, p.LookbackDays)
		if err != nil {
			return nil, err
		}
		kept := candidates[:0]
		for _, c := range candidates {
			if nonOrdered[c.snap.Symbol] > 0 {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	overlays, err := s.fundamentals.Load(ctx, symbolsOf(candidates))
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		o := overlays[c.snap.Symbol]
		if !matchesFundamentals(o, p) {
			continue
		}
		result.Data = append(result.Data, Row{
			Symbol:                c.snap.Symbol,
			MarketCap:             floatPtr(c.meta.MarketCap),
			LastClose:             floatPtr(c.lastClose),
			QuarterlyFinancials:   o.Quarters,
			ProfitabilityStatus:   o.Status,
			RevenueGrowthQuarters: o.RevenueGrowthQuarters,
			IncomeGrowthQuarters:  o.IncomeGrowthQuarters,
			Ordered:               true,
			JustTurned:            p.JustTurned && nonOrdered[c.snap.Symbol] > 0,
			marketCap:             c.meta.MarketCap,
		})
	}

	sortRows(result.Data)
	result.Count = len(result.Data)

	s.log.WithFields(logrus.Fields{
		"trade_date":  tradeDate,
		"candidates":  len(candidates),
		"results":     result.Count,
		"just_turned": p.JustTurned,
	}).Debug("Golden cross screen complete")
	return result, nil
}

// ReferenceDate is the latest day present in both the snapshot and price
// stores, or whichever one exists when the other is empty.
func (s *GoldenCrossScreener) ReferenceDate(ctx context.Context) (time.Time, bool, error) {
	maDate, maOK, err := s.repo.LatestSnapshotDate(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	priceDate, priceOK, err := s.repo.LatestPriceDate(ctx)
	if err != nil {
		return time.Time{}, false, err
	}

	switch {
	case maOK && priceOK:
		if priceDate.Before(maDate) {
			return priceDate, true, nil
		}
		return maDate, true, nil
	case maOK:
		return maDate, true, nil
	case priceOK:
		return priceDate, true, nil
	default:
		return time.Time{}, false, nil
	}
}

// candidates applies ordering, ticker shape, exchange and the liquidity and
// size thresholds. A threshold of zero is disabled and a missing value passes.
func (s *GoldenCrossScreener) candidates(ctx context.Context, refDate time.Time, p Params) ([]candidate, error) {
	snaps, err := s.repo.OrderedSnapshotsOn(ctx, refDate)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		if universe.IsCommonStockTicker(snap.Symbol) {
			symbols = append(symbols, snap.Symbol)
		}
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	meta, err := s.repo.SymbolMeta(ctx, symbols)
	if err != nil {
		return nil, err
	}
	closes, err := s.repo.ClosesOn(ctx, symbols, refDate)
	if err != nil {
		return nil, err
	}

	minVol := decimal.NewFromFloat(p.MinAvgVolume)
	minPrice := decimal.NewFromFloat(p.MinPrice)
	minMcap := decimal.NewFromFloat(p.MinMarketCap)

	var out []candidate
	for _, snap := range snaps {
		m, ok := meta[snap.Symbol]
		if !ok || !universe.Eligible(m, p.AllowOTC) {
			continue
		}
		c := candidate{snap: snap, meta: m, lastClose: closes[snap.Symbol]}

		if p.MinAvgVolume != 0 && snap.VolMA30 != nil && decimal.NewFromFloat(*snap.VolMA30).LessThan(minVol) {
			continue
		}
		if p.MinPrice != 0 && c.lastClose.Valid && c.lastClose.Decimal.LessThan(minPrice) {
			continue
		}
		if p.MinMarketCap != 0 && m.MarketCap.Valid && m.MarketCap.Decimal.LessThan(minMcap) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func matchesFundamentals(o fundamentals.Overlay, p Params) bool {
	switch p.Profitability {
	case ProfitabilityProfitable:
		if o.Status != fundamentals.StatusProfitable {
			return false
		}
	case ProfitabilityUnprofitable:
		if o.Status != fundamentals.StatusUnprofitable {
			return false
		}
	}
	if p.RevenueGrowth && o.RevenueGrowthQuarters < p.RevenueGrowthQuarters {
		return false
	}
	if p.IncomeGrowth && o.IncomeGrowthQuarters < p.IncomeGrowthQuarters {
		return false
	}
	return true
}

// sortRows orders by market cap descending with missing caps last, then symbol
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].marketCap, rows[j].marketCap
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && !a.Decimal.Equal(b.Decimal) {
			return a.Decimal.GreaterThan(b.Decimal)
		}
		return rows[i].Symbol < rows[j].Symbol
	})
}

func symbolsOf(candidates []candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.snap.Symbol
	}
	return out
}

func floatPtr(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}
