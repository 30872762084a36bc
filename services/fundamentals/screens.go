package fundamentals

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"nasdaq_screener/models"
	"nasdaq_screener/services/marketdata"
	"nasdaq_screener/services/universe"
)

// Rule-of-40 inputs
const (
	// RuleOf40Quarters covers the trailing twelve months and the twelve before
	RuleOf40Quarters = 8
	// RuleOf40Threshold is the minimum growth plus margin score
	RuleOf40Threshold = 40
)

var hundred = decimal.NewFromInt(100)

// Turnaround is a company whose latest quarter turned profitable
type Turnaround struct {
	Symbol        string   `json:"symbol"`
	AsOfQ         string   `json:"as_of_q"`
	PeriodEndDate string   `json:"period_end_date"`
	MarketCap     *float64 `json:"market_cap"`
	NetIncome     *float64 `json:"net_income"`
	EPS           *float64 `json:"eps"`
	OCF           *float64 `json:"ocf"`
	PrevNetIncome *float64 `json:"prev_net_income"`
	PrevEPS       *float64 `json:"prev_eps"`

	marketCap decimal.NullDecimal
}

// TurnaroundResult is the turned-profitable response body
type TurnaroundResult struct {
	Count     int          `json:"count"`
	Companies []Turnaround `json:"companies"`
}

// RuleOf40Score is the growth and margin breakdown of one company
type RuleOf40Score struct {
	Symbol           string   `json:"symbol"`
	AsOfQ            string   `json:"as_of_q"`
	PeriodEndDate    string   `json:"period_end_date"`
	MarketCap        *float64 `json:"market_cap"`
	RevenueGrowthPct *float64 `json:"yoy_ttm_rev_growth_pct"`
	OpMarginPct      *float64 `json:"ttm_op_margin_pct"`
	Score            *float64 `json:"rule40_score"`

	score decimal.Decimal
}

// RuleOf40Result is the rule-of-40 response body
type RuleOf40Result struct {
	Count     int             `json:"count"`
	Companies []RuleOf40Score `json:"companies"`
}

// TurnedProfitable reports whether the latest quarter earned money after a
// losing or break-even one. Net income is compared when both quarters report
// it, diluted EPS otherwise. quarters must be most recent first.
func TurnedProfitable(quarters []Quarter) bool {
	if len(quarters) < 2 {
		return false
	}
	latest, prev := quarters[0], quarters[1]

	cur, before := latest.NetIncome, prev.NetIncome
	if !cur.Valid || !before.Valid {
		cur, before = latest.EpsDiluted, prev.EpsDiluted
	}
	if !cur.Valid || !before.Valid {
		return false
	}
	return cur.Decimal.Sign() > 0 && before.Decimal.Sign() <= 0
}

// RuleOf40 adds year-over-year trailing-twelve-month revenue growth to the
// trailing operating margin, both in percent. ok is false unless eight
// quarters of revenue, four of operating income and a positive prior-year
// revenue are present. quarters must be most recent first.
func RuleOf40(quarters []Quarter) (growth, margin, score decimal.Decimal, ok bool) {
	if len(quarters) < RuleOf40Quarters {
		return growth, margin, score, false
	}

	var ttmRevenue, priorRevenue, ttmOpIncome decimal.Decimal
	for i, q := range quarters[:RuleOf40Quarters] {
		if !q.Revenue.Valid {
			return growth, margin, score, false
		}
		if i < 4 {
			if !q.OperatingIncome.Valid {
				return growth, margin, score, false
			}
			ttmRevenue = ttmRevenue.Add(q.Revenue.Decimal)
			ttmOpIncome = ttmOpIncome.Add(q.OperatingIncome.Decimal)
		} else {
			priorRevenue = priorRevenue.Add(q.Revenue.Decimal)
		}
	}
	if priorRevenue.Sign() <= 0 || ttmRevenue.Sign() <= 0 {
		return growth, margin, score, false
	}

	growth = ttmRevenue.Div(priorRevenue).Sub(decimal.NewFromInt(1)).Mul(hundred)
	margin = ttmOpIncome.Div(ttmRevenue).Mul(hundred)
	return growth, margin, growth.Add(margin), true
}

// Screener runs the fundamentals-only screens over the listed universe
type Screener struct {
	repo *marketdata.Repository
	log  *logrus.Logger
}

// NewScreener creates a new fundamentals screener
func NewScreener(repo *marketdata.Repository, log *logrus.Logger) *Screener {
	return &Screener{repo: repo, log: log}
}

// TurnedProfitable lists companies whose latest quarter turned profitable,
// largest market cap first with unknown caps last.
func (s *Screener) TurnedProfitable(ctx context.Context) (*TurnaroundResult, error) {
	quarters, meta, err := s.eligibleQuarters(ctx, 2)
	if err != nil {
		return nil, err
	}

	result := &TurnaroundResult{Companies: make([]Turnaround, 0)}
	for symbol, qs := range quarters {
		if !TurnedProfitable(qs) {
			continue
		}
		latest, prev := qs[0], qs[1]
		result.Companies = append(result.Companies, Turnaround{
			Symbol:        symbol,
			AsOfQ:         latest.Label(),
			PeriodEndDate: latest.PeriodEndDate.Format("2006-01-02"),
			MarketCap:     floatPtr(meta[symbol].MarketCap),
			NetIncome:     floatPtr(latest.NetIncome),
			EPS:           floatPtr(latest.EpsDiluted),
			OCF:           floatPtr(latest.OperatingCashFlow),
			PrevNetIncome: floatPtr(prev.NetIncome),
			PrevEPS:       floatPtr(prev.EpsDiluted),
			marketCap:     meta[symbol].MarketCap,
		})
	}

	sort.Slice(result.Companies, func(i, j int) bool {
		a, b := result.Companies[i].marketCap, result.Companies[j].marketCap
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && !a.Decimal.Equal(b.Decimal) {
			return a.Decimal.GreaterThan(b.Decimal)
		}
		return result.Companies[i].Symbol < result.Companies[j].Symbol
	})
	result.Count = len(result.Companies)

	s.log.WithField("results", result.Count).Debug("Turned-profitable screen complete")
	return result, nil
}

// RuleOf40 lists companies scoring at least RuleOf40Threshold, best first
func (s *Screener) RuleOf40(ctx context.Context) (*RuleOf40Result, error) {
	quarters, meta, err := s.eligibleQuarters(ctx, RuleOf40Quarters)
	if err != nil {
		return nil, err
	}

	threshold := decimal.NewFromInt(RuleOf40Threshold)
	result := &RuleOf40Result{Companies: make([]RuleOf40Score, 0)}
	for symbol, qs := range quarters {
		growth, margin, score, ok := RuleOf40(qs)
		if !ok || score.LessThan(threshold) {
			continue
		}
		g, m, sc := growth.InexactFloat64(), margin.InexactFloat64(), score.InexactFloat64()
		result.Companies = append(result.Companies, RuleOf40Score{
			Symbol:           symbol,
			AsOfQ:            qs[0].Label(),
			PeriodEndDate:    qs[0].PeriodEndDate.Format("2006-01-02"),
			MarketCap:        floatPtr(meta[symbol].MarketCap),
			RevenueGrowthPct: &g,
			OpMarginPct:      &m,
			Score:            &sc,
			score:            score,
		})
	}

	sort.Slice(result.Companies, func(i, j int) bool {
		a, b := result.Companies[i].score, result.Companies[j].score
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return result.Companies[i].Symbol < result.Companies[j].Symbol
	})
	result.Count = len(result.Companies)

	s.log.WithField("results", result.Count).Debug("Rule-of-40 screen complete")
	return result, nil
}

// eligibleQuarters loads the latest quarters of every listed common stock
// that passes the universe rules. OTC listings are excluded.
func (s *Screener) eligibleQuarters(ctx context.Context, limit int) (map[string][]Quarter, map[string]models.Symbol, error) {
	rows, err := s.repo.LatestQuarters(ctx, limit)
	if err != nil {
		return nil, nil, err
	}

	symbols := make([]string, 0, len(rows))
	for symbol := range rows {
		if universe.IsCommonStockTicker(symbol) {
			symbols = append(symbols, symbol)
		}
	}
	meta, err := s.repo.SymbolMeta(ctx, symbols)
	if err != nil {
		return nil, nil, err
	}

	out := make(map[string][]Quarter, len(symbols))
	for _, symbol := range symbols {
		m, ok := meta[symbol]
		if !ok || !universe.Eligible(m, false) {
			continue
		}
		out[symbol] = FromModels(rows[symbol])
	}
	return out, meta, nil
}
