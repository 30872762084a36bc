package fundamentals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nasdaq_screener/models"
)

// Lookback limits
const (
	// MaxQuarters is how many recent quarters feed profitability.
	MaxQuarters = 8
	// StreakQuarters is how many recent quarters feed a growth streak. Eight
	// transitions need nine quarters.
	StreakQuarters = MaxQuarters + 1
	// DisplayQuarters is how many quarters are returned for display.
	DisplayQuarters = 4
)

// Status is the profitability classification of a symbol
type Status string

const (
	StatusProfitable   Status = "profitable"
	StatusUnprofitable Status = "unprofitable"
	StatusUnknown      Status = "unknown"
)

// Metric selects the quarterly figure a growth streak is measured on
type Metric int

const (
	MetricRevenue Metric = iota
	MetricEPS
)

func (m Metric) String() string {
	if m == MetricEPS {
		return "eps_diluted"
	}
	return "revenue"
}

// Quarter is one fiscal quarter of figures
type Quarter struct {
	PeriodEndDate     time.Time
	Revenue           decimal.NullDecimal
	OperatingIncome   decimal.NullDecimal
	NetIncome         decimal.NullDecimal
	OperatingCashFlow decimal.NullDecimal
	EpsDiluted        decimal.NullDecimal
}

// Label names the calendar quarter the period ends in, e.g. 2024Q4
func (q Quarter) Label() string {
	return fmt.Sprintf("%dQ%d", q.PeriodEndDate.Year(), (int(q.PeriodEndDate.Month())-1)/3+1)
}

func (q Quarter) value(m Metric) decimal.NullDecimal {
	if m == MetricEPS {
		return q.EpsDiluted
	}
	return q.Revenue
}

// QuarterView is the display form of a quarter
type QuarterView struct {
	PeriodEndDate string   `json:"period_end_date"`
	Revenue       *float64 `json:"revenue"`
	EpsDiluted    *float64 `json:"eps_diluted"`
}

// Overlay is the fundamental classification of one symbol
type Overlay struct {
	LatestEPS             *float64      `json:"latest_eps"`
	Status                Status        `json:"profitability_status"`
	RevenueGrowthQuarters int           `json:"revenue_growth_quarters"`
	IncomeGrowthQuarters  int           `json:"income_growth_quarters"`
	Quarters              []QuarterView `json:"quarterly_financials"`
}

// Profitability classifies by the most recent non-null diluted EPS.
// quarters must be most recent first.
func Profitability(quarters []Quarter) (Status, *decimal.Decimal) {
	for _, q := range recent(quarters) {
		if !q.EpsDiluted.Valid {
			continue
		}
		eps := q.EpsDiluted.Decimal
		switch eps.Sign() {
		case 1:
			return StatusProfitable, &eps
		case -1:
			return StatusUnprofitable, &eps
		default:
			return StatusUnknown, &eps
		}
	}
	return StatusUnknown, nil
}

// GrowthStreak counts consecutive strictly increasing quarters, walking back
// from the most recent quarter until the first flat, falling or missing value.
// quarters must be most recent first.
func GrowthStreak(quarters []Quarter, metric Metric) int {
	window := quarters
	if len(window) > StreakQuarters {
		window = window[:StreakQuarters]
	}

	streak := 0
	for i := 0; i+1 < len(window); i++ {
		cur, prev := window[i].value(metric), window[i+1].value(metric)
		if !cur.Valid || !prev.Valid || !cur.Decimal.GreaterThan(prev.Decimal) {
			break
		}
		streak++
	}
	return streak
}

// Build computes the overlay from quarters ordered most recent first
func Build(quarters []Quarter) Overlay {
	status, eps := Profitability(quarters)

	o := Overlay{
		Status:                status,
		RevenueGrowthQuarters: GrowthStreak(quarters, MetricRevenue),
		IncomeGrowthQuarters:  GrowthStreak(quarters, MetricEPS),
		Quarters:              make([]QuarterView, 0, DisplayQuarters),
	}
	if eps != nil {
		v := eps.InexactFloat64()
		o.LatestEPS = &v
	}

	for i, q := range quarters {
		if i == DisplayQuarters {
			break
		}
		o.Quarters = append(o.Quarters, QuarterView{
			PeriodEndDate: q.PeriodEndDate.Format("2006-01-02"),
			Revenue:       floatPtr(q.Revenue),
			EpsDiluted:    floatPtr(q.EpsDiluted),
		})
	}
	return o
}

// FromModels converts stored rows, most recent first, into quarters
func FromModels(rows []models.QuarterlyFinancial) []Quarter {
	out := make([]Quarter, len(rows))
	for i, r := range rows {
		out[i] = Quarter{
			PeriodEndDate:     r.PeriodEndDate,
			Revenue:           r.Revenue,
			OperatingIncome:   r.OperatingIncome,
			NetIncome:         r.NetIncome,
			OperatingCashFlow: r.OperatingCashFlow,
			EpsDiluted:        r.EpsDiluted,
		}
	}
	return out
}

func recent(quarters []Quarter) []Quarter {
	if len(quarters) > MaxQuarters {
		return quarters[:MaxQuarters]
	}
	return quarters
}

func floatPtr(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}
