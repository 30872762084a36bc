package screener

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidParam marks a client error in screener parameters
var ErrInvalidParam = errors.New("invalid parameter")

// Parameter bounds
const (
	DefaultLookbackDays   = 10
	MinLookbackDays       = 1
	MaxLookbackDays       = 60
	DefaultGrowthQuarters = 3
	MinGrowthQuarters     = 2
	MaxGrowthQuarters     = 8
)

// Profitability filter values
type Profitability string

const (
	ProfitabilityAll          Profitability = "all"
	ProfitabilityProfitable   Profitability = "profitable"
	ProfitabilityUnprofitable Profitability = "unprofitable"
)

// Params holds golden-cross screening criteria
type Params struct {
	JustTurned            bool
	LookbackDays          int
	MinMarketCap          float64
	MinPrice              float64
	MinAvgVolume          float64
	AllowOTC              bool
	Profitability         Profitability
	RevenueGrowth         bool
	RevenueGrowthQuarters int
	IncomeGrowth          bool
	IncomeGrowthQuarters  int
}

// DefaultParams returns the unfiltered screen
func DefaultParams() Params {
	return Params{
		LookbackDays:          DefaultLookbackDays,
		Profitability:         ProfitabilityAll,
		RevenueGrowthQuarters: DefaultGrowthQuarters,
		IncomeGrowthQuarters:  DefaultGrowthQuarters,
	}
}

// ParseParams reads criteria from query parameters and validates them
func ParseParams(q url.Values) (Params, error) {
	p := DefaultParams()
	var err error

	p.JustTurned = parseBool(q.Get("justTurned"))
	p.AllowOTC = parseBool(q.Get("allowOTC"))
	p.RevenueGrowth = parseBool(q.Get("revenueGrowth"))
	p.IncomeGrowth = parseBool(q.Get("incomeGrowth"))

	if p.LookbackDays, err = parseInt(q, "lookbackDays", p.LookbackDays); err != nil {
		return p, err
	}
	if p.RevenueGrowthQuarters, err = parseInt(q, "revenueGrowthQuarters", p.RevenueGrowthQuarters); err != nil {
		return p, err
	}
	if p.IncomeGrowthQuarters, err = parseInt(q, "incomeGrowthQuarters", p.IncomeGrowthQuarters); err != nil {
		return p, err
	}
	if p.MinMarketCap, err = parseFloat(q, "minMcap"); err != nil {
		return p, err
	}
	if p.MinPrice, err = parseFloat(q, "minPrice"); err != nil {
		return p, err
	}
	if p.MinAvgVolume, err = parseFloat(q, "minAvgVol"); err != nil {
		return p, err
	}
	if v := q.Get("profitability"); v != "" {
		p.Profitability = Profitability(strings.ToLower(v))
	}

	return p, p.Validate()
}

// Validate checks every criterion against its allowed range
func (p Params) Validate() error {
	if p.LookbackDays < MinLookbackDays || p.LookbackDays > MaxLookbackDays {
		return fmt.Errorf("%w: lookbackDays must be between %d and %d", ErrInvalidParam, MinLookbackDays, MaxLookbackDays)
	}
	if p.RevenueGrowthQuarters < MinGrowthQuarters || p.RevenueGrowthQuarters > MaxGrowthQuarters {
		return fmt.Errorf("%w: revenueGrowthQuarters must be between %d and %d", ErrInvalidParam, MinGrowthQuarters, MaxGrowthQuarters)
	}
	if p.IncomeGrowthQuarters < MinGrowthQuarters || p.IncomeGrowthQuarters > MaxGrowthQuarters {
		return fmt.Errorf("%w: incomeGrowthQuarters must be between %d and %d", ErrInvalidParam, MinGrowthQuarters, MaxGrowthQuarters)
	}
	switch p.Profitability {
	case ProfitabilityAll, ProfitabilityProfitable, ProfitabilityUnprofitable:
	default:
		return fmt.Errorf("%w: profitability must be one of all, profitable, unprofitable", ErrInvalidParam)
	}
	thresholds := []struct {
		name  string
		value float64
	}{
		{"minMcap", p.MinMarketCap},
		{"minPrice", p.MinPrice},
		{"minAvgVol", p.MinAvgVolume},
	}
	for _, th := range thresholds {
		if th.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidParam, th.name)
		}
	}
	return nil
}

// CacheKey identifies the response for these criteria
func (p Params) CacheKey() string {
	return fmt.Sprintf("golden-cross-%t-%d-%s-%t-%d-%t-%d-%s-%s-%s-%t",
		p.JustTurned, p.LookbackDays, p.Profitability,
		p.RevenueGrowth, p.RevenueGrowthQuarters,
		p.IncomeGrowth, p.IncomeGrowthQuarters,
		formatFloat(p.MinMarketCap), formatFloat(p.MinPrice), formatFloat(p.MinAvgVolume),
		p.AllowOTC,
	)
}

func parseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func parseInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s must be an integer", ErrInvalidParam, key)
	}
	return n, nil
}

func parseFloat(q url.Values, key string) (float64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParam, key)
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
