package screener

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestParseParamsDefaults(t *testing.T) {
	p, err := ParseParams(url.Values{})
	if err != nil {
		t.Fatalf("ParseParams failed: %v", err)
	}
	if p != DefaultParams() {
		t.Errorf("params = %+v, want defaults %+v", p, DefaultParams())
	}
	if p.LookbackDays != 10 || p.RevenueGrowthQuarters != 3 || p.IncomeGrowthQuarters != 3 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestParseParamsValues(t *testing.T) {
	q := url.Values{
		"justTurned":            {"true"},
		"lookbackDays":          {"20"},
		"minMcap":               {"1000000000"},
		"minPrice":              {"5.5"},
		"minAvgVol":             {"100000"},
		"allowOTC":              {"TRUE"},
		"profitability":         {"profitable"},
		"revenueGrowth":         {"true"},
		"revenueGrowthQuarters": {"4"},
		"incomeGrowth":          {"false"},
		"incomeGrowthQuarters":  {"8"},
	}

	p, err := ParseParams(q)
	if err != nil {
		t.Fatalf("ParseParams failed: %v", err)
	}
	want := Params{
		JustTurned:            true,
		LookbackDays:          20,
		MinMarketCap:          1e9,
		MinPrice:              5.5,
		MinAvgVolume:          1e5,
		AllowOTC:              true,
		Profitability:         ProfitabilityProfitable,
		RevenueGrowth:         true,
		RevenueGrowthQuarters: 4,
		IncomeGrowth:          false,
		IncomeGrowthQuarters:  8,
	}
	if p != want {
		t.Errorf("params = %+v, want %+v", p, want)
	}
}

func TestParseParamsErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		message string
	}{
		{"revenue quarters too low", url.Values{"revenueGrowthQuarters": {"1"}}, "revenueGrowthQuarters must be between 2 and 8"},
		{"income quarters too high", url.Values{"incomeGrowthQuarters": {"9"}}, "incomeGrowthQuarters must be between 2 and 8"},
		{"lookback zero", url.Values{"lookbackDays": {"0"}}, "lookbackDays"},
		{"lookback too long", url.Values{"lookbackDays": {"61"}}, "lookbackDays"},
		{"lookback not a number", url.Values{"lookbackDays": {"ten"}}, "lookbackDays must be an integer"},
		{"price not a number", url.Values{"minPrice": {"abc"}}, "minPrice must be a number"},
		{"negative market cap", url.Values{"minMcap": {"-1"}}, "minMcap must not be negative"},
		{"infinite volume", url.Values{"minAvgVol": {"Inf"}}, "minAvgVol must be a number"},
		{"unknown profitability", url.Values{"profitability": {"sometimes"}}, "profitability"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.query)
			if !errors.Is(err, ErrInvalidParam) {
				t.Fatalf("error = %v, want ErrInvalidParam", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.message)
			}
		})
	}
}

func TestGrowthQuarterBoundsInclusive(t *testing.T) {
	for _, n := range []string{"2", "8"} {
		q := url.Values{"revenueGrowthQuarters": {n}, "incomeGrowthQuarters": {n}}
		if _, err := ParseParams(q); err != nil {
			t.Errorf("quarters %s rejected: %v", n, err)
		}
	}
}

func TestValidateReportsFirstNegativeThreshold(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"all negative", func(p *Params) {
			p.MinMarketCap, p.MinPrice, p.MinAvgVolume = -1, -1, -1
		}, "minMcap"},
		{"price and volume", func(p *Params) {
			p.MinPrice, p.MinAvgVolume = -1, -1
		}, "minPrice"},
		{"volume only", func(p *Params) { p.MinAvgVolume = -1 }, "minAvgVol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			// repeated to catch unstable ordering
			for i := 0; i < 20; i++ {
				err := p.Validate()
				if !errors.Is(err, ErrInvalidParam) || !strings.Contains(err.Error(), tt.want) {
					t.Fatalf("error = %v, want it to name %s", err, tt.want)
				}
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	a := DefaultParams()
	b := DefaultParams()
	if a.CacheKey() != b.CacheKey() {
		t.Error("equal params must share a cache key")
	}
	if !strings.HasPrefix(a.CacheKey(), "golden-cross-") {
		t.Errorf("cache key %q lacks golden-cross prefix", a.CacheKey())
	}

	b.MinMarketCap = 1e9
	if a.CacheKey() == b.CacheKey() {
		t.Error("different thresholds must not share a cache key")
	}

	c := DefaultParams()
	c.JustTurned = true
	if a.CacheKey() == c.CacheKey() {
		t.Error("justTurned must change the cache key")
	}
}
