package universe

import (
	"testing"

	"nasdaq_screener/models"
)

func TestIsCommonStockTicker(t *testing.T) {
	tests := []struct {
		symbol string
		want   bool
	}{
		{"AAPL", true},
		{"A", true},
		{"MSFT", true},
		{"GOOGL", true},
		{"BRK.B", false},
		{"ABCW", false},
		{"XYZU", false},
		{"FOOWS", false},
		{"ABCX", false},
		{"TOOLONG", false},
		{"aapl", false},
		{"AB1", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCommonStockTicker(tt.symbol); got != tt.want {
			t.Errorf("IsCommonStockTicker(%q) = %v, want %v", tt.symbol, got, tt.want)
		}
	}
}

func TestIsOTCExchange(t *testing.T) {
	tests := []struct {
		exchange string
		want     bool
	}{
		{"NASDAQ", false},
		{"NASDAQ Global Select", false},
		{"OTC", true},
		{"otc markets", true},
		{"Pink Sheets", true},
		{"PINK", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsOTCExchange(tt.exchange); got != tt.want {
			t.Errorf("IsOTCExchange(%q) = %v, want %v", tt.exchange, got, tt.want)
		}
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name     string
		meta     models.Symbol
		allowOTC bool
		want     bool
	}{
		{"nasdaq stock", models.Symbol{Symbol: "AAPL", Exchange: "NASDAQ"}, false, true},
		{"otc excluded", models.Symbol{Symbol: "ABCD", Exchange: "OTC"}, false, false},
		{"otc allowed", models.Symbol{Symbol: "ABCD", Exchange: "OTC"}, true, true},
		{"etf", models.Symbol{Symbol: "QQQ", Exchange: "NASDAQ", IsEtf: true}, false, false},
		{"fund", models.Symbol{Symbol: "FUND", Exchange: "NASDAQ", IsFund: true}, false, false},
		{"warrant", models.Symbol{Symbol: "ABCW", Exchange: "NASDAQ"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.meta, tt.allowOTC); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}
