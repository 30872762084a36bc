// Package universe decides which listed symbols count as common stock.
//
// There is no authoritative instrument-type field in the symbol metadata, so
// the decision is a ticker-shape heuristic: warrants (W), rights (X), units (U,
// WS) and class or preferred lines with a dot are excluded.
package universe

import (
	"regexp"
	"strings"

	"nasdaq_screener/models"
)

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

var excludedSuffixes = []string{"W", "X", "U", "WS"}

var otcPrefixes = []string{"OTC", "PINK"}

// IsCommonStockTicker applies the ticker-shape heuristic
func IsCommonStockTicker(symbol string) bool {
	if !tickerPattern.MatchString(symbol) {
		return false
	}
	if strings.Contains(symbol, ".") {
		return false
	}
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(symbol, suffix) {
			return false
		}
	}
	return true
}

// IsOTCExchange reports whether the exchange name starts with OTC or PINK, ignoring case
func IsOTCExchange(exchange string) bool {
	upper := strings.ToUpper(strings.TrimSpace(exchange))
	for _, prefix := range otcPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// Eligible reports whether a symbol may appear in screener results
func Eligible(meta models.Symbol, allowOTC bool) bool {
	if !IsCommonStockTicker(meta.Symbol) {
		return false
	}
	if meta.IsEtf || meta.IsFund {
		return false
	}
	if !allowOTC && IsOTCExchange(meta.Exchange) {
		return false
	}
	return true
}
