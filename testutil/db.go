// Package testutil builds in-memory databases and fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nasdaq_screener/models"
)

// NewDB opens a migrated in-memory SQLite database private to the test
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.MigrateStockModels(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// Day returns midnight UTC of the given calendar date
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SeedPrices inserts one bar per consecutive calendar day starting at start
func SeedPrices(t testing.TB, db *gorm.DB, symbol string, start time.Time, closes []float64, volume int64) {
	t.Helper()

	bars := make([]models.DailyPrice, len(closes))
	for i, c := range closes {
		px := decimal.NewNullDecimal(decimal.NewFromFloat(c))
		bars[i] = models.DailyPrice{
			Symbol:   symbol,
			Date:     start.AddDate(0, 0, i),
			Open:     px,
			High:     px,
			Low:      px,
			Close:    px,
			AdjClose: px,
			Volume:   volume,
		}
	}
	if err := db.CreateInBatches(bars, 100).Error; err != nil {
		t.Fatalf("failed to seed prices for %s: %v", symbol, err)
	}
}

// Sessions returns the weekdays in [from, to] that are not listed as holidays
func Sessions(from, to time.Time, holidays ...time.Time) []time.Time {
	closed := make(map[time.Time]bool, len(holidays))
	for _, h := range holidays {
		closed[h] = true
	}
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || closed[d] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SeedSessions inserts one bar per session; closes are matched from the end
// so the last close lands on the last session.
func SeedSessions(t testing.TB, db *gorm.DB, symbol string, sessions []time.Time, closes []float64, volume int64) {
	t.Helper()

	if len(closes) > len(sessions) {
		t.Fatalf("%d closes for %d sessions", len(closes), len(sessions))
	}
	sessions = sessions[len(sessions)-len(closes):]
	bars := make([]models.DailyPrice, len(closes))
	for i, c := range closes {
		px := decimal.NewNullDecimal(decimal.NewFromFloat(c))
		bars[i] = models.DailyPrice{
			Symbol:   symbol,
			Date:     sessions[i],
			Open:     px,
			High:     px,
			Low:      px,
			Close:    px,
			AdjClose: px,
			Volume:   volume,
		}
	}
	if err := db.CreateInBatches(bars, 100).Error; err != nil {
		t.Fatalf("failed to seed sessions for %s: %v", symbol, err)
	}
}

// SeedSymbol inserts symbol metadata; a zero market cap is stored as NULL
func SeedSymbol(t testing.TB, db *gorm.DB, symbol, exchange string, marketCap float64) {
	t.Helper()

	meta := models.Symbol{Symbol: symbol, Exchange: exchange, IsActivelyTrading: true}
	if marketCap != 0 {
		meta.MarketCap = decimal.NewNullDecimal(decimal.NewFromFloat(marketCap))
	}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("failed to seed symbol %s: %v", symbol, err)
	}
}

// SeedQuarters inserts quarterly figures given oldest first, one quarter apart.
// A nil revenue or EPS is stored as NULL.
func SeedQuarters(t testing.TB, db *gorm.DB, symbol string, lastPeriodEnd time.Time, revenue, eps []*float64) {
	t.Helper()

	n := len(revenue)
	if len(eps) > n {
		n = len(eps)
	}
	for i := 0; i < n; i++ {
		q := models.QuarterlyFinancial{
			Symbol:        symbol,
			PeriodEndDate: lastPeriodEnd.AddDate(0, -3*(n-1-i), 0),
		}
		if i < len(revenue) && revenue[i] != nil {
			q.Revenue = decimal.NewNullDecimal(decimal.NewFromFloat(*revenue[i]))
		}
		if i < len(eps) && eps[i] != nil {
			q.EpsDiluted = decimal.NewNullDecimal(decimal.NewFromFloat(*eps[i]))
		}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("failed to seed quarter for %s: %v", symbol, err)
		}
	}
}

// Rising returns n closes increasing linearly from start by step
func Rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// F returns a pointer to v
func F(v float64) *float64 { return &v }
