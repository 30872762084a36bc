package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nasdaq_screener/models"
)

// maxInList bounds the number of bind parameters in one IN (...) clause
const maxInList = 500

// Repository provides read access to the price store, symbol metadata and
// quarterly financials, and write access to moving-average snapshots.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new market data repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying connection
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// LatestPriceDate returns the most recent date present in daily_prices
func (r *Repository) LatestPriceDate(ctx context.Context) (time.Time, bool, error) {
	var bar models.DailyPrice
	err := r.db.WithContext(ctx).Select("date").Order("date DESC").Take(&bar).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load latest price date: %w", err)
	}
	return models.TradingDay(bar.Date), true, nil
}

// LatestSnapshotDate returns the most recent date present in daily_ma
func (r *Repository) LatestSnapshotDate(ctx context.Context) (time.Time, bool, error) {
	var snap models.DailyMA
	err := r.db.WithContext(ctx).Select("date").Order("date DESC").Take(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load latest snapshot date: %w", err)
	}
	return models.TradingDay(snap.Date), true, nil
}

// PriceDatesSince returns the distinct price dates on or after since, newest first
func (r *Repository) PriceDatesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var dates []time.Time
	err := r.db.WithContext(ctx).Model(&models.DailyPrice{}).
		Distinct("date").
		Where("date >= ?", models.TradingDay(since)).
		Order("date DESC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load price dates: %w", err)
	}
	for i := range dates {
		dates[i] = models.TradingDay(dates[i])
	}
	return dates, nil
}

// SymbolsOn returns every symbol with a price bar on date, ascending
func (r *Repository) SymbolsOn(ctx context.Context, date time.Time) ([]string, error) {
	var symbols []string
	err := r.db.WithContext(ctx).Model(&models.DailyPrice{}).
		Distinct("symbol").
		Where("date = ?", models.TradingDay(date)).
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load symbols for %s: %w", date.Format("2006-01-02"), err)
	}
	return symbols, nil
}

// RecentBars returns up to limit bars with an adjusted close at or before
// date, oldest first.
func (r *Repository) RecentBars(ctx context.Context, symbol string, date time.Time, limit int) ([]models.DailyPrice, error) {
	var bars []models.DailyPrice
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND date <= ? AND adj_close IS NOT NULL", symbol, models.TradingDay(date)).
		Order("date DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}

	// Reverse for chronological order
	for i := 0; i < len(bars)/2; i++ {
		bars[i], bars[len(bars)-1-i] = bars[len(bars)-1-i], bars[i]
	}
	return bars, nil
}

// UpsertSnapshot writes a snapshot keyed by (symbol, date), overwriting every average
func (r *Repository) UpsertSnapshot(ctx context.Context, snap *models.DailyMA) error {
	snap.Date = models.TradingDay(snap.Date)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"ma20", "ma50", "ma100", "ma200", "vol_ma30", "updated_at"}),
	}).Create(snap).Error
	if err != nil {
		return fmt.Errorf("failed to upsert moving averages for %s: %w", snap.Symbol, err)
	}
	return nil
}

// OrderedSnapshotsOn returns the snapshots on date whose four averages are
// present and strictly descending.
func (r *Repository) OrderedSnapshotsOn(ctx context.Context, date time.Time) ([]models.DailyMA, error) {
	var snaps []models.DailyMA
	err := r.db.WithContext(ctx).
		Where("date = ?", models.TradingDay(date)).
		Where("ma20 IS NOT NULL AND ma50 IS NOT NULL AND ma100 IS NOT NULL AND ma200 IS NOT NULL").
		Where("ma20 > ma50 AND ma50 > ma100 AND ma100 > ma200").
		Order("symbol ASC").
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ordered snapshots: %w", err)
	}
	return snaps, nil
}

// SymbolMeta loads metadata for the given symbols keyed by symbol
func (r *Repository) SymbolMeta(ctx context.Context, symbols []string) (map[string]models.Symbol, error) {
	out := make(map[string]models.Symbol, len(symbols))
	for _, chunk := range chunks(symbols) {
		var rows []models.Symbol
		if err := r.db.WithContext(ctx).Where("symbol IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load symbol metadata: %w", err)
		}
		for _, row := range rows {
			out[row.Symbol] = row
		}
	}
	return out, nil
}

// ClosesOn returns the adjusted close of each symbol on date. Symbols without
// a bar are absent from the map.
func (r *Repository) ClosesOn(ctx context.Context, symbols []string, date time.Time) (map[string]decimal.NullDecimal, error) {
	out := make(map[string]decimal.NullDecimal, len(symbols))
	for _, chunk := range chunks(symbols) {
		var bars []models.DailyPrice
		err := r.db.WithContext(ctx).
			Select("symbol", "adj_close").
			Where("date = ? AND symbol IN ?", models.TradingDay(date), chunk).
			Find(&bars).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load closes: %w", err)
		}
		for _, bar := range bars {
			out[bar.Symbol] = bar.AdjClose
		}
	}
	return out, nil
}

// recentClosesQuery ranks each symbol's bars newest first and keeps the last
// n rows. The date column is left out of the outer select so drivers that
// only parse declared DATE columns still scan cleanly.
const recentClosesQuery = `
SELECT symbol, adj_close FROM (
	SELECT symbol, adj_close,
		ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY date DESC) AS rn
	FROM daily_prices
	WHERE symbol IN ? AND date <= ? AND adj_close IS NOT NULL
) ranked
WHERE rn <= ?
ORDER BY symbol ASC, rn DESC`

// RecentCloses returns up to limit adjusted closes per symbol at or before
// date, oldest first. The window is counted in trading rows, so weekends and
// exchange holidays never shorten it.
func (r *Repository) RecentCloses(ctx context.Context, symbols []string, date time.Time, limit int) (map[string][]decimal.NullDecimal, error) {
	out := make(map[string][]decimal.NullDecimal, len(symbols))
	if limit <= 0 {
		return out, nil
	}
	for _, chunk := range chunks(symbols) {
		var rows []struct {
			Symbol   string
			AdjClose decimal.NullDecimal
		}
		err := r.db.WithContext(ctx).
			Raw(recentClosesQuery, chunk, models.TradingDay(date), limit).
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load recent closes: %w", err)
		}
		for _, row := range rows {
			out[row.Symbol] = append(out[row.Symbol], row.AdjClose)
		}
	}
	return out, nil
}

// RecentQuarters returns up to limit quarters per symbol, most recent first
func (r *Repository) RecentQuarters(ctx context.Context, symbols []string, limit int) (map[string][]models.QuarterlyFinancial, error) {
	out := make(map[string][]models.QuarterlyFinancial, len(symbols))
	for _, chunk := range chunks(symbols) {
		var rows []models.QuarterlyFinancial
		err := r.db.WithContext(ctx).
			Where("symbol IN ?", chunk).
			Order("symbol ASC, period_end_date DESC").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load quarterly financials: %w", err)
		}
		for _, row := range rows {
			if len(out[row.Symbol]) < limit {
				out[row.Symbol] = append(out[row.Symbol], row)
			}
		}
	}
	return out, nil
}

// LatestQuarters returns up to limit quarters for every symbol with
// financials, most recent first.
func (r *Repository) LatestQuarters(ctx context.Context, limit int) (map[string][]models.QuarterlyFinancial, error) {
	ranked := r.db.Raw(`
SELECT id FROM (
	SELECT id, ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY period_end_date DESC) AS rn
	FROM quarterly_financials
) ranked
WHERE rn <= ?`, limit)

	var rows []models.QuarterlyFinancial
	err := r.db.WithContext(ctx).
		Where("id IN (?)", ranked).
		Order("symbol ASC, period_end_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest quarters: %w", err)
	}

	out := make(map[string][]models.QuarterlyFinancial)
	for _, row := range rows {
		out[row.Symbol] = append(out[row.Symbol], row)
	}
	return out, nil
}

func chunks(symbols []string) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += maxInList {
		end := start + maxInList
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}
