package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Symbol represents a NASDAQ listed instrument and its descriptive metadata
type Symbol struct {
	Symbol            string              `gorm:"primaryKey;size:16" json:"symbol"`
	CompanyName       string              `json:"company_name"`
	Exchange          string              `gorm:"size:64" json:"exchange"`
	ExchangeShortName string              `gorm:"size:32" json:"exchange_short_name"`
	Sector            string              `json:"sector"`
	Industry          string              `json:"industry"`
	Country           string              `gorm:"size:8" json:"country"`
	MarketCap         decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"market_cap"`
	IsEtf             bool                `json:"is_etf"`
	IsFund            bool                `json:"is_fund"`
	IsActivelyTrading bool                `gorm:"default:true" json:"is_actively_trading"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// DailyPrice is one end-of-day bar. Rows without an adjusted close are ignored by every computation.
type DailyPrice struct {
	ID       uint                `gorm:"primaryKey" json:"-"`
	Symbol   string              `gorm:"size:16;not null;uniqueIndex:idx_daily_prices_symbol_date,priority:1" json:"symbol"`
	Date     time.Time           `gorm:"type:date;not null;uniqueIndex:idx_daily_prices_symbol_date,priority:2;index:idx_daily_prices_date" json:"date"`
	Open     decimal.NullDecimal `gorm:"type:decimal(18,6)" json:"open"`
	High     decimal.NullDecimal `gorm:"type:decimal(18,6)" json:"high"`
	Low      decimal.NullDecimal `gorm:"type:decimal(18,6)" json:"low"`
	Close    decimal.NullDecimal `gorm:"type:decimal(18,6)" json:"close"`
	AdjClose decimal.NullDecimal `gorm:"type:decimal(18,6)" json:"adj_close"`
	Volume   int64               `json:"volume"`
}

// DailyMA is the moving-average snapshot of a symbol on a trading day.
// A nil field means the history was shorter than the window.
type DailyMA struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Symbol    string    `gorm:"size:16;not null;uniqueIndex:idx_daily_ma_symbol_date,priority:1" json:"symbol"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_ma_symbol_date,priority:2;index:idx_daily_ma_date" json:"date"`
	MA20      *float64  `gorm:"column:ma20" json:"ma20"`
	MA50      *float64  `gorm:"column:ma50" json:"ma50"`
	MA100     *float64  `gorm:"column:ma100" json:"ma100"`
	MA200     *float64  `gorm:"column:ma200" json:"ma200"`
	VolMA30   *float64  `gorm:"column:vol_ma30" json:"vol_ma30"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the snapshot table name singular
func (DailyMA) TableName() string {
	return "daily_ma"
}

// QuarterlyFinancial holds the fiscal-quarter figures used by the fundamental overlay
type QuarterlyFinancial struct {
	ID                uint                `gorm:"primaryKey" json:"-"`
	Symbol            string              `gorm:"size:16;not null;uniqueIndex:idx_quarterly_financials_symbol_period,priority:1" json:"symbol"`
	PeriodEndDate     time.Time           `gorm:"type:date;not null;uniqueIndex:idx_quarterly_financials_symbol_period,priority:2" json:"period_end_date"`
	Revenue           decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"revenue"`
	OperatingIncome   decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"operating_income"`
	NetIncome         decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"net_income"`
	OperatingCashFlow decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"operating_cash_flow"`
	EpsDiluted        decimal.NullDecimal `gorm:"type:decimal(18,6)" json:"eps_diluted"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// TradingDay truncates t to midnight UTC, the key used for every per-day row
func TradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MigrateStockModels runs database migrations for the screener tables
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Symbol{},
		&DailyPrice{},
		&DailyMA{},
		&QuarterlyFinancial{},
	)
}
