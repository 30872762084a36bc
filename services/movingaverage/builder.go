package movingaverage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nasdaq_screener/config"
	"nasdaq_screener/models"
	"nasdaq_screener/services/analysis"
	"nasdaq_screener/services/cache"
	"nasdaq_screener/services/marketdata"
)

var (
	// ErrNoPriceData is returned when the price store is empty
	ErrNoPriceData = errors.New("no price data")
	// ErrInsufficientHistory marks a symbol skipped for lack of history
	ErrInsufficientHistory = errors.New("insufficient price history")
	// ErrAlreadyRunning is returned when a run is requested while one is active
	ErrAlreadyRunning = errors.New("moving-average build already running")
)

// Options tunes a Builder
type Options struct {
	BatchSize    int
	Pause        time.Duration
	Concurrency  int
	HistoryLimit int
	BackfillDays int
}

// DefaultOptions returns the standard nightly settings
func DefaultOptions() Options {
	return Options{
		BatchSize:    50,
		Pause:        100 * time.Millisecond,
		Concurrency:  1,
		HistoryLimit: 220,
		BackfillDays: 30,
	}
}

// OptionsFromConfig maps builder configuration to Options
func OptionsFromConfig(cfg config.BuilderConfig) Options {
	return Options{
		BatchSize:    cfg.BatchSize,
		Pause:        cfg.Pause,
		Concurrency:  cfg.Concurrency,
		HistoryLimit: cfg.HistoryLimit,
		BackfillDays: cfg.BackfillDays,
	}
}

// RunRequest selects what a run builds. Date overrides the latest price
// date; Backfill rebuilds every price date in the backfill window.
type RunRequest struct {
	RunID    string
	Date     *time.Time
	Backfill bool
}

// Summary reports one per-date pass
type Summary struct {
	Date     time.Time     `json:"date"`
	Symbols  int           `json:"symbols"`
	Written  int           `json:"written"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Builder maintains daily_ma from daily_prices
type Builder struct {
	repo        *marketdata.Repository
	opts        Options
	log         *logrus.Logger
	invalidator cache.Invalidator
	now         func() time.Time
	running     sync.Mutex
}

// NewBuilder creates a new moving-average builder
func NewBuilder(repo *marketdata.Repository, opts Options, log *logrus.Logger) *Builder {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.HistoryLimit < analysis.MaxWindow {
		opts.HistoryLimit = def.HistoryLimit
	}
	if opts.BackfillDays <= 0 {
		opts.BackfillDays = def.BackfillDays
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}

	return &Builder{
		repo: repo,
		opts: opts,
		log:  log,
		now:  time.Now,
	}
}

// WithInvalidator registers the cache whose tags are dropped after a run
func (b *Builder) WithInvalidator(inv cache.Invalidator) *Builder {
	b.invalidator = inv
	return b
}

// Running reports whether a run is in progress
func (b *Builder) Running() bool {
	if b.running.TryLock() {
		b.running.Unlock()
		return false
	}
	return true
}

// Run holds the build slot between Reserve and the end of Execute
type Run struct {
	b    *Builder
	used atomic.Bool
	once sync.Once
}

// Reserve claims the build slot without starting work. The caller must
// Execute or Release the returned Run.
func (b *Builder) Reserve() (*Run, error) {
	if !b.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	return &Run{b: b}, nil
}

// Release frees the build slot without running; later calls are no-ops
func (r *Run) Release() {
	r.once.Do(func() {
		r.used.Store(true)
		r.b.running.Unlock()
	})
}

// Execute performs the reserved run and frees the slot. A Run executes once.
func (r *Run) Execute(ctx context.Context, req RunRequest) ([]Summary, error) {
	if r.used.Swap(true) {
		return nil, ErrAlreadyRunning
	}
	defer r.Release()
	return r.b.execute(ctx, req)
}

// Execute performs a normal or backfill run. Only one run is active at a time.
func (b *Builder) Execute(ctx context.Context, req RunRequest) ([]Summary, error) {
	run, err := b.Reserve()
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx, req)
}

func (b *Builder) execute(ctx context.Context, req RunRequest) ([]Summary, error) {
	entry := b.log.WithField("run_id", req.RunID)

	var dates []time.Time
	switch {
	case req.Backfill:
		since := models.TradingDay(b.now()).AddDate(0, 0, -b.opts.BackfillDays)
		found, err := b.repo.PriceDatesSince(ctx, since)
		if err != nil {
			return nil, err
		}
		dates = found
		entry.WithField("dates", len(dates)).Info("Backfilling moving averages")
	case req.Date != nil:
		dates = []time.Time{models.TradingDay(*req.Date)}
	default:
		latest, ok, err := b.repo.LatestPriceDate(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoPriceData
		}
		dates = []time.Time{latest}
	}

	summaries := make([]Summary, 0, len(dates))
	for _, date := range dates {
		summary, err := b.BuildDate(ctx, date, entry)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}

	if err := cache.InvalidateAll(ctx, b.invalidator, cache.TagGoldenCross, cache.TagDailyData); err != nil {
		entry.WithError(err).Warn("Cache invalidation failed")
	}
	return summaries, nil
}

// BuildDate computes snapshots on date for every symbol priced that day.
// Per-symbol failures are logged and counted; only cancellation aborts.
func (b *Builder) BuildDate(ctx context.Context, date time.Time, entry *logrus.Entry) (Summary, error) {
	if entry == nil {
		entry = logrus.NewEntry(b.log)
	}
	date = models.TradingDay(date)
	started := time.Now()
	summary := Summary{Date: date}
	entry = entry.WithField("date", date.Format("2006-01-02"))

	symbols, err := b.repo.SymbolsOn(ctx, date)
	if err != nil {
		return summary, err
	}
	summary.Symbols = len(symbols)
	entry.WithField("symbols", len(symbols)).Info("Building daily moving averages...")

	var mu sync.Mutex
	record := func(symbol string, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			summary.Written++
		case errors.Is(err, ErrInsufficientHistory):
			summary.Skipped++
			entry.WithField("symbol", symbol).Debug("Skipping symbol: insufficient history")
		default:
			summary.Failed++
			entry.WithField("symbol", symbol).WithError(err).Error("Failed to build moving averages")
		}
	}

	for start := 0; start < len(symbols); start += b.opts.BatchSize {
		end := start + b.opts.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		if err := b.buildBatch(ctx, symbols[start:end], date, record); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
		entry.WithFields(logrus.Fields{
			"batch_end": end,
			"total":     len(symbols),
		}).Debug("Batch complete")
	}

	summary.Duration = time.Since(started)
	entry.WithFields(logrus.Fields{
		"written":  summary.Written,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
		"duration": summary.Duration.String(),
	}).Info("Daily moving averages built")
	return summary, nil
}

func (b *Builder) buildBatch(ctx context.Context, symbols []string, date time.Time, record func(string, error)) error {
	if b.opts.Concurrency <= 1 {
		for _, symbol := range symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := b.BuildSymbol(ctx, symbol, date)
			record(symbol, err)
			if err := b.pause(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := b.BuildSymbol(gctx, symbol, date)
			record(symbol, err)
			return b.pause(gctx)
		})
	}
	return g.Wait()
}

// BuildSymbol computes and stores the snapshot of one symbol on date
func (b *Builder) BuildSymbol(ctx context.Context, symbol string, date time.Time) (*models.DailyMA, error) {
	bars, err := b.repo.RecentBars(ctx, symbol, date, b.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if len(bars) < analysis.MaxWindow {
		return nil, fmt.Errorf("%w: %s has %d rows", ErrInsufficientHistory, symbol, len(bars))
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.AdjClose.Decimal.InexactFloat64()
		volumes[i] = float64(bar.Volume)
	}

	avg := analysis.TrailingAverages(closes, volumes)
	snap := &models.DailyMA{
		Symbol:  symbol,
		Date:    date,
		MA20:    avg.MA20,
		MA50:    avg.MA50,
		MA100:   avg.MA100,
		MA200:   avg.MA200,
		VolMA30: avg.VolMA30,
	}
	if err := b.repo.UpsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (b *Builder) pause(ctx context.Context) error {
	if b.opts.Pause <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.opts.Pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
