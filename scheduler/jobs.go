package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nasdaq_screener/config"
	"nasdaq_screener/services/movingaverage"
)

// Runner executes a moving-average build
type Runner interface {
	Execute(ctx context.Context, req movingaverage.RunRequest) ([]movingaverage.Summary, error)
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron    *gocron.Scheduler
	cfg     config.ScheduleConfig
	loc     *time.Location
	builder Runner
	log     *logrus.Logger
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg config.ScheduleConfig, builder Runner, log *logrus.Logger) (*Scheduler, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", tz, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    gocron.NewScheduler(loc),
		cfg:     cfg,
		loc:     loc,
		builder: builder,
		log:     log,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron.SingletonModeAll()
	return s, nil
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("Scheduler disabled")
		return nil
	}

	// Build moving averages after the closing prices have been loaded
	if _, err := s.cron.Every(1).Day().At(s.cfg.DailyAt).Do(s.buildDailyMovingAverages); err != nil {
		return fmt.Errorf("failed to schedule moving-average build: %w", err)
	}

	s.cron.StartAsync()
	s.log.WithFields(logrus.Fields{
		"daily_at": s.cfg.DailyAt,
		"timezone": s.loc.String(),
	}).Info("Scheduler started successfully")
	return nil
}

// Stop stops the scheduler and cancels a running build
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.log.Info("Scheduler stopped")
}

// buildDailyMovingAverages runs the nightly build on trading days
func (s *Scheduler) buildDailyMovingAverages() {
	now := s.now().In(s.loc)
	if !isTradingDay(now) {
		s.log.WithField("day", now.Weekday().String()).Debug("Skipping moving-average build on weekend")
		return
	}

	runID := uuid.New().String()
	entry := s.log.WithField("run_id", runID)
	entry.Info("Starting nightly moving-average build...")

	summaries, err := s.builder.Execute(s.ctx, movingaverage.RunRequest{RunID: runID})
	switch {
	case errors.Is(err, movingaverage.ErrAlreadyRunning):
		entry.Warn("Moving-average build already running, skipping")
	case errors.Is(err, movingaverage.ErrNoPriceData):
		entry.Warn("No price data loaded yet, skipping")
	case err != nil:
		entry.WithError(err).Error("Nightly moving-average build failed")
	default:
		for _, sum := range summaries {
			entry.WithFields(logrus.Fields{
				"date":    sum.Date.Format("2006-01-02"),
				"written": sum.Written,
				"skipped": sum.Skipped,
				"failed":  sum.Failed,
			}).Info("Nightly moving-average build completed")
		}
	}
}

// isTradingDay reports whether US equity markets trade on the day of t.
// Exchange holidays are not modelled; a holiday run rebuilds the last
// session idempotently.
func isTradingDay(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}
