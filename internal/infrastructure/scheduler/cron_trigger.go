// Package scheduler triggers the daily reconciliation sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/palletledger/backend/internal/application/sweep"
	"github.com/palletledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SweepRunner runs one reconciliation sweep; sweep.Sweeper implements it
type SweepRunner interface {
	Run(ctx context.Context, dateFrom, dateTo time.Time, autoSuggest bool) (*sweep.Report, error)
}

// CronTriggerConfig holds configuration for the daily sweep trigger
type CronTriggerConfig struct {
	// DailyHour and DailyMinute are the local wall-clock time of the daily run
	DailyHour   int
	DailyMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// LookbackDays is the width of the trailing window, ending today
	LookbackDays int
	AutoSuggest  bool
	Location     *time.Location
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailyHour:     2, // 2am
		DailyMinute:   0,
		CheckInterval: time.Minute,
		LookbackDays:  7,
		AutoSuggest:   true,
		Location:      time.Local,
	}
}

// Validate checks the configured time of day and intervals
func (c CronTriggerConfig) Validate() error {
	if c.DailyHour < 0 || c.DailyHour > 23 || c.DailyMinute < 0 || c.DailyMinute > 59 {
		return fmt.Errorf("%w: daily time %02d:%02d", ErrInvalidConfig, c.DailyHour, c.DailyMinute)
	}
	if c.CheckInterval <= 0 || c.CheckInterval > time.Minute {
		return fmt.Errorf("%w: check interval must be in (0, 1m], got %s", ErrInvalidConfig, c.CheckInterval)
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("%w: lookback days must be positive", ErrInvalidConfig)
	}
	return nil
}

// CronTrigger runs the sweep once a day over the trailing lookback window
type CronTrigger struct {
	config CronTriggerConfig
	runner SweepRunner
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
	lastReport  *sweep.Report
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, runner SweepRunner, logger *zap.Logger) (*CronTrigger, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CronTrigger{
		config: config,
		runner: runner,
		logger: logger.Named("sweep-trigger"),
		now:    time.Now,
	}, nil
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("daily_hour", c.config.DailyHour),
		zap.Int("daily_minute", c.config.DailyMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
		zap.Int("lookback_days", c.config.LookbackDays),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight sweep, or for ctx to expire
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically if it's time to run the sweep
func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the sweep when the configured minute is reached, at most once per day
func (c *CronTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now().In(c.config.Location)
	currentDate := now.Format(time.DateOnly)

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	if now.Hour() != c.config.DailyHour || now.Minute() != c.config.DailyMinute {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering daily reconciliation sweep", zap.String("date", currentDate))
	_, _ = c.RunNow(ctx)
	return true
}

// Window returns the trailing lookback window ending on the day of now
func (c *CronTrigger) Window(now time.Time) (time.Time, time.Time) {
	local := now.In(c.config.Location)
	to := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return to.AddDate(0, 0, -(c.config.LookbackDays - 1)), to
}

// RunNow runs the sweep over the current lookback window. A sweep already held by
// another instance is logged and reported as an InvalidState error.
func (c *CronTrigger) RunNow(ctx context.Context) (*sweep.Report, error) {
	from, to := c.Window(c.now())
	report, err := c.runner.Run(ctx, from, to, c.config.AutoSuggest)
	if err != nil {
		if shared.CodeOf(err) == shared.CodeInvalidState {
			c.logger.Info("Sweep skipped, another run holds the lock", zap.Error(err))
		} else {
			c.logger.Error("Scheduled sweep failed",
				zap.Time("date_from", from),
				zap.Time("date_to", to),
				zap.Error(err),
			)
		}
		return nil, err
	}

	c.mu.Lock()
	c.lastReport = report
	c.mu.Unlock()

	c.logger.Info("Scheduled sweep finished",
		zap.String("run_id", report.RunID.String()),
		zap.Int("processed", report.Counters.Processed),
		zap.Int("auto_linked", report.Counters.AutoLinked),
		zap.Int("suggestions", report.Counters.SuggestionsCreated),
		zap.Int("errors", report.Counters.Errors),
		zap.Bool("partial", report.Partial),
	)
	return report, nil
}

// LastReport returns the report of the most recent successful run, if any
func (c *CronTrigger) LastReport() *sweep.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}
