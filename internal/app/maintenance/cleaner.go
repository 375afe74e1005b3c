package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/internal/ratelimit"
	"github.com/okarlsson/waitgate/pkg/logger"
)

const (
	defaultSchedule = "@hourly"

	// Rate-limit rows are reset in place while a credential stays active, so
	// anything this old belongs to a credential nobody is using.
	staleWindowAge = 24 * time.Hour
)

// Cleaner runs background maintenance: expired cache entries (consumed or
// abandoned magic-link tokens) and rate-limit rows for idle credentials. Both
// stores already purge lazily on access; the cleaner only reaps rows nothing
// touches anymore.
type Cleaner struct {
	db       *gorm.DB
	windows  *ratelimit.DatabaseWindowStore
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the cleanup job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, windows *ratelimit.DatabaseWindowStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:       db,
		windows:  windows,
		now:      time.Now,
		schedule: defaultSchedule,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup job with the scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Used by the scheduler,
// tests, and graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	expired, err := c.cleanupCacheEntries(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	var stale int64
	if c.windows != nil {
		stale, err = c.windows.PurgeStale(ctx, c.now().Add(-staleWindowAge))
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if expired > 0 || stale > 0 {
		c.log.Info("maintenance run",
			zap.Int64("expired_cache_entries", expired),
			zap.Int64("stale_rate_limit_windows", stale),
		)
	}

	return errs
}

func (c *Cleaner) cleanupCacheEntries(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, nil
	}

	// Rows without an expiry carry the zero time, which sorts before the Unix
	// epoch; the lower bound keeps them out of the sweep.
	res := c.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Unix(0, 0), c.now()).
		Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}
