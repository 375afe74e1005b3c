package ratelimit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okarlsson/waitgate/internal/cache"
	"github.com/okarlsson/waitgate/internal/models"
)

// WindowStore records one fixed window per credential. Take applies the whole
// "compare window, increment-or-reset" step as a single atomic storage
// operation so concurrently running instances share one budget.
type WindowStore interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// DatabaseWindowStore keeps windows in the api_rate_limits table, one row per
// credential. A fresh window supersedes the stale one in place, which is the
// lazy purge: no background sweep is involved for active credentials.
type DatabaseWindowStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseWindowStore constructs the SQL-backed window store.
func NewDatabaseWindowStore(db *gorm.DB) *DatabaseWindowStore {
	if db == nil {
		return nil
	}
	return &DatabaseWindowStore{db: db, now: time.Now}
}

// SetClock replaces the store's time source. Tests use it to step across
// window boundaries without sleeping.
func (s *DatabaseWindowStore) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Take implements WindowStore. A denied request does not increment the counter.
func (s *DatabaseWindowStore) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if s == nil {
		return false, 0, errors.New("ratelimit: window store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var (
		allowed   bool
		remaining int
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var win models.RateLimitWindow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&win, "key = ?", key).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			allowed = true
			remaining = limit - 1
			win = models.RateLimitWindow{
				Key:          key,
				WindowStart:  now,
				RequestCount: 1,
			}
			return tx.Create(&win).Error

		case err != nil:
			return err

		case now.Sub(win.WindowStart) >= window:
			// Window elapsed: the reset in place purges the stale record.
			allowed = true
			remaining = limit - 1
			win.WindowStart = now
			win.RequestCount = 1
			return tx.Save(&win).Error

		case win.RequestCount < limit:
			allowed = true
			win.RequestCount++
			remaining = limit - win.RequestCount
			return tx.Save(&win).Error

		default:
			allowed = false
			remaining = 0
			return nil
		}
	})
	if err != nil {
		return false, 0, err
	}

	return allowed, remaining, nil
}

// PurgeStale removes windows that ended before the cutoff. Only the
// maintenance cleaner calls this, to reap rows for credentials that went
// idle; live credentials are reset in place by Take.
func (s *DatabaseWindowStore) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("ratelimit: window store not initialised")
	}
	res := s.db.WithContext(ctx).
		Where("window_start < ?", cutoff).
		Delete(&models.RateLimitWindow{})
	return res.RowsAffected, res.Error
}

// CacheWindowStore adapts a shared cache.Store (typically Redis) to the
// WindowStore interface. INCR-based counting keeps incrementing past the
// limit within a window; allow/deny semantics are unaffected because the
// counter resets with the key TTL.
type CacheWindowStore struct {
	store cache.Store
}

// NewCacheWindowStore wraps a cache store in a WindowStore implementation.
func NewCacheWindowStore(store cache.Store) *CacheWindowStore {
	if store == nil {
		return nil
	}
	return &CacheWindowStore{store: store}
}

// Take implements WindowStore.
func (s *CacheWindowStore) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if s == nil {
		return false, 0, errors.New("ratelimit: window store not initialised")
	}

	count, _, err := s.store.IncrementWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(limit), remaining, nil
}
