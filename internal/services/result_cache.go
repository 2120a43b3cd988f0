package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/repo"
)

// ResultCache memoizes analyzer output under content-derived keys with a
// per-entry TTL.
//
// With FailClosed set a storage error on read is reported as a miss, so
// the request recomputes instead of failing. Otherwise the error is
// returned to the caller.
type ResultCache struct {
	DB         *gorm.DB
	FailClosed bool
	Now        func() time.Time
}

// NewResultCache returns a cache over db with the given read-failure policy.
func NewResultCache(db *gorm.DB, failClosed bool) *ResultCache {
	return &ResultCache{DB: db, FailClosed: failClosed, Now: time.Now}
}

func (c *ResultCache) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the cached value for key if it has not expired.
func (c *ResultCache) Get(ctx context.Context, key string) (string, bool, error) {
	e, err := repo.GetCache(ctx, c.DB, key, c.now())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		if c.FailClosed {
			log.Warn().Err(err).Str("cache_key", shortKey(key)).Msg("cache read failed, treating as miss")
			return "", false, nil
		}
		return "", false, err
	}
	return e.Value, true, nil
}

// Set stores value under key until now+ttl, replacing any previous entry.
func (c *ResultCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return repo.SetCache(ctx, c.DB, key, value, c.now(), ttl)
}

// CleanupExpired deletes every expired entry and returns how many were removed.
func (c *ResultCache) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := repo.DeleteExpiredCache(ctx, c.DB, c.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("expired cache entries removed")
	}
	return n, nil
}

// CountActive returns the number of unexpired entries.
func (c *ResultCache) CountActive(ctx context.Context) (int64, error) {
	return repo.CountActiveCache(ctx, c.DB, c.now())
}

func shortKey(k string) string {
	if len(k) > 16 {
		return k[:16]
	}
	return k
}
