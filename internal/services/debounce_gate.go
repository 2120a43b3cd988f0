package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/repo"
)

// DebounceGate enforces a minimum interval between executions of the same
// operation key. State lives in the store, so several processes sharing a
// database share one gate.
//
// When FailOpen is set a storage error on read lets the request through
// (and is logged); otherwise the request is refused for a full interval.
type DebounceGate struct {
	DB       *gorm.DB
	FailOpen bool
	Now      func() time.Time
}

// NewDebounceGate returns a gate over db with the given read-failure policy.
func NewDebounceGate(db *gorm.DB, failOpen bool) *DebounceGate {
	return &DebounceGate{DB: db, FailOpen: failOpen, Now: time.Now}
}

func (g *DebounceGate) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

// CanExecute reports whether key may run now and, if not, how long is left.
// A key that never ran is always allowed.
func (g *DebounceGate) CanExecute(ctx context.Context, key string, interval time.Duration) (bool, time.Duration) {
	remaining, err := g.remaining(ctx, key, interval)
	if err != nil {
		return g.onReadError(key, interval, err)
	}
	return remaining == 0, remaining
}

// RemainingTime returns how long until key may run again, 0 when it may run
// now. It never mutates state.
func (g *DebounceGate) RemainingTime(ctx context.Context, key string, interval time.Duration) time.Duration {
	remaining, err := g.remaining(ctx, key, interval)
	if err != nil {
		_, remaining = g.onReadError(key, interval, err)
	}
	return remaining
}

// MarkExecuted records now as the last execution of key.
func (g *DebounceGate) MarkExecuted(ctx context.Context, key string) error {
	if err := repo.UpsertExecution(ctx, g.DB, key, g.now()); err != nil {
		log.Error().Err(err).Str("operation", key).Msg("debounce mark failed")
		return err
	}
	return nil
}

// Claim atomically checks eligibility and records the execution. It
// returns false with the remaining wait when another execution happened
// within interval. Two concurrent callers never both succeed.
func (g *DebounceGate) Claim(ctx context.Context, key string, interval time.Duration) (bool, time.Duration, error) {
	ok, err := repo.ClaimExecution(ctx, g.DB, key, g.now(), interval)
	if err != nil {
		if g.FailOpen {
			log.Warn().Err(err).Str("operation", key).Msg("debounce claim failed, allowing")
			return true, 0, nil
		}
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	remaining := g.RemainingTime(ctx, key, interval)
	if remaining <= 0 {
		// the wait could not be read back
		remaining = time.Second
	}
	return false, remaining, nil
}

func (g *DebounceGate) remaining(ctx context.Context, key string, interval time.Duration) (time.Duration, error) {
	last, err := repo.GetLastExecution(ctx, g.DB, key)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	elapsed := g.now().Sub(last)
	if elapsed >= interval {
		return 0, nil
	}
	return interval - elapsed, nil
}

func (g *DebounceGate) onReadError(key string, interval time.Duration, err error) (bool, time.Duration) {
	if g.FailOpen {
		log.Warn().Err(err).Str("operation", key).Msg("debounce read failed, allowing")
		return true, 0
	}
	log.Error().Err(err).Str("operation", key).Msg("debounce read failed, refusing")
	return false, interval
}
