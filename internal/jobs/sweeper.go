// Package jobs runs the bot's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CacheCleaner removes expired analysis results.
type CacheCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Observer counts swept cache rows.
type Observer interface {
	ObserveSwept(n int64)
}

// Task is an additional cleanup step run after the cache sweep.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired cache entries and runs any extra
// cleanup tasks. Schedules use the six-field cron syntax (with seconds).
type Sweeper struct {
	Schedule string
	Cache    CacheCleaner
	Tasks    []Task
	Observer Observer
	Timeout  time.Duration // per sweep; zero means one minute

	mu   sync.Mutex
	cron *cron.Cron
}

// Start registers the sweep and starts the scheduler. It returns an error
// for an invalid schedule. Sweeps are skipped while a previous one is
// still running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.Schedule, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.Schedule, err)
	}
	c.Start()
	s.cron = c
	log.Info().Str("schedule", s.Schedule).Msg("cache sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("cache sweeper stop timed out waiting for running sweep")
	}
	log.Info().Msg("cache sweeper stopped")
}

func (s *Sweeper) sweep(parent context.Context) {
	if parent.Err() != nil {
		return
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("cleanup sweep failed")
	}
}

// RunOnce performs a single sweep and returns the number of removed cache
// entries. Every step runs even if an earlier one fails.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	var errs []error

	var swept int64
	if s.Cache != nil {
		n, err := s.Cache.CleanupExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
		swept = n
		if s.Observer != nil {
			s.Observer.ObserveSwept(n)
		}
	}

	ev := log.Info().Int64("cache_removed", swept)
	for _, t := range s.Tasks {
		n, err := t.Run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		ev = ev.Int64(t.Name+"_removed", n)
	}
	ev.Dur("took", time.Since(start)).Msg("cleanup sweep finished")

	return swept, errors.Join(errs...)
}
