package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/analyzer"
	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/http/middleware"
	"github.com/tbourn/go-chat-digest/internal/jobs"
	"github.com/tbourn/go-chat-digest/internal/observability"
	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/services"
)

// app holds the wired application components.
type app struct {
	db          *gorm.DB
	messages    *services.MessageService
	cache       *services.ResultCache
	analysis    *services.AnalysisService
	metrics     *observability.AnalysisMetrics
	httpMetrics *middleware.HTTPMetrics
	sweeper     *jobs.Sweeper
}

// buildApp wires services on top of db. Collectors are registered with reg.
func buildApp(cfg config.Config, db *gorm.DB, reg prometheus.Registerer) (*app, error) {
	an, err := analyzer.New(cfg.OpenAI, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	a := &app{
		db:          db,
		messages:    &services.MessageService{DB: db},
		cache:       services.NewResultCache(db, cfg.Failure.CacheFailClosed),
		metrics:     observability.NewAnalysisMetrics(reg),
		httpMetrics: middleware.NewHTTPMetrics(reg),
	}
	a.analysis = &services.AnalysisService{
		Store:    a.messages,
		Analyzer: an,
		Gate:     services.NewDebounceGate(db, cfg.Failure.DebounceFailOpen),
		Cache:    a.cache,
		Settings: cfg.Analysis,
		Recorder: a.metrics,
	}
	a.sweeper = newSweeper(cfg, db, a.cache, a.metrics)
	return a, nil
}

func newSweeper(cfg config.Config, db *gorm.DB, cache jobs.CacheCleaner, obs jobs.Observer) *jobs.Sweeper {
	return &jobs.Sweeper{
		Schedule: cfg.CacheCleanupSchedule,
		Cache:    cache,
		Observer: obs,
		Tasks: []jobs.Task{{
			Name: "idempotency",
			Run: func(ctx context.Context) (int64, error) {
				return repo.DeleteExpiredIdempotency(ctx, db, time.Now())
			},
		}},
	}
}
