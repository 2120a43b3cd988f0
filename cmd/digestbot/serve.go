package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-digest/internal/config"
	httpapi "github.com/tbourn/go-chat-digest/internal/http"
	"github.com/tbourn/go-chat-digest/internal/observability"
	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var noBot bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the cache sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if noBot {
				cfg.Bot.Enabled = false
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().BoolVar(&noBot, "no-bot", false, "do not start the Telegram bot")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(db) }()

	a, err := buildApp(cfg, db, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Services{
		Messages: a.messages,
		Analysis: a.analysis,
		Metrics:  a.httpMetrics,
	}, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := a.sweeper.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", Version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.sweeper.Stop(sctx)
		return srv.Shutdown(sctx)
	})

	if cfg.Bot.Enabled {
		g.Go(func() error {
			bot, err := telegram.New(gctx, cfg.Bot.Token, telegram.Deps{
				Messages: a.messages,
				Analysis: a.analysis,
				AdminID:  cfg.Bot.AdminID,
				Language: cfg.Bot.Language,
				Windows:  cfg.Analysis,
			})
			if err != nil {
				return err
			}
			return bot.Run(gctx)
		})
	} else {
		log.Info().Msg("telegram bot disabled")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
