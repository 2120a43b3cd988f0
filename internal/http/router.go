// Package httpapi wires the HTTP transport (Gin) to the message and
// analysis services, middleware and route handlers. It centralizes the
// cross-cutting concerns: tracing, correlation IDs, redacted logging,
// panic recovery, metrics, compression, CORS, security headers, caller
// identity, idempotency and edge rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/docs"
	"github.com/tbourn/go-chat-digest/internal/http/handlers"
	"github.com/tbourn/go-chat-digest/internal/http/middleware"
	"github.com/tbourn/go-chat-digest/internal/repo"
)

// @title        Chat Digest API
// @version      1.0
// @description  Debounced, cached chat analysis on top of stored group chat history.
// @BasePath     /api/v1

// Services are the application services the routes delegate to.
type Services struct {
	Messages handlers.MessageService
	Analysis handlers.AnalysisService
	// Metrics instruments HTTP traffic; nil disables it.
	Metrics *middleware.HTTPMetrics
}

// idempotencyStore adapts the repo idempotency helpers to
// handlers.IdempotencyStore.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency; a missing record is not an error.
func (s idempotencyStore) Lookup(ctx context.Context, userID, chatID int64, key string) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, chatID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Answer, true, nil
}

// Save proxies repo.CreateIdempotency. A concurrent duplicate already
// stored an answer for the key, so it counts as success.
func (s idempotencyStore) Save(ctx context.Context, userID, chatID int64, key, answer string) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, chatID, key, answer, http.StatusOK, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes attaches middleware and endpoints to r and mounts the
// versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Gzip
//  8. CORS and security headers
//  9. Identity (X-User-ID, admin bypass)
//  10. Idempotency validator (before the limiter so replays skip it)
//  11. Rate limiter
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	if svc.Metrics != nil {
		r.Use(svc.Metrics.Handler())
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	store := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	h := handlers.New(svc.Messages, svc.Analysis, store)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
		middleware.Identity(middleware.IdentityOptions{
			AdminID:    cfg.Bot.AdminID,
			AdminToken: cfg.Bot.AdminToken,
		}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200},
			func(ctx context.Context, userID, chatID int64, key string, _ time.Time) (bool, error) {
				_, found, err := store.Lookup(ctx, userID, chatID, key)
				return found, err
			}),
		rl.Handler(),
	)
	{
		// Messages
		api.POST("/chats/:id/messages", h.PostMessage)
		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages/:mid/reactions", h.PostReaction)

		// Analysis
		api.GET("/chats/:id/analysis", h.GetAnalysis)
		api.POST("/chats/:id/horoscope", h.PostHoroscope)
		api.POST("/chats/:id/ask", h.PostAsk)
		api.GET("/debounce", h.GetDebounce)

		api.GET("/stats", h.GetStats)
	}
}

// corsMiddleware returns the CORS chain. Without an allowlist every origin
// is accepted without credentials; with one, allowed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept",
			middleware.HeaderUserID, middleware.HeaderAdminToken, middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "ETag", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for simple health checks.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
