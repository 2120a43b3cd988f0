// Package handlers exposes the bot's stored chat history and its analysis
// operations over REST. Handlers are transport-thin: they parse and
// validate input, call the services and translate results and typed
// errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/http/middleware"
	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/services"
	"github.com/tbourn/go-chat-digest/internal/utils"
)

// maxWindowHours bounds every hours= parameter.
const maxWindowHours = 168

// MessageService is the message store as seen by the handlers.
type MessageService interface {
	Ingest(ctx context.Context, m *domain.Message) error
	ApplyReaction(ctx context.Context, chatID, messageID int64, oldEmojis, newEmojis []string) (domain.Reactions, error)
	ListWindow(ctx context.Context, chatID int64, window time.Duration) ([]domain.Message, error)
	Stats(ctx context.Context) (repo.Stats, error)
}

// AnalysisService is the orchestrator as seen by the handlers.
type AnalysisService interface {
	Analyze(ctx context.Context, req services.AnalyzeRequest) (services.Result, error)
	CreateHoroscope(ctx context.Context, req services.HoroscopeRequest) (services.Result, error)
	AnswerQuestion(ctx context.Context, req services.QuestionRequest) (services.Result, error)
	RemainingTime(ctx context.Context, key string, interval time.Duration) time.Duration
	IntervalFor(key string) time.Duration
}

// IdempotencyStore persists answers of question requests by
// (user, chat, Idempotency-Key).
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, chatID int64, key string) (answer string, found bool, err error)
	Save(ctx context.Context, userID, chatID int64, key, answer string) error
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	msgSvc MessageService
	anaSvc AnalysisService
	idem   IdempotencyStore
}

// New binds the handlers to their services. idem may be nil, which
// disables answer replay.
func New(msgSvc MessageService, anaSvc AnalysisService, idem IdempotencyStore) *Handlers {
	return &Handlers{msgSvc: msgSvc, anaSvc: anaSvc, idem: idem}
}

// chatIDParam parses the :id route parameter. allowAll admits 0, which
// selects every chat.
func chatIDParam(c *gin.Context, allowAll bool) (int64, bool) {
	id, err := utils.ParseInt64(c.Param("id"))
	if err != nil || (id == 0 && !allowAll) {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "chat id must be a non-zero integer"})
		return 0, false
	}
	return id, true
}

// windowParam parses an optional hours= query. Absent yields 0 (service
// default); present values must lie in [1, maxWindowHours].
func windowParam(c *gin.Context) (time.Duration, bool) {
	raw := c.Query("hours")
	if raw == "" {
		return 0, true
	}
	n := utils.AtoiDefault(raw, -1)
	if n < 1 || n > maxWindowHours {
		fail(c, http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeBadRequest,
			Message: fmt.Sprintf("hours must be an integer between 1 and %d", maxWindowHours),
		})
		return 0, false
	}
	return time.Duration(n) * time.Hour, true
}

// requireUser returns the caller id or answers 401.
func requireUser(c *gin.Context) (int64, bool) {
	uid, ok := middleware.UserIDFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrorResponse{Code: ErrCodeUnauthorized, Message: "X-User-ID header required"})
		return 0, false
	}
	return uid, true
}

// failService maps orchestration errors onto HTTP responses.
func failService(c *gin.Context, err error) {
	var rl *services.RateLimitedError
	var af *services.AnalysisFailedError
	switch {
	case errors.As(err, &rl):
		fail(c, http.StatusTooManyRequests, ErrorResponse{
			Code:              ErrCodeRateLimited,
			Message:           rl.Error(),
			RetryAfterSeconds: rl.RetryAfterSeconds(),
		})
	case errors.As(err, &af):
		fail(c, http.StatusBadGateway, ErrorResponse{
			Code:    ErrCodeAnalysisFailed,
			Message: "analyzer is unavailable, try again later",
			Reason:  af.Reason,
		})
	case errors.Is(err, services.ErrUnknownOperation),
		errors.Is(err, services.ErrInvalidWindow),
		errors.Is(err, services.ErrEmptyQuestion):
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: err.Error()})
	default:
		fail(c, http.StatusInternalServerError, ErrorResponse{Code: ErrCodeInternal, Message: "internal error"})
	}
}
