// Analysis HTTP handlers.
//
// This file exposes the debounced, cached analysis operations:
//   - GET  /chats/{id}/analysis   (chat summary; type analyze, anal or deep_anal)
//   - POST /chats/{id}/horoscope  (per-user horoscope)
//   - POST /chats/{id}/ask        (question answering, Idempotency-Key aware)
//   - GET  /debounce              (remaining wait for an operation key)
//
// Status mapping: a refused debounce check is 429 with Retry-After, an
// analyzer failure is 502 with a stable reason, and an empty window is a
// 200 whose body has empty=true.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/http/middleware"
	"github.com/tbourn/go-chat-digest/internal/services"
	"github.com/tbourn/go-chat-digest/internal/utils"
)

// HoroscopeRequest is the optional JSON payload of a horoscope request.
type HoroscopeRequest struct {
	// Username is used in the prompt; defaults to the caller id.
	Username string `json:"username" example:"alice"`
}

// AskRequest is the JSON payload of a question.
type AskRequest struct {
	Question string               `json:"question" binding:"required" example:"what did we decide about friday?"`
	Reply    *domain.ReplyContext `json:"reply,omitempty"`
}

// DebounceResponse reports the debounce state of an operation key.
type DebounceResponse struct {
	Operation        string `json:"operation" example:"analyze:-100123"`
	IntervalSeconds  int64  `json:"interval_seconds" example:"300"`
	RemainingSeconds int64  `json:"remaining_seconds" example:"280"`
	Ready            bool   `json:"ready" example:"false"`
}

// GetAnalysis godoc
// @ID          getAnalysis
// @Summary     Summarize a chat window
// @Description Serves a cached summary when the window content is unchanged; otherwise claims the
// @Description debounce slot and calls the analyzer. The administrator (X-User-ID = ADMIN_ID plus
// @Description X-Admin-Token) skips the debounce check.
// @Tags        Analysis
// @Produce     json
//
// @Param       X-User-ID      header  int     false "Caller id"               example(123456)
// @Param       X-Admin-Token  header  string  false "Administrator secret"
// @Param       id             path    int     true  "Chat ID (0 = all chats)" example(-100123)
// @Param       type           query   string  false "Analysis type"           Enums(analyze, anal, deep_anal) default(analyze)
// @Param       hours          query   int     false "Window override"         minimum(1) maximum(168)
//
// @Success     200  {object}  services.Result
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     429  {object}  handlers.ErrorResponse "Debounced"
// @Failure     502  {object}  handlers.ErrorResponse "Analyzer failed"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/analysis [get]
func (h *Handlers) GetAnalysis(c *gin.Context) {
	chatID, okID := chatIDParam(c, true)
	if !okID {
		return
	}
	window, okW := windowParam(c)
	if !okW {
		return
	}
	res, err := h.anaSvc.Analyze(c.Request.Context(), services.AnalyzeRequest{
		OperationType: strings.TrimSpace(c.DefaultQuery("type", services.OpAnalyze)),
		ChatID:        chatID,
		Window:        window,
		Bypass:        middleware.IsBypass(c),
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// PostHoroscope godoc
// @ID          postHoroscope
// @Summary     Create a horoscope for the caller
// @Description Builds a horoscope from the caller's recent messages in the chat (0 = all chats).
// @Description Cached per user and message content; debounced per user and chat.
// @Tags        Analysis
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int  true   "Caller id"               example(123456)
// @Param       id         path    int  true   "Chat ID (0 = all chats)" example(-100123)
// @Param       hours      query   int  false  "Window override"         minimum(1) maximum(168)
// @Param       body       body    handlers.HoroscopeRequest  false  "Display name"
//
// @Success     200  {object}  services.Result
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Missing caller"
// @Failure     429  {object}  handlers.ErrorResponse "Debounced"
// @Failure     502  {object}  handlers.ErrorResponse "Analyzer failed"
// @Router      /chats/{id}/horoscope [post]
func (h *Handlers) PostHoroscope(c *gin.Context) {
	chatID, okID := chatIDParam(c, true)
	if !okID {
		return
	}
	uid, okU := requireUser(c)
	if !okU {
		return
	}
	window, okW := windowParam(c)
	if !okW {
		return
	}
	var req HoroscopeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "invalid horoscope payload"})
			return
		}
	}
	res, err := h.anaSvc.CreateHoroscope(c.Request.Context(), services.HoroscopeRequest{
		UserID:   uid,
		Username: strings.TrimPrefix(strings.TrimSpace(req.Username), "@"),
		ChatID:   chatID,
		Window:   window,
		Bypass:   middleware.IsBypass(c),
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// PostAsk godoc
// @ID          postAsk
// @Summary     Ask a question
// @Description Answers a question, using chat context when the question is about the chat.
// @Description Debounced per user and chat with the inline interval. With an Idempotency-Key,
// @Description a retry replays the stored answer (Idempotency-Replayed: true) without using a slot.
// @Tags        Analysis
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  int     true   "Caller id"        example(123456)
// @Param       Idempotency-Key  header  string  false  "Retry key"        example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    int     true   "Chat ID"          example(-100123)
// @Param       body             body    handlers.AskRequest  true  "Question"
//
// @Success     200  {object}  services.Result
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Missing caller"
// @Failure     429  {object}  handlers.ErrorResponse "Debounced"
// @Failure     502  {object}  handlers.ErrorResponse "Analyzer failed"
// @Router      /chats/{id}/ask [post]
func (h *Handlers) PostAsk(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, okID := chatIDParam(c, false)
	if !okID {
		return
	}
	uid, okU := requireUser(c)
	if !okU {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "question required"})
		return
	}
	question := sanitizeText(req.Question)
	opKey := services.UserOperationKey(services.OpAsk, uid, chatID)

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		answer, found, err := h.idem.Lookup(ctx, uid, chatID, idemKey)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}
		if found {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, services.Result{Operation: opKey, Text: answer})
			return
		}
	}

	res, err := h.anaSvc.AnswerQuestion(ctx, services.QuestionRequest{
		Question: question,
		ChatID:   chatID,
		UserID:   uid,
		Reply:    req.Reply,
		Bypass:   middleware.IsBypass(c),
	})
	if err != nil {
		failService(c, err)
		return
	}

	if idemKey != "" && h.idem != nil {
		if err := h.idem.Save(ctx, uid, chatID, idemKey, res.Text); err != nil {
			log.Warn().Err(err).Str("operation", opKey).Msg("idempotency save failed")
		}
	}
	ok(c, http.StatusOK, res)
}

// GetDebounce godoc
// @ID          getDebounce
// @Summary     Remaining debounce time
// @Description Reports how long until an operation key may run again. The interval defaults to the
// @Description one configured for the key's operation type.
// @Tags        Analysis
// @Produce     json
//
// @Param       operation  query  string  true   "Operation key"       example(analyze:-100123)
// @Param       interval   query  int     false  "Interval in seconds" minimum(0)
//
// @Success     200  {object}  handlers.DebounceResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /debounce [get]
func (h *Handlers) GetDebounce(c *gin.Context) {
	key := strings.TrimSpace(c.Query("operation"))
	if key == "" || len(key) > 255 {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "operation required"})
		return
	}
	interval := h.anaSvc.IntervalFor(key)
	if raw := c.Query("interval"); raw != "" {
		secs := utils.AtoiDefault(raw, -1)
		if secs < 0 {
			fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "interval must be a non-negative integer"})
			return
		}
		interval = time.Duration(secs) * time.Second
	}

	remaining := h.anaSvc.RemainingTime(c.Request.Context(), key, interval)
	ok(c, http.StatusOK, DebounceResponse{
		Operation:        key,
		IntervalSeconds:  int64(interval / time.Second),
		RemainingSeconds: int64((remaining + time.Second - 1) / time.Second),
		Ready:            remaining <= 0,
	})
}
