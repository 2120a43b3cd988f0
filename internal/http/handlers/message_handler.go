// Message HTTP handlers.
//
// This file exposes the stored chat history:
//   - POST /chats/{id}/messages                     (ingest a message)
//   - GET  /chats/{id}/messages                     (messages of a recent window)
//   - POST /chats/{id}/messages/{mid}/reactions     (apply a reaction change)
//
// Listing supports conditional requests: the ETag is derived from the same
// content hash the result cache uses, so it changes exactly when an
// analysis of the window would.
package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/http/middleware"
	"github.com/tbourn/go-chat-digest/internal/services"
	"github.com/tbourn/go-chat-digest/internal/utils"
)

//
// DTOs
//

// IngestMessageRequest is the JSON payload for storing a chat message.
type IngestMessageRequest struct {
	MessageID int64 `json:"message_id" binding:"required" example:"4711"`
	// UserID defaults to the X-User-ID caller.
	UserID   int64  `json:"user_id" example:"123456"`
	Username string `json:"username" example:"alice"`
	Text     string `json:"text" binding:"required" example:"who is coming tonight?"`
	// Timestamp defaults to the time of ingestion.
	Timestamp        *time.Time `json:"timestamp,omitempty" example:"2024-03-01T12:00:00Z"`
	ReplyToMessageID *int64     `json:"reply_to_message_id,omitempty" example:"4700"`
}

// ListMessagesResponse contains the messages of a window, oldest first.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Count    int              `json:"count"`
	Hours    int              `json:"hours"`
}

// ReactionRequest carries one user's reaction set before and after a change.
type ReactionRequest struct {
	Old []string `json:"old" example:"👍"`
	New []string `json:"new" example:"🔥"`
}

// ReactionResponse is the resulting reaction snapshot of the message.
type ReactionResponse struct {
	Reactions domain.Reactions `json:"reactions"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeText normalizes line endings and blank-line runs and trims.
func sanitizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Ingest a chat message
// @Description Stores a message for later analysis. Re-posting an existing message id
// @Description updates its text and keeps its reactions.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int   false "Caller id, default author"  example(123456)
// @Param       id         path    int   true  "Chat ID"                    example(-100123)
// @Param       body       body    handlers.IngestMessageRequest  true  "Message"
//
// @Success     201  {object}  domain.Message
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	chatID, okID := chatIDParam(c, false)
	if !okID {
		return
	}
	var req IngestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "message_id and text required"})
		return
	}
	userID := req.UserID
	if userID == 0 {
		userID, _ = middleware.UserIDFrom(c)
	}
	if userID == 0 {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "user_id or X-User-ID required"})
		return
	}

	m := &domain.Message{
		ChatID:           chatID,
		MessageID:        req.MessageID,
		UserID:           userID,
		Username:         strings.TrimPrefix(strings.TrimSpace(req.Username), "@"),
		Text:             sanitizeText(req.Text),
		ReplyToMessageID: req.ReplyToMessageID,
	}
	if req.Timestamp != nil {
		m.Timestamp = req.Timestamp.UTC()
	}
	if err := h.msgSvc.Ingest(c.Request.Context(), m); err != nil {
		if errors.Is(err, services.ErrEmptyText) {
			fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "text required"})
			return
		}
		fail(c, http.StatusInternalServerError, ErrorResponse{Code: ErrCodeIngestFailed, Message: err.Error()})
		return
	}
	ok(c, http.StatusCreated, m)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List recent messages of a chat
// @Description Returns the messages of the last `hours` hours, oldest first. Chat id 0 lists every chat.
// @Tags        Messages
// @Produce     json
//
// @Param       id     path   int  true  "Chat ID (0 = all chats)"  example(-100123)
// @Param       hours  query  int  false "Window in hours"          minimum(1) maximum(168) default(24)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  "Not modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID, okID := chatIDParam(c, true)
	if !okID {
		return
	}
	hours := utils.Clamp(utils.AtoiDefault(c.Query("hours"), 24), 1, maxWindowHours)

	items, err := h.msgSvc.ListWindow(c.Request.Context(), chatID, time.Duration(hours)*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrorResponse{Code: ErrCodeListFailed, Message: err.Error()})
		return
	}

	etag := `W/"` + services.ContentKey(items)[:32] + `"`
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Count: len(items), Hours: hours})
}

// PostReaction godoc
// @ID          postReaction
// @Summary     Apply a reaction change
// @Description Folds one user's reaction change into the message snapshot: emojis only in `new`
// @Description are incremented, emojis only in `old` are decremented. Changing reactions
// @Description changes the content hash, so cached analyses of the window stop matching.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       id    path  int  true  "Chat ID"     example(-100123)
// @Param       mid   path  int  true  "Message ID"  example(4711)
// @Param       body  body  handlers.ReactionRequest  true  "Reaction change"
//
// @Success     200  {object}  handlers.ReactionResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Message not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages/{mid}/reactions [post]
func (h *Handlers) PostReaction(c *gin.Context) {
	chatID, okID := chatIDParam(c, false)
	if !okID {
		return
	}
	msgID, err := utils.ParseInt64(c.Param("mid"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "message id must be an integer"})
		return
	}
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: "invalid reaction payload"})
		return
	}

	counts, err := h.msgSvc.ApplyReaction(c.Request.Context(), chatID, msgID, req.Old, req.New)
	switch {
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrorResponse{Code: ErrCodeNotFound, Message: "message not found"})
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrorResponse{Code: ErrCodeInternal, Message: err.Error()})
	default:
		ok(c, http.StatusOK, ReactionResponse{Reactions: counts})
	}
}
