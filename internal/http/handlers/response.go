// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints. Every
// error leaves through fail() with a stable code from errors.go, so clients
// can branch on the code and operators can correlate by request id.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 280
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "too_many_requests",
//	  "message": "analyze:-100123 is rate limited, retry in 4m40s",
//	  "retry_after_seconds": 280
//	}
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-digest/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"too_many_requests"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"analyze:-100123 is rate limited, retry in 4m40s"`
	// Seconds until the operation may run again (429 only)
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty" example:"280"`
	// Failure category of the analyzer call (502 only)
	Reason string `json:"reason,omitempty" example:"upstream_unreachable"`
}

// fail aborts the request with resp. Server errors are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if resp.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("reason", resp.Reason).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail writes a plain error envelope; used by router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) {
	fail(c, status, ErrorResponse{Code: code, Message: msg})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
