// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller identity. Callers identify themselves with
// the X-User-ID header carrying their numeric Telegram user id; the
// administrator may additionally present X-Admin-Token to skip debounce
// checks on analysis endpoints.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderUserID carries the numeric caller id.
	HeaderUserID = "X-User-ID"
	// HeaderAdminToken carries the administrator secret.
	HeaderAdminToken = "X-Admin-Token"

	ctxKeyUserID = "userID"
	ctxKeyBypass = "admin.bypass"
)

// IdentityOptions configures Identity.
type IdentityOptions struct {
	// AdminID is the user id allowed to bypass debounce.
	AdminID int64
	// AdminToken, when set, must also match X-Admin-Token for the bypass.
	AdminToken string
}

// Identity parses X-User-ID into the Gin context and decides whether the
// request may bypass debounce. A malformed id is rejected with 400; a
// missing one leaves the request anonymous (user id 0).
func Identity(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			c.Next()
			return
		}
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || uid <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "X-User-ID must be a positive integer",
			})
			return
		}
		c.Set(ctxKeyUserID, uid)
		lg := LoggerFrom(c).With().Int64("user_id", uid).Logger()
		c.Set(loggerKey, &lg)

		if opts.AdminID != 0 && uid == opts.AdminID {
			if opts.AdminToken == "" ||
				subtle.ConstantTimeCompare([]byte(c.GetHeader(HeaderAdminToken)), []byte(opts.AdminToken)) == 1 {
				c.Set(ctxKeyBypass, true)
			}
		}
		c.Next()
	}
}

// UserIDFrom returns the caller id set by Identity.
func UserIDFrom(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}

// IsBypass reports whether the caller is the authenticated administrator.
func IsBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
