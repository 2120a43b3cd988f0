package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	user, chat int64
	key        string
	now        time.Time
}

func idemRouter(lookup IdempotencyLookup, now time.Time) *gin.Engine {
	r := gin.New()
	r.Use(Identity(IdentityOptions{}))
	r.POST("/chats/:id/ask",
		IdempotencyValidator(IdempotencyOptions{MaxLen: 16, Now: func() time.Time { return now }}, lookup),
		func(c *gin.Context) {
			key, _ := GetIdempotencyKey(c)
			c.JSON(http.StatusOK, gin.H{"key": key, "replay": IsReplay(c), "bypass": IsRateBypass(c)})
		})
	return r
}

func TestIdempotencyValidator(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no header is a no-op", func(t *testing.T) {
		called := false
		r := idemRouter(func(context.Context, int64, int64, string, time.Time) (bool, error) {
			called = true
			return true, nil
		}, now)
		w := do(r, http.MethodPost, "/chats/-100/ask", nil)
		if w.Code != 200 || called || !strings.Contains(w.Body.String(), `"replay":false`) {
			t.Fatalf("unexpected: %d %s called=%v", w.Code, w.Body.String(), called)
		}
	})

	t.Run("invalid keys are rejected", func(t *testing.T) {
		r := idemRouter(nil, now)
		for _, k := range []string{"has space", "waaaaaaaaaaaaaaaaaaaaay-too-long"} {
			w := do(r, http.MethodPost, "/chats/1/ask", map[string]string{HeaderIdempotencyKey: k})
			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
				t.Fatalf("key %q: %d %s", k, w.Code, w.Body.String())
			}
		}
	})

	t.Run("stored answer marks replay and rate bypass", func(t *testing.T) {
		var got lookupCall
		r := idemRouter(func(_ context.Context, user, chat int64, key string, at time.Time) (bool, error) {
			got = lookupCall{user, chat, key, at}
			return true, nil
		}, now)
		w := do(r, http.MethodPost, "/chats/-100/ask", map[string]string{
			HeaderIdempotencyKey: "k-1",
			HeaderUserID:         "7",
		})
		if w.Code != 200 || !strings.Contains(w.Body.String(), `"replay":true`) || !strings.Contains(w.Body.String(), `"bypass":true`) {
			t.Fatalf("unexpected: %d %s", w.Code, w.Body.String())
		}
		if got != (lookupCall{7, -100, "k-1", now}) {
			t.Fatalf("lookup called with %+v", got)
		}
	})

	t.Run("lookup errors do not block", func(t *testing.T) {
		r := idemRouter(func(context.Context, int64, int64, string, time.Time) (bool, error) {
			return false, errors.New("db down")
		}, now)
		w := do(r, http.MethodPost, "/chats/1/ask", map[string]string{HeaderIdempotencyKey: "k-2"})
		if w.Code != 200 || !strings.Contains(w.Body.String(), `"key":"k-2"`) || !strings.Contains(w.Body.String(), `"replay":false`) {
			t.Fatalf("unexpected: %d %s", w.Code, w.Body.String())
		}
	})
}
