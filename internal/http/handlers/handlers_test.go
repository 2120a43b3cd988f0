package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/http/middleware"
	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

const adminID = 1

// --- fakes ---

type fakeMessages struct {
	ingested  []domain.Message
	ingestErr error

	list    []domain.Message
	listErr error
	window  time.Duration
	listFor int64

	reactions   domain.Reactions
	reactionErr error
	reactionArg [2][]string

	stats repo.Stats
}

func (f *fakeMessages) Ingest(_ context.Context, m *domain.Message) error {
	if f.ingestErr != nil {
		return f.ingestErr
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	f.ingested = append(f.ingested, *m)
	return nil
}

func (f *fakeMessages) ApplyReaction(_ context.Context, _, _ int64, oldE, newE []string) (domain.Reactions, error) {
	f.reactionArg = [2][]string{oldE, newE}
	return f.reactions, f.reactionErr
}

func (f *fakeMessages) ListWindow(_ context.Context, chatID int64, w time.Duration) ([]domain.Message, error) {
	f.listFor, f.window = chatID, w
	return f.list, f.listErr
}

func (f *fakeMessages) Stats(context.Context) (repo.Stats, error) { return f.stats, nil }

type fakeAnalysis struct {
	res services.Result
	err error

	analyze   services.AnalyzeRequest
	horoscope services.HoroscopeRequest
	question  services.QuestionRequest
	calls     int

	remaining    time.Duration
	remainingKey string
	remainingIvl time.Duration
}

func (f *fakeAnalysis) Analyze(_ context.Context, r services.AnalyzeRequest) (services.Result, error) {
	f.calls++
	f.analyze = r
	return f.res, f.err
}

func (f *fakeAnalysis) CreateHoroscope(_ context.Context, r services.HoroscopeRequest) (services.Result, error) {
	f.calls++
	f.horoscope = r
	return f.res, f.err
}

func (f *fakeAnalysis) AnswerQuestion(_ context.Context, r services.QuestionRequest) (services.Result, error) {
	f.calls++
	f.question = r
	return f.res, f.err
}

func (f *fakeAnalysis) RemainingTime(_ context.Context, key string, ivl time.Duration) time.Duration {
	f.remainingKey, f.remainingIvl = key, ivl
	return f.remaining
}

func (f *fakeAnalysis) IntervalFor(key string) time.Duration {
	if len(key) > 4 && key[:4] == "ask:" {
		return time.Hour
	}
	return 5 * time.Minute
}

type fakeIdem struct {
	answers map[string]string
	saved   int
}

func (f *fakeIdem) Lookup(_ context.Context, _, _ int64, key string) (string, bool, error) {
	a, ok := f.answers[key]
	return a, ok, nil
}

func (f *fakeIdem) Save(_ context.Context, _, _ int64, key, answer string) error {
	f.saved++
	f.answers[key] = answer
	return nil
}

// --- harness ---

type harness struct {
	msgs *fakeMessages
	ana  *fakeAnalysis
	idem *fakeIdem
	r    *gin.Engine
}

func newHarness() *harness {
	h := &harness{msgs: &fakeMessages{}, ana: &fakeAnalysis{}, idem: &fakeIdem{answers: map[string]string{}}}
	hd := New(h.msgs, h.ana, h.idem)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity(middleware.IdentityOptions{AdminID: adminID, AdminToken: "tok"}))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/chats/:id/messages", hd.PostMessage)
	r.GET("/chats/:id/messages", hd.ListMessages)
	r.POST("/chats/:id/messages/:mid/reactions", hd.PostReaction)
	r.GET("/chats/:id/analysis", hd.GetAnalysis)
	r.POST("/chats/:id/horoscope", hd.PostHoroscope)
	r.POST("/chats/:id/ask", hd.PostAsk)
	r.GET("/debounce", hd.GetDebounce)
	r.GET("/stats", hd.GetStats)
	h.r = r
	return h
}

func (h *harness) do(method, target string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func user(id string) map[string]string { return map[string]string{middleware.HeaderUserID: id} }

var errBoom = errors.New("boom")
