package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/domain"
)

// ---------- fakes ----------

type call struct {
	system    string
	user      string
	maxTokens int64
	temp      float64
}

type fakeCompletions struct {
	mu      sync.Mutex
	calls   []call
	replies []string
	errs    []error
}

func (f *fakeCompletions) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := call{maxTokens: params.MaxCompletionTokens.Value, temp: params.Temperature.Value}
	for _, m := range params.Messages {
		if m.OfSystem != nil {
			c.system = m.OfSystem.Content.OfString.Value
		}
		if m.OfUser != nil {
			c.user = m.OfUser.Content.OfString.Value
		}
	}
	i := len(f.calls)
	f.calls = append(f.calls, c)

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := "ok"
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: reply},
		}},
	}, nil
}

func testConfig() config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:             "sk-test",
		Model:              "gpt-4o-mini",
		MaxTokens:          4000,
		HoroscopeMaxTokens: 2000,
		InlineMaxTokens:    500,
		Temperature:        0.7,
	}
}

var at = time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC)

func sample() []domain.Message {
	m1 := domain.Message{ChatID: 1, MessageID: 1, UserID: 1, Username: "ann_b", Text: "deploy on friday?", Timestamp: at}
	m1.SetReactions(domain.Reactions{"😱": 2, "👍": 1})
	m2 := domain.Message{ChatID: 1, MessageID: 2, UserID: 2, Text: "sure", Timestamp: at.Add(time.Minute)}
	return []domain.Message{m2, m1}
}

// ---------- tests ----------

func TestNew_RequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "  "
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected error for blank api key")
	}
	if a, err := New(testConfig(), nil); err != nil || a == nil {
		t.Fatalf("New: %v", err)
	}
}

func TestSummarize_PromptAndParams(t *testing.T) {
	fc := &fakeCompletions{replies: []string{"  digest  "}}
	a := newWithCompletions(fc, testConfig(), time.UTC)

	out, err := a.Summarize(context.Background(), sample())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "digest" {
		t.Fatalf("output should be trimmed, got %q", out)
	}
	c := fc.calls[0]
	if c.maxTokens != 4000 || c.temp != 0.7 || c.system != summarySystem {
		t.Fatalf("unexpected params: %+v", c)
	}
	first := strings.Index(c.user, "deploy on friday?")
	second := strings.Index(c.user, "sure")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("messages missing or out of order:\n%s", c.user)
	}
	if !strings.Contains(c.user, "[2026-01-02 10:30] @ann_b: deploy on friday? [reactions: 👍: 1, 😱: 2]") {
		t.Fatalf("line format changed:\n%s", c.user)
	}
	if !strings.Contains(c.user, "@id2: sure") {
		t.Fatalf("users without a username should be shown by id:\n%s", c.user)
	}
}

func TestSummarize_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	fc := &fakeCompletions{}
	a := newWithCompletions(fc, testConfig(), loc)
	if _, err := a.Summarize(context.Background(), sample()); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(fc.calls[0].user, "[2026-01-02 13:30]") {
		t.Fatalf("timestamps should be rendered in the configured zone:\n%s", fc.calls[0].user)
	}
}

func TestCreateHoroscope(t *testing.T) {
	fc := &fakeCompletions{}
	a := newWithCompletions(fc, testConfig(), time.UTC)

	if _, err := a.CreateHoroscope(context.Background(), sample(), "ann_b"); err != nil {
		t.Fatalf("CreateHoroscope: %v", err)
	}
	c := fc.calls[0]
	if c.maxTokens != 2000 || !strings.Contains(c.user, `@ann\_b`) {
		t.Fatalf("unexpected horoscope call: %+v", c)
	}
	if strings.Contains(c.user, "@ann_b:") {
		t.Fatalf("horoscope lines must not repeat the author")
	}

	if _, err := a.CreateHoroscope(context.Background(), nil, "bob"); err != nil {
		t.Fatalf("CreateHoroscope(empty): %v", err)
	}
	if !strings.Contains(fc.calls[1].user, "stayed silent") {
		t.Fatalf("empty horoscope prompt should mention the silence:\n%s", fc.calls[1].user)
	}
}

func TestAnswer_Classification(t *testing.T) {
	ctx := context.Background()

	t.Run("general question skips context", func(t *testing.T) {
		fc := &fakeCompletions{replies: []string{"GENERAL", "Paris."}}
		a := newWithCompletions(fc, testConfig(), time.UTC)
		out, err := a.Answer(ctx, "capital of France?", sample(), nil)
		if err != nil || out != "Paris." {
			t.Fatalf("Answer = (%q, %v)", out, err)
		}
		if len(fc.calls) != 2 {
			t.Fatalf("expected classifier + answer, got %d calls", len(fc.calls))
		}
		cls := fc.calls[0]
		if cls.maxTokens != 10 || cls.temp != 0 || cls.system != classifierSystem {
			t.Fatalf("classifier params: %+v", cls)
		}
		if fc.calls[1].system != generalSystem || fc.calls[1].user != "capital of France?" {
			t.Fatalf("general answer should be context-free: %+v", fc.calls[1])
		}
	})

	t.Run("chat question uses context", func(t *testing.T) {
		fc := &fakeCompletions{replies: []string{"chat", "ann wants chaos"}}
		a := newWithCompletions(fc, testConfig(), time.UTC)
		if _, err := a.Answer(ctx, "what is ann up to?", sample(), nil); err != nil {
			t.Fatalf("Answer: %v", err)
		}
		ans := fc.calls[1]
		if ans.system != questionSystem || ans.maxTokens != 500 || !strings.Contains(ans.user, "deploy on friday?") {
			t.Fatalf("chat answer call: %+v", ans)
		}
	})

	t.Run("quote forces context without classifying", func(t *testing.T) {
		fc := &fakeCompletions{}
		a := newWithCompletions(fc, testConfig(), time.UTC)
		reply := &domain.ReplyContext{Text: "deploy on friday?", Username: "ann_b", Timestamp: at}
		if _, err := a.Answer(ctx, "is this wise?", sample(), reply); err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if len(fc.calls) != 1 || fc.calls[0].system != questionSystem {
			t.Fatalf("quoted question should skip the classifier: %+v", fc.calls)
		}
		if !strings.Contains(fc.calls[0].user, "QUOTED MESSAGE:\n@ann_b: deploy on friday?") {
			t.Fatalf("quote missing from prompt:\n%s", fc.calls[0].user)
		}
	})

	t.Run("classifier failure falls back to chat", func(t *testing.T) {
		fc := &fakeCompletions{errs: []error{errors.New("boom")}, replies: []string{"", "answer"}}
		a := newWithCompletions(fc, testConfig(), time.UTC)
		out, err := a.Answer(ctx, "anything?", sample(), nil)
		if err != nil || out != "answer" {
			t.Fatalf("Answer = (%q, %v)", out, err)
		}
		if fc.calls[1].system != questionSystem {
			t.Fatalf("fallback should answer with chat context")
		}
	})
}

func TestComplete_EmptyOutputIsProtocolError(t *testing.T) {
	fc := &fakeCompletions{replies: []string{"   "}}
	a := newWithCompletions(fc, testConfig(), time.UTC)
	if _, err := a.Summarize(context.Background(), sample()); !errors.Is(err, ErrUpstreamProtocol) {
		t.Fatalf("expected ErrUpstreamProtocol, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"429", &openai.Error{StatusCode: http.StatusTooManyRequests}, ErrUpstreamRateLimited},
		{"500", &openai.Error{StatusCode: http.StatusInternalServerError}, ErrUpstreamProtocol},
		{"401", &openai.Error{StatusCode: http.StatusUnauthorized}, ErrUpstreamProtocol},
		{"deadline", context.DeadlineExceeded, ErrUpstreamUnreachable},
		{"net", &timeoutErr{}, ErrUpstreamUnreachable},
		{"other", errors.New("weird"), ErrUpstreamProtocol},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		if !errors.Is(got, tc.want) {
			t.Fatalf("%s: classify = %v, want %v", tc.name, got, tc.want)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("%s: original error lost", tc.name)
		}
	}
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }

// ---------- wire-level tests against a fake chat completions endpoint ----------

func TestOpenAI_HTTP(t *testing.T) {
	var (
		mu       sync.Mutex
		lastBody map[string]any
		status   = http.StatusOK
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(raw, &lastBody)
		code := status
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"wire digest"}}],` +
			`"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL + "/v1/"
	cfg.Timeout = 5 * time.Second
	a, err := New(cfg, time.UTC, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := a.Summarize(context.Background(), sample())
	if err != nil || out != "wire digest" {
		t.Fatalf("Summarize = (%q, %v)", out, err)
	}
	mu.Lock()
	if lastBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model not sent: %v", lastBody["model"])
	}
	if msgs, _ := lastBody["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", lastBody["messages"])
	}
	status = http.StatusTooManyRequests
	mu.Unlock()

	if _, err := a.Summarize(context.Background(), sample()); !errors.Is(err, ErrUpstreamRateLimited) {
		t.Fatalf("expected ErrUpstreamRateLimited, got %v", err)
	}

	srv.Close()
	if _, err := a.Summarize(context.Background(), sample()); !errors.Is(err, ErrUpstreamUnreachable) {
		t.Fatalf("expected ErrUpstreamUnreachable after shutdown, got %v", err)
	}
}
