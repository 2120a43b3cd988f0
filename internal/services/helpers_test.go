package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/repo"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	return db
}

// fakeClock is a settable clock shared by every component under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

// fakeAnalyzer counts calls and returns canned output.
type fakeAnalyzer struct {
	mu        sync.Mutex
	summaries int
	horos     int
	answers   int
	err       error

	lastMsgs     []domain.Message
	lastQuestion string
	lastReply    *domain.ReplyContext
	lastUsername string
}

func (f *fakeAnalyzer) Summarize(_ context.Context, msgs []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries++
	f.lastMsgs = msgs
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("summary #%d of %d messages", f.summaries, len(msgs)), nil
}

func (f *fakeAnalyzer) CreateHoroscope(_ context.Context, msgs []domain.Message, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.horos++
	f.lastMsgs = msgs
	f.lastUsername = username
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("horoscope #%d for %s", f.horos, username), nil
}

func (f *fakeAnalyzer) Answer(_ context.Context, question string, msgs []domain.Message, reply *domain.ReplyContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers++
	f.lastMsgs = msgs
	f.lastQuestion = question
	f.lastReply = reply
	if f.err != nil {
		return "", f.err
	}
	return "answer to " + question, nil
}

func (f *fakeAnalyzer) calls() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries, f.horos, f.answers
}

// fakeRecorder collects outcomes per operation.
type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	calls    int
}

func (r *fakeRecorder) ObserveOutcome(operation, outcome string) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, operation+"/"+outcome)
	r.mu.Unlock()
}

func (r *fakeRecorder) ObserveAnalyzerCall(string, time.Duration) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

type fixture struct {
	db       *gorm.DB
	clock    *fakeClock
	messages *MessageService
	gate     *DebounceGate
	cache    *ResultCache
	analyzer *fakeAnalyzer
	rec      *fakeRecorder
	svc      *AnalysisService
}

func testSettings() config.AnalysisConfig {
	return config.AnalysisConfig{
		PeriodHours:          24,
		ShortPeriodHours:     8,
		DeepPeriodHours:      12,
		HoroscopePeriodHours: 12,
		CacheTTL:             time.Hour,
		DebounceInterval:     300 * time.Second,
		InlineDebounce:       3600 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newSvcDB(t)
	clock := newClock(t0)
	f := &fixture{
		db:       db,
		clock:    clock,
		messages: &MessageService{DB: db, Now: clock.Now},
		gate:     &DebounceGate{DB: db, FailOpen: true, Now: clock.Now},
		cache:    &ResultCache{DB: db, FailClosed: true, Now: clock.Now},
		analyzer: &fakeAnalyzer{},
		rec:      &fakeRecorder{},
	}
	f.svc = &AnalysisService{
		Store:    f.messages,
		Analyzer: f.analyzer,
		Gate:     f.gate,
		Cache:    f.cache,
		Settings: testSettings(),
		Recorder: f.rec,
		Now:      clock.Now,
	}
	return f
}

func (f *fixture) seed(t *testing.T, msgs ...domain.Message) {
	t.Helper()
	for i := range msgs {
		m := msgs[i]
		if err := f.messages.Ingest(context.Background(), &m); err != nil {
			t.Fatalf("seed message %d/%d: %v", m.ChatID, m.MessageID, err)
		}
	}
}

func msg(chatID, messageID, userID int64, text string, at time.Time) domain.Message {
	return domain.Message{ChatID: chatID, MessageID: messageID, UserID: userID, Username: fmt.Sprintf("user%d", userID), Text: text, Timestamp: at}
}
