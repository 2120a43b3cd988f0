// Package services – AnalysisService
//
// This file implements AnalysisService, the orchestrator behind every
// expensive analyzer call. For each request it either serves a cached
// result, refuses the request because its debounce slot is taken, or claims
// the slot, calls the analyzer and memoizes the output.
//
// Ordering is cache first: a hit never consults or consumes the debounce
// slot. A claimed slot stays consumed even when the analyzer fails.
//
// Observability: public methods are OpenTelemetry-instrumented and every
// decision is reported to the configured Recorder.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/domain"
)

// Operation types. Chat analyses share one debounce interval; questions
// have their own.
const (
	OpAnalyze   = "analyze"
	OpAnal      = "anal"
	OpDeepAnal  = "deep_anal"
	OpHoroscope = "horoscope"
	OpAsk       = "ask"
)

// Outcomes reported to the Recorder.
const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeExecuted    = "executed"
	OutcomeRateLimited = "rate_limited"
	OutcomeEmpty       = "empty"
	OutcomeFailed      = "failed"
)

// MessageStore returns message sets for a time window in ascending time
// order. A nil chatID means all chats.
type MessageStore interface {
	ListByPeriod(ctx context.Context, since time.Time, chatID *int64) ([]domain.Message, error)
	ListByUserAndPeriod(ctx context.Context, userID int64, since time.Time, chatID *int64) ([]domain.Message, error)
}

// Analyzer turns message sets into text. Calls are slow, cost money and may
// fail; errors wrap one of the analyzer package sentinels.
type Analyzer interface {
	Summarize(ctx context.Context, msgs []domain.Message) (string, error)
	CreateHoroscope(ctx context.Context, msgs []domain.Message, username string) (string, error)
	Answer(ctx context.Context, question string, msgs []domain.Message, reply *domain.ReplyContext) (string, error)
}

// Gate is the debounce contract AnalysisService relies on.
type Gate interface {
	Claim(ctx context.Context, key string, interval time.Duration) (bool, time.Duration, error)
	RemainingTime(ctx context.Context, key string, interval time.Duration) time.Duration
}

// Cache is the memoization contract AnalysisService relies on.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Recorder receives orchestration decisions, typically Prometheus metrics.
type Recorder interface {
	ObserveOutcome(operation, outcome string)
	ObserveAnalyzerCall(operation string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(string, string)             {}
func (nopRecorder) ObserveAnalyzerCall(string, time.Duration) {}

// Result is the outcome of a successful orchestration.
type Result struct {
	Operation    string `json:"operation"`
	Text         string `json:"text"`
	FromCache    bool   `json:"from_cache"`
	Empty        bool   `json:"empty"`
	MessageCount int    `json:"message_count"`
}

// AnalyzeRequest asks for a summary of one chat (ChatID 0: every chat).
// A zero Window selects the default for OperationType.
type AnalyzeRequest struct {
	OperationType string
	ChatID        int64
	Window        time.Duration
	Bypass        bool
}

// HoroscopeRequest asks for a horoscope built from one user's messages.
type HoroscopeRequest struct {
	UserID   int64
	Username string
	ChatID   int64
	Window   time.Duration
	Bypass   bool
}

// QuestionRequest asks a free-form question, optionally about a quoted message.
type QuestionRequest struct {
	Question string
	ChatID   int64
	UserID   int64
	Reply    *domain.ReplyContext
	Bypass   bool
}

// AnalysisService orchestrates cache, debounce gate and analyzer.
type AnalysisService struct {
	Store    MessageStore
	Analyzer Analyzer
	Gate     Gate
	Cache    Cache
	Settings config.AnalysisConfig
	Recorder Recorder
	Now      func() time.Time
}

func (s *AnalysisService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AnalysisService) recorder() Recorder {
	if s.Recorder != nil {
		return s.Recorder
	}
	return nopRecorder{}
}

// OperationKey returns the debounce key of a chat-scoped operation.
func OperationKey(opType string, chatID int64) string {
	return opType + ":" + strconv.FormatInt(chatID, 10)
}

// UserOperationKey returns the debounce key of a per-user operation.
func UserOperationKey(opType string, userID, chatID int64) string {
	return opType + ":" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(chatID, 10)
}

// IntervalFor returns the debounce interval that applies to key.
func (s *AnalysisService) IntervalFor(key string) time.Duration {
	if strings.HasPrefix(key, OpAsk+":") {
		return s.Settings.InlineDebounce
	}
	return s.Settings.DebounceInterval
}

// DefaultWindow returns the configured window for a chat analysis type.
func (s *AnalysisService) DefaultWindow(opType string) (time.Duration, error) {
	switch opType {
	case "", OpAnalyze:
		return hours(s.Settings.PeriodHours), nil
	case OpAnal:
		return hours(s.Settings.ShortPeriodHours), nil
	case OpDeepAnal:
		return hours(s.Settings.DeepPeriodHours), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, opType)
	}
}

// RemainingTime reports how long until key may run again.
func (s *AnalysisService) RemainingTime(ctx context.Context, key string, interval time.Duration) time.Duration {
	return s.Gate.RemainingTime(ctx, key, interval)
}

// Analyze summarizes a chat window. An empty window returns the canned
// NothingToAnalyze result without touching cache or gate.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (Result, error) {
	opType := req.OperationType
	if opType == "" {
		opType = OpAnalyze
	}
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("analysis.type", opType),
			attribute.Int64("chat.id", req.ChatID),
			attribute.Bool("analysis.bypass", req.Bypass),
		),
	)
	defer span.End()

	window := req.Window
	if window == 0 {
		w, err := s.DefaultWindow(opType)
		if err != nil {
			return Result{}, err
		}
		window = w
	} else if _, err := s.DefaultWindow(opType); err != nil {
		return Result{}, err
	}
	if window <= 0 {
		return Result{}, ErrInvalidWindow
	}

	key := OperationKey(opType, req.ChatID)
	msgs, err := s.Store.ListByPeriod(ctx, s.now().Add(-window), chatScope(req.ChatID))
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	if len(msgs) == 0 {
		s.recorder().ObserveOutcome(opType, OutcomeEmpty)
		log.Info().Str("operation", key).Dur("window", window).Msg("nothing to analyze")
		return Result{Operation: key, Text: NothingToAnalyze, Empty: true}, nil
	}

	return s.execute(ctx, span, step{
		opType:   opType,
		key:      key,
		interval: s.Settings.DebounceInterval,
		cacheKey: ContentKey(msgs),
		bypass:   req.Bypass,
		count:    len(msgs),
		call: func(ctx context.Context) (string, error) {
			return s.Analyzer.Summarize(ctx, msgs)
		},
	})
}

// CreateHoroscope builds a horoscope from one user's recent messages. An
// empty window is not short-circuited: the analyzer result is cached like
// any other.
func (s *AnalysisService) CreateHoroscope(ctx context.Context, req HoroscopeRequest) (Result, error) {
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "CreateHoroscope",
		trace.WithAttributes(
			attribute.Int64("user.id", req.UserID),
			attribute.Int64("chat.id", req.ChatID),
			attribute.Bool("analysis.bypass", req.Bypass),
		),
	)
	defer span.End()

	window := req.Window
	if window == 0 {
		window = hours(s.Settings.HoroscopePeriodHours)
	}
	if window <= 0 {
		return Result{}, ErrInvalidWindow
	}

	msgs, err := s.Store.ListByUserAndPeriod(ctx, req.UserID, s.now().Add(-window), chatScope(req.ChatID))
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	return s.execute(ctx, span, step{
		opType:   OpHoroscope,
		key:      UserOperationKey(OpHoroscope, req.UserID, req.ChatID),
		interval: s.Settings.DebounceInterval,
		cacheKey: UserContentKey(OpHoroscope, req.UserID, msgs),
		bypass:   req.Bypass,
		count:    len(msgs),
		call: func(ctx context.Context) (string, error) {
			return s.Analyzer.CreateHoroscope(ctx, msgs, req.Username)
		},
	})
}

// AnswerQuestion answers a question using the chat's recent messages as
// context. Answers are never cached; the per-user slot uses the inline
// debounce interval.
func (s *AnalysisService) AnswerQuestion(ctx context.Context, req QuestionRequest) (Result, error) {
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "AnswerQuestion",
		trace.WithAttributes(
			attribute.Int64("user.id", req.UserID),
			attribute.Int64("chat.id", req.ChatID),
			attribute.Bool("question.has_reply", req.Reply != nil),
		),
	)
	defer span.End()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}

	msgs, err := s.Store.ListByPeriod(ctx, s.now().Add(-hours(s.Settings.PeriodHours)), chatScope(req.ChatID))
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	return s.execute(ctx, span, step{
		opType:   OpAsk,
		key:      UserOperationKey(OpAsk, req.UserID, req.ChatID),
		interval: s.Settings.InlineDebounce,
		bypass:   req.Bypass,
		count:    len(msgs),
		call: func(ctx context.Context) (string, error) {
			return s.Analyzer.Answer(ctx, question, msgs, req.Reply)
		},
	})
}

// step is one orchestration run. An empty cacheKey disables memoization.
type step struct {
	opType   string
	key      string
	interval time.Duration
	cacheKey string
	bypass   bool
	count    int
	call     func(context.Context) (string, error)
}

func (s *AnalysisService) execute(ctx context.Context, span trace.Span, st step) (Result, error) {
	rec := s.recorder()
	logger := log.With().Str("operation", st.key).Int("messages", st.count).Logger()

	if st.cacheKey != "" {
		cached, hit, err := s.Cache.Get(ctx, st.cacheKey)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		if hit {
			rec.ObserveOutcome(st.opType, OutcomeCacheHit)
			span.SetAttributes(attribute.Bool("analysis.from_cache", true))
			logger.Info().Bool("from_cache", true).Msg("analysis served from cache")
			return Result{Operation: st.key, Text: cached, FromCache: true, MessageCount: st.count}, nil
		}
	}

	if !st.bypass {
		ok, remaining, err := s.Gate.Claim(ctx, st.key, st.interval)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		if !ok {
			rec.ObserveOutcome(st.opType, OutcomeRateLimited)
			logger.Info().Dur("remaining", remaining).Msg("analysis rate limited")
			return Result{}, &RateLimitedError{Operation: st.key, Remaining: remaining}
		}
	}

	started := time.Now()
	text, err := st.call(ctx)
	rec.ObserveAnalyzerCall(st.opType, time.Since(started))
	if err != nil {
		reason := classifyFailure(err)
		rec.ObserveOutcome(st.opType, OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		logger.Error().Err(err).Str("reason", reason).Msg("analyzer call failed")
		return Result{}, &AnalysisFailedError{Operation: st.key, Reason: reason, Err: err}
	}

	if st.cacheKey != "" {
		if err := s.Cache.Set(ctx, st.cacheKey, text, s.Settings.CacheTTL); err != nil {
			logger.Warn().Err(err).Msg("cache write failed")
		}
	}

	rec.ObserveOutcome(st.opType, OutcomeExecuted)
	logger.Info().Bool("from_cache", false).Bool("bypass", st.bypass).Msg("analysis executed")
	return Result{Operation: st.key, Text: text, MessageCount: st.count}, nil
}

func chatScope(chatID int64) *int64 {
	if chatID == 0 {
		return nil
	}
	return &chatID
}

func hours(n int) time.Duration { return time.Duration(n) * time.Hour }
