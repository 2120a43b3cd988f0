// Package analyzer turns stored chat messages into text through an
// OpenAI-compatible chat completions API: chat digests, per-user
// horoscopes and answers to questions. Every failure is classified into
// one of the upstream sentinels in errors.go.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/domain"
)

const (
	classifierMaxTokens   = 10
	classifierTemperature = 0
)

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the analysis contract on top of openai-go.
type OpenAI struct {
	completions chatCompletions
	cfg         config.OpenAIConfig
	loc         *time.Location
}

// Option customizes the underlying client.
type Option = option.RequestOption

// New builds an analyzer from cfg. Timestamps in prompts are rendered in loc.
func New(cfg config.OpenAIConfig, loc *time.Location, opts ...Option) (*OpenAI, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("analyzer: api key required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	client := openai.NewClient(reqOpts...)
	return newWithCompletions(&client.Chat.Completions, cfg, loc), nil
}

func newWithCompletions(c chatCompletions, cfg config.OpenAIConfig, loc *time.Location) *OpenAI {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{completions: c, cfg: cfg, loc: loc}
}

// Summarize writes a digest of a chat window.
func (a *OpenAI) Summarize(ctx context.Context, msgs []domain.Message) (string, error) {
	ctx, span := a.start(ctx, "Summarize", len(msgs))
	defer span.End()
	return a.complete(ctx, "summarize", summarySystem, buildSummaryPrompt(msgs, a.loc), a.cfg.MaxTokens, a.cfg.Temperature)
}

// CreateHoroscope writes a horoscope for username. An empty msgs is valid:
// the prompt asks the model to work with the silence.
func (a *OpenAI) CreateHoroscope(ctx context.Context, msgs []domain.Message, username string) (string, error) {
	ctx, span := a.start(ctx, "CreateHoroscope", len(msgs))
	defer span.End()
	return a.complete(ctx, "horoscope", horoscopeSystem, buildHoroscopePrompt(msgs, username, a.loc), a.cfg.HoroscopeMaxTokens, a.cfg.Temperature)
}

// Answer answers question. Questions judged general are answered without
// chat context; the others are answered against SelectContext(msgs, reply).
func (a *OpenAI) Answer(ctx context.Context, question string, msgs []domain.Message, reply *domain.ReplyContext) (string, error) {
	ctx, span := a.start(ctx, "Answer", len(msgs))
	defer span.End()

	if !a.needsChatContext(ctx, question, reply != nil) {
		span.SetAttributes(attribute.String("question.class", "general"))
		return a.complete(ctx, "answer_general", generalSystem, question, a.cfg.InlineMaxTokens, a.cfg.Temperature)
	}
	span.SetAttributes(attribute.String("question.class", "chat"))
	picked := SelectContext(msgs, reply)
	return a.complete(ctx, "answer", questionSystem, buildQuestionPrompt(question, picked, reply, a.loc), a.cfg.InlineMaxTokens, a.cfg.Temperature)
}

// needsChatContext asks the model to classify question as CHAT or GENERAL.
// A quote always needs context and any classifier failure falls back to CHAT.
func (a *OpenAI) needsChatContext(ctx context.Context, question string, hasReply bool) bool {
	if hasReply {
		return true
	}
	out, err := a.complete(ctx, "classify", classifierSystem, question, classifierMaxTokens, classifierTemperature)
	if err != nil {
		log.Warn().Err(err).Msg("question classification failed, using chat context")
		return true
	}
	return strings.Contains(strings.ToUpper(out), "CHAT")
}

func (a *OpenAI) start(ctx context.Context, name string, n int) (context.Context, trace.Span) {
	return otel.Tracer("analyzer/OpenAI").Start(ctx, name,
		trace.WithAttributes(
			attribute.String("llm.model", a.cfg.Model),
			attribute.Int("messages.count", n),
		),
	)
}

func (a *OpenAI) complete(ctx context.Context, purpose, system, user string, maxTokens int, temperature float64) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	started := time.Now()
	completion, err := a.completions.New(ctx, params)
	if err != nil {
		err = classify(err)
		log.Error().Err(err).Str("purpose", purpose).Dur("took", time.Since(started)).Msg("openai request failed")
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", ErrUpstreamProtocol)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUpstreamProtocol)
	}
	log.Info().
		Str("purpose", purpose).
		Int64("tokens", completion.Usage.TotalTokens).
		Int("response_len", len(text)).
		Dur("took", time.Since(started)).
		Msg("openai request completed")
	return text, nil
}

// classify wraps err with the matching upstream sentinel.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", ErrUpstreamRateLimited, err)
		}
		return fmt.Errorf("%w: %w", ErrUpstreamProtocol, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamProtocol, err)
}
