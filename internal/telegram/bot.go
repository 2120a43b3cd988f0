// Package telegram is the chat transport of the bot. It long-polls the Bot
// API, stores group messages and reaction changes, and turns commands,
// mentions and replies to the bot into AnalysisService calls whose outcomes
// are rendered as localized replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/message"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/services"
)

// MessageService is what the bot needs to keep the stored chat current.
type MessageService interface {
	Ingest(ctx context.Context, m *domain.Message) error
	ApplyReaction(ctx context.Context, chatID, messageID int64, oldEmojis, newEmojis []string) (domain.Reactions, error)
	Stats(ctx context.Context) (repo.Stats, error)
}

// AnalysisService runs the debounced, cached analyzer operations.
type AnalysisService interface {
	Analyze(ctx context.Context, req services.AnalyzeRequest) (services.Result, error)
	CreateHoroscope(ctx context.Context, req services.HoroscopeRequest) (services.Result, error)
	AnswerQuestion(ctx context.Context, req services.QuestionRequest) (services.Result, error)
}

// Deps wires the bot to the rest of the application.
type Deps struct {
	Messages MessageService
	Analysis AnalysisService
	AdminID  int64
	Language string
	Windows  config.AnalysisConfig

	// Workers bounds concurrently handled updates. Defaults to 8.
	Workers    int
	HTTPClient *http.Client
}

// Bot is a long-polling Telegram bot.
type Bot struct {
	api      *telego.Bot
	sender   Sender
	username string
	mention  *regexp.Regexp
	deps     Deps
	p        *message.Printer
	log      zerolog.Logger
}

// New connects to the Bot API and resolves the bot's username once.
func New(ctx context.Context, token string, deps Deps) (*Bot, error) {
	opts := []telego.BotOption{telego.WithLogger(zerologAdapter{token: token})}
	if deps.HTTPClient != nil {
		opts = append(opts, telego.WithHTTPClient(deps.HTTPClient))
	}
	api, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	me, err := api.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	b := newBot(api, me.Username, deps)
	b.api = api
	return b, nil
}

func newBot(sender Sender, username string, deps Deps) *Bot {
	if deps.Workers <= 0 {
		deps.Workers = 8
	}
	b := &Bot{
		sender:   sender,
		username: username,
		deps:     deps,
		p:        newPrinter(deps.Language),
		log:      log.With().Str("component", "telegram").Logger(),
	}
	if username != "" {
		b.mention = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(username) + `\b`)
	}
	return b
}

// Username is the bot's @handle without the leading "@".
func (b *Bot) Username() string { return b.username }

// Run long-polls updates until ctx is cancelled. Updates are handled
// concurrently; Run returns once in-flight handlers finish.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return errors.New("telegram: bot is not connected")
	}
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message", "message_reaction"},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	b.log.Info().Str("username", b.username).Msg("telegram bot connected")
	return b.consume(ctx, updates)
}

func (b *Bot) consume(ctx context.Context, updates <-chan telego.Update) error {
	var g errgroup.Group
	g.SetLimit(b.deps.Workers)
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			b.log.Info().Msg("telegram bot stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				_ = g.Wait()
				b.log.Info().Msg("telegram updates channel closed")
				return nil
			}
			g.Go(func() error {
				b.HandleUpdate(ctx, u)
				return nil
			})
		}
	}
}

// zerologAdapter routes telego's internal logs into zerolog with the bot
// token masked.
type zerologAdapter struct{ token string }

func (a zerologAdapter) Debugf(format string, args ...any) {
	log.Debug().Str("component", "telego").Msg(a.mask(fmt.Sprintf(format, args...)))
}

func (a zerologAdapter) Errorf(format string, args ...any) {
	log.Error().Str("component", "telego").Msg(a.mask(fmt.Sprintf(format, args...)))
}

func (a zerologAdapter) mask(s string) string {
	if a.token == "" {
		return s
	}
	return strings.ReplaceAll(s, a.token, "BOT_TOKEN")
}
