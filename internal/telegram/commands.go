package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/tbourn/go-chat-digest/internal/services"
)

// maxAnalyzeHours caps the window of /analyze.
const maxAnalyzeHours = 168

// parseCommand splits "/cmd@bot args" into its parts. Commands addressed to
// another bot are not ours.
func (b *Bot) parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if name, target, found := strings.Cut(head, "@"); found {
		if !strings.EqualFold(target, b.username) {
			return "", "", false
		}
		head = name
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func (b *Bot) handleCommand(ctx context.Context, msg *telego.Message, cmd, args string) {
	switch cmd {
	case "start", "help":
		b.send(ctx, msg, b.p.Sprintf(msgHelp), false)
	case services.OpAnalyze:
		hours := b.deps.Windows.PeriodHours
		if args != "" {
			n, err := strconv.Atoi(strings.Fields(args)[0])
			if err != nil || n < 1 || n > maxAnalyzeHours {
				b.send(ctx, msg, b.p.Sprintf(msgAnalyzeUsage, maxAnalyzeHours), false)
				return
			}
			hours = n
		}
		b.analyze(ctx, msg, services.OpAnalyze, hours, time.Duration(hours)*time.Hour)
	case services.OpAnal:
		b.analyze(ctx, msg, services.OpAnal, b.deps.Windows.ShortPeriodHours, 0)
	case services.OpDeepAnal:
		b.analyze(ctx, msg, services.OpDeepAnal, b.deps.Windows.DeepPeriodHours, 0)
	case services.OpHoroscope:
		b.horoscope(ctx, msg)
	case services.OpAsk:
		b.ask(ctx, msg, args)
	case "stats":
		b.stats(ctx, msg)
	default:
		b.log.Debug().Str("command", cmd).Msg("unknown command ignored")
	}
}

func (b *Bot) isAdmin(msg *telego.Message) bool {
	return msg.From != nil && b.deps.AdminID != 0 && msg.From.ID == b.deps.AdminID
}

func (b *Bot) analyze(ctx context.Context, msg *telego.Message, opType string, hours int, window time.Duration) {
	res, err := b.deps.Analysis.Analyze(ctx, services.AnalyzeRequest{
		OperationType: opType,
		ChatID:        msg.Chat.ID,
		Window:        window,
		Bypass:        b.isAdmin(msg),
	})
	if err != nil {
		b.fail(ctx, msg, opNameAnalysis, err)
		return
	}
	if res.Empty {
		b.send(ctx, msg, b.p.Sprintf(services.NothingToAnalyze), false)
		return
	}
	b.log.Info().
		Str("operation", opType).
		Int64("chat_id", msg.Chat.ID).
		Bool("from_cache", res.FromCache).
		Int("messages", res.MessageCount).
		Msg("analysis delivered")
	b.send(ctx, msg, b.p.Sprintf(msgAnalysisHeader, hours)+res.Text+b.cachedMark(res), true)
}

func (b *Bot) horoscope(ctx context.Context, msg *telego.Message) {
	name := displayName(msg.From)
	res, err := b.deps.Analysis.CreateHoroscope(ctx, services.HoroscopeRequest{
		UserID:   msg.From.ID,
		Username: name,
		ChatID:   msg.Chat.ID,
		Bypass:   b.isAdmin(msg),
	})
	if err != nil {
		b.fail(ctx, msg, opNameHoroscope, err)
		return
	}
	b.send(ctx, msg, b.p.Sprintf(msgHoroscopeHeader, name)+res.Text+b.cachedMark(res), true)
}

func (b *Bot) ask(ctx context.Context, msg *telego.Message, question string) {
	if strings.TrimSpace(question) == "" {
		b.send(ctx, msg, b.p.Sprintf(msgAskUsage), false)
		return
	}
	res, err := b.deps.Analysis.AnswerQuestion(ctx, services.QuestionRequest{
		Question: question,
		ChatID:   msg.Chat.ID,
		UserID:   msg.From.ID,
		Reply:    replyContext(msg),
		Bypass:   b.isAdmin(msg),
	})
	if err != nil {
		b.fail(ctx, msg, opNameQuestion, err)
		return
	}
	b.send(ctx, msg, res.Text, true)
}

func (b *Bot) stats(ctx context.Context, msg *telego.Message) {
	if !b.isAdmin(msg) {
		b.send(ctx, msg, b.p.Sprintf(msgAdminOnly), false)
		return
	}
	st, err := b.deps.Messages.Stats(ctx)
	if err != nil {
		b.fail(ctx, msg, "", err)
		return
	}
	b.send(ctx, msg, b.p.Sprintf(msgStats, st.Chats, st.Messages, st.ActiveCacheEntries), true)
}

func (b *Bot) cachedMark(res services.Result) string {
	if !res.FromCache {
		return ""
	}
	return b.p.Sprintf(msgCached)
}

// fail renders the three refusal kinds distinctly: a wait notice, an
// analyzer failure, or a generic error.
func (b *Bot) fail(ctx context.Context, msg *telego.Message, opName string, err error) {
	var rl *services.RateLimitedError
	var af *services.AnalysisFailedError
	switch {
	case errors.As(err, &rl):
		b.log.Debug().Str("operation", rl.Operation).Dur("remaining", rl.Remaining).Msg("request debounced")
		b.send(ctx, msg, b.p.Sprintf(msgRateLimited, b.p.Sprintf(opName), formatWait(b.p, rl.Remaining)), true)
	case errors.As(err, &af):
		b.log.Warn().Err(err).Str("operation", af.Operation).Str("reason", af.Reason).Msg("analysis failed")
		b.send(ctx, msg, b.p.Sprintf(msgFailed, reasonText(b.p, af.Reason)), false)
	case errors.Is(err, services.ErrEmptyQuestion):
		b.send(ctx, msg, b.p.Sprintf(msgAskUsage), false)
	case errors.Is(err, context.Canceled):
		b.log.Debug().Err(err).Msg("command cancelled")
	default:
		b.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("command failed")
		b.send(ctx, msg, b.p.Sprintf(msgGeneric), false)
	}
}

func (b *Bot) send(ctx context.Context, msg *telego.Message, text string, markdown bool) {
	if err := b.reply(ctx, msg, text, markdown); err != nil {
		b.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("send reply failed")
	}
}
