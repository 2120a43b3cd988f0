package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/services"
)

// HandleUpdate dispatches a single update. Failures are logged and, where a
// user is waiting, answered in chat.
func (b *Bot) HandleUpdate(ctx context.Context, u telego.Update) {
	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.MessageReaction != nil:
		b.handleReaction(ctx, u.MessageReaction)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	text := messageText(msg)
	if text == "" {
		return
	}

	if cmd, args, ok := b.parseCommand(text); ok {
		b.handleCommand(ctx, msg, cmd, args)
		return
	}
	if strings.HasPrefix(text, "/") {
		return
	}
	if question, ok := b.questionFor(msg, text); ok {
		b.ask(ctx, msg, question)
		return
	}
	if isGroup(msg.Chat) {
		b.ingest(ctx, msg, text)
	}
}

// questionFor reports whether msg is addressed to the bot, either through an
// @mention or as a reply to one of the bot's messages, and extracts the
// question.
func (b *Bot) questionFor(msg *telego.Message, text string) (string, bool) {
	if b.mention != nil {
		if loc := b.mention.FindStringIndex(text); loc != nil {
			return strings.TrimSpace(text[:loc[0]] + text[loc[1]:]), true
		}
	}
	if r := msg.ReplyToMessage; r != nil && r.From != nil && r.From.IsBot &&
		b.username != "" && strings.EqualFold(r.From.Username, b.username) {
		return text, true
	}
	return "", false
}

func (b *Bot) ingest(ctx context.Context, msg *telego.Message, text string) {
	m := &domain.Message{
		ChatID:    msg.Chat.ID,
		MessageID: int64(msg.MessageID),
		UserID:    msg.From.ID,
		Username:  displayName(msg.From),
		Text:      text,
		Timestamp: time.Unix(msg.Date, 0).UTC(),
	}
	m.SetReactions(domain.Reactions{})
	if r := msg.ReplyToMessage; r != nil {
		id := int64(r.MessageID)
		m.ReplyToMessageID = &id
	}
	if err := b.deps.Messages.Ingest(ctx, m); err != nil && !errors.Is(err, services.ErrEmptyText) {
		b.log.Error().Err(err).
			Int64("chat_id", m.ChatID).
			Int64("message_id", m.MessageID).
			Msg("store message failed")
	}
}

func (b *Bot) handleReaction(ctx context.Context, r *telego.MessageReactionUpdated) {
	oldEmojis := emojis(r.OldReaction)
	newEmojis := emojis(r.NewReaction)
	if len(oldEmojis) == 0 && len(newEmojis) == 0 {
		return
	}
	_, err := b.deps.Messages.ApplyReaction(ctx, r.Chat.ID, int64(r.MessageID), oldEmojis, newEmojis)
	switch {
	case errors.Is(err, services.ErrMessageNotFound):
		b.log.Debug().Int64("chat_id", r.Chat.ID).Int("message_id", r.MessageID).Msg("reaction on unknown message")
	case err != nil:
		b.log.Error().Err(err).Int64("chat_id", r.Chat.ID).Int("message_id", r.MessageID).Msg("apply reaction failed")
	}
}

// emojis keeps plain emoji reactions; custom and paid ones are ignored.
func emojis(rs []telego.ReactionType) []string {
	var out []string
	for _, r := range rs {
		if e, ok := r.(*telego.ReactionTypeEmoji); ok && e.Emoji != "" {
			out = append(out, e.Emoji)
		}
	}
	return out
}

func messageText(msg *telego.Message) string {
	if t := strings.TrimSpace(msg.Text); t != "" {
		return t
	}
	return strings.TrimSpace(msg.Caption)
}

func displayName(u *telego.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func isGroup(c telego.Chat) bool {
	return c.Type == telego.ChatTypeGroup || c.Type == telego.ChatTypeSupergroup
}

// replyContext turns the message a question quotes into analyzer context.
func replyContext(msg *telego.Message) *domain.ReplyContext {
	r := msg.ReplyToMessage
	if r == nil {
		return nil
	}
	text := messageText(r)
	if text == "" {
		return nil
	}
	rc := &domain.ReplyContext{
		Text:      text,
		Timestamp: time.Unix(r.Date, 0).UTC(),
	}
	if r.From != nil {
		rc.Username = displayName(r.From)
	}
	return rc
}
