package telegram

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// maxMessageRunes is Telegram's limit for a single text message.
const maxMessageRunes = 4096

// Sender is the slice of the Bot API the bot writes through.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// reply sends text to the chat of msg as a reply to it. Long texts are split
// into several messages; only the first one quotes msg. A chunk Telegram
// refuses to parse as Markdown is resent as plain text.
func (b *Bot) reply(ctx context.Context, msg *telego.Message, text string, markdown bool) error {
	for i, chunk := range splitText(text, maxMessageRunes) {
		params := tu.Message(tu.ID(msg.Chat.ID), chunk)
		if i == 0 {
			params.ReplyParameters = &telego.ReplyParameters{
				MessageID:                msg.MessageID,
				AllowSendingWithoutReply: true,
			}
		}
		if markdown {
			params.ParseMode = telego.ModeMarkdown
		}
		_, err := b.sender.SendMessage(ctx, params)
		if err != nil && markdown && isParseError(err) {
			b.log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("markdown rejected, resending as plain text")
			params.ParseMode = ""
			_, err = b.sender.SendMessage(ctx, params)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

// splitText cuts s into chunks of at most limit runes, preferring line
// breaks as cut points.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var out []string
	rest := []rune(s)
	for len(rest) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if rest[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimRight(string(rest[:cut]), "\n"))
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		out = append(out, string(rest))
	}
	return out
}
