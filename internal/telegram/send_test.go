package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"
)

func TestReply_MarkdownFallsBackToPlain(t *testing.T) {
	h := newHarness(t, "en")
	h.sender.failOnce = errors.New("telego: sendMessage: api: 400 \"Bad Request: can't parse entities\"")

	msg := groupMessage(5, 7, "x")
	if err := h.bot.reply(context.Background(), msg, "*broken_markdown", true); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if len(h.sender.sent) != 2 {
		t.Fatalf("sends = %d; want 2", len(h.sender.sent))
	}
	if h.sender.sent[0].ParseMode != telego.ModeMarkdown || h.sender.sent[1].ParseMode != "" {
		t.Fatalf("parse modes = %q, %q", h.sender.sent[0].ParseMode, h.sender.sent[1].ParseMode)
	}
	if h.sender.sent[1].Text != "*broken_markdown" {
		t.Fatalf("plain resend text = %q", h.sender.sent[1].Text)
	}
}

func TestReply_OtherErrorsPropagate(t *testing.T) {
	h := newHarness(t, "en")
	h.sender.failOnce = errors.New("Forbidden: bot was kicked")

	if err := h.bot.reply(context.Background(), groupMessage(5, 7, "x"), "hi", true); err == nil {
		t.Fatalf("expected error")
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("non-parse errors are not retried")
	}
}

func TestReply_SplitsLongTexts(t *testing.T) {
	h := newHarness(t, "en")
	line := strings.Repeat("я", 99) + "\n"
	text := strings.Repeat(line, 100) // 10000 runes

	msg := groupMessage(9, 7, "x")
	if err := h.bot.reply(context.Background(), msg, text, false); err != nil {
		t.Fatalf("reply: %v", err)
	}
	sent := h.sender.sent
	if len(sent) != 3 {
		t.Fatalf("chunks = %d; want 3", len(sent))
	}
	for i, p := range sent {
		if n := utf8.RuneCountInString(p.Text); n > maxMessageRunes {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
		if (p.ReplyParameters != nil) != (i == 0) {
			t.Fatalf("only the first chunk quotes the request (chunk %d)", i)
		}
		if p.ChatID.ID != groupID {
			t.Fatalf("chunk %d sent to %v", i, p.ChatID)
		}
	}
	if sent[0].ReplyParameters.MessageID != 9 || !sent[0].ReplyParameters.AllowSendingWithoutReply {
		t.Fatalf("unexpected reply parameters: %+v", sent[0].ReplyParameters)
	}
}

func TestSplitText(t *testing.T) {
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text should not be split: %q", got)
	}

	// No line breaks: hard cuts at the limit.
	got := splitText(strings.Repeat("a", 25), 10)
	if len(got) != 3 || got[0] != strings.Repeat("a", 10) || got[2] != "aaaaa" {
		t.Fatalf("hard split = %q", got)
	}

	// Cuts prefer the last newline in the second half of the window.
	got = splitText("aaaaaaa\nbbbbbbb\nccc", 10)
	if len(got) != 3 || got[0] != "aaaaaaa" || got[1] != "bbbbbbb" || got[2] != "ccc" {
		t.Fatalf("line split = %q", got)
	}
}

func TestFormatWait(t *testing.T) {
	en := newPrinter("en")
	cases := []struct {
		d    time.Duration
		want string
	}{
		{280 * time.Second, "4 min 40 sec"},
		{59*time.Second + 200*time.Millisecond, "1 min 0 sec"},
		{30 * time.Second, "30 sec"},
		{0, "1 sec"},
	}
	for _, tc := range cases {
		if got := formatWait(en, tc.d); got != tc.want {
			t.Fatalf("formatWait(%v) = %q; want %q", tc.d, got, tc.want)
		}
	}
	if got := formatWait(newPrinter("ru"), 280*time.Second); got != "4 мин 40 сек" {
		t.Fatalf("ru formatWait = %q", got)
	}
}

func TestNewPrinter_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	p := newPrinter("!!")
	if got := p.Sprintf(msgAdminOnly); got != msgAdminOnly {
		t.Fatalf("fallback text = %q", got)
	}
}
