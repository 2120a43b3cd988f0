package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

const timestampLayout = "2006-01-02 15:04"

const summarySystem = `You are a witty analyst of group chats.

Formatting rules you must follow in every answer:
1. Section headings are bold Telegram Markdown: *1. Main topics* 🎭
2. Escape every underscore in a username with a backslash: @user\_name
3. Keep exactly the four sections requested, in order.`

const horoscopeSystem = `You write short, sarcastic but good-natured horoscopes for chat members.
Never insult the person. Escape every underscore in a username with a backslash.`

const questionSystem = `You are an ironic assistant living in a group chat.

Rules:
1. Answer in at most 5 sentences.
2. Use the supplied chat context; a quoted message takes priority.
3. Escape every underscore in a username with a backslash: @user\_name
4. Match the tone of the person asking and answer directly.`

const generalSystem = `You are a helpful assistant. Answer briefly and to the point,
in at most 5 sentences. If you do not know the answer, say so.`

const classifierSystem = `Decide whether the question is about the conversation in the group chat
or is a general question.

CHAT: what was discussed, who said what, specific members or their messages,
the current topic of the conversation.
GENERAL: facts, definitions, advice, news or anything that needs no chat history.

Reply with exactly one word: CHAT or GENERAL.`

func formatReactions(r domain.Reactions) string {
	if len(r) == 0 {
		return ""
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, r[k]))
	}
	return " [reactions: " + strings.Join(parts, ", ") + "]"
}

func formatLine(m domain.Message, loc *time.Location, withAuthor bool) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(m.Timestamp.In(loc).Format(timestampLayout))
	b.WriteString("] ")
	if withAuthor {
		b.WriteString("@")
		b.WriteString(displayName(m))
		b.WriteString(": ")
	}
	b.WriteString(m.Text)
	return b.String()
}

func displayName(m domain.Message) string {
	if m.Username != "" {
		return m.Username
	}
	return fmt.Sprintf("id%d", m.UserID)
}

func sortedByTime(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func buildSummaryPrompt(msgs []domain.Message, loc *time.Location) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range sortedByTime(msgs) {
		lines = append(lines, formatLine(m, loc, true)+formatReactions(m.ReactionCounts()))
	}
	return `Analyze the following group chat messages and write a short digest.

MESSAGES:
` + strings.Join(lines, "\n") + `

ANSWER FORMAT:

*1. Main topics* 🎭
- What people argued about and how far they drifted from the original topic
- Who acted as the resident expert on each topic

*2. Hottest posts* 🔥
- The messages that started the biggest fights, with their authors
- Drama level, from "mild misunderstanding" to "nuclear war"

*3. Reaction royalty* 👑
- Whose messages collected the most emoji, and whether they deserved it
- The most popular reactions and what they say about the chat's mood

*4. Chat diagnosis* 🏥
- Number of messages and participants
- Overall toxicity and a forecast for tomorrow

Be brief, sarcastic and playful. Start directly with the first section.`
}

func buildHoroscopePrompt(msgs []domain.Message, username string, loc *time.Location) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range sortedByTime(msgs) {
		lines = append(lines, formatLine(m, loc, false)+formatReactions(m.ReactionCounts()))
	}
	body := strings.Join(lines, "\n")
	note := ""
	if len(lines) == 0 {
		body = "(no messages: the user stayed silent)"
		note = "\nThe user wrote nothing in this period. Base the horoscope on the silence itself."
	}
	return `Write a sarcastic horoscope for @` + escapeMarkdown(username) + ` based on their messages.` + note + `

USER MESSAGES:
` + body + `

ANSWER FORMAT:

*⭐ What awaits you*
Predictions inspired by the messages, without quoting them.

At most 4 sentences. Start directly with the heading.`
}

func buildQuestionPrompt(question string, context []domain.Message, reply *domain.ReplyContext, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("QUESTION: ")
	b.WriteString(question)
	if reply != nil && reply.Text != "" {
		b.WriteString("\n\nQUOTED MESSAGE:\n")
		if reply.Username != "" {
			b.WriteString("@" + reply.Username + ": ")
		}
		b.WriteString(reply.Text)
	}
	b.WriteString("\n\nCHAT CONTEXT:\n")
	if len(context) == 0 {
		b.WriteString("(no messages in context)")
	}
	for i, m := range context {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatLine(m, loc, true))
	}
	b.WriteString("\n\nAnswer briefly (at most 5 sentences), taking the chat context into account.")
	return b.String()
}

func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "_", `\_`)
}
