package telegram

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/tbourn/go-chat-digest/internal/services"
)

// Message keys double as the English texts.
const (
	msgAnalysisHeader  = "📊 *Chat analysis for the last %d h*\n\n"
	msgHoroscopeHeader = "🔮 *Horoscope for %s*\n\n"
	msgCached          = "\n\n_(from cache)_"
	msgRateLimited     = "⏳ *Too many requests*\n\nThe %s ran recently.\nPlease wait %s."
	msgWaitMinutes     = "%d min %d sec"
	msgWaitSeconds     = "%d sec"
	msgFailed          = "❌ The analysis failed: %s"
	msgGeneric         = "❌ Something went wrong while running the command."
	msgAdminOnly       = "⛔ This command is available to the admin only."
	msgAskUsage        = "Usage: /ask <question>, or mention me with a question."
	msgAnalyzeUsage    = "Usage: /analyze [hours], hours from 1 to %d."
	msgStats           = "📈 *Bot statistics*\n\nChats: *%d*\nMessages: *%d*\nActive cache entries: *%d*"
	msgHelp            = "I keep track of this chat and summarize it on request.\n\n" +
		"/analyze [hours] - summary of the chat\n" +
		"/anal - short summary\n" +
		"/deep_anal - deep summary\n" +
		"/horoscope - your personal horoscope\n" +
		"/ask <question> - ask about the chat"

	opNameAnalysis  = "analysis"
	opNameHoroscope = "horoscope"
	opNameQuestion  = "question"

	reasonOverloaded  = "the model is overloaded, try again later"
	reasonUnreachable = "the model is unreachable right now"
	reasonProtocol    = "the model returned an unusable response"
)

var ruStrings = map[string]string{
	msgAnalysisHeader:  "📊 *Анализ сообщений за последние %d ч*\n\n",
	msgHoroscopeHeader: "🔮 *Гороскоп для %s*\n\n",
	msgCached:          "\n\n_(из кеша)_",
	msgRateLimited:     "⏳ *Слишком частый запрос*\n\nОперация «%s» была выполнена недавно.\nПожалуйста, подождите еще %s.",
	msgWaitMinutes:     "%d мин %d сек",
	msgWaitSeconds:     "%d сек",
	msgFailed:          "❌ Не удалось выполнить анализ: %s",
	msgGeneric:         "❌ Произошла ошибка при выполнении команды.",
	msgAdminOnly:       "⛔ Эта команда доступна только администратору.",
	msgAskUsage:        "Использование: /ask <вопрос>, или упомяните меня с вопросом.",
	msgAnalyzeUsage:    "Использование: /analyze [часы], от 1 до %d.",
	msgStats:           "📈 *Статистика бота*\n\nЧатов: *%d*\nСообщений: *%d*\nЗаписей в кеше: *%d*",
	msgHelp: "Я слежу за этим чатом и по запросу делаю сводку.\n\n" +
		"/analyze [часы] - сводка чата\n" +
		"/anal - короткая сводка\n" +
		"/deep_anal - подробная сводка\n" +
		"/horoscope - персональный гороскоп\n" +
		"/ask <вопрос> - вопрос о чате",
	services.NothingToAnalyze: "Нет сообщений для анализа за указанный период.",

	opNameAnalysis:  "анализ",
	opNameHoroscope: "гороскоп",
	opNameQuestion:  "вопрос",

	reasonOverloaded:  "модель перегружена, попробуйте позже",
	reasonUnreachable: "модель сейчас недоступна",
	reasonProtocol:    "модель вернула непригодный ответ",
}

var replyCatalog = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range ruStrings {
		_ = b.SetString(language.Russian, key, msg)
	}
	return b
}()

// newPrinter returns a printer for lang, falling back to English.
func newPrinter(lang string) *message.Printer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag, message.Catalog(replyCatalog))
}

// formatWait renders a remaining debounce time, rounded up to a second.
func formatWait(p *message.Printer, d time.Duration) string {
	total := int((d + time.Second - 1) / time.Second)
	if total < 1 {
		total = 1
	}
	if total >= 60 {
		return p.Sprintf(msgWaitMinutes, total/60, total%60)
	}
	return p.Sprintf(msgWaitSeconds, total)
}

func reasonText(p *message.Printer, reason string) string {
	switch reason {
	case services.ReasonUpstreamRateLimited:
		return p.Sprintf(reasonOverloaded)
	case services.ReasonUpstreamUnreachable:
		return p.Sprintf(reasonUnreachable)
	default:
		return p.Sprintf(reasonProtocol)
	}
}
