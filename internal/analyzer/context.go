package analyzer

import (
	"sort"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

const (
	recentContext = 10 // messages used when nothing is quoted
	quoteRadius   = 10 // messages kept on each side of a quoted message
)

// SelectContext picks the messages a question is answered against.
//
// Without a quote it returns the last 10 messages. With a quote it locates
// the last message sent at or before the quote timestamp and returns up to
// 10 messages before it, the message itself and up to 10 after it. When
// every message is newer than the quote the window starts at the first one.
func SelectContext(msgs []domain.Message, reply *domain.ReplyContext) []domain.Message {
	if len(msgs) == 0 {
		return nil
	}
	sorted := make([]domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	if reply == nil || reply.Timestamp.IsZero() {
		if len(sorted) > recentContext {
			return sorted[len(sorted)-recentContext:]
		}
		return sorted
	}

	target := 0
	for i, m := range sorted {
		if m.Timestamp.After(reply.Timestamp) {
			break
		}
		target = i
	}
	start := max(0, target-quoteRadius)
	end := min(len(sorted), target+quoteRadius+1)
	return sorted[start:end]
}
