package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

func TestMessagesStats_EmptyAndPopulated(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	n, last, err := MessagesStats(ctx, db, nil)
	if err != nil || n != 0 || last != nil {
		t.Fatalf("empty stats = %d, %v, %v", n, last, err)
	}

	for _, m := range []domain.Message{
		{ChatID: -1, MessageID: 1, UserID: 1, Text: "a", Timestamp: base.Add(-time.Hour)},
		{ChatID: -1, MessageID: 2, UserID: 1, Text: "b", Timestamp: base},
		{ChatID: -2, MessageID: 1, UserID: 1, Text: "c", Timestamp: base.Add(time.Hour)},
	} {
		if err := UpsertMessage(ctx, db, &m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	chat := int64(-1)
	n, last, err = MessagesStats(ctx, db, &chat)
	if err != nil {
		t.Fatalf("MessagesStats: %v", err)
	}
	if n != 2 || last == nil || !last.Equal(base) {
		t.Fatalf("scoped stats = %d, %v", n, last)
	}

	n, last, err = MessagesStats(ctx, db, nil)
	if err != nil || n != 3 || last == nil || !last.Equal(base.Add(time.Hour)) {
		t.Fatalf("global stats = %d, %v, %v", n, last, err)
	}
}

func TestCollectStats(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	for _, m := range []domain.Message{
		{ChatID: -1, MessageID: 1, UserID: 1, Text: "a", Timestamp: base},
		{ChatID: -2, MessageID: 1, UserID: 2, Text: "b", Timestamp: base},
	} {
		if err := UpsertMessage(ctx, db, &m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = SetCache(ctx, db, "live", "x", base, time.Hour)
	_ = SetCache(ctx, db, "dead", "y", base.Add(-2*time.Hour), time.Hour)

	s, err := CollectStats(ctx, db, base)
	if err != nil {
		t.Fatalf("CollectStats: %v", err)
	}
	if s.Chats != 2 || s.Messages != 2 || s.ActiveCacheEntries != 1 || s.LastMessageAt == nil {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
