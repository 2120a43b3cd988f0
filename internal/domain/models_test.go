package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Message{}, &DebounceRecord{}, &CacheEntry{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Message{}.TableName():        "messages",
		DebounceRecord{}.TableName(): "debounce",
		CacheEntry{}.TableName():     "cache",
		Idempotency{}.TableName():    "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("table name = %q, want %q", got, want)
		}
	}
}

func TestMessage_CompositeKey_AndReactionsRoundTrip(t *testing.T) {
	db := newTestDB(t)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Message{ChatID: -100, MessageID: 1, UserID: 7, Username: "alice", Text: "hi", Timestamp: ts}
	a.SetReactions(Reactions{"👍": 2, "🔥": 1})
	b := Message{ChatID: -200, MessageID: 1, UserID: 8, Text: "same id, other chat", Timestamp: ts}
	b.SetReactions(nil)

	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("message ids are only unique per chat, got: %v", err)
	}
	dup := Message{ChatID: -100, MessageID: 1, UserID: 7, Text: "dup", Timestamp: ts}
	dup.SetReactions(nil)
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected primary key violation for duplicate (chat_id, message_id)")
	}

	var got Message
	if err := db.First(&got, "chat_id = ? AND message_id = ?", -100, 1).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	r := got.ReactionCounts()
	if r["👍"] != 2 || r["🔥"] != 1 || len(r) != 2 {
		t.Fatalf("reactions round trip mismatch: %#v", r)
	}

	var empty Message
	if err := db.First(&empty, "chat_id = ? AND message_id = ?", -200, 1).Error; err != nil {
		t.Fatalf("load b: %v", err)
	}
	if rc := empty.ReactionCounts(); rc == nil || len(rc) != 0 {
		t.Fatalf("ReactionCounts should be an empty non-nil map, got %#v", rc)
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newTestDB(t)
	m := db.Migrator()
	for _, idx := range []string{"idx_chat_ts", "idx_user_ts"} {
		if !m.HasIndex(&Message{}, idx) {
			t.Fatalf("expected index %s on messages", idx)
		}
	}
	if !m.HasIndex(&CacheEntry{}, "idx_cache_expires_at") {
		t.Fatalf("expected index on cache.expires_at")
	}
}
