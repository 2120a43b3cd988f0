// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// stats endpoint, the CLI and conditional (ETag) responses.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

// Stats summarizes what the bot has stored.
type Stats struct {
	Chats              int64      `json:"chats"`
	Messages           int64      `json:"messages"`
	ActiveCacheEntries int64      `json:"active_cache_entries"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
}

// CollectStats returns the number of distinct chats, stored messages and
// cache entries still valid at now, plus the newest message timestamp.
func CollectStats(ctx context.Context, db *gorm.DB, now time.Time) (Stats, error) {
	var s Stats
	if err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Distinct("chat_id").
		Count(&s.Chats).Error; err != nil {
		return Stats{}, err
	}
	n, last, err := MessagesStats(ctx, db, nil)
	if err != nil {
		return Stats{}, err
	}
	s.Messages, s.LastMessageAt = n, last
	if s.ActiveCacheEntries, err = CountActiveCache(ctx, db, now); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// MessagesStats returns the number of messages (optionally within one chat)
// and the greatest message timestamp, or nil when there are none.
//
// Return values:
//   - count:  total messages in scope
//   - latest: pointer to the newest Timestamp, or nil if no rows
//   - err:    database error, if any
func MessagesStats(ctx context.Context, db *gorm.DB, chatID *int64) (count int64, latest *time.Time, err error) {
	scope := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&domain.Message{})
		if chatID != nil {
			q = q.Where("chat_id = ?", *chatID)
		}
		return q
	}

	if err = scope().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		Timestamp time.Time
	}
	if err = scope().Select(`"timestamp"`).Order(`"timestamp" DESC`).Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	ts := row.Timestamp.UTC()
	return count, &ts, nil
}
