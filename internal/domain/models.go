// Package domain defines the persistence models for ingested chat messages
// and the two pieces of shared orchestration state: the debounce clock and
// the analysis result cache. These types are mapped with GORM and form the
// core data layer of the bot.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Reactions maps an emoji to the number of users who reacted with it.
type Reactions map[string]int

// Message is a single group chat message captured by the bot.
//
// Fields:
//   - ChatID / MessageID: composite identity; Telegram message ids are only
//     unique within a chat.
//   - UserID / Username: author; Username may be empty for users without one.
//   - Text: message text (or media caption).
//   - Timestamp: when the message was sent (UTC); indexed for window scans.
//   - Reactions: emoji -> count snapshot, mutated in place by reaction events.
//   - ReplyToMessageID: optional id of the message this one replies to.
type Message struct {
	ChatID           int64                         `json:"chat_id"    gorm:"primaryKey;autoIncrement:false;index:idx_chat_ts,priority:1"`
	MessageID        int64                         `json:"message_id" gorm:"primaryKey;autoIncrement:false"`
	UserID           int64                         `json:"user_id"    gorm:"not null;index:idx_user_ts,priority:1"`
	Username         string                        `json:"username"   gorm:"type:varchar(64)"`
	Text             string                        `json:"text"       gorm:"type:text;not null"`
	Timestamp        time.Time                     `json:"timestamp"  gorm:"not null;index;index:idx_chat_ts,priority:2;index:idx_user_ts,priority:2"`
	Reactions        datatypes.JSONType[Reactions] `json:"reactions"  gorm:"not null"`
	ReplyToMessageID *int64                        `json:"reply_to_message_id,omitempty"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ReactionCounts returns the reaction snapshot, never nil.
func (m Message) ReactionCounts() Reactions {
	r := m.Reactions.Data()
	if r == nil {
		return Reactions{}
	}
	return r
}

// SetReactions replaces the reaction snapshot.
func (m *Message) SetReactions(r Reactions) {
	m.Reactions = datatypes.NewJSONType(r)
}

// DebounceRecord stores the last time an expensive operation actually ran.
// One row per operation key (e.g. "analyze:-100123" or "horoscope:7:-100123").
type DebounceRecord struct {
	Operation     string    `gorm:"type:varchar(255);primaryKey"`
	LastExecution time.Time `gorm:"not null"`
}

// TableName returns the database table name for DebounceRecord.
func (DebounceRecord) TableName() string { return "debounce" }

// CacheEntry is a memoized analysis result keyed by a content hash.
// ExpiresAt is always after CreatedAt; rows with ExpiresAt <= now are
// treated as absent and are removed by the cleanup sweep.
type CacheEntry struct {
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "cache" }
