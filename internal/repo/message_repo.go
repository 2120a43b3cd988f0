// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for ingested chat
// messages: idempotent upserts, reaction snapshots and time-window scans.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside a transaction. Window scans are ordered by (timestamp,
// message_id) ascending so callers always see a deterministic sequence.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertMessage inserts a message, or refreshes its text and username when
// the (chat_id, message_id) pair was already stored (edited messages).
// The reaction snapshot of an existing row is left untouched.
func UpsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	m.Timestamp = m.Timestamp.UTC()
	if m.Reactions.Data() == nil {
		m.SetReactions(domain.Reactions{})
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "username"}),
	}).Create(m).Error
}

// GetMessage fetches a message by its composite identity.
func GetMessage(ctx context.Context, db *gorm.DB, chatID, messageID int64) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateReactions replaces the reaction snapshot of a message.
// It returns ErrNotFound if the message is unknown.
func UpdateReactions(ctx context.Context, db *gorm.DB, chatID, messageID int64, r domain.Reactions) error {
	if r == nil {
		r = domain.Reactions{}
	}
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Update("reactions", datatypes.NewJSONType(r))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByPeriod returns messages sent at or after since, optionally scoped to
// one chat, in ascending time order.
func ListByPeriod(ctx context.Context, db *gorm.DB, since time.Time, chatID *int64) ([]domain.Message, error) {
	q := db.WithContext(ctx).Where(`"timestamp" >= ?`, since.UTC())
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}
	var out []domain.Message
	err := q.Order(`"timestamp" ASC, message_id ASC`).Find(&out).Error
	return out, err
}

// ListByUserAndPeriod returns one user's messages sent at or after since,
// optionally scoped to one chat, in ascending time order.
func ListByUserAndPeriod(ctx context.Context, db *gorm.DB, userID int64, since time.Time, chatID *int64) ([]domain.Message, error) {
	q := db.WithContext(ctx).Where(`user_id = ? AND "timestamp" >= ?`, userID, since.UTC())
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}
	var out []domain.Message
	err := q.Order(`"timestamp" ASC, message_id ASC`).Find(&out).Error
	return out, err
}

// ListChatIDs returns the distinct chats the bot has stored messages for.
func ListChatIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Distinct("chat_id").
		Order("chat_id ASC").
		Pluck("chat_id", &ids).Error
	return ids, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
// A nil chatID counts across all chats.
func CountMessages(ctx context.Context, db *gorm.DB, chatID *int64) (int64, error) {
	var total int64
	var err error
	if chatID == nil {
		err = db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages").Scan(&total).Error
	} else {
		err = db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", *chatID).Scan(&total).Error
	}
	return total, err
}
