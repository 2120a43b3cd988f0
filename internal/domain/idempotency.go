package domain

import "time"

// Idempotency records the answer produced for a question request keyed by
// (user_id, chat_id, key). A retried request with the same Idempotency-Key
// replays the stored answer instead of spending another debounce slot and
// another analyzer call.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    int64     `gorm:"not null;uniqueIndex:ux_user_chat_key,priority:1"`
	ChatID    int64     `gorm:"not null;uniqueIndex:ux_user_chat_key,priority:2"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_chat_key,priority:3"`
	Answer    string    `gorm:"type:text;not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
