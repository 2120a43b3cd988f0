package domain

import "time"

// ReplyContext describes the message a question quotes.
type ReplyContext struct {
	Text      string    `json:"text"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
