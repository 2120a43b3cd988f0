// Package services – MessageService
//
// This file implements MessageService, which owns the stored copy of the
// chat: it ingests messages, folds reaction events into per-message
// snapshots and serves the time-window reads the AnalysisService consumes.
// It is the database-backed MessageStore.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// carry chat and message identifiers.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/domain"
	"github.com/tbourn/go-chat-digest/internal/repo"
)

// ErrEmptyText is returned when an ingested message carries no text.
var ErrEmptyText = errors.New("message text is empty")

// MessageService persists chat messages and their reactions.
type MessageService struct {
	DB *gorm.DB

	// Optional guard; longer texts are clipped on ingest.
	MaxTextRunes int

	Now func() time.Time
}

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Ingest stores m, or refreshes its text if it was already stored.
// Messages without text are rejected with ErrEmptyText.
func (s *MessageService) Ingest(ctx context.Context, m *domain.Message) error {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.Int64("chat.id", m.ChatID),
			attribute.Int64("message.id", m.MessageID),
		),
	)
	defer span.End()

	m.Text = strings.TrimSpace(m.Text)
	if m.Text == "" {
		return ErrEmptyText
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(m.Text) > s.MaxTextRunes {
		m.Text = string([]rune(m.Text)[:s.MaxTextRunes])
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if err := repo.UpsertMessage(ctx, s.DB, m); err != nil {
		span.RecordError(err)
		return err
	}
	log.Debug().Int64("chat_id", m.ChatID).Int64("message_id", m.MessageID).Msg("message stored")
	return nil
}

// ApplyReaction folds one user's reaction change into the message
// snapshot: emojis only in newEmojis are incremented, emojis only in
// oldEmojis are decremented, and a count reaching zero drops the emoji.
// It returns ErrMessageNotFound when the message was never stored.
func (s *MessageService) ApplyReaction(ctx context.Context, chatID, messageID int64, oldEmojis, newEmojis []string) (domain.Reactions, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ApplyReaction",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("message.id", messageID),
		),
	)
	defer span.End()

	added, removed := reactionDelta(oldEmojis, newEmojis)
	var out domain.Reactions
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMessage(ctx, tx, chatID, messageID)
		if err != nil {
			return err
		}
		counts := domain.Reactions{}
		for k, v := range m.ReactionCounts() {
			counts[k] = v
		}
		for _, e := range added {
			counts[e]++
		}
		for _, e := range removed {
			if counts[e] > 1 {
				counts[e]--
			} else {
				delete(counts, e)
			}
		}
		out = counts
		return repo.UpdateReactions(ctx, tx, chatID, messageID, counts)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// ListWindow returns the messages of the last window, oldest first.
// chatID 0 lists every chat.
func (s *MessageService) ListWindow(ctx context.Context, chatID int64, window time.Duration) ([]domain.Message, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return repo.ListByPeriod(ctx, s.DB, s.now().Add(-window), chatScope(chatID))
}

// ListByPeriod implements MessageStore.
func (s *MessageService) ListByPeriod(ctx context.Context, since time.Time, chatID *int64) ([]domain.Message, error) {
	return repo.ListByPeriod(ctx, s.DB, since, chatID)
}

// ListByUserAndPeriod implements MessageStore.
func (s *MessageService) ListByUserAndPeriod(ctx context.Context, userID int64, since time.Time, chatID *int64) ([]domain.Message, error) {
	return repo.ListByUserAndPeriod(ctx, s.DB, userID, since, chatID)
}

// Stats summarizes stored chats, messages and live cache entries.
func (s *MessageService) Stats(ctx context.Context) (repo.Stats, error) {
	return repo.CollectStats(ctx, s.DB, s.now())
}

// reactionDelta returns the sorted set differences new-old and old-new.
func reactionDelta(oldEmojis, newEmojis []string) (added, removed []string) {
	oldSet := make(map[string]struct{}, len(oldEmojis))
	for _, e := range oldEmojis {
		oldSet[e] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newEmojis))
	for _, e := range newEmojis {
		newSet[e] = struct{}{}
	}
	for e := range newSet {
		if _, ok := oldSet[e]; !ok {
			added = append(added, e)
		}
	}
	for e := range oldSet {
		if _, ok := newSet[e]; !ok {
			removed = append(removed, e)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
