package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/tbourn/go-chat-digest/internal/domain"
)

const emptySetSentinel = "<empty>"

// ContentKey derives a cache key from the exact content of msgs: identity,
// text and reaction snapshot. Input order does not matter.
func ContentKey(msgs []domain.Message) string {
	return digest(contentParts(msgs))
}

// UserContentKey derives a per-user cache key. The operation and user id
// are folded into the hash so results never leak between users or
// operations. An empty set still yields a stable key.
func UserContentKey(operation string, userID int64, msgs []domain.Message) string {
	parts := []string{operation + ":" + strconv.FormatInt(userID, 10)}
	if len(msgs) == 0 {
		parts = append(parts, emptySetSentinel)
	} else {
		parts = append(parts, contentParts(msgs)...)
	}
	return digest(parts)
}

func contentParts(msgs []domain.Message) []string {
	sorted := make([]domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ChatID != sorted[j].ChatID {
			return sorted[i].ChatID < sorted[j].ChatID
		}
		return sorted[i].MessageID < sorted[j].MessageID
	})

	parts := make([]string, 0, len(sorted))
	for _, m := range sorted {
		// encoding/json writes map keys in sorted order
		reactions, _ := json.Marshal(m.ReactionCounts())
		var b strings.Builder
		b.WriteString(strconv.FormatInt(m.ChatID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(m.MessageID, 10))
		b.WriteByte(':')
		b.WriteString(m.Text)
		b.WriteByte(':')
		b.Write(reactions)
		parts = append(parts, b.String())
	}
	return parts
}

func digest(parts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
