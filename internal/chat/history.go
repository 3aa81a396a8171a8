package chat

import (
	"strings"

	"github.com/MegaGrindStone/askstream/internal/models"
)

// DefaultHistoryWindow is the number of recent messages sent as context with a question.
const DefaultHistoryWindow = 8

// Window returns the last k messages with non-blank text, oldest first, in their wire form. It returns
// nil when there is nothing to send, so the history is left out of the request.
func Window(msgs []models.Message, k int) []models.HistoryEntry {
	if k <= 0 {
		return nil
	}

	var kept []models.Message
	for _, m := range msgs {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return nil
	}
	if len(kept) > k {
		kept = kept[len(kept)-k:]
	}

	entries := make([]models.HistoryEntry, len(kept))
	for i, m := range kept {
		entries[i] = models.HistoryEntry{
			Role:    wireRole(m.Role),
			Content: m.Text,
		}
	}
	return entries
}

func wireRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "assistant"
	}
	return "user"
}
