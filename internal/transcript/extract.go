// Package transcript converts a session's dialog history into the
// persistable transcript form.
package transcript

import (
	"strings"
	"time"

	"github.com/coral-ai/proctor/internal/model"
)

// Extract maps dialog turns to transcript entries in original order.
// System turns and turns whose trimmed text is empty are dropped. The
// assistant role maps to "agent"; every other non-system role maps to
// "user". Turns without a timestamp get a synthetic clock value advancing
// one millisecond per synthesized entry, so ordering among them stays
// strict.
func Extract(turns []model.Turn, now func() time.Time) []model.TranscriptEntry {
	synthetic := now()

	var entries []model.TranscriptEntry
	for _, turn := range turns {
		if turn.Role == model.RoleSystem {
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}

		role := model.TranscriptRoleUser
		if turn.Role == model.RoleAssistant {
			role = model.TranscriptRoleAgent
		}

		ts := turn.CreatedAt
		if ts.IsZero() {
			ts = synthetic
			synthetic = synthetic.Add(time.Millisecond)
		}

		entries = append(entries, model.TranscriptEntry{
			Role:      role,
			Content:   content,
			Timestamp: ts,
		})
	}
	return entries
}
