package history

import (
	"encoding/json"
	"fmt"

	"docchat/internal/domain"
)

// History is the ordered, append-only log of conversation turns. It can be
// exported to and re-imported from the portable transcript format: a JSON
// array of {type, content} objects.
type History struct {
	turns []domain.Turn
}

// New returns an empty history.
func New() *History { return &History{} }

// Seed appends the fixed AI greeting, but only when the history is empty.
func (h *History) Seed(greeting string) {
	if len(h.turns) == 0 {
		h.turns = append(h.turns, domain.Turn{Role: domain.RoleAI, Content: greeting})
	}
}

// AddUserMessage appends a human turn.
func (h *History) AddUserMessage(content string) {
	h.turns = append(h.turns, domain.Turn{Role: domain.RoleHuman, Content: content})
}

// AddAIMessage appends an AI turn.
func (h *History) AddAIMessage(content string) {
	h.turns = append(h.turns, domain.Turn{Role: domain.RoleAI, Content: content})
}

// Turns returns a copy of the turn list.
func (h *History) Turns() []domain.Turn {
	return append([]domain.Turn(nil), h.turns...)
}

func (h *History) Len() int    { return len(h.turns) }
func (h *History) Empty() bool { return len(h.turns) == 0 }

// Clear drops all turns.
func (h *History) Clear() { h.turns = nil }

// Export serializes the full turn list as pretty-printed JSON.
func (h *History) Export() ([]byte, error) {
	return json.MarshalIndent(h.turns, "", "  ")
}

// Import replaces the current history with the turns of a transcript.
// Entries with unknown types are skipped.
func (h *History) Import(data []byte) error {
	var turns []domain.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return fmt.Errorf("parsing transcript: %w", err)
	}
	imported := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != domain.RoleHuman && t.Role != domain.RoleAI {
			continue
		}
		imported = append(imported, t)
	}
	h.turns = imported
	return nil
}
