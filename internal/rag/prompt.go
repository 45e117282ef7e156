package rag

import (
	"strings"
	"unicode/utf8"

	"docchat/internal/llm"
	"docchat/internal/storage"
)

const (
	emptyContextNotice = "No relevant documentation was retrieved for this question. " +
		"Say that the documentation does not cover it rather than inventing details."
	contextNotice = "The retrieved documentation context below may help answer the question. " +
		"It may be incomplete; do not invent details beyond it."
)

// PromptBuilder turns system instructions, assembled context, and
// conversation history into the ordered message list sent to the
// generative model.
type PromptBuilder struct {
	// MaxHistoryTurns bounds how many prior turns are kept; 0 means unbounded.
	MaxHistoryTurns int
	// MaxHistoryRunes bounds the total size of kept history; 0 means unbounded.
	MaxHistoryRunes int
}

// Build produces the final message list in deterministic order: system
// instructions (framing the context, which may be empty), prior turns
// oldest first, then the new user query. When history exceeds the
// configured bounds, the oldest turns are dropped first; the system
// message and the current query are never dropped.
func (b *PromptBuilder) Build(systemInstructions, contextBlock string, history []storage.Turn, userQuery string) []llm.Message {
	var system strings.Builder
	system.WriteString(systemInstructions)
	system.WriteString("\n\n")
	if contextBlock == "" {
		system.WriteString(emptyContextNotice)
	} else {
		system.WriteString(contextNotice)
		system.WriteString("\n\n")
		system.WriteString(contextBlock)
	}

	kept := b.boundHistory(history)

	messages := make([]llm.Message, 0, len(kept)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system.String()})
	for _, turn := range kept {
		messages = append(messages, llm.Message{
			Role:    turn.Role,
			Content: neutralizeDelimiters(turn.Text),
		})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userQuery})

	return messages
}

// boundHistory drops the oldest turns until both the turn-count and
// rune bounds hold.
func (b *PromptBuilder) boundHistory(history []storage.Turn) []storage.Turn {
	kept := history
	if b.MaxHistoryTurns > 0 && len(kept) > b.MaxHistoryTurns {
		kept = kept[len(kept)-b.MaxHistoryTurns:]
	}

	if b.MaxHistoryRunes > 0 {
		total := 0
		for _, turn := range kept {
			total += utf8.RuneCountInString(turn.Text)
		}
		for len(kept) > 0 && total > b.MaxHistoryRunes {
			total -= utf8.RuneCountInString(kept[0].Text)
			kept = kept[1:]
		}
	}

	return kept
}
