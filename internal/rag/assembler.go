package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	contextHeader = "--- Retrieved context ---"
	contextFooter = "--- End retrieved context ---"
)

// AssembledContext is the rendered context block plus the IDs of the
// chunks that made it in, highest-scoring first, so callers can
// attribute sources.
type AssembledContext struct {
	Text     string
	ChunkIDs []string
}

// Assembler renders retrieval results into a bounded context block.
type Assembler struct{}

// Assemble deduplicates and renders results into a context block of at
// most budget runes. Chunks sharing identical text contribute once,
// keeping the highest-scoring occurrence. Chunks are appended greedily
// in descending score order; a chunk that would overflow the budget is
// skipped whole, never truncated, and smaller chunks after it may still
// fit. Each included chunk carries a source marker so the rendered
// context traces back to its document and ordinal. Empty input yields
// an empty context, not an error.
func (a *Assembler) Assemble(results []RetrievalResult, budget int) (AssembledContext, error) {
	if budget <= 0 {
		return AssembledContext{}, fmt.Errorf("%w: budget %d must be greater than 0", ErrInvalidConfig, budget)
	}

	// Dedupe identical text, keeping the first (highest-scoring)
	// occurrence. Overlapping chunk windows can retrieve near-duplicate
	// text; exact duplicates would waste budget.
	seen := make(map[string]bool, len(results))
	deduped := make([]RetrievalResult, 0, len(results))
	for _, result := range results {
		if seen[result.Text] {
			continue
		}
		seen[result.Text] = true
		deduped = append(deduped, result)
	}

	frame := utf8.RuneCountInString(contextHeader) + utf8.RuneCountInString(contextFooter) + 2 // joining newlines

	var entries []string
	var chunkIDs []string
	used := frame

	for _, result := range deduped {
		entry := fmt.Sprintf("[source: %s #%d]\n%s", result.DocumentTitle, result.ChunkIndex, neutralizeDelimiters(result.Text))
		entryLen := utf8.RuneCountInString(entry) + 2 // separating blank line
		if used+entryLen > budget {
			continue
		}
		entries = append(entries, entry)
		chunkIDs = append(chunkIDs, result.ChunkID)
		used += entryLen
	}

	if len(entries) == 0 {
		return AssembledContext{Text: "", ChunkIDs: []string{}}, nil
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, entry := range entries {
		b.WriteString("\n\n")
		b.WriteString(entry)
	}
	b.WriteString("\n\n")
	b.WriteString(contextFooter)

	return AssembledContext{Text: b.String(), ChunkIDs: chunkIDs}, nil
}

// neutralizeDelimiters rewrites the section delimiter token wherever it
// appears in untrusted text, so retrieved content cannot spoof the
// context block's boundaries.
func neutralizeDelimiters(s string) string {
	return strings.ReplaceAll(s, "---", "- - -")
}
