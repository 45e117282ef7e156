package indexer

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for invalid chunking parameters.
// Configuration errors are rejected at call time, never clamped.
var ErrInvalidConfig = errors.New("invalid chunking config")

// WindowChunker splits text into fixed-size overlapping windows.
// It is a pure function of its inputs: identical text and config always
// produce identical chunk boundaries, which re-chunking and the tests
// rely on.
type WindowChunker struct {
	Size    int // Window size in runes
	Overlap int // Runes shared with the previous chunk
}

// NewWindowChunker creates a chunker with the given window size and overlap.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be greater than 0", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, overlap, size)
	}
	return &WindowChunker{Size: size, Overlap: overlap}, nil
}

// ChunkText splits text into chunks of Size runes, advancing the window
// by Size-Overlap each step. The last chunk may be shorter than Size
// but is never dropped. Empty input yields an empty slice, not an error.
// Sizes are measured in runes so multibyte text never splits mid-rune.
func (c *WindowChunker) ChunkText(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return []Chunk{}
	}

	step := c.Size - c.Overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)

	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}
