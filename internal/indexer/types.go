package indexer

// Chunk is a contiguous span of a document's text, sized for retrieval
// and embedding. Offsets are rune offsets into the parent text, so
// adjacent chunks overlap by exactly the configured overlap window.
type Chunk struct {
	Index int    // Ordinal within the document (starts at 0, gapless)
	Text  string // Chunk text content
	Start int    // Rune offset into the parent text, inclusive
	End   int    // Rune offset into the parent text, exclusive
}
