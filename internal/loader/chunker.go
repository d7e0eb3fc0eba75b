package loader

import "unicode"

// Default chunking parameters. A 1000-character window with 200 characters
// of overlap keeps each chunk small enough to embed while preserving
// context across chunk boundaries.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Span is one chunk of a document. Start and End are rune offsets into the
// original text, with Text = text[Start:End] in rune terms.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunker splits document text into overlapping spans.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker with the given window size and overlap.
// Non-positive size falls back to DefaultChunkSize; an overlap that is
// negative or not smaller than the size falls back to DefaultChunkOverlap.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into overlapping spans. Split points are extended
// forward to the next word boundary so words are never cut in half, and
// each following span starts at a word start inside the overlap region.
// Text no longer than the window yields a single span. Empty text yields nil.
func (c *Chunker) Chunk(text string) []Span {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []Span{{Start: 0, End: len(runes), Text: text}}
	}

	var spans []Span
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Extend to the end of the current word.
			for end < len(runes) && !unicode.IsSpace(runes[end]) {
				end++
			}
		}

		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next < start {
			next = start
		}
		// Advance out of the middle of a word so the span begins at a
		// word start or on whitespace.
		for next < end && next > 0 && !unicode.IsSpace(runes[next-1]) && !unicode.IsSpace(runes[next]) {
			next++
		}
		// Forward progress guard.
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}
