package loader

import (
	"strings"
	"testing"
	"unicode"
)

func TestChunkEmpty(t *testing.T) {
	c := NewChunker(100, 20)
	if spans := c.Chunk(""); spans != nil {
		t.Errorf("Chunk(\"\") = %v, want nil", spans)
	}
}

func TestChunkShortTextSingleSpan(t *testing.T) {
	c := NewChunker(100, 20)
	text := "malaria is transmitted by mosquitoes"

	spans := c.Chunk(text)
	if len(spans) != 1 {
		t.Fatalf("Chunk() returned %d spans, want 1", len(spans))
	}
	if spans[0].Start != 0 || spans[0].End != len([]rune(text)) {
		t.Errorf("span bounds = [%d, %d), want [0, %d)", spans[0].Start, spans[0].End, len([]rune(text)))
	}
	if spans[0].Text != text {
		t.Errorf("span text = %q, want original text", spans[0].Text)
	}
}

func TestChunkExactWindowSingleSpan(t *testing.T) {
	c := NewChunker(40, 10)
	text := strings.Repeat("word ", 8) // exactly 40 chars

	spans := c.Chunk(text)
	if len(spans) != 1 {
		t.Fatalf("Chunk() returned %d spans, want 1", len(spans))
	}
}

func TestChunkCoverageAndRoundTrip(t *testing.T) {
	c := NewChunker(100, 20)

	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("fever headache prevention ")
	}
	text := strings.TrimSpace(sb.String())
	runes := []rune(text)

	spans := c.Chunk(text)
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans for %d chars, got %d", len(runes), len(spans))
	}

	if spans[0].Start != 0 {
		t.Errorf("first span starts at %d, want 0", spans[0].Start)
	}
	if last := spans[len(spans)-1]; last.End != len(runes) {
		t.Errorf("last span ends at %d, want %d", last.End, len(runes))
	}

	for i, s := range spans {
		if s.Text != string(runes[s.Start:s.End]) {
			t.Errorf("span %d text does not match its offsets", i)
		}
		if i > 0 {
			prev := spans[i-1]
			if s.Start > prev.End {
				t.Errorf("gap between span %d (end %d) and span %d (start %d)", i-1, prev.End, i, s.Start)
			}
			if s.Start <= prev.Start {
				t.Errorf("span %d does not advance past span %d", i, i-1)
			}
		}
	}

	// Dropping the overlapping prefix of each following span reconstructs
	// the original text.
	var rebuilt strings.Builder
	rebuilt.WriteString(spans[0].Text)
	for i := 1; i < len(spans); i++ {
		overlap := spans[i-1].End - spans[i].Start
		rebuilt.WriteString(string([]rune(spans[i].Text)[overlap:]))
	}
	if rebuilt.String() != text {
		t.Error("concatenating spans minus overlap did not reconstruct the original text")
	}
}

func TestChunkRespectsWordBoundaries(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.TrimSpace(strings.Repeat("hypertension treatment guideline ", 30))
	runes := []rune(text)

	spans := c.Chunk(text)
	for i, s := range spans {
		// Interior split points must fall on whitespace boundaries.
		if s.End < len(runes) && !unicode.IsSpace(runes[s.End]) {
			t.Errorf("span %d ends mid-word at %d", i, s.End)
		}
		if s.Start > 0 && s.Start < len(runes) &&
			!unicode.IsSpace(runes[s.Start-1]) && !unicode.IsSpace(runes[s.Start]) {
			t.Errorf("span %d starts mid-word at %d", i, s.Start)
		}
	}
}

func TestChunkSingleLongWord(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("x", 500)

	spans := c.Chunk(text)
	if len(spans) != 1 {
		t.Fatalf("Chunk() returned %d spans for unbroken word, want 1", len(spans))
	}
	if spans[0].Text != text {
		t.Error("unbroken word should be kept whole")
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.size != DefaultChunkSize {
		t.Errorf("size = %d, want %d", c.size, DefaultChunkSize)
	}
	if c.overlap != DefaultChunkOverlap {
		t.Errorf("overlap = %d, want %d", c.overlap, DefaultChunkOverlap)
	}

	// Overlap must stay below size even when defaults conflict.
	c = NewChunker(100, 100)
	if c.overlap >= c.size {
		t.Errorf("overlap %d not below size %d", c.overlap, c.size)
	}
}
