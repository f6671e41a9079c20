package chunker_test

import (
	"strings"
	"testing"

	"github.com/valpere/booktran/internal/chunker"
)

func TestSplit_ShortText(t *testing.T) {
	text := "Hello world.\n\nThis is fine."
	chunks := chunker.Split(text, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected %q, got %q", text, chunks[0])
	}
}

func TestSplit_EmptyText(t *testing.T) {
	if chunks := chunker.Split("", 100); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %v", chunks)
	}
	if chunks := chunker.Split("   \n\n  ", 100); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %v", chunks)
	}
}

func TestSplit_DefaultCeiling(t *testing.T) {
	text := "Short paragraph."
	chunks := chunker.Split(text, 0)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("expected single chunk with default ceiling, got %v", chunks)
	}
}

func TestSplit_ParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("a", 30)
	para2 := strings.Repeat("b", 30)
	text := para1 + "\n\n" + para2

	chunks := chunker.Split(text, 40)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != para1 || chunks[1] != para2 {
		t.Errorf("paragraphs not preserved: %v", chunks)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	// Joining chunks with the paragraph delimiter reconstructs the input
	// as long as no paragraph exceeds the ceiling.
	text := "First paragraph here.\n\nSecond one.\n\n\n\nThird after an extra blank line."
	chunks := chunker.Split(text, 30)
	if got := strings.Join(chunks, "\n\n"); got != text {
		t.Errorf("round trip mismatch:\nwant %q\ngot  %q", text, got)
	}
}

func TestSplit_OversizedParagraph_SentenceSplit(t *testing.T) {
	sentence := "word word word"
	paragraph := strings.Repeat(sentence+". ", 9) + sentence // no trailing period
	chunks := chunker.Split(paragraph, 50)

	if len(chunks) < 2 {
		t.Fatalf("expected oversized paragraph to be re-split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 50 {
			t.Errorf("chunk %d exceeds ceiling: %d runes", i, n)
		}
		if !strings.HasSuffix(c, ".") {
			t.Errorf("chunk %d missing re-appended period: %q", i, c)
		}
	}
	// No sentence text may be lost.
	rejoined := strings.Join(chunks, " ")
	if got, want := strings.Count(rejoined, sentence), 10; got != want {
		t.Errorf("expected %d sentences after re-split, got %d", want, got)
	}
}

func TestSplit_OversizedParagraph_NoDelimiter(t *testing.T) {
	// A single unsplittable blob passes through as one oversized chunk.
	blob := strings.Repeat("x", 120)
	chunks := chunker.Split(blob, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 oversized chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], blob) {
		t.Errorf("oversized chunk lost content")
	}
}

func TestSplit_GreedyAccumulation(t *testing.T) {
	// Three 10-char paragraphs with a 25-char ceiling: the first two fit
	// together (10+2+10 = 22), the third starts a new chunk.
	p := strings.Repeat("p", 10)
	text := p + "\n\n" + p + "\n\n" + p

	chunks := chunker.Split(text, 25)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != p+"\n\n"+p {
		t.Errorf("expected first chunk to hold two paragraphs, got %q", chunks[0])
	}
	if chunks[1] != p {
		t.Errorf("expected second chunk to hold one paragraph, got %q", chunks[1])
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Sentence one. Sentence two. Sentence three.\n\n", 20)
	a := chunker.Split(text, 100)
	b := chunker.Split(text, 100)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}
