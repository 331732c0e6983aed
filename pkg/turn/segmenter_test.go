package turn

import (
	"strings"
	"testing"
)

func TestSegmenter_TerminalBoundary(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())

	out := s.Add("Sure — ")
	if len(out) != 0 {
		t.Fatalf("expected no sentence yet, got %v", out)
	}

	out = s.Add("what time works best? Another one follows.")
	if len(out) != 2 {
		t.Fatalf("expected exactly two sentences, got %v", out)
	}
	if out[0] != "Sure — what time works best?" {
		t.Errorf("unexpected sentence: %q", out[0])
	}
	if out[1] != "Another one follows." {
		t.Errorf("unexpected second sentence: %q", out[1])
	}
}

func TestSegmenter_ForcedBreakOnMaxChunk(t *testing.T) {
	cfg := SegmenterConfig{MinChunk: 8, MaxChunk: 20, BreakOnComma: true}
	s := NewSegmenter(cfg)

	out := s.Add("this is a long clause, followed by more text with no terminal punctuation at all")
	if len(out) == 0 {
		t.Fatal("expected at least one forced break")
	}
	for _, sentence := range out {
		if len(sentence) > cfg.MaxChunk+1 {
			t.Errorf("sentence exceeds max chunk: %q (%d)", sentence, len(sentence))
		}
	}
}

func TestSegmenter_FlushReturnsRemainder(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())
	s.Add("trailing fragment")

	remainder, ok := s.Flush()
	if !ok || remainder != "trailing fragment" {
		t.Fatalf("unexpected flush: %q ok=%v", remainder, ok)
	}

	if _, ok := s.Flush(); ok {
		t.Fatal("expected second flush to report no content")
	}
}

func TestSegmenter_ClearDiscardsBuffer(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())
	s.Add("some partial")
	s.Clear()
	if s.HasContent() {
		t.Fatal("expected no content after Clear")
	}
}

// TestSegmenter_RoundTrip checks property P7: concatenating every add/flush
// output equals the trimmed input, up to inter-sentence whitespace.
func TestSegmenter_RoundTrip(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())
	chunks := []string{"Hello there. ", "How are ", "you today? I am ", "doing quite well, thank you."}

	var collected []string
	for _, c := range chunks {
		collected = append(collected, s.Add(c)...)
	}
	if remainder, ok := s.Flush(); ok {
		collected = append(collected, remainder)
	}

	got := strings.Join(collected, " ")
	want := strings.TrimSpace(strings.Join(chunks, ""))

	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	if normalize(got) != normalize(want) {
		t.Errorf("round trip mismatch:\n got: %q\nwant: %q", normalize(got), normalize(want))
	}
}
