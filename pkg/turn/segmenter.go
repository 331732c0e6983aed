// Package turn implements the rule-based endpointing layer: the sentence
// segmenter that chunks a streaming LLM response for TTS, the utterance
// completeness classifier, and the endpointing policy that decides how
// long to wait before calling the LLM. None of it is backed by a model;
// all three run synchronously against plain text.
package turn

import "strings"

// SegmenterConfig configures a Segmenter's chunking thresholds.
type SegmenterConfig struct {
	MinChunk      int  // minimum prefix length before a boundary is accepted
	MaxChunk      int  // ceiling that forces a break
	BreakOnComma  bool // allow falling back to a comma-space boundary
}

// DefaultSegmenterConfig returns the standard chunking thresholds.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{MinChunk: 8, MaxChunk: 150, BreakOnComma: true}
}

// Segmenter accretes streamed text and yields complete sentences as soon
// as a boundary is found, forcing a break on commas or spaces once the
// buffer exceeds MaxChunk. It does not normalize punctuation. One
// Segmenter is created per in-flight response and discarded when the turn
// ends — it holds no state beyond the current scratch buffer.
type Segmenter struct {
	cfg SegmenterConfig
	buf strings.Builder
}

// NewSegmenter creates a Segmenter with the given config.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// Add appends text to the buffer and extracts as many complete sentences
// as the buffer now supports, repeatedly, in order.
func (s *Segmenter) Add(text string) []string {
	s.buf.WriteString(text)
	var out []string
	for {
		sentence, rest, ok := s.extract(s.buf.String())
		if !ok {
			break
		}
		out = append(out, sentence)
		s.buf.Reset()
		s.buf.WriteString(rest)
	}
	return out
}

// extract finds and removes one sentence from buf, returning the trimmed
// remainder. ok is false if no boundary is available yet.
func (s *Segmenter) extract(buf string) (sentence, rest string, ok bool) {
	if idx := firstTerminalBoundary(buf, s.cfg.MinChunk); idx >= 0 {
		return strings.TrimSpace(buf[:idx]), strings.TrimLeft(buf[idx:], " \t\n"), true
	}

	if len(buf) <= s.cfg.MaxChunk {
		return "", buf, false
	}

	if s.cfg.BreakOnComma {
		if idx := lastCommaSpace(buf, s.cfg.MinChunk, s.cfg.MaxChunk); idx >= 0 {
			return strings.TrimSpace(buf[:idx]), strings.TrimLeft(buf[idx:], " \t\n"), true
		}
	}

	if idx := lastSpace(buf, s.cfg.MinChunk, s.cfg.MaxChunk); idx >= 0 {
		return strings.TrimSpace(buf[:idx]), strings.TrimLeft(buf[idx:], " \t\n"), true
	}

	// Forced break at MaxChunk — no punctuation or whitespace to lean on.
	return strings.TrimSpace(buf[:s.cfg.MaxChunk]), strings.TrimLeft(buf[s.cfg.MaxChunk:], " \t\n"), true
}

// firstTerminalBoundary returns the index just past the first '.', '!', or
// '?' that is followed by whitespace or end-of-buffer, provided the prefix
// up to that point is at least minChunk long. Returns -1 if none found.
func firstTerminalBoundary(buf string, minChunk int) int {
	for i, r := range buf {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		if end < len(buf) && buf[end] != ' ' && buf[end] != '\t' && buf[end] != '\n' {
			continue // not followed by whitespace or EOF — e.g. "3.14"
		}
		if end < minChunk {
			continue
		}
		return end
	}
	return -1
}

// lastCommaSpace returns the index just past the latest ", " whose prefix
// is within [minChunk, maxChunk], or -1.
func lastCommaSpace(buf string, minChunk, maxChunk int) int {
	limit := maxChunk
	if limit > len(buf) {
		limit = len(buf)
	}
	best := -1
	for i := 0; i < limit-1; i++ {
		if buf[i] == ',' && buf[i+1] == ' ' {
			end := i + 2
			if end >= minChunk && end <= maxChunk {
				best = end
			}
		}
	}
	return best
}

// lastSpace returns the index just past the last space before maxChunk
// whose prefix is at least minChunk, or -1.
func lastSpace(buf string, minChunk, maxChunk int) int {
	limit := maxChunk
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := limit - 1; i >= 0; i-- {
		if buf[i] == ' ' {
			end := i + 1
			if end >= minChunk {
				return end
			}
		}
	}
	return -1
}

// Flush returns the trimmed remainder of the buffer, or "" with ok=false
// if nothing remains.
func (s *Segmenter) Flush() (remainder string, ok bool) {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if text == "" {
		return "", false
	}
	return text, true
}

// Clear discards any buffered text without returning it.
func (s *Segmenter) Clear() {
	s.buf.Reset()
}

// Peek returns the current buffer contents without consuming them.
func (s *Segmenter) Peek() string {
	return s.buf.String()
}

// HasContent reports whether the buffer holds any non-whitespace text.
func (s *Segmenter) HasContent() bool {
	return strings.TrimSpace(s.buf.String()) != ""
}
