package turn

import (
	"strings"
	"time"
)

// PolicyConfig holds the layered endpointing wait durations and keyword
// lists. Every constant is configuration, never a literal buried in the
// decision function.
type PolicyConfig struct {
	ContextStructuredWait time.Duration // assistant asked for name/phone/etc
	ContextDateTimeWait   time.Duration // assistant asked for a date/time
	FillerWait            time.Duration
	PunctuationWait       time.Duration
	NumberWait            time.Duration
	DefaultWait           time.Duration

	StructuredDataKeywords []string
	DateTimeKeywords       []string
	NumberWords            []string

	MinTranscriptLen      int
	MaxAccumulation       time.Duration
	BargeInTranscriptWait time.Duration
	MinTTSBeforeBargeIn   time.Duration
}

// DefaultPolicyConfig returns the standard constants for the layered wait.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		ContextStructuredWait: 3000 * time.Millisecond,
		ContextDateTimeWait:   2000 * time.Millisecond,
		FillerWait:            2000 * time.Millisecond,
		PunctuationWait:       400 * time.Millisecond,
		NumberWait:            1000 * time.Millisecond,
		DefaultWait:           1500 * time.Millisecond,

		StructuredDataKeywords: []string{"name", "spell", "phone", "number", "address", "zip", "email"},
		DateTimeKeywords:       []string{"date", "when", "check in", "check out"},
		NumberWords:            []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"},

		MinTranscriptLen:      3,
		MaxAccumulation:       12000 * time.Millisecond,
		BargeInTranscriptWait: 350 * time.Millisecond,
		MinTTSBeforeBargeIn:   800 * time.Millisecond,
	}
}

// EndpointingPolicy computes the wait duration before invoking the LLM
// using a layered priority order: context keywords first, then filler,
// then terminal punctuation, then trailing digit/number words, then a
// flat default.
type EndpointingPolicy struct {
	cfg PolicyConfig
}

// NewEndpointingPolicy builds a policy over cfg.
func NewEndpointingPolicy(cfg PolicyConfig) *EndpointingPolicy {
	return &EndpointingPolicy{cfg: cfg}
}

// Config returns the policy's configuration.
func (p *EndpointingPolicy) Config() PolicyConfig { return p.cfg }

// Wait returns the wait duration for text given the most recent assistant
// utterance (used for the context-aware layer).
func (p *EndpointingPolicy) Wait(text, lastAssistantPrompt string) time.Duration {
	promptLower := strings.ToLower(lastAssistantPrompt)

	for _, kw := range p.cfg.StructuredDataKeywords {
		if strings.Contains(promptLower, kw) {
			return p.cfg.ContextStructuredWait
		}
	}
	for _, kw := range p.cfg.DateTimeKeywords {
		if strings.Contains(promptLower, kw) {
			return p.cfg.ContextDateTimeWait
		}
	}

	last := lastWord(text)
	if isFillerWord(last) {
		return p.cfg.FillerWait
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
		return p.cfg.PunctuationWait
	}

	if isDigitOrNumberWord(last, p.cfg.NumberWords) {
		return p.cfg.NumberWait
	}

	return p.cfg.DefaultWait
}

func isDigitOrNumberWord(word string, numberWords []string) bool {
	if word == "" {
		return false
	}
	lastByte := word[len(word)-1]
	if lastByte >= '0' && lastByte <= '9' {
		return true
	}
	for _, w := range numberWords {
		if word == w {
			return true
		}
	}
	return false
}
