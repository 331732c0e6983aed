package turn

import "strings"

// Verdict is the four-way outcome of the utterance completeness classifier.
type Verdict int

const (
	VerdictIncomplete Verdict = iota
	VerdictFiller
	VerdictComplete
	VerdictMaybe
)

func (v Verdict) String() string {
	switch v {
	case VerdictIncomplete:
		return "incomplete"
	case VerdictFiller:
		return "filler"
	case VerdictComplete:
		return "complete"
	default:
		return "maybe"
	}
}

// openClassWords ends a sentence ambiguously — conjunctions, articles,
// prepositions, bare pronouns and quantifiers that signal more is coming.
var openClassWords = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "because": true,
	"if": true, "when": true, "then": true, "also": true,
	"the": true, "a": true, "an": true,
	"my": true, "your": true, "this": true, "that": true,
	"for": true, "from": true, "to": true, "in": true, "on": true, "at": true, "with": true,
	"i": true, "we": true, "they": true, "he": true, "she": true, "it": true, "you": true,
	"like": true, "well": true, "some": true, "any": true, "few": true, "more": true, "less": true,
}

var fillerTokens = map[string]bool{
	"like": true, "well": true, "so": true, "yeah": true, "ok": true,
}

var affirmNegNumberWeekday = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "no": true, "nope": true,
	"ok": true, "okay": true, "sure": true, "correct": true, "right": true,
	"one": true, "two": true, "three": true, "four": true, "five": true,
	"six": true, "seven": true, "eight": true, "nine": true, "ten": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// isFillerWord reports whether the single word w is a filler interjection:
// a stretched um/uh/hm/mm/ah/er. Stretches like "ummm" or "uhhh" both
// match via a repeated-letter check. The two-word filler "you know" is
// matched by Classify itself, not here.
func isFillerWord(w string) bool {
	switch {
	case matchesStretch(w, "um"), matchesStretch(w, "uh"), matchesStretch(w, "hm"),
		matchesStretch(w, "mm"), matchesStretch(w, "ah"), matchesStretch(w, "er"):
		return true
	}
	return false
}

// matchesStretch reports whether w is base with its letters optionally
// repeated, e.g. base "um" matches "um", "umm", "uhm" is NOT matched (that's
// a different base) but "ummmm" is.
func matchesStretch(w, base string) bool {
	if len(base) != 2 || len(w) < 2 {
		return false
	}
	first, second := base[0], base[1]
	i := 0
	count := func(b byte) int {
		n := 0
		for i < len(w) && w[i] == b {
			n++
			i++
		}
		return n
	}
	if first == second {
		// A doubled-letter base such as "mm" is a single run of at least two.
		return count(first) >= 2 && i == len(w)
	}
	if count(first) < 1 {
		return false
	}
	if count(second) < 1 {
		return false
	}
	return i == len(w)
}

func lastWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[len(fields)-1], ".,!?;:"))
}

// Classify applies the rule-based completeness grammar to a transcript
// fragment. It is pure and deterministic: it never reads anything but text.
func Classify(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 4 {
		return VerdictIncomplete
	}

	lower := strings.ToLower(trimmed)
	if lower == "you know" || strings.HasSuffix(lower, "you know") {
		return VerdictFiller
	}

	fields := strings.Fields(lower)
	last := lastWord(trimmed)

	// filler: trailing filler interjection, or entirely fillers/so/yeah/ok/well/like.
	if isFillerWord(last) {
		return VerdictFiller
	}
	if allFillerOrFillerWords(fields) {
		return VerdictFiller
	}

	endsTerminal := strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?")

	if openClassWords[last] && !endsTerminal {
		return VerdictIncomplete
	}

	if endsTerminal {
		return VerdictComplete
	}

	first := strings.Trim(fields[0], ".,!?;:")
	if (affirmNegNumberWeekday[first] || affirmNegNumberWeekday[last]) && len(fields) <= 3 {
		return VerdictComplete
	}

	if len(fields) >= 4 {
		// An open-class final word without terminal punctuation has already
		// returned VerdictIncomplete above, so this check does not change
		// the outcome for any input that reaches it.
		if openClassWords[last] {
			return VerdictMaybe
		}
		return VerdictComplete
	}

	return VerdictMaybe
}

func allFillerOrFillerWords(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		w := strings.Trim(f, ".,!?;:")
		if isFillerWord(w) || fillerTokens[w] {
			continue
		}
		return false
	}
	return true
}
