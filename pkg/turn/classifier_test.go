package turn

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"too short", "hi", VerdictIncomplete},
		{"trailing conjunction", "I wanted to book a room and", VerdictIncomplete},
		{"trailing article", "can you give me the", VerdictIncomplete},
		{"trailing filler um", "I need a room for two nights um", VerdictFiller},
		{"trailing filler stretch", "so I was thinking ummm", VerdictFiller},
		{"you know filler", "it's kind of like, you know", VerdictFiller},
		{"terminal period", "I'd like to book a room for Friday.", VerdictComplete},
		{"terminal question", "what time does checkout start?", VerdictComplete},
		{"short affirmation", "yes please", VerdictComplete},
		{"bare number", "three", VerdictComplete},
		{"weekday", "Tuesday", VerdictComplete},
		{"long no punctuation no open class", "I would like a room with two beds near the pool", VerdictComplete},
		{"long trailing open class no punctuation", "I wanted to ask about the pool and the", VerdictIncomplete},
		{"ambiguous short", "maybe later", VerdictMaybe},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.text)
			if got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestIsFillerWord(t *testing.T) {
	for _, w := range []string{"um", "umm", "uh", "uhhh", "hm", "hmmm", "mm", "ah", "er"} {
		if !isFillerWord(w) {
			t.Errorf("expected %q to be a filler word", w)
		}
	}
	for _, w := range []string{"hello", "book", "three"} {
		if isFillerWord(w) {
			t.Errorf("did not expect %q to be a filler word", w)
		}
	}
}
