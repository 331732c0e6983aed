// Package manager implements the Turn Manager: the per-call actor that
// owns the audio pipeline state machine, arbitrates barge-ins, decides
// when a caller has finished talking, and drives the streaming LLM/TTS
// exchange including mid-response tool calls.
//
// Each call gets exactly one Manager, and exactly one goroutine (Run)
// ever touches its state. Every external callback — a transcript, a VAD
// edge, an LLM chunk, a TTS completion, a timer firing — is translated
// into a managerEvent and posted onto a single buffered channel. This
// removes the need for a mutex around turn bookkeeping: processingLock,
// pendingTranscript, and friends are plain bools read only by the actor
// goroutine draining that channel.
package manager

import (
	"time"

	"github.com/lumentra-ai/callagent/pkg/turn"
)

// Config holds every tunable the Turn Manager needs. Nothing here is a
// literal buried in a decision function — call sites always go through
// a Config value, usually DefaultConfig with overrides for tests.
type Config struct {
	Segmenter turn.SegmenterConfig
	Policy    turn.PolicyConfig

	// MinTranscriptLen below which a final transcript is ignored outright.
	MinTranscriptLen int
	// MaxAccumulation forces processing regardless of classifier verdict.
	MaxAccumulation time.Duration
	// BargeInTranscriptWait is how long a pending barge-in waits for a
	// final transcript before executing unconditionally.
	BargeInTranscriptWait time.Duration
	// MinTTSBeforeBargeIn is how long TTS must have been playing before
	// caller speech is eligible to start a barge-in.
	MinTTSBeforeBargeIn time.Duration

	// FillerRescheduleWait is the rearm delay after a VerdictFiller
	// classification.
	FillerRescheduleWait time.Duration
	// IncompleteRescheduleWait is the rearm delay after a
	// VerdictIncomplete classification.
	IncompleteRescheduleWait time.Duration

	// FillerTimerEnabled governs whether a "let me think" filler is
	// spoken while waiting on the first LLM chunk of a turn. Disabled by
	// default: only tool-call fillers are retained.
	FillerTimerEnabled bool
	FillerTimerWait    time.Duration
	FillerTimerText    string

	// AcknowledgementSet is the fixed vocabulary treated as a bare
	// acknowledgement during barge-in arbitration rather than real
	// speech content.
	AcknowledgementSet map[string]bool

	ApologyText     string
	DefaultGreeting string

	SampleRate  int
	NumChannels int

	SnapshotSaveTimeout time.Duration
}

// DefaultConfig returns the standard Turn Manager configuration.
func DefaultConfig() Config {
	policy := turn.DefaultPolicyConfig()
	return Config{
		Segmenter: turn.DefaultSegmenterConfig(),
		Policy:    policy,

		MinTranscriptLen:      policy.MinTranscriptLen,
		MaxAccumulation:       policy.MaxAccumulation,
		BargeInTranscriptWait: policy.BargeInTranscriptWait,
		MinTTSBeforeBargeIn:   policy.MinTTSBeforeBargeIn,

		FillerRescheduleWait:     policy.FillerWait,
		IncompleteRescheduleWait: 1500 * time.Millisecond,

		FillerTimerEnabled: false,
		FillerTimerWait:    1200 * time.Millisecond,
		FillerTimerText:    "Let me think about that.",

		AcknowledgementSet: defaultAcknowledgementSet(),

		ApologyText:     "I'm sorry, I'm having trouble processing that. Could you please repeat?",
		DefaultGreeting: "Hello! How can I help you today?",

		SampleRate:  48000,
		NumChannels: 1,

		SnapshotSaveTimeout: 3 * time.Second,
	}
}

func defaultAcknowledgementSet() map[string]bool {
	tokens := []string{
		"yeah", "yes", "yep", "yup", "okay", "ok", "right",
		"uh-huh", "uh huh", "mm-hmm", "mm hmm", "mmhmm", "mhm",
		"got it", "sure", "alright", "correct", "that's right",
	}
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
