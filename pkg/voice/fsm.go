package voice

import (
	"fmt"
	"sync"
)

// PipelineState is one state of the per-call audio pipeline.
type PipelineState int

const (
	StateIdle PipelineState = iota
	StateGreeting
	StateListening
	StateProcessing
	StateSpeaking
	StateTerminated
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGreeting:
		return "greeting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// legalTransitions enumerates every state change the pipeline allows.
// Terminated has no outgoing edges: once a call ends it stays ended.
var legalTransitions = map[PipelineState]map[PipelineState]bool{
	StateIdle: {
		StateGreeting:   true,
		StateListening:  true,
		StateTerminated: true,
	},
	StateGreeting: {
		StateSpeaking:   true,
		StateListening:  true,
		StateTerminated: true,
	},
	StateListening: {
		StateProcessing: true,
		StateTerminated: true,
	},
	StateProcessing: {
		StateSpeaking:   true,
		StateListening:  true, // response finished with nothing to say, or cancelled
		StateTerminated: true,
	},
	StateSpeaking: {
		StateListening:  true, // playback finished
		StateProcessing: true, // barge-in: greedy-cancel into a fresh turn
		StateTerminated: true,
	},
}

// FSM is the per-call audio pipeline state machine. It is not safe for
// concurrent use by more than the single actor goroutine that owns a
// call, except for the read-only predicate helpers which take the lock.
type FSM struct {
	mu    sync.Mutex
	state PipelineState
	log   func(from, to PipelineState, ok bool)
}

// NewFSM creates an FSM starting in StateIdle.
func NewFSM() *FSM {
	return &FSM{state: StateIdle}
}

// OnTransition installs a callback invoked on every attempted transition,
// legal or not. Intended for logging; nil disables the hook.
func (f *FSM) OnTransition(fn func(from, to PipelineState, ok bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = fn
}

// State returns the current state.
func (f *FSM) State() PipelineState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Transition attempts to move to next. An illegal transition is logged
// via the installed hook (if any) and dropped: the state is left
// unchanged and an error is returned so the caller can decide whether
// the attempted event itself should be dropped.
func (f *FSM) Transition(next PipelineState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	allowed := legalTransitions[f.state][next]
	if f.log != nil {
		f.log(f.state, next, allowed)
	}
	if !allowed {
		return fmt.Errorf("voice: illegal transition %s -> %s", f.state, next)
	}
	f.state = next
	return nil
}

// ShouldProcessVAD reports whether a speech-start/speech-end event from
// the STT stream should be acted on as ordinary turn-taking input in the
// current state. Only Listening does; Idle, Greeting, Processing and
// Terminated ignore it. Speaking is handled separately by CanBargeIn —
// a speech event there is never ordinary input, only a possible
// interruption of the assistant's own turn.
func (f *FSM) ShouldProcessVAD() bool {
	return f.State() == StateListening
}

// CanBargeIn reports whether the pipeline is in a state where caller
// speech may interrupt an in-progress assistant turn.
func (f *FSM) CanBargeIn() bool {
	return f.State() == StateSpeaking
}
