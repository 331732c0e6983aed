package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// FakeSTT is a test double whose stream's events are driven entirely by
// the test via the stream's Emit, Partial, Final, SpeechStarted and
// SpeechEnded helpers rather than derived from pushed audio,
// so scenario tests can script exact transcript timing.
type FakeSTT struct{}

func NewFakeSTT() *FakeSTT { return &FakeSTT{} }

func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	return &FakeSTTStream{events: make(chan stt.SpeechEvent, 32)}, nil
}

func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en-US"},
		SampleRates:        []int{16000, 48000},
	}
}

// FakeSTTStream lets a test inject events directly.
type FakeSTTStream struct {
	mu     sync.Mutex
	events chan stt.SpeechEvent
	closed bool
}

func (s *FakeSTTStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	return nil
}

func (s *FakeSTTStream) Events() <-chan stt.SpeechEvent { return s.events }

func (s *FakeSTTStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// Emit pushes a synthetic event for the test to drive. Safe to call until
// CloseSend; a send after CloseSend panics, matching a provider that must
// not emit after close.
func (s *FakeSTTStream) Emit(ev stt.SpeechEvent) {
	s.events <- ev
}

// Partial emits an interim transcript.
func (s *FakeSTTStream) Partial(text string) {
	s.Emit(stt.SpeechEvent{Type: stt.SpeechEventInterim, Text: text})
}

// Final emits a final transcript; a well-behaved caller emits exactly one
// per utterance.
func (s *FakeSTTStream) Final(text string) {
	s.Emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: text, IsFinal: true})
}

// SpeechStarted emits a VAD speech-onset event.
func (s *FakeSTTStream) SpeechStarted() {
	s.Emit(stt.SpeechEvent{Type: stt.SpeechEventStarted})
}

// SpeechEnded emits a VAD speech-offset event.
func (s *FakeSTTStream) SpeechEnded() {
	s.Emit(stt.SpeechEvent{Type: stt.SpeechEventEnded})
}
