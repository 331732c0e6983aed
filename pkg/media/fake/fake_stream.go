// Package fake provides an in-memory media.Stream for tests that drive
// a Turn Manager actor without a real transport.
package fake

import (
	"context"
	"sync"

	"github.com/lumentra-ai/callagent/pkg/media"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// Stream is a test double for media.Stream. PushAudio/PushStop let a test
// drive inbound events; Sent/Clears report outbound calls.
type Stream struct {
	mu     sync.Mutex
	events chan media.Event
	sent   []rtc.AudioFrame
	clears int
	closed bool
}

// NewStream creates a Stream, already past EventStart.
func NewStream() *Stream {
	s := &Stream{events: make(chan media.Event, 256)}
	s.events <- media.Event{Kind: media.EventStart}
	return s
}

func (s *Stream) Events() <-chan media.Event { return s.events }

// SendAudio records frame for test assertions.
func (s *Stream) SendAudio(ctx context.Context, frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
	return nil
}

// ClearAudio counts calls for test assertions.
func (s *Stream) ClearAudio(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	return nil
}

// Close marks the stream closed and closes the events channel.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// PushAudio injects an inbound audio frame.
func (s *Stream) PushAudio(frame rtc.AudioFrame) {
	s.events <- media.Event{Kind: media.EventAudio, Frame: frame}
}

// PushStop injects a remote hangup.
func (s *Stream) PushStop() {
	s.events <- media.Event{Kind: media.EventStop}
}

// Sent returns the frames passed to SendAudio so far.
func (s *Stream) Sent() []rtc.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rtc.AudioFrame, len(s.sent))
	copy(out, s.sent)
	return out
}

// Clears returns how many times ClearAudio was called.
func (s *Stream) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}
