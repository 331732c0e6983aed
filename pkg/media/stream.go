// Package media defines the inbound/outbound media-stream contract a
// Turn Manager actor drives, decoupling it from any one transport. The
// livekit subpackage supplies the production implementation; tests use
// an in-memory fake.
package media

import (
	"context"

	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// EventKind discriminates an inbound Event.
type EventKind int

const (
	EventStart EventKind = iota
	EventAudio
	EventStop
	EventError
)

// Event is one inbound notification from the media stream: connection
// start, an inbound audio frame, the remote end hanging up, or a
// transport error.
type Event struct {
	Kind  EventKind
	Frame rtc.AudioFrame
	Err   error
}

// Stream is the bidirectional media channel for one call. A Stream is
// owned by a single Turn Manager actor for its lifetime.
type Stream interface {
	// Events returns the channel of inbound notifications. It is closed
	// once the stream has fully torn down.
	Events() <-chan Event

	// SendAudio writes one outbound frame, to be played to the caller.
	SendAudio(ctx context.Context, frame rtc.AudioFrame) error

	// ClearAudio discards any audio queued for playback but not yet
	// delivered — used on barge-in to stop speaking immediately.
	ClearAudio(ctx context.Context) error

	// Close tears the stream down. Idempotent.
	Close() error
}
