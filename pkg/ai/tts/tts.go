// Package tts provides the chunked, continuation-aware streaming
// text-to-speech interface the Turn Manager drives: connect once per
// call, then feed text chunks as they become available (one sentence at a
// time out of the segmenter), each tagged with whether its prosody should
// join the previous chunk or close it.
package tts

import (
	"context"

	"github.com/lumentra-ai/callagent/pkg/ai"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// TTS-specific error variables for backward compatibility
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// TTSCapabilities describes the capabilities of a TTS provider.
type TTSCapabilities struct {
	SupportedLanguages []string
	SupportedVoices    []string
	SampleRates        []int
}

// ConnectOptions configures a synthesis session.
type ConnectOptions struct {
	Voice      string
	Language   string
	SampleRate int
}

// EventKind discriminates Event's payload.
type EventKind int

const (
	EventAudio EventKind = iota
	EventDone
	EventError
)

// Event is one item from a Connection's Events channel.
type Event struct {
	Kind  EventKind
	Frame rtc.AudioFrame
	Err   error
}

// TTS is the main interface for text-to-speech providers.
type TTS interface {
	Connect(ctx context.Context, opts ConnectOptions) (Connection, error)
	Capabilities() TTSCapabilities
	Name() string
}

// Connection is one open streaming synthesis session spanning a whole
// call; chunks are fed to it one at a time as the sentence segmenter
// produces them.
type Connection interface {
	// SpeakChunk enqueues text for synthesis. continuation=true is a
	// contract with the provider: this chunk's prosody joins the previous
	// one without a final fall; the last chunk of a logical response must
	// be sent with continuation=false.
	SpeakChunk(text string, continuation bool) error

	// Cancel aborts any in-flight or queued synthesis immediately
	// (barge-in / greedy cancel).
	Cancel() error

	// Events returns the channel of audio/done/error events. Exactly one
	// EventDone (or EventError) is emitted per SpeakChunk call.
	Events() <-chan Event

	Disconnect() error
}
