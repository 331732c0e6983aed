package fake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// FakeTTS synthesizes nothing real: each SpeakChunk call immediately emits
// one silent frame and a done event, recording the text and continuation
// flag it was called with so tests can assert the fresh/continuation
// pattern the sentence segmenter's output should produce.
type FakeTTS struct {
	connects int32
}

func NewFakeTTS() *FakeTTS { return &FakeTTS{} }

func (f *FakeTTS) Name() string { return "fake-tts" }

func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{SupportedLanguages: []string{"en-US"}, SampleRates: []int{48000}}
}

func (f *FakeTTS) Connect(ctx context.Context, opts tts.ConnectOptions) (tts.Connection, error) {
	atomic.AddInt32(&f.connects, 1)
	return &fakeConn{events: make(chan tts.Event, 64)}, nil
}

// SpokenChunk records one call to SpeakChunk for assertions.
type SpokenChunk struct {
	Text         string
	Continuation bool
}

type fakeConn struct {
	mu       sync.Mutex
	events   chan tts.Event
	spoken   []SpokenChunk
	cancelled bool
	closed   bool
}

func (c *fakeConn) SpeakChunk(text string, continuation bool) error {
	c.mu.Lock()
	c.spoken = append(c.spoken, SpokenChunk{Text: text, Continuation: continuation})
	c.mu.Unlock()

	go func() {
		frame, _ := rtc.NewAudioFrame(make([]byte, 960), 48000, 1, 0)
		c.events <- tts.Event{Kind: tts.EventAudio, Frame: *frame}
		time.Sleep(time.Millisecond)
		c.events <- tts.Event{Kind: tts.EventDone}
	}()
	return nil
}

// Spoken returns the chunks synthesized so far, for test assertions.
func (c *fakeConn) Spoken() []SpokenChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SpokenChunk, len(c.spoken))
	copy(out, c.spoken)
	return out
}

func (c *fakeConn) Cancel() error {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *fakeConn) Events() <-chan tts.Event { return c.events }

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}
