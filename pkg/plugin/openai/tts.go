package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// TTS implements tts.TTS using OpenAI's text-to-speech API. OpenAI has no
// incremental/chunked synthesis endpoint, so each SpeakChunk call issues
// one full CreateSpeech request and streams its response back as frames.
type TTS struct {
	client *openai.Client
	model  string
	voice  string
}

// TTSConfig configures the OpenAI TTS adapter.
type TTSConfig struct {
	APIKey string
	Model  string // default: tts-1
	Voice  string // default: alloy
}

// NewTTS creates an OpenAI-backed TTS provider.
func NewTTS(cfg TTSConfig) (*TTS, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	return &TTS{client: openai.NewClient(cfg.APIKey), model: model, voice: voice}, nil
}

func newOpenAITTS(config map[string]any) (any, error) {
	cfg := TTSConfig{APIKey: apiKeyFrom(config)}
	if model, ok := config["model"].(string); ok {
		cfg.Model = model
	}
	if voice, ok := config["voice"].(string); ok {
		cfg.Voice = voice
	}
	return NewTTS(cfg)
}

func (t *TTS) Name() string { return "openai/" + t.model }

func (t *TTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages: []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"},
		SupportedVoices:    []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:        []int{24000},
	}
}

// Connect opens a synthesis session. OpenAI's API is request/response
// rather than a persistent socket, so Connect just records the voice
// choice; each SpeakChunk issues its own HTTP call.
func (t *TTS) Connect(ctx context.Context, opts tts.ConnectOptions) (tts.Connection, error) {
	voice := opts.Voice
	if voice == "" {
		voice = t.voice
	}
	return &connection{ctx: ctx, tts: t, voice: voice, events: make(chan tts.Event, 32)}, nil
}

type connection struct {
	ctx   context.Context
	tts   *TTS
	voice string

	events chan tts.Event

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// SpeakChunk synthesizes text and streams it as audio frame events
// followed by a done event, asynchronously.
func (c *connection) SpeakChunk(text string, continuation bool) error {
	chunkCtx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		defer cancel()

		resp, err := c.tts.client.CreateSpeech(chunkCtx, openai.CreateSpeechRequest{
			Model: openai.SpeechModel(c.tts.model),
			Input: text,
			Voice: openai.SpeechVoice(c.voice),
		})
		if err != nil {
			c.send(tts.Event{Kind: tts.EventError, Err: classifyErr(err)})
			return
		}
		defer resp.Close()

		const frameBytes = 240 * 2 // 10ms @ 24kHz mono 16-bit
		buf := make([]byte, frameBytes)
		var partial bytes.Buffer

		for {
			n, err := resp.Read(buf)
			if n > 0 {
				partial.Write(buf[:n])
				for partial.Len() >= frameBytes {
					data := make([]byte, frameBytes)
					copy(data, partial.Bytes()[:frameBytes])
					partial.Next(frameBytes)
					frame, ferr := rtc.NewAudioFrame(data, 24000, 1, 0)
					if ferr == nil {
						c.send(tts.Event{Kind: tts.EventAudio, Frame: *frame})
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					c.send(tts.Event{Kind: tts.EventError, Err: classifyErr(err)})
					return
				}
				break
			}
		}
		c.send(tts.Event{Kind: tts.EventDone})
	}()
	return nil
}

// Cancel stops any in-flight synthesis.
func (c *connection) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *connection) Events() <-chan tts.Event { return c.events }

func (c *connection) send(ev tts.Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// Disconnect tears the connection down. Idempotent.
func (c *connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	close(c.events)
	return nil
}
