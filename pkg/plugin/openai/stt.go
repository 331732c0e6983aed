// Package openai provides OpenAI-based AI providers (STT, TTS, LLM).
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// WhisperSTT implements stt.STT using OpenAI's Whisper transcription API.
// Whisper has no native streaming mode, so the stream batches audio on a
// fixed interval and emits a SpeechEventStarted the first time audio
// arrives after silence, and a final transcript on each batch.
type WhisperSTT struct {
	client   *openai.Client
	model    string
	language string
}

// STTConfig configures the OpenAI STT adapter.
type STTConfig struct {
	APIKey   string
	Model    string // default: whisper-1
	Language string // default: auto-detect (empty)
}

// NewWhisperSTT creates an OpenAI Whisper STT provider.
func NewWhisperSTT(cfg STTConfig) (*WhisperSTT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperSTT{client: openai.NewClient(cfg.APIKey), model: model, language: cfg.Language}, nil
}

func newOpenAISTT(config map[string]any) (any, error) {
	cfg := STTConfig{APIKey: apiKeyFrom(config)}
	if model, ok := config["model"].(string); ok {
		cfg.Model = model
	}
	if lang, ok := config["language"].(string); ok {
		cfg.Language = lang
	}
	return NewWhisperSTT(cfg)
}

// batchInterval is how often buffered audio is flushed to Whisper.
const batchInterval = 2 * time.Second

// NewStream starts a new batching STT session.
func (w *WhisperSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	s := &whisperStream{
		stt:       w,
		ctx:       ctx,
		config:    cfg,
		eventChan: make(chan stt.SpeechEvent, 16),
	}
	go s.run()
	return s, nil
}

func (w *WhisperSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     false,
		SupportedLanguages: []string{"en", "es", "fr", "de", "it", "pt", "ja", "zh", "ko"},
		SampleRates:        []int{16000, 44100, 48000},
	}
}

type whisperStream struct {
	stt    *WhisperSTT
	ctx    context.Context
	config stt.StreamConfig

	eventChan chan stt.SpeechEvent

	mu       sync.Mutex
	buffer   []rtc.AudioFrame
	speaking bool
	closed   bool
}

func (s *whisperStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("openai: stream closed")
	}
	if !s.speaking {
		s.speaking = true
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventStarted})
	}
	s.buffer = append(s.buffer, frame)
	return nil
}

func (s *whisperStream) Events() <-chan stt.SpeechEvent { return s.eventChan }

func (s *whisperStream) CloseSend() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *whisperStream) emit(ev stt.SpeechEvent) {
	ev.Timestamp = time.Now().UnixMilli()
	select {
	case s.eventChan <- ev:
	case <-s.ctx.Done():
	}
}

func (s *whisperStream) run() {
	defer close(s.eventChan)

	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.flush() {
				return
			}
		}
	}
}

// flush transcribes whatever is buffered. It returns true once the
// stream has been closed and the final batch has been processed.
func (s *whisperStream) flush() bool {
	s.mu.Lock()
	frames := s.buffer
	s.buffer = nil
	closed := s.closed
	s.mu.Unlock()

	if len(frames) == 0 {
		return closed
	}

	wav, err := framesToWAV(frames)
	if err != nil {
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventError, Error: err})
		return closed
	}

	text, lang, err := s.transcribe(wav)
	if err != nil {
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventError, Error: err})
		return closed
	}

	s.mu.Lock()
	s.speaking = false
	s.mu.Unlock()
	s.emit(stt.SpeechEvent{Type: stt.SpeechEventEnded})
	s.emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: text, IsFinal: true, Language: lang})
	return closed
}

func (s *whisperStream) transcribe(wav []byte) (text, language string, err error) {
	req := openai.AudioRequest{
		Model:    s.stt.model,
		Language: s.stt.language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
	}
	resp, err := s.stt.client.CreateTranscription(s.ctx, req)
	if err != nil {
		return "", "", classifyErr(err)
	}
	slog.Debug("whisper transcription", slog.String("text", resp.Text))
	return resp.Text, resp.Language, nil
}

// framesToWAV concatenates PCM frames and wraps them in a minimal WAV header.
func framesToWAV(frames []rtc.AudioFrame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("openai: no frames to encode")
	}
	sampleRate := frames[0].SampleRate
	channels := frames[0].NumChannels

	var pcm bytes.Buffer
	for _, f := range frames {
		pcm.Write(f.Data)
	}
	data := pcm.Bytes()

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	byteRate := uint32(sampleRate * channels * 2)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes(), nil
}
