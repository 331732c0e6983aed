// Package livekit implements media.Stream over a LiveKit room: the
// caller's inbound audio arrives as a subscribed remote track, and
// assistant speech is published as a local track the SIP/telephony
// bridge forwards back to the caller.
package livekit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	webrtcmedia "github.com/pion/webrtc/v3/pkg/media"

	"github.com/lumentra-ai/callagent/pkg/media"
	"github.com/lumentra-ai/callagent/pkg/rtc"
)

// Config connects a Stream to a specific LiveKit room.
type Config struct {
	URL             string
	Token           string
	RoomName        string
	EventBufferSize int // defaults to 256
}

// Stream is a media.Stream backed by a LiveKit room connection.
type Stream struct {
	room     *lksdk.Room
	events   chan media.Event
	provider *sampleProvider

	mu           sync.Mutex
	closed       bool
	eventsClosed bool
}

// Connect joins the configured room and returns a live Stream. The
// caller's audio track is subscribed automatically as it arrives; a
// local track is published immediately so SendAudio can start writing
// as soon as the caller picks up.
func Connect(ctx context.Context, cfg Config) (*Stream, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.RoomName == "" {
		return nil, fmt.Errorf("livekit: URL, Token and RoomName are all required")
	}
	bufSize := cfg.EventBufferSize
	if bufSize == 0 {
		bufSize = 256
	}

	s := &Stream{
		events:   make(chan media.Event, bufSize),
		provider: newSampleProvider(),
	}

	callback := &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: s.onTrackSubscribed,
		},
		OnDisconnected: s.onDisconnected,
	}

	room, err := lksdk.ConnectToRoomWithToken(cfg.URL, cfg.Token, callback)
	if err != nil {
		return nil, fmt.Errorf("livekit: connect to room %s: %w", cfg.RoomName, err)
	}
	s.room = room

	track, err := lksdk.NewLocalTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1})
	if err != nil {
		s.room.Disconnect()
		return nil, fmt.Errorf("livekit: create local track: %w", err)
	}
	if _, err := s.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{Name: "assistant-speech"}); err != nil {
		s.room.Disconnect()
		return nil, fmt.Errorf("livekit: publish local track: %w", err)
	}
	go s.writeLoop(track)

	s.send(media.Event{Kind: media.EventStart})
	return s, nil
}

func (s *Stream) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	go s.readLoop(track)
}

func (s *Stream) readLoop(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				s.send(media.Event{Kind: media.EventError, Err: fmt.Errorf("livekit: read rtp: %w", err)})
			}
			return
		}
		frame, err := rtc.NewAudioFrame(pkt.Payload, 48000, 1, 0)
		if err != nil {
			continue
		}
		s.send(media.Event{Kind: media.EventAudio, Frame: *frame})
	}
}

func (s *Stream) writeLoop(track *lksdk.LocalTrack) {
	for sample := range s.provider.samples {
		if err := track.WriteSample(sample, nil); err != nil {
			slog.Warn("livekit: write sample failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Stream) onDisconnected() {
	s.send(media.Event{Kind: media.EventStop})
}

func (s *Stream) send(ev media.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
		slog.Warn("livekit: dropping media event, channel full", slog.Int("kind", int(ev.Kind)))
	}
}

func (s *Stream) Events() <-chan media.Event { return s.events }

// SendAudio queues frame for playback to the caller.
func (s *Stream) SendAudio(ctx context.Context, frame rtc.AudioFrame) error {
	sample := webrtcmedia.Sample{Data: frame.Data, Duration: frame.Duration()}
	select {
	case s.provider.samples <- sample:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearAudio drains any frames queued for playback but not yet sent.
func (s *Stream) ClearAudio(ctx context.Context) error {
	for {
		select {
		case <-s.provider.samples:
		default:
			return nil
		}
	}
}

// Close tears the stream down. Idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.provider.close()
	if s.room != nil {
		s.room.Disconnect()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.eventsClosed {
		close(s.events)
		s.eventsClosed = true
	}
	return nil
}

// sampleProvider buffers outbound samples between SendAudio and the
// LiveKit local track's write loop.
type sampleProvider struct {
	samples chan webrtcmedia.Sample
	once    sync.Once
}

func newSampleProvider() *sampleProvider {
	return &sampleProvider{samples: make(chan webrtcmedia.Sample, 256)}
}

func (p *sampleProvider) close() {
	p.once.Do(func() { close(p.samples) })
}
