package manager

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lumentra-ai/callagent/pkg/ai"
	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	"github.com/lumentra-ai/callagent/pkg/events"
	"github.com/lumentra-ai/callagent/pkg/media"
	"github.com/lumentra-ai/callagent/pkg/metrics"
	"github.com/lumentra-ai/callagent/pkg/session"
	"github.com/lumentra-ai/callagent/pkg/tools"
	"github.com/lumentra-ai/callagent/pkg/turn"
	"github.com/lumentra-ai/callagent/pkg/voice"
)

// streamKind distinguishes the first LLM stream of a turn from a
// continuation stream requested after a tool result, since the two have
// different rules for whether their first emitted sentence is a fresh
// TTS chunk or a continuation of the prior one.
type streamKind int

const (
	streamOuter streamKind = iota
	streamInner
)

// Manager is the Turn Manager for one call: a single-goroutine actor
// that owns the audio pipeline FSM, the in-flight turn's bookkeeping,
// and every adapter (STT, TTS, LLM, tools, media) for the call's
// lifetime. Every field below is touched only from the goroutine running
// Run, except where noted.
type Manager struct {
	cfg  Config
	sess *session.CallSession
	fsm  *voice.FSM

	sttProv stt.STT
	ttsProv tts.TTS
	llmProv llm.LLM
	tools   *tools.Registry
	media   media.Stream

	metrics   *metrics.Collectors
	publisher *events.Publisher
	snapshots *session.SnapshotStore

	sttStream stt.STTStream
	ttsConn   tts.Connection

	eventCh chan managerEvent

	// Turn bookkeeping. Actor-owned; never touched from another goroutine.
	processingLock     bool
	pendingTranscript  bool
	preProcessSnapshot string
	restoredPrefix     string
	accumulationStart  time.Time

	genCounter    uint64
	cancelCurrent context.CancelFunc

	endpointTimer *time.Timer
	endpointGen   uint64
	fillerTimer   *time.Timer
	fillerGen     uint64
	bargeInTimer  *time.Timer

	pendingBargeIn bool
	ttsStartTime   time.Time

	segmenter *turn.Segmenter
	policy    *turn.EndpointingPolicy

	currentStream          streamKind
	firstChunkOfTurn       bool
	firstSentenceOfStream  bool
	fillerSpoken           bool
	awaitingToolResult     bool
	responseStreamComplete bool
	pendingTTSChunks       int
	turnStart              time.Time
	toolsUsedThisTurn      []string
	responseText           strings.Builder
}

// NewManager builds a Manager for sess. ttsProv and sttProv and llmProv
// are the provider adapters; toolsReg is the tenant's tool registry;
// mediaStream is the bidirectional audio channel. collectors and
// publisher and snapshots may be nil — every usage is nil-safe.
func NewManager(
	cfg Config,
	sess *session.CallSession,
	sttProv stt.STT,
	ttsProv tts.TTS,
	llmProv llm.LLM,
	toolsReg *tools.Registry,
	mediaStream media.Stream,
	collectors *metrics.Collectors,
	publisher *events.Publisher,
	snapshots *session.SnapshotStore,
) *Manager {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	fsm := voice.NewFSM()
	m := &Manager{
		cfg:       cfg,
		sess:      sess,
		fsm:       fsm,
		sttProv:   sttProv,
		ttsProv:   ttsProv,
		llmProv:   llmProv,
		tools:     toolsReg,
		media:     mediaStream,
		metrics:   collectors,
		publisher: publisher,
		snapshots: snapshots,
		eventCh:   make(chan managerEvent, 64),
		policy:    turn.NewEndpointingPolicy(cfg.Policy),
	}
	fsm.OnTransition(func(from, to voice.PipelineState, ok bool) {
		if m.metrics != nil && ok {
			m.metrics.StateTransitions.WithLabelValues(from.String(), to.String()).Inc()
		}
		level := slog.LevelDebug
		if !ok {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "pipeline transition",
			slog.String("call_id", sess.ID), slog.String("from", from.String()),
			slog.String("to", to.String()), slog.Bool("ok", ok))
	})
	sess.OnCleanup(m.teardown)
	return m
}

// post enqueues ev for the actor goroutine. It never blocks past the
// session's lifetime: once the session is done, posts are dropped.
func (m *Manager) post(ev managerEvent) {
	select {
	case m.eventCh <- ev:
	case <-m.sess.Done():
	}
}

// transition attempts an FSM move, logging and dropping it if illegal.
func (m *Manager) transition(next voice.PipelineState) {
	if err := m.fsm.Transition(next); err != nil {
		slog.Debug("manager: transition rejected", slog.String("call_id", m.sess.ID), slog.Any("err", err))
	}
}

// Run drives the call until the session ends or ctx is cancelled. It
// starts the media and STT event pumps, plays the greeting, then loops
// over the single event channel until shutdown.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if m.metrics != nil {
		m.metrics.ActiveCalls.Inc()
	}

	go m.pumpMedia()

	if err := m.startSTT(ctx); err != nil {
		slog.Warn("manager: stt init failed, continuing without recognition",
			slog.String("call_id", m.sess.ID), slog.Any("err", err))
	}

	if err := m.playGreeting(ctx); err != nil {
		m.sess.Cleanup("tts init failed")
		return err
	}

	for {
		select {
		case <-ctx.Done():
			m.sess.Cleanup("context cancelled")
			return ctx.Err()
		case <-m.sess.Done():
			return nil
		case ev := <-m.eventCh:
			m.handle(ctx, ev)
		}
	}
}

func (m *Manager) pumpMedia() {
	for ev := range m.media.Events() {
		switch ev.Kind {
		case media.EventAudio:
			if m.sttStream != nil {
				_ = m.sttStream.Push(ev.Frame)
			}
		case media.EventStop:
			m.post(managerEvent{kind: evMediaStop})
		case media.EventError:
			m.post(managerEvent{kind: evMediaError, err: ev.Err})
		}
	}
}

func (m *Manager) startSTT(ctx context.Context) error {
	stream, err := m.sttProv.NewStream(ctx, stt.StreamConfig{
		SampleRate:  m.cfg.SampleRate,
		NumChannels: m.cfg.NumChannels,
		Lang:        m.sess.Tenant.Language,
	})
	if err != nil {
		return ai.NewRecoverableError(err, "manager: stt stream init failed")
	}
	m.sttStream = stream
	go func() {
		for ev := range stream.Events() {
			switch ev.Type {
			case stt.SpeechEventInterim:
				m.post(managerEvent{kind: evSTTPartial, text: ev.Text})
			case stt.SpeechEventFinal:
				m.post(managerEvent{kind: evSTTFinal, text: ev.Text})
			case stt.SpeechEventStarted:
				m.post(managerEvent{kind: evSTTSpeechStarted})
			case stt.SpeechEventEnded:
				m.post(managerEvent{kind: evSTTSpeechEnded})
			case stt.SpeechEventError:
				m.post(managerEvent{kind: evSTTError, err: ev.Error})
			}
		}
	}()
	return nil
}

func (m *Manager) playGreeting(ctx context.Context) error {
	conn, err := m.ttsProv.Connect(ctx, tts.ConnectOptions{
		Voice:      m.sess.Tenant.Voice,
		Language:   m.sess.Tenant.Language,
		SampleRate: m.cfg.SampleRate,
	})
	if err != nil {
		return ai.NewFatalError(err, "manager: tts connect failed")
	}
	m.ttsConn = conn
	go m.pumpTTS(ctx, conn)

	m.transition(voice.StateGreeting)
	m.resetAccumulation()

	greeting := m.sess.Tenant.Greeting
	if greeting == "" {
		greeting = m.cfg.DefaultGreeting
	}
	m.speakChunk(greeting, false)
	return nil
}

func (m *Manager) pumpTTS(ctx context.Context, conn tts.Connection) {
	for ev := range conn.Events() {
		switch ev.Kind {
		case tts.EventAudio:
			_ = m.media.SendAudio(ctx, ev.Frame)
		case tts.EventDone:
			m.post(managerEvent{kind: evTTSDone})
		case tts.EventError:
			m.post(managerEvent{kind: evTTSError, err: ev.Err})
		}
	}
}

func (m *Manager) resetAccumulation() {
	m.accumulationStart = time.Now()
}

func (m *Manager) handle(ctx context.Context, ev managerEvent) {
	switch ev.kind {
	case evMediaStop:
		m.sess.Cleanup("caller hung up")
	case evMediaError:
		slog.Warn("manager: media error", slog.String("call_id", m.sess.ID), slog.Any("err", ev.err))
		m.sess.Cleanup("media error")

	case evSTTPartial:
		m.onPartialTranscript(ev.text)
	case evSTTFinal:
		m.onFinalTranscript(ctx, ev.text)
	case evSTTSpeechStarted:
		m.onSpeechStarted(ctx)
	case evSTTSpeechEnded:
		m.onSpeechEnded(ctx)
	case evSTTError:
		slog.Warn("manager: stt error", slog.String("call_id", m.sess.ID), slog.Any("err", ev.err))

	case evLLMText:
		m.onLLMText(ctx, ev)
	case evLLMToolCall:
		m.onLLMToolCall(ctx, ev)
	case evLLMDone:
		m.onLLMDone(ctx, ev)
	case evLLMError:
		m.onLLMError(ev)

	case evToolResult:
		m.onToolResult(ctx, ev)

	case evTTSDone:
		m.onTTSDone(ctx)
	case evTTSError:
		m.onTTSError(ctx, ev.err)

	case evEndpointTimer:
		if ev.gen != m.endpointGen {
			return
		}
		m.processUserTurn(ctx)
	case evBargeInTimer:
		if !m.pendingBargeIn {
			return
		}
		m.pendingBargeIn = false
		m.executeBargeIn(ctx)
	case evFillerTimer:
		if ev.gen != m.fillerGen || !m.cfg.FillerTimerEnabled {
			return
		}
		m.speakChunk(m.cfg.FillerTimerText, false)
		m.fillerSpoken = true

	case evRetryProcessUserTurn:
		m.processUserTurn(ctx)
	}
}

// teardown runs once, via session.OnCleanup, regardless of which path
// triggered it (caller hangup, fatal error, external cancellation).
func (m *Manager) teardown(reason string) {
	if m.cancelCurrent != nil {
		m.cancelCurrent()
	}
	m.clearEndpointTimer()
	m.clearFillerTimer()
	m.clearBargeInTimer()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if m.sttStream != nil {
			_ = m.sttStream.CloseSend()
		}
	}()
	go func() {
		defer wg.Done()
		if m.ttsConn != nil {
			_ = m.ttsConn.Disconnect()
		}
	}()
	wg.Wait()

	if m.snapshots != nil {
		snap := session.SnapshotOf(m.sess)
		saveCtx, cancel := context.WithTimeout(context.Background(), m.cfg.SnapshotSaveTimeout)
		if err := m.snapshots.Save(saveCtx, snap); err != nil {
			slog.Warn("manager: snapshot save failed", slog.String("call_id", m.sess.ID), slog.Any("err", err))
		}
		cancel()
	}

	_ = m.publisher.CallEnd(events.CallEndPayload{
		CallID:   m.sess.ID,
		TenantID: m.sess.Tenant.TenantID,
		Reason:   reason,
		Duration: time.Since(m.sess.StartedAt).Seconds(),
		At:       time.Now(),
	})

	if m.metrics != nil {
		m.metrics.ActiveCalls.Dec()
	}

	_ = m.media.Close()
}
