package manager_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	llmfake "github.com/lumentra-ai/callagent/pkg/ai/llm/fake"
	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	sttfake "github.com/lumentra-ai/callagent/pkg/ai/stt/fake"
	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	ttsfake "github.com/lumentra-ai/callagent/pkg/ai/tts/fake"
	"github.com/lumentra-ai/callagent/pkg/manager"
	mediafake "github.com/lumentra-ai/callagent/pkg/media/fake"
	"github.com/lumentra-ai/callagent/pkg/session"
	"github.com/lumentra-ai/callagent/pkg/tools"
)

// capturingSTT wraps a fake.FakeSTT and remembers the single stream it
// hands out, so a test can drive it after NewManager has already started
// the call.
type capturingSTT struct {
	inner *sttfake.FakeSTT

	mu     sync.Mutex
	stream *sttfake.FakeSTTStream
}

func newCapturingSTT() *capturingSTT {
	return &capturingSTT{inner: sttfake.NewFakeSTT()}
}

func (c *capturingSTT) Capabilities() stt.STTCapabilities { return c.inner.Capabilities() }

func (c *capturingSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	s, err := c.inner.NewStream(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fs := s.(*sttfake.FakeSTTStream)
	c.mu.Lock()
	c.stream = fs
	c.mu.Unlock()
	return s, nil
}

func (c *capturingSTT) Stream() *sttfake.FakeSTTStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// capturingTTS wraps a fake.FakeTTS and remembers the single connection
// it hands out.
type capturingTTS struct {
	inner *ttsfake.FakeTTS

	mu   sync.Mutex
	conn tts.Connection
}

func newCapturingTTS() *capturingTTS {
	return &capturingTTS{inner: ttsfake.NewFakeTTS()}
}

func (c *capturingTTS) Name() string                       { return c.inner.Name() }
func (c *capturingTTS) Capabilities() tts.TTSCapabilities   { return c.inner.Capabilities() }
func (c *capturingTTS) Connect(ctx context.Context, opts tts.ConnectOptions) (tts.Connection, error) {
	conn, err := c.inner.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *capturingTTS) Connection() tts.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// spokenLister is satisfied structurally by fake's unexported connection
// type, which is unreachable by name from outside the fake package.
type spokenLister interface {
	Spoken() []ttsfake.SpokenChunk
	Cancelled() bool
}

func newTestSession() *session.CallSession {
	return session.NewCallSession(context.Background(), "call-test", session.TenantConfig{
		TenantID:     "tenant-1",
		SystemPrompt: "You are a helpful receptionist.",
		Voice:        "alloy",
		Language:     "en-US",
		Greeting:     "Thanks for calling, how can I help?",
	}, "+15555550100")
}

type harness struct {
	mgr    *manager.Manager
	sess   *session.CallSession
	sttW   *capturingSTT
	ttsW   *capturingTTS
	fllm   *llmfake.FakeLLM
	media  *mediafake.Stream
	cfg    manager.Config
	cancel context.CancelFunc
}

func newHarness(t *testing.T, cfg manager.Config, script ...llmfake.Turn) *harness {
	t.Helper()

	sess := newTestSession()
	sttW := newCapturingSTT()
	ttsW := newCapturingTTS()
	fllm := llmfake.NewFakeLLM(script...)
	registry := tools.NewRegistry()
	mstream := mediafake.NewStream()

	mgr := manager.NewManager(cfg, sess, sttW, ttsW, fllm, registry, mstream, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = mgr.Run(ctx) }()

	h := &harness{mgr: mgr, sess: sess, sttW: sttW, ttsW: ttsW, fllm: fllm, media: mstream, cfg: cfg, cancel: cancel}
	h.waitForSTTStream(t)
	h.waitForGreeting(t)
	return h
}

func (h *harness) waitForSTTStream(t *testing.T) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if h.sttW.Stream() != nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for stt stream to be created")
		case <-time.After(time.Millisecond):
		}
	}
}

func (h *harness) waitForGreeting(t *testing.T) {
	t.Helper()
	h.waitForSpokenCount(t, 1)
}

func (h *harness) conn() spokenLister {
	c := h.ttsW.Connection()
	if c == nil {
		return nil
	}
	sl, ok := c.(spokenLister)
	if !ok {
		return nil
	}
	return sl
}

func (h *harness) waitForSpokenCount(t *testing.T, n int) []ttsfake.SpokenChunk {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if sl := h.conn(); sl != nil {
			if spoken := sl.Spoken(); len(spoken) >= n {
				return spoken
			}
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d spoken chunks", n)
		case <-time.After(time.Millisecond):
		}
	}
}

func (h *harness) close() {
	h.cancel()
	h.sess.Cleanup("test teardown")
}

// speakTurn drives a full utterance through the manager: final transcript,
// then enough idle time for the endpointing policy to fire.
func (h *harness) speakTurn(t *testing.T, text string, wantChunks int) []ttsfake.SpokenChunk {
	t.Helper()
	h.sttW.Stream().Final(text)
	return h.waitForSpokenCount(t, wantChunks)
}

func TestManager_CleanTurn(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond
	h := newHarness(t, cfg, llmfake.TextTurn("Sure, I can help with that."))
	defer h.close()

	spoken := h.speakTurn(t, "I need to book an appointment", 2)
	if spoken[1].Text == "" {
		t.Fatal("expected a non-empty response chunk")
	}
	if h.fllm.CallCount() != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", h.fllm.CallCount())
	}
}

func TestManager_IncompleteHoldsOff(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond
	cfg.IncompleteRescheduleWait = 20 * time.Millisecond
	h := newHarness(t, cfg, llmfake.TextTurn("Got it."))
	defer h.close()

	h.sttW.Stream().Final("and then")
	time.Sleep(60 * time.Millisecond)
	if h.fllm.CallCount() != 0 {
		t.Fatalf("expected no LLM call yet for an incomplete utterance, got %d", h.fllm.CallCount())
	}

	h.sttW.Stream().Final("and then I wanted to ask about pricing")
	h.waitForSpokenCount(t, 2)
	if h.fllm.CallCount() != 1 {
		t.Fatalf("expected exactly one LLM call once the utterance completed, got %d", h.fllm.CallCount())
	}
}

func TestManager_AcknowledgementDuringPlaybackIsDiscarded(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond
	cfg.MinTTSBeforeBargeIn = 0
	cfg.BargeInTranscriptWait = 50 * time.Millisecond
	h := newHarness(t, cfg, llmfake.TextTurn("Here is the answer you were looking for."))
	defer h.close()

	spoken := h.speakTurn(t, "What are your hours?", 2)
	before := len(spoken)

	h.sttW.Stream().SpeechStarted()
	h.sttW.Stream().Final("mm-hmm")

	time.Sleep(100 * time.Millisecond)
	if sl := h.conn(); sl != nil && len(sl.Spoken()) != before {
		t.Fatalf("acknowledgement should not have produced new speech, had %d now %d", before, len(sl.Spoken()))
	}
	if h.fllm.CallCount() != 1 {
		t.Fatalf("acknowledgement must not start a new LLM turn, call count = %d", h.fllm.CallCount())
	}
}

func TestManager_RealBargeInInterruptsPlayback(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond
	cfg.MinTTSBeforeBargeIn = 0
	cfg.BargeInTranscriptWait = 50 * time.Millisecond
	h := newHarness(t, cfg, llmfake.TextTurn("Here is some long thing I was about to say."), llmfake.TextTurn("Okay, let's talk about that instead."))
	defer h.close()

	h.speakTurn(t, "Tell me about your services", 2)
	clearsBefore := h.media.Clears()

	h.sttW.Stream().SpeechStarted()
	h.sttW.Stream().Final("actually wait I have a different question")

	h.waitForSpokenCount(t, 3)
	if h.media.Clears() <= clearsBefore {
		t.Fatal("expected a real barge-in to clear queued audio")
	}
	if h.fllm.CallCount() != 2 {
		t.Fatalf("expected the barge-in to start a second LLM turn, call count = %d", h.fllm.CallCount())
	}
}

// TestManager_RecoversFromInterruptionDuringAccumulation drives a speech
// start/end pair while a turn is still waiting out its endpointing timer,
// then a corrected final transcript — the manager must not wedge and must
// still produce a response for the corrected utterance.
func TestManager_RecoversFromInterruptionDuringAccumulation(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 200 * time.Millisecond
	h := newHarness(t, cfg, llmfake.TextTurn("first response"), llmfake.TextTurn("second response"))
	defer h.close()

	h.sttW.Stream().Final("first thing I said")
	h.waitForSpokenCount(t, 2) // greeting + first turn's only sentence

	h.sttW.Stream().Final("second thing entirely")
	h.sttW.Stream().SpeechStarted()
	h.sttW.Stream().SpeechEnded()
	h.sttW.Stream().Final("third and final utterance")

	h.waitForSpokenCount(t, 3)
}

func TestManager_ToolInterleaving(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond

	registry := tools.NewRegistry()
	sess := newTestSession()
	sttW := newCapturingSTT()
	ttsW := newCapturingTTS()
	fllm := llmfake.NewFakeLLM(
		llmfake.ToolTurn("call-1", "check_availability", `{"date":"tomorrow"}`),
		llmfake.TextTurn("You're all set for tomorrow."),
	)
	registry.Register("check_availability", llm.ToolDefinition{Description: "checks availability"},
		func(ctx context.Context, args map[string]any, ec tools.ExecContext) (any, error) {
			return map[string]any{"available": true}, nil
		})
	mstream := mediafake.NewStream()

	mgr := manager.NewManager(cfg, sess, sttW, ttsW, fllm, registry, mstream, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sess.Cleanup("test teardown")
	go func() { _ = mgr.Run(ctx) }()

	h := &harness{sttW: sttW, ttsW: ttsW, fllm: fllm, media: mstream}
	h.waitForSTTStream(t)
	h.waitForGreeting(t)

	spoken := h.speakTurn(t, "Can you check if tomorrow is open?", 3)
	if spoken[1].Text != tools.Filler("check_availability") {
		t.Fatalf("expected tool filler as second chunk, got %q", spoken[1].Text)
	}
	if spoken[1].Continuation {
		t.Fatal("tool filler must be a fresh chunk, not a continuation")
	}
	if spoken[2].Continuation {
		t.Fatal("the first sentence of the post-tool continuation stream must also be fresh")
	}
	if fllm.CallCount() != 2 {
		t.Fatalf("expected two LLM calls (outer + post-tool inner), got %d", fllm.CallCount())
	}
}

// erroringLLM fails every StreamChat call, to exercise the apology path.
type erroringLLM struct{ err error }

func (e *erroringLLM) Name() string { return "erroring-llm" }
func (e *erroringLLM) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	return nil, e.err
}

func TestManager_LLMFailureSpeaksApology(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond

	sess := newTestSession()
	sttW := newCapturingSTT()
	ttsW := newCapturingTTS()
	badLLM := &erroringLLM{err: errors.New("provider unavailable")}
	registry := tools.NewRegistry()
	mstream := mediafake.NewStream()

	mgr := manager.NewManager(cfg, sess, sttW, ttsW, badLLM, registry, mstream, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sess.Cleanup("test teardown")
	go func() { _ = mgr.Run(ctx) }()

	h := &harness{sttW: sttW, ttsW: ttsW, media: mstream}
	h.waitForSTTStream(t)
	h.waitForGreeting(t)

	spoken := h.speakTurn(t, "Tell me about your pricing plans", 2)
	if spoken[1].Text != cfg.ApologyText {
		t.Fatalf("expected the apology utterance after an LLM failure, got %q", spoken[1].Text)
	}
}

// blockingLLM streams a single text chunk only once gate is closed, so a
// test can deterministically hold the manager in StateProcessing before
// any response chunk arrives.
type blockingLLM struct {
	gate chan struct{}
	text string
}

func (b *blockingLLM) Name() string { return "blocking-llm" }

func (b *blockingLLM) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	return &blockingStream{gate: b.gate, text: b.text}, nil
}

type blockingStream struct {
	gate chan struct{}
	text string
	sent bool
	done bool
}

func (s *blockingStream) Recv(ctx context.Context) (llm.StreamChunk, error) {
	if !s.sent {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return llm.StreamChunk{}, ctx.Err()
		}
		s.sent = true
		return llm.StreamChunk{Kind: llm.ChunkText, Text: s.text}, nil
	}
	if !s.done {
		s.done = true
		return llm.StreamChunk{Kind: llm.ChunkDone}, nil
	}
	<-ctx.Done()
	return llm.StreamChunk{}, ctx.Err()
}

func (s *blockingStream) Close() error { return nil }

// TestManager_GreedyCancelPreservesTranscript drives a speech-start event
// while a turn is still in StateProcessing, before any response chunk has
// arrived, then resumes with a new utterance. The caller's pre-cancel
// words must survive into the committed transcript instead of being
// silently discarded by the next transcript event overwriting the buffer.
func TestManager_GreedyCancelPreservesTranscript(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond
	cfg.Policy.PunctuationWait = 20 * time.Millisecond

	sess := newTestSession()
	sttW := newCapturingSTT()
	ttsW := newCapturingTTS()
	registry := tools.NewRegistry()
	mstream := mediafake.NewStream()
	gate := make(chan struct{})
	fllm := &blockingLLM{gate: gate, text: "Booked for four nights."}

	mgr := manager.NewManager(cfg, sess, sttW, ttsW, fllm, registry, mstream, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sess.Cleanup("test teardown")
	go func() { _ = mgr.Run(ctx) }()

	h := &harness{sttW: sttW, ttsW: ttsW, media: mstream}
	h.waitForSTTStream(t)
	h.waitForGreeting(t)

	h.sttW.Stream().Final("Three nights.")
	time.Sleep(40 * time.Millisecond) // endpoint timer fires; turn enters StateProcessing and blocks on gate

	h.sttW.Stream().SpeechStarted() // greedy cancel while Processing
	time.Sleep(30 * time.Millisecond)

	h.sttW.Stream().Final("Actually four nights.")
	close(gate)

	h.waitForSpokenCount(t, 2) // greeting + the combined turn's response

	var committed string
	for _, msg := range sess.History {
		if msg.Role == llm.RoleUser {
			committed = msg.Content
		}
	}
	want := "Three nights. Actually four nights."
	if committed != want {
		t.Fatalf("expected committed transcript %q, got %q", want, committed)
	}

	userTurns := 0
	for _, msg := range sess.History {
		if msg.Role == llm.RoleUser {
			userTurns++
		}
	}
	if userTurns != 1 {
		t.Fatalf("expected exactly one committed user turn (the cancelled one discarded), got %d", userTurns)
	}
}

// TestManager_MultiSentenceFlushClosesProsody drives a response whose
// final sentence has no terminal punctuation, so it only reaches TTS via
// the end-of-stream segmenter flush, and verifies that flushed chunk
// closes prosody (continuation=false) rather than extending the sentence
// before it.
func TestManager_MultiSentenceFlushClosesProsody(t *testing.T) {
	cfg := manager.DefaultConfig()
	cfg.Policy.DefaultWait = 20 * time.Millisecond
	h := newHarness(t, cfg, llmfake.TextTurn("First sentence. ", "Second sentence with no terminal punctuation"))
	defer h.close()

	spoken := h.speakTurn(t, "Tell me two things", 3)
	if spoken[1].Continuation {
		t.Fatal("the first sentence of a fresh response must not be a continuation")
	}
	if spoken[2].Continuation {
		t.Fatal("the flushed final chunk of a response must close prosody, not continue it")
	}
}
