package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	"github.com/lumentra-ai/callagent/pkg/events"
	"github.com/lumentra-ai/callagent/pkg/tools"
	"github.com/lumentra-ai/callagent/pkg/turn"
	"github.com/lumentra-ai/callagent/pkg/voice"
)

// onPartialTranscript updates the accumulating buffer without scheduling
// anything — interim results never drive the endpointing timer.
func (m *Manager) onPartialTranscript(text string) {
	m.sess.Turn.Transcript = m.withRestoredPrefix(text)
	m.sess.Turn.LastPartialAt = time.Now()
}

// onFinalTranscript either routes to barge-in arbitration (if a barge-in
// is currently pending) or re-arms the endpointing timer. A prefix
// restored by a prior greedy cancel is folded in once and then cleared:
// the combined text becomes the new committed transcript, not something
// later events need to keep re-prepending.
func (m *Manager) onFinalTranscript(ctx context.Context, text string) {
	combined := m.withRestoredPrefix(text)
	m.restoredPrefix = ""
	m.sess.Turn.Transcript = combined
	if m.pendingBargeIn {
		m.arbitrateBargeIn(ctx, combined)
		return
	}
	m.scheduleProcessing(m.policy.Wait(combined, m.sess.LastAssistantText()))
}

// withRestoredPrefix combines newly recognized text with a transcript
// restored by a greedy cancel, so caller words spoken before the cancel
// aren't lost when the recognizer's next result replaces the buffer.
func (m *Manager) withRestoredPrefix(text string) string {
	if m.restoredPrefix == "" {
		return text
	}
	if text == "" {
		return m.restoredPrefix
	}
	return m.restoredPrefix + " " + text
}

// scheduleProcessing (re)arms the single endpointing timer. Arming
// always supersedes any previously scheduled fire — only the latest
// generation's firing does anything (timer singularity, I4).
func (m *Manager) scheduleProcessing(wait time.Duration) {
	m.clearEndpointTimer()
	if m.metrics != nil {
		m.metrics.EndpointingWait.Observe(wait.Seconds())
	}
	m.endpointGen++
	gen := m.endpointGen
	m.endpointTimer = time.AfterFunc(wait, func() {
		m.post(managerEvent{kind: evEndpointTimer, gen: gen})
	})
}

func (m *Manager) clearEndpointTimer() {
	if m.endpointTimer != nil {
		m.endpointTimer.Stop()
		m.endpointTimer = nil
	}
}

func (m *Manager) clearFillerTimer() {
	if m.fillerTimer != nil {
		m.fillerTimer.Stop()
		m.fillerTimer = nil
	}
}

func (m *Manager) armFillerTimer() {
	if !m.cfg.FillerTimerEnabled {
		return
	}
	m.clearFillerTimer()
	m.fillerGen++
	gen := m.fillerGen
	m.fillerTimer = time.AfterFunc(m.cfg.FillerTimerWait, func() {
		m.post(managerEvent{kind: evFillerTimer, gen: gen})
	})
}

// processUserTurn is the serialized decision point: it decides whether
// the caller has finished talking and, if so, commits the transcript and
// starts a streaming LLM exchange. If a turn is already in flight it
// just flags that another one is waiting.
func (m *Manager) processUserTurn(ctx context.Context) {
	if m.processingLock {
		m.pendingTranscript = true
		return
	}

	transcript := m.sess.Turn.Transcript
	forceProcess := time.Since(m.accumulationStart) >= m.cfg.MaxAccumulation

	if len(strings.TrimSpace(transcript)) < m.cfg.MinTranscriptLen {
		m.resetAccumulation()
		return
	}

	if !forceProcess {
		switch turn.Classify(transcript) {
		case turn.VerdictFiller:
			m.scheduleProcessing(m.cfg.FillerRescheduleWait)
			return
		case turn.VerdictIncomplete:
			m.scheduleProcessing(m.cfg.IncompleteRescheduleWait)
			return
		case turn.VerdictMaybe:
			m.scheduleProcessing(m.policy.Wait(transcript, m.sess.LastAssistantText()))
			return
		}
	}

	m.processingLock = true
	m.resetAccumulation()
	m.preProcessSnapshot = transcript
	m.restoredPrefix = ""
	m.sess.Turn.Transcript = ""
	m.sess.AppendHistory(llm.ChatMessage{Role: llm.RoleUser, Content: transcript})

	m.transition(voice.StateProcessing)

	m.beginResponse(ctx, llm.ChatRequest{
		UserMessage:  transcript,
		History:      append([]llm.ChatMessage(nil), m.sess.History...),
		SystemPrompt: m.sess.Tenant.SystemPrompt,
		Tools:        m.tools.Definitions(),
	})
}

// beginResponse starts a fresh streaming LLM request under a new
// cancellation handle tied to the current turn generation, resetting
// every piece of per-response bookkeeping.
func (m *Manager) beginResponse(ctx context.Context, req llm.ChatRequest) {
	genCtx, cancel := context.WithCancel(m.sess.Context())
	m.genCounter++
	gen := m.genCounter
	m.cancelCurrent = cancel

	m.armFillerTimer()

	m.currentStream = streamOuter
	m.firstChunkOfTurn = true
	m.firstSentenceOfStream = true
	m.fillerSpoken = false
	m.awaitingToolResult = false
	m.responseStreamComplete = false
	m.toolsUsedThisTurn = nil
	m.responseText.Reset()
	m.segmenter = turn.NewSegmenter(m.cfg.Segmenter)
	m.turnStart = time.Now()

	go m.runLLMStream(genCtx, gen, req)
}

func (m *Manager) runLLMStream(ctx context.Context, gen uint64, req llm.ChatRequest) {
	stream, err := m.llmProv.StreamChat(ctx, req)
	if err != nil {
		m.post(managerEvent{kind: evLLMError, gen: gen, err: err})
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // aborted — greedy cancel or barge-in, not a failure
			}
			m.post(managerEvent{kind: evLLMError, gen: gen, err: err})
			return
		}
		switch chunk.Kind {
		case llm.ChunkText:
			m.post(managerEvent{kind: evLLMText, gen: gen, text: chunk.Text})
		case llm.ChunkToolCall:
			m.post(managerEvent{kind: evLLMToolCall, gen: gen, toolCall: chunk.ToolCall})
		case llm.ChunkDone:
			m.post(managerEvent{kind: evLLMDone, gen: gen})
			return
		case llm.ChunkError:
			slog.Warn("manager: llm chunk error, continuing stream",
				slog.String("call_id", m.sess.ID), slog.Any("err", chunk.Err))
		}
	}
}

func (m *Manager) onLLMText(ctx context.Context, ev managerEvent) {
	if ev.gen != m.genCounter {
		return
	}
	if m.firstChunkOfTurn {
		m.clearFillerTimer()
		if m.metrics != nil {
			m.metrics.TimeToFirstToken.Observe(time.Since(m.turnStart).Seconds())
		}
		m.firstChunkOfTurn = false
	}
	for _, sentence := range m.segmenter.Add(ev.text) {
		m.emitSentence(sentence)
	}
	if m.fsm.State() == voice.StateProcessing {
		m.transition(voice.StateSpeaking)
		m.ttsStartTime = time.Now()
		m.sess.IsPlaying = true
	}
}

func (m *Manager) emitSentence(sentence string) {
	continuation := m.nextContinuation()
	m.responseText.WriteString(sentence)
	m.responseText.WriteString(" ")
	m.speakChunk(sentence, continuation)
}

// emitFinalSentence speaks the segmenter's flushed remainder as the last
// chunk of a response. It bypasses nextContinuation and always sends
// continuation=false: the final chunk of a logical response must close
// prosody, never extend it, regardless of how many sentences preceded it.
func (m *Manager) emitFinalSentence(sentence string) {
	m.responseText.WriteString(sentence)
	m.responseText.WriteString(" ")
	m.speakChunk(sentence, false)
}

// nextContinuation reports the continuation flag for the next sentence
// emitted from the current stream, then advances past "first sentence".
// An outer stream's first sentence is fresh unless a filler already
// opened this response; an inner (post-tool) stream's first sentence is
// always fresh, since the tool filler that preceded it was itself fresh
// and the two must not be treated as one prosodic unit.
func (m *Manager) nextContinuation() bool {
	if !m.firstSentenceOfStream {
		return true
	}
	m.firstSentenceOfStream = false
	if m.currentStream == streamInner {
		return false
	}
	return m.fillerSpoken
}

func (m *Manager) onLLMToolCall(ctx context.Context, ev managerEvent) {
	if ev.gen != m.genCounter {
		return
	}
	m.clearFillerTimer()
	m.sess.AppendHistory(llm.ChatMessage{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{ev.toolCall},
	})

	filler := tools.Filler(ev.toolCall.Name)
	m.speakChunk(filler, false)
	m.fillerSpoken = true
	m.toolsUsedThisTurn = append(m.toolsUsedThisTurn, ev.toolCall.Name)
	m.awaitingToolResult = true

	if m.fsm.State() == voice.StateProcessing {
		m.transition(voice.StateSpeaking)
		m.ttsStartTime = time.Now()
		m.sess.IsPlaying = true
	}

	gen := ev.gen
	tc := ev.toolCall
	go m.executeTool(m.sess.Context(), gen, tc)
}

func (m *Manager) executeTool(ctx context.Context, gen uint64, tc llm.ToolCall) {
	var args map[string]any
	_ = json.Unmarshal([]byte(tc.Arguments), &args)

	ec := tools.ExecContext{
		TenantID:    m.sess.Tenant.TenantID,
		CallID:      m.sess.ID,
		CallerPhone: m.sess.CallerPhone,
	}
	result, err := m.tools.Execute(ctx, tc.Name, args, ec)

	outcome := "ok"
	var resultText string
	if err != nil {
		outcome = "error"
		resultText = fmt.Sprintf("error: %s", err.Error())
	} else {
		resultText = stringifyToolResult(result)
	}
	if m.metrics != nil {
		m.metrics.ToolCalls.WithLabelValues(tc.Name, outcome).Inc()
	}

	m.post(managerEvent{kind: evToolResult, gen: gen, toolCall: tc, toolResultText: resultText})
}

func stringifyToolResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func (m *Manager) onToolResult(ctx context.Context, ev managerEvent) {
	if ev.gen != m.genCounter {
		return
	}
	m.sess.AppendHistory(llm.ChatMessage{
		Role:       llm.RoleTool,
		Content:    ev.toolResultText,
		ToolCallID: ev.toolCall.ID,
		ToolName:   ev.toolCall.Name,
	})

	m.currentStream = streamInner
	m.firstSentenceOfStream = true

	req := llm.ChatRequest{
		History:      append([]llm.ChatMessage(nil), m.sess.History...),
		SystemPrompt: m.sess.Tenant.SystemPrompt,
		Tools:        m.tools.Definitions(),
	}
	gen := m.genCounter
	go m.runLLMStream(m.sess.Context(), gen, req)
}

func (m *Manager) onLLMDone(ctx context.Context, ev managerEvent) {
	if ev.gen != m.genCounter {
		return
	}
	if m.currentStream == streamOuter && m.awaitingToolResult {
		// outer stream ended right after emitting the tool call; the
		// response continues once the tool result comes back.
		return
	}

	if remainder, ok := m.segmenter.Flush(); ok {
		m.emitFinalSentence(remainder)
	}
	m.awaitingToolResult = false
	m.responseStreamComplete = true
	m.maybeFinishResponse(ctx)
}

func (m *Manager) onLLMError(ev managerEvent) {
	if ev.gen != m.genCounter {
		return
	}
	slog.Warn("manager: llm stream failed", slog.String("call_id", m.sess.ID), slog.Any("err", ev.err))
	m.handleTurnFailure("llm_error")
}

// handleTurnFailure speaks the fixed apology utterance and lets the
// normal TTS-completion accounting release the turn once it's spoken.
// There is no automatic retry.
func (m *Manager) handleTurnFailure(reason string) {
	if m.metrics != nil {
		m.metrics.TurnsFailed.WithLabelValues(reason).Inc()
	}
	m.segmenter = turn.NewSegmenter(m.cfg.Segmenter)
	m.awaitingToolResult = false
	m.responseStreamComplete = true
	if m.fsm.State() == voice.StateProcessing {
		m.transition(voice.StateSpeaking)
		m.ttsStartTime = time.Now()
		m.sess.IsPlaying = true
	}
	m.speakChunk(m.cfg.ApologyText, false)
}

// speakChunk sends text to the open TTS connection, incrementing the
// pending-chunk counter before the send so a done event racing ahead of
// the increment is impossible (resolves the "increment before send"
// open question via straight-line ordering on the actor goroutine).
func (m *Manager) speakChunk(text string, continuation bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if m.ttsConn == nil {
		return
	}
	m.pendingTTSChunks++
	if err := m.ttsConn.SpeakChunk(text, continuation); err != nil {
		m.pendingTTSChunks--
		slog.Warn("manager: speak chunk failed", slog.String("call_id", m.sess.ID), slog.Any("err", err))
		return
	}
	m.sess.IsPlaying = true
	m.sess.Turn.Sequence++
}

func (m *Manager) onTTSDone(ctx context.Context) {
	if m.fsm.State() == voice.StateGreeting {
		m.transition(voice.StateListening)
		m.resetAccumulation()
		m.pendingTTSChunks = 0
		return
	}

	if m.pendingTTSChunks > 0 {
		m.pendingTTSChunks--
	}
	m.maybeFinishResponse(ctx)
}

func (m *Manager) onTTSError(ctx context.Context, err error) {
	slog.Warn("manager: tts error", slog.String("call_id", m.sess.ID), slog.Any("err", err))
	if m.fsm.State() == voice.StateGreeting {
		m.transition(voice.StateListening)
		m.resetAccumulation()
		return
	}
	m.pendingTTSChunks = 0
	m.responseStreamComplete = false
	m.processingLock = false
	m.sess.IsPlaying = false
	m.transition(voice.StateListening)
}

// maybeFinishResponse transitions back to Listening and releases the
// turn lock once every spoken chunk has confirmed done and the response
// stream itself has finished — the two conditions are independent and
// either can be the last to settle.
func (m *Manager) maybeFinishResponse(ctx context.Context) {
	if m.pendingTTSChunks != 0 || !m.responseStreamComplete {
		return
	}

	m.sess.IsPlaying = false
	m.transition(voice.StateListening)
	m.responseStreamComplete = false
	m.pendingTTSChunks = 0
	m.processingLock = false

	if m.metrics != nil {
		m.metrics.TurnsCompleted.Inc()
	}
	_ = m.publisher.Response(events.ResponsePayload{
		CallID:    m.sess.ID,
		TenantID:  m.sess.Tenant.TenantID,
		Text:      strings.TrimSpace(m.responseText.String()),
		ToolsUsed: m.toolsUsedThisTurn,
		At:        time.Now(),
	})

	if m.pendingTranscript {
		m.pendingTranscript = false
		m.post(managerEvent{kind: evRetryProcessUserTurn})
		return
	}
	m.checkForPendingResponse(ctx)
}

// checkForPendingResponse dispatches a fresh turn immediately if the
// caller already has enough buffered transcript and isn't still talking.
func (m *Manager) checkForPendingResponse(ctx context.Context) {
	if m.sess.IsSpeaking {
		return
	}
	if len(strings.TrimSpace(m.sess.Turn.Transcript)) >= m.cfg.MinTranscriptLen {
		m.processUserTurn(ctx)
	}
}
