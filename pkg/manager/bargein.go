package manager

import (
	"context"
	"strings"
	"time"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	"github.com/lumentra-ai/callagent/pkg/voice"
)

// onSpeechStarted handles a VAD speech-onset event. While Processing, it
// first executes a greedy cancel (discarding the in-flight response and
// falling back to Listening) before evaluating admission in the new
// state; while Speaking, sustained caller speech past the minimum TTS
// guard arms a barge-in.
func (m *Manager) onSpeechStarted(ctx context.Context) {
	if m.fsm.State() == voice.StateProcessing {
		m.greedyCancel(ctx)
	}

	bargeInEligible := m.fsm.CanBargeIn()
	if !m.fsm.ShouldProcessVAD() && !bargeInEligible {
		return
	}

	m.sess.IsSpeaking = true
	m.clearEndpointTimer()

	if bargeInEligible && !m.pendingBargeIn && time.Since(m.ttsStartTime) >= m.cfg.MinTTSBeforeBargeIn {
		m.pendingBargeIn = true
		m.armBargeInSafetyTimer()
	}
}

// onSpeechEnded handles a VAD speech-offset event: mark not-speaking and
// idempotently re-arm the endpointing timer.
func (m *Manager) onSpeechEnded(ctx context.Context) {
	m.sess.IsSpeaking = false
	m.scheduleProcessing(m.policy.Wait(m.sess.Turn.Transcript, m.sess.LastAssistantText()))
}

// greedyCancel aborts an in-flight LLM/TTS exchange the instant the
// caller starts talking over it, restoring the transcript buffer to what
// it held before processing began so nothing the caller said is lost.
// The restored text is held as a prefix so the next transcript the
// recognizer produces appends to it instead of replacing it outright —
// otherwise the caller's resumed speech would silently discard whatever
// they'd already said.
func (m *Manager) greedyCancel(ctx context.Context) {
	m.abortCurrentStream()
	m.cancelTTS()
	_ = m.media.ClearAudio(ctx)

	if n := len(m.sess.History); n > 0 && m.sess.History[n-1].Role == llm.RoleUser {
		m.sess.History = m.sess.History[:n-1]
	}
	m.sess.Turn.Transcript = m.preProcessSnapshot
	m.restoredPrefix = m.preProcessSnapshot

	m.pendingTTSChunks = 0
	m.responseStreamComplete = false
	m.processingLock = false

	m.transition(voice.StateListening)
	m.resetAccumulation()
}

// arbitrateBargeIn decides, once the final transcript of a pending
// barge-in arrives, whether the caller was just acknowledging ("mm-hmm")
// or really interrupting. A bare acknowledgement cancels the barge-in
// and is discarded; anything else executes the barge-in and the
// transcript becomes the start of a normal turn.
func (m *Manager) arbitrateBargeIn(ctx context.Context, transcript string) {
	m.clearBargeInTimer()
	m.pendingBargeIn = false

	normalized := strings.ToLower(strings.TrimSpace(transcript))
	if m.cfg.AcknowledgementSet[normalized] {
		m.sess.Turn.Transcript = ""
		return
	}

	m.executeBargeIn(ctx)
	m.scheduleProcessing(m.policy.Wait(transcript, m.sess.LastAssistantText()))
}

// executeBargeIn tears down the in-progress assistant turn unconditionally.
func (m *Manager) executeBargeIn(ctx context.Context) {
	m.abortCurrentStream()
	m.cancelTTS()
	_ = m.media.ClearAudio(ctx)

	m.pendingTTSChunks = 0
	m.responseStreamComplete = false
	m.processingLock = false
	m.sess.IsPlaying = false

	m.transition(voice.StateListening)
	m.resetAccumulation()

	if m.metrics != nil {
		m.metrics.BargeIns.Inc()
	}
}

func (m *Manager) abortCurrentStream() {
	if m.cancelCurrent != nil {
		m.cancelCurrent()
		m.cancelCurrent = nil
	}
	m.clearFillerTimer()
}

func (m *Manager) cancelTTS() {
	if m.ttsConn != nil {
		_ = m.ttsConn.Cancel()
	}
}

func (m *Manager) armBargeInSafetyTimer() {
	m.clearBargeInTimer()
	m.bargeInTimer = time.AfterFunc(m.cfg.BargeInTranscriptWait, func() {
		m.post(managerEvent{kind: evBargeInTimer})
	})
}

func (m *Manager) clearBargeInTimer() {
	if m.bargeInTimer != nil {
		m.bargeInTimer.Stop()
		m.bargeInTimer = nil
	}
}
