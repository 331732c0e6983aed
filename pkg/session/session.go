// Package session holds the per-call state a Turn Manager actor owns:
// conversation history, in-flight turn bookkeeping, and a process-wide
// store keyed by call ID with idempotent, hook-based cleanup.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
)

// TenantConfig is the per-tenant behavior the session was opened with.
type TenantConfig struct {
	TenantID     string
	SystemPrompt string
	Voice        string
	Language     string
	Greeting     string
}

// TurnState tracks the transcript accumulating for the in-progress
// caller turn: partial text as it arrives, the time of the last partial,
// and the time silence was first observed, so the endpointing policy can
// measure elapsed silence against its wait decision.
type TurnState struct {
	Transcript       string
	LastPartialAt    time.Time
	SilenceStartedAt time.Time
	Sequence         uint64 // monotonically increasing, bumped by every outbound TTS chunk
}

// CallSession is the full state of one phone call, owned by exactly one
// actor goroutine for its lifetime; fields are not safe for concurrent
// access from outside that goroutine, except through the methods that
// explicitly document otherwise.
type CallSession struct {
	ID          string
	Tenant      TenantConfig
	CallerPhone string
	StartedAt   time.Time

	History []llm.ChatMessage

	IsSpeaking         bool
	IsPlaying          bool
	InterruptRequested bool

	Turn TurnState

	ctx           context.Context
	cancel        context.CancelFunc
	shutdownMu    sync.Mutex
	shutdownOnce  bool
	shutdownHooks []func(reason string)
}

// NewCallSession creates a session rooted in parent; cancelling parent or
// calling Cleanup tears the session's context down.
func NewCallSession(parent context.Context, id string, tenant TenantConfig, callerPhone string) *CallSession {
	if id == "" {
		id = generateCallID()
	}
	ctx, cancel := context.WithCancel(parent)
	return &CallSession{
		ID:          id,
		Tenant:      tenant,
		CallerPhone: callerPhone,
		StartedAt:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Context returns the session's lifetime context.
func (s *CallSession) Context() context.Context { return s.ctx }

// Done reports when the session has been cleaned up.
func (s *CallSession) Done() <-chan struct{} { return s.ctx.Done() }

// OnCleanup registers a hook run exactly once, concurrently with any
// other registered hooks, when Cleanup is called. If the session is
// already cleaned up, the hook runs immediately in a new goroutine.
func (s *CallSession) OnCleanup(hook func(reason string)) {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.shutdownOnce {
		go hook("session already cleaned up")
		return
	}
	s.shutdownHooks = append(s.shutdownHooks, hook)
}

// CleanupHookTimeout bounds how long Cleanup waits for hooks to finish.
const CleanupHookTimeout = 5 * time.Second

// Cleanup runs every registered hook exactly once and cancels the
// session's context. It is idempotent: calling it twice is a no-op the
// second time.
func (s *CallSession) Cleanup(reason string) {
	s.shutdownMu.Lock()
	if s.shutdownOnce {
		s.shutdownMu.Unlock()
		return
	}
	s.shutdownOnce = true
	hooks := s.shutdownHooks
	s.shutdownMu.Unlock()

	slog.Info("call session cleanup", slog.String("call_id", s.ID), slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, h := range hooks {
		wg.Add(1)
		go func(hook func(string)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("cleanup hook panicked", slog.String("call_id", s.ID), slog.Any("panic", r))
				}
			}()
			hook(reason)
		}(h)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(CleanupHookTimeout):
		slog.Warn("cleanup hooks timed out", slog.String("call_id", s.ID), slog.Duration("timeout", CleanupHookTimeout))
	}

	s.cancel()
}

// IsDone reports whether Cleanup has run.
func (s *CallSession) IsDone() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// AppendHistory appends a message to the conversation history.
func (s *CallSession) AppendHistory(msg llm.ChatMessage) {
	s.History = append(s.History, msg)
}

// LastAssistantText returns the content of the most recent assistant
// text message, or "" if there isn't one. Used by the endpointing policy
// to check whether the assistant just asked a structured-data question.
func (s *CallSession) LastAssistantText() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		m := s.History[i]
		if m.Role == llm.RoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

func generateCallID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("call_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("call_%x", b)
}
