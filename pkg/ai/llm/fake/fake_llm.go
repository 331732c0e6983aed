// Package fake provides a deterministic, in-memory LLM double for testing
// the turn-taking core without network I/O.
package fake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
)

// Turn is one scripted response: either a sequence of text deltas, or a
// single tool call. A FakeLLM consumes one Turn per StreamChat call.
type Turn struct {
	TextChunks []string
	ToolCall   *llm.ToolCall
}

// TextTurn builds a Turn that streams the given chunks as ChunkText deltas.
func TextTurn(chunks ...string) Turn {
	return Turn{TextChunks: chunks}
}

// ToolTurn builds a Turn that emits a single tool-call chunk.
func ToolTurn(id, name, args string) Turn {
	return Turn{ToolCall: &llm.ToolCall{ID: id, Name: name, Arguments: args}}
}

// FakeLLM replays a fixed script of Turns, one per StreamChat call, cycling
// if the script is exhausted. Every call is recorded for assertions
// (property P3: at most one stream in flight).
type FakeLLM struct {
	mu        sync.Mutex
	script    []Turn
	callCount int32
	inFlight  int32
	MaxInFlight int32 // observed max concurrent streams, for P3 assertions
}

// NewFakeLLM creates a FakeLLM that replays script in order, cycling.
func NewFakeLLM(script ...Turn) *FakeLLM {
	if len(script) == 0 {
		script = []Turn{TextTurn("This is a fake response.")}
	}
	return &FakeLLM{script: script}
}

func (f *FakeLLM) Name() string { return "fake-llm" }

// CallCount returns how many StreamChat calls have completed setup.
func (f *FakeLLM) CallCount() int {
	return int(atomic.LoadInt32(&f.callCount))
}

func (f *FakeLLM) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	f.mu.Lock()
	idx := int(f.callCount) % len(f.script)
	turn := f.script[idx]
	f.callCount++
	f.mu.Unlock()

	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.MaxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.MaxInFlight, max, n) {
			break
		}
	}

	chunks := make([]llm.StreamChunk, 0, len(turn.TextChunks)+2)
	if turn.ToolCall != nil {
		chunks = append(chunks, llm.StreamChunk{Kind: llm.ChunkToolCall, ToolCall: *turn.ToolCall})
	} else {
		for _, c := range turn.TextChunks {
			chunks = append(chunks, llm.StreamChunk{Kind: llm.ChunkText, Text: c})
		}
	}
	chunks = append(chunks, llm.StreamChunk{Kind: llm.ChunkDone})

	return &fakeStream{chunks: chunks, onClose: func() { atomic.AddInt32(&f.inFlight, -1) }}, nil
}

type fakeStream struct {
	chunks  []llm.StreamChunk
	pos     int
	closed  bool
	onClose func()
	once    sync.Once
}

func (s *fakeStream) Recv(ctx context.Context) (llm.StreamChunk, error) {
	select {
	case <-ctx.Done():
		return llm.StreamChunk{}, ctx.Err()
	default:
	}
	if s.closed {
		return llm.StreamChunk{}, context.Canceled
	}
	if s.pos >= len(s.chunks) {
		return llm.StreamChunk{Kind: llm.ChunkDone}, nil
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		s.closed = true
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
